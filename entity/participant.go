package entity

import "time"

// MemberRole is the participant's role within an event.
type MemberRole string

const (
	RoleHost   MemberRole = "host"
	RoleMember MemberRole = "member"
)

// PaymentStatus tracks how much of the equity share has been settled.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPartial  PaymentStatus = "partial"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

// Participant is a member of an event. The (event_slug, email) pair is
// unique: the participants collection carries a unique compound index on it,
// and concurrent joins for the same pair collapse into a single row.
// UserId stays empty until the email registers an account (pre-registration
// invites) and is linked on the next join attempt.
type Participant struct {
	Id            string        `json:"id" bson:"id"`
	EventSlug     string        `json:"event_slug" bson:"event_slug"`
	Email         string        `json:"email" bson:"email"`
	Role          MemberRole    `json:"role" bson:"role"`
	EquityAmount  int64         `json:"equity_amount" bson:"equity_amount"`
	PaymentStatus PaymentStatus `json:"payment_status" bson:"payment_status"`
	UserId        string        `json:"user_id,omitempty" bson:"user_id,omitempty"`
	CreatedAt     time.Time     `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at" bson:"updated_at"`
}
