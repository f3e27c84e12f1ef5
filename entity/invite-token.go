package entity

import "time"

// InviteToken grants event-join permission, bounded by expiry and a shared
// capacity counter. Registered counts redemptions, not distinct
// participants: a repeated join with a still-valid token advances the
// counter again even when the participant row already exists. Distinct
// participants are counted by rows in the participants collection.
//
// RedeemInvite atomically increments Registered and checks it against the
// event's PassengerCount; the counter is never decremented. A token becomes
// unusable once ExpiresAt <= now or the counter reaches capacity.
type InviteToken struct {
	Token      string    `json:"token" bson:"token"`
	EventSlug  string    `json:"event_slug" bson:"event_slug"`
	ExpiresAt  time.Time `json:"expires_at" bson:"expires_at"`
	Registered int       `json:"registered" bson:"registered"`
	CreatedBy  string    `json:"created_by" bson:"created_by"`
	CreatedAt  time.Time `json:"created_at" bson:"created_at"`
}

func (i *InviteToken) Expired(now time.Time) bool {
	return !i.ExpiresAt.After(now)
}
