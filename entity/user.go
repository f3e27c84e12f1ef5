package entity

import (
	"net/http"
	"time"

	"evsync/lib/validate"
)

// Role controls access level within the service.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin" // receives event request approvals
)

// User represents a registered account. Accounts are keyed by email; the
// Token field carries the API bearer token. Telegram fields are populated
// when the user links a chat via the bot's /start command.
type User struct {
	Id               string    `json:"id" bson:"id"`
	Email            string    `json:"email" bson:"email" validate:"required,email"`
	FullName         string    `json:"full_name" bson:"full_name" validate:"omitempty"`
	PhoneNumber      string    `json:"phone_number" bson:"phone_number" validate:"omitempty"`
	DateOfBirth      string    `json:"date_of_birth" bson:"date_of_birth" validate:"omitempty"`
	Token            string    `json:"token" bson:"token" validate:"required,min=1"`
	Role             Role      `json:"role" bson:"role"`
	TelegramId       int64     `json:"telegram_id" bson:"telegram_id"`
	TelegramUsername string    `json:"telegram_username" bson:"telegram_username"`
	TelegramEnabled  bool      `json:"telegram_enabled" bson:"telegram_enabled"`
	RegisteredAt     time.Time `json:"registered_at" bson:"registered_at"`
}

func (u *User) Bind(_ *http.Request) error {
	return validate.Struct(u)
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Reachable reports whether the bot can deliver a message to this user.
func (u *User) Reachable() bool {
	return u.TelegramEnabled && u.TelegramId > 0
}
