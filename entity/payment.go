package entity

import (
	"net/http"

	"evsync/lib/validate"
)

// Payment is the result of creating a checkout link for an equity share.
type Payment struct {
	Amount        int64  `json:"amount"`
	ParticipantId string `json:"participant_id" validate:"required"`
	EventSlug     string `json:"event_slug,omitempty"`
	Link          string `json:"link,omitempty"`
	SessionId     string `json:"session_id,omitempty"`
	Status        string `json:"status,omitempty"`
}

func (p *Payment) Bind(_ *http.Request) error {
	return validate.Struct(p)
}
