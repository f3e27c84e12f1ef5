package entity

import (
	"net/http"
	"time"

	"evsync/lib/validate"

	"github.com/biter777/countries"
)

// RequestStatus is the approval state of an event request.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

// EventRequest is a pending proposal for a new event, created by a host and
// reviewed by an admin. The slug is derived from the client name and is
// globally unique; a soft delete sets DeletedAt instead of removing the
// document. The redemption path never mutates requests.
type EventRequest struct {
	Id             string        `json:"id" bson:"id"`
	Slug           string        `json:"slug" bson:"slug"`
	Name           string        `json:"name" bson:"name" validate:"required"`
	EventType      string        `json:"event_type" bson:"event_type" validate:"required"`
	ClientName     string        `json:"client_name" bson:"client_name" validate:"required"`
	PhoneNumber    string        `json:"phone_number" bson:"phone_number" validate:"omitempty,max=20"`
	PickupDate     string        `json:"pickup_date" bson:"pickup_date" validate:"required"`
	Location       string        `json:"location" bson:"location" validate:"required,max=500"`
	Country        string        `json:"country" bson:"country" validate:"omitempty"`
	Vehicle        string        `json:"vehicle" bson:"vehicle" validate:"required"`
	HoursReserved  int           `json:"hours_reserved" bson:"hours_reserved" validate:"required,min=1"`
	PassengerCount int           `json:"passenger_count" bson:"passenger_count" validate:"required,min=1"`
	TotalAmount    int64         `json:"total_amount" bson:"total_amount" validate:"omitempty,min=0"`
	PendingAmount  int64         `json:"pending_amount" bson:"pending_amount" validate:"omitempty,min=0"`
	DepositAmount  int64         `json:"deposit_amount" bson:"deposit_amount" validate:"omitempty,min=0"`
	EquityDivision int64         `json:"equity_division" bson:"equity_division" validate:"required,min=1"`
	Status         RequestStatus `json:"status" bson:"status"`
	Host           string        `json:"host" bson:"host"`
	Cohosts        []string      `json:"cohosts" bson:"cohosts" validate:"omitempty,dive,email"`
	Participants   []string      `json:"participants" bson:"participants"`
	CreatedAt      time.Time     `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at" bson:"updated_at"`
	DeletedAt      *time.Time    `json:"deleted_at,omitempty" bson:"deleted_at,omitempty"`
}

func (e *EventRequest) Bind(_ *http.Request) error {
	return validate.Struct(e)
}

// CountryCode normalizes the free-form Country field to an ISO alpha-2 code.
// Returns an empty string when the country cannot be resolved.
func (e *EventRequest) CountryCode() string {
	if e.Country == "" {
		return ""
	}
	if len(e.Country) == 2 {
		return e.Country
	}
	country := countries.ByName(e.Country)
	code := country.Alpha2()
	if len(code) == 2 {
		return code
	}
	return ""
}

// Event builds the approved event from this request. Status transitions are
// handled by the approval flow, not here.
func (e *EventRequest) Event(now time.Time) *Event {
	return &Event{
		Slug:           e.Slug,
		Name:           e.Name,
		EventType:      e.EventType,
		Host:           e.Host,
		Cohosts:        e.Cohosts,
		Location:       e.Location,
		Country:        e.CountryCode(),
		Vehicle:        e.Vehicle,
		PickupDate:     e.PickupDate,
		HoursReserved:  e.HoursReserved,
		PassengerCount: e.PassengerCount,
		TotalAmount:    e.TotalAmount,
		PendingAmount:  e.PendingAmount,
		DepositAmount:  e.DepositAmount,
		EquityDivision: e.EquityDivision,
		EventStatus:    EventUpcoming,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
