package entity

import "time"

// EventStatus tracks an event through its lifecycle. Only finished events
// accept media and feedback; the join path never changes the status.
type EventStatus string

const (
	EventUpcoming  EventStatus = "upcoming"
	EventActive    EventStatus = "active"
	EventFinished  EventStatus = "finished"
	EventCancelled EventStatus = "cancelled"
)

// Event is an approved, scheduled event identified by its slug.
// Monetary amounts are integer minor currency units (cents).
// PassengerCount bounds invite redemptions; EquityDivision is the divisor
// for member equity shares and is validated to be >= 1 at request time.
type Event struct {
	Slug           string      `json:"slug" bson:"slug"`
	Name           string      `json:"name" bson:"name"`
	EventType      string      `json:"event_type" bson:"event_type"`
	Host           string      `json:"host" bson:"host"`
	Cohosts        []string    `json:"cohosts" bson:"cohosts"`
	Location       string      `json:"location" bson:"location"`
	Country        string      `json:"country" bson:"country"`
	Vehicle        string      `json:"vehicle" bson:"vehicle"`
	PickupDate     string      `json:"pickup_date" bson:"pickup_date"`
	HoursReserved  int         `json:"hours_reserved" bson:"hours_reserved"`
	PassengerCount int         `json:"passenger_count" bson:"passenger_count"`
	TotalAmount    int64       `json:"total_amount" bson:"total_amount"`
	PendingAmount  int64       `json:"pending_amount" bson:"pending_amount"`
	DepositAmount  int64       `json:"deposit_amount" bson:"deposit_amount"`
	EquityDivision int64       `json:"equity_division" bson:"equity_division"`
	EventStatus    EventStatus `json:"event_status" bson:"event_status"`
	CreatedAt      time.Time   `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at" bson:"updated_at"`
}
