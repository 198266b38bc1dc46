package store

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// MaxRetries is the number of failed replay attempts after which a queued
// action is excluded from normal processing.
const MaxRetries = 3

type ActionType string

const (
	ActionCreateBooking ActionType = "create_booking"
	ActionCancelTicket  ActionType = "cancel_ticket"
	ActionUpdateProfile ActionType = "update_profile"
	ActionCheckIn       ActionType = "check_in"
)

type EntityType string

const (
	EntityTicket  EntityType = "ticket"
	EntityBooking EntityType = "booking"
	EntityUser    EntityType = "user"
)

type TicketStatus string

const (
	TicketReserved  TicketStatus = "reserved"
	TicketPaid      TicketStatus = "paid"
	TicketCheckedIn TicketStatus = "checked_in"
	TicketUsed      TicketStatus = "used"
	TicketCancelled TicketStatus = "cancelled"
	TicketRefunded  TicketStatus = "refunded"
)

// RawPayload is a verbatim JSON document. SQLite hands the TEXT column back
// as a string, so it carries its own Scanner/Valuer pair, and it round-trips
// through encoding/json unmodified.
type RawPayload []byte

func (p RawPayload) MarshalJSON() ([]byte, error) {
	if p == nil {
		return []byte("null"), nil
	}
	return p, nil
}

func (p *RawPayload) UnmarshalJSON(data []byte) error {
	if p == nil {
		return errors.New("store.RawPayload: UnmarshalJSON on nil pointer")
	}
	*p = append((*p)[0:0], data...)
	return nil
}

func (p RawPayload) Value() (driver.Value, error) {
	return string(p), nil
}

func (p *RawPayload) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*p = nil
	case string:
		*p = RawPayload(v)
	case []byte:
		*p = append(RawPayload(nil), v...)
	default:
		return fmt.Errorf("cannot scan %T into payload", src)
	}
	return nil
}

// QueuedAction is a durable record of one pending user-initiated mutation.
// Payload holds the JSON encoding of the typed payload struct matching
// ActionType.
type QueuedAction struct {
	ID         int64          `db:"id" json:"id"`
	ActionType ActionType     `db:"action_type" json:"action_type"`
	EntityType EntityType     `db:"entity_type" json:"entity_type"`
	EntityID   sql.NullInt64  `db:"entity_id" json:"entity_id,omitempty"`
	Payload    RawPayload     `db:"payload" json:"payload"`
	CreatedAt  int64          `db:"created_at" json:"created_at"`
	RetryCount int            `db:"retry_count" json:"retry_count"`
	LastError  sql.NullString `db:"last_error" json:"last_error,omitempty"`
}

// DecodePayload unmarshals the action payload into the struct matching the
// action type.
func (a *QueuedAction) DecodePayload(v interface{}) error {
	if err := json.Unmarshal(a.Payload, v); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", a.ActionType, err)
	}
	return nil
}

type Passenger struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

type CreateBookingPayload struct {
	TripID    int64     `json:"trip_id"`
	Seats     []string  `json:"seats"`
	Passenger Passenger `json:"passenger"`
}

type CancelTicketPayload struct {
	TicketID int64  `json:"ticket_id"`
	Reason   string `json:"reason,omitempty"`
}

type UpdateProfilePayload struct {
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

type CheckInPayload struct {
	TicketID int64 `json:"ticket_id"`
}

// Trip is a denormalized projection of a trip for offline browsing.
// Timestamps are unix seconds.
type Trip struct {
	ID                 int64   `db:"id" json:"id"`
	OriginCity         string  `db:"origin_city" json:"origin_city"`
	OriginCountry      string  `db:"origin_country" json:"origin_country"`
	DestinationCity    string  `db:"destination_city" json:"destination_city"`
	DestinationCountry string  `db:"destination_country" json:"destination_country"`
	DepartureTime      int64   `db:"departure_time" json:"departure_time"`
	ArrivalTime        int64   `db:"arrival_time" json:"arrival_time"`
	BusName            string  `db:"bus_name" json:"bus_name"`
	BusPlate           string  `db:"bus_plate" json:"bus_plate"`
	BusCapacity        int     `db:"bus_capacity" json:"bus_capacity"`
	Amenities          string  `db:"amenities" json:"amenities"` // comma-separated list
	SeatsTotal         int     `db:"seats_total" json:"seats_total"`
	SeatsAvailable     int     `db:"seats_available" json:"seats_available"`
	PriceAmount        float64 `db:"price_amount" json:"price_amount"`
	PriceCurrency      string  `db:"price_currency" json:"price_currency"`
	Status             string  `db:"status" json:"status"`
	SyncedAt           int64   `db:"synced_at" json:"synced_at"`
}

// Ticket references its Trip by id. The Trip field is populated on reads
// and, when set, upserted before the ticket row on save so the reference
// always resolves.
type Ticket struct {
	ID             int64          `db:"id" json:"id"`
	TicketNumber   string         `db:"ticket_number" json:"ticket_number"`
	TripID         int64          `db:"trip_id" json:"trip_id"`
	PassengerName  string         `db:"passenger_name" json:"passenger_name"`
	PassengerPhone string         `db:"passenger_phone" json:"passenger_phone"`
	PassengerEmail string         `db:"passenger_email" json:"passenger_email"`
	SeatNumber     sql.NullString `db:"seat_number" json:"seat_number,omitempty"`
	PriceAmount    float64        `db:"price_amount" json:"price_amount"`
	PriceCurrency  string         `db:"price_currency" json:"price_currency"`
	Status         TicketStatus   `db:"status" json:"status"`
	QRPayload      string         `db:"qr_payload" json:"qr_payload"`
	PurchasedAt    int64          `db:"purchased_at" json:"purchased_at"`
	CheckedInAt    sql.NullInt64  `db:"checked_in_at" json:"checked_in_at,omitempty"`
	SyncedAt       int64          `db:"synced_at" json:"synced_at"`

	Trip *Trip `db:"-" json:"trip,omitempty"`
}

// SyncHistory records one orchestrator run.
type SyncHistory struct {
	ID               string         `db:"id" json:"id"`
	StartedAt        int64          `db:"started_at" json:"started_at"`
	CompletedAt      sql.NullInt64  `db:"completed_at" json:"completed_at,omitempty"`
	ActionsProcessed int            `db:"actions_processed" json:"actions_processed"`
	ActionsFailed    int            `db:"actions_failed" json:"actions_failed"`
	TicketsSynced    int            `db:"tickets_synced" json:"tickets_synced"`
	TripsSynced      int            `db:"trips_synced" json:"trips_synced"`
	Status           string         `db:"status" json:"status"`
	ErrorMessage     sql.NullString `db:"error_message" json:"error_message,omitempty"`
}
