// Package queue defines message payloads exchanged over the message broker.
package queue

import "fmt"

// BookingConfirmedQueue is the durable queue admin notifications travel on.
const BookingConfirmedQueue = "booking.confirmed"

// BookingConfirmedEvent is published after a booking commits. It carries
// everything the admin notification needs so the consumer never queries
// the primary database.
type BookingConfirmedEvent struct {
    BookingID         uint64        `json:"booking_id"`
    UserID            *uint64       `json:"user_id,omitempty"`
    CustomerName      string        `json:"customer_name"`
    CustomerPhone     string        `json:"customer_phone"`
    BookingType       string        `json:"booking_type"`
    BookingDate       string        `json:"booking_date"`
    StartTime         string        `json:"start_time"`
    EndTime           string        `json:"end_time"`
    Devices           []DeviceEntry `json:"devices"`
    TotalPrice        string        `json:"total_price"`
    MembershipApplied bool          `json:"membership_applied"`
    ConfirmedAt       string        `json:"confirmed_at"`
}

// DeviceEntry is one reserved device inside a BookingConfirmedEvent.
type DeviceEntry struct {
    DeviceType  string `json:"device_type"`
    Unit        int    `json:"device_number,omitempty"`
    PlayerCount int    `json:"player_count"`
}

// MessageID is a stable broker message id so consumers can spot redeliveries.
func (e BookingConfirmedEvent) MessageID() string {
    return fmt.Sprintf("booking-%d", e.BookingID)
}
