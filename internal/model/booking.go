package model

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/lounge-reservation/internal/slot"
)

// DeviceType identifies a bookable station class.
type DeviceType string

const (
	DevicePS5     DeviceType = "ps5"
	DeviceDriving DeviceType = "driving_sim"
)

// Valid reports whether d is a known device type.
func (d DeviceType) Valid() bool { return d == DevicePS5 || d == DeviceDriving }

// Category returns the membership category that can price this device.
func (d DeviceType) Category() Category {
	if d == DeviceDriving {
		return CategoryDriving
	}
	return CategoryStory
}

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	StatusConfirmed BookingStatus = "confirmed"
	StatusCancelled BookingStatus = "cancelled"
)

// BookingType distinguishes a regular booking from a whole-lounge party.
type BookingType string

const (
	BookingRegular BookingType = "regular"
	BookingParty   BookingType = "party"
)

// Booking is a confirmed reservation of one or more devices for a single
// contiguous range on one date. It mirrors the `bookings` table; Devices is
// filled from `booking_devices` when the repository joins them.
//
// Fields:
//  ID              – primary key.
//  UserID          – signed-in customer, nil for walk-in/guest bookings.
//  CustomerName    – name given at booking time.
//  CustomerPhone   – contact phone given at booking time.
//  BookingDate     – calendar date, midnight UTC.
//  StartMinute     – start time of day.
//  DurationMinutes – one of 30, 60, 90, 120.
//  TotalPrice      – price charged, INR.
//  Status          – confirmed or cancelled (soft delete).
//  BookingType     – regular or party.
//  MembershipID    – membership that priced the booking, if any.
//  MembershipRate  – true when a membership rate was applied.
//  PromoCodeID     – promo code redeemed, if any.
//  BonusMinutes    – complimentary minutes granted on top of the paid range.
type Booking struct {
	ID              uint64          // bookings.id
	UserID          *uint64         // bookings.user_id (nullable)
	CustomerName    string          // bookings.customer_name
	CustomerPhone   string          // bookings.customer_phone
	BookingDate     time.Time       // bookings.booking_date
	StartMinute     slot.Clock      // bookings.start_time
	DurationMinutes int             // bookings.duration_minutes
	TotalPrice      decimal.Decimal // bookings.total_price
	Status          BookingStatus   // bookings.status
	BookingType     BookingType     // bookings.booking_type
	MembershipID    *uint64         // bookings.membership_id (nullable)
	MembershipRate  bool            // bookings.membership_rate
	PromoCodeID     *uint64         // bookings.promo_code_id (nullable)
	BonusMinutes    int             // bookings.bonus_minutes
	CreatedAt       time.Time       // bookings.created_at
	UpdatedAt       time.Time       // bookings.updated_at

	Devices []BookingDevice
}

// End returns the exclusive end of the booked range.
func (b *Booking) End() slot.Clock { return b.StartMinute.Add(b.DurationMinutes) }

// Active reports whether the booking still occupies devices.
func (b *Booking) Active() bool { return b.Status != StatusCancelled }

// BookingDevice reserves one device within a booking.
//
// Fields:
//  ID           – primary key.
//  BookingID    – owning booking.
//  DeviceType   – ps5 or driving_sim.
//  DeviceNumber – PS5 unit 1..3; nil for the simulator.
//  PlayerCount  – players on the device (1..4 for PS5, 1 for the simulator).
//  Price        – this device's share of the booking price.
type BookingDevice struct {
	ID           uint64          // booking_devices.id
	BookingID    uint64          // booking_devices.booking_id
	DeviceType   DeviceType      // booking_devices.device_type
	DeviceNumber *int            // booking_devices.device_number (nullable)
	PlayerCount  int             // booking_devices.player_count
	Price        decimal.Decimal // booking_devices.price
}

// Unit returns the PS5 unit number, or 0 for the simulator.
func (d BookingDevice) Unit() int {
	if d.DeviceNumber == nil {
		return 0
	}
	return *d.DeviceNumber
}
