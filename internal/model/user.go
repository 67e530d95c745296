package model

import "time"

// User is a lounge customer or staff account as stored in the `users`
// table. Only the columns this service reads or writes are mapped.
//
// Fields:
//  ID            – primary key.
//  Name          – display name.
//  Phone         – contact number, unique.
//  Role          – CUSTOMER or ADMIN; ADMIN may hard delete bookings.
//  LoyaltyPoints – points earned from completed bookings.
type User struct {
	ID            uint64    // users.id
	Name          string    // users.name
	Phone         string    // users.phone
	Role          string    // users.role
	LoyaltyPoints int64     // users.loyalty_points
	CreatedAt     time.Time // users.created_at
}

const (
	RoleCustomer = "CUSTOMER"
	RoleAdmin    = "ADMIN"
)
