// Copyright 2026 The Flightline Authors
// SPDX-License-Identifier: Apache-2.0

package booking

import (
	"fmt"
	"time"
)

// Route is an immutable published connection between two cities. Every
// flight on the route inherits its seat capacity. Routes are keyed by
// (origin, destination) compared case-insensitively; the stored fields
// keep the spelling the operator published.
type Route struct {
	Origin      string `cbor:"origin"`
	Destination string `cbor:"destination"`
	Capacity    int32  `cbor:"capacity"`
}

// Flight is a snapshot of one flight: a route flown on a calendar
// date, with the reservations currently holding a seat. Flights are
// created lazily the first time a booking needs the route on that date
// and destroyed when the date is canceled.
type Flight struct {
	ID             string   `cbor:"id"`
	Route          Route    `cbor:"route"`
	Date           string   `cbor:"date"`
	ReservationIDs []string `cbor:"reservation_ids"`
}

// Reservation is a snapshot of one committed itinerary: the owning
// user and the flights it occupies one seat on.
type Reservation struct {
	ID        string   `cbor:"id"`
	Username  string   `cbor:"username"`
	FlightIDs []string `cbor:"flight_ids"`
}

// Notification is one message queued for a user, FIFO per user,
// drained by the get-notification operation.
type Notification struct {
	At      time.Time `cbor:"at"`
	Message string    `cbor:"message"`
}

// PathNode is one node of a path tree: the bounded-depth search result
// describing all simple routes between two cities. A node with
// Destination set is a success leaf; interior nodes only survive when
// at least one leaf below them reaches the destination.
type PathNode struct {
	City        string      `cbor:"city"`
	Destination bool        `cbor:"destination"`
	Next        []*PathNode `cbor:"next,omitempty"`
}

// User is the engine's public view of an account.
type User struct {
	Username string
	Admin    bool
}

// dateLayout is the wire format for calendar dates.
const dateLayout = "2006-01-02"

// Date is a calendar date with no time-of-day or zone. It is a
// comparable value, usable as a map key.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate parses an ISO-8601 calendar date (YYYY-MM-DD).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("parsing date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// DateOf truncates an instant to its calendar date.
func DateOf(t time.Time) Date {
	year, month, day := t.Date()
	return Date{Year: year, Month: month, Day: day}
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.time().Format(dateLayout)
}

// Next returns the following calendar day.
func (d Date) Next() Date {
	return DateOf(d.time().AddDate(0, 0, 1))
}

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool {
	return d.time().Before(other.time())
}

// After reports whether d is strictly later than other.
func (d Date) After(other Date) bool {
	return d.time().After(other.time())
}

func (d Date) time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}
