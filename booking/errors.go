// Copyright 2026 The Flightline Authors
// SPDX-License-Identifier: Apache-2.0

package booking

import (
	"errors"
	"fmt"
)

// Code classifies a business-rule failure. Codes travel on the wire in
// failure responses, so clients can branch on them without parsing
// message text.
type Code string

const (
	// Conflicts.
	CodeRouteExists    Code = "route_exists"
	CodeUsernameExists Code = "username_exists"
	CodeDayCanceled    Code = "day_already_canceled"

	// Not found.
	CodeRouteNotFound       Code = "route_not_found"
	CodeUserNotFound        Code = "user_not_found"
	CodeReservationNotFound Code = "reservation_not_found"

	// State conflicts.
	CodeBookingNotPossible Code = "booking_not_possible"
	// CodeFlightFull is an internal invariant-violation signal. The
	// seat lock discipline makes it unreachable; observing it on the
	// wire means an engine bug, not a user mistake.
	CodeFlightFull Code = "flight_full"

	// Authorization.
	CodeNotOwner           Code = "not_owner"
	CodeForbidden          Code = "forbidden"
	CodeNotLoggedIn        Code = "not_logged_in"
	CodeAlreadyLoggedIn    Code = "already_logged_in"
	CodeInvalidCredentials Code = "invalid_credentials"

	// Validation.
	CodeSelfRoute        Code = "self_route"
	CodeInvalidDateRange Code = "invalid_date_range"
	CodeBadRequest       Code = "bad_request"
)

// Error is a typed, recoverable business-rule failure. The engine's
// state is never left inconsistent by an operation that returns one:
// failed operations either make no mutation or fully roll back before
// returning. Transport failures are ordinary wrapped errors, never
// *Error values.
//
// Callers branch with errors.As or the IsCode helper:
//
//	if booking.IsCode(err, booking.CodeBookingNotPossible) { ... }
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// newError builds a typed failure.
func newError(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// IsCode reports whether err is an *Error with the given code.
func IsCode(err error, code Code) bool {
	var bookingErr *Error
	if errors.As(err, &bookingErr) {
		return bookingErr.Code == code
	}
	return false
}

// ErrorCode extracts the code from err, or "" when err is not a
// business-rule failure.
func ErrorCode(err error) Code {
	var bookingErr *Error
	if errors.As(err, &bookingErr) {
		return bookingErr.Code
	}
	return ""
}
