// Copyright 2026 The Flightline Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"fmt"
	"log/slog"

	"github.com/flightline-io/flightline/booking"
	"github.com/flightline-io/flightline/lib/codec"
	"github.com/flightline-io/flightline/wire"
)

// session is the per-connection dispatch state. Login binds the
// connection to an account until logout or disconnect. The handler
// loop is single-threaded per connection, so nothing here needs
// locking.
type session struct {
	engine  *booking.Engine
	logger  *slog.Logger
	account *booking.User
}

// dispatch maps one request frame to the corresponding engine
// operation and returns the success response parts. A returned error
// becomes a failure frame; the connection stays open either way.
func (s *session) dispatch(frame wire.Frame) ([][]byte, error) {
	op := wire.Op(frame.Tag)
	if !op.Known() {
		return nil, &booking.Error{
			Code:    booking.CodeBadRequest,
			Message: fmt.Sprintf("unknown operation tag %d", frame.Tag),
		}
	}
	switch op {
	case wire.OpRegister:
		return s.register(frame.Parts)
	case wire.OpLogin:
		return s.login(frame.Parts)
	case wire.OpChangePassword:
		return s.changePassword(frame.Parts)
	case wire.OpLogout:
		return s.logout()
	case wire.OpInsertRoute:
		return s.insertRoute(frame.Parts)
	case wire.OpCancelDay:
		return s.cancelDay(frame.Parts)
	case wire.OpGetRoutes:
		return s.getRoutes()
	case wire.OpGetPathsBetween:
		return s.getPathsBetween(frame.Parts)
	case wire.OpGetReservations:
		return s.getReservations()
	case wire.OpReserve:
		return s.reserve(frame.Parts)
	case wire.OpCancelReservation:
		return s.cancelReservation(frame.Parts)
	case wire.OpGetNotification:
		return s.getNotifications()
	default:
		// Only exit lands here, and the handler loop consumes it before
		// dispatching.
		return nil, &booking.Error{Code: booking.CodeBadRequest, Message: op.String() + " carries no response"}
	}
}

// requireLogin returns the bound account or a not_logged_in failure.
func (s *session) requireLogin() (*booking.User, error) {
	if s.account == nil {
		return nil, &booking.Error{Code: booking.CodeNotLoggedIn, Message: "operation requires login"}
	}
	return s.account, nil
}

// requireAdmin returns the bound account if it has the admin role.
func (s *session) requireAdmin() (*booking.User, error) {
	account, err := s.requireLogin()
	if err != nil {
		return nil, err
	}
	if !account.Admin {
		return nil, &booking.Error{Code: booking.CodeForbidden, Message: "operation requires an admin account"}
	}
	return account, nil
}

func badRequest(message string) error {
	return &booking.Error{Code: booking.CodeBadRequest, Message: message}
}

func (s *session) register(parts [][]byte) ([][]byte, error) {
	if len(parts) != 2 {
		return nil, badRequest("register expects [username, password]")
	}
	if _, err := s.engine.RegisterClient(string(parts[0]), string(parts[1])); err != nil {
		return nil, err
	}
	return nil, nil
}

func (s *session) login(parts [][]byte) ([][]byte, error) {
	if len(parts) != 2 {
		return nil, badRequest("login expects [username, password]")
	}
	if s.account != nil {
		return nil, &booking.Error{Code: booking.CodeAlreadyLoggedIn, Message: "connection is already logged in as " + s.account.Username}
	}
	account, err := s.engine.Authenticate(string(parts[0]), string(parts[1]))
	if err != nil {
		return nil, err
	}
	s.account = &account
	s.logger.Info("login", "username", account.Username, "admin", account.Admin)
	return nil, nil
}

func (s *session) changePassword(parts [][]byte) ([][]byte, error) {
	account, err := s.requireLogin()
	if err != nil {
		return nil, err
	}
	if len(parts) != 1 {
		return nil, badRequest("change_password expects [newPassword]")
	}
	if err := s.engine.ChangePassword(account.Username, string(parts[0])); err != nil {
		return nil, err
	}
	return nil, nil
}

func (s *session) logout() ([][]byte, error) {
	if _, err := s.requireLogin(); err != nil {
		return nil, err
	}
	s.logger.Info("logout", "username", s.account.Username)
	s.account = nil
	return nil, nil
}

func (s *session) insertRoute(parts [][]byte) ([][]byte, error) {
	if _, err := s.requireAdmin(); err != nil {
		return nil, err
	}
	if len(parts) != 3 {
		return nil, badRequest("insert_route expects [origin, destination, capacity]")
	}
	capacity, err := wire.ParseInt32Part(parts[2])
	if err != nil {
		return nil, badRequest("insert_route capacity: " + err.Error())
	}
	route, err := s.engine.AddRoute(string(parts[0]), string(parts[1]), capacity)
	if err != nil {
		return nil, err
	}
	return marshalParts(route)
}

func (s *session) cancelDay(parts [][]byte) ([][]byte, error) {
	if _, err := s.requireAdmin(); err != nil {
		return nil, err
	}
	if len(parts) != 1 {
		return nil, badRequest("cancel_day expects [date]")
	}
	date, err := booking.ParseDate(string(parts[0]))
	if err != nil {
		return nil, badRequest(err.Error())
	}
	canceled, err := s.engine.CancelDay(date)
	if err != nil {
		return nil, err
	}
	response := make([]any, 0, len(canceled))
	for _, reservation := range canceled {
		response = append(response, reservation)
	}
	return marshalParts(response...)
}

func (s *session) getRoutes() ([][]byte, error) {
	routes := s.engine.Routes()
	response := make([]any, 0, len(routes))
	for _, route := range routes {
		response = append(response, route)
	}
	return marshalParts(response...)
}

func (s *session) getPathsBetween(parts [][]byte) ([][]byte, error) {
	if len(parts) != 2 {
		return nil, badRequest("get_paths_between expects [origin, destination]")
	}
	root, err := s.engine.PathsBetween(string(parts[0]), string(parts[1]))
	if err != nil {
		return nil, err
	}
	return marshalParts(root)
}

func (s *session) getReservations() ([][]byte, error) {
	account, err := s.requireLogin()
	if err != nil {
		return nil, err
	}
	reservations, err := s.engine.ReservationsOf(account.Username)
	if err != nil {
		return nil, err
	}
	response := make([]any, 0, len(reservations))
	for _, reservation := range reservations {
		response = append(response, reservation)
	}
	return marshalParts(response...)
}

func (s *session) reserve(parts [][]byte) ([][]byte, error) {
	account, err := s.requireLogin()
	if err != nil {
		return nil, err
	}
	// Itinerary cities followed by the two window dates.
	if len(parts) < 4 {
		return nil, badRequest("reserve expects [city, city, ..., start, end]")
	}
	cities := make([]string, 0, len(parts)-2)
	for _, part := range parts[:len(parts)-2] {
		cities = append(cities, string(part))
	}
	start, err := booking.ParseDate(string(parts[len(parts)-2]))
	if err != nil {
		return nil, badRequest(err.Error())
	}
	end, err := booking.ParseDate(string(parts[len(parts)-1]))
	if err != nil {
		return nil, badRequest(err.Error())
	}

	reservation, err := s.engine.Reserve(account.Username, cities, start, end)
	if err != nil {
		return nil, err
	}
	return [][]byte{[]byte(reservation.ID)}, nil
}

func (s *session) cancelReservation(parts [][]byte) ([][]byte, error) {
	account, err := s.requireLogin()
	if err != nil {
		return nil, err
	}
	if len(parts) != 1 {
		return nil, badRequest("cancel_reservation expects [reservationID]")
	}
	reservation, err := s.engine.CancelReservation(account.Username, string(parts[0]))
	if err != nil {
		return nil, err
	}
	return marshalParts(reservation)
}

func (s *session) getNotifications() ([][]byte, error) {
	account, err := s.requireLogin()
	if err != nil {
		return nil, err
	}
	notifications, err := s.engine.DrainNotifications(account.Username)
	if err != nil {
		return nil, err
	}
	response := make([]any, 0, len(notifications))
	for _, notification := range notifications {
		response = append(response, notification)
	}
	return marshalParts(response...)
}

// marshalParts CBOR-encodes each value as one response part.
func marshalParts(values ...any) ([][]byte, error) {
	parts := make([][]byte, 0, len(values))
	for _, value := range values {
		encoded, err := codec.Marshal(value)
		if err != nil {
			return nil, err
		}
		parts = append(parts, encoded)
	}
	return parts, nil
}
