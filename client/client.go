// Copyright 2026 The Flightline Authors
// SPDX-License-Identifier: Apache-2.0

// Package client implements the reservation service's client side: a
// demultiplexer that lets concurrent calls share one connection, and a
// typed API with one method per protocol operation.
package client

import (
	"fmt"
	"net"

	"github.com/flightline-io/flightline/booking"
	"github.com/flightline-io/flightline/lib/codec"
	"github.com/flightline-io/flightline/wire"
)

// Client is a typed view of one connection to the reservation server.
// Login state lives on the server side of the connection: Login binds
// the connection to an account, Logout unbinds it.
//
// Methods are safe for concurrent use, with the per-tag correlation
// caveat documented on Demux.
type Client struct {
	demux *Demux
}

// Dial connects to the server at address (host:port).
func Dial(address string) (*Client, error) {
	conn, err := net.Dial("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", address, err)
	}
	return NewClient(wire.NewConn(conn)), nil
}

// NewClient builds a client over an established framed connection and
// starts its background reader.
func NewClient(conn *wire.Conn) *Client {
	return &Client{demux: NewDemux(conn)}
}

// Close tears down the connection without the exit handshake. Pending
// calls fail with the connection error.
func (c *Client) Close() error {
	return c.demux.Close()
}

// Exit tells the server this connection is done and closes it.
func (c *Client) Exit() error {
	if err := c.demux.Send(int32(wire.OpExit), nil); err != nil {
		c.demux.Close()
		return err
	}
	return c.demux.Close()
}

// Register creates a client account.
func (c *Client) Register(username, password string) error {
	_, err := c.call(wire.OpRegister, [][]byte{[]byte(username), []byte(password)})
	return err
}

// Login authenticates this connection as the given account.
func (c *Client) Login(username, password string) error {
	_, err := c.call(wire.OpLogin, [][]byte{[]byte(username), []byte(password)})
	return err
}

// Logout unbinds this connection from its account.
func (c *Client) Logout() error {
	_, err := c.call(wire.OpLogout, nil)
	return err
}

// ChangePassword replaces the logged-in account's password.
func (c *Client) ChangePassword(newPassword string) error {
	_, err := c.call(wire.OpChangePassword, [][]byte{[]byte(newPassword)})
	return err
}

// AddRoute publishes a route (admin only) and returns it as the
// server recorded it.
func (c *Client) AddRoute(origin, destination string, capacity int32) (booking.Route, error) {
	parts, err := c.call(wire.OpInsertRoute, [][]byte{
		[]byte(origin),
		[]byte(destination),
		wire.Int32Part(capacity),
	})
	if err != nil {
		return booking.Route{}, err
	}
	if len(parts) != 1 {
		return booking.Route{}, fmt.Errorf("insert_route response has %d parts, want 1", len(parts))
	}
	var route booking.Route
	if err := codec.Unmarshal(parts[0], &route); err != nil {
		return booking.Route{}, fmt.Errorf("decoding route: %w", err)
	}
	return route, nil
}

// CancelDay closes a date to new bookings (admin only) and returns
// the reservations the cascade canceled.
func (c *Client) CancelDay(date string) ([]booking.Reservation, error) {
	parts, err := c.call(wire.OpCancelDay, [][]byte{[]byte(date)})
	if err != nil {
		return nil, err
	}
	return decodeReservations(parts)
}

// Routes lists every published route.
func (c *Client) Routes() ([]booking.Route, error) {
	parts, err := c.call(wire.OpGetRoutes, nil)
	if err != nil {
		return nil, err
	}
	routes := make([]booking.Route, 0, len(parts))
	for i, part := range parts {
		var route booking.Route
		if err := codec.Unmarshal(part, &route); err != nil {
			return nil, fmt.Errorf("decoding route %d: %w", i, err)
		}
		routes = append(routes, route)
	}
	return routes, nil
}

// PathsBetween returns the tree of all ways to fly origin →
// destination within the server's leg bound.
func (c *Client) PathsBetween(origin, destination string) (*booking.PathNode, error) {
	parts, err := c.call(wire.OpGetPathsBetween, [][]byte{[]byte(origin), []byte(destination)})
	if err != nil {
		return nil, err
	}
	if len(parts) != 1 {
		return nil, fmt.Errorf("get_paths_between response has %d parts, want 1", len(parts))
	}
	var root booking.PathNode
	if err := codec.Unmarshal(parts[0], &root); err != nil {
		return nil, fmt.Errorf("decoding path tree: %w", err)
	}
	return &root, nil
}

// Reservations lists the logged-in account's reservations.
func (c *Client) Reservations() ([]booking.Reservation, error) {
	parts, err := c.call(wire.OpGetReservations, nil)
	if err != nil {
		return nil, err
	}
	return decodeReservations(parts)
}

// Reserve books a multi-leg itinerary through the given cities inside
// the [start, end] date window (dates as YYYY-MM-DD) and returns the
// new reservation's id.
func (c *Client) Reserve(cities []string, start, end string) (string, error) {
	if len(cities) < 2 {
		return "", fmt.Errorf("itinerary needs at least two cities, got %d", len(cities))
	}
	parts := make([][]byte, 0, len(cities)+2)
	for _, city := range cities {
		parts = append(parts, []byte(city))
	}
	parts = append(parts, []byte(start), []byte(end))

	response, err := c.call(wire.OpReserve, parts)
	if err != nil {
		return "", err
	}
	if len(response) != 1 {
		return "", fmt.Errorf("reserve response has %d parts, want 1", len(response))
	}
	return string(response[0]), nil
}

// CancelReservation cancels one of the logged-in account's
// reservations and returns its final snapshot.
func (c *Client) CancelReservation(reservationID string) (booking.Reservation, error) {
	parts, err := c.call(wire.OpCancelReservation, [][]byte{[]byte(reservationID)})
	if err != nil {
		return booking.Reservation{}, err
	}
	if len(parts) != 1 {
		return booking.Reservation{}, fmt.Errorf("cancel_reservation response has %d parts, want 1", len(parts))
	}
	var r booking.Reservation
	if err := codec.Unmarshal(parts[0], &r); err != nil {
		return booking.Reservation{}, fmt.Errorf("decoding reservation: %w", err)
	}
	return r, nil
}

// Notifications drains the logged-in account's notification queue.
func (c *Client) Notifications() ([]booking.Notification, error) {
	parts, err := c.call(wire.OpGetNotification, nil)
	if err != nil {
		return nil, err
	}
	notifications := make([]booking.Notification, 0, len(parts))
	for i, part := range parts {
		var n booking.Notification
		if err := codec.Unmarshal(part, &n); err != nil {
			return nil, fmt.Errorf("decoding notification %d: %w", i, err)
		}
		notifications = append(notifications, n)
	}
	return notifications, nil
}

// call performs one request/response exchange and converts failure
// responses back into typed booking errors.
func (c *Client) call(op wire.Op, parts [][]byte) ([][]byte, error) {
	if err := c.demux.Send(int32(op), parts); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	response, err := c.demux.Receive(int32(op))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(response) > 0 && string(response[0]) == wire.StatusError {
		return nil, decodeError(response)
	}
	return response, nil
}

// decodeError rebuilds a booking error from a failure response:
// ["ERROR", code, message...].
func decodeError(parts [][]byte) error {
	failure := &booking.Error{Code: booking.CodeBadRequest, Message: "server reported an error"}
	if len(parts) > 1 {
		failure.Code = booking.Code(parts[1])
	}
	if len(parts) > 2 {
		failure.Message = string(parts[2])
	}
	return failure
}

func decodeReservations(parts [][]byte) ([]booking.Reservation, error) {
	reservations := make([]booking.Reservation, 0, len(parts))
	for i, part := range parts {
		var r booking.Reservation
		if err := codec.Unmarshal(part, &r); err != nil {
			return nil, fmt.Errorf("decoding reservation %d: %w", i, err)
		}
		reservations = append(reservations, r)
	}
	return reservations, nil
}
