// Copyright 2026 The Flightline Authors
// SPDX-License-Identifier: Apache-2.0

// Package wire implements the reservation protocol's tagged-frame
// codec and its operation codes. Many logical request/response
// exchanges share one physical connection; the tag on each frame names
// the operation and routes the response back to its caller.
package wire

import "fmt"

// Op is an operation code. The integer values are the protocol; they
// appear as frame tags on the stream and must never be reordered.
type Op int32

const (
	OpRegister          Op = 0
	OpLogin             Op = 1
	OpChangePassword    Op = 2
	OpLogout            Op = 3
	OpExit              Op = 4
	OpInsertRoute       Op = 5
	OpCancelDay         Op = 6
	OpGetRoutes         Op = 7
	OpGetPathsBetween   Op = 8
	OpGetReservations   Op = 9
	OpReserve           Op = 10
	OpCancelReservation Op = 11
	OpGetNotification   Op = 12
)

// StatusError is the literal first part of every failure response.
// Success responses never start with it: the server encodes entity
// payloads as CBOR and ids/dates as themselves, none of which collide
// with the bare string.
const StatusError = "ERROR"

var opNames = map[Op]string{
	OpRegister:          "register",
	OpLogin:             "login",
	OpChangePassword:    "change_password",
	OpLogout:            "logout",
	OpExit:              "exit",
	OpInsertRoute:       "insert_route",
	OpCancelDay:         "cancel_day",
	OpGetRoutes:         "get_routes",
	OpGetPathsBetween:   "get_paths_between",
	OpGetReservations:   "get_reservations",
	OpReserve:           "reserve",
	OpCancelReservation: "cancel_reservation",
	OpGetNotification:   "get_notification",
}

// String returns the operation's name for logs.
func (o Op) String() string {
	if name, ok := opNames[o]; ok {
		return name
	}
	return fmt.Sprintf("op(%d)", int32(o))
}

// Known reports whether o is a defined operation code.
func (o Op) Known() bool {
	_, ok := opNames[o]
	return ok
}
