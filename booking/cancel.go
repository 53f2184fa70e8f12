// Copyright 2026 The Flightline Authors
// SPDX-License-Identifier: Apache-2.0

package booking

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// CancelReservation releases one seat on every flight the reservation
// holds and removes it from the ledger and the owner's set. Only the
// owner may cancel; an attempt by anyone else fails with CodeNotOwner
// and leaves the reservation fully intact.
func (e *Engine) CancelReservation(username, reservationID string) (Reservation, error) {
	id, err := uuid.Parse(reservationID)
	if err != nil {
		return Reservation{}, newError(CodeBadRequest, "malformed reservation id %q", reservationID)
	}

	// Removing from the ledger is the linearization point: whoever
	// removes the entry owns the teardown. The ownership check happens
	// under the same lock, so a non-owner attempt never removes the
	// entry, not even transiently — a concurrent day cancellation must
	// always find a live reservation in the ledger.
	e.reservationsMu.Lock()
	r, ok := e.reservations[id]
	if !ok {
		e.reservationsMu.Unlock()
		return Reservation{}, newError(CodeReservationNotFound, "reservation not found: %s", reservationID)
	}
	if r.username != username {
		e.reservationsMu.Unlock()
		return Reservation{}, newError(CodeNotOwner, "reservation %s does not belong to %s", reservationID, username)
	}
	delete(e.reservations, id)
	e.reservationsMu.Unlock()

	e.releaseSeats(r)

	// Accounts are never deleted, and the ownership check above proved
	// the caller owns this reservation, so the lookup cannot miss.
	if account := e.userByName(username); account != nil {
		account.mu.Lock()
		delete(account.reservations, id)
		account.mu.Unlock()
	}

	e.logger.Info("reservation canceled", "reservation", reservationID, "username", username)
	return r.snapshot(), nil
}

// CancelDay closes a date to new bookings, destroys every flight
// scheduled on it, and cascades cancellation to every reservation
// holding a seat on any of them — including the reservation's legs on
// other, non-canceled dates, since a partial itinerary is useless.
// Each affected user gets a notification. Returns the fully canceled
// reservations.
func (e *Engine) CancelDay(date Date) ([]Reservation, error) {
	e.canceledMu.Lock()
	if _, canceled := e.canceledDays[date]; canceled {
		e.canceledMu.Unlock()
		return nil, newError(CodeDayCanceled, "day already canceled: %s", date)
	}
	e.canceledDays[date] = struct{}{}
	e.canceledMu.Unlock()

	// Unhook the date from both flight indices. New attempts re-check
	// the canceled set under flightsMu, so nothing recreates the
	// entry; closed stops attempts that already hold the day pointer.
	e.flightsMu.Lock()
	day := e.flightsByDate[date]
	delete(e.flightsByDate, date)
	var flights []*flight
	if day != nil {
		day.mu.Lock()
		day.closed = true
		for _, f := range day.flights {
			flights = append(flights, f)
			delete(e.flightsByID, f.id)
		}
		day.mu.Unlock()
	}
	e.flightsMu.Unlock()

	// Drain the day's flights one at a time. Taking no other lock
	// while waiting on a flight lets in-flight reservation attempts
	// that hold this flight finish their commit or rollback first;
	// a commit that lands here is simply canceled right after.
	affected := make(map[uuid.UUID]struct{})
	for _, f := range flights {
		f.mu.Lock()
		f.closed = true
		for id := range f.reservations {
			affected[id] = struct{}{}
		}
		f.reservations = make(map[uuid.UUID]struct{})
		f.mu.Unlock()
	}

	var canceled []Reservation
	for id := range affected {
		e.reservationsMu.Lock()
		r, ok := e.reservations[id]
		if ok {
			delete(e.reservations, id)
		}
		e.reservationsMu.Unlock()
		if !ok {
			// Already torn down by its owner concurrently.
			continue
		}

		// Release the legs on other dates; this day's flights are
		// already gone from the id index.
		e.releaseSeats(r)

		if account := e.userByName(r.username); account != nil {
			account.mu.Lock()
			delete(account.reservations, id)
			account.notifications = append(account.notifications, Notification{
				At:      e.clock.Now(),
				Message: fmt.Sprintf("reservation %s canceled: flights on %s were canceled", id, date),
			})
			account.mu.Unlock()
		}
		canceled = append(canceled, r.snapshot())
	}

	sort.Slice(canceled, func(i, j int) bool { return canceled[i].ID < canceled[j].ID })
	e.logger.Info("day canceled",
		"date", date.String(),
		"flights", len(flights),
		"reservations", len(canceled),
	)
	return canceled, nil
}

// releaseSeats removes the reservation's id from every flight it still
// holds, one flight lock at a time.
func (e *Engine) releaseSeats(r *reservation) {
	for _, flightID := range r.flights {
		e.flightsMu.Lock()
		f := e.flightsByID[flightID]
		e.flightsMu.Unlock()
		if f == nil {
			continue
		}
		f.mu.Lock()
		delete(f.reservations, r.id)
		f.mu.Unlock()
	}
}
