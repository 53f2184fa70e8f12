// Copyright 2026 The Flightline Authors
// SPDX-License-Identifier: Apache-2.0

package booking

import (
	"github.com/google/uuid"
)

// Reserve books a multi-leg itinerary for the user: one seat on one
// flight per consecutive city pair, all flown within [start, end].
//
// Legs are attempted in order. For the current leg the date walk moves
// forward from the previous leg's date, skipping canceled days, taking
// the first flight with a spare seat; a full flight advances the walk
// one day. When the walk passes end before a leg is seated, every seat
// provisionally taken by this attempt is released and the call fails
// with CodeBookingNotPossible.
//
// A flight's lock is taken when its seat is claimed and held until the
// whole attempt commits or rolls back; the capacity check and the seat
// claim are therefore atomic against every other attempt touching the
// same flight.
func (e *Engine) Reserve(username string, cities []string, start, end Date) (Reservation, error) {
	if len(cities) < 2 {
		return Reservation{}, newError(CodeBadRequest, "itinerary needs at least two cities, got %d", len(cities))
	}
	today := DateOf(e.clock.Now())
	if start.Before(today) {
		return Reservation{}, newError(CodeInvalidDateRange, "start %s is before today %s", start, today)
	}
	if end.Before(start) {
		return Reservation{}, newError(CodeInvalidDateRange, "end %s is before start %s", end, start)
	}

	account := e.userByName(username)
	if account == nil {
		return Reservation{}, newError(CodeUserNotFound, "user not found: %s", username)
	}

	// Resolve every leg's route up front, under one read hold of the
	// route index. No seats move before this point, so a missing route
	// fails the call with no rollback needed.
	e.routesMu.RLock()
	routes := make([]Route, 0, len(cities)-1)
	for i := 0; i+1 < len(cities); i++ {
		route, ok := e.routeBetweenLocked(cities[i], cities[i+1])
		if !ok {
			e.routesMu.RUnlock()
			return Reservation{}, newError(CodeRouteNotFound, "no route from %s to %s", cities[i], cities[i+1])
		}
		routes = append(routes, route)
	}
	e.routesMu.RUnlock()

	// held collects the flights whose locks this attempt is holding,
	// in acquisition order. Rollback is unlocking them in reverse; no
	// occupancy was published because seats materialize only at
	// commit, under these locks.
	var held []*flight
	unlockAll := func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].mu.Unlock()
		}
	}

	date := start
	for _, route := range routes {
		for {
			if date.After(end) {
				unlockAll()
				return Reservation{}, newError(CodeBookingNotPossible,
					"no itinerary through %d legs fits between %s and %s", len(routes), start, end)
			}
			if e.dayCanceled(date) {
				date = date.Next()
				continue
			}
			f := e.flightAt(date, route)
			if f == nil {
				// The date was canceled between the check above and
				// the index lookup.
				date = date.Next()
				continue
			}
			if heldFlight(held, f) {
				// The itinerary passes through the same route twice on
				// the same date. The attempt already holds this
				// flight's lock and one seat covers both legs.
				break
			}
			f.mu.Lock()
			if f.closed {
				// Drained by a concurrent day cancellation after the
				// lookup returned it.
				f.mu.Unlock()
				date = date.Next()
				continue
			}
			if int32(len(f.reservations)) < f.route.Capacity {
				held = append(held, f)
				break
			}
			f.mu.Unlock()
			date = date.Next()
		}
	}

	// Every leg is seated and locked: commit. The reservation enters
	// the ledger and the user's set before the flight side of the
	// cross-reference, so a concurrent day cancellation that sees the
	// id on a flight always finds it in the ledger.
	r := &reservation{id: uuid.New(), username: username, flights: make([]uuid.UUID, 0, len(held))}
	for _, f := range held {
		r.flights = append(r.flights, f.id)
	}

	e.reservationsMu.Lock()
	e.reservations[r.id] = r
	e.reservationsMu.Unlock()

	account.mu.Lock()
	account.reservations[r.id] = struct{}{}
	account.mu.Unlock()

	for _, f := range held {
		f.reservations[r.id] = struct{}{}
		if int32(len(f.reservations)) > f.route.Capacity {
			// Unreachable under the lock discipline; if it ever fires
			// the engine has oversold a flight.
			e.logger.Error("flight over capacity",
				"flight", f.id.String(),
				"origin", f.route.Origin,
				"destination", f.route.Destination,
				"date", f.date.String(),
				"holders", len(f.reservations),
				"capacity", f.route.Capacity,
			)
		}
	}
	unlockAll()

	e.logger.Info("reservation committed",
		"reservation", r.id.String(),
		"username", username,
		"legs", len(held),
	)
	return r.snapshot(), nil
}

// dayCanceled reports whether date is closed to new bookings.
func (e *Engine) dayCanceled(date Date) bool {
	e.canceledMu.RLock()
	defer e.canceledMu.RUnlock()
	_, canceled := e.canceledDays[date]
	return canceled
}

// flightAt returns the flight for (date, route), creating it if
// absent, without taking its seat lock. Returns nil when the date is
// closed: a canceled date's entry must never be resurrected.
func (e *Engine) flightAt(date Date, route Route) *flight {
	key := routeKey{foldCity(route.Origin), foldCity(route.Destination)}

	e.flightsMu.Lock()
	defer e.flightsMu.Unlock()

	// Re-check cancellation under the index lock: the day may have
	// been canceled since the caller's check, and the cancellation
	// path removes the date's entry under this same lock.
	if e.dayCanceled(date) {
		return nil
	}

	day, ok := e.flightsByDate[date]
	if !ok {
		day = &dayFlights{flights: make(map[routeKey]*flight)}
		e.flightsByDate[date] = day
	}

	day.mu.Lock()
	defer day.mu.Unlock()
	if day.closed {
		return nil
	}
	f, ok := day.flights[key]
	if !ok {
		f = &flight{
			id:           uuid.New(),
			route:        route,
			date:         date,
			reservations: make(map[uuid.UUID]struct{}),
		}
		day.flights[key] = f
		e.flightsByID[f.id] = f
	}
	return f
}

// heldFlight reports whether the attempt already holds this flight.
func heldFlight(held []*flight, f *flight) bool {
	for _, h := range held {
		if h == f {
			return true
		}
	}
	return false
}
