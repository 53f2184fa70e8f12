// Copyright 2026 The Flightline Authors
// SPDX-License-Identifier: Apache-2.0

package booking

import (
	"fmt"
	"sync"
	"testing"
)

func TestReserveBooksOneSeatPerLeg(t *testing.T) {
	t.Parallel()
	engine := newTestEngine(t)
	mustRegister(t, engine, "amelia")
	mustAddRoute(t, engine, "Lisbon", "Madrid", 5)
	mustAddRoute(t, engine, "Madrid", "Paris", 5)

	r, err := engine.Reserve("amelia", []string{"Lisbon", "Madrid", "Paris"}, date(t, "2026-10-02"), date(t, "2026-10-04"))
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if r.Username != "amelia" {
		t.Errorf("Username = %q", r.Username)
	}
	if len(r.FlightIDs) != 2 {
		t.Fatalf("reservation holds %d flights, want 2", len(r.FlightIDs))
	}

	reservations, err := engine.ReservationsOf("amelia")
	if err != nil {
		t.Fatalf("ReservationsOf: %v", err)
	}
	if len(reservations) != 1 || reservations[0].ID != r.ID {
		t.Fatalf("reservations = %+v", reservations)
	}
}

func TestReserveValidation(t *testing.T) {
	t.Parallel()
	engine := newTestEngine(t)
	mustRegister(t, engine, "amelia")
	mustAddRoute(t, engine, "Lisbon", "Madrid", 5)

	tests := []struct {
		name   string
		cities []string
		start  string
		end    string
		want   Code
	}{
		{
			name:   "single city",
			cities: []string{"Lisbon"},
			start:  "2026-10-02", end: "2026-10-02",
			want: CodeBadRequest,
		},
		{
			name:   "start before today",
			cities: []string{"Lisbon", "Madrid"},
			start:  "2026-09-30", end: "2026-10-02",
			want: CodeInvalidDateRange,
		},
		{
			name:   "end before start",
			cities: []string{"Lisbon", "Madrid"},
			start:  "2026-10-04", end: "2026-10-02",
			want: CodeInvalidDateRange,
		},
		{
			name:   "unknown route",
			cities: []string{"Lisbon", "Berlin"},
			start:  "2026-10-02", end: "2026-10-02",
			want: CodeRouteNotFound,
		},
	}
	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			_, err := engine.Reserve("amelia", test.cities, date(t, test.start), date(t, test.end))
			if !IsCode(err, test.want) {
				t.Fatalf("Reserve: %v, want %s", err, test.want)
			}
		})
	}

	if _, err := engine.Reserve("nobody", []string{"Lisbon", "Madrid"}, date(t, "2026-10-02"), date(t, "2026-10-02")); !IsCode(err, CodeUserNotFound) {
		t.Fatalf("unknown user: %v, want %s", err, CodeUserNotFound)
	}
}

func TestReserveStartingTodayIsAllowed(t *testing.T) {
	t.Parallel()
	engine := newTestEngine(t)
	mustRegister(t, engine, "amelia")
	mustAddRoute(t, engine, "Lisbon", "Madrid", 5)

	if _, err := engine.Reserve("amelia", []string{"Lisbon", "Madrid"}, date(t, "2026-10-01"), date(t, "2026-10-01")); err != nil {
		t.Fatalf("Reserve starting today: %v", err)
	}
}

func TestReserveWalksDatesPastFullFlights(t *testing.T) {
	t.Parallel()
	engine := newTestEngine(t)
	mustRegister(t, engine, "amelia")
	mustAddRoute(t, engine, "Lisbon", "Madrid", 1)

	// Capacity one, three-day window: each booking fills a day and
	// pushes the next one forward.
	for day := 0; day < 3; day++ {
		if _, err := engine.Reserve("amelia", []string{"Lisbon", "Madrid"}, date(t, "2026-10-02"), date(t, "2026-10-04")); err != nil {
			t.Fatalf("Reserve %d: %v", day, err)
		}
	}
	if _, err := engine.Reserve("amelia", []string{"Lisbon", "Madrid"}, date(t, "2026-10-02"), date(t, "2026-10-04")); !IsCode(err, CodeBookingNotPossible) {
		t.Fatalf("fourth Reserve: %v, want %s", err, CodeBookingNotPossible)
	}
}

func TestReserveSameFlightTwiceSharesTheSeat(t *testing.T) {
	t.Parallel()
	engine := newTestEngine(t)
	mustRegister(t, engine, "amelia")
	mustAddRoute(t, engine, "Lisbon", "Madrid", 1)
	mustAddRoute(t, engine, "Madrid", "Lisbon", 1)

	// A one-day window forces all three legs onto the same date, so the
	// first and third leg land on the same Lisbon-Madrid flight. The
	// attempt must not deadlock on the flight it already holds, and one
	// seat covers both legs.
	r, err := engine.Reserve("amelia", []string{"Lisbon", "Madrid", "Lisbon", "Madrid"}, date(t, "2026-10-02"), date(t, "2026-10-02"))
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if len(r.FlightIDs) != 2 {
		t.Fatalf("reservation holds %d distinct flights, want 2", len(r.FlightIDs))
	}

	// Both capacity-one flights are now full.
	if _, err := engine.Reserve("amelia", []string{"Lisbon", "Madrid"}, date(t, "2026-10-02"), date(t, "2026-10-02")); !IsCode(err, CodeBookingNotPossible) {
		t.Fatalf("Reserve on full flight: %v, want %s", err, CodeBookingNotPossible)
	}
}

func TestReserveRollbackReleasesSeats(t *testing.T) {
	t.Parallel()
	engine := newTestEngine(t)
	mustRegister(t, engine, "amelia")
	mustAddRoute(t, engine, "Lisbon", "Madrid", 1)
	mustAddRoute(t, engine, "Madrid", "Berlin", 1)

	// Fill the second leg so a two-leg attempt seats leg one, fails leg
	// two, and must roll the first seat back.
	if _, err := engine.Reserve("amelia", []string{"Madrid", "Berlin"}, date(t, "2026-10-02"), date(t, "2026-10-02")); err != nil {
		t.Fatalf("filling Madrid-Berlin: %v", err)
	}
	if _, err := engine.Reserve("amelia", []string{"Lisbon", "Madrid", "Berlin"}, date(t, "2026-10-02"), date(t, "2026-10-02")); !IsCode(err, CodeBookingNotPossible) {
		t.Fatalf("two-leg attempt: %v, want %s", err, CodeBookingNotPossible)
	}

	// The failed attempt's Lisbon-Madrid seat is free again.
	if _, err := engine.Reserve("amelia", []string{"Lisbon", "Madrid"}, date(t, "2026-10-02"), date(t, "2026-10-02")); err != nil {
		t.Fatalf("Reserve after rollback: %v", err)
	}
}

func TestConcurrentReservesNeverOversell(t *testing.T) {
	t.Parallel()
	engine := newTestEngine(t)

	const capacity = 3
	const attempts = 24

	mustAddRoute(t, engine, "Lisbon", "Madrid", capacity)
	for i := 0; i < attempts; i++ {
		mustRegister(t, engine, fmt.Sprintf("traveler-%d", i))
	}

	errs := make([]error, attempts)
	var group sync.WaitGroup
	for i := 0; i < attempts; i++ {
		i := i
		group.Add(1)
		go func() {
			defer group.Done()
			_, errs[i] = engine.Reserve(fmt.Sprintf("traveler-%d", i),
				[]string{"Lisbon", "Madrid"}, date(t, "2026-10-02"), date(t, "2026-10-02"))
		}()
	}
	group.Wait()

	var won, lost int
	for i, err := range errs {
		switch {
		case err == nil:
			won++
		case IsCode(err, CodeBookingNotPossible):
			lost++
		default:
			t.Fatalf("attempt %d unexpected error: %v", i, err)
		}
	}
	if won != capacity || lost != attempts-capacity {
		t.Fatalf("won=%d lost=%d, want %d/%d", won, lost, capacity, attempts-capacity)
	}
}

func TestConcurrentMultiLegReservesRollBackCleanly(t *testing.T) {
	t.Parallel()
	engine := newTestEngine(t)

	// Two two-leg itineraries compete for the shared Madrid-Paris
	// flight in a one-day window; whichever loses must release its
	// first-leg seat.
	mustAddRoute(t, engine, "Lisbon", "Madrid", 2)
	mustAddRoute(t, engine, "Madrid", "Paris", 1)
	mustRegister(t, engine, "amelia")
	mustRegister(t, engine, "bruno")

	errs := make([]error, 2)
	var group sync.WaitGroup
	for i, username := range []string{"amelia", "bruno"} {
		i, username := i, username
		group.Add(1)
		go func() {
			defer group.Done()
			_, errs[i] = engine.Reserve(username,
				[]string{"Lisbon", "Madrid", "Paris"}, date(t, "2026-10-02"), date(t, "2026-10-02"))
		}()
	}
	group.Wait()

	var won, lost int
	for i, err := range errs {
		switch {
		case err == nil:
			won++
		case IsCode(err, CodeBookingNotPossible):
			lost++
		default:
			t.Fatalf("attempt %d unexpected error: %v", i, err)
		}
	}
	if won != 1 || lost != 1 {
		t.Fatalf("won=%d lost=%d, want 1/1", won, lost)
	}

	// The loser's rollback freed one Lisbon-Madrid seat: exactly one
	// of the two is taken.
	if _, err := engine.Reserve("bruno", []string{"Lisbon", "Madrid"}, date(t, "2026-10-02"), date(t, "2026-10-02")); err != nil {
		t.Fatalf("Reserve into rolled-back seat: %v", err)
	}
	if _, err := engine.Reserve("bruno", []string{"Lisbon", "Madrid"}, date(t, "2026-10-02"), date(t, "2026-10-02")); !IsCode(err, CodeBookingNotPossible) {
		t.Fatalf("Reserve on full flight: %v, want %s", err, CodeBookingNotPossible)
	}
}
