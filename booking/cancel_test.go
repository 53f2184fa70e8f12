// Copyright 2026 The Flightline Authors
// SPDX-License-Identifier: Apache-2.0

package booking

import (
	"testing"
)

func TestCancelReservationReleasesSeats(t *testing.T) {
	t.Parallel()
	engine := newTestEngine(t)
	mustRegister(t, engine, "amelia")
	mustAddRoute(t, engine, "Lisbon", "Madrid", 1)

	r, err := engine.Reserve("amelia", []string{"Lisbon", "Madrid"}, date(t, "2026-10-02"), date(t, "2026-10-02"))
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}

	canceled, err := engine.CancelReservation("amelia", r.ID)
	if err != nil {
		t.Fatalf("CancelReservation: %v", err)
	}
	if canceled.ID != r.ID || canceled.Username != "amelia" {
		t.Fatalf("canceled = %+v", canceled)
	}

	reservations, err := engine.ReservationsOf("amelia")
	if err != nil {
		t.Fatalf("ReservationsOf: %v", err)
	}
	if len(reservations) != 0 {
		t.Fatalf("reservations = %+v, want none", reservations)
	}

	// The capacity-one seat is bookable again.
	if _, err := engine.Reserve("amelia", []string{"Lisbon", "Madrid"}, date(t, "2026-10-02"), date(t, "2026-10-02")); err != nil {
		t.Fatalf("Reserve after cancel: %v", err)
	}
}

func TestCancelReservationOnlyByOwner(t *testing.T) {
	t.Parallel()
	engine := newTestEngine(t)
	mustRegister(t, engine, "amelia")
	mustRegister(t, engine, "bruno")
	mustAddRoute(t, engine, "Lisbon", "Madrid", 1)

	r, err := engine.Reserve("amelia", []string{"Lisbon", "Madrid"}, date(t, "2026-10-02"), date(t, "2026-10-02"))
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}

	if _, err := engine.CancelReservation("bruno", r.ID); !IsCode(err, CodeNotOwner) {
		t.Fatalf("cancel by non-owner: %v, want %s", err, CodeNotOwner)
	}

	// The failed cancel left the reservation fully intact: it is still
	// listed, and its seat is still taken.
	reservations, err := engine.ReservationsOf("amelia")
	if err != nil {
		t.Fatalf("ReservationsOf: %v", err)
	}
	if len(reservations) != 1 || reservations[0].ID != r.ID {
		t.Fatalf("reservations = %+v", reservations)
	}
	if _, err := engine.Reserve("bruno", []string{"Lisbon", "Madrid"}, date(t, "2026-10-02"), date(t, "2026-10-02")); !IsCode(err, CodeBookingNotPossible) {
		t.Fatalf("Reserve on still-full flight: %v, want %s", err, CodeBookingNotPossible)
	}

	// The owner can still cancel it afterwards.
	if _, err := engine.CancelReservation("amelia", r.ID); err != nil {
		t.Fatalf("CancelReservation by owner: %v", err)
	}
}

func TestCancelReservationErrors(t *testing.T) {
	t.Parallel()
	engine := newTestEngine(t)
	mustRegister(t, engine, "amelia")

	if _, err := engine.CancelReservation("amelia", "not-a-uuid"); !IsCode(err, CodeBadRequest) {
		t.Fatalf("malformed id: %v, want %s", err, CodeBadRequest)
	}
	if _, err := engine.CancelReservation("amelia", "7bb1f99e-3c06-47ed-8f5c-1f3355f2a9d0"); !IsCode(err, CodeReservationNotFound) {
		t.Fatalf("unknown id: %v, want %s", err, CodeReservationNotFound)
	}
}

func TestCancelDayCascades(t *testing.T) {
	t.Parallel()
	engine := newTestEngine(t)
	mustRegister(t, engine, "amelia")
	mustRegister(t, engine, "bruno")
	mustAddRoute(t, engine, "Lisbon", "Madrid", 1)
	mustAddRoute(t, engine, "Madrid", "Paris", 1)

	// Amelia's itinerary spans two days; only the first is canceled.
	r, err := engine.Reserve("amelia", []string{"Lisbon", "Madrid", "Paris"}, date(t, "2026-10-02"), date(t, "2026-10-03"))
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}

	canceled, err := engine.CancelDay(date(t, "2026-10-02"))
	if err != nil {
		t.Fatalf("CancelDay: %v", err)
	}
	if len(canceled) != 1 || canceled[0].ID != r.ID {
		t.Fatalf("canceled = %+v, want reservation %s", canceled, r.ID)
	}

	if _, err := engine.CancelDay(date(t, "2026-10-02")); !IsCode(err, CodeDayCanceled) {
		t.Fatalf("second CancelDay: %v, want %s", err, CodeDayCanceled)
	}

	reservations, err := engine.ReservationsOf("amelia")
	if err != nil {
		t.Fatalf("ReservationsOf: %v", err)
	}
	if len(reservations) != 0 {
		t.Fatalf("reservations = %+v, want none", reservations)
	}

	notifications, err := engine.DrainNotifications("amelia")
	if err != nil {
		t.Fatalf("DrainNotifications: %v", err)
	}
	if len(notifications) != 1 {
		t.Fatalf("got %d notifications, want 1", len(notifications))
	}

	// The cascade released the second-day leg too: bruno can now book
	// the capacity-one Madrid-Paris flight on the 3rd.
	if _, err := engine.Reserve("bruno", []string{"Madrid", "Paris"}, date(t, "2026-10-03"), date(t, "2026-10-03")); err != nil {
		t.Fatalf("Reserve on freed second-day seat: %v", err)
	}

	// The canceled day itself refuses new bookings forever.
	if _, err := engine.Reserve("bruno", []string{"Lisbon", "Madrid"}, date(t, "2026-10-02"), date(t, "2026-10-02")); !IsCode(err, CodeBookingNotPossible) {
		t.Fatalf("Reserve on canceled day: %v, want %s", err, CodeBookingNotPossible)
	}
}

func TestCancelDayWithNoFlights(t *testing.T) {
	t.Parallel()
	engine := newTestEngine(t)

	canceled, err := engine.CancelDay(date(t, "2026-10-02"))
	if err != nil {
		t.Fatalf("CancelDay: %v", err)
	}
	if len(canceled) != 0 {
		t.Fatalf("canceled = %+v, want none", canceled)
	}
}

func TestCancelDayRacesNonOwnerCancel(t *testing.T) {
	t.Parallel()
	engine := newTestEngine(t)
	mustRegister(t, engine, "owner")
	mustRegister(t, engine, "intruder")
	mustAddRoute(t, engine, "Lisbon", "Madrid", 1)

	// A non-owner cancel must never remove the ledger entry, not even
	// transiently: a day cancellation running in that window would take
	// the already-torn-down branch and leave a live reservation whose
	// flight is destroyed. Hammer the non-owner cancel against the day
	// cancellation across many fresh days.
	day := date(t, "2026-10-02")
	for iteration := 0; iteration < 200; iteration++ {
		r, err := engine.Reserve("owner", []string{"Lisbon", "Madrid"}, day, day)
		if err != nil {
			t.Fatalf("iteration %d Reserve: %v", iteration, err)
		}

		stop := make(chan struct{})
		hammering := make(chan struct{})
		go func() {
			defer close(hammering)
			for {
				select {
				case <-stop:
					return
				default:
				}
				if _, err := engine.CancelReservation("intruder", r.ID); err == nil {
					t.Errorf("iteration %d: non-owner cancel succeeded", iteration)
					return
				}
			}
		}()

		if _, err := engine.CancelDay(day); err != nil {
			t.Fatalf("iteration %d CancelDay: %v", iteration, err)
		}
		close(stop)
		<-hammering

		reservations, err := engine.ReservationsOf("owner")
		if err != nil {
			t.Fatalf("iteration %d ReservationsOf: %v", iteration, err)
		}
		for _, kept := range reservations {
			if kept.ID == r.ID {
				t.Fatalf("iteration %d: reservation %s survived cancellation of its only flight's day", iteration, r.ID)
			}
		}

		day = day.Next()
	}

	// Every iteration's cascade reached the owner.
	notifications, err := engine.DrainNotifications("owner")
	if err != nil {
		t.Fatalf("DrainNotifications: %v", err)
	}
	if len(notifications) != 200 {
		t.Fatalf("got %d notifications, want 200", len(notifications))
	}
}

func TestCancelDaySkipsOwnerCanceledReservations(t *testing.T) {
	t.Parallel()
	engine := newTestEngine(t)
	mustRegister(t, engine, "amelia")
	mustRegister(t, engine, "bruno")
	mustAddRoute(t, engine, "Lisbon", "Madrid", 2)

	kept, err := engine.Reserve("bruno", []string{"Lisbon", "Madrid"}, date(t, "2026-10-02"), date(t, "2026-10-02"))
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	gone, err := engine.Reserve("amelia", []string{"Lisbon", "Madrid"}, date(t, "2026-10-02"), date(t, "2026-10-02"))
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if _, err := engine.CancelReservation("amelia", gone.ID); err != nil {
		t.Fatalf("CancelReservation: %v", err)
	}

	canceled, err := engine.CancelDay(date(t, "2026-10-02"))
	if err != nil {
		t.Fatalf("CancelDay: %v", err)
	}
	if len(canceled) != 1 || canceled[0].ID != kept.ID {
		t.Fatalf("canceled = %+v, want only %s", canceled, kept.ID)
	}
}
