// Copyright 2026 The Flightline Authors
// SPDX-License-Identifier: Apache-2.0

// Package booking implements the reservation service's domain core: an
// in-memory inventory of users, routes, flights, and reservations,
// accessed concurrently by every client connection.
//
// Concurrency model: there is no single-writer serialization. Each
// top-level index carries its own lock, date entries and individual
// flights carry nested locks, and every code path acquires them in the
// fixed order
//
//	route index → date map → date entry → flight
//
// releasing in reverse. Seat locks taken during one multi-leg
// reservation attempt are held until that attempt commits or fully
// rolls back, which is what keeps occupancy ≤ capacity at all times,
// even transiently.
//
// Entities cross-reference each other by id through the engine's own
// maps (flights list reservation ids, reservations list flight ids);
// there are no mutual object pointers, so cancellation and rollback
// only ever mutate engine-owned maps.
package booking

import (
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/flightline-io/flightline/lib/clock"
	"github.com/flightline-io/flightline/lib/password"
)

// maxPathDepth bounds the route-graph search: itineraries of more than
// four legs are not discoverable.
const maxPathDepth = 4

// routeKey is the case-folded (origin, destination) identity of a
// route.
type routeKey struct {
	origin      string
	destination string
}

// foldCity canonicalizes a city name for keying. Route identity and
// path search are case-insensitive; display strings keep their
// original spelling.
func foldCity(name string) string {
	return strings.ToLower(name)
}

// user is an account. Mutable state is guarded by the per-user mutex;
// the engine's user index lock only guards the index itself.
type user struct {
	username string

	mu            sync.Mutex
	digest        string
	admin         bool
	reservations  map[uuid.UUID]struct{}
	notifications []Notification
}

// flight is one route flown on one date. Occupancy is the size of the
// reservations set; a multi-leg attempt that has claimed a seat but
// not yet committed holds mu instead, so the set only ever grows under
// a capacity check. closed marks a flight drained by day cancellation;
// a claim racing the cancellation finds it and walks on.
type flight struct {
	id    uuid.UUID
	route Route
	date  Date

	mu           sync.Mutex
	closed       bool
	reservations map[uuid.UUID]struct{}
}

// dayFlights is one date's entry in the flight index. closed is set
// when the date is canceled: a reservation attempt that raced past the
// canceled-day check finds the entry closed and treats the date as
// unusable instead of resurrecting it.
type dayFlights struct {
	mu      sync.RWMutex
	closed  bool
	flights map[routeKey]*flight
}

// reservation is one committed itinerary.
type reservation struct {
	id       uuid.UUID
	username string
	flights  []uuid.UUID
}

// Engine is the booking engine: the single authoritative in-memory
// state, shared by every connection handler.
type Engine struct {
	clock  clock.Clock
	logger *slog.Logger

	usersMu sync.RWMutex
	users   map[string]*user

	routesMu sync.RWMutex
	// routesByOrigin maps folded origin city → folded destination
	// city → route.
	routesByOrigin map[string]map[string]Route

	flightsMu     sync.Mutex
	flightsByDate map[Date]*dayFlights
	flightsByID   map[uuid.UUID]*flight

	canceledMu   sync.RWMutex
	canceledDays map[Date]struct{}

	reservationsMu sync.Mutex
	reservations   map[uuid.UUID]*reservation
}

// Config configures an Engine.
type Config struct {
	// Clock supplies "today" for date-window validation. Nil means the
	// real clock.
	Clock clock.Clock

	// Logger is used for structured logging. Nil means slog.Default().
	Logger *slog.Logger
}

// NewEngine creates an empty engine.
func NewEngine(config Config) *Engine {
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		clock:          clk,
		logger:         logger,
		users:          make(map[string]*user),
		routesByOrigin: make(map[string]map[string]Route),
		flightsByDate:  make(map[Date]*dayFlights),
		flightsByID:    make(map[uuid.UUID]*flight),
		canceledDays:   make(map[Date]struct{}),
		reservations:   make(map[uuid.UUID]*reservation),
	}
}

// RegisterClient creates a client account with a freshly salted
// password digest. Usernames are unique and case-sensitive.
func (e *Engine) RegisterClient(username, plaintext string) (User, error) {
	return e.register(username, plaintext, false)
}

// RegisterAdmin creates an admin account. Admins are created by
// operator bootstrap, never through the public register operation.
func (e *Engine) RegisterAdmin(username, plaintext string) (User, error) {
	return e.register(username, plaintext, true)
}

func (e *Engine) register(username, plaintext string, admin bool) (User, error) {
	digest, err := password.Hash(plaintext)
	if err != nil {
		return User{}, err
	}

	e.usersMu.Lock()
	defer e.usersMu.Unlock()
	if _, exists := e.users[username]; exists {
		return User{}, newError(CodeUsernameExists, "username already exists: %s", username)
	}
	e.users[username] = &user{
		username:     username,
		digest:       digest,
		admin:        admin,
		reservations: make(map[uuid.UUID]struct{}),
	}
	e.logger.Info("user registered", "username", username, "admin", admin)
	return User{Username: username, Admin: admin}, nil
}

// Authenticate checks a username/password pair and returns the
// account's public view.
func (e *Engine) Authenticate(username, plaintext string) (User, error) {
	account := e.userByName(username)
	if account == nil {
		return User{}, newError(CodeUserNotFound, "user not found: %s", username)
	}

	account.mu.Lock()
	digest := account.digest
	admin := account.admin
	account.mu.Unlock()

	ok, err := password.Verify(plaintext, digest)
	if err != nil {
		return User{}, err
	}
	if !ok {
		return User{}, newError(CodeInvalidCredentials, "invalid credentials for %s", username)
	}
	return User{Username: username, Admin: admin}, nil
}

// ChangePassword replaces the stored digest. The caller is already
// authenticated; no further identity check happens here.
func (e *Engine) ChangePassword(username, plaintext string) error {
	account := e.userByName(username)
	if account == nil {
		return newError(CodeUserNotFound, "user not found: %s", username)
	}
	digest, err := password.Hash(plaintext)
	if err != nil {
		return err
	}
	account.mu.Lock()
	account.digest = digest
	account.mu.Unlock()
	return nil
}

// AddRoute publishes an immutable route. Fails when origin and
// destination are the same city (case-insensitively) or when the pair
// is already registered under case-folding.
func (e *Engine) AddRoute(origin, destination string, capacity int32) (Route, error) {
	originKey := foldCity(origin)
	destinationKey := foldCity(destination)
	if originKey == destinationKey {
		return Route{}, newError(CodeSelfRoute, "route origin and destination are the same city: %s", origin)
	}
	if capacity <= 0 {
		return Route{}, newError(CodeBadRequest, "route capacity must be positive, got %d", capacity)
	}
	route := Route{Origin: origin, Destination: destination, Capacity: capacity}

	e.routesMu.Lock()
	defer e.routesMu.Unlock()
	destinations, ok := e.routesByOrigin[originKey]
	if !ok {
		destinations = make(map[string]Route)
		e.routesByOrigin[originKey] = destinations
	}
	if _, exists := destinations[destinationKey]; exists {
		return Route{}, newError(CodeRouteExists, "route already exists: %s to %s", origin, destination)
	}
	destinations[destinationKey] = route
	e.logger.Info("route added", "origin", origin, "destination", destination, "capacity", capacity)
	return route, nil
}

// Routes returns a snapshot of all published routes, ordered by
// folded (origin, destination).
func (e *Engine) Routes() []Route {
	e.routesMu.RLock()
	defer e.routesMu.RUnlock()

	var routes []Route
	for _, destinations := range e.routesByOrigin {
		for _, route := range destinations {
			routes = append(routes, route)
		}
	}
	sort.Slice(routes, func(i, j int) bool {
		a := routeKey{foldCity(routes[i].Origin), foldCity(routes[i].Destination)}
		b := routeKey{foldCity(routes[j].Origin), foldCity(routes[j].Destination)}
		if a.origin != b.origin {
			return a.origin < b.origin
		}
		return a.destination < b.destination
	})
	return routes
}

// ReservationsOf returns a snapshot of the user's reservations,
// ordered by id.
func (e *Engine) ReservationsOf(username string) ([]Reservation, error) {
	account := e.userByName(username)
	if account == nil {
		return nil, newError(CodeUserNotFound, "user not found: %s", username)
	}

	account.mu.Lock()
	ids := make([]uuid.UUID, 0, len(account.reservations))
	for id := range account.reservations {
		ids = append(ids, id)
	}
	account.mu.Unlock()

	e.reservationsMu.Lock()
	snapshots := make([]Reservation, 0, len(ids))
	for _, id := range ids {
		if r, ok := e.reservations[id]; ok {
			snapshots = append(snapshots, r.snapshot())
		}
	}
	e.reservationsMu.Unlock()

	sort.Slice(snapshots, func(i, j int) bool { return snapshots[i].ID < snapshots[j].ID })
	return snapshots, nil
}

// FlightsOn returns a snapshot of the flights scheduled on a date,
// ordered by folded (origin, destination). A canceled or flightless
// date yields nothing.
func (e *Engine) FlightsOn(date Date) []Flight {
	e.flightsMu.Lock()
	day := e.flightsByDate[date]
	e.flightsMu.Unlock()
	if day == nil {
		return nil
	}

	day.mu.RLock()
	flights := make([]*flight, 0, len(day.flights))
	for _, f := range day.flights {
		flights = append(flights, f)
	}
	day.mu.RUnlock()

	snapshots := make([]Flight, 0, len(flights))
	for _, f := range flights {
		f.mu.Lock()
		snapshots = append(snapshots, f.snapshotLocked())
		f.mu.Unlock()
	}
	sort.Slice(snapshots, func(i, j int) bool {
		a := routeKey{foldCity(snapshots[i].Route.Origin), foldCity(snapshots[i].Route.Destination)}
		b := routeKey{foldCity(snapshots[j].Route.Origin), foldCity(snapshots[j].Route.Destination)}
		if a.origin != b.origin {
			return a.origin < b.origin
		}
		return a.destination < b.destination
	})
	return snapshots
}

// DrainNotifications returns the user's queued notifications in FIFO
// order and clears the queue.
func (e *Engine) DrainNotifications(username string) ([]Notification, error) {
	account := e.userByName(username)
	if account == nil {
		return nil, newError(CodeUserNotFound, "user not found: %s", username)
	}
	account.mu.Lock()
	defer account.mu.Unlock()
	drained := account.notifications
	account.notifications = nil
	return drained, nil
}

// userByName resolves a username under the index read lock.
func (e *Engine) userByName(username string) *user {
	e.usersMu.RLock()
	defer e.usersMu.RUnlock()
	return e.users[username]
}

// routeBetween resolves one leg's route. Callers must hold routesMu
// (read) — it touches the index without locking so that multi-leg
// resolution holds the lock once.
func (e *Engine) routeBetweenLocked(origin, destination string) (Route, bool) {
	destinations, ok := e.routesByOrigin[foldCity(origin)]
	if !ok {
		return Route{}, false
	}
	route, ok := destinations[foldCity(destination)]
	return route, ok
}

// snapshot converts the internal reservation to its public view.
func (r *reservation) snapshot() Reservation {
	ids := make([]string, 0, len(r.flights))
	for _, id := range r.flights {
		ids = append(ids, id.String())
	}
	sort.Strings(ids)
	return Reservation{ID: r.id.String(), Username: r.username, FlightIDs: ids}
}

// snapshotLocked converts the flight to its public view. Callers hold
// the flight's mutex.
func (f *flight) snapshotLocked() Flight {
	ids := make([]string, 0, len(f.reservations))
	for id := range f.reservations {
		ids = append(ids, id.String())
	}
	sort.Strings(ids)
	return Flight{
		ID:             f.id.String(),
		Route:          f.route,
		Date:           f.date.String(),
		ReservationIDs: ids,
	}
}
