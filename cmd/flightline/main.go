// Copyright 2026 The Flightline Authors
// SPDX-License-Identifier: Apache-2.0

// Flightline is the command-line client for the flight reservation
// server. Each invocation opens one connection, performs one
// operation, and exits; operations that require an account log in
// first with --username and a prompted (or file-provided) password.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/flightline-io/flightline/booking"
	"github.com/flightline-io/flightline/client"
	"github.com/flightline-io/flightline/lib/version"
)

const usage = `Usage: flightline [flags] <command> [args]

Commands:
  register <username>                    create an account (prompts for a password)
  passwd                                 change the logged-in account's password
  routes                                 list all published routes
  paths <origin> <destination>           list ways to fly between two cities
  add-route <origin> <destination> <capacity>
                                         publish a route (admin)
  cancel-day <date>                      cancel all flights on a date (admin)
  reserve <city> <city> [city...] --from <date> --to <date>
                                         book an itinerary inside a date window
  reservations                           list your reservations
  cancel <reservation-id>                cancel one of your reservations
  notifications                          read and clear your notifications

Flags:
      --server string          server address (default "localhost:12345")
  -u, --username string        account to log in as
      --password-file string   read the password from this file instead of prompting
      --version                print version information and exit
`

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flags := pflag.NewFlagSet("flightline", pflag.ContinueOnError)
	flags.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	serverAddress := flags.String("server", "localhost:12345", "server address")
	username := flags.StringP("username", "u", "", "account to log in as")
	passwordFile := flags.String("password-file", "", "read the password from this file instead of prompting")
	showVersion := flags.Bool("version", false, "print version information and exit")
	from := flags.String("from", "", "start of the booking window (YYYY-MM-DD)")
	to := flags.String("to", "", "end of the booking window (YYYY-MM-DD)")

	if err := flags.Parse(os.Args[1:]); err != nil {
		return err
	}
	if *showVersion {
		fmt.Printf("flightline %s\n", version.Full())
		return nil
	}
	args := flags.Args()
	if len(args) == 0 {
		flags.Usage()
		return fmt.Errorf("command required")
	}
	command, args := args[0], args[1:]

	apiClient, err := client.Dial(*serverAddress)
	if err != nil {
		return err
	}
	defer apiClient.Exit()

	session := &session{
		client:       apiClient,
		username:     *username,
		passwordFile: *passwordFile,
	}

	switch command {
	case "register":
		return session.register(args)
	case "passwd":
		return session.changePassword(args)
	case "routes":
		return session.routes(args)
	case "paths":
		return session.paths(args)
	case "add-route":
		return session.addRoute(args)
	case "cancel-day":
		return session.cancelDay(args)
	case "reserve":
		return session.reserve(args, *from, *to)
	case "reservations":
		return session.reservations(args)
	case "cancel":
		return session.cancelReservation(args)
	case "notifications":
		return session.notifications(args)
	default:
		flags.Usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

// session carries the dialed client and the credential flags through
// one command's execution.
type session struct {
	client       *client.Client
	username     string
	passwordFile string
}

// login authenticates the connection for commands that need an
// account.
func (s *session) login() error {
	if s.username == "" {
		return fmt.Errorf("this command requires --username")
	}
	password, err := s.password()
	if err != nil {
		return err
	}
	return s.client.Login(s.username, password)
}

// password reads the password from --password-file when given,
// otherwise prompts on the terminal with echo disabled.
func (s *session) password() (string, error) {
	if s.passwordFile != "" && s.passwordFile != "-" {
		data, err := os.ReadFile(s.passwordFile)
		if err != nil {
			return "", fmt.Errorf("reading password file: %w", err)
		}
		return strings.TrimRight(string(data), "\r\n"), nil
	}

	stdinFileDescriptor := int(os.Stdin.Fd())
	if !term.IsTerminal(stdinFileDescriptor) {
		return "", fmt.Errorf("no terminal available for the password prompt (use --password-file)")
	}
	fmt.Fprint(os.Stderr, "Password: ")
	passwordBytes, err := term.ReadPassword(stdinFileDescriptor)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(passwordBytes), nil
}

func (s *session) register(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: flightline register <username>")
	}
	password, err := s.password()
	if err != nil {
		return err
	}
	if err := s.client.Register(args[0], password); err != nil {
		return err
	}
	fmt.Printf("registered %s\n", args[0])
	return nil
}

func (s *session) changePassword(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("usage: flightline passwd")
	}
	if err := s.login(); err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, "New password:")
	newPassword, err := s.password()
	if err != nil {
		return err
	}
	if err := s.client.ChangePassword(newPassword); err != nil {
		return err
	}
	fmt.Println("password changed")
	return nil
}

func (s *session) routes(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("usage: flightline routes")
	}
	routes, err := s.client.Routes()
	if err != nil {
		return err
	}
	for _, route := range routes {
		fmt.Printf("%s -> %s  (capacity %d)\n", route.Origin, route.Destination, route.Capacity)
	}
	return nil
}

func (s *session) paths(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: flightline paths <origin> <destination>")
	}
	root, err := s.client.PathsBetween(args[0], args[1])
	if err != nil {
		return err
	}
	printPaths(root, nil)
	return nil
}

// printPaths walks the path tree and prints one line per complete
// itinerary.
func printPaths(node *booking.PathNode, prefix []string) {
	route := make([]string, len(prefix), len(prefix)+1)
	copy(route, prefix)
	route = append(route, node.City)
	if node.Destination {
		fmt.Println(strings.Join(route, " -> "))
		return
	}
	for _, next := range node.Next {
		printPaths(next, route)
	}
}

func (s *session) addRoute(args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("usage: flightline add-route <origin> <destination> <capacity>")
	}
	capacity, err := strconv.ParseInt(args[2], 10, 32)
	if err != nil {
		return fmt.Errorf("capacity %q is not a number", args[2])
	}
	if err := s.login(); err != nil {
		return err
	}
	route, err := s.client.AddRoute(args[0], args[1], int32(capacity))
	if err != nil {
		return err
	}
	fmt.Printf("added %s -> %s  (capacity %d)\n", route.Origin, route.Destination, route.Capacity)
	return nil
}

func (s *session) cancelDay(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: flightline cancel-day <date>")
	}
	if err := s.login(); err != nil {
		return err
	}
	canceled, err := s.client.CancelDay(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("canceled %s: %d reservations affected\n", args[0], len(canceled))
	for _, reservation := range canceled {
		fmt.Printf("  %s (%s)\n", reservation.ID, reservation.Username)
	}
	return nil
}

func (s *session) reserve(args []string, from, to string) error {
	if len(args) < 2 || from == "" || to == "" {
		return fmt.Errorf("usage: flightline reserve <city> <city> [city...] --from <date> --to <date>")
	}
	if err := s.login(); err != nil {
		return err
	}
	id, err := s.client.Reserve(args, from, to)
	if err != nil {
		return err
	}
	fmt.Printf("reserved %s\n", id)
	return nil
}

func (s *session) reservations(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("usage: flightline reservations")
	}
	if err := s.login(); err != nil {
		return err
	}
	reservations, err := s.client.Reservations()
	if err != nil {
		return err
	}
	for _, reservation := range reservations {
		fmt.Printf("%s  (%d flights)\n", reservation.ID, len(reservation.FlightIDs))
	}
	return nil
}

func (s *session) cancelReservation(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: flightline cancel <reservation-id>")
	}
	if err := s.login(); err != nil {
		return err
	}
	canceled, err := s.client.CancelReservation(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("canceled %s\n", canceled.ID)
	return nil
}

func (s *session) notifications(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("usage: flightline notifications")
	}
	if err := s.login(); err != nil {
		return err
	}
	notifications, err := s.client.Notifications()
	if err != nil {
		return err
	}
	for _, notification := range notifications {
		fmt.Printf("%s  %s\n", notification.At.Format("2006-01-02 15:04"), notification.Message)
	}
	return nil
}
