// Copyright 2026 The Flightline Authors
// SPDX-License-Identifier: Apache-2.0

// Package password is the credential digest service: hash a password
// into a salted digest at registration, verify a presented password
// against the stored digest at login. Callers never see the digest
// format; it is an opaque string produced and consumed here.
package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// cost is the bcrypt work factor.
const cost = bcrypt.DefaultCost

// Hash derives a salted digest from a plaintext password. Each call
// produces a different digest for the same password (fresh salt).
func Hash(plaintext string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), cost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(digest), nil
}

// Verify reports whether plaintext matches the stored digest. A
// mismatch is a normal outcome, not an error; errors are reserved for
// corrupt digests.
func Verify(plaintext, digest string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, fmt.Errorf("verifying password digest: %w", err)
}
