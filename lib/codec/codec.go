// Copyright 2026 The Flightline Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec is the project's payload serialization: CBOR with Core
// Deterministic Encoding. The wire protocol fixes how frames are laid
// out on the stream; this package fixes how entities (routes, flights,
// reservations, notifications, path trees) are encoded inside frame
// parts. Deterministic encoding means the same logical value always
// produces identical bytes, which keeps round-trip tests and response
// comparisons trivial.
package codec

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// encMode is the CBOR encoder configured with Core Deterministic
// Encoding (RFC 8949 §4.2): sorted map keys, smallest integer
// encoding, no indefinite-length items.
var encMode cbor.EncMode

// decMode is the CBOR decoder configured to accept standard CBOR.
// Unknown fields are silently ignored for forward compatibility.
var decMode cbor.DecMode

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		// When the decoder's target is any, pick map[string]any rather
		// than the CBOR default map[any]any; the project never uses
		// non-string map keys and map[string]any composes with the
		// rest of the standard library.
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v to CBOR using Core Deterministic Encoding.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}
