// Package id mints the random identifiers the engine hands out.
package id

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"strings"
)

// encoding is base32 without padding so ids stay URL- and filename-safe.
var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewID returns a fresh 26-character lowercase identifier.
//
// The underlying bytes form a v4 UUID, so ids are globally unique without
// coordination; base32 keeps them shorter than hex and free of dashes.
func NewID() (string, error) {
	uuid, err := randomUUID()
	if err != nil {
		return "", err
	}
	return strings.ToLower(encoding.EncodeToString(uuid[:])), nil
}

func randomUUID() ([16]byte, error) {
	var raw [16]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return raw, fmt.Errorf("read random bytes: %w", err)
	}
	// RFC 4122 version 4, variant 10.
	raw[6] = (raw[6] & 0x0f) | 0x40
	raw[8] = (raw[8] & 0x3f) | 0x80
	return raw, nil
}
