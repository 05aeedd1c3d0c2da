// Package random draws the high-entropy seeds that make executed rolls
// reproducible: the seed is read from crypto/rand once, then every replay
// of it through a seeded generator lands on the same dice.
package random

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
)

// NewSeed returns 64 bits from the operating system's entropy source.
func NewSeed() (int64, error) {
	var buf [8]byte
	if _, err := crand.Read(buf[:]); err != nil {
		return 0, fmt.Errorf("read seed entropy: %w", err)
	}
	return int64(binary.BigEndian.Uint64(buf[:])), nil
}
