// Package cursor mints and checks the opaque page tokens used by roll
// listings.
//
// A token pins three things: the guild-scoped roll id to resume from, the
// travel direction, and short hashes of the filter and order_by it was
// minted under. Replaying a token against a different query fails instead
// of silently returning the wrong page.
package cursor

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Direction says which side of the pinned roll id the next page lives on.
type Direction string

const (
	// DirectionForward resumes with ids above the pinned one.
	DirectionForward Direction = "fwd"
	// DirectionBackward resumes with ids below the pinned one.
	DirectionBackward Direction = "bwd"
)

// Cursor is the decoded form of a page token.
type Cursor struct {
	RollID     int64     `json:"id"`
	Dir        Direction `json:"dir"`
	FilterHash string    `json:"filter_hash,omitempty"`
	OrderHash  string    `json:"order_hash,omitempty"`
}

// NewNextPageCursor pins the last roll of a page. Ascending listings resume
// forward from it, descending listings backward.
func NewNextPageCursor(lastID int64, descending bool, filter, orderBy string) Cursor {
	dir := DirectionForward
	if descending {
		dir = DirectionBackward
	}
	return Cursor{
		RollID:     lastID,
		Dir:        dir,
		FilterHash: hashComponent(filter),
		OrderHash:  hashComponent(orderBy),
	}
}

// Encode renders the cursor as an opaque URL-safe token.
func (c Cursor) Encode() (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode cursor: %w", err)
	}
	return base64.URLEncoding.EncodeToString(data), nil
}

// Decode parses a page token back into a Cursor, rejecting anything that is
// not a well-formed token with a known direction.
func Decode(token string) (Cursor, error) {
	if token == "" {
		return Cursor{}, fmt.Errorf("page token is empty")
	}
	data, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("decode page token: %w", err)
	}
	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return Cursor{}, fmt.Errorf("page token payload: %w", err)
	}
	switch c.Dir {
	case DirectionForward, DirectionBackward:
	default:
		return Cursor{}, fmt.Errorf("unknown cursor direction %q", c.Dir)
	}
	return c, nil
}

// Validate confirms the token was minted under the same filter and order_by
// the caller is using now.
func Validate(c Cursor, filter, orderBy string) error {
	if c.FilterHash != hashComponent(filter) {
		return fmt.Errorf("cursor was minted for a different filter")
	}
	if c.OrderHash != hashComponent(orderBy) {
		return fmt.Errorf("cursor was minted for a different order_by")
	}
	return nil
}

// hashComponent shortens a query component to a 64-bit hex digest. Empty
// components stay empty so zero-value cursors match zero-value queries.
func hashComponent(value string) string {
	if value == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:8])
}
