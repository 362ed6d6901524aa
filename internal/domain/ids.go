// Package domain contains the client's core types and error taxonomy.
// No transport or framework dependencies - everything else builds on it.
package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Username is a value object representing a chat participant's name.
// Always trimmed and non-empty in memory - use NewUsername to construct.
type Username struct {
	value string
}

// NewUsername trims raw and rejects names that are empty afterwards.
func NewUsername(raw string) (Username, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Username{}, fmt.Errorf("username %q: %w", raw, ErrInvalidInput)
	}
	return Username{value: trimmed}, nil
}

// MustUsername creates a Username, panicking on invalid input. Use only in tests.
func MustUsername(raw string) Username {
	u, err := NewUsername(raw)
	if err != nil {
		panic(err)
	}
	return u
}

func (u Username) String() string { return u.value }
func (u Username) IsZero() bool   { return u.value == "" }

// Identity is a resolved, registered participant. It is immutable for the
// lifetime of a session.
type Identity struct {
	// ID is the directory's record id. Opaque; empty if the directory
	// did not return one.
	ID       string
	Username Username
}

// MessageID is an opaque, server-assigned message identifier.
// The zero value means the server did not assign one.
type MessageID struct {
	value string
}

// NewMessageID wraps a raw identifier. Any non-empty string is accepted.
func NewMessageID(raw string) (MessageID, error) {
	if raw == "" {
		return MessageID{}, ErrEmptyID
	}
	return MessageID{value: raw}, nil
}

func (id MessageID) String() string { return id.value }
func (id MessageID) IsZero() bool   { return id.value == "" }

// ConnectionID identifies one connection lifetime in logs.
type ConnectionID struct {
	value string
}

// GenerateConnectionID creates a new random ConnectionID.
func GenerateConnectionID() ConnectionID {
	return ConnectionID{value: uuid.NewString()}
}

func (id ConnectionID) String() string { return id.value }
func (id ConnectionID) IsZero() bool   { return id.value == "" }
