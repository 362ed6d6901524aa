package domain

import (
	"fmt"
	"strings"
	"time"
)

// Message is one chat message as delivered by the server.
// Messages are immutable once received.
type Message struct {
	ID        MessageID
	Username  string
	Content   string
	Timestamp time.Time
}

// NormalizeContent trims locally authored content and rejects it when
// nothing is left or it exceeds MaxContentSize.
func NormalizeContent(raw string) (string, error) {
	content := strings.TrimSpace(raw)
	if content == "" {
		return "", fmt.Errorf("empty message: %w", ErrInvalidInput)
	}
	if len(content) > MaxContentSize {
		return "", fmt.Errorf("message is %d bytes, max %d: %w", len(content), MaxContentSize, ErrInvalidInput)
	}
	return content, nil
}

// ParseTimestamp parses a server timestamp using TimestampLayouts.
// Layouts without a zone are interpreted as UTC. An empty string yields the
// zero time.
func ParseTimestamp(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	for _, layout := range TimestampLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("timestamp %q: %w", raw, ErrInvalidInput)
}
