// Package protocol defines the chat WebSocket protocol types.
// Inbound frames are decoded into a closed set of Event variants; outbound
// frames are plain JSON objects built with NewSendMessage.
package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/aelexs/realtime-chat-client/internal/domain"
)

// FrameType identifies the type of WebSocket frame.
type FrameType string

const (
	// Server -> client
	FrameTypeHistory    FrameType = "history"
	FrameTypeNewMessage FrameType = "new_message"
	FrameTypeUserJoined FrameType = "user_joined"
	FrameTypeUserLeft   FrameType = "user_left"

	// Client -> server
	FrameTypeMessage FrameType = "message"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// notblank rejects strings that are empty once whitespace is trimmed.
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// Message is the wire form of a chat message.
type Message struct {
	ID        ID        `json:"id,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	Username  string    `json:"username" validate:"notblank"`
	Content   string    `json:"content" validate:"notblank"`
	Timestamp Timestamp `json:"timestamp"`
}

// ToDomain converts the wire message into a domain.Message.
func (m Message) ToDomain() domain.Message {
	var id domain.MessageID
	if m.ID != "" {
		id, _ = domain.NewMessageID(string(m.ID))
	}
	return domain.Message{
		ID:        id,
		Username:  m.Username,
		Content:   m.Content,
		Timestamp: time.Time(m.Timestamp),
	}
}

// ID is an opaque message identifier. Servers send either a JSON string or
// a JSON number; both are kept in their canonical text form.
type ID string

// UnmarshalJSON accepts a string, a number, or null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*id = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("id must be a string or number: %w", err)
		}
		*id = ID(n.String())
		return nil
	}
}

// Timestamp is a server-assigned point in time. It decodes from any layout
// in domain.TimestampLayouts or from epoch milliseconds.
type Timestamp time.Time

// UnmarshalJSON accepts a string timestamp, epoch milliseconds, or null.
func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*ts = Timestamp{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		t, err := domain.ParseTimestamp(s)
		if err != nil {
			return err
		}
		*ts = Timestamp(t)
		return nil
	}
	ms, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("timestamp must be a string or epoch millis: %w", err)
	}
	*ts = Timestamp(domain.FromMillis(ms))
	return nil
}

// MarshalJSON encodes the timestamp as RFC 3339.
func (ts Timestamp) MarshalJSON() ([]byte, error) {
	t := time.Time(ts)
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// Outbound is a client -> server frame.
type Outbound struct {
	Type    FrameType `json:"type"`
	Content string    `json:"content"`
}

// NewSendMessage creates the outbound frame for one chat message.
// content must already be normalized.
func NewSendMessage(content string) Outbound {
	return Outbound{Type: FrameTypeMessage, Content: content}
}

// Encode marshals an outbound frame.
func Encode(o Outbound) ([]byte, error) {
	return json.Marshal(o)
}
