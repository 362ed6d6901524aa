package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/aelexs/realtime-chat-client/internal/domain"
)

// Event is a decoded inbound frame. The set of variants is closed:
// History, NewMessage, UserJoined, UserLeft and Unknown.
type Event interface {
	// FrameType returns the wire tag the event was decoded from.
	FrameType() FrameType
	isEvent()
}

// History replaces the whole message log.
type History struct {
	Messages []domain.Message
}

// NewMessage appends one message to the log.
type NewMessage struct {
	Message domain.Message
}

// UserJoined is a presence notification.
type UserJoined struct {
	Username string
}

// UserLeft is a presence notification.
type UserLeft struct {
	Username string
}

// Unknown is a well-formed frame with a tag this client does not handle.
type Unknown struct {
	Tag FrameType
}

func (History) FrameType() FrameType    { return FrameTypeHistory }
func (NewMessage) FrameType() FrameType { return FrameTypeNewMessage }
func (UserJoined) FrameType() FrameType { return FrameTypeUserJoined }
func (UserLeft) FrameType() FrameType   { return FrameTypeUserLeft }
func (u Unknown) FrameType() FrameType  { return u.Tag }

func (History) isEvent()    {}
func (NewMessage) isEvent() {}
func (UserJoined) isEvent() {}
func (UserLeft) isEvent()   {}
func (Unknown) isEvent()    {}

// envelope is the raw inbound frame before tag dispatch.
type envelope struct {
	Type     FrameType       `json:"type"`
	Messages json.RawMessage `json:"messages"`
	Message  json.RawMessage `json:"message"`
	Username *string         `json:"username"`
}

type historyPayload struct {
	Messages []Message `validate:"required,dive"`
}

type presencePayload struct {
	Username string `validate:"notblank"`
}

// Decode parses one inbound frame. Frames that are not JSON objects, lack a
// type, or carry an invalid payload for a known type fail with
// domain.ErrMalformedFrame. Unrecognized types decode to Unknown.
func Decode(raw []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedFrame, err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("%w: missing type", domain.ErrMalformedFrame)
	}

	switch env.Type {
	case FrameTypeHistory:
		return decodeHistory(env)
	case FrameTypeNewMessage:
		return decodeNewMessage(env)
	case FrameTypeUserJoined, FrameTypeUserLeft:
		return decodePresence(env)
	default:
		return Unknown{Tag: env.Type}, nil
	}
}

func decodeHistory(env envelope) (Event, error) {
	if isAbsent(env.Messages) {
		return nil, fmt.Errorf("%w: history without messages", domain.ErrMalformedFrame)
	}
	messages, err := DecodeMessages(env.Messages)
	if err != nil {
		return nil, fmt.Errorf("history %w", err)
	}
	return History{Messages: messages}, nil
}

// DecodeMessages parses a JSON array of messages, as carried by a history
// frame or returned by the REST history endpoint. Every element is
// validated; any failure is domain.ErrMalformedFrame. null decodes to an
// empty slice.
func DecodeMessages(raw []byte) ([]domain.Message, error) {
	var p historyPayload
	if err := json.Unmarshal(raw, &p.Messages); err != nil {
		return nil, fmt.Errorf("messages: %w: %v", domain.ErrMalformedFrame, err)
	}
	if p.Messages == nil {
		p.Messages = []Message{}
	}
	if err := validate.Struct(p); err != nil {
		return nil, fmt.Errorf("messages: %w: %v", domain.ErrMalformedFrame, err)
	}

	messages := make([]domain.Message, len(p.Messages))
	for i, m := range p.Messages {
		messages[i] = m.ToDomain()
	}
	return messages, nil
}

func decodeNewMessage(env envelope) (Event, error) {
	if isAbsent(env.Message) {
		return nil, fmt.Errorf("%w: new_message without message", domain.ErrMalformedFrame)
	}
	var m Message
	if err := json.Unmarshal(env.Message, &m); err != nil {
		return nil, fmt.Errorf("%w: message: %v", domain.ErrMalformedFrame, err)
	}
	if err := validate.Struct(m); err != nil {
		return nil, fmt.Errorf("%w: message: %v", domain.ErrMalformedFrame, err)
	}
	return NewMessage{Message: m.ToDomain()}, nil
}

func decodePresence(env envelope) (Event, error) {
	if env.Username == nil {
		return nil, fmt.Errorf("%w: %s without username", domain.ErrMalformedFrame, env.Type)
	}
	p := presencePayload{Username: *env.Username}
	if err := validate.Struct(p); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrMalformedFrame, env.Type, err)
	}
	if env.Type == FrameTypeUserJoined {
		return UserJoined{Username: p.Username}, nil
	}
	return UserLeft{Username: p.Username}, nil
}

func isAbsent(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}
