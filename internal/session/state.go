// Package session holds the client's view of the conversation: the ordered
// message log and the presence roster.
//
// The log is replaced wholesale by a history snapshot and otherwise only
// grows. A State has a single writer (the connection's dispatcher) and any
// number of readers; readers always receive copies.
package session

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/aelexs/realtime-chat-client/internal/domain"
)

// Entry is a logged message together with where and when it was received.
type Entry struct {
	domain.Message

	// Position is the zero-based index in the log. When the message carries
	// no server id, Position is the only thing that tells two otherwise equal
	// messages apart; it is not stable across history replaces.
	Position   int
	ReceivedAt time.Time
}

// Positional reports whether the entry's identity is its position.
func (e Entry) Positional() bool {
	return e.ID.IsZero()
}

// State is the message log plus roster. The zero value is not usable; use New.
type State struct {
	clock domain.Clock

	mu      sync.RWMutex
	entries []Entry
	online  map[domain.Username]struct{}
}

// New creates an empty State. A nil clock uses the system clock.
func New(clock domain.Clock) *State {
	if clock == nil {
		clock = domain.RealClock{}
	}
	return &State{
		clock:  clock,
		online: make(map[domain.Username]struct{}),
	}
}

// Replace discards the log and installs msgs in order.
func (s *State) Replace(msgs []domain.Message) {
	now := s.clock.Now()
	entries := make([]Entry, len(msgs))
	for i, m := range msgs {
		entries[i] = Entry{Message: m, Position: i, ReceivedAt: now}
	}

	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()
}

// Append adds msg to the end of the log and returns its position.
func (s *State) Append(msg domain.Message) int {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	pos := len(s.entries)
	s.entries = append(s.entries, Entry{Message: msg, Position: pos, ReceivedAt: now})
	return pos
}

// Messages returns a copy of the log.
func (s *State) Messages() []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lo.Map(s.entries, func(e Entry, _ int) domain.Message { return e.Message })
}

// Entries returns a copy of the log with positions.
func (s *State) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.entries)
}

// Len returns the number of logged messages.
func (s *State) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Join marks username as online. It reports whether the user was newly added.
func (s *State) Join(username domain.Username) bool {
	if username.IsZero() {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.online[username]; ok {
		return false
	}
	s.online[username] = struct{}{}
	return true
}

// Leave removes username from the roster. It reports whether the user was present.
func (s *State) Leave(username domain.Username) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.online[username]; !ok {
		return false
	}
	delete(s.online, username)
	return true
}

// Online returns the roster sorted by name.
func (s *State) Online() []domain.Username {
	s.mu.RLock()
	names := lo.Keys(s.online)
	s.mu.RUnlock()

	slices.SortFunc(names, func(a, b domain.Username) int {
		return strings.Compare(a.String(), b.String())
	})
	return names
}

// ResetPresence empties the roster. The server re-announces presence after
// a reconnect, so a stale roster is dropped when the connection goes away.
func (s *State) ResetPresence() {
	s.mu.Lock()
	clear(s.online)
	s.mu.Unlock()
}
