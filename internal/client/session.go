// Package client joins a chat session and runs the client lifecycle.
//
// Join wires the pieces together: the identity resolver, the connection
// manager, the message stream feeding the session state, and the outbox.
// The REST history endpoint is available alongside for read-only views.
// Run adds process concerns around it (configuration, telemetry, the
// terminal and graceful shutdown).
package client

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/aelexs/realtime-chat-client/internal/conn"
	"github.com/aelexs/realtime-chat-client/internal/directory"
	"github.com/aelexs/realtime-chat-client/internal/domain"
	"github.com/aelexs/realtime-chat-client/internal/identity"
	"github.com/aelexs/realtime-chat-client/internal/observability"
	"github.com/aelexs/realtime-chat-client/internal/outbox"
	"github.com/aelexs/realtime-chat-client/internal/session"
	"github.com/aelexs/realtime-chat-client/internal/stream"
)

// Options configures Join.
type Options struct {
	// API is the chat server endpoint. Required.
	API *url.URL

	// HTTPClient is used for directory calls. Nil uses a client with
	// domain.DirectoryTimeout.
	HTTPClient *http.Client

	// Dialer opens the realtime channel. Nil uses conn.WebSocketDialer{}.
	Dialer conn.Dialer

	// OnEvent, if set, is called after each inbound event is applied.
	OnEvent stream.Observer

	// OnStateChange, if set, is called on every connection transition.
	OnStateChange func(conn.StateChange)

	Clock  domain.Clock
	Logger *slog.Logger
}

// Session is a joined chat session for one identity.
type Session struct {
	identity domain.Identity
	dir      *directory.Client
	state    *session.State
	conn     *conn.Manager
	outbox   *outbox.Outbox
	logger   *slog.Logger
}

// Join resolves username, opens the realtime channel and returns the
// connected session. A directory failure aborts the join with
// domain.ErrDirectoryUnavailable; a failed handshake with
// domain.ErrTransportFault.
func Join(ctx context.Context, username string, opts Options) (*Session, error) {
	if opts.API == nil {
		return nil, fmt.Errorf("join: %w: api endpoint", domain.ErrConfigRequired)
	}
	logger := opts.Logger
	if logger == nil {
		logger = observability.DiscardLogger()
	}

	dir := directory.NewClient(opts.API, opts.HTTPClient, logger)
	id, err := identity.NewResolver(dir, logger).Resolve(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("join: %w", err)
	}

	state := session.New(opts.Clock)
	mgr := conn.NewManager(conn.Config{
		API:     opts.API,
		Dialer:  opts.Dialer,
		Handler: stream.New(state, opts.OnEvent, logger),
		Logger:  logger,
	})
	mgr.Subscribe(func(c conn.StateChange) {
		if c.To == conn.Disconnected {
			state.ResetPresence()
		}
	})
	if opts.OnStateChange != nil {
		mgr.Subscribe(opts.OnStateChange)
	}

	if err := mgr.Connect(ctx, id); err != nil {
		return nil, fmt.Errorf("join: %w", err)
	}

	return &Session{
		identity: id,
		dir:      dir,
		state:    state,
		conn:     mgr,
		outbox:   outbox.New(mgr, logger),
		logger:   logger,
	}, nil
}

// Identity returns the resolved participant.
func (s *Session) Identity() domain.Identity { return s.identity }

// Submit sends one message. See outbox.Outbox.Submit for the errors.
func (s *Session) Submit(content string) error {
	return s.outbox.Submit(content)
}

// Messages returns a copy of the message log.
func (s *Session) Messages() []domain.Message { return s.state.Messages() }

// Entries returns a copy of the message log with positions.
func (s *Session) Entries() []session.Entry { return s.state.Entries() }

// Online returns the participants currently known to be connected.
func (s *Session) Online() []domain.Username { return s.state.Online() }

// History fetches the server's last limit messages, oldest first. It is a
// read-only view: the session log is not changed.
func (s *Session) History(ctx context.Context, limit int) ([]domain.Message, error) {
	return s.dir.History(ctx, limit)
}

// State returns the connection state.
func (s *Session) State() conn.State { return s.conn.State() }

// Reconnect reopens the realtime channel after it was lost. The server
// sends a fresh history, which replaces the log.
func (s *Session) Reconnect(ctx context.Context) error {
	s.logger.InfoContext(ctx, "reconnecting", slog.String("username", s.identity.Username.String()))
	return s.conn.Connect(ctx, s.identity)
}

// Close ends the session's connection.
func (s *Session) Close() error {
	return s.conn.Close()
}

// Done is closed when the current connection has shut down.
func (s *Session) Done() <-chan struct{} {
	return s.conn.Done()
}
