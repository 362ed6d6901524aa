// Package conn owns the realtime connection for one joined session.
//
// All inbound transport activity becomes one of four events (open, frame,
// close, error). A reader goroutine produces them and a single dispatcher
// goroutine consumes them, so frames reach the handler strictly in delivery
// order and state transitions have one writer.
package conn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/aelexs/realtime-chat-client/internal/domain"
	"github.com/aelexs/realtime-chat-client/internal/errmap"
	"github.com/aelexs/realtime-chat-client/internal/observability"
	"github.com/aelexs/realtime-chat-client/pkg/protocol"
)

var tracer = observability.Tracer("chat/conn")

var (
	transitionsTotal metric.Int64Counter
	framesSentTotal  metric.Int64Counter
	framesRecvTotal  metric.Int64Counter
)

func init() {
	m := observability.Meter("chat/conn")

	transitionsTotal, _ = m.Int64Counter("chat_connection_transitions_total",
		metric.WithDescription("Connection state transitions, by target state"))
	framesSentTotal, _ = m.Int64Counter("chat_frames_sent_total",
		metric.WithDescription("Outbound frames written"))
	framesRecvTotal, _ = m.Int64Counter("chat_frames_received_total",
		metric.WithDescription("Inbound frames read from the transport"))
}

// FrameHandler receives every inbound frame in order. *stream.Stream
// satisfies it.
type FrameHandler interface {
	OnFrame(raw []byte)
}

// Config configures a Manager.
type Config struct {
	// API is the chat server endpoint; the realtime address is derived from it.
	API *url.URL
	// Dialer defaults to WebSocketDialer{}.
	Dialer  Dialer
	Handler FrameHandler
	Logger  *slog.Logger
}

// Manager maintains at most one connection at a time. It never reconnects
// on its own; after Disconnected a caller may Connect again.
type Manager struct {
	api     *url.URL
	dialer  Dialer
	handler FrameHandler
	logger  *slog.Logger

	mu        sync.Mutex
	state     State
	current   *link // nil when Disconnected
	last      *link
	observers []func(StateChange)

	writeMu sync.Mutex
}

// link is one connection lifetime.
type link struct {
	id        domain.ConnectionID
	transport Transport // nil while dialing
	closing   bool      // Close was called; guarded by Manager.mu
	done      chan struct{}
}

// NewManager creates a Manager in the Disconnected state.
func NewManager(cfg Config) *Manager {
	if cfg.Dialer == nil {
		cfg.Dialer = WebSocketDialer{}
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.DiscardLogger()
	}
	return &Manager{
		api:     cfg.API,
		dialer:  cfg.Dialer,
		handler: cfg.Handler,
		logger:  cfg.Logger,
	}
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe registers fn for every subsequent state change. fn runs on the
// goroutine that made the transition and must not block.
func (m *Manager) Subscribe(fn func(StateChange)) {
	m.mu.Lock()
	m.observers = append(m.observers, fn)
	m.mu.Unlock()
}

// Done is closed when the most recent connection has fully shut down.
// Before the first Connect it is already closed.
func (m *Manager) Done() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.last == nil {
		return closedChan
	}
	return m.last.done
}

var closedChan = func() chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}()

// Connect opens the realtime channel for id and returns once it is
// Connected. Connect fails with domain.ErrAlreadyConnected unless the
// manager is Disconnected, and with domain.ErrTransportFault when the
// handshake fails.
func (m *Manager) Connect(ctx context.Context, id domain.Identity) error {
	m.mu.Lock()
	if m.state != Disconnected {
		state := m.state
		m.mu.Unlock()
		return fmt.Errorf("connect while %s: %w", state, domain.ErrAlreadyConnected)
	}
	l := &link{id: domain.GenerateConnectionID(), done: make(chan struct{})}
	m.current = l
	m.last = l
	m.mu.Unlock()

	ctx, span := tracer.Start(ctx, "conn.connect")
	defer span.End()
	span.SetAttributes(
		attribute.String("chat.username", id.Username.String()),
		attribute.String("chat.connection_id", l.id.String()),
	)

	m.transition(l, Connecting, nil)

	u := domain.RealtimeURL(m.api, id.Username)
	t, err := m.dialer.Dial(ctx, u)
	if err != nil {
		fault := fmt.Errorf("connect: %w: %w", domain.ErrTransportFault, err)
		span.SetStatus(codes.Error, fault.Error())
		m.transition(l, Errored, fault)
		m.transition(l, Disconnected, fault)
		close(l.done)
		return fault
	}

	m.mu.Lock()
	if l.closing {
		m.mu.Unlock()
		_ = t.Close()
		m.transition(l, Disconnected, nil)
		close(l.done)
		return fmt.Errorf("connect: closed while dialing: %w", domain.ErrNotConnected)
	}
	l.transport = t
	m.mu.Unlock()

	inbox := make(chan event, domain.InboundBufferSize)
	opened := make(chan struct{})
	inbox <- openEvent{opened: opened}

	go m.read(l, inbox)
	go m.dispatch(l, inbox)

	<-opened
	m.logger.Info("connected",
		slog.String("connection_id", l.id.String()),
		slog.String("url", u.Redacted()),
	)
	return nil
}

// Send writes one outbound frame. It fails with domain.ErrNotConnected in
// any state but Connected or once Close has started, and with domain.ErrTransportFault when the write
// fails; a failed write tears the connection down.
func (m *Manager) Send(o protocol.Outbound) error {
	m.mu.Lock()
	l, state := m.current, m.state
	m.mu.Unlock()
	if state != Connected || l == nil || l.transport == nil {
		return fmt.Errorf("send while %s: %w", state, domain.ErrNotConnected)
	}

	data, err := protocol.Encode(o)
	if err != nil {
		return err
	}

	// Close marks the link closing before it takes writeMu, so checking
	// under writeMu keeps data frames from following the close frame.
	m.writeMu.Lock()
	if m.isClosing(l) {
		m.writeMu.Unlock()
		return fmt.Errorf("send while closing: %w", domain.ErrNotConnected)
	}
	err = l.transport.WriteMessage(websocket.TextMessage, data)
	m.writeMu.Unlock()
	if err != nil {
		m.logger.Warn("write failed",
			slog.String("connection_id", l.id.String()),
			slog.String("error", err.Error()),
		)
		// The reader sees the closed transport and reports the fault.
		_ = l.transport.Close()
		return fmt.Errorf("send: %w: %w", domain.ErrTransportFault, err)
	}

	framesSentTotal.Add(context.Background(), 1)
	return nil
}

func (m *Manager) isClosing(l *link) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return l.closing
}

// Close ends the current connection with a normal closure. It is safe to
// call in any state and more than once. Close waits up to
// domain.CloseGracePeriod for the peer to acknowledge.
func (m *Manager) Close() error {
	m.mu.Lock()
	l := m.current
	if l == nil || l.closing {
		m.mu.Unlock()
		return nil
	}
	l.closing = true
	t := l.transport
	m.mu.Unlock()

	if t == nil {
		// Still dialing; Connect will close the transport.
		return nil
	}

	m.writeMu.Lock()
	werr := t.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	m.writeMu.Unlock()

	if werr == nil {
		select {
		case <-l.done:
		case <-time.After(domain.CloseGracePeriod):
		}
	}

	if err := t.Close(); err != nil && werr == nil {
		select {
		case <-l.done:
			// Already closed by the dispatcher.
			return nil
		default:
			return fmt.Errorf("close: %w", err)
		}
	}
	return nil
}

// event is an inbound transport occurrence. The variants are closed.
type event interface{ isEvent() }

type openEvent struct{ opened chan struct{} }
type frameEvent struct{ raw []byte }
type closeEvent struct{ disconnect errmap.Disconnect }
type errorEvent struct{ disconnect errmap.Disconnect }

func (openEvent) isEvent()  {}
func (frameEvent) isEvent() {}
func (closeEvent) isEvent() {}
func (errorEvent) isEvent() {}

// read produces events until the transport fails or closes.
func (m *Manager) read(l *link, inbox chan<- event) {
	defer close(inbox)
	for {
		_, raw, err := l.transport.ReadMessage()
		if err != nil {
			m.mu.Lock()
			closing := l.closing
			m.mu.Unlock()

			d := errmap.ClassifyClose(err)
			switch {
			case closing:
				inbox <- closeEvent{disconnect: errmap.DisconnectLocal}
			case d.Fault:
				inbox <- errorEvent{disconnect: d}
			default:
				inbox <- closeEvent{disconnect: d}
			}
			return
		}
		framesRecvTotal.Add(context.Background(), 1)
		inbox <- frameEvent{raw: raw}
	}
}

// dispatch is the only consumer of inbox and the only goroutine that
// delivers frames or ends a link.
func (m *Manager) dispatch(l *link, inbox <-chan event) {
	defer close(l.done)
	logger := m.logger.With(slog.String("connection_id", l.id.String()))

	for ev := range inbox {
		switch e := ev.(type) {
		case openEvent:
			m.transition(l, Connected, nil)
			close(e.opened)
		case frameEvent:
			m.deliver(logger, e.raw)
		case closeEvent:
			_ = l.transport.Close()
			logger.Info("disconnected",
				slog.Int("code", e.disconnect.Code),
				slog.String("reason", e.disconnect.Reason),
			)
			m.transition(l, Disconnected, nil)
		case errorEvent:
			_ = l.transport.Close()
			err := e.disconnect.Err()
			logger.Warn("connection lost",
				slog.Int("code", e.disconnect.Code),
				slog.String("reason", e.disconnect.Reason),
			)
			m.transition(l, Errored, err)
			m.transition(l, Disconnected, err)
		}
	}
}

func (m *Manager) deliver(logger *slog.Logger, raw []byte) {
	if m.handler == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Error("frame handler panicked", slog.Any("panic", r))
		}
	}()
	m.handler.OnFrame(raw)
}

// transition moves l to the given state and notifies observers. Transitions
// for a link that is no longer current are ignored.
func (m *Manager) transition(l *link, to State, err error) {
	m.mu.Lock()
	if m.current != l {
		m.mu.Unlock()
		return
	}
	from := m.state
	m.state = to
	if to == Disconnected {
		m.current = nil
	}
	observers := append([]func(StateChange){}, m.observers...)
	m.mu.Unlock()

	transitionsTotal.Add(context.Background(), 1, metric.WithAttributes(attribute.String("to", to.String())))
	m.logger.Debug("connection state changed",
		slog.String("connection_id", l.id.String()),
		slog.String("from", from.String()),
		slog.String("to", to.String()),
	)

	change := StateChange{ConnectionID: l.id, From: from, To: to, Err: err}
	for _, fn := range observers {
		m.notify(fn, change)
	}
}

func (m *Manager) notify(fn func(StateChange), change StateChange) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("state observer panicked", slog.Any("panic", r))
		}
	}()
	fn(change)
}

// IsFault reports whether a state change was caused by a transport fault.
func IsFault(change StateChange) bool {
	return errors.Is(change.Err, domain.ErrTransportFault)
}
