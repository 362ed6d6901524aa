// Package stream turns inbound realtime frames into session updates.
package stream

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/aelexs/realtime-chat-client/internal/domain"
	"github.com/aelexs/realtime-chat-client/internal/observability"
	"github.com/aelexs/realtime-chat-client/pkg/protocol"
)

var (
	framesTotal   metric.Int64Counter
	droppedTotal  metric.Int64Counter
	historyLength metric.Int64Histogram
)

func init() {
	m := observability.Meter("chat/stream")

	framesTotal, _ = m.Int64Counter("chat_frames_total",
		metric.WithDescription("Inbound frames applied, by type"))
	droppedTotal, _ = m.Int64Counter("chat_frames_dropped_total",
		metric.WithDescription("Inbound frames dropped as malformed or unknown"))
	historyLength, _ = m.Int64Histogram("chat_history_messages",
		metric.WithDescription("Messages per history snapshot"))
}

// Log is the session state the stream writes to. *session.State satisfies it.
type Log interface {
	Replace(msgs []domain.Message)
	Append(msg domain.Message) int
	Join(username domain.Username) bool
	Leave(username domain.Username) bool
}

// Observer is told about every event after it has been applied to the Log.
type Observer func(protocol.Event)

// Stream decodes frames and applies them in arrival order. It is driven by
// a single goroutine and keeps no state of its own.
type Stream struct {
	log      Log
	observer Observer
	logger   *slog.Logger
}

// New creates a Stream writing to log. observer and logger may be nil.
func New(log Log, observer Observer, logger *slog.Logger) *Stream {
	if logger == nil {
		logger = observability.DiscardLogger()
	}
	return &Stream{log: log, observer: observer, logger: logger}
}

// OnFrame handles one raw frame. Malformed and unknown frames are logged
// and dropped; OnFrame never fails and never stops the stream.
func (s *Stream) OnFrame(raw []byte) {
	ctx := context.Background()

	ev, err := protocol.Decode(raw)
	if err != nil {
		droppedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "malformed")))
		s.logger.Warn("dropping malformed frame",
			slog.String("error", err.Error()),
			slog.Int("size", len(raw)),
		)
		return
	}

	switch e := ev.(type) {
	case protocol.History:
		if len(e.Messages) > domain.HistoryLimit {
			s.logger.Debug("history larger than expected",
				slog.Int("messages", len(e.Messages)),
				slog.Int("expected_max", domain.HistoryLimit),
			)
		}
		s.log.Replace(e.Messages)
		historyLength.Record(ctx, int64(len(e.Messages)))
	case protocol.NewMessage:
		s.log.Append(e.Message)
	case protocol.UserJoined:
		if name, err := domain.NewUsername(e.Username); err == nil {
			s.log.Join(name)
		}
	case protocol.UserLeft:
		if name, err := domain.NewUsername(e.Username); err == nil {
			s.log.Leave(name)
		}
	case protocol.Unknown:
		droppedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "unknown")))
		s.logger.Debug("ignoring frame with unknown type", slog.String("type", string(e.Tag)))
		return
	}

	framesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("type", string(ev.FrameType()))))
	s.notify(ev)
}

func (s *Stream) notify(ev protocol.Event) {
	if s.observer == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("stream observer panicked",
				slog.String("type", string(ev.FrameType())),
				slog.Any("panic", r),
			)
		}
	}()
	s.observer(ev)
}
