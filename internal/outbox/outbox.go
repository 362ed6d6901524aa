// Package outbox submits locally authored messages to the realtime channel.
package outbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/aelexs/realtime-chat-client/internal/domain"
	"github.com/aelexs/realtime-chat-client/internal/observability"
	"github.com/aelexs/realtime-chat-client/pkg/protocol"
)

var submitsTotal metric.Int64Counter

func init() {
	m := observability.Meter("chat/outbox")

	submitsTotal, _ = m.Int64Counter("chat_outbox_submits_total",
		metric.WithDescription("Submit calls, by outcome"))
}

// Sender writes one outbound frame. *conn.Manager satisfies it; Send must
// fail with domain.ErrNotConnected when there is no open channel.
type Sender interface {
	Send(o protocol.Outbound) error
}

// Outbox validates and sends messages. It never writes to the session log:
// the server echoes every accepted message back as a new_message frame.
type Outbox struct {
	sender Sender
	logger *slog.Logger
}

// New creates an Outbox sending through sender. A nil logger discards.
func New(sender Sender, logger *slog.Logger) *Outbox {
	if logger == nil {
		logger = observability.DiscardLogger()
	}
	return &Outbox{sender: sender, logger: logger}
}

// Submit sends content as one message. A nil return means the frame was
// handed to the transport and the caller may clear its pending input.
//
// Errors:
//   - domain.ErrInvalidInput: content is blank after trimming or too large
//   - domain.ErrNotConnected: the channel is not open; nothing was sent
//   - domain.ErrTransportFault: the write failed
func (o *Outbox) Submit(content string) error {
	ctx := context.Background()

	normalized, err := domain.NormalizeContent(content)
	if err != nil {
		submitsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "invalid")))
		return err
	}

	if err := o.sender.Send(protocol.NewSendMessage(normalized)); err != nil {
		outcome := "failed"
		if errors.Is(err, domain.ErrNotConnected) {
			outcome = "not_connected"
		}
		submitsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
		o.logger.Debug("submit failed", slog.String("error", err.Error()))
		return fmt.Errorf("submit: %w", err)
	}

	submitsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "sent")))
	return nil
}
