package errmap_test

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aelexs/realtime-chat-client/internal/domain"
	"github.com/aelexs/realtime-chat-client/internal/errmap"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassifyClose(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   int
		wantReason string
		wantFault  bool
	}{
		// Orderly closures
		{"nil error", nil, errmap.CloseNormalClosure, "normal_closure", false},
		{"normal close frame", &websocket.CloseError{Code: websocket.CloseNormalClosure}, errmap.CloseNormalClosure, "normal_closure", false},
		{"close frame without status", &websocket.CloseError{Code: websocket.CloseNoStatusReceived}, errmap.CloseNoStatus, "no_status", false},
		{"going away with text", &websocket.CloseError{Code: websocket.CloseGoingAway, Text: "server shutdown"}, errmap.CloseGoingAway, "server shutdown", false},

		// Faults
		{"abnormal closure", &websocket.CloseError{Code: websocket.CloseAbnormalClosure}, errmap.CloseAbnormalClosure, "abnormal_closure", true},
		{"internal error", &websocket.CloseError{Code: websocket.CloseInternalServerErr}, errmap.CloseInternalError, "closed_by_server", true},
		{"try again later", &websocket.CloseError{Code: websocket.CloseTryAgainLater}, errmap.CloseTryAgainLater, "service_unavailable", true},
		{"message too big", &websocket.CloseError{Code: websocket.CloseMessageTooBig}, errmap.CloseMessageTooBig, "message_too_big", true},
		{"application code", &websocket.CloseError{Code: 4001, Text: "kicked"}, 4001, "kicked", true},
		{"read limit", websocket.ErrReadLimit, errmap.CloseMessageTooBig, "read_limit_exceeded", true},
		{"timeout", timeoutErr{}, errmap.CloseAbnormalClosure, "timeout", true},
		{"eof", io.ErrUnexpectedEOF, errmap.CloseAbnormalClosure, io.ErrUnexpectedEOF.Error(), true},

		// Wrapped
		{"wrapped close frame", fmt.Errorf("read: %w", &websocket.CloseError{Code: websocket.CloseNormalClosure}), errmap.CloseNormalClosure, "normal_closure", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errmap.ClassifyClose(tt.err)

			assert.Equal(t, tt.wantCode, got.Code, "code mismatch")
			assert.Equal(t, tt.wantReason, got.Reason, "reason mismatch")
			assert.Equal(t, tt.wantFault, got.Fault, "fault mismatch")
		})
	}
}

func TestDisconnect_Err(t *testing.T) {
	t.Run("orderly closure has no error", func(t *testing.T) {
		assert.NoError(t, errmap.DisconnectLocal.Err())
	})

	t.Run("fault wraps ErrTransportFault", func(t *testing.T) {
		err := errmap.ClassifyClose(errors.New("connection reset by peer")).Err()

		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrTransportFault)
		assert.Contains(t, err.Error(), "connection reset by peer")
	})
}
