package errmap

import (
	"errors"
	"fmt"
	"net"

	"github.com/gorilla/websocket"

	"github.com/aelexs/realtime-chat-client/internal/domain"
)

// WebSocket close codes per RFC 6455.
// Standard codes: https://datatracker.ietf.org/doc/html/rfc6455#section-7.4
const (
	CloseNormalClosure   = websocket.CloseNormalClosure
	CloseGoingAway       = websocket.CloseGoingAway
	CloseProtocolError   = websocket.CloseProtocolError
	CloseNoStatus        = websocket.CloseNoStatusReceived
	CloseAbnormalClosure = websocket.CloseAbnormalClosure
	ClosePolicyViolation = websocket.ClosePolicyViolation
	CloseMessageTooBig   = websocket.CloseMessageTooBig
	CloseInternalError   = websocket.CloseInternalServerErr
	CloseServiceRestart  = websocket.CloseServiceRestart
	CloseTryAgainLater   = websocket.CloseTryAgainLater
)

// Disconnect describes why a connection ended.
type Disconnect struct {
	Code   int
	Reason string
	// Fault is false for an orderly closure and true for anything the user
	// should see as a dropped connection.
	Fault bool
}

// Err returns nil for an orderly closure and an error wrapping
// domain.ErrTransportFault otherwise.
func (d Disconnect) Err() error {
	if !d.Fault {
		return nil
	}
	return fmt.Errorf("%w: %s (code %d)", domain.ErrTransportFault, d.Reason, d.Code)
}

// Common disconnects for cases without a close frame.
var (
	DisconnectLocal    = Disconnect{Code: CloseNormalClosure, Reason: "closed_by_client"}
	DisconnectAbnormal = Disconnect{Code: CloseAbnormalClosure, Reason: "abnormal_closure", Fault: true}
)

// ClassifyClose converts the error that ended a read loop into a Disconnect.
// A nil error is an orderly closure.
func ClassifyClose(err error) Disconnect {
	if err == nil {
		return Disconnect{Code: CloseNormalClosure, Reason: "normal_closure"}
	}

	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		switch closeErr.Code {
		case CloseNormalClosure:
			return Disconnect{Code: closeErr.Code, Reason: reasonOr(closeErr.Text, "normal_closure")}
		case CloseNoStatus:
			return Disconnect{Code: closeErr.Code, Reason: "no_status"}
		case CloseGoingAway:
			return Disconnect{Code: closeErr.Code, Reason: reasonOr(closeErr.Text, "going_away")}
		case CloseMessageTooBig:
			return Disconnect{Code: closeErr.Code, Reason: reasonOr(closeErr.Text, "message_too_big"), Fault: true}
		case CloseServiceRestart, CloseTryAgainLater:
			return Disconnect{Code: closeErr.Code, Reason: reasonOr(closeErr.Text, "service_unavailable"), Fault: true}
		case CloseAbnormalClosure:
			return DisconnectAbnormal
		default:
			return Disconnect{Code: closeErr.Code, Reason: reasonOr(closeErr.Text, "closed_by_server"), Fault: true}
		}
	}

	if errors.Is(err, websocket.ErrReadLimit) {
		return Disconnect{Code: CloseMessageTooBig, Reason: "read_limit_exceeded", Fault: true}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Disconnect{Code: CloseAbnormalClosure, Reason: "timeout", Fault: true}
	}

	return Disconnect{Code: CloseAbnormalClosure, Reason: err.Error(), Fault: true}
}

func reasonOr(text, fallback string) string {
	if text != "" {
		return text
	}
	return fallback
}
