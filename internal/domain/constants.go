package domain

import "time"

// Client limits and timeouts. These are compiled defaults; the directory and
// dial timeouts can be overridden via configuration.
const (
	// Frame limits
	MaxFrameSize   = 1 << 20 // 1 MB max inbound frame
	MaxContentSize = 64 * 1024

	// History the server sends on join. Informational only: the client never
	// truncates what the server sends.
	HistoryLimit = 20

	// Page size asked of the REST history endpoint when none is given.
	HistoryFetchLimit = 50

	// Timeout contracts
	DirectoryTimeout = 5 * time.Second  // Max time for one directory round trip
	DialTimeout      = 10 * time.Second // WebSocket handshake timeout
	WriteTimeout     = 10 * time.Second // Per-frame write deadline
	CloseGracePeriod = 1 * time.Second  // Wait for the peer's close frame

	// Dispatcher inbox depth. The reader blocks when the dispatcher falls
	// this far behind; frames are never dropped for backpressure.
	InboundBufferSize = 64

	// Graceful shutdown
	GracefulShutdownTimeout = 5 * time.Second
)

// Timestamp layouts accepted on the wire, tried in order.
var TimestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
}
