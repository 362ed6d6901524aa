// Package directory is the HTTP client for the chat server's REST API: the
// user directory and the message history.
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"

	"github.com/aelexs/realtime-chat-client/internal/domain"
	"github.com/aelexs/realtime-chat-client/internal/errmap"
	"github.com/aelexs/realtime-chat-client/internal/observability"
	"github.com/aelexs/realtime-chat-client/pkg/protocol"
)

var tracer = observability.Tracer("chat/directory")

// maxBodySize caps how much of a directory response is read.
const maxBodySize = 64 * 1024

// User is a directory record.
type User struct {
	ID       protocol.ID `json:"id"`
	Username string      `json:"username"`
}

// Client talks to the REST endpoints under a base URL:
// GET {base}/users/{username}, POST {base}/users?username= and
// GET {base}/messages?limit=.
type Client struct {
	base       *url.URL
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Client. httpClient may be nil, in which case a client
// with domain.DirectoryTimeout is used. A nil logger discards.
func NewClient(base *url.URL, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: domain.DirectoryTimeout}
	}
	if logger == nil {
		logger = observability.DiscardLogger()
	}
	return &Client{base: base, httpClient: httpClient, logger: logger}
}

// Lookup fetches the record for username. A missing user fails with
// domain.ErrNotFound; anything else that is not a 200 fails with an error
// from errmap.FromHTTPResponse.
func (c *Client) Lookup(ctx context.Context, username string) (User, error) {
	u := domain.JoinURL(c.base, "users", username)
	return c.user(ctx, "directory.lookup", http.MethodGet, u, username)
}

// Register creates a record for username.
func (c *Client) Register(ctx context.Context, username string) (User, error) {
	u := domain.JoinURL(c.base, "users")
	u.RawQuery = url.Values{"username": {username}}.Encode()
	return c.user(ctx, "directory.register", http.MethodPost, u, username)
}

// History fetches the last limit messages, oldest first. A non-positive
// limit fails with domain.ErrInvalidInput and makes no call. A body that is
// not a valid message list fails with domain.ErrDirectoryUnavailable.
func (c *Client) History(ctx context.Context, limit int) ([]domain.Message, error) {
	const op = "directory.history"
	if limit <= 0 {
		return nil, fmt.Errorf("%s: %w: limit must be positive, got %d", op, domain.ErrInvalidInput, limit)
	}
	u := domain.JoinURL(c.base, "messages")
	u.RawQuery = url.Values{"limit": {strconv.Itoa(limit)}}.Encode()

	ctx, span := tracer.Start(ctx, op)
	defer span.End()
	span.SetAttributes(attribute.Int("chat.history.limit", limit))

	body, err := c.roundTrip(ctx, op, http.MethodGet, u)
	if err != nil {
		return nil, err
	}
	messages, err := protocol.DecodeMessages(body)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%s: %w: %w", op, domain.ErrDirectoryUnavailable, err)
	}
	span.SetAttributes(attribute.Int("chat.history.count", len(messages)))
	return messages, nil
}

func (c *Client) user(ctx context.Context, op, method string, u *url.URL, username string) (User, error) {
	ctx, span := tracer.Start(ctx, op)
	defer span.End()
	span.SetAttributes(attribute.String("chat.username", username))

	body, err := c.roundTrip(ctx, op, method, u)
	if err != nil {
		return User{}, err
	}

	var user User
	if err := json.Unmarshal(body, &user); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return User{}, fmt.Errorf("%s: decode user: %w: %w", op, domain.ErrDirectoryUnavailable, err)
	}
	if user.Username == "" {
		user.Username = username
	}
	return user, nil
}

// roundTrip performs one request and returns the body of a 2xx response.
// It records status on the span already in ctx.
func (c *Client) roundTrip(ctx context.Context, op, method string, u *url.URL) ([]byte, error) {
	span := observability.SpanFromContext(ctx)
	span.SetAttributes(attribute.String("http.method", method))

	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%s: %w: %w", op, domain.ErrDirectoryUnavailable, err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%s: read body: %w: %w", op, domain.ErrDirectoryUnavailable, err)
	}

	if err := errmap.FromHTTPResponse(resp.StatusCode, body); err != nil {
		c.logger.DebugContext(ctx, "directory request failed",
			slog.String("op", op),
			slog.Int("status", resp.StatusCode),
			slog.String("path", u.Path),
		)
		if !domain.IsNotFound(err) {
			span.SetStatus(codes.Error, err.Error())
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return body, nil
}
