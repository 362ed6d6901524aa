// Package identity resolves a chosen username to a registered participant,
// creating the directory entry on first use.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/aelexs/realtime-chat-client/internal/directory"
	"github.com/aelexs/realtime-chat-client/internal/domain"
	"github.com/aelexs/realtime-chat-client/internal/observability"
)

var tracer = observability.Tracer("chat/identity")

var (
	resolvesTotal      metric.Int64Counter
	registrationsTotal metric.Int64Counter
)

func init() {
	m := observability.Meter("chat/identity")

	resolvesTotal, _ = m.Int64Counter("chat_identity_resolves_total",
		metric.WithDescription("Identity resolutions by outcome"))
	registrationsTotal, _ = m.Int64Counter("chat_identity_registrations_total",
		metric.WithDescription("Directory entries created by this client"))
}

// Directory is the lookup-or-create surface the resolver needs.
// *directory.Client satisfies it.
type Directory interface {
	Lookup(ctx context.Context, username string) (directory.User, error)
	Register(ctx context.Context, username string) (directory.User, error)
}

// Resolver ensures a username exists in the directory.
type Resolver struct {
	dir    Directory
	logger *slog.Logger
}

// NewResolver creates a Resolver backed by dir. A nil logger discards.
func NewResolver(dir Directory, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = observability.DiscardLogger()
	}
	return &Resolver{dir: dir, logger: logger}
}

// Resolve returns the identity for username, registering it if the
// directory does not know it yet.
//
// Errors:
//   - domain.ErrInvalidInput: username is blank after trimming; no call is made
//   - domain.ErrDirectoryUnavailable: the directory failed for any reason
//     other than "not found"; not retried
//   - the context's error when ctx ends first
func (r *Resolver) Resolve(ctx context.Context, username string) (domain.Identity, error) {
	name, err := domain.NewUsername(username)
	if err != nil {
		resolvesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "invalid")))
		return domain.Identity{}, err
	}

	ctx, span := tracer.Start(ctx, "identity.resolve")
	defer span.End()
	span.SetAttributes(attribute.String("chat.username", name.String()))

	id, outcome, err := r.resolve(ctx, name)
	resolvesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		observability.WithTraceID(ctx, r.logger).WarnContext(ctx, "identity resolution failed",
			slog.String("username", name.String()),
			slog.String("error", err.Error()),
		)
		return domain.Identity{}, err
	}

	r.logger.InfoContext(ctx, "identity resolved",
		slog.String("username", name.String()),
		slog.String("outcome", outcome),
	)
	return id, nil
}

func (r *Resolver) resolve(ctx context.Context, name domain.Username) (domain.Identity, string, error) {
	user, err := r.dir.Lookup(ctx, name.String())
	if err == nil {
		return toIdentity(name, user), "found", nil
	}
	if !domain.IsNotFound(err) {
		return domain.Identity{}, "unavailable", unavailable(ctx, err)
	}

	user, err = r.dir.Register(ctx, name.String())
	if err == nil {
		registrationsTotal.Add(ctx, 1)
		return toIdentity(name, user), "registered", nil
	}
	if !errors.Is(err, domain.ErrAlreadyExists) {
		return domain.Identity{}, "unavailable", unavailable(ctx, err)
	}

	// Someone registered the same name between our lookup and create.
	user, err = r.dir.Lookup(ctx, name.String())
	if err != nil {
		return domain.Identity{}, "unavailable", unavailable(ctx, err)
	}
	return toIdentity(name, user), "found", nil
}

func toIdentity(name domain.Username, user directory.User) domain.Identity {
	return domain.Identity{ID: string(user.ID), Username: name}
}

// unavailable normalizes a directory failure. A cancelled or expired
// context is reported as such so callers can tell abandonment from outage.
func unavailable(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("resolve identity: %w", ctxErr)
	}
	if errors.Is(err, domain.ErrDirectoryUnavailable) {
		return fmt.Errorf("resolve identity: %w", err)
	}
	return fmt.Errorf("resolve identity: %w: %w", domain.ErrDirectoryUnavailable, err)
}
