package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/aelexs/realtime-chat-client/internal/config"
	"github.com/aelexs/realtime-chat-client/internal/conn"
	"github.com/aelexs/realtime-chat-client/internal/domain"
	"github.com/aelexs/realtime-chat-client/internal/observability"
	"github.com/aelexs/realtime-chat-client/internal/terminal"
)

const serviceVersion = "0.1.0"

// Params configures the client lifecycle runner.
type Params struct {
	// Username to join as. Empty prompts on In.
	Username string

	// In and Out default to os.Stdin and os.Stdout.
	In  io.Reader
	Out io.Writer

	// LogOutput defaults to os.Stderr.
	LogOutput io.Writer

	// Dialer overrides the realtime dialer built from config.
	Dialer conn.Dialer
}

// Run executes the full client lifecycle: signal handling, config loading,
// observability initialization, join, the terminal loop, and graceful
// shutdown. It returns when the user quits, input ends, or a signal arrives.
func Run(ctx context.Context, p Params) error {
	// Signal-based cancellation: ctx.Done() closes on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if p.In == nil {
		p.In = os.Stdin
	}
	if p.Out == nil {
		p.Out = os.Stdout
	}

	logger := observability.InitLogger(observability.LogConfig{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		ServiceName: cfg.OTEL.ServiceName,
		Environment: cfg.Environment,
		Output:      p.LogOutput,
	})

	// --- Startup order: tracer -> metrics -> session ---

	tracerProvider, err := observability.InitTracer(ctx, observability.TracerConfig{
		ServiceName:    cfg.OTEL.ServiceName,
		ServiceVersion: serviceVersion,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTEL.Endpoint,
	})
	if err != nil {
		return fmt.Errorf("initialize tracer: %w", err)
	}

	metricsProvider, err := observability.InitMetrics(ctx, observability.MetricsConfig{
		ServiceName:    cfg.OTEL.ServiceName,
		ServiceVersion: serviceVersion,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTEL.Endpoint,
	})
	if err != nil {
		flushTelemetry(logger, nil, tracerProvider)
		return fmt.Errorf("initialize metrics: %w", err)
	}

	if endpoint := cfg.APIEndpoint(); !cfg.IsLocal() && endpoint.Scheme == "http" {
		logger.Warn("api endpoint is not using TLS",
			slog.String("api", endpoint.Redacted()),
			slog.String("environment", cfg.Environment),
		)
	}

	term := terminal.New(p.In, p.Out, terminal.Options{Colours: cfg.Terminal.Colours})
	defer term.Close()

	username := p.Username
	if username == "" {
		if username, err = term.AskUsername(ctx); err != nil {
			flushTelemetry(logger, metricsProvider, tracerProvider)
			if errors.Is(err, terminal.ErrInputClosed) || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("read username: %w", err)
		}
	}

	dialer := p.Dialer
	if dialer == nil {
		dialer = conn.WebSocketDialer{HandshakeTimeout: cfg.WS.DialTimeout}
	}

	sess, err := Join(ctx, username, Options{
		API:           cfg.APIEndpoint(),
		HTTPClient:    &http.Client{Timeout: cfg.API.Timeout},
		Dialer:        dialer,
		OnEvent:       term.OnEvent,
		OnStateChange: term.OnStateChange,
		Logger:        logger,
	})
	if err != nil {
		flushTelemetry(logger, metricsProvider, tracerProvider)
		return err
	}
	term.SetSelf(sess.Identity().Username.String())

	logger.Info("joined",
		slog.String("username", sess.Identity().Username.String()),
		slog.String("api", cfg.APIEndpoint().Redacted()),
		slog.String("environment", cfg.Environment),
	)

	// The terminal ending (quit or end of input) ends the session.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// --- Structured concurrency via errgroup ---
	g, ctx := errgroup.WithContext(ctx)

	// Goroutine 1: terminal loop
	g.Go(func() error {
		defer cancel()
		if err := term.Run(ctx, sess); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	// Goroutine 2: shutdown trigger. Reverse of startup: session -> metrics -> tracer.
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")

		if err := sess.Close(); err != nil {
			logger.Error("close session", slog.String("error", err.Error()))
		}

		flushTelemetry(logger, metricsProvider, tracerProvider)
		logger.Info("shutdown complete")
		return nil
	})

	return g.Wait()
}

// flushTelemetry shuts the providers down, metrics first. Either may be nil.
func flushTelemetry(logger *slog.Logger, mp *observability.MetricsProvider, tp *observability.TracerProvider) {
	otelCtx, otelCancel := context.WithTimeout(context.Background(), domain.GracefulShutdownTimeout)
	defer otelCancel()

	if mp != nil {
		if err := mp.Shutdown(otelCtx); err != nil {
			logger.Error("failed to shutdown metrics", slog.String("error", err.Error()))
		}
	}
	if tp != nil {
		if err := tp.Shutdown(otelCtx); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}
}
