package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	localsKey       = "logger"
	requestIDHeader = "X-Request-Id"
)

type ctxKey struct{}

type Options struct {
	Service   string
	Env       string
	Level     string
	AddSource bool

	// File enables rotation through lumberjack in addition to stdout.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// New builds the process logger and installs it as the slog default.
func New(opts Options) *slog.Logger {
	var w io.Writer = os.Stdout
	if opts.File != "" {
		rot := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
		}
		w = io.MultiWriter(os.Stdout, rot)
	}

	base := NewWithWriter(w, opts)
	slog.SetDefault(base)
	return base
}

// NewWithWriter builds a logger writing JSON to w. It does not touch the
// slog default.
func NewWithWriter(w io.Writer, opts Options) *slog.Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     ParseLevel(opts.Level),
		AddSource: opts.AddSource,
	})
	return slog.New(h).With(
		"service", opts.Service,
		"env", opts.Env,
	)
}

func ParseLevel(lvl string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Discard returns a logger that drops everything. Useful in tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// WithCtx stores l in ctx.
func WithCtx(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromCtx fetches a logger from ctx or falls back to the default one.
func FromCtx(ctx context.Context) *slog.Logger {
	if v := ctx.Value(ctxKey{}); v != nil {
		if l, ok := v.(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return slog.Default()
}

// From returns the request-scoped logger set by Middleware, or the default.
func From(c *fiber.Ctx) *slog.Logger {
	if l, ok := c.Locals(localsKey).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}

// Context returns the request's user context carrying the request logger.
func Context(c *fiber.Ctx) context.Context {
	return WithCtx(c.UserContext(), From(c))
}

// Middleware tags each request with an id, exposes a request-scoped
// logger and logs the outcome once the handler chain returns.
func Middleware(base *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		reqID := c.Get(requestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Set(requestIDHeader, reqID)

		l := base.With(
			"req_id", reqID,
			"method", c.Method(),
			"path", c.Path(),
		)
		c.Locals(localsKey, l)

		err := c.Next()
		if err != nil {
			// let the app error handler write the response first
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		status := c.Response().StatusCode()
		attrs := []any{
			"status", status,
			"dur_ms", time.Since(start).Milliseconds(),
			"remote", c.IP(),
		}
		if err != nil {
			attrs = append(attrs, "error", err.Error())
		}
		if status >= fiber.StatusBadRequest {
			l.Error("http_request", attrs...)
			return nil
		}
		l.Info("http_request", attrs...)
		return nil
	}
}
