package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
)

type ctxKey struct{}

const ginServiceKey = "service"

func InitLogger(level string) error {
	return InitLoggerTo(os.Stdout, level)
}

func InitLoggerTo(w io.Writer, level string) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: lvl,
	})
	slog.SetDefault(slog.New(handler))
	return nil
}

func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (expected debug, info, warn, or error)", level)
	}
}

// WithService tags every record logged through ctx with the service name.
func WithService(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, ctxKey{}, name)
}

func ServiceFrom(ctx context.Context) (string, bool) {
	if name, ok := ctx.Value(ctxKey{}).(string); ok {
		return name, true
	}
	if gc, isGin := ctx.(*gin.Context); isGin {
		if val, exists := gc.Get(ginServiceKey); exists {
			name, ok := val.(string)
			return name, ok
		}
	}
	return "", false
}

// Middleware records the service a proxied request is routed to.
func Middleware(resolve func(host string) (string, bool)) gin.HandlerFunc {
	return func(c *gin.Context) {
		if name, ok := resolve(c.Request.Host); ok {
			c.Set(ginServiceKey, name)
		}
		c.Next()
	}
}

func logBase(ctx context.Context, level slog.Level, msg string, args ...any) {
	l := slog.Default()
	if !l.Enabled(ctx, level) {
		return
	}
	if name, ok := ServiceFrom(ctx); ok {
		l = l.With("service", name)
	}
	l.Log(ctx, level, msg, args...)
}

func Debug(ctx context.Context, msg string, args ...any) {
	logBase(ctx, slog.LevelDebug, msg, args...)
}

func Info(ctx context.Context, msg string, args ...any) {
	logBase(ctx, slog.LevelInfo, msg, args...)
}

func Warn(ctx context.Context, msg string, args ...any) {
	logBase(ctx, slog.LevelWarn, msg, args...)
}

func Error(ctx context.Context, msg string, args ...any) {
	logBase(ctx, slog.LevelError, msg, args...)
}

func Log(ctx context.Context, level slog.Level, msg string, args ...any) {
	logBase(ctx, level, msg, args...)
}
