package logger

import (
	"log/slog"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/lmittmann/tint"
	slogmulti "github.com/samber/slog-multi"
	slogsentry "github.com/samber/slog-sentry/v2"

	"github.com/artie-labs/medallion/lib/config"
	"github.com/artie-labs/medallion/lib/redact"
)

func NewLogger(verbose bool, sentryCfg *config.Sentry) (*slog.Logger, func()) {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}

	handler := slog.Handler(tint.NewHandler(os.Stderr, &tint.Options{Level: logLevel, ReplaceAttr: redact.ReplaceAttr}))
	cleanUpHandlers := func() {}

	if sentryCfg != nil && sentryCfg.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: sentryCfg.DSN}); err != nil {
			slog.New(handler).Warn("Failed to enable Sentry output", slog.Any("err", err))
		} else {
			handler = slogmulti.Fanout(
				handler,
				slogsentry.Option{Level: slog.LevelError}.NewSentryHandler(),
			)
			cleanUpHandlers = func() { sentry.Flush(2 * time.Second) }
		}
	}

	return slog.New(handler), cleanUpHandlers
}

func Fatal(msg string, args ...any) {
	slog.Error(msg, args...)
	os.Exit(1)
}
