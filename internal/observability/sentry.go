package observability

import (
	"time"

	"github.com/getsentry/sentry-go"
)

const sentryFlushTimeout = 2 * time.Second

// InitSentry configures the shared Sentry client. An empty DSN leaves
// reporting disabled, which is the expected state for local development.
func InitSentry(dsn, environment string) error {
	if dsn == "" {
		return nil
	}

	if environment == "" {
		environment = "development"
	}

	return sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		AttachStacktrace: true,
		SampleRate:       1.0,
	})
}

// FlushSentry drains buffered events before shutdown. Safe to call even
// when InitSentry was skipped.
func FlushSentry() {
	sentry.Flush(sentryFlushTimeout)
}
