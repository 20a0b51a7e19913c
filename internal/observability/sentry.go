package observability

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"
)

// InitSentry enables error reporting when dsn is set. The returned flush
// func is safe to call either way.
func InitSentry(dsn, env, release string) (flush func(), err error) {
	if dsn == "" {
		return func() {}, nil
	}

	err = sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      env,
		Release:          release,
		EnableTracing:    true,
		TracesSampleRate: 0.2,
	})
	if err != nil {
		return func() {}, err
	}

	return func() { sentry.Flush(2 * time.Second) }, nil
}

// CaptureError reports err with request scoped tags. It is a no-op when
// Sentry was never initialised.
func CaptureError(ctx context.Context, err error, tags map[string]string) {
	if err == nil {
		return
	}

	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	if hub.Client() == nil {
		return
	}

	hub.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		hub.CaptureException(err)
	})
}
