// Package telemetry reports swallowed errors to Sentry, or to the log when no DSN is set.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
)

// Reporter implements report.ErrorReporter.
type Reporter interface {
	CaptureError(ctx context.Context, err error, component string)
	Flush(timeout time.Duration)
}

// LogReporter writes captured errors to logrus.
type LogReporter struct {
	Log *logrus.Logger
}

func (r LogReporter) CaptureError(_ context.Context, err error, component string) {
	if err == nil {
		return
	}
	r.Log.WithField("component", component).Warnf("captured error: %v", err)
}

func (LogReporter) Flush(time.Duration) {}

// SentryReporter sends captured errors to Sentry.
type SentryReporter struct {
	hub *sentry.Hub
}

func (r *SentryReporter) CaptureError(_ context.Context, err error, component string) {
	if err == nil {
		return
	}
	r.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", component)
		scope.SetFingerprint([]string{component, fmt.Sprintf("%T", err)})
		r.hub.CaptureException(err)
	})
}

func (r *SentryReporter) Flush(timeout time.Duration) {
	r.hub.Flush(timeout)
}

// New returns a Sentry reporter when dsn is set and a log reporter otherwise.
func New(dsn, release string, log *logrus.Logger) (Reporter, error) {
	if dsn == "" {
		return LogReporter{Log: log}, nil
	}
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:              dsn,
		Release:          release,
		AttachStacktrace: false,
		ServerName:       "",
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			// farmers' devices are not ours to fingerprint
			event.User = sentry.User{}
			event.ServerName = ""
			return event
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sentry initialization failed: %w", err)
	}
	return &SentryReporter{hub: sentry.NewHub(client, sentry.NewScope())}, nil
}
