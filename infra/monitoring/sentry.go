// Package monitoring reports simulation errors to Sentry.
package monitoring

import (
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/kilianp07/solaris/config"
	coremon "github.com/kilianp07/solaris/core/monitoring"
)

// Option customises the Sentry client.
type Option func(*sentry.ClientOptions)

// WithBeforeSend installs a hook run on every event before it is sent.
// Returning nil drops the event.
func WithBeforeSend(f func(*sentry.Event, *sentry.EventHint) *sentry.Event) Option {
	return func(o *sentry.ClientOptions) { o.BeforeSend = f }
}

// NewSentryMonitor creates a Monitor backed by a dedicated Sentry hub. The
// configured tags and the farm id are attached to every event. An empty DSN
// yields a no-op monitor.
func NewSentryMonitor(cfg config.SentryConfig, farmID string, opts ...Option) (coremon.Monitor, error) {
	if cfg.DSN == "" {
		return coremon.NopMonitor{}, nil
	}
	co := sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		TracesSampleRate: cfg.TracesSampleRate,
		Release:          cfg.Release,
		ServerName:       cfg.ServerName,
	}
	for _, o := range opts {
		o(&co)
	}
	client, err := sentry.NewClient(co)
	if err != nil {
		return nil, err
	}
	scope := sentry.NewScope()
	scope.SetTag("service", "solaris")
	if farmID != "" {
		scope.SetTag("farm_id", farmID)
	}
	for k, v := range cfg.Tags {
		scope.SetTag(k, v)
	}
	return &SentryMonitor{hub: sentry.NewHub(client, scope)}, nil
}

// SentryMonitor implements coremon.Monitor on a Sentry hub.
type SentryMonitor struct {
	hub *sentry.Hub
}

func (s *SentryMonitor) CaptureException(err error, tags map[string]string) {
	if err == nil {
		return
	}
	s.hub.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		s.hub.CaptureException(err)
	})
}

// Recover reports a panic, flushes and panics again.
func (s *SentryMonitor) Recover() {
	if r := recover(); r != nil {
		s.hub.Recover(r)
		s.hub.Flush(2 * time.Second)
		panic(r)
	}
}

func (s *SentryMonitor) Flush(timeout time.Duration) { s.hub.Flush(timeout) }
