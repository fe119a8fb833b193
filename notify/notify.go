/*
Package notify carries notification intents out of the engine.

PURPOSE:
  The engine decides WHO should hear about something (suspicious
  duplicates go to Owner and HR, resolution outcomes go back to the
  requester); this package owns the delivery seam. The default sink
  writes structured log lines; a chat transport plugs in behind the
  same interface without touching the callers.
*/
package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/standup/attendance-engine/registry"
)

// Notifier delivers a message to a set of identities.
type Notifier interface {
	Notify(ctx context.Context, recipients []registry.Identity, subject, body string) error
}

// =============================================================================
// LOG SINK
// =============================================================================

// Log is a Notifier that records the intent in the structured log.
type Log struct {
	log *zap.Logger
}

func NewLog(log *zap.Logger) *Log {
	if log == nil {
		log = zap.NewNop()
	}
	return &Log{log: log}
}

func (l *Log) Notify(_ context.Context, recipients []registry.Identity, subject, body string) error {
	ids := make([]string, len(recipients))
	for i, r := range recipients {
		ids[i] = string(r)
	}
	l.log.Info("notification",
		zap.Strings("recipients", ids),
		zap.String("subject", subject),
		zap.String("body", body))
	return nil
}

// =============================================================================
// FAN-OUT
// =============================================================================

// Fanout delivers through every sink, returning the first error after
// attempting all of them.
type Fanout []Notifier

func (f Fanout) Notify(ctx context.Context, recipients []registry.Identity, subject, body string) error {
	var firstErr error
	for _, n := range f {
		if err := n.Notify(ctx, recipients, subject, body); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
