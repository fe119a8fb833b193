/*
Package syncer couples the durable primary write with best-effort
mirroring.

PURPOSE:
  Every finalized ledger mutation goes through the Dispatcher: the
  primary store write happens synchronously on the caller's goroutine
  and its failure rejects the operation, while mirror writes are queued
  and applied asynchronously. A dead mirror never blocks or fails a
  submission.

KEY CONCEPTS:
  - Mutations carry immutable snapshots, so the mirror goroutine never
    shares mutable state with the caller.
  - Mirror failures are retried with bounded backoff, then logged and
    dropped. The primary store stays the source of truth; a mirror can
    always be rebuilt from it.

SEE ALSO:
  - ledger: produces mutations, defines the Committer contract
  - excel.go: the workbook mirror
*/
package syncer

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/standup/attendance-engine/ledger"
)

// Mirror receives finalized mutations after the primary write.
type Mirror interface {
	Name() string
	Mirror(ctx context.Context, m ledger.Mutation) error
}

const (
	defaultQueueSize  = 256
	mirrorAttempts    = 3
	mirrorBackoffBase = 200 * time.Millisecond
)

// Dispatcher implements ledger.Committer.
type Dispatcher struct {
	primary ledger.Store
	mirrors []Mirror
	log     *zap.Logger

	queue chan ledger.Mutation
	wg    sync.WaitGroup
	once  sync.Once
}

type Option func(*Dispatcher)

func WithLogger(log *zap.Logger) Option {
	return func(d *Dispatcher) { d.log = log }
}

// WithQueueSize bounds the mirror backlog. When the backlog is full the
// oldest pending mutations are NOT evicted; the new one is dropped with
// a warning.
func WithQueueSize(n int) Option {
	return func(d *Dispatcher) { d.queue = make(chan ledger.Mutation, n) }
}

// New starts the mirror worker. Call Close to drain it on shutdown.
func New(primary ledger.Store, mirrors []Mirror, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		primary: primary,
		mirrors: mirrors,
		log:     zap.NewNop(),
		queue:   make(chan ledger.Mutation, defaultQueueSize),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.wg.Add(1)
	go d.run()
	return d
}

// Commit performs the synchronous primary write, then schedules the
// mirrors. Only the primary write can fail the caller.
func (d *Dispatcher) Commit(ctx context.Context, m ledger.Mutation) error {
	if err := d.primary.Apply(ctx, m); err != nil {
		return err
	}
	select {
	case d.queue <- m:
	default:
		d.log.Warn("mirror backlog full, mutation not mirrored",
			zap.String("kind", string(m.Kind)),
			zap.String("record", m.Record.ID))
	}
	return nil
}

// Close stops accepting mirror work and blocks until the backlog drains.
func (d *Dispatcher) Close() {
	d.once.Do(func() { close(d.queue) })
	d.wg.Wait()
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for m := range d.queue {
		for _, mirror := range d.mirrors {
			d.apply(mirror, m)
		}
	}
}

func (d *Dispatcher) apply(mirror Mirror, m ledger.Mutation) {
	backoff := mirrorBackoffBase
	var err error
	for attempt := 1; attempt <= mirrorAttempts; attempt++ {
		err = mirror.Mirror(context.Background(), m)
		if err == nil {
			return
		}
		if attempt < mirrorAttempts {
			time.Sleep(backoff)
			backoff *= 2
		}
	}
	d.log.Error("mirror write abandoned",
		zap.String("mirror", mirror.Name()),
		zap.String("kind", string(m.Kind)),
		zap.String("record", m.Record.ID),
		zap.Error(err))
}
