package syncer_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standup/attendance-engine/ledger"
	"github.com/standup/attendance-engine/store/memory"
	"github.com/standup/attendance-engine/syncer"
	"github.com/standup/attendance-engine/workday"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type recordingMirror struct {
	mu       sync.Mutex
	got      []ledger.Mutation
	failures int
}

func (m *recordingMirror) Name() string { return "recording" }

func (m *recordingMirror) Mirror(_ context.Context, mut ledger.Mutation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failures > 0 {
		m.failures--
		return errors.New("mirror unavailable")
	}
	m.got = append(m.got, mut)
	return nil
}

func (m *recordingMirror) mutations() []ledger.Mutation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ledger.Mutation(nil), m.got...)
}

func submitMutation(id string) ledger.Mutation {
	return ledger.Mutation{
		Kind: ledger.MutationSubmit,
		Record: ledger.Record{
			ID:          id,
			Employee:    "DEV01",
			Day:         workday.NewDay(2025, time.March, 10),
			SubmittedAt: time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC),
			Body:        "work update",
			Verdict:     workday.OnTime,
			Kind:        ledger.KindWorked,
		},
	}
}

// =============================================================================
// DISPATCH SEMANTICS
// =============================================================================

func TestDispatcher_PrimaryWriteIsSynchronous(t *testing.T) {
	// GIVEN: A dispatcher over the primary store
	// WHEN: Commit returns
	// THEN: The record is already durable in the primary, before any
	//       mirror has run

	store := memory.New()
	mirror := &recordingMirror{}
	d := syncer.New(store, []syncer.Mirror{mirror})
	defer d.Close()

	m := submitMutation("rec-1")
	require.NoError(t, d.Commit(context.Background(), m))

	cur, err := store.CurrentRecord(context.Background(), "DEV01", m.Record.Day)
	require.NoError(t, err)
	require.NotNil(t, cur)
	assert.Equal(t, "rec-1", cur.ID)
}

func TestDispatcher_MirrorReceivesMutationAsynchronously(t *testing.T) {
	store := memory.New()
	mirror := &recordingMirror{}
	d := syncer.New(store, []syncer.Mirror{mirror})

	require.NoError(t, d.Commit(context.Background(), submitMutation("rec-1")))
	d.Close() // drains the backlog

	got := mirror.mutations()
	require.Len(t, got, 1)
	assert.Equal(t, "rec-1", got[0].Record.ID)
}

func TestDispatcher_PrimaryFailure_FailsCommitAndSkipsMirror(t *testing.T) {
	// GIVEN: A duplicate that violates the store invariant
	// WHEN: Commit is called
	// THEN: The caller gets the error and the mirror never sees it

	store := memory.New()
	mirror := &recordingMirror{}
	d := syncer.New(store, []syncer.Mirror{mirror})

	require.NoError(t, d.Commit(context.Background(), submitMutation("rec-1")))
	err := d.Commit(context.Background(), submitMutation("rec-2"))
	require.Error(t, err)

	d.Close()
	assert.Len(t, mirror.mutations(), 1, "failed primary write must not be mirrored")
}

func TestDispatcher_MirrorFailure_RetriedThenDelivered(t *testing.T) {
	// GIVEN: A mirror that fails twice before recovering
	// WHEN: A mutation is committed
	// THEN: Commit succeeds immediately and the retry loop still delivers

	store := memory.New()
	mirror := &recordingMirror{failures: 2}
	d := syncer.New(store, []syncer.Mirror{mirror})

	require.NoError(t, d.Commit(context.Background(), submitMutation("rec-1")))
	d.Close()

	require.Len(t, mirror.mutations(), 1)
}

func TestDispatcher_DeadMirror_NeverFailsCaller(t *testing.T) {
	store := memory.New()
	mirror := &recordingMirror{failures: 1 << 30}
	d := syncer.New(store, []syncer.Mirror{mirror})

	require.NoError(t, d.Commit(context.Background(), submitMutation("rec-1")))
	d.Close()

	assert.Empty(t, mirror.mutations(), "mirror never recovered")
	cur, err := store.CurrentRecord(context.Background(), "DEV01", workday.NewDay(2025, time.March, 10))
	require.NoError(t, err)
	assert.NotNil(t, cur, "primary write is unaffected")
}

func TestDispatcher_MultipleMirrors_AllReceive(t *testing.T) {
	store := memory.New()
	a := &recordingMirror{}
	b := &recordingMirror{}
	d := syncer.New(store, []syncer.Mirror{a, b})

	require.NoError(t, d.Commit(context.Background(), submitMutation("rec-1")))
	d.Close()

	assert.Len(t, a.mutations(), 1)
	assert.Len(t, b.mutations(), 1)
}
