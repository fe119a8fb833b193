package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standup/attendance-engine/approval"
	"github.com/standup/attendance-engine/ledger"
	"github.com/standup/attendance-engine/registry"
	"github.com/standup/attendance-engine/store/sqlite"
	"github.com/standup/attendance-engine/workday"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func record(id string, day workday.Day) ledger.Record {
	return ledger.Record{
		ID:          id,
		Employee:    "DEV01",
		Day:         day,
		SubmittedAt: time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC),
		Body:        "work update",
		Verdict:     workday.OnTime,
		Kind:        ledger.KindWorked,
	}
}

var march10 = workday.NewDay(2025, time.March, 10)

// =============================================================================
// RECORDS
// =============================================================================

func TestSQLite_InsertAndFetchCurrentRecord(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Apply(ctx, ledger.Mutation{
		Kind: ledger.MutationSubmit, Record: record("rec-1", march10),
	}))

	cur, err := store.CurrentRecord(ctx, "DEV01", march10)
	require.NoError(t, err)
	require.NotNil(t, cur)
	assert.Equal(t, "rec-1", cur.ID)
	assert.Equal(t, march10, cur.Day)
	assert.Equal(t, "work update", cur.Body)
	assert.False(t, cur.Superseded)

	none, err := store.CurrentRecord(ctx, "DEV01", march10.Next())
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestSQLite_UniqueCurrentRecord_EnforcedByIndex(t *testing.T) {
	// GIVEN: A current record for the key
	// WHEN: Another insert targets the same (employee, work-day)
	// THEN: The database itself rejects it

	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Apply(ctx, ledger.Mutation{
		Kind: ledger.MutationSubmit, Record: record("rec-1", march10),
	}))
	err := store.Apply(ctx, ledger.Mutation{
		Kind: ledger.MutationSubmit, Record: record("rec-2", march10),
	})
	assert.ErrorIs(t, err, ledger.ErrRecordAlreadyExists)
}

func TestSQLite_Supersede_AtomicWithGrantConsumption(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Apply(ctx, ledger.Mutation{
		Kind: ledger.MutationSubmit, Record: record("rec-1", march10),
	}))
	require.NoError(t, store.SetOverrideState(ctx, "DEV01", march10, ledger.OverrideGranted))

	replacement := record("rec-2", march10)
	replacement.Body = "corrected"
	require.NoError(t, store.Apply(ctx, ledger.Mutation{
		Kind: ledger.MutationSupersede, Record: replacement, Supersedes: "rec-1",
	}))

	cur, err := store.CurrentRecord(ctx, "DEV01", march10)
	require.NoError(t, err)
	assert.Equal(t, "rec-2", cur.ID)

	state, err := store.OverrideState(ctx, "DEV01", march10)
	require.NoError(t, err)
	assert.Equal(t, ledger.OverrideConsumed, state)

	// The superseded row survives outside the current view.
	recs, err := store.RecordsInRange(ctx, "DEV01", march10, march10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
}

func TestSQLite_SupersedeStaleTarget_Fails(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.Apply(ctx, ledger.Mutation{
		Kind: ledger.MutationSupersede, Record: record("rec-2", march10), Supersedes: "ghost",
	})
	assert.Error(t, err)
}

func TestSQLite_Edit_ReplacesBody(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Apply(ctx, ledger.Mutation{
		Kind: ledger.MutationSubmit, Record: record("rec-1", march10),
	}))

	edited := record("rec-1", march10)
	edited.Body = "rewritten"
	require.NoError(t, store.Apply(ctx, ledger.Mutation{
		Kind: ledger.MutationEdit, Record: edited,
	}))

	cur, err := store.CurrentRecord(ctx, "DEV01", march10)
	require.NoError(t, err)
	assert.Equal(t, "rewritten", cur.Body)
}

func TestSQLite_RecordsInRange_OrderedAndBounded(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i, day := range []workday.Day{march10.AddDays(2), march10, march10.AddDays(5)} {
		rec := record("rec-"+string(rune('a'+i)), day)
		require.NoError(t, store.Apply(ctx, ledger.Mutation{Kind: ledger.MutationSubmit, Record: rec}))
	}

	recs, err := store.RecordsInRange(ctx, "DEV01", march10, march10.AddDays(3))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, march10, recs[0].Day)
	assert.Equal(t, march10.AddDays(2), recs[1].Day)
}

func TestSQLite_OverrideState_DefaultsToNone(t *testing.T) {
	store := newTestStore(t)

	state, err := store.OverrideState(context.Background(), "DEV01", march10)
	require.NoError(t, err)
	assert.Equal(t, ledger.OverrideNone, state)
}

// =============================================================================
// ROSTER
// =============================================================================

func TestSQLite_EmployeeRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutEmployee(ctx, registry.Employee{ID: "DEV01", Name: "Asha", Department: "DEV"}))
	require.NoError(t, store.PutEmployee(ctx, registry.Employee{ID: "DEV01", Name: "Asha K", Department: "DEV"}))

	emp, err := store.GetEmployee(ctx, "DEV01")
	require.NoError(t, err)
	assert.Equal(t, "Asha K", emp.Name, "put is an upsert")

	list, err := store.ListEmployees(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, store.DeleteEmployee(ctx, "DEV01"))
	assert.ErrorIs(t, store.DeleteEmployee(ctx, "DEV01"), registry.ErrNotFound)
	_, err = store.GetEmployee(ctx, "DEV01")
	assert.ErrorIs(t, err, registry.ErrNotFound)
}

// =============================================================================
// REQUESTS
// =============================================================================

func pendingRequest(id string) approval.Request {
	return approval.Request{
		ID:            id,
		Kind:          approval.KindResubmission,
		Requester:     "DEV01",
		RequesterRole: registry.RoleEmployee,
		Employee:      "DEV01",
		Day:           march10,
		Eligible:      []registry.Role{registry.RoleOwner, registry.RoleHR},
		Status:        approval.StatusPending,
		CreatedAt:     time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC),
	}
}

func TestSQLite_RequestRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateRequest(ctx, pendingRequest("req-1")))

	fetched, err := store.GetRequest(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, approval.KindResubmission, fetched.Kind)
	assert.Equal(t, []registry.Role{registry.RoleOwner, registry.RoleHR}, fetched.Eligible)
	assert.Equal(t, march10, fetched.Day)

	_, err = store.GetRequest(ctx, "ghost")
	assert.ErrorIs(t, err, approval.ErrRequestNotFound)
}

func TestSQLite_MarkResolved_CompareAndSet(t *testing.T) {
	// GIVEN: A pending request
	// WHEN: Two resolutions race through the store primitive
	// THEN: The second gets ErrAlreadyResolved regardless of verdict

	store := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2025, time.March, 11, 9, 0, 0, 0, time.UTC)

	require.NoError(t, store.CreateRequest(ctx, pendingRequest("req-1")))

	resolved, err := store.MarkResolved(ctx, "req-1", approval.StatusApproved, "hr-1", now)
	require.NoError(t, err)
	assert.Equal(t, approval.StatusApproved, resolved.Status)
	assert.Equal(t, registry.Identity("hr-1"), resolved.ResolvedBy)

	_, err = store.MarkResolved(ctx, "req-1", approval.StatusRejected, "owner-1", now)
	assert.ErrorIs(t, err, approval.ErrAlreadyResolved)

	_, err = store.MarkResolved(ctx, "ghost", approval.StatusApproved, "hr-1", now)
	assert.ErrorIs(t, err, approval.ErrRequestNotFound)
}

func TestSQLite_ExpirePendingBefore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	old := pendingRequest("req-old")
	old.CreatedAt = time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	fresh := pendingRequest("req-fresh")
	require.NoError(t, store.CreateRequest(ctx, old))
	require.NoError(t, store.CreateRequest(ctx, fresh))

	cutoff := time.Date(2025, time.March, 5, 0, 0, 0, 0, time.UTC)
	expired, err := store.ExpirePendingBefore(ctx, cutoff)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, "req-old", expired[0].ID)
	assert.Equal(t, approval.StatusExpired, expired[0].Status)

	pending, err := store.PendingRequests(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "req-fresh", pending[0].ID)
}
