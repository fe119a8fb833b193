package report_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standup/attendance-engine/ledger"
	"github.com/standup/attendance-engine/registry"
	"github.com/standup/attendance-engine/report"
	"github.com/standup/attendance-engine/store/memory"
	"github.com/standup/attendance-engine/workday"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type directCommit struct {
	store ledger.Store
}

func (c directCommit) Commit(ctx context.Context, m ledger.Mutation) error {
	return c.store.Apply(ctx, m)
}

func newFixture(t *testing.T) (*report.Reporter, *ledger.Ledger) {
	t.Helper()
	store := memory.New()
	ctx := context.Background()

	roster := registry.NewRoster(store, []registry.Identity{"owner-1"}, nil)
	require.NoError(t, roster.Add(ctx, registry.Employee{ID: "DEV01", Name: "Asha", Department: "DEV"}))
	require.NoError(t, roster.Add(ctx, registry.Employee{ID: "DEV02", Name: "Ravi", Department: "DEV"}))

	led := ledger.New(store, directCommit{store},
		workday.Resolver{Deadline: workday.Deadline{Hour: 11}})
	return report.New(led, roster), led
}

func submitOn(t *testing.T, led *ledger.Ledger, emp registry.EmployeeID, day, hour int) {
	t.Helper()
	_, err := led.TryRecord(context.Background(), emp,
		time.Date(2025, time.March, day, hour, 0, 0, 0, time.UTC), "update")
	require.NoError(t, err)
}

// =============================================================================
// WEEKLY GRID
// =============================================================================

func TestReporter_Weekly_SymbolsPerDay(t *testing.T) {
	// GIVEN: DEV01 submitted Mon on time, Tue late (03:00 next day), on
	//        leave Wed; DEV02 silent all week
	// WHEN: Rendering the week of Monday March 10
	// THEN: The grid shows + ~ L and dashes

	rep, led := newFixture(t)
	ctx := context.Background()

	submitOn(t, led, "DEV01", 10, 12)
	// 03:00 on the 12th lands on the 11th, late.
	submitOn(t, led, "DEV01", 12, 3)
	_, err := led.RecordLeave(ctx, "DEV01", workday.NewDay(2025, time.March, 12), "errand", "owner-1")
	require.NoError(t, err)

	grid, err := rep.Weekly(ctx, workday.NewDay(2025, time.March, 10))
	require.NoError(t, err)
	require.Len(t, grid.Rows, 2)

	dev01 := grid.Rows[0]
	assert.Equal(t, registry.EmployeeID("DEV01"), dev01.Employee.ID)
	require.Len(t, dev01.Days, 7)
	assert.Equal(t, ledger.StatusSubmitted, dev01.Days[0].Status)
	assert.Equal(t, workday.Late, dev01.Days[1].Record.Verdict)
	assert.Equal(t, ledger.StatusLeave, dev01.Days[2].Status)
	assert.Equal(t, ledger.StatusAbsent, dev01.Days[3].Status)

	text := grid.Format()
	assert.Contains(t, text, "DEV01")
	assert.Contains(t, text, "+   ~   L")
	assert.Contains(t, text, "Week of 2025-03-10")
}

// =============================================================================
// MONTHLY SUMMARY
// =============================================================================

func TestReporter_Monthly_PercentOverElapsedDays(t *testing.T) {
	// GIVEN: DEV01 covered 8 of the first 10 March days (7 worked, 1
	//        leave), DEV02 covered none
	// WHEN: Summarizing as of March 10
	// THEN: 80% vs 0%

	rep, led := newFixture(t)
	ctx := context.Background()

	for d := 1; d <= 7; d++ {
		submitOn(t, led, "DEV01", d, 12)
	}
	_, err := led.RecordLeave(ctx, "DEV01", workday.NewDay(2025, time.March, 8), "errand", "owner-1")
	require.NoError(t, err)

	summary, err := rep.Monthly(ctx, workday.NewDay(2025, time.March, 10))
	require.NoError(t, err)
	assert.Equal(t, "2025-03", summary.Month)
	require.Len(t, summary.Rows, 2)

	dev01 := summary.Rows[0]
	assert.Equal(t, 7, dev01.Submitted)
	assert.Equal(t, 1, dev01.OnLeave)
	assert.Equal(t, 2, dev01.Absent)
	assert.Equal(t, 80, dev01.Percent)

	dev02 := summary.Rows[1]
	assert.Equal(t, 0, dev02.Percent)
	assert.Equal(t, 10, dev02.Absent)

	text := summary.Format()
	assert.Contains(t, text, "########..  80%")
	assert.True(t, strings.Contains(text, "..........   0%"))
}

// =============================================================================
// DAY LISTS
// =============================================================================

func TestReporter_AbsentAndLateLists(t *testing.T) {
	rep, led := newFixture(t)
	ctx := context.Background()
	day := workday.NewDay(2025, time.March, 10)

	// DEV01 submits late for the 10th (05:00 on the 11th), DEV02 stays silent.
	submitOn(t, led, "DEV01", 11, 5)

	absent, err := rep.AbsentOn(ctx, day)
	require.NoError(t, err)
	require.Len(t, absent, 1)
	assert.Equal(t, registry.EmployeeID("DEV02"), absent[0].ID)

	late, err := rep.LateOn(ctx, day)
	require.NoError(t, err)
	require.Len(t, late, 1)
	assert.Equal(t, registry.EmployeeID("DEV01"), late[0].ID)
}
