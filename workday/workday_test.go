package workday_test

import (
	"testing"
	"time"

	"github.com/standup/attendance-engine/workday"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func eleven() workday.Deadline { return workday.Deadline{Hour: 11, Minute: 0} }

// =============================================================================
// DAY BOUNDARY RULE
// =============================================================================

func TestResolver_BeforeDeadline_PreviousDayLate(t *testing.T) {
	// GIVEN: deadline 11:00
	// WHEN: a submission arrives at 09:30 on March 10
	// THEN: it is credited to March 9 and marked Late

	r := workday.Resolver{Deadline: eleven()}
	day, verdict := r.Resolve(time.Date(2025, time.March, 10, 9, 30, 0, 0, time.UTC))

	assert.Equal(t, workday.NewDay(2025, time.March, 9), day)
	assert.Equal(t, workday.Late, verdict)
}

func TestResolver_AtDeadline_CurrentDayOnTime(t *testing.T) {
	// The deadline minute itself starts the new cycle.
	r := workday.Resolver{Deadline: eleven()}
	day, verdict := r.Resolve(time.Date(2025, time.March, 10, 11, 0, 0, 0, time.UTC))

	assert.Equal(t, workday.NewDay(2025, time.March, 10), day)
	assert.Equal(t, workday.OnTime, verdict)
}

func TestResolver_AfterDeadline_CurrentDayOnTime(t *testing.T) {
	r := workday.Resolver{Deadline: eleven()}
	day, verdict := r.Resolve(time.Date(2025, time.March, 10, 23, 50, 0, 0, time.UTC))

	assert.Equal(t, workday.NewDay(2025, time.March, 10), day)
	assert.Equal(t, workday.OnTime, verdict)
}

func TestResolver_JustPastMidnight_StillPreviousCycle(t *testing.T) {
	// GIVEN: deadline 01:00
	// WHEN: a submission arrives at 00:30
	// THEN: work-day is yesterday, verdict Late (grace window past midnight)

	r := workday.Resolver{Deadline: workday.Deadline{Hour: 1, Minute: 0}}
	day, verdict := r.Resolve(time.Date(2025, time.March, 11, 0, 30, 0, 0, time.UTC))

	assert.Equal(t, workday.NewDay(2025, time.March, 10), day)
	assert.Equal(t, workday.Late, verdict)
}

func TestResolver_MonthBoundary(t *testing.T) {
	// Just past midnight on April 1 credits March 31.
	r := workday.Resolver{Deadline: eleven()}
	day, verdict := r.Resolve(time.Date(2025, time.April, 1, 0, 10, 0, 0, time.UTC))

	assert.Equal(t, workday.NewDay(2025, time.March, 31), day)
	assert.Equal(t, workday.Late, verdict)
}

func TestResolver_TimezoneApplied(t *testing.T) {
	// GIVEN: resolver pinned to a +05:30 zone
	// WHEN: the timestamp is 04:00 UTC (09:30 local) with deadline 11:00
	// THEN: local time-of-day decides: previous day, Late

	loc := time.FixedZone("IST", 5*3600+1800)
	r := workday.Resolver{Deadline: eleven(), Location: loc}

	day, verdict := r.Resolve(time.Date(2025, time.March, 10, 4, 0, 0, 0, time.UTC))
	assert.Equal(t, workday.NewDay(2025, time.March, 9), day)
	assert.Equal(t, workday.Late, verdict)

	// 06:00 UTC is 11:30 local: same day, on time.
	day, verdict = r.Resolve(time.Date(2025, time.March, 10, 6, 0, 0, 0, time.UTC))
	assert.Equal(t, workday.NewDay(2025, time.March, 10), day)
	assert.Equal(t, workday.OnTime, verdict)
}

func TestResolver_Idempotent(t *testing.T) {
	r := workday.Resolver{Deadline: eleven()}
	ts := time.Date(2025, time.June, 5, 10, 59, 59, 0, time.UTC)

	d1, v1 := r.Resolve(ts)
	d2, v2 := r.Resolve(ts)

	assert.Equal(t, d1, d2)
	assert.Equal(t, v1, v2)
}

// =============================================================================
// DAY ARITHMETIC
// =============================================================================

func TestDay_Ordering(t *testing.T) {
	a := workday.NewDay(2025, time.March, 9)
	b := workday.NewDay(2025, time.March, 10)

	assert.True(t, a.Before(b))
	assert.True(t, b.After(a))
	assert.Equal(t, 1, workday.DaysBetween(a, b))
	assert.Equal(t, b, a.Next())
	assert.Equal(t, a, b.Prev())
}

func TestDay_String_And_Parse(t *testing.T) {
	d := workday.NewDay(2025, time.March, 9)
	assert.Equal(t, "2025-03-09", d.String())

	parsed, err := workday.ParseDay("2025-03-09")
	require.NoError(t, err)
	assert.Equal(t, d, parsed)

	_, err = workday.ParseDay("09-03-2025")
	assert.Error(t, err)
}

func TestDay_MonthKey(t *testing.T) {
	assert.Equal(t, "2025-03", workday.NewDay(2025, time.March, 9).MonthKey())
}

func TestParseDeadline(t *testing.T) {
	d, err := workday.ParseDeadline("11:00")
	require.NoError(t, err)
	assert.Equal(t, workday.Deadline{Hour: 11, Minute: 0}, d)
	assert.Equal(t, "11:00", d.String())

	_, err = workday.ParseDeadline("25:00")
	assert.Error(t, err)

	_, err = workday.ParseDeadline("eleven")
	assert.Error(t, err)
}
