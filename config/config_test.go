package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standup/attendance-engine/config"
	"github.com/standup/attendance-engine/registry"
	"github.com/standup/attendance-engine/workday"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, workday.Deadline{Hour: 11}, cfg.Deadline)
	assert.Equal(t, "Asia/Kolkata", cfg.Timezone.String())
	assert.Equal(t, 3, cfg.FreeLeavesPerMonth)
	assert.Equal(t, "500", cfg.DeductionPerLeave.String())
	assert.Equal(t, 72*time.Hour, cfg.RequestMaxAge)
	assert.False(t, cfg.OwnerSelfApproval)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("ATTEND_PORT", "9000")
	t.Setenv("ATTEND_DEADLINE", "09:30")
	t.Setenv("ATTEND_TIMEZONE", "UTC")
	t.Setenv("ATTEND_OWNERS", "owner-1, owner-2")
	t.Setenv("ATTEND_HR", "hr-1")
	t.Setenv("ATTEND_FREE_LEAVES", "2")
	t.Setenv("ATTEND_LEAVE_DEDUCTION", "750.50")
	t.Setenv("ATTEND_OWNER_SELF_APPROVAL", "true")
	t.Setenv("ATTEND_REQUEST_MAX_AGE", "48h")

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, workday.Deadline{Hour: 9, Minute: 30}, cfg.Deadline)
	assert.Equal(t, time.UTC, cfg.Timezone)
	assert.Equal(t, []registry.Identity{"owner-1", "owner-2"}, cfg.Owners)
	assert.Equal(t, []registry.Identity{"hr-1"}, cfg.HR)
	assert.Equal(t, 2, cfg.FreeLeavesPerMonth)
	assert.Equal(t, "750.5", cfg.DeductionPerLeave.String())
	assert.True(t, cfg.OwnerSelfApproval)
	assert.Equal(t, 48*time.Hour, cfg.RequestMaxAge)
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Setenv("ATTEND_DEADLINE", "25:99")
	_, err := config.Load("")
	assert.Error(t, err)
}

func TestLoad_MalformedIntegers_Rejected(t *testing.T) {
	// Numeric settings fail loudly instead of silently falling back.
	t.Setenv("ATTEND_PORT", "eighty")
	_, err := config.Load("")
	assert.ErrorContains(t, err, "ATTEND_PORT")

	t.Setenv("ATTEND_PORT", "8080")
	t.Setenv("ATTEND_FREE_LEAVES", "three")
	_, err = config.Load("")
	assert.ErrorContains(t, err, "ATTEND_FREE_LEAVES")
}
