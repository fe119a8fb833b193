package registry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standup/attendance-engine/registry"
	"github.com/standup/attendance-engine/store/memory"
)

func newRoster(t *testing.T) *registry.Roster {
	t.Helper()
	roster := registry.NewRoster(memory.New(),
		[]registry.Identity{"owner-1"}, []registry.Identity{"hr-1"})
	require.NoError(t, roster.Add(context.Background(),
		registry.Employee{ID: "dev01", Name: "Asha", Department: "dev"}))
	return roster
}

func TestRoster_Add_NormalizesIdentifierAndDepartment(t *testing.T) {
	roster := newRoster(t)

	emp, err := roster.Resolve(context.Background(), "DEV01")
	require.NoError(t, err)
	assert.Equal(t, registry.EmployeeID("DEV01"), emp.ID)
	assert.Equal(t, "DEV", emp.Department)
}

func TestRoster_Resolve_UnknownID(t *testing.T) {
	roster := newRoster(t)

	_, err := roster.Resolve(context.Background(), "GHOST9")
	assert.ErrorIs(t, err, registry.ErrNotFound)
}

func TestRoster_RoleOf_Precedence(t *testing.T) {
	// GIVEN: Configured owner and HR identities plus a rostered employee
	// WHEN: Resolving each identity
	// THEN: owner > hr > employee > unknown

	roster := newRoster(t)
	ctx := context.Background()

	for _, tc := range []struct {
		identity registry.Identity
		want     registry.Role
	}{
		{"owner-1", registry.RoleOwner},
		{"hr-1", registry.RoleHR},
		{"DEV01", registry.RoleEmployee},
		{"dev01", registry.RoleEmployee},
		{"stranger", registry.RoleUnknown},
	} {
		role, err := roster.RoleOf(ctx, tc.identity)
		require.NoError(t, err)
		assert.Equal(t, tc.want, role, "identity %s", tc.identity)
	}
}

func TestRoster_Remove(t *testing.T) {
	roster := newRoster(t)
	ctx := context.Background()

	require.NoError(t, roster.Remove(ctx, "DEV01"))
	_, err := roster.Resolve(ctx, "DEV01")
	assert.ErrorIs(t, err, registry.ErrNotFound)

	assert.ErrorIs(t, roster.Remove(ctx, "DEV01"), registry.ErrNotFound)
}

func TestRoster_OwnerAndHRSets(t *testing.T) {
	roster := newRoster(t)

	assert.ElementsMatch(t, []registry.Identity{"owner-1"}, roster.Owners())
	assert.ElementsMatch(t, []registry.Identity{"hr-1"}, roster.HR())
}
