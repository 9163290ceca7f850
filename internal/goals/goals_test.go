package goals

import (
	"testing"

	"github.com/stretchr/testify/require"

	"nexira/internal/store"
)

func TestFallbackFollowUpDoublesTarget(t *testing.T) {
	completed := store.Goal{Name: "Build a knowledge base of 50 topics", Type: "knowledge", Target: 50}
	next := fallbackFollowUp(completed)
	require.Equal(t, "knowledge", next.Type)
	require.Equal(t, 100.0, next.Target)
	require.Contains(t, next.Name, completed.Name)
}

func TestNameOrFallsBackOnBlank(t *testing.T) {
	require.Equal(t, "the assistant", nameOr("  ", "the assistant"))
	require.Equal(t, "Nova", nameOr("Nova", "the assistant"))
}

func TestAllowedTypesCoversSeedGoalTypes(t *testing.T) {
	for _, g := range seedGoals {
		require.True(t, allowedTypes[g.goalType], "seed goal type %q must be in allowedTypes", g.goalType)
	}
}

func TestSeedGoalsMatchSpecSet(t *testing.T) {
	require.Len(t, seedGoals, 5)
	types := make(map[string]bool)
	for _, g := range seedGoals {
		types[g.goalType] = true
	}
	require.True(t, types["relationship"])
	require.True(t, types["personality"])
	require.True(t, types["knowledge"])
	require.True(t, types["growth"])
	require.True(t, types["philosophical"])
}
