package consolidation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"nexira/internal/clock"
)

func TestTitleCaseRendersSnakeCaseAsTitle(t *testing.T) {
	require.Equal(t, "Daily Reflection", titleCase("daily_reflection"))
	require.Equal(t, "Philosophical", titleCase("philosophical"))
}

func TestNewAppliesDefaultsForZeroConfig(t *testing.T) {
	e := New(nil, nil, clock.NewFake(time.Time{}), nil, nil, nil, nil, Config{})
	require.Equal(t, 3, e.cfg.PhilosophicalEveryRuns)
	require.Equal(t, "the AI", e.cfg.AIName)
}

func TestNewPreservesExplicitConfig(t *testing.T) {
	e := New(nil, nil, clock.NewFake(time.Time{}), nil, nil, nil, nil, Config{
		PhilosophicalEveryRuns: 5,
		AIName:                 "Nexira",
		UserName:               "Sam",
	})
	require.Equal(t, 5, e.cfg.PhilosophicalEveryRuns)
	require.Equal(t, "Nexira", e.cfg.AIName)
	require.Equal(t, "Sam", e.cfg.UserName)
}

func TestDailyReflectionPromptMentionsBothNames(t *testing.T) {
	e := New(nil, nil, clock.NewFake(time.Time{}), nil, nil, nil, nil, Config{AIName: "Nexira", UserName: "Sam"})
	p := e.dailyReflectionPrompt()
	require.Contains(t, p, "Nexira")
	require.Contains(t, p, "Sam")
}

func TestPhilosophicalPromptMentionsAIName(t *testing.T) {
	e := New(nil, nil, clock.NewFake(time.Time{}), nil, nil, nil, nil, Config{AIName: "Nexira"})
	p := e.philosophicalPrompt()
	require.Contains(t, p, "Nexira")
}
