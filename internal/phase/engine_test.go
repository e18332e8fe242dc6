package phase

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"synth-cohort/internal/domain"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestEngine_Compute(t *testing.T) {
	eval := date(2024, time.March, 1)

	tests := []struct {
		name        string
		daysAgo     int
		cycle       int
		wantPhase   domain.Phase
		wantElapsed int
	}{
		{"same day", 0, 28, domain.PhaseFollicular, 0},
		{"last follicular day", 13, 28, domain.PhaseFollicular, 13},
		{"first luteal day", 14, 28, domain.PhaseLuteal, 14},
		{"last day of cycle", 27, 28, domain.PhaseLuteal, 27},
		{"wraps into next cycle", 28, 28, domain.PhaseFollicular, 0},
		{"short cycle wraps", 30, 21, domain.PhaseFollicular, 9},
		{"long cycle luteal", 20, 35, domain.PhaseLuteal, 20},
	}

	e, err := New(14, 21, 35)
	require.NoError(t, err)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref := eval.AddDate(0, 0, -tt.daysAgo)
			got, err := e.Compute(ref, eval, tt.cycle)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPhase, got.Phase)
			assert.Equal(t, tt.wantElapsed, got.DaysElapsed)
			assert.Equal(t, 14, got.SplitDay)
		})
	}
}

func TestEngine_FutureReferenceWraps(t *testing.T) {
	e, err := New(14, 21, 35)
	require.NoError(t, err)

	eval := date(2024, time.March, 1)
	got, err := e.Compute(eval.AddDate(0, 0, 3), eval, 28)
	require.NoError(t, err)

	assert.Equal(t, 25, got.DaysElapsed)
	assert.Equal(t, domain.PhaseLuteal, got.Phase)
}

func TestEngine_SplitClampedToCycle(t *testing.T) {
	e, err := New(30, 21, 35)
	require.NoError(t, err)

	eval := date(2024, time.March, 1)
	got, err := e.Compute(eval.AddDate(0, 0, -20), eval, 21)
	require.NoError(t, err)

	assert.Equal(t, 20, got.SplitDay)
	assert.Equal(t, domain.PhaseLuteal, got.Phase, "last day of the cycle must stay luteal")

	got, err = e.Compute(eval.AddDate(0, 0, -19), eval, 21)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseFollicular, got.Phase)
}

func TestEngine_IgnoresTimeOfDay(t *testing.T) {
	e, err := New(14, 21, 35)
	require.NoError(t, err)

	ref := time.Date(2024, time.February, 16, 23, 59, 0, 0, time.UTC)
	eval := time.Date(2024, time.March, 1, 0, 1, 0, 0, time.UTC)
	got, err := e.Compute(ref, eval, 28)
	require.NoError(t, err)

	assert.Equal(t, 14, got.DaysElapsed)
}

func TestEngine_Boundary(t *testing.T) {
	e, err := New(14, 21, 35)
	require.NoError(t, err)

	eval := date(2024, time.March, 1)
	got, err := e.Compute(eval.AddDate(0, 0, -30), eval, 28)
	require.NoError(t, err)

	assert.Equal(t, 2, got.DaysElapsed)
	assert.Equal(t, date(2024, time.February, 28), got.CycleStart)
	assert.Equal(t, date(2024, time.March, 13), got.Boundary)
}

func TestEngine_Deterministic(t *testing.T) {
	e, err := New(14, 21, 35)
	require.NoError(t, err)

	ref := date(2024, time.January, 9)
	eval := date(2024, time.March, 1)
	first, err := e.Compute(ref, eval, 29)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := e.Compute(ref, eval, 29)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestEngine_CycleOutOfRange(t *testing.T) {
	e, err := New(14, 21, 35)
	require.NoError(t, err)

	eval := date(2024, time.March, 1)
	for _, cycle := range []int{0, 20, 36} {
		_, err := e.Compute(eval, eval, cycle)
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrInvalidConfiguration))

		var cfgErr *domain.ConfigError
		require.True(t, errors.As(err, &cfgErr))
		assert.Equal(t, "cycle_length", cfgErr.Field)
	}
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name     string
		split    int
		min, max int
		field    string
	}{
		{"min below two", 14, 1, 35, "cycle_length_bounds"},
		{"max below min", 14, 30, 21, "cycle_length_bounds"},
		{"zero split", 0, 21, 35, "phase_split_day"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.split, tt.min, tt.max)
			var cfgErr *domain.ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}
