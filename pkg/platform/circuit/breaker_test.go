package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// replay feeds outcomes to b: 'f' records a failure, 's' a success.
func replay(b *Breaker, outcomes string) Change {
	var last Change
	for _, o := range outcomes {
		if o == 'f' {
			_, last = b.RecordFailure()
		} else {
			_, last = b.RecordSuccess()
		}
	}
	return last
}

func TestBreakerTransitions(t *testing.T) {
	tests := []struct {
		name       string
		failures   int
		successes  int
		outcomes   string
		wantOpen   bool
		wantChange Change
	}{
		{name: "new breaker is closed", failures: 3, wantOpen: false},
		{name: "below threshold stays closed", failures: 3, outcomes: "ff", wantOpen: false},
		{name: "threshold opens", failures: 3, outcomes: "fff", wantOpen: true, wantChange: Change{Opened: true}},
		{name: "success clears the failure run", failures: 3, outcomes: "ffsff", wantOpen: false},
		{name: "failures while open change nothing", failures: 1, outcomes: "ff", wantOpen: true},
		{name: "one success closes by default", failures: 1, successes: 1, outcomes: "fs", wantOpen: false, wantChange: Change{Closed: true}},
		{name: "needs a run of successes", failures: 1, successes: 2, outcomes: "fs", wantOpen: true},
		{name: "failure restarts the success run", failures: 1, successes: 2, outcomes: "fsfs", wantOpen: true},
		{name: "run of successes closes", failures: 1, successes: 2, outcomes: "fsfss", wantOpen: false, wantChange: Change{Closed: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := []Option{WithFailureThreshold(tt.failures)}
			if tt.successes > 0 {
				opts = append(opts, WithSuccessThreshold(tt.successes))
			}
			b := New("notification", opts...)

			change := replay(b, tt.outcomes)
			assert.Equal(t, tt.wantOpen, b.IsOpen())
			assert.Equal(t, tt.wantChange, change)
		})
	}
}

func TestBreakerReportsFallback(t *testing.T) {
	b := New("notification", WithFailureThreshold(2))
	assert.Equal(t, "notification", b.Name())

	useFallback, _ := b.RecordFailure()
	assert.False(t, useFallback)
	useFallback, _ = b.RecordFailure()
	assert.True(t, useFallback)
	assert.Equal(t, "open", b.State().String())

	usePrimary, _ := b.RecordSuccess()
	assert.True(t, usePrimary)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerReset(t *testing.T) {
	b := New("notification", WithFailureThreshold(1))
	replay(b, "f")
	require.True(t, b.IsOpen())

	b.Reset()
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, Change{}, replay(b, "s"))
}

func TestBreakerAllowsOneProbePerCooldown(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := New("notification",
		WithFailureThreshold(1),
		WithCooldown(time.Minute),
		WithClock(func() time.Time { return now }),
	)

	assert.True(t, b.Allow())
	replay(b, "f")
	assert.False(t, b.Allow(), "freshly opened")

	now = now.Add(time.Minute)
	assert.True(t, b.Allow(), "probe after cooldown")
	assert.False(t, b.Allow(), "second call in the same window")

	replay(b, "f")
	now = now.Add(30 * time.Second)
	assert.False(t, b.Allow(), "failed probe waits a full window")
	now = now.Add(30 * time.Second)
	assert.True(t, b.Allow())

	assert.Equal(t, Change{Closed: true}, replay(b, "s"))
	assert.True(t, b.Allow())
}
