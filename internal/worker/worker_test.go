package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joshu-sajeev/brokerjobs/internal/config"
	"github.com/joshu-sajeev/brokerjobs/internal/orchestrator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingTicker struct {
	calls    atomic.Int32
	deadline atomic.Bool
	panics   bool
}

func (c *countingTicker) Tick(ctx context.Context) orchestrator.Report {
	c.calls.Add(1)
	if _, ok := ctx.Deadline(); ok {
		c.deadline.Store(true)
	}
	if c.panics {
		panic("tick blew up")
	}
	return orchestrator.Report{
		Invocation: "inv",
		Kinds:      []orchestrator.KindReport{{Kind: config.KindRosterImport, Result: orchestrator.ResultAdvanced}},
	}
}

func TestNew_RejectsBadSchedule(t *testing.T) {
	_, err := New(&countingTicker{}, "every minute", time.Second, nil)

	assert.ErrorContains(t, err, `invalid schedule "every minute"`)
}

func TestRunOnce(t *testing.T) {
	ticker := &countingTicker{}
	w, err := New(ticker, "* * * * *", time.Second, nil)
	require.NoError(t, err)

	report := w.RunOnce(context.Background())

	assert.Equal(t, "inv", report.Invocation)
	assert.Equal(t, int32(1), ticker.calls.Load())
	assert.True(t, ticker.deadline.Load(), "each tick is bounded")
	assert.Equal(t, report, w.Last())
}

func TestStartStop(t *testing.T) {
	ticker := &countingTicker{}
	w, err := New(ticker, "@every 1s", time.Second, nil)
	require.NoError(t, err)

	w.Start()
	require.Eventually(t, func() bool { return ticker.calls.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
	w.Stop()

	calls := ticker.calls.Load()
	time.Sleep(1500 * time.Millisecond)
	assert.Equal(t, calls, ticker.calls.Load(), "no ticks after Stop")
}

func TestPanickingTickDoesNotStopTheSchedule(t *testing.T) {
	ticker := &countingTicker{panics: true}
	w, err := New(ticker, "@every 1s", time.Second, nil)
	require.NoError(t, err)

	w.Start()
	defer w.Stop()

	require.Eventually(t, func() bool { return ticker.calls.Load() >= 2 }, 4*time.Second, 50*time.Millisecond)
}
