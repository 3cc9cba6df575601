package tracker

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/vigil/internal/explorer"
	vigilerr "github.com/mrz1836/vigil/pkg/errors"
)

const waitTimeout = 5 * time.Second

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()

	select {
	case v := <-ch:
		return v
	case <-time.After(waitTimeout):
		require.FailNow(t, "timed out waiting for reconciler event")
	}
	var zero T
	return zero
}

// waitTimers blocks until the reconciler has armed n timers.
func waitTimers(t *testing.T, sig <-chan time.Duration, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		receive(t, sig)
	}
}

type recorder struct {
	cycles  chan CycleReport
	changes chan Change
	errs    chan error
	ticks   chan Status
}

func newRecorder() *recorder {
	return &recorder{
		cycles:  make(chan CycleReport, 16),
		changes: make(chan Change, 16),
		errs:    make(chan error, 16),
		ticks:   make(chan Status, 16),
	}
}

func (r *recorder) observer() Observer {
	return ObserverFuncs{
		Cycle:      func(rep CycleReport) { r.cycles <- rep },
		Change:     func(_ uuid.UUID, c Change) { r.changes <- c },
		CycleError: func(_ uuid.UUID, err error) { r.errs <- err },
		Tick: func(st Status) {
			select {
			case r.ticks <- st:
			default:
			}
		},
	}
}

func TestReconcilerCycle(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.generate(t)
	h.balances.set(ext0, used(1, 1000))
	h.txs = []explorer.Transaction{payment("t1", day1, ext0, 1000)}

	r := NewReconciler(h.svc, &ReconcilerOptions{Clock: clock.NewTestClock(time.Unix(1700000000, 0)), Metrics: h.metrics})
	ctx := context.Background()

	first := r.Cycle(ctx)
	require.NoError(t, first.Err)
	assert.Zero(t, first.TotalBefore)
	assert.Equal(t, int64(1000), first.TotalAfter)
	assert.True(t, first.HistoryRefreshed)
	assert.Equal(t, "fresh", first.Mempool)
	require.Len(t, first.Changes, 1)
	assert.Equal(t, ChangeNewAddress, first.Changes[0].Kind)
	assert.Equal(t, ext0, first.Changes[0].Address)

	timeline, err := h.svc.Timeline()
	require.NoError(t, err)
	require.Len(t, timeline, 1)

	second := r.Cycle(ctx)
	require.NoError(t, second.Err)
	assert.Empty(t, second.Changes)
	assert.False(t, second.HistoryRefreshed)
	assert.Len(t, h.lister.requests, 1)
	assert.NotEqual(t, first.ID, second.ID)

	h.balances.set(ext0, used(2, 1500))
	h.txs = append(h.txs, payment("t2", day1+60, ext0, 500))

	third := r.Cycle(ctx)
	require.NoError(t, third.Err)
	assert.Equal(t, int64(1000), third.TotalBefore)
	assert.Equal(t, int64(1500), third.TotalAfter)
	assert.True(t, third.HistoryRefreshed)
	require.Len(t, third.Changes, 1)
	assert.Equal(t, ChangeReceived, third.Changes[0].Kind)
	assert.Equal(t, int64(500), third.Changes[0].BalanceChange)
	assert.Len(t, h.lister.requests, 2)

	snap := h.metrics.Snapshot()
	assert.Equal(t, int64(3), snap.CyclesTotal)
	assert.Equal(t, int64(2), snap.ChangesTotal)
	assert.Zero(t, snap.CycleErrors)
}

func TestReconcilerCycleTxCountOnly(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.generate(t)
	h.balances.set(ext0, used(1, 1000))
	r := NewReconciler(h.svc, &ReconcilerOptions{Metrics: h.metrics})

	require.NoError(t, r.Cycle(context.Background()).Err)
	requests := len(h.lister.requests)

	h.balances.set(ext0, used(2, 1000))
	rep := r.Cycle(context.Background())
	require.NoError(t, rep.Err)
	require.Len(t, rep.Changes, 1)
	assert.Equal(t, ChangeUnconfirmed, rep.Changes[0].Kind)
	assert.False(t, rep.HistoryRefreshed)
	assert.Len(t, h.lister.requests, requests)
}

func TestReconcilerCycleReportsErrors(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	r := NewReconciler(h.svc, &ReconcilerOptions{Metrics: h.metrics})

	rep := r.Cycle(context.Background())
	require.ErrorIs(t, rep.Err, vigilerr.ErrInput)
	assert.NotEmpty(t, rep.Error)
	assert.Empty(t, rep.Changes)
	assert.Equal(t, int64(1), h.metrics.Snapshot().CycleErrors)
}

func TestReconcilerStartStop(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.generate(t)
	h.balances.set(ext0, used(1, 1000))

	start := time.Unix(1700000000, 0)
	sig := make(chan time.Duration, 64)
	tc := clock.NewTestClockWithTickSignal(start, sig)
	rec := newRecorder()
	r := NewReconciler(h.svc, &ReconcilerOptions{Clock: tc, Observer: rec.observer(), Metrics: h.metrics})

	assert.Equal(t, StateIdle, r.Status().State)
	require.NoError(t, r.Start(context.Background()))
	require.ErrorIs(t, r.Start(context.Background()), ErrAlreadyPolling)

	first := receive(t, rec.cycles)
	require.NoError(t, first.Err)
	assert.Equal(t, ChangeNewAddress, receive(t, rec.changes).Kind)
	waitTimers(t, sig, 2)

	st := r.Status()
	assert.Equal(t, StatePolling, st.State)
	assert.Equal(t, "polling", st.State.String())
	assert.Equal(t, start.Add(30*time.Second), st.NextCycle)
	assert.Equal(t, 30, st.SecondsRemaining)
	assert.False(t, st.Checking)
	assert.Equal(t, 1, st.Cycles)

	tc.SetTime(start.Add(time.Second))
	tick := receive(t, rec.ticks)
	assert.Equal(t, 29, tick.SecondsRemaining)
	waitTimers(t, sig, 1)

	tc.SetTime(start.Add(30 * time.Second))
	second := receive(t, rec.cycles)
	require.NoError(t, second.Err)
	assert.NotEqual(t, first.ID, second.ID)

	require.NoError(t, r.Stop())
	receive(t, r.Done())

	st = r.Status()
	assert.Equal(t, StateIdle, st.State)
	assert.Zero(t, st.SecondsRemaining)
	assert.Equal(t, 2, st.Cycles)
	require.ErrorIs(t, r.Stop(), ErrNotPolling)
}

func TestReconcilerRestartWaitsForInFlightCycle(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.generate(t)
	h.balances.set(ext0, used(1, 1000))
	gate := h.balances.hold()

	sig := make(chan time.Duration, 64)
	tc := clock.NewTestClockWithTickSignal(time.Unix(1700000000, 0), sig)
	rec := newRecorder()
	r := NewReconciler(h.svc, &ReconcilerOptions{Clock: tc, Observer: rec.observer(), Metrics: h.metrics})

	ctx := context.Background()
	require.NoError(t, r.Start(ctx))
	receive(t, gate.entered)
	previous := r.Done()

	require.NoError(t, r.Stop())
	require.NoError(t, r.Start(ctx))

	select {
	case <-gate.entered:
		require.FailNow(t, "restarted run scanned while the previous cycle was still running")
	case <-time.After(100 * time.Millisecond):
	}
	assert.True(t, r.Status().Checking)

	close(gate.release)
	first := receive(t, rec.cycles)
	receive(t, previous)
	second := receive(t, rec.cycles)

	require.NoError(t, first.Err)
	require.NoError(t, second.Err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 2, r.Status().Cycles)
	assert.Equal(t, StatePolling, r.Status().State)

	require.NoError(t, r.Stop())
	receive(t, r.Done())
}

func TestReconcilerKeepsPollingAfterFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	start := time.Unix(1700000000, 0)
	sig := make(chan time.Duration, 64)
	tc := clock.NewTestClockWithTickSignal(start, sig)
	rec := newRecorder()
	r := NewReconciler(h.svc, &ReconcilerOptions{Clock: tc, Observer: rec.observer(), Metrics: h.metrics})

	require.NoError(t, r.Start(context.Background()))
	require.ErrorIs(t, receive(t, rec.errs), vigilerr.ErrInput)
	waitTimers(t, sig, 2)

	// addresses appear between cycles
	h.generate(t)
	tc.SetTime(start.Add(30 * time.Second))

	for {
		rep := receive(t, rec.cycles)
		if rep.Err == nil {
			assert.Equal(t, "fresh", rep.Mempool)
			break
		}
	}

	require.NoError(t, r.Stop())
	receive(t, r.Done())
}

func TestReconcilerStopsWhenContextEnds(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.generate(t)
	sig := make(chan time.Duration, 64)
	tc := clock.NewTestClockWithTickSignal(time.Unix(1700000000, 0), sig)
	rec := newRecorder()
	r := NewReconciler(h.svc, &ReconcilerOptions{Clock: tc, Observer: rec.observer(), Metrics: h.metrics})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, r.Start(ctx))
	receive(t, rec.cycles)
	waitTimers(t, sig, 2)

	cancel()
	receive(t, r.Done())
	assert.Equal(t, StateIdle, r.Status().State)
	require.ErrorIs(t, r.Stop(), ErrNotPolling)
}

func TestReconcilerIdleDone(t *testing.T) {
	t.Parallel()

	r := NewReconciler(newHarness(t).svc, nil)
	receive(t, r.Done())
	assert.Equal(t, "idle", r.Status().State.String())
}
