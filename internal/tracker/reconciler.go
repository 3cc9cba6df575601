package tracker

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lightningnetwork/lnd/clock"

	"github.com/mrz1836/vigil/internal/metrics"
	vigilerr "github.com/mrz1836/vigil/pkg/errors"
)

// Default polling parameters.
const (
	DefaultPollInterval = 30 * time.Second
	DefaultCountdown    = time.Second
)

// State is the reconciler state.
type State int

// Reconciler states.
const (
	StateIdle State = iota
	StatePolling
)

// String returns the state name.
func (s State) String() string {
	if s == StatePolling {
		return "polling"
	}
	return "idle"
}

// Reconciler lifecycle errors.
var (
	ErrAlreadyPolling = &vigilerr.VigilError{
		Code:     "ALREADY_POLLING",
		Message:  "reconciler is already polling",
		ExitCode: vigilerr.ExitGeneral,
	}
	ErrNotPolling = &vigilerr.VigilError{
		Code:     "NOT_POLLING",
		Message:  "reconciler is not polling",
		ExitCode: vigilerr.ExitGeneral,
	}
)

// CycleReport describes one reconciliation cycle.
type CycleReport struct {
	ID               uuid.UUID     `json:"id"`
	Started          time.Time     `json:"started"`
	Duration         time.Duration `json:"duration"`
	TotalBefore      int64         `json:"total_before"`
	TotalAfter       int64         `json:"total_after"`
	HistoryRefreshed bool          `json:"history_refreshed"`
	Mempool          string        `json:"mempool"`
	Pending          int64         `json:"pending"`
	Changes          []Change      `json:"changes"`
	Error            string        `json:"error,omitempty"`
	Err              error         `json:"-"`
}

// Observer receives reconciler events. Calls are made from the reconciler's
// goroutine and must not block for long.
type Observer interface {
	OnChange(cycle uuid.UUID, change Change)
	OnCycle(report CycleReport)
	OnCycleError(cycle uuid.UUID, err error)
	OnTick(status Status)
}

// ObserverFuncs adapts optional functions to Observer.
type ObserverFuncs struct {
	Change     func(cycle uuid.UUID, change Change)
	Cycle      func(report CycleReport)
	CycleError func(cycle uuid.UUID, err error)
	Tick       func(status Status)
}

// OnChange implements Observer.
func (o ObserverFuncs) OnChange(cycle uuid.UUID, change Change) {
	if o.Change != nil {
		o.Change(cycle, change)
	}
}

// OnCycle implements Observer.
func (o ObserverFuncs) OnCycle(report CycleReport) {
	if o.Cycle != nil {
		o.Cycle(report)
	}
}

// OnCycleError implements Observer.
func (o ObserverFuncs) OnCycleError(cycle uuid.UUID, err error) {
	if o.CycleError != nil {
		o.CycleError(cycle, err)
	}
}

// OnTick implements Observer.
func (o ObserverFuncs) OnTick(status Status) {
	if o.Tick != nil {
		o.Tick(status)
	}
}

// Status is a point-in-time view of the reconciler.
type Status struct {
	State            State        `json:"state"`
	NextCycle        time.Time    `json:"next_cycle"`
	SecondsRemaining int          `json:"seconds_remaining"`
	Checking         bool         `json:"checking"`
	Cycles           int          `json:"cycles"`
	LastReport       *CycleReport `json:"last_report,omitempty"`
}

// ReconcilerOptions configures a Reconciler.
type ReconcilerOptions struct {
	// Interval between cycle starts. Defaults to DefaultPollInterval.
	Interval time.Duration

	// Countdown is the display tick period. Defaults to DefaultCountdown.
	Countdown time.Duration

	Clock    clock.Clock
	Observer Observer
	Logger   Logger
	Metrics  *metrics.Metrics
}

// Reconciler polls the service on a fixed interval and reports what changed.
// Cycles never overlap: each run executes them on one goroutine, skipping
// starts missed by a long cycle, and a run begun after Stop waits for the
// previous run to exit before its first cycle.
type Reconciler struct {
	svc       *Service
	interval  time.Duration
	countdown time.Duration
	clock     clock.Clock
	observer  Observer
	logger    Logger
	metrics   *metrics.Metrics

	mu         sync.Mutex
	state      State
	next       time.Time
	inCycle    bool
	cycles     int
	lastReport *CycleReport
	stop       chan struct{}
	done       chan struct{}
}

// NewReconciler creates an idle reconciler over svc.
func NewReconciler(svc *Service, opts *ReconcilerOptions) *Reconciler {
	r := &Reconciler{
		svc:       svc,
		interval:  DefaultPollInterval,
		countdown: DefaultCountdown,
		clock:     clock.NewDefaultClock(),
		observer:  ObserverFuncs{},
		logger:    nopLogger{},
		metrics:   metrics.Global,
	}
	if opts == nil {
		return r
	}
	if opts.Interval > 0 {
		r.interval = opts.Interval
	}
	if opts.Countdown > 0 {
		r.countdown = opts.Countdown
	}
	if opts.Clock != nil {
		r.clock = opts.Clock
	}
	if opts.Observer != nil {
		r.observer = opts.Observer
	}
	if opts.Metrics != nil {
		r.metrics = opts.Metrics
	}
	r.logger = orNop(opts.Logger)
	return r
}

// Start moves the reconciler to polling and runs the first cycle on a
// background goroutine, immediately unless a cycle from before the last Stop
// is still in flight, in which case it runs once that cycle ends.
// ctx is handed to every cycle; cancelling it also stops polling.
func (r *Reconciler) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StatePolling {
		return ErrAlreadyPolling
	}

	prev := r.done
	r.state = StatePolling
	r.next = r.clock.Now()
	r.stop = make(chan struct{})
	r.done = make(chan struct{})

	go r.run(ctx, r.stop, r.done, prev)
	r.logger.Info("reconciler started, interval %s", r.interval)
	return nil
}

// Stop moves the reconciler to idle. Both timers are dropped; a cycle
// already in flight finishes but schedules nothing further.
func (r *Reconciler) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StatePolling {
		return ErrNotPolling
	}

	close(r.stop)
	r.state = StateIdle
	r.next = time.Time{}
	r.logger.Info("reconciler stopped after %d cycles", r.cycles)
	return nil
}

// Done is closed when the polling goroutine of the latest Start has exited.
func (r *Reconciler) Done() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.done == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return r.done
}

// Status returns the current state and countdown. SecondsRemaining is
// rounded up; Checking is set while a cycle is due or running.
func (r *Reconciler) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.statusLocked()
}

func (r *Reconciler) statusLocked() Status {
	st := Status{State: r.state, Cycles: r.cycles, LastReport: r.lastReport}
	if r.state != StatePolling {
		return st
	}

	st.NextCycle = r.next
	remaining := r.next.Sub(r.clock.Now())
	if remaining <= 0 || r.inCycle {
		st.Checking = true
		return st
	}
	st.SecondsRemaining = int(math.Ceil(remaining.Seconds()))
	return st
}

func (r *Reconciler) run(ctx context.Context, stop, done chan struct{}, prev <-chan struct{}) {
	defer close(done)
	defer r.release(stop)

	if prev != nil {
		select {
		case <-prev:
		case <-stop:
			return
		case <-ctx.Done():
			return
		}
	}

	next := r.clock.Now()
	r.runCycle(ctx, stop)
	next = r.advance(next, stop)

	cycleC := r.clock.TickAfter(next.Sub(r.clock.Now()))
	tickC := r.clock.TickAfter(r.countdown)
	for {
		if stopped(ctx, stop) {
			return
		}

		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-tickC:
			r.observer.OnTick(r.Status())
			tickC = r.clock.TickAfter(r.countdown)
		case <-cycleC:
			if stopped(ctx, stop) {
				return
			}
			r.runCycle(ctx, stop)
			next = r.advance(next, stop)
			cycleC = r.clock.TickAfter(next.Sub(r.clock.Now()))
		}
	}
}

// release moves to idle if stop still belongs to the current run.
func (r *Reconciler) release(stop chan struct{}) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StatePolling && r.stop == stop {
		close(stop)
		r.state = StateIdle
		r.next = time.Time{}
	}
}

// advance moves next past the current time on the fixed schedule and publishes
// it if stop still belongs to the current run.
func (r *Reconciler) advance(next time.Time, stop chan struct{}) time.Time {
	now := r.clock.Now()
	next = next.Add(r.interval)
	for !next.After(now) {
		next = next.Add(r.interval)
	}

	r.mu.Lock()
	if r.state == StatePolling && r.stop == stop {
		r.next = next
	}
	r.mu.Unlock()
	return next
}

func stopped(ctx context.Context, stop chan struct{}) bool {
	select {
	case <-stop:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

func (r *Reconciler) runCycle(ctx context.Context, stop chan struct{}) {
	r.mu.Lock()
	r.inCycle = true
	r.mu.Unlock()

	report := r.Cycle(ctx)

	r.mu.Lock()
	r.inCycle = false
	r.cycles++
	r.lastReport = &report
	r.mu.Unlock()

	if stopped(ctx, stop) && report.Err != nil {
		// Errors caused by shutdown are not reported.
		return
	}

	for _, c := range report.Changes {
		r.observer.OnChange(report.ID, c)
	}
	if report.Err != nil {
		r.observer.OnCycleError(report.ID, report.Err)
	}
	r.observer.OnCycle(report)
}

// Cycle runs one reconciliation: scan, total, mempool probe, history and
// timeline when the total moved, then a diff against the previous snapshot.
// Errors are recorded in the report and never stop polling.
func (r *Reconciler) Cycle(ctx context.Context) CycleReport {
	report := CycleReport{ID: uuid.New(), Started: r.clock.Now()}
	defer func() {
		report.Duration = r.clock.Now().Sub(report.Started)
		r.metrics.RecordCycle(len(report.Changes), report.Err)
		if report.Err != nil {
			report.Error = report.Err.Error()
			r.logger.Error("cycle %s failed: %v", report.ID, report.Err)
		} else {
			r.logger.Debug("cycle %s finished with %d changes in %s", report.ID, len(report.Changes), report.Duration)
		}
	}()

	prev, err := r.svc.Snapshot()
	if err != nil {
		report.Err = err
		return report
	}
	report.TotalBefore = prev.Total
	report.TotalAfter = prev.Total

	scan, err := r.svc.Check(ctx)
	if err != nil {
		report.Err = err
		return report
	}

	total, err := r.svc.ComputeTotal()
	if err != nil {
		report.Err = err
		return report
	}
	report.TotalAfter = total.Satoshi

	probe := r.svc.ProbeMempool(ctx)
	report.Mempool = probe.Outcome.String()
	report.Pending = probe.Result.Total.TotalSatoshi
	if probe.Err != nil {
		r.logger.Debug("cycle %s mempool probe retained previous result: %v", report.ID, probe.Err)
	}

	if total.Satoshi != prev.Total {
		report.HistoryRefreshed, report.Err = r.refreshHistory(ctx)
	}

	report.Changes = Diff(prev.Statuses, scan.Statuses())
	return report
}

func (r *Reconciler) refreshHistory(ctx context.Context) (bool, error) {
	if _, err := r.svc.FetchHistory(ctx); err != nil {
		if IsInputError(err) {
			return false, nil
		}
		return false, err
	}
	if _, err := r.svc.BuildTimeline(); err != nil {
		return false, err
	}
	return true, nil
}
