package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mrz1836/vigil/internal/output"
	"github.com/mrz1836/vigil/internal/tracker"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var (
	watchInterval time.Duration
	watchOnce     bool
)

// watchCmd runs the polling reconciler until interrupted.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll the explorer and report balance changes",
	Long: `Run a reconciliation cycle immediately and then every watch.interval:
scan the addresses, recompute the total, probe the mempool, refresh the
history and timeline when the total moved and report every address whose
balance, usage or transaction count changed.

Cycles never overlap; a cycle that outlasts the interval skips the missed
starts. Press Ctrl+C to stop.

With -o json every event is written as one JSON object per line.

Example:
  vigil watch
  vigil watch --interval 1m
  vigil watch --once -o json`,
	RunE: runWatch,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 0, "time between cycles (default watch.interval)")
	watchCmd.Flags().BoolVar(&watchOnce, "once", false, "run a single cycle and exit")
}

func runWatch(cmd *cobra.Command, _ []string) error {
	interval := cfg.Watch.Interval
	if watchInterval > 0 {
		interval = watchInterval
	}

	return withCommandContext(cmd, func(cc *CommandContext) error {
		ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
		defer stop()

		printer := newWatchPrinter(cc.Formatter, cc.Clock.Now)
		rec := tracker.NewReconciler(cc.Service, &tracker.ReconcilerOptions{
			Interval:  interval,
			Countdown: cfg.Watch.Countdown,
			Clock:     cc.Clock,
			Observer:  printer,
			Logger:    cc.Logger,
			Metrics:   cc.Metrics,
		})

		if watchOnce {
			report := rec.Cycle(ctx)
			for _, c := range report.Changes {
				printer.OnChange(report.ID, c)
			}
			printer.OnCycle(report)
			return report.Err
		}

		cc.Formatter.Noticef("Watching every %s, press Ctrl+C to stop", interval)
		if err := rec.Start(ctx); err != nil {
			return err
		}
		<-rec.Done()

		printer.clearLine()
		st := rec.Status()
		cc.Formatter.Noticef("Stopped after %d cycles", st.Cycles)
		return nil
	})
}

// watchPrinter renders reconciler events as text lines or JSON objects.
type watchPrinter struct {
	mu       sync.Mutex
	w        io.Writer
	asJSON   bool
	color    bool
	tty      bool
	now      func() time.Time
	counting bool
}

func newWatchPrinter(f *output.Formatter, now func() time.Time) *watchPrinter {
	return &watchPrinter{
		w:      f.Writer(),
		asJSON: f.IsJSON(),
		color:  f.Color(),
		tty:    output.IsTerminal(f.Writer()),
		now:    now,
	}
}

type watchEvent struct {
	Event  string               `json:"event"`
	Cycle  uuid.UUID            `json:"cycle"`
	Change *tracker.Change      `json:"change,omitempty"`
	Report *tracker.CycleReport `json:"report,omitempty"`
	Error  string               `json:"error,omitempty"`
}

func (p *watchPrinter) emit(ev watchEvent) {
	_ = json.NewEncoder(p.w).Encode(ev)
}

func (p *watchPrinter) stamp() string {
	return p.now().Format("15:04:05")
}

// OnChange implements tracker.Observer.
func (p *watchPrinter) OnChange(cycle uuid.UUID, c tracker.Change) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.asJSON {
		p.emit(watchEvent{Event: "change", Cycle: cycle, Change: &c})
		return
	}
	p.clearLineLocked()
	out(p.w, "[%s] %s\n", p.stamp(), describeChange(c, p.color))
}

// OnCycle implements tracker.Observer.
func (p *watchPrinter) OnCycle(report tracker.CycleReport) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.asJSON {
		p.emit(watchEvent{Event: "cycle", Cycle: report.ID, Report: &report})
		return
	}
	if report.Err != nil {
		p.clearLineLocked()
		out(p.w, "[%s] cycle failed: %v\n", p.stamp(), report.Err)
		return
	}

	p.clearLineLocked()
	line := fmt.Sprintf("[%s] balance %s", p.stamp(), output.BTC(report.TotalAfter))
	if report.TotalAfter != report.TotalBefore {
		line += " (" + output.SignedBTC(report.TotalAfter-report.TotalBefore, p.color) + ")"
	}
	if report.Pending != 0 {
		line += ", pending " + output.SignedBTC(report.Pending, p.color)
	}
	if report.Mempool == tracker.ProbeRetained.String() {
		line += ", mempool stale"
	}
	if report.HistoryRefreshed {
		line += ", history refreshed"
	}
	out(p.w, "%s, %d change(s)\n", line, len(report.Changes))
}

// OnCycleError implements tracker.Observer. Failed cycles are also
// reported by OnCycle, so only JSON output gets a separate event.
func (p *watchPrinter) OnCycleError(cycle uuid.UUID, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.asJSON {
		p.emit(watchEvent{Event: "error", Cycle: cycle, Error: err.Error()})
	}
}

// OnTick implements tracker.Observer. The countdown is only drawn on a terminal.
func (p *watchPrinter) OnTick(st tracker.Status) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.asJSON || !p.tty {
		return
	}
	if st.Checking {
		out(p.w, "\rchecking...          ")
	} else {
		out(p.w, "\rnext check in %3ds   ", st.SecondsRemaining)
	}
	p.counting = true
}

func (p *watchPrinter) clearLine() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clearLineLocked()
}

func (p *watchPrinter) clearLineLocked() {
	if p.counting {
		out(p.w, "\r%22s\r", "")
		p.counting = false
	}
}

// describeChange renders one change as a sentence.
func describeChange(c tracker.Change, color bool) string {
	where := c.Address + " (" + c.Path + ")"
	switch c.Kind {
	case tracker.ChangeReceived:
		return "received " + output.SignedSats(c.BalanceChange, color) + " on " + where
	case tracker.ChangeSent:
		return "sent " + output.SignedSats(c.BalanceChange, color) + " from " + where
	case tracker.ChangeUnconfirmed:
		return fmt.Sprintf("new transaction on %s (%d -> %d txs)", where, c.PreviousTxCount, c.CurrentTxCount)
	case tracker.ChangeNewAddress:
		return "new active address " + where + " holding " + output.Sats(c.CurrentBalance)
	default:
		return "status changed on " + where
	}
}
