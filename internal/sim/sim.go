// Package sim drives a synthetic workload through the attention
// allocator. It exists for the simulate CLI command and for stress
// testing: N fake processes with randomized runtime stats, hammered by
// concurrent admit/refresh/select workers over a fixed tick range.
package sim

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"cogsched/internal/attention"
	"cogsched/internal/logging"
)

// Options tunes a simulation run.
type Options struct {
	NumProcs int   // synthetic processes to register
	Ticks    int   // host ticks to simulate
	Workers  int   // concurrent driver goroutines
	Seed     int64 // deterministic stat generation
}

// DefaultOptions returns a small run suitable for the CLI.
func DefaultOptions() Options {
	return Options{
		NumProcs: 8,
		Ticks:    100,
		Workers:  4,
		Seed:     1,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.NumProcs <= 0 {
		o.NumProcs = def.NumProcs
	}
	if o.Ticks <= 0 {
		o.Ticks = def.Ticks
	}
	if o.Workers <= 0 {
		o.Workers = def.Workers
	}
	return o
}

// Result summarizes a completed run.
type Result struct {
	RunID      string
	Selections []Selection
	Metrics    attention.MetricsSnapshot
	FinalDump  string
}

// Selection is one entry of the selection trace.
type Selection struct {
	Tick attention.Tick
	PID  uint64
}

// String renders the trace in a compact operator-readable form.
func (r Result) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s: %d selections\n", r.RunID, len(r.Selections))
	for _, s := range r.Selections {
		fmt.Fprintf(&b, "  tick %d -> pid %d\n", s.Tick, s.PID)
	}
	b.WriteString(r.Metrics.String())
	b.WriteByte('\n')
	return b.String()
}

// Simulator owns an allocator populated with synthetic processes.
type Simulator struct {
	opts    Options
	alloc   *attention.Allocator
	runID   string
	handles []attention.Handle
	pids    map[attention.Handle]uint64
}

// New registers opts.NumProcs synthetic processes against a fresh
// allocator built from cfg. Every process is opted in.
func New(cfg attention.Config, opts Options) (*Simulator, error) {
	opts = opts.withDefaults()
	if cfg.MaxProcs > 0 && opts.NumProcs > cfg.MaxProcs {
		return nil, fmt.Errorf("sim: %d processes exceed allocator capacity %d", opts.NumProcs, cfg.MaxProcs)
	}

	s := &Simulator{
		opts:    opts,
		alloc:   attention.New(cfg),
		runID:   uuid.NewString(),
		handles: make([]attention.Handle, 0, opts.NumProcs),
		pids:    make(map[attention.Handle]uint64, opts.NumProcs),
	}
	for i := 0; i < opts.NumProcs; i++ {
		pid := uint64(1000 + i)
		h, err := s.alloc.Register(pid)
		if err != nil {
			return nil, fmt.Errorf("sim: register pid %d: %w", pid, err)
		}
		s.alloc.SetOptIn(h, true)
		s.handles = append(s.handles, h)
		s.pids[h] = pid
	}
	logging.Sched("sim %s: registered %d processes", s.runID, opts.NumProcs)
	return s, nil
}

// RunID returns the uuid tag of this run.
func (s *Simulator) RunID() string { return s.runID }

// Allocator exposes the underlying allocator for post-run inspection.
func (s *Simulator) Allocator() *attention.Allocator { return s.alloc }

// Run drives the workload and returns the selection trace. Workers
// split the tick range; each worker admits and refreshes its share of
// processes with seeded random stats, then drains selections. The
// trace is deterministic in aggregate counts but not in interleaving.
func (s *Simulator) Run(ctx context.Context) (Result, error) {
	var (
		mu    sync.Mutex
		trace []Selection
	)

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < s.opts.Workers; w++ {
		worker := w
		g.Go(func() error {
			rng := rand.New(rand.NewSource(s.opts.Seed + int64(worker)))
			for tick := worker; tick < s.opts.Ticks; tick += s.opts.Workers {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}

				now := attention.Tick(tick)
				h := s.handles[rng.Intn(len(s.handles))]
				s.alloc.Admit(h, s.randomStats(rng), now)

				// occasional emergent spike
				if rng.Float64() < 0.05 {
					s.alloc.SetFeature(h, attention.FeatureEmergent, 0.6+0.4*rng.Float64())
				}

				if sel, ok := s.alloc.SelectNext(); ok {
					mu.Lock()
					trace = append(trace, Selection{Tick: now, PID: s.pids[sel]})
					mu.Unlock()
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	// drain whatever the workers left queued
	for {
		sel, ok := s.alloc.SelectNext()
		if !ok {
			break
		}
		trace = append(trace, Selection{Tick: attention.Tick(s.opts.Ticks), PID: s.pids[sel]})
	}

	res := Result{
		RunID:      s.runID,
		Selections: trace,
		Metrics:    s.alloc.Metrics(),
		FinalDump:  s.alloc.DumpState(),
	}
	logging.Sched("sim %s: done, %d selections", s.runID, len(trace))
	return res, nil
}

// randomStats fabricates plausible runtime signals. Ratios the host
// cannot measure stay absent for a slice of processes, exercising the
// preserve-on-no-signal path.
func (s *Simulator) randomStats(rng *rand.Rand) attention.RuntimeStats {
	stats := attention.RuntimeStats{
		CPUShare:    rng.Float64(),
		Priority:    rng.Intn(21),
		MaxPriority: 20,
		MemoryRatio: rng.Float64(),
		IORatio:     attention.NoSignal,
		NetworkRatio: func() float64 {
			if rng.Float64() < 0.5 {
				return rng.Float64()
			}
			return attention.NoSignal
		}(),
		RealtimeRatio: attention.NoSignal,
	}
	if rng.Float64() < 0.7 {
		stats.IORatio = rng.Float64()
	}
	return stats
}
