package sim

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/goleak"

	"cogsched/internal/attention"
)

func TestNewRegistersOptedInProcs(t *testing.T) {
	s, err := New(attention.Config{MaxProcs: 16}, Options{NumProcs: 5, Seed: 7})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if s.RunID() == "" {
		t.Fatalf("run id missing")
	}
	for _, h := range s.handles {
		if !s.Allocator().IsOptedIn(h) {
			t.Fatalf("handle %d not opted in", h)
		}
	}
}

func TestNewRejectsOverCapacity(t *testing.T) {
	if _, err := New(attention.Config{MaxProcs: 2}, Options{NumProcs: 5}); err == nil {
		t.Fatalf("expected capacity error")
	}
}

func TestRunDrainsQueues(t *testing.T) {
	defer goleak.VerifyNone(t)

	s, err := New(attention.Config{MaxProcs: 16}, Options{NumProcs: 8, Ticks: 200, Workers: 4, Seed: 1})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	res, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(res.Selections) == 0 {
		t.Fatalf("no selections over 200 admitting ticks")
	}
	if res.Metrics.Admitted == 0 {
		t.Fatalf("no admissions recorded: %+v", res.Metrics)
	}
	if int64(len(res.Selections)) != res.Metrics.Selected {
		t.Fatalf("trace length %d != selected counter %d", len(res.Selections), res.Metrics.Selected)
	}

	// the post-run drain must leave every bucket empty
	if _, ok := s.Allocator().SelectNext(); ok {
		t.Fatalf("queues not drained after run")
	}
	if !strings.Contains(res.FinalDump, "Attention Allocator State:") {
		t.Fatalf("final dump malformed:\n%s", res.FinalDump)
	}
}

func TestRunHonorsCancellation(t *testing.T) {
	defer goleak.VerifyNone(t)

	s, err := New(attention.Config{MaxProcs: 16}, Options{NumProcs: 4, Ticks: 1 << 20, Workers: 2, Seed: 3})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Run(ctx); err == nil {
		t.Fatalf("cancelled run should report the context error")
	}
}

func TestResultStringMentionsRun(t *testing.T) {
	s, err := New(attention.Config{MaxProcs: 8}, Options{NumProcs: 2, Ticks: 10, Workers: 1, Seed: 5})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	res, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	out := res.String()
	if !strings.Contains(out, res.RunID) || !strings.Contains(out, "selections") {
		t.Fatalf("summary missing run id or counts:\n%s", out)
	}
}
