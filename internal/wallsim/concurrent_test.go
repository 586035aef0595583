package wallsim

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestConcurrentMatchesSequentialTotals(t *testing.T) {
	sim := testSimulator()
	cfg := Config{{21, 25, 28}, {17}, {17, 22, 17, 19, 17}}

	seq, err := sim.Run(context.Background(), Params{Config: cfg, Mode: Sequential}, nil)
	if err != nil {
		t.Fatalf("sequential run failed: %v", err)
	}

	for crews := 1; crews <= cfg.SectionsCount(); crews++ {
		conc, err := sim.Run(context.Background(), Params{Config: cfg, NumCrews: crews, Mode: Concurrent}, nil)
		if err != nil {
			t.Fatalf("concurrent run with %d crews failed: %v", crews, err)
		}
		if conc.TotalIce != seq.TotalIce {
			t.Fatalf("%d crews: total ice %d, sequential %d", crews, conc.TotalIce, seq.TotalIce)
		}
		if conc.TotalCost != seq.TotalCost {
			t.Fatalf("%d crews: total cost %d, sequential %d", crews, conc.TotalCost, seq.TotalCost)
		}
		for profileID, ice := range seq.ProfileIce {
			if conc.ProfileIce[profileID] != ice {
				t.Fatalf("%d crews: profile %d ice %d, sequential %d", crews, profileID, conc.ProfileIce[profileID], ice)
			}
		}
	}
}

func TestConcurrentDegenerateOneCrewPerSection(t *testing.T) {
	sim := testSimulator()
	cfg := Config{{21, 25, 28}, {17}}
	sections := cfg.SectionsCount()

	seq, err := sim.Run(context.Background(), Params{Config: cfg, Mode: Sequential}, nil)
	if err != nil {
		t.Fatalf("sequential run failed: %v", err)
	}
	conc, err := sim.Run(context.Background(), Params{Config: cfg, NumCrews: sections, Mode: Concurrent}, nil)
	if err != nil {
		t.Fatalf("degenerate concurrent run failed: %v", err)
	}

	if conc.TotalIce != seq.TotalIce || conc.TotalCost != seq.TotalCost {
		t.Fatalf("degenerate crews=%d totals diverged: %d/%d vs %d/%d",
			sections, conc.TotalIce, conc.TotalCost, seq.TotalIce, seq.TotalCost)
	}
	if conc.ConstructionDays != seq.ConstructionDays {
		t.Fatalf("degenerate construction days %d, sequential %d", conc.ConstructionDays, seq.ConstructionDays)
	}
}

func TestConcurrentZeroHeightSections(t *testing.T) {
	sim := testSimulator()
	cfg := Config{{0, 0, 0}}

	res, err := sim.Run(context.Background(), Params{Config: cfg, NumCrews: 2, Mode: Concurrent}, nil)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	want := int64(3 * 30 * 195)
	if res.TotalIce != want {
		t.Fatalf("total ice %d, want %d regardless of crew scheduling", res.TotalIce, want)
	}
	// Two crews finish the first two sections in 30 rounds, then one of
	// them takes the third for another 30.
	if res.ConstructionDays != 60 {
		t.Fatalf("construction days %d, want 60", res.ConstructionDays)
	}
}

func TestConcurrentRejectsInvalidCrewCount(t *testing.T) {
	sim := testSimulator()
	cfg := Config{{1, 2}}

	if _, err := sim.Run(context.Background(), Params{Config: cfg, NumCrews: 0, Mode: Concurrent}, nil); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("crew count 0 must be a configuration error, got %v", err)
	}
	if _, err := sim.Run(context.Background(), Params{Config: cfg, NumCrews: 3, Mode: Concurrent}, nil); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("crew count above section count must be a configuration error, got %v", err)
	}
}

func TestConcurrentAbortConverges(t *testing.T) {
	sim := testSimulator()
	profile := make([]int, 50)
	cfg := Config{profile}
	abort := NewAbort()
	abort.Signal()

	done := make(chan error, 1)
	go func() {
		_, err := sim.Run(context.Background(), Params{Config: cfg, NumCrews: 5, Mode: Concurrent}, abort)
		done <- err
	}()

	select {
	case err := <-done:
		if err != ErrAborted {
			t.Fatalf("expected ErrAborted, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("aborted run did not converge")
	}
}

func TestConcurrentContextCancellation(t *testing.T) {
	sim := testSimulator()
	profile := make([]int, 40)
	cfg := Config{profile}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() {
		_, err := sim.Run(ctx, Params{Config: cfg, NumCrews: 4, Mode: Concurrent}, nil)
		done <- err
	}()

	select {
	case err := <-done:
		if err != ErrAborted {
			t.Fatalf("expected ErrAborted on context cancellation, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("canceled run did not converge")
	}
}

func TestConcurrentProfileGapsAreValid(t *testing.T) {
	sim := testSimulator()
	// One crew, two profiles: profile 2 sees no work until profile 1's
	// section is done.
	cfg := Config{{29}, {29}}

	res, err := sim.Run(context.Background(), Params{Config: cfg, NumCrews: 1, Mode: Concurrent}, nil)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if res.ConstructionDays != 2 {
		t.Fatalf("construction days %d, want 2", res.ConstructionDays)
	}
	if _, ok := res.Daily[1][2]; ok {
		t.Fatalf("profile 2 must have no entry for day 1")
	}
	if res.Daily[2][2] != 195 {
		t.Fatalf("profile 2 day 2 ice %d, want 195", res.Daily[2][2])
	}
}
