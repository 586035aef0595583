package wallsim

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

type workItem struct {
	profile int
	section int
	height  int
}

type crewTick struct {
	day     int
	profile int
}

// runConcurrent flattens all sections into a shared work queue and drives a
// fixed pool of crew goroutines over it. Crews synchronize on day boundaries
// through the barrier; a crew finishing its section immediately dequeues the
// next one and keeps its own day counter running. Per-profile daily totals
// are accumulated by a single aggregator goroutine fed over a channel, so the
// result structure never needs a lock.
func (s *Simulator) runConcurrent(ctx context.Context, p Params, abort *Abort) (*Result, error) {
	sections := p.Config.SectionsCount()
	if sections == 0 {
		return s.finalize(DailyUsage{}), nil
	}
	if ctx.Err() != nil || abort.Signaled() {
		return nil, ErrAborted
	}

	crews := p.NumCrews
	if crews > sections {
		crews = sections
	}

	queue := make(chan workItem, sections)
	for profileIndex, profile := range p.Config {
		for sectionIndex, height := range profile {
			queue <- workItem{profile: profileIndex + 1, section: sectionIndex + 1, height: height}
		}
	}
	close(queue)

	barrier := newDayBarrier(crews)

	watcherDone := make(chan struct{})
	defer close(watcherDone)
	go func() {
		select {
		case <-abort.Done():
			barrier.Abort()
		case <-ctx.Done():
			barrier.Abort()
		case <-watcherDone:
		}
	}()

	progress := make(chan crewTick, 4*crews)
	daily := DailyUsage{}
	var agg sync.WaitGroup
	agg.Add(1)
	go func() {
		defer agg.Done()
		for tick := range progress {
			record(daily, tick.day, tick.profile, s.limits.IcePerFoot)
		}
	}()

	var g errgroup.Group
	for c := 0; c < crews; c++ {
		g.Go(func() error {
			s.buildSections(queue, barrier, progress)
			return nil
		})
	}
	_ = g.Wait()
	close(progress)
	agg.Wait()

	if barrier.Aborted() {
		return nil, ErrAborted
	}
	return s.finalize(daily), nil
}

// buildSections is one crew's work loop: drive the current section one foot
// per day until target height, then pull the next section. The crew's day
// counter continues across sections and always matches the barrier round.
func (s *Simulator) buildSections(queue <-chan workItem, barrier *dayBarrier, progress chan<- crewTick) {
	day := 0
	for item := range queue {
		height := item.height
		for height < s.limits.MaxSectionHeight {
			height++
			day++
			progress <- crewTick{day: day, profile: item.profile}
			if !barrier.EndOfDay() {
				return
			}
		}
		if barrier.Aborted() {
			return
		}
	}
	barrier.Retire()
}
