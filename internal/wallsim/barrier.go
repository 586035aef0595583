package wallsim

import "sync"

// dayBarrier synchronizes crews on day boundaries: no crew starts day D+1
// while any still-active crew has not finished day D. A retiring crew
// decrements the active count under the same lock and releases the round
// itself if it was the last one owed for the day.
type dayBarrier struct {
	mu       sync.Mutex
	cond     *sync.Cond
	active   int
	finished int
	round    int
	aborted  bool
}

func newDayBarrier(crews int) *dayBarrier {
	b := &dayBarrier{active: crews}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// EndOfDay signals that the calling crew is done for the current day and
// blocks until every other active crew has also signaled. Returns false when
// the barrier was aborted; the crew must then exit its work loop instead of
// proceeding to the next day.
func (b *dayBarrier) EndOfDay() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.aborted {
		return false
	}

	round := b.round
	b.finished++
	if b.finished >= b.active {
		b.release()
		return true
	}
	for b.round == round && !b.aborted {
		b.cond.Wait()
	}
	return !b.aborted
}

// Retire removes the calling crew from the barrier. Never blocks. If the
// remaining crews were all waiting on the retiree, the day is released here.
func (b *dayBarrier) Retire() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.active--
	if b.active > 0 && b.finished >= b.active {
		b.release()
	}
}

// Abort wakes every blocked crew immediately, regardless of completion
// counts. All subsequent EndOfDay calls return false.
func (b *dayBarrier) Abort() {
	b.mu.Lock()
	b.aborted = true
	b.finished = 0
	b.cond.Broadcast()
	b.mu.Unlock()
}

func (b *dayBarrier) Aborted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.aborted
}

// caller must hold b.mu
func (b *dayBarrier) release() {
	b.finished = 0
	b.round++
	b.cond.Broadcast()
}
