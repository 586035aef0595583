package wallsim

import "sync"

// Abort is a one-shot cooperative cancellation signal shared between an
// orchestration scope and the simulations running inside it. Workers check it
// at least once per simulated day; once signaled they converge to a stopped
// state within one barrier round.
type Abort struct {
	once sync.Once
	ch   chan struct{}
}

func NewAbort() *Abort {
	return &Abort{ch: make(chan struct{})}
}

func (a *Abort) Signal() {
	if a == nil {
		return
	}
	a.once.Do(func() { close(a.ch) })
}

func (a *Abort) Signaled() bool {
	if a == nil {
		return false
	}
	select {
	case <-a.ch:
		return true
	default:
		return false
	}
}

// Done returns a channel closed on the first Signal call. A nil Abort
// returns nil, which blocks forever in a select.
func (a *Abort) Done() <-chan struct{} {
	if a == nil {
		return nil
	}
	return a.ch
}
