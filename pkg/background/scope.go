package background

import (
	"context"
	"sync"
	"time"
)

// Scope - groups related background goroutines under a shared
// cancellation context so they can be stopped and joined as one unit.
type Scope struct {
	ctx       context.Context
	ctxCancel context.CancelFunc
	scope     sync.WaitGroup
}

// NewScope - concurrency scope builder.
func NewScope() *Scope {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scope{
		ctx:       ctx,
		ctxCancel: cancel,
	}
}

// Context - returns scope context, done after Cancel.
func (s *Scope) Context() context.Context {
	return s.ctx
}

// Cancel - signals every goroutine registered in the scope to stop.
// Does not wait for them, use Wait.
func (s *Scope) Cancel() {
	s.ctxCancel()
}

// Add - registers processes/workers/layers in the scope.
// Based on sync.WaitGroup.
func (s *Scope) Add(delta int) {
	s.scope.Add(delta)
}

// Done - notifies scope when process/worker/layer is done.
// Based on sync.WaitGroup.
func (s *Scope) Done() {
	s.scope.Done()
}

// Go - runs f in the scope, registering and releasing it automatically.
func (s *Scope) Go(f func(ctx context.Context)) {
	s.scope.Add(1)
	go func() {
		defer s.scope.Done()
		f(s.ctx)
	}()
}

// Wait - blocks until every registered goroutine is done or the timeout
// is expired. Returns false in the latter case.
func (s *Scope) Wait(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		s.scope.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
