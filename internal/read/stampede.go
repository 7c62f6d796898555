package read

import (
	"context"
	"sync"
)

// StampedePreventer coordinates concurrent regeneration of a derived value
// (such as the cached plan key index) so that only one caller performs the
// expensive work while the others wait for its result.
type StampedePreventer struct {
	mu      sync.Mutex
	pending map[string]*pendingCall
}

type pendingCall struct {
	done   chan struct{}
	result []string
	err    error
}

// NewStampedePreventer creates a new stampede preventer.
func NewStampedePreventer() *StampedePreventer {
	return &StampedePreventer{
		pending: make(map[string]*pendingCall),
	}
}

// Do executes fn for key unless another goroutine is already executing it, in
// which case it waits and returns that goroutine's result. Waiters give up
// when their own context is canceled; the in-flight call keeps running.
func (sp *StampedePreventer) Do(ctx context.Context, key string, fn func() ([]string, error)) ([]string, error) {
	sp.mu.Lock()
	if call, ok := sp.pending[key]; ok {
		sp.mu.Unlock()
		select {
		case <-call.done:
			return call.result, call.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	call := &pendingCall{done: make(chan struct{})}
	sp.pending[key] = call
	sp.mu.Unlock()

	call.result, call.err = fn()

	sp.mu.Lock()
	delete(sp.pending, key)
	sp.mu.Unlock()
	close(call.done)

	return call.result, call.err
}
