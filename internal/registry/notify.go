package registry

import (
	"context"
	"sync"
	"time"
)

// Notifier broadcasts registry changes to any number of waiters using a
// monotonically increasing version and a channel that is closed and
// replaced on every change.
type Notifier struct {
	mu      sync.Mutex
	version uint64
	changed chan struct{}
}

// NewNotifier returns a notifier at version 0.
func NewNotifier() *Notifier {
	return &Notifier{changed: make(chan struct{})}
}

// Version returns the current change version.
func (n *Notifier) Version() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.version
}

// Notify records a change and wakes every waiter.
func (n *Notifier) Notify() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.version++
	close(n.changed)
	n.changed = make(chan struct{})
}

// Wait blocks until the version moves past lastSeen, the timeout fires,
// or ctx is done. It always returns the version current at that moment,
// so pollers can never miss a change between calls.
func (n *Notifier) Wait(ctx context.Context, lastSeen uint64, timeout time.Duration) uint64 {
	n.mu.Lock()
	if n.version != lastSeen {
		version := n.version
		n.mu.Unlock()
		return version
	}
	changed := n.changed
	n.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-changed:
	case <-timer.C:
	case <-ctx.Done():
	}
	return n.Version()
}
