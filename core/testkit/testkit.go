// Package testkit provides deterministic waiting on actor-visible state
// for tests: polling awaits plus an observable state box actors publish
// snapshots into.
package testkit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Default polling parameters for Await helpers.
const (
	DefaultTimeout  = 3 * time.Second
	DefaultInterval = 2 * time.Millisecond
)

// Await fails the test unless cond becomes true within DefaultTimeout.
func Await(t *testing.T, cond func() bool, msgAndArgs ...any) {
	t.Helper()
	require.Eventually(t, cond, DefaultTimeout, DefaultInterval, msgAndArgs...)
}

// AwaitWithin fails the test unless cond becomes true within timeout.
func AwaitWithin(t *testing.T, timeout time.Duration, cond func() bool, msgAndArgs ...any) {
	t.Helper()
	require.Eventually(t, cond, timeout, DefaultInterval, msgAndArgs...)
}

// ObservableState is a thread-safe box an actor publishes state snapshots
// into, so tests can observe state at handler boundaries without reaching
// into the actor.
type ObservableState[T any] struct {
	mu      sync.Mutex
	value   T
	set     bool
	history []T
}

// NewObservableState creates an empty box.
func NewObservableState[T any]() *ObservableState[T] {
	return &ObservableState[T]{}
}

// Publish records a new snapshot.
func (o *ObservableState[T]) Publish(v T) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.value = v
	o.set = true
	o.history = append(o.history, v)
}

// Current returns the latest snapshot and whether one was ever published.
func (o *ObservableState[T]) Current() (T, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.value, o.set
}

// History returns all published snapshots in order.
func (o *ObservableState[T]) History() []T {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]T, len(o.history))
	copy(out, o.history)
	return out
}

// Len returns the number of published snapshots.
func (o *ObservableState[T]) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.history)
}

// AwaitThat fails the test unless a snapshot satisfying pred is published
// within DefaultTimeout. It returns the first satisfying snapshot seen.
func (o *ObservableState[T]) AwaitThat(t *testing.T, pred func(T) bool, msgAndArgs ...any) T {
	t.Helper()
	var found T
	Await(t, func() bool {
		v, ok := o.Current()
		if ok && pred(v) {
			found = v
			return true
		}
		return false
	}, msgAndArgs...)
	return found
}

// AwaitValue fails the test unless the latest snapshot equals want within
// DefaultTimeout.
func AwaitValue[T comparable](t *testing.T, o *ObservableState[T], want T, msgAndArgs ...any) {
	t.Helper()
	o.AwaitThat(t, func(v T) bool { return v == want }, msgAndArgs...)
}
