// Package timer provides one-shot and repeating scheduled tasks with
// cancellation, used by the actor runtime for timed work.
package timer

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// ErrClosed is returned when scheduling on a closed scheduler.
var ErrClosed = errors.New("scheduler closed")

// Task is a scheduled callback. data is the value supplied at scheduling
// time. Panics inside a task are recovered and logged; they do not abort a
// repeating schedule.
type Task func(data any)

// Cancellable is the handle for a scheduled task.
type Cancellable struct {
	id        string
	cancelled atomic.Bool
	stop      chan struct{}
}

// Cancel prevents future firings. It returns true only on the first
// successful cancellation; a running callback is not interrupted.
func (c *Cancellable) Cancel() bool {
	if c.cancelled.CompareAndSwap(false, true) {
		close(c.stop)
		return true
	}
	return false
}

// IsCancelled reports whether Cancel has been called.
func (c *Cancellable) IsCancelled() bool { return c.cancelled.Load() }

// Scheduler runs timed tasks. Safe for concurrent use.
type Scheduler struct {
	log *slog.Logger

	mu     sync.Mutex
	closed bool
	tasks  map[string]*Cancellable
	wg     sync.WaitGroup
}

// New creates a scheduler. A nil logger uses slog.Default().
func New(log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		log:   log,
		tasks: make(map[string]*Cancellable),
	}
}

// Once schedules fn to fire exactly once after delay, passing data.
func (s *Scheduler) Once(fn Task, data any, delay time.Duration) (*Cancellable, error) {
	c, err := s.register()
	if err != nil {
		return nil, err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.unregister(c)

		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-c.stop:
		case <-t.C:
			s.runTask(fn, data)
		}
	}()
	return c, nil
}

// Every schedules fn to fire after initialDelay and then every interval
// until cancelled, passing data on each firing.
func (s *Scheduler) Every(fn Task, data any, initialDelay, interval time.Duration) (*Cancellable, error) {
	c, err := s.register()
	if err != nil {
		return nil, err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.unregister(c)

		t := time.NewTimer(initialDelay)
		defer t.Stop()
		select {
		case <-c.stop:
			return
		case <-t.C:
			s.runTask(fn, data)
		}

		tick := time.NewTicker(interval)
		defer tick.Stop()
		for {
			select {
			case <-c.stop:
				return
			case <-tick.C:
				s.runTask(fn, data)
			}
		}
	}()
	return c, nil
}

// Close cancels all outstanding tasks and refuses further scheduling.
// Idempotent. It does not wait for in-flight callbacks.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	tasks := make([]*Cancellable, 0, len(s.tasks))
	for _, c := range s.tasks {
		tasks = append(tasks, c)
	}
	s.tasks = nil
	s.mu.Unlock()

	for _, c := range tasks {
		c.Cancel()
	}
}

// Wait blocks until all task goroutines have exited. Intended for tests
// and orderly shutdown after Close.
func (s *Scheduler) Wait() { s.wg.Wait() }

// Outstanding returns the number of registered, uncancelled tasks.
func (s *Scheduler) Outstanding() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

func (s *Scheduler) register() (*Cancellable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	c := &Cancellable{
		id:   gonanoid.Must(),
		stop: make(chan struct{}),
	}
	s.tasks[c.id] = c
	return c, nil
}

func (s *Scheduler) unregister(c *Cancellable) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, c.id)
}

func (s *Scheduler) runTask(fn Task, data any) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("scheduled task panicked", slog.Any("recovered", r))
		}
	}()
	fn(data)
}
