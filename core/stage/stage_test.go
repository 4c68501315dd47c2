package stage

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codewandler/stage-go/core/deadletter"
	"github.com/codewandler/stage-go/core/directory"
	"github.com/codewandler/stage-go/core/testkit"
)

func newTestStage(t *testing.T) *Stage {
	t.Helper()
	s := New(Options{
		Name:         "test",
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		Directory:    directory.Small,
		CloseTimeout: 2 * time.Second,
	})
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// journal is an ordered, thread-safe event log shared between actors and
// the test.
type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(e string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, e)
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]string, len(j.entries))
	copy(out, j.entries)
	return out
}

func (j *journal) indexOf(e string) int {
	j.mu.Lock()
	defer j.mu.Unlock()
	for i, cur := range j.entries {
		if cur == e {
			return i
		}
	}
	return -1
}

func (j *journal) has(e string) bool { return j.indexOf(e) >= 0 }

// Counter is the canonical test actor. An optional journal records its
// lifecycle hooks.
type Counter struct {
	Base
	value int
	j     *journal
}

func (c *Counter) Increment() { c.value++ }
func (c *Counter) Value() int { return c.value }

func (c *Counter) Add(n int) int {
	c.value += n
	return c.value
}

func (c *Counter) CauseError() error {
	c.SetContextValue("command", "CauseError")
	return errors.New("induced failure")
}

func (c *Counter) Explode() { panic("kaboom") }

func (c *Counter) record(e string) {
	if c.j != nil {
		c.j.add(e)
	}
}

func (c *Counter) BeforeRestart(reason error) error {
	c.record("beforeRestart")
	return nil
}

func (c *Counter) AfterRestart(reason error) error {
	c.record("afterRestart")
	return nil
}

func (c *Counter) BeforeResume(reason error) error {
	c.record("beforeResume")
	return nil
}

func counterProto(j *journal) *Protocol {
	return ProtocolOf("Counter", func(def Definition) *Counter {
		return &Counter{j: j}
	})
}

func TestStage_counter_fifo(t *testing.T) {
	s := newTestStage(t)

	counter, err := s.ActorFor(counterProto(nil))
	require.NoError(t, err)

	counter.Tell("Increment")
	counter.Tell("Increment")
	counter.Tell("Increment")

	n, err := Ask[int](t.Context(), counter, "Value")
	require.NoError(t, err)
	require.Equal(t, 3, n)
}

func TestStage_single_writer(t *testing.T) {
	s := newTestStage(t)

	counter, err := s.ActorFor(counterProto(nil))
	require.NoError(t, err)

	const workers, perWorker = 8, 250
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				counter.Tell("Increment")
			}
		}()
	}
	wg.Wait()

	n, err := Ask[int](t.Context(), counter, "Value")
	require.NoError(t, err)
	require.Equal(t, workers*perWorker, n, "no lost updates under concurrent senders")
}

func TestStage_proxy_identity(t *testing.T) {
	s := newTestStage(t)

	counter, err := s.ActorFor(counterProto(nil))
	require.NoError(t, err)

	testkit.Await(t, func() bool {
		_, ok := s.ActorOf(counter.Address())
		return ok
	})

	a, ok := s.ActorOf(counter.Address())
	require.True(t, ok)
	b, ok := s.ActorOf(counter.Address())
	require.True(t, ok)
	require.Same(t, a, b, "lookups return the identical proxy")
	require.Same(t, counter, a)
	require.True(t, a.Equal(b))
	require.Equal(t, a.HashCode(), b.HashCode())
}

func TestStage_operational_methods(t *testing.T) {
	s := newTestStage(t)

	counter, err := s.ActorFor(counterProto(nil), WithParams("seed", 1))
	require.NoError(t, err)

	require.Equal(t, "Counter", counter.TypeName())
	require.False(t, counter.Address().IsNone())
	require.Same(t, s, counter.Stage())
	require.Equal(t, "seed", counter.Definition().Param(0))
	require.Equal(t, 1, counter.Definition().Param(1))
	require.Nil(t, counter.Definition().Param(2))
	require.NotNil(t, counter.Logger())
	require.NotNil(t, counter.Scheduler())
	require.NotNil(t, counter.DeadLetters())
	require.Contains(t, counter.String(), "Counter")
	require.False(t, counter.IsStopped())
}

func TestStage_start_idempotent(t *testing.T) {
	s := newTestStage(t)

	counter, err := s.ActorFor(counterProto(nil))
	require.NoError(t, err)

	testkit.Await(t, func() bool { return counter.State() == Running })

	_, err = counter.Start().AwaitTimeout(time.Second)
	require.NoError(t, err, "starting a running actor is a no-op")

	counter.Tell("Increment")
	n, err := Ask[int](t.Context(), counter, "Value")
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestStage_stop_idempotent(t *testing.T) {
	s := newTestStage(t)

	counter, err := s.ActorFor(counterProto(nil))
	require.NoError(t, err)

	_, err = counter.Stop().AwaitTimeout(time.Second)
	require.NoError(t, err)
	require.True(t, counter.IsStopped())

	// Stopping again resolves immediately.
	_, err = counter.Stop().AwaitTimeout(time.Second)
	require.NoError(t, err)
}

func TestStage_send_after_stop_dead_letters(t *testing.T) {
	s := newTestStage(t)
	letters := deadletter.NewCapturing()
	s.DeadLetters().Subscribe(letters)

	counter, err := s.ActorFor(counterProto(nil))
	require.NoError(t, err)

	_, err = counter.Stop().AwaitTimeout(time.Second)
	require.NoError(t, err)

	counter.Tell("Increment")
	testkit.Await(t, func() bool { return len(letters.FindContaining("Increment")) == 1 })

	got := letters.FindContaining("Increment")[0]
	require.Equal(t, deadletter.ReasonActorStopped, got.Reason)
	require.True(t, got.Target.Equal(counter.Address()))

	_, ok := s.ActorOf(counter.Address())
	require.False(t, ok, "stopped actors are not in the directory")
}

func TestStage_actorOf_unknown(t *testing.T) {
	s := newTestStage(t)
	_, ok := s.ActorOf(s.addresses.Next())
	require.False(t, ok)
}

func TestStage_actorFor_after_close(t *testing.T) {
	s := New(Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	require.NoError(t, s.Close())

	_, err := s.ActorFor(counterProto(nil))
	require.ErrorIs(t, err, ErrStageClosed)

	require.NoError(t, s.Close(), "close is idempotent")
}

func TestStage_stats(t *testing.T) {
	s := newTestStage(t)

	testkit.Await(t, func() bool { return s.Stats().Actors == 2 }, "root pair registers")

	for i := 0; i < 10; i++ {
		_, err := s.ActorFor(counterProto(nil))
		require.NoError(t, err)
	}

	testkit.Await(t, func() bool { return s.Stats().Actors == 12 })
	require.Len(t, s.Stats().Distribution, directory.Small.Buckets)
}

func TestStage_default_singleton(t *testing.T) {
	a := Default()
	b := Default()
	require.Same(t, a, b)

	require.NoError(t, a.Close())
	c := Default()
	require.NotSame(t, a, c, "a closed default stage is replaced")
	require.NoError(t, c.Close())
}
