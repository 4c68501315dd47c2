package stage

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codewandler/stage-go/core/deadletter"
	"github.com/codewandler/stage-go/core/testkit"
)

// FixedSupervisor always applies the configured directive and journals
// what it saw.
type FixedSupervisor struct {
	BaseSupervisor
	directive Directive
	j         *journal
}

func (f *FixedSupervisor) Decide(err error, supervised *Supervised) Directive {
	f.j.add("informed:" + supervised.Actor().TypeName())
	if cmd, ok := supervised.ExecutionContext()["command"].(string); ok {
		f.j.add("ctx:" + cmd)
	}
	return f.directive
}

func fixedSupervisorProto(name string, directive Directive, strategy Strategy, j *journal) *Protocol {
	return NewProtocol(name, func(def Definition) (Behavior, error) {
		return &FixedSupervisor{
			BaseSupervisor: NewBaseSupervisor(strategy),
			directive:      directive,
			j:              j,
		}, nil
	})
}

func spawnSupervised(t *testing.T, s *Stage, supName string, directive Directive, strategy Strategy, j *journal) *Proxy {
	t.Helper()
	_, err := s.ActorFor(fixedSupervisorProto(supName, directive, strategy, j))
	require.NoError(t, err)

	counter, err := s.ActorFor(counterProto(j), WithSupervisorName(supName))
	require.NoError(t, err)

	// value 3, as the restart/resume scenarios expect
	counter.Tell("Increment")
	counter.Tell("Increment")
	counter.Tell("Increment")
	n, err := Ask[int](t.Context(), counter, "Value")
	require.NoError(t, err)
	require.Equal(t, 3, n)
	return counter
}

func TestSupervision_restart_directive(t *testing.T) {
	s := newTestStage(t)
	j := &journal{}
	counter := spawnSupervised(t, s, "RestartSup", DirectiveRestart, DefaultStrategy(), j)

	_, err := counter.Call("CauseError").AwaitTimeout(2 * time.Second)
	require.ErrorContains(t, err, "induced failure")

	testkit.Await(t, func() bool { return j.has("afterRestart") })
	require.Less(t, j.indexOf("beforeRestart"), j.indexOf("afterRestart"))
	require.True(t, j.has("ctx:CauseError"), "supervisor sees the failing message's execution context")

	n, err := Ask[int](t.Context(), counter, "Value")
	require.NoError(t, err)
	require.Zero(t, n, "restart replaced the instance")

	counter.Tell("Increment")
	n, err = Ask[int](t.Context(), counter, "Value")
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestSupervision_resume_directive(t *testing.T) {
	s := newTestStage(t)
	j := &journal{}
	counter := spawnSupervised(t, s, "ResumeSup", DirectiveResume, DefaultStrategy(), j)

	_, err := counter.Call("CauseError").AwaitTimeout(2 * time.Second)
	require.ErrorContains(t, err, "induced failure")

	n, err := Ask[int](t.Context(), counter, "Value")
	require.NoError(t, err)
	require.Equal(t, 3, n, "resume preserves state")
	require.True(t, j.has("beforeResume"))
	require.False(t, j.has("beforeRestart"))
}

func TestSupervision_stop_directive(t *testing.T) {
	s := newTestStage(t)
	letters := deadletter.NewCapturing()
	s.DeadLetters().Subscribe(letters)

	j := &journal{}
	counter := spawnSupervised(t, s, "StopSup", DirectiveStop, DefaultStrategy(), j)

	_, err := counter.Call("CauseError").AwaitTimeout(2 * time.Second)
	require.ErrorContains(t, err, "induced failure")

	testkit.Await(t, func() bool { return counter.IsStopped() })

	counter.Tell("Increment")
	testkit.Await(t, func() bool { return len(letters.FindContaining("Increment")) == 1 },
		"dead letter records the attempted method name")
}

func TestSupervision_restart_preserves_address_and_mailbox(t *testing.T) {
	s := newTestStage(t)

	var instances atomic.Int32
	proto := NewProtocol("Counter", func(def Definition) (Behavior, error) {
		instances.Add(1)
		return &Counter{}, nil
	})

	counter, err := s.ActorFor(proto)
	require.NoError(t, err)

	addr := counter.Address()
	box := counter.env.mailbox

	_, err = counter.Call("CauseError").AwaitTimeout(2 * time.Second)
	require.Error(t, err)

	// public root restarts by default
	testkit.Await(t, func() bool { return instances.Load() == 2 })

	n, err := Ask[int](t.Context(), counter, "Value")
	require.NoError(t, err)
	require.Zero(t, n)

	require.True(t, addr.Equal(counter.Address()))
	require.Same(t, box, counter.env.mailbox)

	live, ok := s.ActorOf(addr)
	require.True(t, ok)
	require.Same(t, counter, live)
}

func TestSupervision_default_public_root_restarts(t *testing.T) {
	s := newTestStage(t)

	counter, err := s.ActorFor(counterProto(nil))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = counter.Call("CauseError").AwaitTimeout(2 * time.Second)
		require.Error(t, err)

		n, err := Ask[int](t.Context(), counter, "Value")
		require.NoError(t, err)
		require.Zero(t, n, "restarted forever, round %d", i)
	}
}

func TestSupervision_intensity_window_escalates(t *testing.T) {
	s := newTestStage(t)
	j := &journal{}

	var supInstances atomic.Int32
	supProto := NewProtocol("WindowSup", func(def Definition) (Behavior, error) {
		supInstances.Add(1)
		return &FixedSupervisor{
			BaseSupervisor: NewBaseSupervisor(Strategy{Intensity: 1, Period: time.Minute, Scope: ScopeOne}),
			directive:      DirectiveRestart,
			j:              j,
		}, nil
	})
	_, err := s.ActorFor(supProto)
	require.NoError(t, err)

	counter, err := s.ActorFor(counterProto(j), WithSupervisorName("WindowSup"))
	require.NoError(t, err)

	// First failure: within the window, restarts.
	_, err = counter.Call("CauseError").AwaitTimeout(2 * time.Second)
	require.Error(t, err)
	testkit.Await(t, func() bool { return j.has("afterRestart") })

	// Second failure: window exhausted, escalates; the public root
	// restarts the supervisor itself.
	_, err = counter.Call("CauseError").AwaitTimeout(2 * time.Second)
	require.Error(t, err)

	testkit.Await(t, func() bool { return supInstances.Load() == 2 },
		"escalation fails the supervisor, which its supervisor restarts")
}

func TestSupervision_scope_all_stops_siblings(t *testing.T) {
	s := newTestStage(t)
	j := &journal{}

	strategy := Strategy{Intensity: 5, Period: time.Minute, Scope: ScopeAll}
	_, err := s.ActorFor(fixedSupervisorProto("AllSup", DirectiveStop, strategy, j))
	require.NoError(t, err)

	a, err := s.ActorFor(counterProto(nil), WithSupervisorName("AllSup"))
	require.NoError(t, err)
	b, err := s.ActorFor(counterProto(nil), WithSupervisorName("AllSup"))
	require.NoError(t, err)
	other, err := s.ActorFor(counterProto(nil))
	require.NoError(t, err)
	testkit.Await(t, func() bool { return other.State() == Running && b.State() == Running })

	_, err = a.Call("CauseError").AwaitTimeout(2 * time.Second)
	require.Error(t, err)

	testkit.Await(t, func() bool { return a.IsStopped() && b.IsStopped() },
		"ScopeAll stops the failed actor and its siblings under the same supervisor")

	require.False(t, other.IsStopped(), "actors under other supervisors are untouched")
}

func TestSupervision_strategy_accessor(t *testing.T) {
	sup := NewBaseSupervisor(DefaultStrategy())
	require.Equal(t, DefaultStrategy(), sup.Strategy())
	require.Equal(t, "Restart", DirectiveRestart.String())
	require.Equal(t, "All", ScopeAll.String())
}
