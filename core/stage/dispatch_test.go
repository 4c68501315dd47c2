package stage

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Echo exercises the supported handler signatures.
type Echo struct {
	Base
	j *journal
}

func (e *Echo) Nothing() {}

func (e *Echo) JustErr(fail bool) error {
	if fail {
		return errors.New("requested failure")
	}
	return nil
}

func (e *Echo) JustValue(s string) string { return "echo:" + s }

func (e *Echo) Both(a, b int) (int, error) {
	if b == 0 {
		return 0, errors.New("division by zero")
	}
	return a / b, nil
}

func (e *Echo) Sum(ns ...int) int {
	total := 0
	for _, n := range ns {
		total += n
	}
	return total
}

func (e *Echo) Widen(n int64) int64 { return n * 2 }

func (e *Echo) Kickoff() {
	e.j.add("kick-begin")
	e.Self().Tell("Follow")
	e.j.add("kick-end")
}

func (e *Echo) Follow() { e.j.add("follow") }

func echoProto(j *journal) *Protocol {
	return ProtocolOf("Echo", func(def Definition) *Echo { return &Echo{j: j} })
}

func TestDispatch_signatures(t *testing.T) {
	s := newTestStage(t)
	echo, err := s.ActorFor(echoProto(nil))
	require.NoError(t, err)

	ctx := t.Context()

	_, err = echo.Call("Nothing").Await(ctx)
	require.NoError(t, err)

	_, err = echo.Call("JustErr", false).Await(ctx)
	require.NoError(t, err)
	_, err = echo.Call("JustErr", true).Await(ctx)
	require.ErrorContains(t, err, "requested failure")

	v, err := Ask[string](ctx, echo, "JustValue", "hi")
	require.NoError(t, err)
	require.Equal(t, "echo:hi", v)

	q, err := Ask[int](ctx, echo, "Both", 10, 2)
	require.NoError(t, err)
	require.Equal(t, 5, q)

	_, err = echo.Call("Both", 10, 0).Await(ctx)
	require.ErrorContains(t, err, "division by zero")
}

func TestDispatch_variadic(t *testing.T) {
	s := newTestStage(t)
	echo, err := s.ActorFor(echoProto(nil))
	require.NoError(t, err)

	total, err := Ask[int](t.Context(), echo, "Sum", 1, 2, 3, 4)
	require.NoError(t, err)
	require.Equal(t, 10, total)

	total, err = Ask[int](t.Context(), echo, "Sum")
	require.NoError(t, err)
	require.Zero(t, total)
}

func TestDispatch_arg_conversion(t *testing.T) {
	s := newTestStage(t)
	echo, err := s.ActorFor(echoProto(nil))
	require.NoError(t, err)

	// int converts to the handler's int64 parameter.
	v, err := Ask[int64](t.Context(), echo, "Widen", 21)
	require.NoError(t, err)
	require.Equal(t, int64(42), v)
}

func TestDispatch_arity_mismatch(t *testing.T) {
	s := newTestStage(t)
	echo, err := s.ActorFor(echoProto(nil))
	require.NoError(t, err)

	_, err = echo.Call("JustValue").Await(t.Context())
	require.ErrorContains(t, err, "want 1 args")

	_, err = echo.Call("JustValue", 7).Await(t.Context())
	require.ErrorContains(t, err, "cannot use int")
}

func TestDispatch_unknown_selector(t *testing.T) {
	s := newTestStage(t)
	echo, err := s.ActorFor(echoProto(nil))
	require.NoError(t, err)

	_, err = echo.Call("Bogus").Await(t.Context())
	var unknown *UnknownSelectorError
	require.ErrorAs(t, err, &unknown)
	require.Equal(t, "Bogus", unknown.Selector)
	require.Equal(t, "Echo", unknown.TypeName)
}

func TestDispatch_panic_wrapped(t *testing.T) {
	s := newTestStage(t)
	counter, err := s.ActorFor(counterProto(nil))
	require.NoError(t, err)

	_, err = counter.Call("Explode").AwaitTimeout(2 * time.Second)
	require.ErrorContains(t, err, "handler panic: kaboom")
}

func TestDispatch_self_message_after_current(t *testing.T) {
	s := newTestStage(t)
	j := &journal{}
	echo, err := s.ActorFor(echoProto(j))
	require.NoError(t, err)

	_, err = echo.Call("Kickoff").Await(t.Context())
	require.NoError(t, err)

	_, err = echo.Call("Nothing").Await(t.Context()) // fence: Follow dispatched first
	require.NoError(t, err)

	require.Equal(t, []string{"kick-begin", "kick-end", "follow"}, j.list(),
		"self-sent message dispatches after the in-flight handler completes")
}
