package stage

import (
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/codewandler/stage-go/internal/reflector"
)

// run is the actor's dispatcher goroutine. It is the only goroutine that
// touches the behavior instance and drives lifecycle transitions, which is
// what gives each actor the single-writer guarantee over its state.
func (e *Environment) run() {
	for {
		select {
		case c := <-e.control:
			if e.handleControl(c) {
				return
			}
		case <-e.notify:
			if e.drainMailbox() {
				return
			}
		}
	}
}

// drainMailbox processes queued messages until the mailbox is no longer
// receivable. Control messages preempt between dispatches so a pending
// stop or directive never waits behind a deep queue.
func (e *Environment) drainMailbox() (stopped bool) {
	for {
		select {
		case c := <-e.control:
			if e.handleControl(c) {
				return true
			}
			continue
		default:
		}

		if e.life.current() != Running {
			return false
		}
		msg, ok := e.mailbox.Pop()
		if !ok {
			return false
		}
		e.dispatchMsg(msg)
	}
}

// handleControl applies one control message. It reports true when the
// actor reached Stopped and the dispatcher must exit.
func (e *Environment) handleControl(c ctrlMsg) (stopped bool) {
	switch c.kind {
	case ctrlStart:
		e.doStart(c)
		return false
	case ctrlStop:
		return e.doStop(c)
	case ctrlDirective:
		switch c.directive {
		case DirectiveResume:
			e.runHook("beforeResume", func() error { return e.behavior.BeforeResume(c.reason) })
			e.life.set(Running)
			e.mailbox.Resume()
			e.complete(c, nil)
		case DirectiveRestart:
			e.doRestart(c.reason)
			e.complete(c, nil)
		case DirectiveStop:
			return e.doStop(ctrlMsg{kind: ctrlStop, result: c.result})
		}
		return false
	default:
		return false
	}
}

func (e *Environment) complete(c ctrlMsg, err error) {
	if c.result != nil {
		c.result.Complete(nil, err)
	}
}

// doStart drives Constructed -> Starting -> Running. Starting an actor
// that is already running is a no-op.
func (e *Environment) doStart(c ctrlMsg) {
	if e.life.current() != Constructed {
		e.complete(c, nil)
		return
	}

	e.life.set(Starting)
	e.runHook("beforeStart", e.behavior.BeforeStart)

	e.life.set(Running)
	e.stage.directory.Put(e.address.String(), e.proxy)
	if e.parent != nil {
		e.parent.children.add(e.proxy)
	}
	e.stage.metrics.ActorStarted()
	e.log.Debug("actor running")
	e.complete(c, nil)

	// Messages may have queued while Constructed/Starting; make sure the
	// dispatcher sees them even if their ready signal was already consumed.
	if e.mailbox.IsReceivable() {
		e.signalReady()
	}
}

// doStop drives the shutdown sequence to Stopped (terminal) and reports
// that the dispatcher must exit.
func (e *Environment) doStop(c ctrlMsg) bool {
	if e.life.current() == Stopped {
		e.complete(c, nil)
		return true
	}

	e.life.set(Stopping)

	// 1. Block new user work; internal control still flows.
	e.mailbox.Suspend()

	// 2.
	e.runHook("beforeStop", e.behavior.BeforeStop)

	// 3. Stop children in parallel; individual failures do not abort.
	timedOut := !e.stopChildren(c.timeout)

	// 4. Queued messages become dead letters with reason "actor stopped".
	e.mailbox.Close()

	// 5.
	e.runHook("afterStop", e.behavior.AfterStop)

	// 6.
	e.stage.directory.Remove(e.address.String())
	if e.parent != nil {
		e.parent.children.remove(e.address)
	}

	// 7.
	e.life.set(Stopped)
	e.stage.metrics.ActorStopped()
	e.log.Debug("actor stopped")

	if timedOut {
		if c.result != nil {
			c.result.Fail(ErrStopTimeout)
		}
	} else {
		e.complete(c, nil)
	}

	// Answer any control messages that raced in while stopping.
	for {
		select {
		case late := <-e.control:
			e.answerWhileStopped(late)
		default:
			return true
		}
	}
}

// stopChildren stops the current child set in parallel. It returns false
// when timeout > 0 and the deadline passed with children still stopping;
// those children are left to finish (or be reclaimed) on their own.
func (e *Environment) stopChildren(timeout time.Duration) (completed bool) {
	children := e.children.proxies()
	if len(children) == 0 {
		return true
	}

	var g errgroup.Group
	for _, child := range children {
		g.Go(func() error {
			_, err := child.StopTimeout(timeout).AwaitTimeout(timeout)
			if err != nil {
				e.log.Warn("child stop failed",
					slog.String("child", child.Address().String()),
					slog.Any("error", err))
			}
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	if timeout <= 0 {
		<-done
		return true
	}
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// doRestart replaces the actor instance, keeping environment, address and
// mailbox: suspend, BeforeRestart on the failing instance, fresh instance,
// AfterRestart on the replacement, resume.
func (e *Environment) doRestart(reason error) {
	e.life.set(Restarting)
	e.mailbox.Suspend()

	e.runHook("beforeRestart", func() error { return e.behavior.BeforeRestart(reason) })

	fresh, err := e.def.Protocol.Instantiate(e.def)
	if err != nil {
		e.log.Error("restart instantiation failed, stopping actor", slog.Any("error", err))
		e.sendControl(ctrlMsg{kind: ctrlStop})
		return
	}
	fresh.bind(e)
	e.behavior = fresh

	e.runHook("afterRestart", func() error { return e.behavior.AfterRestart(reason) })

	e.life.set(Running)
	e.stage.metrics.ActorRestarted()
	e.log.Debug("actor restarted", slog.Any("reason", reason))
	e.mailbox.Resume()
}

// dispatchMsg delivers one user message: reset the execution context,
// invoke the selector's handler, complete the deferred result, and on
// failure engage supervision.
func (e *Environment) dispatchMsg(msg *Message) {
	e.resetExecCtx()

	t := e.stage.metrics.MessageDuration(msg.Selector)
	res, err := e.invoke(msg)
	t.ObserveDuration()

	e.stage.metrics.MessageProcessed(msg.Selector, err == nil)
	e.stage.metrics.MailboxDepth(e.address.String(), e.mailbox.Len())

	if err == nil {
		msg.Result.Complete(res, nil)
		return
	}

	// Faults are never swallowed: the caller's future rejects AND the
	// supervisor is informed.
	msg.Result.Fail(err)
	e.mailbox.Suspend()
	e.life.set(Suspended)
	e.informSupervisor(err)
}

// invoke resolves the selector to an exported method on the behavior and
// calls it with the argument tuple. Panics, including non-error panic
// values, are wrapped into errors with a stable message.
func (e *Environment) invoke(msg *Message) (res any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	ti := reflector.TypeInfoOf(e.behavior)
	method, ok := ti.Method(msg.Selector)
	if !ok {
		return nil, &UnknownSelectorError{TypeName: ti.Name, Selector: msg.Selector}
	}

	mv := reflect.ValueOf(e.behavior).Method(method.Index)
	in, err := conformArgs(mv.Type(), msg.Args)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", msg.Selector, err)
	}

	out := mv.Call(in)
	return interpretResults(out)
}

// conformArgs converts the untyped argument tuple to the method's
// parameter types, supporting variadic tails and nil placeholders.
func conformArgs(mt reflect.Type, args []any) ([]reflect.Value, error) {
	numIn := mt.NumIn()
	variadic := mt.IsVariadic()
	if variadic {
		if len(args) < numIn-1 {
			return nil, fmt.Errorf("want at least %d args, got %d", numIn-1, len(args))
		}
	} else if len(args) != numIn {
		return nil, fmt.Errorf("want %d args, got %d", numIn, len(args))
	}

	in := make([]reflect.Value, 0, len(args))
	for i, arg := range args {
		var pt reflect.Type
		if variadic && i >= numIn-1 {
			pt = mt.In(numIn - 1).Elem()
		} else {
			pt = mt.In(i)
		}

		if arg == nil {
			in = append(in, reflect.Zero(pt))
			continue
		}
		av := reflect.ValueOf(arg)
		switch {
		case av.Type().AssignableTo(pt):
		case av.Type().ConvertibleTo(pt):
			av = av.Convert(pt)
		default:
			return nil, fmt.Errorf("arg %d: cannot use %T as %s", i, arg, pt)
		}
		in = append(in, av)
	}
	return in, nil
}

var errType = reflect.TypeFor[error]()

// interpretResults maps a handler's return values onto (result, error).
// Supported shapes: (), (error), (T), (T, error).
func interpretResults(out []reflect.Value) (any, error) {
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		if out[0].Type().Implements(errType) {
			return nil, asError(out[0])
		}
		return out[0].Interface(), nil
	case 2:
		if !out[1].Type().Implements(errType) {
			return nil, fmt.Errorf("unsupported handler signature: second result must be error")
		}
		return out[0].Interface(), asError(out[1])
	default:
		return nil, fmt.Errorf("unsupported handler signature: %d results", len(out))
	}
}

func asError(v reflect.Value) error {
	if v.IsNil() {
		return nil
	}
	return v.Interface().(error)
}

// informSupervisor routes a handler failure to the supervisor as an
// ordinary message, so supervisor logic is itself serialized. A failure
// with no remaining supervisor (the private root) is fatal to the stage.
func (e *Environment) informSupervisor(err error) {
	sup := e.supervisorProxy()
	if sup == nil {
		e.log.Error("private root failure is fatal to the stage", slog.Any("error", err))
		e.stage.fail(err)
		return
	}
	supervised := &Supervised{env: e, err: err, execCtx: e.execCtxSnapshot()}
	sup.Call("Inform", err, supervised)
}

// runHook executes a lifecycle hook. Errors and panics are logged with the
// hook name and never prevent the owning transition.
func (e *Environment) runHook(name string, hook func() error) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("lifecycle hook panicked",
				slog.String("hook", name), slog.Any("recovered", r))
		}
	}()
	if err := hook(); err != nil {
		e.log.Error("lifecycle hook failed",
			slog.String("hook", name), slog.Any("error", err))
	}
}
