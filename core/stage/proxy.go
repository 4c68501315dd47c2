package stage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/codewandler/stage-go/core/address"
	"github.com/codewandler/stage-go/core/deadletter"
	"github.com/codewandler/stage-go/core/future"
	"github.com/codewandler/stage-go/core/timer"
)

// Proxy is the caller-facing handle for one actor. Protocol calls go
// through Call/Ask/Tell and are delivered through the mailbox one at a
// time; the operational methods answer synchronously from the environment
// without touching the mailbox.
//
// Proxies are identity-preserving: every lookup for the same address
// returns the same instance. The environment itself is deliberately not
// exposed; runtime collaborators reach it through package-private access
// only.
type Proxy struct {
	env *Environment
}

// Call packages (selector, args) into a message bound to a fresh deferred
// result, enqueues it on the actor's mailbox and returns the deferred. The
// dispatcher completes it with the handler's return value or error.
func (p *Proxy) Call(selector string, args ...any) *future.Future {
	msg := newMessage(p.env.address, selector, args)
	// Send failures (closed, reject-overflow) complete the future through
	// the divert path; the returned error needs no separate handling.
	_ = p.env.mailbox.Send(msg)
	p.env.stage.metrics.MailboxDepth(p.env.address.String(), p.env.mailbox.Len())
	return msg.Result
}

// Tell is Call for fire-and-forget use; the deferred is returned for
// callers that change their mind and want to await after all.
func (p *Proxy) Tell(selector string, args ...any) *future.Future {
	return p.Call(selector, args...)
}

// Ask calls selector on the target and awaits a result of type T.
func Ask[T any](ctx context.Context, p *Proxy, selector string, args ...any) (T, error) {
	return future.AwaitAs[T](ctx, p.Call(selector, args...))
}

// ---- lifecycle ----

// Start enqueues the start control message. Starting an actor that is
// already running is a no-op; the deferred resolves either way.
func (p *Proxy) Start() *future.Future {
	f := future.New()
	p.env.sendControl(ctrlMsg{kind: ctrlStart, result: f})
	return f
}

// Stop initiates the shutdown sequence with no deadline.
func (p *Proxy) Stop() *future.Future {
	return p.StopTimeout(0)
}

// StopTimeout initiates the shutdown sequence. If it does not finish
// within timeout, the mailbox is force-closed and the deferred fails with
// ErrStopTimeout. A zero or negative timeout means no deadline.
func (p *Proxy) StopTimeout(timeout time.Duration) *future.Future {
	f := future.New()
	p.env.sendControl(ctrlMsg{kind: ctrlStop, timeout: timeout, result: f})
	return f
}

// Restart asks the actor to replace its instance, as if a supervisor had
// applied a Restart directive.
func (p *Proxy) Restart() *future.Future {
	f := future.New()
	p.env.sendControl(ctrlMsg{kind: ctrlDirective, directive: DirectiveRestart, result: f})
	return f
}

// ---- operational methods (synchronous, mailbox not involved) ----

// Address returns the actor's address.
func (p *Proxy) Address() address.Address { return p.env.address }

// Stage returns the owning stage.
func (p *Proxy) Stage() *Stage { return p.env.stage }

// Definition returns the actor's construction recipe.
func (p *Proxy) Definition() Definition { return p.env.def }

// TypeName returns the protocol type name.
func (p *Proxy) TypeName() string { return p.env.def.Protocol.Name }

// IsStopped reports whether the actor's lifecycle reached Stopped.
func (p *Proxy) IsStopped() bool { return p.env.life.current() == Stopped }

// State returns the actor's current lifecycle state.
func (p *Proxy) State() LifeCycleState { return p.env.life.current() }

// Equal reports whether both proxies address the same actor.
func (p *Proxy) Equal(other *Proxy) bool {
	return other != nil && p.env.address.Equal(other.env.address)
}

// HashCode returns the stable hash of the actor's address.
func (p *Proxy) HashCode() uint64 { return p.env.address.Hash() }

func (p *Proxy) String() string {
	return fmt.Sprintf("%s[%s]", p.TypeName(), p.env.address)
}

// Logger returns the actor's logger.
func (p *Proxy) Logger() *slog.Logger { return p.env.log }

// DeadLetters returns the stage's dead-letter office.
func (p *Proxy) DeadLetters() *deadletter.Office { return p.env.stage.deadLetters }

// Scheduler returns the stage's timed-task scheduler.
func (p *Proxy) Scheduler() *timer.Scheduler { return p.env.stage.scheduler }

// environment is the package-private key to the proxy's internals: only
// runtime code can reach the Environment, it is not part of the protocol
// surface.
func (p *Proxy) environment() *Environment { return p.env }
