package stage

import (
	"log/slog"

	"github.com/codewandler/stage-go/core/address"
	"github.com/codewandler/stage-go/core/deadletter"
	"github.com/codewandler/stage-go/core/timer"
)

// Behavior is the supplier-facing actor contract. User types embed [Base],
// which provides the sealed runtime binding plus no-op lifecycle hooks;
// override any subset of the hooks on the embedding type.
//
// Hook errors (and panics) are logged with the hook name but never prevent
// the lifecycle transition that owns the hook. Errors from ordinary message
// handlers instead reject the caller's future and engage supervision.
type Behavior interface {
	// BeforeStart runs before the actor enters Running.
	BeforeStart() error
	// BeforeStop runs at the beginning of the shutdown sequence.
	BeforeStop() error
	// AfterStop runs after the mailbox has closed, before deregistration.
	AfterStop() error
	// BeforeRestart runs on the failing instance before its replacement
	// is constructed.
	BeforeRestart(reason error) error
	// AfterRestart runs on the fresh instance before the mailbox resumes.
	AfterRestart(reason error) error
	// BeforeResume runs before a Resume directive re-enables the mailbox.
	BeforeResume(reason error) error

	// bind is unexported so that embedding Base is the only way to
	// implement Behavior.
	bind(env *Environment)
	environment() *Environment
}

// Base is the runtime half of every actor. Embed it (by value) in actor
// structs; the stage binds the environment before any hook or handler runs,
// so accessors work inside BeforeStart and the instantiator's hooks.
type Base struct {
	env *Environment
}

func (b *Base) bind(env *Environment)     { b.env = env }
func (b *Base) environment() *Environment { return b.env }

// Address returns this actor's address.
func (b *Base) Address() address.Address { return b.env.address }

// Self returns this actor's own proxy. Sending to it from inside a handler
// appends to the tail of the actor's own mailbox.
func (b *Base) Self() *Proxy { return b.env.proxy }

// Parent returns the parent's proxy, or nil for a root actor.
func (b *Base) Parent() *Proxy {
	if b.env.parent == nil {
		return nil
	}
	return b.env.parent.proxy
}

// Children returns the proxies of this actor's current children.
func (b *Base) Children() []*Proxy { return b.env.childProxies() }

// Logger returns the actor's logger.
func (b *Base) Logger() *slog.Logger { return b.env.log }

// Scheduler returns the stage's timed-task scheduler.
func (b *Base) Scheduler() *timer.Scheduler { return b.env.stage.scheduler }

// DeadLetters returns the stage's dead-letter office.
func (b *Base) DeadLetters() *deadletter.Office { return b.env.stage.deadLetters }

// Stage returns the owning stage.
func (b *Base) Stage() *Stage { return b.env.stage }

// ChildActorFor spawns a child actor supervised-by-default and parented
// under this actor.
func (b *Base) ChildActorFor(protocol *Protocol, params ...any) (*Proxy, error) {
	return b.env.stage.actorFor(protocol, spawnConfig{
		parent: b.env,
		params: params,
	})
}

// StateSnapshot stores (when called with a value) or fetches (when called
// without) an opaque value that survives restarts of this actor.
func (b *Base) StateSnapshot(value ...any) any {
	if len(value) > 0 {
		b.env.setSnapshot(value[0])
	}
	return b.env.getSnapshot()
}

// SetContextValue records a named value in the current message's execution
// context. The context is reset before every dispatch; on failure the
// supervisor observes it as of the failing message.
func (b *Base) SetContextValue(key string, value any) {
	b.env.execCtx[key] = value
}

// ContextValue reads a named value from the current message's execution
// context.
func (b *Base) ContextValue(key string) any {
	return b.env.execCtx[key]
}

// Default no-op hooks.

func (b *Base) BeforeStart() error        { return nil }
func (b *Base) BeforeStop() error         { return nil }
func (b *Base) AfterStop() error          { return nil }
func (b *Base) BeforeRestart(error) error { return nil }
func (b *Base) AfterRestart(error) error  { return nil }
func (b *Base) BeforeResume(error) error  { return nil }
