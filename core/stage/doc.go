// Package stage provides an in-process actor runtime: independently
// addressable actors with private state, serialized FIFO message
// processing per actor, a deterministic lifecycle, fault supervision,
// bounded mailboxes with overflow policies, dead-letter routing and
// orderly hierarchical shutdown.
//
// # Actors
//
// An actor is a struct embedding [Base], whose exported methods are its
// protocol. A [Protocol] names the contract and knows how to build
// instances:
//
//	type Counter struct {
//	    stage.Base
//	    value int
//	}
//
//	func (c *Counter) Increment()     { c.value++ }
//	func (c *Counter) Value() int     { return c.value }
//
//	proto := stage.ProtocolOf("Counter", func(def stage.Definition) *Counter {
//	    return &Counter{}
//	})
//
// # Sending messages
//
// [Stage.ActorFor] returns a [Proxy]. Protocol calls are delivered through
// the actor's mailbox one at a time and answered through a deferred
// result:
//
//	counter, _ := st.ActorFor(proto)
//	counter.Tell("Increment")
//	n, err := stage.Ask[int](ctx, counter, "Value")
//
// Messages sent to one actor are processed strictly in send order; there
// is no ordering guarantee across actors.
//
// # Supervision
//
// When a handler returns an error or panics, the caller's deferred rejects
// and the failure is routed to the actor's supervisor, which applies one
// of the directives Resume, Restart, Stop or Escalate. By default actors
// are supervised by the stage's public root, which restarts them forever;
// custom supervisors embed [BaseSupervisor] and override Decide.
//
// # Shutdown
//
// Stopping an actor stops its children first, drains its mailbox to dead
// letters and is terminal. [Stage.Close] stops every actor, then the root
// pair, then the scheduler.
package stage
