package stage

import (
	"sync/atomic"
	"time"

	"github.com/codewandler/stage-go/core/future"
)

// LifeCycleState is the per-actor state machine's state. User message
// handlers run only in Running; Stopped is terminal.
type LifeCycleState int32

const (
	Constructed LifeCycleState = iota
	Starting
	Running
	Suspended
	Restarting
	Stopping
	Stopped
)

func (s LifeCycleState) String() string {
	switch s {
	case Constructed:
		return "Constructed"
	case Starting:
		return "Starting"
	case Running:
		return "Running"
	case Suspended:
		return "Suspended"
	case Restarting:
		return "Restarting"
	case Stopping:
		return "Stopping"
	case Stopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// lifeCycle holds the atomic state; transitions are driven exclusively by
// the actor's dispatcher goroutine.
type lifeCycle struct {
	state atomic.Int32
}

func (l *lifeCycle) current() LifeCycleState { return LifeCycleState(l.state.Load()) }
func (l *lifeCycle) set(s LifeCycleState)    { l.state.Store(int32(s)) }

// isTerminal reports whether the actor is stopping or stopped.
func (l *lifeCycle) isTerminal() bool {
	s := l.current()
	return s == Stopping || s == Stopped
}

// ---- control messages (internal) ----

type ctrlKind int

const (
	ctrlStart ctrlKind = iota
	ctrlStop
	ctrlDirective
)

type ctrlMsg struct {
	kind      ctrlKind
	directive Directive
	scope     Scope
	reason    error
	timeout   time.Duration
	result    *future.Future
}
