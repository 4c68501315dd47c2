package stage

import (
	"errors"
	"fmt"
)

var (
	// ErrActorStopped is the failure completing a message's future when the
	// target actor has stopped (or stopped before the message was dispatched).
	ErrActorStopped = errors.New("actor stopped")

	// ErrMessageDropped is the failure completing a message's future when a
	// bounded mailbox displaced it under DropOldest/DropNewest.
	ErrMessageDropped = errors.New("message dropped")

	// ErrStopTimeout is the failure completing a stop future when the
	// shutdown sequence exceeded its deadline.
	ErrStopTimeout = errors.New("stop timed out")

	// ErrStageClosed is returned by ActorFor after the stage has closed.
	ErrStageClosed = errors.New("stage closed")
)

// UnknownSelectorError is the handler failure for a message whose selector
// matches no method on the actor.
type UnknownSelectorError struct {
	TypeName string
	Selector string
}

func (e *UnknownSelectorError) Error() string {
	return fmt.Sprintf("no handler for selector %q on %s", e.Selector, e.TypeName)
}
