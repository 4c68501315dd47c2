package stage

import (
	"fmt"
	"strings"

	"github.com/codewandler/stage-go/core/address"
	"github.com/codewandler/stage-go/core/future"
)

// Message is a single protocol invocation bound for an actor's mailbox:
// target, method selector, argument tuple and the deferred result the
// dispatcher completes.
type Message struct {
	Target   address.Address
	Selector string
	Args     []any
	Result   *future.Future
}

func newMessage(target address.Address, selector string, args []any) *Message {
	return &Message{
		Target:   target,
		Selector: selector,
		Args:     args,
		Result:   future.New(),
	}
}

// String renders the invocation as selector(args). This is the message
// representation recorded in dead letters.
func (m *Message) String() string {
	if len(m.Args) == 0 {
		return m.Selector + "()"
	}
	parts := make([]string, len(m.Args))
	for i, a := range m.Args {
		parts[i] = fmt.Sprintf("%v", a)
	}
	return fmt.Sprintf("%s(%s)", m.Selector, strings.Join(parts, ", "))
}
