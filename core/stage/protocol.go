package stage

import (
	"github.com/codewandler/stage-go/core/address"
)

// Definition is the construction recipe for one actor: its protocol, its
// intended address and the ordered constructor parameters handed to the
// protocol's instantiator.
type Definition struct {
	Protocol *Protocol
	Address  address.Address
	Params   []any
}

// Param returns the i-th constructor parameter, or nil when absent.
func (d Definition) Param(i int) any {
	if i < 0 || i >= len(d.Params) {
		return nil
	}
	return d.Params[i]
}

// Instantiator produces a fresh actor instance for a definition. It is
// invoked on first start and again on every restart; each call must return
// a new instance.
type Instantiator func(def Definition) (Behavior, error)

// Protocol is a named actor contract. Two protocols are the same contract
// iff their names are equal.
type Protocol struct {
	// Name is the protocol type name, e.g. "Counter".
	Name string
	// Instantiate builds a new actor instance from a definition.
	Instantiate Instantiator
}

// NewProtocol creates a protocol from a name and an instantiator.
func NewProtocol(name string, instantiate Instantiator) *Protocol {
	return &Protocol{Name: name, Instantiate: instantiate}
}

// ProtocolOf creates a protocol for a concrete behavior type, using the
// factory to build instances. The definition is available to the factory
// for constructor parameters.
func ProtocolOf[T Behavior](name string, factory func(def Definition) T) *Protocol {
	return NewProtocol(name, func(def Definition) (Behavior, error) {
		return factory(def), nil
	})
}
