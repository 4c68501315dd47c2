package address

import (
	"github.com/google/uuid"
)

// Factory mints addresses. Safe for concurrent use.
type Factory struct{}

// NewFactory creates an address factory.
func NewFactory() *Factory { return &Factory{} }

// Next mints a fresh, unique address.
func (f *Factory) Next() Address {
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails when the random source does; fall back to v4
		// rather than surfacing an error for every actor spawn.
		id = uuid.New()
	}
	return Address{id: id}
}
