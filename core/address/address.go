// Package address provides unique, immutable actor identities.
//
// Addresses are minted by a [Factory] and are time-sortable: the underlying
// value is a UUIDv7, so lexical order of the string form follows mint order.
package address

import (
	"github.com/google/uuid"

	"github.com/codewandler/stage-go/internal/shard"
)

const hashSeed = "stage/address"

// Address uniquely identifies an actor within a stage. The zero value is
// not a valid address; use a [Factory] to mint one.
type Address struct {
	id uuid.UUID
}

// None is the zero address, used where no address applies.
var None = Address{}

// IsNone reports whether a is the zero address.
func (a Address) IsNone() bool { return a.id == uuid.Nil }

// Equal reports whether a and other identify the same actor.
func (a Address) Equal(other Address) bool { return a.id == other.id }

// Hash returns a stable 64-bit hash of the address value.
func (a Address) Hash() uint64 {
	return shard.Sum64(a.id.String(), hashSeed)
}

// String returns the canonical UUID string form.
func (a Address) String() string { return a.id.String() }

// Parse converts a canonical string form back into an Address.
func Parse(s string) (Address, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return None, err
	}
	return Address{id: id}, nil
}
