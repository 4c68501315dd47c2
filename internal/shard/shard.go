// Package shard maps string keys onto a fixed number of shards.
package shard

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"
)

type Func func(key string) int

// Sum64 returns a stable 64-bit digest of key. An optional seed
// personalizes the hash so independent consumers do not collide on
// identical key spaces.
func Sum64(key string, seed string) uint64 {
	// 8-byte digest => uint64 score
	h, _ := blake2b.New(8, nil)
	if seed != "" {
		h.Write([]byte(seed))
		h.Write([]byte{0})
	}
	h.Write([]byte(key))
	sum := h.Sum(nil)
	return binary.BigEndian.Uint64(sum)
}

// ForKey returns the shard index for key in [0, shardCount).
func ForKey(key string, shardCount int, seed string) int {
	if shardCount <= 1 {
		return 0
	}
	return int(Sum64(key, seed) % uint64(shardCount))
}

type Sharder interface {
	GetShardForKey(key string) int
}

type fnSharder struct {
	fn Func
}

func NewSharder(fn Func) Sharder {
	return &fnSharder{fn: fn}
}

func (s *fnSharder) GetShardForKey(key string) int { return s.fn(key) }

// Distributed returns a Sharder spreading keys over count shards.
func Distributed(count int, seed string) Sharder {
	return &fnSharder{
		fn: func(key string) int {
			return ForKey(key, count, seed)
		},
	}
}

// Const returns a Sharder that maps every key to the same shard.
func Const(shard int) Sharder {
	return &fnSharder{
		fn: func(string) int { return shard },
	}
}
