package aura

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"sync"
)

// RandomSource supplies the padding integers for the embedding carrier.
// Implementations must be safe for concurrent use.
type RandomSource interface {
	// IntRange returns a uniform integer in [low, high).
	IntRange(low, high int) int
}

type lockedSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewLockedSource returns a process-wide source seeded from crypto/rand.
// Concurrent callers never observe the same sequence.
func NewLockedSource() RandomSource {
	var seed [32]byte
	_, _ = crand.Read(seed[:])
	return &lockedSource{rng: rand.New(rand.NewChaCha8(seed))}
}

// NewSeededSource returns a deterministic source, for tests and offline
// reproduction of a digest.
func NewSeededSource(seed uint64) RandomSource {
	var s [32]byte
	binary.LittleEndian.PutUint64(s[:], seed)
	return &lockedSource{rng: rand.New(rand.NewChaCha8(s))}
}

func (s *lockedSource) IntRange(low, high int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return low + s.rng.IntN(high-low)
}
