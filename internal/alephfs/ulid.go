package alephfs

import (
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// IDGenerator produces lexicographically sortable, monotonically increasing
// IDs within a single process. ULIDs already sort by millisecond timestamp;
// the monotonic entropy source additionally guarantees strict ordering for
// IDs minted in the same millisecond, which message IDs rely on for
// stable on-disk ordering without a separate sequence counter.
type IDGenerator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewIDGenerator returns a ready-to-use generator. Safe for concurrent use.
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
}

// New mints a new ID for the current instant.
func (g *IDGenerator) New() ulid.ULID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// NewString is New formatted as its canonical 26-character string.
func (g *IDGenerator) NewString() string {
	return g.New().String()
}

var (
	defaultGen     *IDGenerator
	defaultGenOnce sync.Once
)

// NewULID mints an ID from a package-level generator, for call sites that
// don't need to own their own monotonic sequence.
func NewULID() string {
	defaultGenOnce.Do(func() { defaultGen = NewIDGenerator() })
	return defaultGen.NewString()
}
