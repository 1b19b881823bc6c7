package beacon

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// requestIDs hands out the X-Request-Id values attached to delivery
// attempts. IDs drawn within the same millisecond stay ordered, so a
// collector can sort retries of one client by ID alone.
type requestIDs struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func newRequestIDs() *requestIDs {
	return &requestIDs{entropy: ulid.Monotonic(rand.Reader, 0)}
}

// next returns a fresh ID stamped with now.
func (r *requestIDs) next(now time.Time) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(now), r.entropy).String()
}
