package bot

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// visitorTTL is how long an idle chat keeps its bucket before eviction.
const visitorTTL = 10 * time.Minute

// gcEvery is the lookup count between opportunistic sweeps of idle buckets.
const gcEvery = 5000

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// messageThrottle applies a per-chat token bucket ahead of all handling, so a
// flooding chat cannot monopolize the update loop or burn Telegram API quota.
// It is separate from the token-attempt limiter, which guards credential
// probes and lives in storage.
type messageThrottle struct {
	rps   rate.Limit
	burst int

	mu       sync.Mutex
	visitors map[int64]*visitor
	lookups  int
}

func newMessageThrottle(rps float64, burst int) *messageThrottle {
	if burst <= 0 {
		burst = 1
	}
	return &messageThrottle{
		rps:      rate.Limit(rps),
		burst:    burst,
		visitors: make(map[int64]*visitor),
	}
}

func (t *messageThrottle) allow(chatID int64) bool {
	now := time.Now()

	t.mu.Lock()
	// Sweep before touching the requested bucket so an idle one can be
	// evicted even when it is the one being fetched.
	t.lookups++
	if t.lookups >= gcEvery {
		for id, v := range t.visitors {
			if now.Sub(v.lastSeen) >= visitorTTL {
				delete(t.visitors, id)
			}
		}
		t.lookups = 0
	}

	v, ok := t.visitors[chatID]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(t.rps, t.burst)}
		t.visitors[chatID] = v
	}
	v.lastSeen = now
	lim := v.limiter
	t.mu.Unlock()

	return lim.Allow()
}
