package api

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// visitorTable hands out one token bucket per client IP. Entries not
// seen for a while are evicted so one-off callers never accumulate.
type visitorTable struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
}

type visitor struct {
	bucket *rate.Limiter
	seen   time.Time
}

const (
	visitorSweepInterval = 5 * time.Minute
	visitorTTL           = 10 * time.Minute
)

func newVisitorTable(requestsPerMinute int) *visitorTable {
	vt := &visitorTable{
		visitors: make(map[string]*visitor, 64),
		limit:    rate.Limit(float64(requestsPerMinute) / 60.0),
		// Bursts up to the full per-minute budget are allowed.
		burst: requestsPerMinute,
	}

	go vt.sweep()

	return vt
}

// allow reports whether the given client may make a request now.
func (vt *visitorTable) allow(ip string) bool {
	vt.mu.Lock()
	defer vt.mu.Unlock()

	v, ok := vt.visitors[ip]
	if !ok {
		v = &visitor{bucket: rate.NewLimiter(vt.limit, vt.burst)}
		vt.visitors[ip] = v
	}

	v.seen = time.Now()

	return v.bucket.Allow()
}

func (vt *visitorTable) sweep() {
	ticker := time.NewTicker(visitorSweepInterval)
	defer ticker.Stop()

	for range ticker.C {
		vt.mu.Lock()

		for ip, v := range vt.visitors {
			if time.Since(v.seen) > visitorTTL {
				delete(vt.visitors, ip)
			}
		}

		vt.mu.Unlock()
	}
}

// clientIP identifies the caller, preferring the first hop of an
// X-Forwarded-For chain over the socket address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")

		return strings.TrimSpace(first)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return ip
}
