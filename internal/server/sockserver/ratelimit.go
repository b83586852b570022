// Package sockserver provides the socket-facing session server.
package sockserver

import (
	"net"
	"sync"

	"golang.org/x/time/rate"
)

// limiterPool hands out one token bucket per client IP. Entries are
// kept for the lifetime of the server; the set of distinct client IPs
// is bounded in the deployments this serves.
type limiterPool struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func newLimiterPool(limit float64, burst int) *limiterPool {
	return &limiterPool{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(limit),
		burst:    burst,
	}
}

// enabled reports whether rate limiting is configured at all.
func (p *limiterPool) enabled() bool {
	return p.limit > 0
}

// get returns the limiter for addr, keyed by host without port.
// Unix socket peers share a single bucket under the empty host.
func (p *limiterPool) get(addr net.Addr) *rate.Limiter {
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		host = addr.String()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	l, ok := p.limiters[host]
	if !ok {
		l = rate.NewLimiter(p.limit, p.burst)
		p.limiters[host] = l
	}
	return l
}

// allow reports whether a frame from addr may proceed.
func (p *limiterPool) allow(addr net.Addr) bool {
	if !p.enabled() {
		return true
	}
	return p.get(addr).Allow()
}
