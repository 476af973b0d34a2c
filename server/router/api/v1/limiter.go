package v1

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	limiterIdleTTL       = 10 * time.Minute
	limiterCleanupPeriod = time.Minute
)

type limiterEntry struct {
	l        *rate.Limiter
	lastSeen time.Time
}

// limiterPool is a per-client token bucket pool. Buckets idle for longer than
// limiterIdleTTL are dropped.
type limiterPool struct {
	mu           sync.Mutex
	m            map[string]*limiterEntry
	limit        rate.Limit
	burst        int
	startCleanup sync.Once
	stop         chan struct{}
	stopOnce     sync.Once
}

// newLimiterPool allows perMinute requests per minute per key. A nil pool
// allows everything.
func newLimiterPool(perMinute int) *limiterPool {
	if perMinute <= 0 {
		return nil
	}
	return &limiterPool{
		m:     map[string]*limiterEntry{},
		limit: rate.Every(time.Minute / time.Duration(perMinute)),
		burst: perMinute,
		stop:  make(chan struct{}),
	}
}

func (p *limiterPool) get(key string) *rate.Limiter {
	p.startCleanup.Do(func() {
		go p.cleanupLoop()
	})

	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.m[key]; ok {
		e.lastSeen = time.Now()
		return e.l
	}
	l := rate.NewLimiter(p.limit, p.burst)
	p.m[key] = &limiterEntry{l: l, lastSeen: time.Now()}
	return l
}

// Allow reports whether a request for key may proceed now.
func (p *limiterPool) Allow(key string) bool {
	if p == nil {
		return true
	}
	return p.get(key).Allow()
}

func (p *limiterPool) Close() {
	if p == nil {
		return
	}
	p.stopOnce.Do(func() {
		close(p.stop)
	})
}

func (p *limiterPool) cleanupLoop() {
	ticker := time.NewTicker(limiterCleanupPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			cutoff := time.Now().Add(-limiterIdleTTL)
			p.mu.Lock()
			for k, e := range p.m {
				if e.lastSeen.Before(cutoff) {
					delete(p.m, k)
				}
			}
			p.mu.Unlock()
		case <-p.stop:
			return
		}
	}
}
