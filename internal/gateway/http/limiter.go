package http

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultWriteRPS   = 10
	defaultWriteBurst = 20

	limiterTTL     = 10 * time.Minute
	limiterCleanup = time.Minute
)

type limiterEntry struct {
	l        *rate.Limiter
	lastSeen time.Time
}

// limiterPool is a per-identity token bucket. Entries idle for longer than
// limiterTTL are evicted.
type limiterPool struct {
	mu    sync.Mutex
	m     map[string]*limiterEntry
	rps   rate.Limit
	burst int

	startCleanup sync.Once
	stop         chan struct{}
	stopOnce     sync.Once
}

func newLimiterPool(rps float64, burst int) *limiterPool {
	if rps <= 0 {
		rps = defaultWriteRPS
	}
	if burst <= 0 {
		burst = defaultWriteBurst
	}
	return &limiterPool{
		m:     make(map[string]*limiterEntry),
		rps:   rate.Limit(rps),
		burst: burst,
		stop:  make(chan struct{}),
	}
}

func (p *limiterPool) get(key string) *rate.Limiter {
	p.startCleanup.Do(func() { go p.cleanupLoop() })

	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.m[key]; ok {
		e.lastSeen = time.Now()
		return e.l
	}
	l := rate.NewLimiter(p.rps, p.burst)
	p.m[key] = &limiterEntry{l: l, lastSeen: time.Now()}
	return l
}

// Allow reports whether key may write now
func (p *limiterPool) Allow(key string) bool {
	return p.get(key).Allow()
}

// Stop ends the cleanup goroutine
func (p *limiterPool) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
}

func (p *limiterPool) cleanupLoop() {
	ticker := time.NewTicker(limiterCleanup)
	defer ticker.Stop()
	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.evict(time.Now().Add(-limiterTTL))
		}
	}
}

func (p *limiterPool) evict(cutoff time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for k, e := range p.m {
		if e.lastSeen.Before(cutoff) {
			delete(p.m, k)
		}
	}
}
