package ratelimit

import (
	"math"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// KeyFunc picks the bucket a request is charged to.
type KeyFunc func(r *http.Request) string

// Limiter keeps one token bucket per key and drops buckets that have been
// idle for twice the cleanup interval.
type Limiter struct {
	mu         sync.Mutex
	buckets    map[string]*bucket
	rate       rate.Limit
	burst      int
	maxEntries int
	key        KeyFunc
	stop       chan struct{}
	stopOnce   sync.Once
	now        func() time.Time
}

type bucket struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// New returns a Limiter allowing r requests per second with the given burst.
// A cleanup of zero disables the background sweeper.
func New(r rate.Limit, burst int, cleanup time.Duration, key KeyFunc) *Limiter {
	l := &Limiter{
		buckets:    make(map[string]*bucket),
		rate:       r,
		burst:      burst,
		maxEntries: 10000,
		key:        key,
		stop:       make(chan struct{}),
		now:        time.Now,
	}
	if cleanup > 0 {
		go l.sweep(cleanup)
	}
	return l
}

// Close stops the background sweeper.
func (l *Limiter) Close() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *Limiter) bucketFor(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		if len(l.buckets) >= l.maxEntries {
			l.evictOldest()
		}
		b = &bucket{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.buckets[key] = b
	}
	b.lastAccess = now
	return b.limiter
}

func (l *Limiter) evictOldest() {
	var (
		oldestKey  string
		oldestTime time.Time
	)
	for k, b := range l.buckets {
		if oldestKey == "" || b.lastAccess.Before(oldestTime) {
			oldestKey, oldestTime = k, b.lastAccess
		}
	}
	delete(l.buckets, oldestKey)
}

func (l *Limiter) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.mu.Lock()
			cutoff := l.now().Add(-2 * interval)
			for k, b := range l.buckets {
				if b.lastAccess.Before(cutoff) {
					delete(l.buckets, k)
				}
			}
			l.mu.Unlock()
		}
	}
}

// Middleware rejects requests over the limit with 429 and a Retry-After hint.
func (l *Limiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := l.bucketFor(l.key(r)).ReserveN(l.now(), 1)
			if delay := res.DelayFrom(l.now()); !res.OK() || delay > 0 {
				res.Cancel()
				secs := int(math.Ceil(delay.Seconds()))
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ByClientIP keys requests by client address. X-Forwarded-For and X-Real-IP
// are honoured only when the peer is one of trustedProxies (IPs or CIDRs); an
// empty list trusts every peer.
func ByClientIP(trustedProxies []string) KeyFunc {
	var trusted []netip.Prefix
	for _, entry := range trustedProxies {
		entry = strings.TrimSpace(entry)
		if p, err := netip.ParsePrefix(entry); err == nil {
			trusted = append(trusted, p.Masked())
			continue
		}
		if a, err := netip.ParseAddr(entry); err == nil {
			trusted = append(trusted, netip.PrefixFrom(a, a.BitLen()))
		}
	}

	return func(r *http.Request) string {
		peer := parseAddr(r.RemoteAddr)
		if len(trusted) > 0 && !containsAddr(trusted, peer) {
			return peer.String()
		}
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if a, err := netip.ParseAddr(strings.TrimSpace(first)); err == nil {
				return a.String()
			}
		}
		if a, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
			return a.String()
		}
		return peer.String()
	}
}

func containsAddr(prefixes []netip.Prefix, a netip.Addr) bool {
	for _, p := range prefixes {
		if p.Contains(a) {
			return true
		}
	}
	return false
}

func parseAddr(addr string) netip.Addr {
	if ap, err := netip.ParseAddrPort(addr); err == nil {
		return ap.Addr().Unmap()
	}
	a, _ := netip.ParseAddr(addr)
	return a.Unmap()
}
