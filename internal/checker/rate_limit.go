package checker

import (
	"sync"
	"time"
)

// RateLimiter admits at most maxHits requests per client in any trailing
// window. Timestamps older than the window are dropped lazily on each call;
// rejected requests are never recorded.
type RateLimiter struct {
	mu           sync.Mutex
	maxHits      int
	window       time.Duration
	hitsByClient map[string][]time.Time
	maxClients   int
}

func NewRateLimiter(maxHits int, window time.Duration, maxClients int) *RateLimiter {
	if maxHits <= 0 {
		maxHits = 10
	}
	if window <= 0 {
		window = time.Minute
	}
	if maxClients <= 0 {
		maxClients = 5000
	}

	return &RateLimiter{
		maxHits:      maxHits,
		window:       window,
		hitsByClient: make(map[string][]time.Time),
		maxClients:   maxClients,
	}
}

func (l *RateLimiter) Allow(clientID string, now time.Time) (bool, time.Duration) {
	threshold := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	hits := l.hitsByClient[clientID]
	recent := make([]time.Time, 0, len(hits)+1)
	for _, hit := range hits {
		if hit.After(threshold) {
			recent = append(recent, hit)
		}
	}

	if len(recent) >= l.maxHits {
		retryAfter := recent[0].Add(l.window).Sub(now)
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
		l.hitsByClient[clientID] = recent
		return false, retryAfter
	}

	recent = append(recent, now)
	l.hitsByClient[clientID] = recent

	if len(l.hitsByClient) > l.maxClients {
		l.pruneLocked(threshold)
	}

	return true, 0
}

// PruneStale drops clients whose last hit fell out of the window and reports
// how many were removed. Allow prunes opportunistically; this exists for the
// maintenance endpoint.
func (l *RateLimiter) PruneStale(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pruneLocked(now.Add(-l.window))
}

func (l *RateLimiter) pruneLocked(threshold time.Time) int {
	pruned := 0
	for clientID, hits := range l.hitsByClient {
		if len(hits) == 0 || hits[len(hits)-1].Before(threshold) {
			delete(l.hitsByClient, clientID)
			pruned++
		}
	}
	return pruned
}
