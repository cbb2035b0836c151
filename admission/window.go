package admission

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// WindowLimiter enforces a per-client budget of cost units per sliding window.
type WindowLimiter struct {
	unitsPerWindow int
	window         time.Duration
	mu             sync.Mutex
	clients        map[string][]charge
	timeNow        func() time.Time // Injectable for testing
	lastSweep      time.Time
}

type charge struct {
	at    time.Time
	units int
}

// NewWindowLimiter creates a limiter allowing unitsPerMinute per client with real time
func NewWindowLimiter(unitsPerMinute int) *WindowLimiter {
	return NewWindowLimiterWithClock(unitsPerMinute, time.Now)
}

// NewWindowLimiterWithClock creates a limiter with injectable clock (for testing)
func NewWindowLimiterWithClock(unitsPerMinute int, timeNow func() time.Time) *WindowLimiter {
	return &WindowLimiter{
		unitsPerWindow: unitsPerMinute,
		window:         60 * time.Second, // 1 minute window
		clients:        make(map[string][]charge),
		timeNow:        timeNow,
	}
}

// Evaluate implements Gate
func (l *WindowLimiter) Evaluate(_ context.Context, req Request, cost int) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.timeNow()
	l.sweep(now)

	charges := removeExpired(l.clients[req.ClientKey], now.Add(-l.window))
	used := 0
	for _, c := range charges {
		used += c.units
	}

	if used+cost > l.unitsPerWindow {
		l.clients[req.ClientKey] = charges
		return Deny(fmt.Sprintf("rate limit exceeded: %d+%d units per minute (limit: %d)",
			used, cost, l.unitsPerWindow)), nil
	}

	l.clients[req.ClientKey] = append(charges, charge{at: now, units: cost})
	return Allowed, nil
}

// sweep drops idle clients once per window so the map does not grow without bound.
// Must be called with lock held
func (l *WindowLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.window {
		return
	}
	l.lastSweep = now
	cutoff := now.Add(-l.window)
	for key, charges := range l.clients {
		if len(removeExpired(charges, cutoff)) == 0 {
			delete(l.clients, key)
		}
	}
}

// removeExpired drops charges at or before cutoff (charges are ordered)
func removeExpired(charges []charge, cutoff time.Time) []charge {
	expired := 0
	for _, c := range charges {
		if !c.at.After(cutoff) {
			expired++
		} else {
			break
		}
	}
	return charges[expired:]
}
