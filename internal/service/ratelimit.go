package service

import (
	"sync"
	"time"

	apperrors "go-image-transcriber/internal/errors"
)

// RateDecision is the outcome of a credit check.
type RateDecision struct {
	Allowed       bool      `json:"allowed"`
	Remaining     int       `json:"remaining"`
	NextAvailable time.Time `json:"next_available,omitempty"`
}

// RateLimiter grants per-user request credits: a daily cap plus a minimum
// delay between consecutive requests. State is in-process only.
type RateLimiter struct {
	mu       sync.Mutex
	dailyCap int
	minDelay time.Duration
	now      func() time.Time

	usage map[string]*userUsage
}

type userUsage struct {
	day      string
	count    int
	lastSeen time.Time
}

// NewRateLimiter creates a limiter with the given daily cap and minimum
// inter-request delay.
func NewRateLimiter(dailyCap int, minDelay time.Duration) *RateLimiter {
	return &RateLimiter{
		dailyCap: dailyCap,
		minDelay: minDelay,
		now:      time.Now,
		usage:    make(map[string]*userUsage),
	}
}

// Check consumes one credit for the user if allowed. The decision carries the
// remaining credits and, when denied, when the next request becomes possible.
func (l *RateLimiter) Check(userID string) RateDecision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now().UTC()
	today := now.Format("2006-01-02")

	u, ok := l.usage[userID]
	if !ok || u.day != today {
		u = &userUsage{day: today}
		l.usage[userID] = u
	}

	if u.count >= l.dailyCap {
		// Credits reset at midnight UTC.
		midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
		return RateDecision{Allowed: false, Remaining: 0, NextAvailable: midnight}
	}

	if u.count > 0 && now.Sub(u.lastSeen) < l.minDelay {
		return RateDecision{
			Allowed:       false,
			Remaining:     l.dailyCap - u.count,
			NextAvailable: u.lastSeen.Add(l.minDelay),
		}
	}

	u.count++
	u.lastSeen = now
	return RateDecision{Allowed: true, Remaining: l.dailyCap - u.count}
}

// Err converts a denied decision into the rate-limit application error.
func (d RateDecision) Err() error {
	if d.Allowed {
		return nil
	}
	err := apperrors.NewRateLimitError("request credits exhausted, try again later")
	err.Details = "next available at " + d.NextAvailable.Format(time.RFC3339)
	return err
}
