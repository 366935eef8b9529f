// Package ratelimit implements fixed-window request throttling keyed by
// caller-supplied strings (IP, email, route). Buckets live in a pluggable
// store so a single-process deployment can keep them in memory while a
// multi-replica deployment shares them through Redis.
package ratelimit

import (
	"context"
	"strings"
	"time"
)

// Result reports the outcome of one Check call.
type Result struct {
	Allowed   bool
	Remaining int
	ResetIn   time.Duration
}

// ResetSeconds rounds ResetIn up to whole seconds for Retry-After and
// client display. Never less than 1 while a wait is in effect.
func (r Result) ResetSeconds() int {
	secs := int((r.ResetIn + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

// Policy is a route-specific throttle: at most Max requests per Window.
type Policy struct {
	Window time.Duration
	Max    int
}

// Store holds the counters. Take must be atomic per key: if the bucket is
// absent or expired it starts a fresh window; if the count has reached max
// it must NOT increment and reports admitted=false with the time left in
// the window; otherwise it increments and reports the new count.
type Store interface {
	Take(ctx context.Context, key string, window time.Duration, max int) (admitted bool, count int, resetIn time.Duration, err error)
}

// Limiter applies a Policy to keys through a Store.
type Limiter struct {
	store Store
}

// New creates a Limiter over the given store.
func New(store Store) *Limiter {
	return &Limiter{store: store}
}

// Check consumes one request slot for key if the policy allows it.
func (l *Limiter) Check(ctx context.Context, key string, p Policy) (Result, error) {
	admitted, count, resetIn, err := l.store.Take(ctx, key, p.Window, p.Max)
	if err != nil {
		return Result{}, err
	}
	remaining := p.Max - count
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   admitted,
		Remaining: remaining,
		ResetIn:   resetIn,
	}, nil
}

// Key builds a bucket key from an action name and its identifying parts,
// e.g. Key("login", ip, email).
func Key(action string, parts ...string) string {
	b := strings.Builder{}
	b.WriteString("ratelimit:")
	b.WriteString(action)
	for _, p := range parts {
		b.WriteByte(':')
		b.WriteString(strings.ToLower(strings.TrimSpace(p)))
	}
	return b.String()
}
