package ratelimit

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Window bounds admissions for one key: at most Limit within any rolling Period.
type Window struct {
	Name   string
	Limit  int
	Period time.Duration
}

// Decision is the outcome of a single admission attempt.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// RetryAfterSeconds rounds the retry hint up to whole seconds, never below one.
func (d Decision) RetryAfterSeconds() int {
	if d.Allowed {
		return 0
	}
	secs := int((d.RetryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

// Admission is what a Store reports back for a key.
type Admission struct {
	Admitted bool
	// Count is the number of admissions inside the window after this attempt.
	Count int
	// Oldest is the timestamp of the oldest admission still inside the window.
	Oldest time.Time
}

// Store records admissions per key. Implementations must only record admitted attempts.
type Store interface {
	Admit(ctx context.Context, key string, limit int, period time.Duration, now time.Time) (Admission, error)
}

// Limiter decides whether a key may proceed within a window.
type Limiter interface {
	Allow(ctx context.Context, key string, window Window) (Decision, error)
}

type limiter struct {
	store Store
	now   func() time.Time
	log   zerolog.Logger
}

// NewLimiter builds a sliding-window limiter over the given store.
func NewLimiter(store Store, log zerolog.Logger) Limiter {
	return &limiter{
		store: store,
		now:   time.Now,
		log:   log.With().Str("component", "rate-limiter").Logger(),
	}
}

func (l *limiter) Allow(ctx context.Context, key string, window Window) (Decision, error) {
	if window.Limit <= 0 || window.Period <= 0 {
		return Decision{Allowed: true}, nil
	}

	now := l.now()
	admission, err := l.store.Admit(ctx, storeKey(window, key), window.Limit, window.Period, now)
	if err != nil {
		// fail open: a broken store must not take the chat down
		l.log.Warn().Err(err).Str("window", window.Name).Msg("rate limit store unavailable, admitting request")
		return Decision{Allowed: true, Limit: window.Limit, Remaining: window.Limit}, nil
	}

	decision := Decision{
		Allowed:   admission.Admitted,
		Limit:     window.Limit,
		Remaining: window.Limit - admission.Count,
	}
	if decision.Remaining < 0 {
		decision.Remaining = 0
	}
	if !admission.Admitted {
		decision.RetryAfter = admission.Oldest.Add(window.Period).Sub(now)
		if decision.RetryAfter < 0 {
			decision.RetryAfter = 0
		}
	}
	return decision, nil
}

func storeKey(window Window, key string) string {
	return window.Name + "|" + key
}

// IdentityKey keys by email when known, falling back to the client address.
func IdentityKey(email, remoteAddr string) string {
	if email = strings.ToLower(strings.TrimSpace(email)); email != "" {
		return "email:" + email
	}
	if ip := normalizeIP(remoteAddr); ip != "" {
		return "ip:" + ip
	}
	return "anonymous"
}

// Normalize IPv6-mapped IPv4 etc.
func normalizeIP(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(raw); err == nil {
		raw = host
	}
	if ip := net.ParseIP(raw); ip != nil {
		return ip.String()
	}
	return raw
}
