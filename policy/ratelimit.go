package policy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter is satisfied by both rate limiter kinds this package provides.
// Acquire blocks (respecting ctx) until the caller may proceed, and reports
// how long it waited so the scheduler can emit rate.limit.wait when the
// wait is non-zero.
type Limiter interface {
	Acquire(ctx context.Context) (waited time.Duration, err error)
}

// TokenBucketLimiter wraps golang.org/x/time/rate, giving capacity/refill
// semantics a Reserve/Delay-based wait time the scheduler can report
// verbatim in its rate.limit.wait event.
type TokenBucketLimiter struct {
	limiter *rate.Limiter
}

// NewTokenBucketLimiter builds a token-bucket limiter with the given
// capacity (burst size) and refill rate (tokens/second).
func NewTokenBucketLimiter(capacity int, refillPerSecond float64) *TokenBucketLimiter {
	return &TokenBucketLimiter{limiter: rate.NewLimiter(rate.Limit(refillPerSecond), capacity)}
}

// Acquire reserves one token, sleeping for the reservation's delay if any.
func (l *TokenBucketLimiter) Acquire(ctx context.Context) (time.Duration, error) {
	reservation := l.limiter.ReserveN(time.Now(), 1)
	if !reservation.OK() {
		return 0, newErr(ErrRLPolicyParam, "", "rate limiter cannot satisfy a reservation of 1 token against its configured burst")
	}
	delay := reservation.Delay()
	if delay <= 0 {
		return 0, nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return delay, nil
	case <-ctx.Done():
		reservation.Cancel()
		return 0, ctx.Err()
	}
}

// FixedWindowLimiter admits up to Limit acquisitions per Window, resetting
// the counter at each window boundary. x/time/rate models only token-bucket
// refill, so this one is hand-rolled: it is the one rate-limiting strategy
// in this package with no equivalent in the example corpus (see DESIGN.md).
type FixedWindowLimiter struct {
	mu          sync.Mutex
	limit       int
	window      time.Duration
	windowStart time.Time
	count       int
	now         func() time.Time
}

// NewFixedWindowLimiter builds a fixed-window limiter admitting up to limit
// acquisitions per window.
func NewFixedWindowLimiter(limit int, window time.Duration) *FixedWindowLimiter {
	return &FixedWindowLimiter{limit: limit, window: window, now: time.Now}
}

// Acquire blocks until the current window has room, resetting and
// admitting immediately once a new window starts.
func (l *FixedWindowLimiter) Acquire(ctx context.Context) (time.Duration, error) {
	start := l.now()
	for {
		l.mu.Lock()
		now := l.now()
		if now.Sub(l.windowStart) >= l.window {
			l.windowStart = now
			l.count = 0
		}
		if l.count < l.limit {
			l.count++
			l.mu.Unlock()
			return now.Sub(start), nil
		}
		wait := l.window - now.Sub(l.windowStart)
		l.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return 0, ctx.Err()
		}
	}
}

// rawLimiterConfig is a parsed, not-yet-materialized limiter definition.
type rawLimiterConfig struct {
	kind            string
	capacity        int
	refillPerSecond float64
	window          time.Duration
}

// Manager owns every rate limiter instance for a run's policy config. It
// mirrors spec §4.6's two target maps (by node id, by provider id) plus a
// `shared_providers` indirection: several providers can be made to share
// one limiter instance by pointing at the same shared target name.
// Acquire(node_id, provider_id) consults the provider/shared layer first,
// then the node layer; either may be absent (spec §4.6 "Manager").
type Manager struct {
	mu sync.Mutex

	byNodeCfg     map[string]rawLimiterConfig
	byProviderCfg map[string]rawLimiterConfig
	sharedCfg     map[string]rawLimiterConfig
	sharedOf      map[string]string // provider_id -> shared target name

	byNode     map[string]Limiter
	byProvider map[string]Limiter
	shared     map[string]Limiter
}

// NewManager builds a rate limit manager from the document's
// `policies.rate_limits` block: sub-maps `by_node`, `by_provider`, `shared`
// (target name -> limiter config), and `shared_providers` (provider id ->
// target name).
func NewManager(cfg map[string]interface{}) (*Manager, error) {
	m := &Manager{
		byNodeCfg: make(map[string]rawLimiterConfig), byProviderCfg: make(map[string]rawLimiterConfig),
		sharedCfg: make(map[string]rawLimiterConfig), sharedOf: make(map[string]string),
		byNode: make(map[string]Limiter), byProvider: make(map[string]Limiter), shared: make(map[string]Limiter),
	}
	if cfg == nil {
		return m, nil
	}

	if err := loadLimiterGroup(cfg, "by_node", m.byNodeCfg); err != nil {
		return nil, err
	}
	if err := loadLimiterGroup(cfg, "by_provider", m.byProviderCfg); err != nil {
		return nil, err
	}
	if err := loadLimiterGroup(cfg, "shared", m.sharedCfg); err != nil {
		return nil, err
	}
	if rawSharedOf, ok := cfg["shared_providers"].(map[string]interface{}); ok {
		for providerID, target := range rawSharedOf {
			name, ok := target.(string)
			if !ok {
				return nil, newErr(ErrRLPolicyParam, "$/policies/rate_limits/shared_providers/"+providerID,
					"shared_providers entries must be strings")
			}
			m.sharedOf[providerID] = name
		}
	}
	return m, nil
}

func loadLimiterGroup(cfg map[string]interface{}, key string, into map[string]rawLimiterConfig) error {
	group, ok := cfg[key].(map[string]interface{})
	if !ok {
		return nil
	}
	for name, raw := range group {
		sub, ok := raw.(map[string]interface{})
		if !ok {
			return newErr(ErrRLPolicyParam, fmt.Sprintf("$/policies/rate_limits/%s/%s", key, name), "limiter config must be a mapping")
		}
		parsed, err := parseLimiterConfig(sub)
		if err != nil {
			return newErr(ErrRLPolicyParam, fmt.Sprintf("$/policies/rate_limits/%s/%s", key, name), "%v", err)
		}
		into[name] = parsed
	}
	return nil
}

// Acquire blocks until both applicable layers admit the caller, returning
// their combined wait time.
func (m *Manager) Acquire(ctx context.Context, nodeID, providerID string) (time.Duration, error) {
	var total time.Duration

	if l := m.providerLayer(providerID); l != nil {
		waited, err := l.Acquire(ctx)
		if err != nil {
			return total, err
		}
		total += waited
	}

	if l := m.nodeLayer(nodeID); l != nil {
		waited, err := l.Acquire(ctx)
		if err != nil {
			return total, err
		}
		total += waited
	}

	return total, nil
}

func (m *Manager) providerLayer(providerID string) Limiter {
	if providerID == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if target, ok := m.sharedOf[providerID]; ok {
		return m.materialize(m.shared, m.sharedCfg, target)
	}
	return m.materialize(m.byProvider, m.byProviderCfg, providerID)
}

func (m *Manager) nodeLayer(nodeID string) Limiter {
	if nodeID == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.materialize(m.byNode, m.byNodeCfg, nodeID)
}

// materialize lazily builds and caches the limiter for name, assuming the
// caller already holds m.mu.
func (m *Manager) materialize(cache map[string]Limiter, cfgs map[string]rawLimiterConfig, name string) Limiter {
	if l, ok := cache[name]; ok {
		return l
	}
	cfg, ok := cfgs[name]
	if !ok {
		return nil
	}
	var l Limiter
	if cfg.kind == "fixed_window" {
		l = NewFixedWindowLimiter(cfg.capacity, cfg.window)
	} else {
		l = NewTokenBucketLimiter(cfg.capacity, cfg.refillPerSecond)
	}
	cache[name] = l
	return l
}

func parseLimiterConfig(cfg map[string]interface{}) (rawLimiterConfig, error) {
	kind, err := stringField(cfg, "type", "token_bucket")
	if err != nil {
		return rawLimiterConfig{}, err
	}
	switch kind {
	case "token_bucket":
		capacity, err := intField(cfg, "capacity", 1)
		if err != nil {
			return rawLimiterConfig{}, err
		}
		refill, err := floatField(cfg, "refill_rate", 1)
		if err != nil {
			return rawLimiterConfig{}, err
		}
		if capacity < 1 || refill <= 0 {
			return rawLimiterConfig{}, &Error{Code: ErrRLPolicyParam, Message: "token_bucket requires capacity >= 1 and refill_rate > 0"}
		}
		return rawLimiterConfig{kind: kind, capacity: capacity, refillPerSecond: refill}, nil
	case "fixed_window":
		limit, err := intField(cfg, "limit", 1)
		if err != nil {
			return rawLimiterConfig{}, err
		}
		windowMS, err := intField(cfg, "window_ms", 1000)
		if err != nil {
			return rawLimiterConfig{}, err
		}
		if limit < 1 || windowMS < 1 {
			return rawLimiterConfig{}, &Error{Code: ErrRLPolicyParam, Message: "fixed_window requires limit >= 1 and window_ms >= 1"}
		}
		return rawLimiterConfig{kind: kind, capacity: limit, window: time.Duration(windowMS) * time.Millisecond}, nil
	default:
		return rawLimiterConfig{}, &Error{Code: ErrRLPolicyParam, Message: "unknown rate limiter type " + kind}
	}
}
