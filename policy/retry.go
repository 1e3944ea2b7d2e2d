package policy

import (
	"errors"
	"math/rand"
	"net"
	"strings"
	"time"
)

// Strategy names the backoff shape between retry attempts (spec §4.5).
type Strategy string

const (
	StrategyFixed       Strategy = "fixed"
	StrategyExponential Strategy = "exponential"
	StrategyJitter      Strategy = "jitter"
)

// RetryPolicy configures automatic retry of a node's component invocation.
// MaxAttempts counts the initial attempt, so 1 means "never retry".
type RetryPolicy struct {
	Strategy    Strategy
	MaxAttempts int
	Interval    time.Duration
	Jitter      time.Duration
}

// DelayForAttempt returns the backoff duration before the given 1-based
// retry attempt, per spec §4.5's three formulas.
func (p *RetryPolicy) DelayForAttempt(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	switch p.Strategy {
	case StrategyExponential:
		return p.Interval * time.Duration(1<<uint(attempt-1))
	case StrategyJitter:
		delay := p.Interval * time.Duration(attempt)
		if p.Jitter > 0 {
			delay += time.Duration(rand.Int63n(int64(p.Jitter)))
		}
		return delay
	default: // StrategyFixed
		return p.Interval
	}
}

// RetryConfig is the document's `policies.retry` block: a default policy
// applied to every node, and per-target overrides (node id) that take
// precedence.
type RetryConfig struct {
	Default   *RetryPolicy
	Overrides map[string]*RetryPolicy
}

// For returns the effective policy for a node id: its override if one is
// configured, otherwise the default.
func (c *RetryConfig) For(nodeID string) *RetryPolicy {
	if c == nil {
		return &RetryPolicy{MaxAttempts: 1, Strategy: StrategyFixed}
	}
	if p, ok := c.Overrides[nodeID]; ok {
		return p
	}
	return c.Default
}

// RetryConfigFromConfig parses the document's `policies.retry` block. An
// absent block yields a RetryConfig whose default never retries.
func RetryConfigFromConfig(cfg map[string]interface{}) (*RetryConfig, error) {
	if cfg == nil {
		return &RetryConfig{Default: &RetryPolicy{MaxAttempts: 1, Strategy: StrategyFixed}}, nil
	}

	defaultRaw, _ := cfg["default"].(map[string]interface{})
	def, err := parsePolicy(defaultRaw)
	if err != nil {
		return nil, newErr(ErrRetryPredicate, "$/policies/retry/default", "%v", err)
	}

	overrides := make(map[string]*RetryPolicy)
	if rawOverrides, ok := cfg["overrides"].(map[string]interface{}); ok {
		for target, raw := range rawOverrides {
			sub, ok := raw.(map[string]interface{})
			if !ok {
				return nil, newErr(ErrRetryPredicate, "$/policies/retry/overrides/"+target, "override must be a mapping")
			}
			p, err := parsePolicy(sub)
			if err != nil {
				return nil, newErr(ErrRetryPredicate, "$/policies/retry/overrides/"+target, "%v", err)
			}
			overrides[target] = p
		}
	}

	return &RetryConfig{Default: def, Overrides: overrides}, nil
}

func parsePolicy(cfg map[string]interface{}) (*RetryPolicy, error) {
	if cfg == nil {
		return &RetryPolicy{MaxAttempts: 1, Strategy: StrategyFixed}, nil
	}

	strategyName, err := stringField(cfg, "strategy", string(StrategyFixed))
	if err != nil {
		return nil, err
	}
	strategy := Strategy(strategyName)
	switch strategy {
	case StrategyFixed, StrategyExponential, StrategyJitter:
	default:
		return nil, &Error{Code: ErrRetryPredicate, Message: "unknown retry strategy " + strategyName}
	}

	maxAttempts, err := intField(cfg, "max_attempts", 1)
	if err != nil {
		return nil, err
	}
	if maxAttempts < 1 {
		return nil, &Error{Code: ErrRetryPredicate, Message: "max_attempts must be >= 1"}
	}

	intervalSec, err := floatField(cfg, "interval", 0)
	if err != nil {
		return nil, err
	}
	if intervalSec < 0 {
		return nil, &Error{Code: ErrRetryPredicate, Message: "interval must be >= 0"}
	}

	jitterSec, err := floatField(cfg, "jitter", 0)
	if err != nil {
		return nil, err
	}
	if jitterSec < 0 {
		return nil, &Error{Code: ErrRetryPredicate, Message: "jitter must be >= 0"}
	}

	return &RetryPolicy{
		Strategy:    strategy,
		MaxAttempts: maxAttempts,
		Interval:    time.Duration(intervalSec * float64(time.Second)),
		Jitter:      time.Duration(jitterSec * float64(time.Second)),
	}, nil
}

// CodedError is implemented by any error carrying a stable machine-readable
// code (ir.Error, registry.Error, graphdef.Error, policy.Error). It lets
// callers branch on Code across layers without caring which one produced
// it.
type CodedError interface {
	error
	ErrCode() string
}

// StatusError is implemented by component/provider errors that carry an
// HTTP-like numeric status code (e.g. a tool wrapping a non-2xx response).
type StatusError interface {
	Status() int
}

// Retryable reports whether err qualifies as transient under spec §4.5: a
// numeric status of 429 or in [500,600), a timeout/connection-reset class
// error, or a message containing "timeout", "temporarily", or "retry"
// (case-insensitive).
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if se, ok := err.(StatusError); ok {
		if se.Status() == 429 || (se.Status() >= 500 && se.Status() < 600) {
			return true
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, kw := range []string{"timeout", "temporarily", "retry", "connection reset"} {
		if strings.Contains(msg, kw) {
			return true
		}
	}
	return false
}
