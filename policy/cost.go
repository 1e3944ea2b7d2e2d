package policy

import "sync"

// CostLimiter enforces a per-run token budget. It is applied at llm.call
// emission time, not at node completion (spec §4.7): the moment a
// component reports tokens spent is the moment the limiter can trip,
// rather than waiting for the whole node to finish.
type CostLimiter struct {
	maxTokens int

	mu     sync.Mutex
	spent  map[string]int // run_id -> tokens spent so far
}

// NewCostLimiter builds a limiter from the document's `policies.cost`
// block, which carries a single `per_run_tokens` integer (spec §4.8). A
// zero or absent value means unlimited.
func NewCostLimiter(cfg map[string]interface{}) (*CostLimiter, error) {
	if cfg == nil {
		return &CostLimiter{spent: map[string]int{}}, nil
	}
	maxTokens, err := intField(cfg, "per_run_tokens", 0)
	if err != nil {
		return nil, newErr(ErrRLPolicyParam, "$/policies/cost/per_run_tokens", "%v", err)
	}
	return &CostLimiter{maxTokens: maxTokens, spent: map[string]int{}}, nil
}

// Charge records tokensIn+tokensOut against runID's running total. If the
// limit configured is positive and the new total exceeds it, it returns
// ERR_COST_LIMIT_EXCEEDED; the caller (the scheduler) is responsible for
// treating that as a node/run failure.
func (c *CostLimiter) Charge(runID string, tokensIn, tokensOut int) error {
	if c.maxTokens <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.spent[runID] += tokensIn + tokensOut
	if c.spent[runID] > c.maxTokens {
		return newErr(ErrCostLimitExceeded, "", "run %s spent %d tokens, exceeding limit of %d", runID, c.spent[runID], c.maxTokens)
	}
	return nil
}

// Spent returns the running token total for a run, for telemetry.
func (c *CostLimiter) Spent(runID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.spent[runID]
}

// Forget releases a run's accumulator, called once the run reaches
// teardown.
func (c *CostLimiter) Forget(runID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.spent, runID)
}
