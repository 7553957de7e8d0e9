package watchdog

import (
	"fmt"

	"github.com/nerrad567/pm2-watchdog/internal/process"
)

// Policy selects how a restart count is compared with the threshold.
type Policy string

const (
	// PolicyGreater flags a process once its count is above the threshold.
	PolicyGreater Policy = "greater"

	// PolicyGreaterOrEqual flags a process once its count reaches the threshold.
	PolicyGreaterOrEqual Policy = "greater_or_equal"
)

// ParsePolicy converts a configuration value into a Policy.
// An empty string selects PolicyGreater.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyGreater:
		return PolicyGreater, nil
	case PolicyGreaterOrEqual:
		return PolicyGreaterOrEqual, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
	}
}

// Outcome classifies one process in one cycle.
type Outcome string

const (
	OutcomeFlagged      Outcome = "flagged"
	OutcomeHealthy      Outcome = "healthy"
	OutcomeInconclusive Outcome = "inconclusive"
)

// Decision is the result of comparing one Status against a Threshold.
type Decision struct {
	Exceeds bool
	Outcome Outcome
}

// Threshold is the restart limit applied to every monitored process.
type Threshold struct {
	Max    int
	Policy Policy
}

// Evaluate decides whether status is over the threshold.
//
// A status without a known restart count is never flagged; it is
// reported as OutcomeInconclusive. Evaluate has no side effects.
func (t Threshold) Evaluate(status process.Status) Decision {
	if !status.Known {
		return Decision{Outcome: OutcomeInconclusive}
	}

	var exceeds bool
	switch t.Policy {
	case PolicyGreaterOrEqual:
		exceeds = status.Restarts >= t.Max
	default:
		exceeds = status.Restarts > t.Max
	}

	if exceeds {
		return Decision{Exceeds: true, Outcome: OutcomeFlagged}
	}
	return Decision{Outcome: OutcomeHealthy}
}
