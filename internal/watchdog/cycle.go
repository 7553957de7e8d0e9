package watchdog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/pm2-watchdog/internal/notify"
	"github.com/nerrad567/pm2-watchdog/internal/process"
)

// Logger defines the logging interface for the check loop.
// Satisfied by *logging.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Recorder receives every known restart count a cycle observes.
// Satisfied by *influxdb.Client.
type Recorder interface {
	WriteRestartCount(process string, restarts int, outcome string)
}

// MonitoredProcess is one configured process and the last restart count
// the watchdog saw for it.
type MonitoredProcess struct {
	Name                 string `json:"name"`
	LastObservedRestarts int    `json:"last_observed_restarts"`
}

// CheckerConfig holds the collaborators of a Checker.
type CheckerConfig struct {
	// Processes lists the pm2 process names to check, in check order.
	Processes []string

	// Threshold is applied to every process.
	Threshold Threshold

	// Inspector answers restart-count queries. Required.
	Inspector process.Inspector

	// Notifier receives the flagged batch. Required.
	Notifier notify.Notifier

	// Recorder exports observed counts. Optional.
	Recorder Recorder

	// State records cycle summaries for the status API. Optional.
	State *State

	// Logger receives cycle progress. Optional.
	Logger Logger
}

// Checker runs one check cycle over all monitored processes.
//
// Thread Safety:
//   - RunOnce must not be called concurrently with itself; the Scheduler
//     guarantees this.
//   - Processes may be called at any time.
type Checker struct {
	inspector process.Inspector
	notifier  notify.Notifier
	threshold Threshold
	recorder  Recorder
	state     *State
	logger    Logger
	now       func() time.Time

	mu        sync.RWMutex
	processes []MonitoredProcess
}

// NewChecker validates cfg and creates a Checker.
//
// Returns:
//   - *Checker: Ready to run cycles
//   - error: If the process list is empty, contains blanks or duplicates,
//     the threshold is not positive, or a required collaborator is missing
func NewChecker(cfg CheckerConfig) (*Checker, error) {
	if len(cfg.Processes) == 0 {
		return nil, ErrNoProcesses
	}
	if cfg.Inspector == nil {
		return nil, ErrNoInspector
	}
	if cfg.Notifier == nil {
		return nil, ErrNoNotifier
	}
	if cfg.Threshold.Max <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidThreshold, cfg.Threshold.Max)
	}
	if _, err := ParsePolicy(string(cfg.Threshold.Policy)); err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(cfg.Processes))
	processes := make([]MonitoredProcess, 0, len(cfg.Processes))
	for _, name := range cfg.Processes {
		if strings.TrimSpace(name) == "" {
			return nil, ErrEmptyProcessName
		}
		if seen[name] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateProcess, name)
		}
		seen[name] = true
		processes = append(processes, MonitoredProcess{Name: name})
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	return &Checker{
		inspector: cfg.Inspector,
		notifier:  cfg.Notifier,
		threshold: cfg.Threshold,
		recorder:  cfg.Recorder,
		state:     cfg.State,
		logger:    logger,
		now:       time.Now,
		processes: processes,
	}, nil
}

// Processes returns a copy of the monitored processes in check order.
func (c *Checker) Processes() []MonitoredProcess {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return append([]MonitoredProcess(nil), c.processes...)
}

// RunOnce checks every process in configured order and sends at most one
// notification covering all flagged processes.
//
// An inspector failure aborts the cycle before any notification and is
// returned; the caller treats it as fatal. A notification failure is only
// logged.
//
// Returns:
//   - error: *process.InspectError if a process could not be inspected
func (c *Checker) RunOnce(ctx context.Context) error {
	summary := CycleSummary{
		StartedAt: c.now(),
		Results:   make([]ProcessResult, 0, len(c.processes)),
	}
	c.logger.Info("check cycle started", "processes", len(c.processes))

	var batch []notify.Record

	for i := range c.processes {
		name := c.processes[i].Name

		status, err := c.inspector.Describe(ctx, name)
		if err != nil {
			inspectErr := asInspectError(name, err)
			c.logger.Error("process inspection failed", "process", name, "error", inspectErr.Err)
			summary.Error = inspectErr.Error()
			c.finish(summary)
			return inspectErr
		}

		decision := c.threshold.Evaluate(status)
		summary.Results = append(summary.Results, ProcessResult{
			Name:     name,
			Restarts: status.Restarts,
			Known:    status.Known,
			Outcome:  decision.Outcome,
		})

		if status.Known {
			c.mu.Lock()
			c.processes[i].LastObservedRestarts = status.Restarts
			c.mu.Unlock()

			if c.recorder != nil {
				c.recorder.WriteRestartCount(name, status.Restarts, string(decision.Outcome))
			}
		}

		switch decision.Outcome {
		case OutcomeFlagged:
			batch = append(batch, notify.Record{Name: name, Restarts: status.Restarts})
			c.logger.Warn("process over restart threshold",
				"process", name, "restarts", status.Restarts, "max_restarts", c.threshold.Max)
		case OutcomeInconclusive:
			c.logger.Warn("restart count unavailable", "process", name, "outcome", decision.Outcome)
		default:
			c.logger.Info("process healthy", "process", name, "restarts", status.Restarts)
		}
	}

	if len(batch) == 0 {
		c.logger.Info("no notification necessary")
		c.finish(summary)
		return nil
	}

	// A fan-out can fail on some channels and still return the receipt of
	// those that delivered.
	receipt, err := c.notifier.Notify(ctx, batch)
	summary.Notified = err == nil
	summary.Channel = receipt.Channel
	summary.Receipt = receipt.Confirmation
	switch {
	case err != nil && receipt.Channel != "":
		summary.NotifyError = err.Error()
		c.logger.Error("notification partly delivered",
			"processes", len(batch),
			"channel", receipt.Channel,
			"confirmation", receipt.Confirmation,
			"error", err,
		)
	case err != nil:
		summary.NotifyError = err.Error()
		c.logger.Error("notification failed", "processes", len(batch), "error", err)
	default:
		c.logger.Info("notification sent",
			"processes", len(batch),
			"channel", receipt.Channel,
			"confirmation", receipt.Confirmation,
		)
	}

	c.finish(summary)
	return nil
}

func (c *Checker) finish(summary CycleSummary) {
	summary.FinishedAt = c.now()
	if c.state != nil {
		c.state.recordCycle(summary)
	}
}

// asInspectError makes sure a failure carries the process name.
func asInspectError(name string, err error) *process.InspectError {
	var ie *process.InspectError
	if errors.As(err, &ie) {
		return ie
	}
	return &process.InspectError{Name: name, Err: err}
}
