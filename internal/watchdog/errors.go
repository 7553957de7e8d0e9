package watchdog

import "errors"

// Domain-specific errors for the check loop.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNoProcesses is returned when a Checker is built without processes.
	ErrNoProcesses = errors.New("watchdog: no processes to monitor")

	// ErrDuplicateProcess is returned when a process name is listed twice.
	ErrDuplicateProcess = errors.New("watchdog: duplicate process name")

	// ErrEmptyProcessName is returned for a blank process name.
	ErrEmptyProcessName = errors.New("watchdog: empty process name")

	// ErrNoInspector is returned when a Checker has no inspector.
	ErrNoInspector = errors.New("watchdog: inspector is required")

	// ErrNoNotifier is returned when a Checker has no notifier.
	ErrNoNotifier = errors.New("watchdog: notifier is required")

	// ErrInvalidThreshold is returned for a non-positive restart threshold.
	ErrInvalidThreshold = errors.New("watchdog: threshold must be positive")

	// ErrUnknownPolicy is returned for an unrecognised threshold policy.
	ErrUnknownPolicy = errors.New("watchdog: unknown threshold policy")

	// ErrInvalidInterval is returned for a non-positive tick interval.
	ErrInvalidInterval = errors.New("watchdog: interval must be positive")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("watchdog: scheduler already started")
)
