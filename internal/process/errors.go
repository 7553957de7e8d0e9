package process

import (
	"errors"
	"fmt"
)

// Domain-specific errors for process inspection.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrCommandFailed is returned when the pm2 command exits non-zero or cannot start.
	ErrCommandFailed = errors.New("process: pm2 command failed")

	// ErrTimeout is returned when the pm2 command does not finish within its deadline.
	ErrTimeout = errors.New("process: pm2 command timed out")

	// ErrInvalidOutput is returned when pm2 output cannot be decoded.
	ErrInvalidOutput = errors.New("process: invalid pm2 output")
)

// InspectError reports that the supervisor could not answer for a process.
type InspectError struct {
	Name string
	Err  error
}

func (e *InspectError) Error() string {
	return fmt.Sprintf("inspecting process %q: %v", e.Name, e.Err)
}

func (e *InspectError) Unwrap() error {
	return e.Err
}
