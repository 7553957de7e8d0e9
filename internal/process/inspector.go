package process

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// defaultTimeout bounds a single pm2 query when PM2Config.Timeout is zero.
const defaultTimeout = 15 * time.Second

// Status is the supervisor's answer for one process at one point in time.
type Status struct {
	// Name is the pm2 process name that was queried.
	Name string

	// Restarts is the cumulative restart counter. Only meaningful when Known is true.
	Restarts int

	// Known is false when pm2 has no entry for the name or the entry carries
	// no restart counter.
	Known bool

	// State is pm2's own status string ("online", "errored", ...), if reported.
	State string
}

// Inspector answers restart-count queries for named processes.
type Inspector interface {
	Describe(ctx context.Context, name string) (Status, error)
}

// PM2Config configures a PM2Inspector.
type PM2Config struct {
	// Binary is the pm2 executable. Default: "pm2".
	Binary string

	// Home sets PM2_HOME for the child command when not empty.
	Home string

	// Timeout bounds each pm2 invocation. Default: 15s.
	Timeout time.Duration
}

// PM2Inspector queries pm2 through its CLI.
//
// Thread Safety:
//   - Describe may be called concurrently; each call runs its own command.
type PM2Inspector struct {
	config PM2Config
	runner Runner
	logger Logger
}

// NewPM2Inspector creates an inspector that shells out to pm2.
func NewPM2Inspector(cfg PM2Config) *PM2Inspector {
	if cfg.Binary == "" {
		cfg.Binary = "pm2"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}

	return &PM2Inspector{
		config: cfg,
		runner: ExecRunner{},
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the inspector.
func (i *PM2Inspector) SetLogger(logger Logger) {
	i.logger = logger
}

// SetRunner replaces the command runner. Used by tests.
func (i *PM2Inspector) SetRunner(runner Runner) {
	i.runner = runner
}

// pm2Entry is the subset of a `pm2 jlist` element the watchdog reads.
type pm2Entry struct {
	Name   string `json:"name"`
	PID    int    `json:"pid"`
	PM2Env struct {
		Status      string `json:"status"`
		RestartTime *int   `json:"restart_time"`
	} `json:"pm2_env"`
}

// Describe returns the restart count pm2 reports for name.
//
// A name pm2 does not know, or an entry without a restart counter, yields
// Status{Known: false} and a nil error. If pm2 runs the name in cluster mode
// the first instance listed is used.
//
// Returns:
//   - Status: The supervisor's answer
//   - error: *InspectError if pm2 could not be queried or its output decoded
func (i *PM2Inspector) Describe(ctx context.Context, name string) (Status, error) {
	entries, err := i.list(ctx)
	if err != nil {
		return Status{}, &InspectError{Name: name, Err: err}
	}

	status := Status{Name: name}
	for _, entry := range entries {
		if entry.Name != name {
			continue
		}
		status.State = entry.PM2Env.Status
		if entry.PM2Env.RestartTime != nil {
			status.Restarts = *entry.PM2Env.RestartTime
			status.Known = true
		}
		break
	}

	i.logger.Debug("pm2 describe",
		"process", name,
		"known", status.Known,
		"restarts", status.Restarts,
		"state", status.State,
	)

	return status, nil
}

// Ping verifies pm2 is reachable by listing its processes once.
func (i *PM2Inspector) Ping(ctx context.Context) error {
	entries, err := i.list(ctx)
	if err != nil {
		return fmt.Errorf("pm2 ping: %w", err)
	}
	i.logger.Debug("pm2 reachable", "processes", len(entries))
	return nil
}

// list runs `pm2 jlist` and decodes its output.
func (i *PM2Inspector) list(ctx context.Context) ([]pm2Entry, error) {
	runCtx, cancel := context.WithTimeout(ctx, i.config.Timeout)
	defer cancel()

	var env []string
	if i.config.Home != "" {
		env = []string{"PM2_HOME=" + i.config.Home}
	}

	out, err := i.runner.Run(runCtx, i.config.Binary, []string{"jlist"}, env)
	if err != nil {
		return nil, err
	}

	return decodeJList(out)
}

// decodeJList parses `pm2 jlist` output. pm2 may print banner or update
// notices before the JSON array, some of them starting with "[PM2]", so each
// line that opens with '[' is tried in turn until one decodes.
func decodeJList(out []byte) ([]pm2Entry, error) {
	var lastErr error
	for offset := 0; offset < len(out); {
		line := out[offset:]
		if end := bytes.IndexByte(line, '\n'); end >= 0 {
			line = line[:end+1]
		}

		if trimmed := bytes.TrimLeft(line, " \t\r"); len(trimmed) > 0 && trimmed[0] == '[' {
			start := offset + len(line) - len(trimmed)
			var entries []pm2Entry
			err := json.NewDecoder(bytes.NewReader(out[start:])).Decode(&entries)
			if err == nil {
				return entries, nil
			}
			lastErr = err
		}

		offset += len(line)
	}

	if lastErr == nil {
		return nil, fmt.Errorf("%w: no JSON array in output", ErrInvalidOutput)
	}
	return nil, fmt.Errorf("%w: %w", ErrInvalidOutput, lastErr)
}
