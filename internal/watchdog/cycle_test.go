package watchdog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/nerrad567/pm2-watchdog/internal/notify"
	"github.com/nerrad567/pm2-watchdog/internal/process"
)

// fakeInspector answers from a fixed table.
type fakeInspector struct {
	counts  map[string]int
	unknown map[string]bool
	fail    map[string]error
	asked   []string
}

func (f *fakeInspector) Describe(_ context.Context, name string) (process.Status, error) {
	f.asked = append(f.asked, name)
	if err, ok := f.fail[name]; ok {
		return process.Status{}, &process.InspectError{Name: name, Err: err}
	}
	if f.unknown[name] {
		return process.Status{Name: name}, nil
	}
	return process.Status{Name: name, Restarts: f.counts[name], Known: true}, nil
}

// fakeNotifier records every batch it is handed.
type fakeNotifier struct {
	batches [][]notify.Record
	err     error
}

func (f *fakeNotifier) Name() string { return "fake" }

func (f *fakeNotifier) Notify(_ context.Context, batch []notify.Record) (notify.Receipt, error) {
	f.batches = append(f.batches, append([]notify.Record(nil), batch...))
	if f.err != nil {
		return notify.Receipt{}, f.err
	}
	return notify.Receipt{Channel: "fake", Confirmation: "id-1"}, nil
}

type recordedPoint struct {
	process  string
	restarts int
	outcome  string
}

type fakeRecorder struct {
	points []recordedPoint
}

func (f *fakeRecorder) WriteRestartCount(name string, restarts int, outcome string) {
	f.points = append(f.points, recordedPoint{name, restarts, outcome})
}

// captureLogger keeps log messages for assertions.
type captureLogger struct {
	mu   sync.Mutex
	msgs []string
}

func (l *captureLogger) add(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msgs = append(l.msgs, level+": "+msg)
}

func (l *captureLogger) Debug(msg string, _ ...any) { l.add("DEBUG", msg) }
func (l *captureLogger) Info(msg string, _ ...any)  { l.add("INFO", msg) }
func (l *captureLogger) Warn(msg string, _ ...any)  { l.add("WARN", msg) }
func (l *captureLogger) Error(msg string, _ ...any) { l.add("ERROR", msg) }

func (l *captureLogger) contains(entry string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range l.msgs {
		if m == entry {
			return true
		}
	}
	return false
}

func newTestChecker(t *testing.T, names []string, inspector process.Inspector, notifier notify.Notifier) (*Checker, *captureLogger, *State) {
	t.Helper()

	logger := &captureLogger{}
	state := NewState()
	c, err := NewChecker(CheckerConfig{
		Processes: names,
		Threshold: Threshold{Max: 3, Policy: PolicyGreater},
		Inspector: inspector,
		Notifier:  notifier,
		State:     state,
		Logger:    logger,
	})
	if err != nil {
		t.Fatalf("NewChecker() error = %v", err)
	}
	return c, logger, state
}

func TestChecker_OneFlaggedOneHealthy(t *testing.T) {
	inspector := &fakeInspector{counts: map[string]int{"A": 5, "B": 2}}
	notifier := &fakeNotifier{}
	c, logger, state := newTestChecker(t, []string{"A", "B"}, inspector, notifier)

	if err := c.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}

	if len(notifier.batches) != 1 {
		t.Fatalf("Notify called %d times, want 1", len(notifier.batches))
	}
	want := []notify.Record{{Name: "A", Restarts: 5}}
	if fmt.Sprint(notifier.batches[0]) != fmt.Sprint(want) {
		t.Errorf("batch = %+v, want %+v", notifier.batches[0], want)
	}

	if !logger.contains("INFO: process healthy") {
		t.Error("healthy process B not logged")
	}
	if !logger.contains("INFO: notification sent") {
		t.Error("notification success not logged")
	}

	snap := state.Snapshot()
	if snap.LastCycle == nil || !snap.LastCycle.Notified {
		t.Fatalf("LastCycle = %+v, want notified", snap.LastCycle)
	}
	if got := snap.LastCycle.Results[1].Outcome; got != OutcomeHealthy {
		t.Errorf("B outcome = %q, want %q", got, OutcomeHealthy)
	}
	if snap.LastCycle.Receipt != "id-1" {
		t.Errorf("Receipt = %q, want %q", snap.LastCycle.Receipt, "id-1")
	}
}

func TestChecker_AllHealthyNoNotification(t *testing.T) {
	inspector := &fakeInspector{counts: map[string]int{"A": 3, "B": 0}}
	notifier := &fakeNotifier{}
	c, logger, _ := newTestChecker(t, []string{"A", "B"}, inspector, notifier)

	if err := c.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}

	if len(notifier.batches) != 0 {
		t.Errorf("Notify called %d times, want 0", len(notifier.batches))
	}
	if !logger.contains("INFO: no notification necessary") {
		t.Error("empty batch not logged")
	}
}

func TestChecker_SeveralFlaggedInConfiguredOrder(t *testing.T) {
	inspector := &fakeInspector{counts: map[string]int{"zeta": 9, "alpha": 4, "mid": 1, "omega": 7}}
	notifier := &fakeNotifier{}
	c, _, _ := newTestChecker(t, []string{"zeta", "alpha", "mid", "omega"}, inspector, notifier)

	if err := c.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}

	if len(notifier.batches) != 1 {
		t.Fatalf("Notify called %d times, want 1", len(notifier.batches))
	}
	want := []notify.Record{{Name: "zeta", Restarts: 9}, {Name: "alpha", Restarts: 4}, {Name: "omega", Restarts: 7}}
	if fmt.Sprint(notifier.batches[0]) != fmt.Sprint(want) {
		t.Errorf("batch = %+v, want %+v", notifier.batches[0], want)
	}
	if fmt.Sprint(inspector.asked) != fmt.Sprint([]string{"zeta", "alpha", "mid", "omega"}) {
		t.Errorf("inspection order = %v", inspector.asked)
	}
}

func TestChecker_InspectorFailureAbortsCycle(t *testing.T) {
	cause := errors.New("pm2 daemon not running")
	inspector := &fakeInspector{
		counts: map[string]int{"A": 10, "C": 10},
		fail:   map[string]error{"B": cause},
	}
	notifier := &fakeNotifier{}
	c, logger, state := newTestChecker(t, []string{"A", "B", "C"}, inspector, notifier)

	err := c.RunOnce(context.Background())

	var inspectErr *process.InspectError
	if !errors.As(err, &inspectErr) {
		t.Fatalf("RunOnce() error = %v, want *process.InspectError", err)
	}
	if inspectErr.Name != "B" {
		t.Errorf("InspectError.Name = %q, want %q", inspectErr.Name, "B")
	}
	if !errors.Is(err, cause) {
		t.Errorf("RunOnce() error does not wrap cause: %v", err)
	}
	if len(notifier.batches) != 0 {
		t.Errorf("Notify called %d times after inspector failure, want 0", len(notifier.batches))
	}
	if fmt.Sprint(inspector.asked) != "[A B]" {
		t.Errorf("processes inspected = %v, want [A B]", inspector.asked)
	}
	if !logger.contains("ERROR: process inspection failed") {
		t.Error("inspector failure not logged")
	}
	if snap := state.Snapshot(); snap.LastCycle == nil || snap.LastCycle.Error == "" {
		t.Errorf("LastCycle = %+v, want error recorded", snap.LastCycle)
	}
}

func TestChecker_PlainInspectorErrorIsWrapped(t *testing.T) {
	notifier := &fakeNotifier{}
	c, _, _ := newTestChecker(t, []string{"A"}, inspectorFunc(func(context.Context, string) (process.Status, error) {
		return process.Status{}, errors.New("boom")
	}), notifier)

	var inspectErr *process.InspectError
	if err := c.RunOnce(context.Background()); !errors.As(err, &inspectErr) || inspectErr.Name != "A" {
		t.Errorf("RunOnce() error = %v, want InspectError for A", err)
	}
}

type inspectorFunc func(ctx context.Context, name string) (process.Status, error)

func (f inspectorFunc) Describe(ctx context.Context, name string) (process.Status, error) {
	return f(ctx, name)
}

func TestChecker_NotificationFailureIsNotFatal(t *testing.T) {
	inspector := &fakeInspector{counts: map[string]int{"A": 5}}
	notifier := &fakeNotifier{err: errors.New("smtp: 421 service not available")}
	c, logger, state := newTestChecker(t, []string{"A"}, inspector, notifier)

	if err := c.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce() error = %v, want nil on notification failure", err)
	}
	if !logger.contains("ERROR: notification failed") {
		t.Error("notification failure not logged")
	}

	snap := state.Snapshot()
	if snap.LastCycle.Notified || snap.LastCycle.NotifyError == "" {
		t.Errorf("LastCycle = %+v, want notify error recorded", snap.LastCycle)
	}

	// Still over threshold, so the next cycle alerts again.
	notifier.err = nil
	if err := c.RunOnce(context.Background()); err != nil {
		t.Fatalf("second RunOnce() error = %v", err)
	}
	if len(notifier.batches) != 2 {
		t.Errorf("Notify called %d times over two cycles, want 2", len(notifier.batches))
	}
}

func TestChecker_PartialFanoutKeepsReceipt(t *testing.T) {
	inspector := &fakeInspector{counts: map[string]int{"A": 5}}
	mail := &fakeNotifier{err: errors.New("smtp: 421 service not available")}
	mqtt := &fakeNotifier{}
	c, logger, state := newTestChecker(t, []string{"A"}, inspector, notify.NewFanout(mail, mqtt))

	if err := c.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce() error = %v, want nil on partial delivery", err)
	}
	if len(mail.batches) != 1 || len(mqtt.batches) != 1 {
		t.Fatalf("batches = %d/%d, want one per channel", len(mail.batches), len(mqtt.batches))
	}
	if !logger.contains("ERROR: notification partly delivered") {
		t.Error("partial delivery not logged")
	}

	last := state.Snapshot().LastCycle
	if last.Notified {
		t.Error("Notified = true, want false when a channel failed")
	}
	if last.NotifyError == "" {
		t.Error("NotifyError empty, want the failed channel's error")
	}
	if last.Channel != "fake" || last.Receipt != "fake: id-1" {
		t.Errorf("Channel, Receipt = %q, %q, want the delivered channel's receipt", last.Channel, last.Receipt)
	}
}

func TestChecker_ProcessesReadableDuringCycle(t *testing.T) {
	inspector := &fakeInspector{counts: map[string]int{"A": 5, "B": 1}}
	c, _, _ := newTestChecker(t, []string{"A", "B"}, inspector, &fakeNotifier{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			_ = c.RunOnce(context.Background())
		}
	}()

	for {
		select {
		case <-done:
			procs := c.Processes()
			if procs[0].LastObservedRestarts != 5 || procs[1].LastObservedRestarts != 1 {
				t.Errorf("Processes() = %+v", procs)
			}
			return
		default:
			if procs := c.Processes(); len(procs) != 2 {
				t.Fatalf("Processes() = %+v, want 2 entries", procs)
			}
		}
	}
}

func TestChecker_UnknownProcessIsInconclusive(t *testing.T) {
	inspector := &fakeInspector{unknown: map[string]bool{"ghost": true}}
	notifier := &fakeNotifier{}
	recorder := &fakeRecorder{}
	logger := &captureLogger{}

	c, err := NewChecker(CheckerConfig{
		Processes: []string{"ghost"},
		Threshold: Threshold{Max: 3},
		Inspector: inspector,
		Notifier:  notifier,
		Recorder:  recorder,
		Logger:    logger,
	})
	if err != nil {
		t.Fatalf("NewChecker() error = %v", err)
	}

	if err := c.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if len(notifier.batches) != 0 {
		t.Error("inconclusive process triggered a notification")
	}
	if !logger.contains("WARN: restart count unavailable") {
		t.Error("inconclusive outcome not logged distinctly")
	}
	if len(recorder.points) != 0 {
		t.Errorf("recorded %d points for unknown count, want 0", len(recorder.points))
	}
}

func TestChecker_RecordsAndTracksLastObserved(t *testing.T) {
	inspector := &fakeInspector{counts: map[string]int{"A": 5, "B": 1}}
	recorder := &fakeRecorder{}

	c, err := NewChecker(CheckerConfig{
		Processes: []string{"A", "B"},
		Threshold: Threshold{Max: 3},
		Inspector: inspector,
		Notifier:  &fakeNotifier{},
		Recorder:  recorder,
	})
	if err != nil {
		t.Fatalf("NewChecker() error = %v", err)
	}

	if err := c.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}

	want := []recordedPoint{{"A", 5, "flagged"}, {"B", 1, "healthy"}}
	if fmt.Sprint(recorder.points) != fmt.Sprint(want) {
		t.Errorf("recorded = %+v, want %+v", recorder.points, want)
	}

	procs := c.Processes()
	if procs[0].LastObservedRestarts != 5 || procs[1].LastObservedRestarts != 1 {
		t.Errorf("Processes() = %+v", procs)
	}
}

func TestNewChecker_Validation(t *testing.T) {
	valid := CheckerConfig{
		Processes: []string{"A"},
		Threshold: Threshold{Max: 3},
		Inspector: &fakeInspector{},
		Notifier:  &fakeNotifier{},
	}

	tests := []struct {
		name    string
		modify  func(*CheckerConfig)
		wantErr error
	}{
		{"empty process list", func(c *CheckerConfig) { c.Processes = nil }, ErrNoProcesses},
		{"blank name", func(c *CheckerConfig) { c.Processes = []string{"A", " "} }, ErrEmptyProcessName},
		{"duplicate name", func(c *CheckerConfig) { c.Processes = []string{"A", "A"} }, ErrDuplicateProcess},
		{"no inspector", func(c *CheckerConfig) { c.Inspector = nil }, ErrNoInspector},
		{"no notifier", func(c *CheckerConfig) { c.Notifier = nil }, ErrNoNotifier},
		{"zero threshold", func(c *CheckerConfig) { c.Threshold.Max = 0 }, ErrInvalidThreshold},
		{"unknown policy", func(c *CheckerConfig) { c.Threshold.Policy = "sometimes" }, ErrUnknownPolicy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.modify(&cfg)
			if _, err := NewChecker(cfg); !errors.Is(err, tt.wantErr) {
				t.Errorf("NewChecker() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
