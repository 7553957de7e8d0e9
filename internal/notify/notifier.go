package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Record describes one flagged process in an alert.
type Record struct {
	Name     string `json:"name"`
	Restarts int    `json:"restarts"`
}

// Receipt is the transport's confirmation of a delivered alert.
type Receipt struct {
	// Channel names the transport(s) that accepted the alert.
	Channel string

	// Confirmation is transport-specific detail (message id, topic, ...).
	Confirmation string
}

// Notifier delivers one alert covering a batch of flagged processes.
//
// Notify is called at most once per check cycle with the complete batch.
// Implementations do not retry; a failed alert is re-raised by the next
// cycle if the processes are still over threshold.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, batch []Record) (Receipt, error)
}

// Fanout delivers each alert through every configured notifier in order.
//
// From the caller's point of view it is still a single notification call.
// A failing channel does not stop the remaining ones.
type Fanout struct {
	notifiers []Notifier
}

// NewFanout creates a Fanout over the given notifiers.
func NewFanout(notifiers ...Notifier) *Fanout {
	return &Fanout{notifiers: notifiers}
}

// Name implements Notifier.
func (f *Fanout) Name() string {
	names := make([]string, 0, len(f.notifiers))
	for _, n := range f.notifiers {
		names = append(names, n.Name())
	}
	return strings.Join(names, "+")
}

// Notify sends batch through every notifier.
//
// Returns:
//   - Receipt: Channels and confirmations of the notifiers that succeeded
//   - error: All failures joined, or nil if every channel succeeded
func (f *Fanout) Notify(ctx context.Context, batch []Record) (Receipt, error) {
	if len(f.notifiers) == 0 {
		return Receipt{}, ErrNoChannels
	}

	var (
		channels      []string
		confirmations []string
		errs          []error
	)

	for _, n := range f.notifiers {
		receipt, err := n.Notify(ctx, batch)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
			continue
		}
		channels = append(channels, receipt.Channel)
		confirmations = append(confirmations, fmt.Sprintf("%s: %s", receipt.Channel, receipt.Confirmation))
	}

	return Receipt{
		Channel:      strings.Join(channels, "+"),
		Confirmation: strings.Join(confirmations, "; "),
	}, errors.Join(errs...)
}
