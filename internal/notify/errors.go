package notify

import "errors"

// Sentinel errors for notification delivery.
var (
	// ErrClosed is returned when a notifier is used after it was released.
	ErrClosed = errors.New("notify: notifier closed")

	// ErrEmptyBatch is returned when Notify is called without any records.
	ErrEmptyBatch = errors.New("notify: empty batch")

	// ErrNoChannels is returned by a Fanout with no notifiers.
	ErrNoChannels = errors.New("notify: no notification channels configured")

	// ErrRender is returned when a message template fails to execute.
	ErrRender = errors.New("notify: rendering message failed")

	// ErrSendFailed is returned when the mail server rejects or cannot take the message.
	ErrSendFailed = errors.New("notify: sending mail failed")
)
