// Package notify delivers restart alerts.
//
// A check cycle hands every process it flagged to a single Notifier call.
// The package provides:
//   - Mailer: renders the alert with text/template (sprig functions
//     available) and sends it over SMTP
//   - MQTTNotifier: publishes the alert as JSON to a broker topic
//   - Fanout: delivers one alert through several notifiers
//
// Delivery is best effort. Notifiers never retry; a process that is still
// over its threshold is reported again by the next cycle.
package notify
