package mqtt

// DefaultTopicPrefix is used when the configuration leaves topic_prefix empty.
const DefaultTopicPrefix = "pm2-watchdog"

// Topics builds the watchdog's MQTT topic names under a common prefix.
//
//	topics := mqtt.NewTopics("watchdog/web-01")
//	topics.Alert()  // "watchdog/web-01/alert"
//	topics.Status() // "watchdog/web-01/status"
type Topics struct {
	Prefix string
}

// NewTopics returns topic builders rooted at prefix.
// Trailing slashes are removed; an empty prefix selects DefaultTopicPrefix.
func NewTopics(prefix string) Topics {
	for len(prefix) > 0 && prefix[len(prefix)-1] == '/' {
		prefix = prefix[:len(prefix)-1]
	}
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{Prefix: prefix}
}

// Alert returns the topic restart alerts are published to. Not retained.
func (t Topics) Alert() string {
	return t.Prefix + "/alert"
}

// Status returns the retained online/offline status topic, which also
// carries the Last Will and Testament.
func (t Topics) Status() string {
	return t.Prefix + "/status"
}
