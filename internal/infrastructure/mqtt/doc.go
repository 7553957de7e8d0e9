// Package mqtt provides the watchdog's MQTT connection.
//
// The watchdog uses MQTT as a second alert channel next to e-mail. This
// package manages:
//   - Connection to the broker with auto-reconnect
//   - Publishing with QoS guarantees
//   - A retained status topic with Last Will and Testament, so subscribers
//     can tell a crashed watchdog from one that was stopped
//
// # Topics
//
//	<prefix>/alert   restart alerts (JSON, not retained)
//	<prefix>/status  {"status":"online"|"offline", ...} (retained, LWT)
//
// The prefix comes from mqtt.topic_prefix and defaults to "pm2-watchdog".
//
// # Security Considerations
//
//   - Enable TLS (mqtt.broker.tls) when the broker is not on localhost
//   - Credentials come from mqtt.auth or WATCHDOG_MQTT_USERNAME/PASSWORD
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, version)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Publish(client.Topics().Alert(), payload, 1, false)
package mqtt
