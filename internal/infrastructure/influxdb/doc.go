// Package influxdb exports observed restart counts to InfluxDB.
//
// It wraps the official influxdb-client-go v2 library for connection
// management, batched writes and health monitoring. The export is one-way:
// the watchdog never reads its own history back, every decision is made
// from the current pm2 snapshot.
//
// # Data Model
//
//	measurement: process_restarts
//	tags:        host, process, outcome (flagged | healthy)
//	fields:      restarts (integer)
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteRestartCount("api", 7, "flagged")
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
//
// # Error Handling
//
// Writes are non-blocking; batch failures are delivered to the SetOnError
// callback. Connection and health check errors are returned directly.
package influxdb
