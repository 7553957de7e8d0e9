package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementRestarts is the measurement restart counts are written to.
const MeasurementRestarts = "process_restarts"

// WriteRestartCount records one observed restart count.
//
// The write is non-blocking; data is batched and sent asynchronously.
// Points written after Close are dropped.
//
// Parameters:
//   - process: pm2 process name (tag "process")
//   - restarts: Cumulative restart counter (field "restarts")
//   - outcome: Classification for this cycle (tag "outcome")
func (c *Client) WriteRestartCount(process string, restarts int, outcome string) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(newRestartPoint(c.host, process, restarts, outcome, time.Now()))
}

// newRestartPoint builds a process_restarts point.
func newRestartPoint(host, process string, restarts int, outcome string, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementRestarts,
		map[string]string{
			"host":    host,
			"process": process,
			"outcome": outcome,
		},
		map[string]interface{}{
			"restarts": int64(restarts),
		},
		ts,
	)
}
