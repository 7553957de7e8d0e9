// Package process queries the pm2 process supervisor for the state of the
// processes it manages.
//
// The watchdog never starts or stops processes itself; it only asks pm2 how
// often each named process has been restarted. pm2 is driven through its CLI
// (`pm2 jlist`), whose JSON output carries the cumulative restart counter in
// pm2_env.restart_time.
//
// Features:
//   - One bounded command per query (context deadline per call)
//   - Unknown processes and missing counters are reported as "not known"
//     rather than as errors, so the caller can log them as inconclusive
//   - Command and decode failures surface as *InspectError with the process name
//   - Pluggable Runner so tests can feed canned pm2 output
//
// Example usage:
//
//	inspector := process.NewPM2Inspector(process.PM2Config{
//	    Binary:  "pm2",
//	    Timeout: 15 * time.Second,
//	})
//
//	status, err := inspector.Describe(ctx, "api")
//	if err != nil {
//	    return err
//	}
//	if status.Known {
//	    fmt.Println(status.Restarts)
//	}
package process
