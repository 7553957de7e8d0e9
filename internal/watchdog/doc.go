// Package watchdog implements the restart-count check loop.
//
// A Scheduler fires on a fixed interval. Each tick runs Checker.RunOnce,
// which asks the process inspector about every monitored process in
// configured order, classifies each answer with a Threshold, and hands all
// flagged processes to the notifier in a single call.
//
// Outcomes per process:
//   - flagged: restart count over the threshold, included in the alert
//   - healthy: restart count within the threshold
//   - inconclusive: pm2 reported no restart count; never alerted on
//
// Failure handling:
//   - An inspector failure aborts the cycle without notifying and is
//     returned from RunOnce. The Scheduler stops and delivers it on Err so
//     the caller can shut the daemon down.
//   - A notification failure is logged and the loop carries on. A process
//     still over its threshold is reported again next cycle.
//
// Thread Safety:
//   - Cycles never overlap. A tick that arrives while a cycle is running is
//     dropped with a warning.
//   - State may be read concurrently with a running cycle.
//
// Example usage:
//
//	checker, err := watchdog.NewChecker(watchdog.CheckerConfig{
//	    Processes: []string{"api", "worker"},
//	    Threshold: watchdog.Threshold{Max: 5, Policy: watchdog.PolicyGreater},
//	    Inspector: inspector,
//	    Notifier:  mailer,
//	})
//	if err != nil {
//	    return err
//	}
//
//	sched, _ := watchdog.NewScheduler(watchdog.SchedulerConfig{Interval: 10 * time.Minute})
//	sched.Start(ctx, checker.RunOnce)
//
//	select {
//	case <-ctx.Done():
//	case err := <-sched.Err():
//	    // fatal
//	}
package watchdog
