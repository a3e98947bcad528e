// Package scheduler exports many content roots with bounded parallelism.
//
// Roots are split into consecutive batches of Options.BatchSize. A fixed pool
// of BatchSize workers receives roots from a channel, with a flat
// Options.LaunchDelay between launches. A batch is a barrier: the next batch
// is launched only after every root of the current one has returned.
//
// # Usage
//
//	sched := scheduler.New(exp, scheduler.Options{
//	    BatchSize:   10,
//	    LaunchDelay: time.Second,
//	})
//	report := sched.Run(ctx, roots)
//	if report.Failed() {
//	    os.Exit(8)
//	}
//
// Failures never stop a run. Every root produces an outcome, and the Report
// lists each node a failure originated at together with its root.
package scheduler
