// Package progress provides progress reporting for exports.
//
// The reporter counts roots (top-level folders) and nodes (every exported
// folder or item) and periodically prints a status line.
//
// # Usage
//
//	reporter := progress.NewReporter(Options{
//	    TotalRoots: len(roots),
//	    BatchSize:  10,
//	})
//
//	reporter.Start()
//	defer reporter.Stop()
//
//	reporter.RootStarted()
//	reporter.NodeDone(content.StatusBulk, int64(len(doc)))
//	reporter.RootFinished(false)
//
// # Output Format
//
//	[contentbackup] Exporting: https://api.sumologic.com/api
//	[contentbackup] Batch size: 10
//	[contentbackup] Progress: 43.5% | Roots: 10/23 | 10 in-progress | 1 failed | Nodes: 412 | Written: 18.20 MB | Elapsed: 2m 4s
package progress
