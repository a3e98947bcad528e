// Package backup runs a full content backup.
//
// A run saves, in order:
//   - the monitor tree as monitors.json
//   - each global object set (connections, roles, partitions, ...) as <kind>.json
//   - the admin recommended folder, exported as a single root
//   - every user folder under the global folder, in scheduled batches
//
// and finally report.json with the merged report and the list of artifacts.
package backup
