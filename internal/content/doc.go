// Package content defines the content tree model shared by the exporter and
// the scheduler.
//
// A [Node] is a folder or a leaf item of the remote content library. Each
// exported node produces one [Outcome]; folders that had to be decomposed
// carry the outcomes of their visited children, so a single root outcome
// describes a whole subtree.
//
// # Target paths
//
//	<id>_<name>                  top-level root ([RootPath])
//	<parent>/<name>              child of a decomposed folder ([ChildPath])
//	<path>.json                  exported document ([ArtifactKey])
//
// Names are sanitized by replacing every non-word character with '_'.
package content
