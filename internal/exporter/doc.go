// Package exporter exports one content tree with adaptive decomposition.
//
// Every node is first exported in bulk: a single export job returns the node
// with all descendants inlined, and the result is written as one document.
// When the bulk export of a folder fails (typically because the folder is too
// large), the folder is decomposed: its directory is created, its direct
// children are listed, and each child is exported on its own. Child folders
// follow the same rule, so the tree is descended only where needed.
//
// # Usage
//
//	exp := exporter.New(client, store, exporter.Options{
//	    PaceDelay: 500 * time.Millisecond,
//	    Progress:  reporter,
//	})
//	out := exp.Export(ctx, root, content.RootPath(root))
//	if out.Failed() {
//	    log.Printf("failed at %s: %s", out.Cause.Name, out.Reason)
//	}
//
// # Outcomes
//
//   - success-bulk: written as <path>.json
//   - skipped-empty: bulk export succeeded but the folder has no children
//   - success-recursed: bulk failed, every child exported individually
//   - failed: a leaf export, a listing, a write, or a descendant failed
//
// Decomposition uses an explicit stack instead of recursion and is bounded by
// Options.MaxDepth. Leaves are never retried here; transient transport errors
// are retried by the sumo client.
package exporter
