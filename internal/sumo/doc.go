// Package sumo provides a client for the content management API.
//
// This package handles:
//   - Basic authentication with an access ID and key
//   - Admin mode (isAdminMode header) for full-library visibility
//   - Asynchronous export jobs (start, poll status, fetch result)
//   - Paging of global object sets
//   - Flat-delay retry of rate-limited requests
//
// Only HTTP 429 and transport errors are retried. Every other non-success
// status is returned at once as a *StatusError that unwraps to one of the
// sentinel errors (ErrNotFound, ErrForbidden, ...), so callers decide how a
// failed export is handled.
//
// # Usage
//
//	client := sumo.NewClient(sumo.Options{
//	    Endpoint:  "https://api.us2.sumologic.com/api",
//	    AccessID:  id,
//	    AccessKey: key,
//	    AdminMode: true,
//	})
//
//	roots, err := client.GlobalFolder(ctx)
//	doc, err := client.ExportContent(ctx, roots[0].ID)
package sumo
