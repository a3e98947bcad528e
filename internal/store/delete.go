package store

import (
	"context"
	"fmt"

	"gocloud.dev/blob"
)

// Delete removes a finished backup from the bucket: every artifact listed in
// its manifest, then the manifest itself. Artifacts that are already gone are
// skipped. It returns the number of artifacts deleted.
//
// Returns an error if:
//   - The manifest doesn't exist (error wraps ErrNoManifest)
//   - An artifact cannot be deleted (permission denied, network error)
//   - The context is cancelled
func Delete(ctx context.Context, bucket *blob.Bucket) (int, error) {
	m, err := ReadManifest(ctx, bucket)
	if err != nil {
		if isNotExist(err) {
			return 0, fmt.Errorf("%w: %v", ErrNoManifest, err)
		}
		return 0, err
	}

	deleted := 0
	for _, a := range m.Artifacts {
		if err := bucket.Delete(ctx, a.Key); err != nil {
			if isNotExist(err) {
				continue
			}
			return deleted, fmt.Errorf("store: delete %s: %w", a.Key, err)
		}
		deleted++
	}

	if err := bucket.Delete(ctx, ManifestKey); err != nil {
		return deleted, fmt.Errorf("store: delete manifest: %w", err)
	}
	return deleted, nil
}
