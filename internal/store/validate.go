package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"gocloud.dev/blob"
)

// ValidationResult contains the results of validating a finished export.
type ValidationResult struct {
	Valid              bool     // true if every artifact exists with the recorded size
	RunID              string   // run that wrote the manifest
	ArtifactCount      int      // number of artifacts in the manifest
	TotalSize          int64    // sum of recorded artifact sizes
	Missing            int      // artifacts that don't exist
	SizeMismatches     int      // artifacts with the wrong size
	ChecksumMismatches int      // artifacts whose content changed (verify only)
	Errors             []string // detailed error messages
}

// Validate checks that every artifact recorded in the manifest exists with
// the recorded size. With verify set, each artifact is also read back and its
// checksum compared.
//
// Missing or mismatched artifacts are reported in the result, not returned
// as errors. An error is returned when the manifest is missing (wrapping
// ErrNoManifest) or the bucket cannot be read.
func Validate(ctx context.Context, bucket *blob.Bucket, verify bool) (*ValidationResult, error) {
	m, err := ReadManifest(ctx, bucket)
	if err != nil {
		if isNotExist(err) {
			return nil, fmt.Errorf("%w: %v", ErrNoManifest, err)
		}
		return nil, err
	}

	result := &ValidationResult{
		Valid:         true,
		RunID:         m.RunID,
		ArtifactCount: len(m.Artifacts),
		Errors:        make([]string, 0),
	}

	for _, a := range m.Artifacts {
		result.TotalSize += a.Size

		attrs, err := bucket.Attributes(ctx, a.Key)
		if err != nil {
			if isNotExist(err) {
				result.Valid = false
				result.Missing++
				result.Errors = append(result.Errors, fmt.Sprintf("missing: %s", a.Key))
				continue
			}
			return nil, fmt.Errorf("store: check %s: %w", a.Key, err)
		}

		if attrs.Size != a.Size {
			result.Valid = false
			result.SizeMismatches++
			result.Errors = append(result.Errors,
				fmt.Sprintf("size mismatch: %s: expected %d, got %d", a.Key, a.Size, attrs.Size))
			continue
		}

		if verify && a.Checksum != "" {
			data, err := bucket.ReadAll(ctx, a.Key)
			if err != nil {
				return nil, fmt.Errorf("store: read %s: %w", a.Key, err)
			}
			sum := sha256.Sum256(data)
			if hex.EncodeToString(sum[:]) != a.Checksum {
				result.Valid = false
				result.ChecksumMismatches++
				result.Errors = append(result.Errors, fmt.Sprintf("checksum mismatch: %s", a.Key))
			}
		}
	}

	return result, nil
}
