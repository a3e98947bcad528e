package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	"gocloud.dev/gcerrors"
)

// ManifestKey is where Finish writes the run manifest.
const ManifestKey = "report.json"

// Artifact is one document written during a run.
type Artifact struct {
	Key      string `json:"key"`
	Size     int64  `json:"size"`
	Checksum string `json:"checksum,omitempty"`
}

// Manifest describes a finished run. Report holds the caller's run report.
type Manifest struct {
	RunID       string          `json:"run_id"`
	CompletedAt time.Time       `json:"completed_at"`
	Artifacts   []Artifact      `json:"artifacts"`
	Report      json.RawMessage `json:"report,omitempty"`
}

// Store writes export artifacts to a bucket and remembers what it wrote.
// It is safe for concurrent use; keys written by concurrent exporters are
// disjoint.
type Store struct {
	bucket    *blob.Bucket
	localRoot string
	owned     bool

	mu        sync.Mutex
	artifacts map[string]Artifact
}

// New wraps an already open bucket. Close does not close it.
func New(bucket *blob.Bucket) *Store {
	return &Store{
		bucket:    bucket,
		artifacts: make(map[string]Artifact),
	}
}

// Open opens a bucket URL (mem://, file:///dir, s3://..., gs://...).
func Open(ctx context.Context, url string) (*Store, error) {
	bucket, err := blob.OpenBucket(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("store: open bucket: %w", err)
	}
	s := New(bucket)
	s.owned = true
	return s, nil
}

// OpenDir opens a local directory as the export target, creating it if
// needed. Unlike object stores, directories here are real, so EnsureDir
// creates them.
func OpenDir(dir string) (*Store, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("store: resolve dir: %w", err)
	}
	bucket, err := fileblob.OpenBucket(abs, &fileblob.Options{
		CreateDir: true,
		Metadata:  fileblob.MetadataDontWrite,
	})
	if err != nil {
		return nil, fmt.Errorf("store: open dir: %w", err)
	}
	s := New(bucket)
	s.owned = true
	s.localRoot = abs
	return s, nil
}

// Bucket returns the underlying bucket.
func (s *Store) Bucket() *blob.Bucket {
	return s.bucket
}

// Close closes the bucket if the store opened it.
func (s *Store) Close() error {
	if s.owned {
		return s.bucket.Close()
	}
	return nil
}

// EnsureDir makes sure a directory exists for a decomposed folder.
// Object stores have no directories, so this only acts on local targets.
func (s *Store) EnsureDir(ctx context.Context, p string) error {
	if s.localRoot == "" {
		return ctx.Err()
	}
	if err := os.MkdirAll(filepath.Join(s.localRoot, filepath.FromSlash(p)), 0o755); err != nil {
		return fmt.Errorf("store: create dir %s: %w", p, err)
	}
	return nil
}

// Write stores data under key and records it as an artifact.
func (s *Store) Write(ctx context.Context, key string, data []byte) error {
	opts := &blob.WriterOptions{ContentType: "application/json"}
	if err := s.bucket.WriteAll(ctx, key, data, opts); err != nil {
		return fmt.Errorf("store: write %s: %w", key, err)
	}

	sum := sha256.Sum256(data)
	s.mu.Lock()
	s.artifacts[key] = Artifact{
		Key:      key,
		Size:     int64(len(data)),
		Checksum: hex.EncodeToString(sum[:]),
	}
	s.mu.Unlock()
	return nil
}

// Artifacts returns the artifacts written so far, sorted by key.
func (s *Store) Artifacts() []Artifact {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Artifact, 0, len(s.artifacts))
	for _, a := range s.artifacts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Finish writes the run manifest with every artifact and the given report.
func (s *Store) Finish(ctx context.Context, runID string, report any) error {
	m := Manifest{
		RunID:       runID,
		CompletedAt: time.Now().UTC(),
		Artifacts:   s.Artifacts(),
	}
	if report != nil {
		raw, err := json.Marshal(report)
		if err != nil {
			return fmt.Errorf("store: marshal report: %w", err)
		}
		m.Report = raw
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("store: marshal manifest: %w", err)
	}
	if err := s.bucket.WriteAll(ctx, ManifestKey, data, nil); err != nil {
		return fmt.Errorf("store: write manifest: %w", err)
	}
	return nil
}

// ReadManifest reads the manifest of a finished run.
func ReadManifest(ctx context.Context, bucket *blob.Bucket) (*Manifest, error) {
	data, err := bucket.ReadAll(ctx, ManifestKey)
	if err != nil {
		return nil, fmt.Errorf("store: read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("store: unmarshal manifest: %w", err)
	}
	return &m, nil
}

// ErrNoManifest is returned by Validate when the bucket holds no finished run.
var ErrNoManifest = errors.New("store: no manifest found")

// isNotExist returns true if the error indicates the object doesn't exist.
func isNotExist(err error) bool {
	return gcerrors.Code(err) == gcerrors.NotFound
}
