//go:build integration

package store_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	_ "gocloud.dev/blob/s3blob"

	"github.com/ligustah/contentbackup/internal/store"
	"github.com/ligustah/contentbackup/internal/testutils"
)

func TestIntegrationStoreOnMinio(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	t.Log("Starting Minio container...")
	minio := testutils.StartMinio(t, ctx, "store-test-bucket")
	defer func() {
		if err := minio.Close(ctx); err != nil {
			t.Logf("failed to terminate minio container: %v", err)
		}
	}()

	s, err := store.Open(ctx, minio.BucketURL)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer s.Close()

	for i := 0; i < 20; i++ {
		key := fmt.Sprintf("u%02d_user/folder/item-%d.json", i%4, i)
		if err := s.EnsureDir(ctx, "u00_user/folder"); err != nil {
			t.Fatalf("EnsureDir: %v", err)
		}
		if err := s.Write(ctx, key, []byte(fmt.Sprintf(`{"name":"item %d"}`, i))); err != nil {
			t.Fatalf("Write %s: %v", key, err)
		}
	}

	if err := s.Finish(ctx, "run-minio", map[string]int{"nodes": 20}); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	result, err := store.Validate(ctx, s.Bucket(), true)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !result.Valid {
		t.Fatalf("expected valid backup, got errors %v", result.Errors)
	}
	if result.ArtifactCount != 20 {
		t.Errorf("expected 20 artifacts, got %d", result.ArtifactCount)
	}
	if result.RunID != "run-minio" {
		t.Errorf("expected run id run-minio, got %s", result.RunID)
	}

	if err := s.Bucket().WriteAll(ctx, "u01_user/folder/item-1.json", []byte(`{}`), nil); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	result, err = store.Validate(ctx, s.Bucket(), false)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if result.Valid || result.SizeMismatches != 1 {
		t.Errorf("expected one size mismatch, got %+v", result)
	}
}
