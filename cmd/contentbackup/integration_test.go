//go:build integration

package main

import (
	"context"
	"testing"
	"time"

	_ "gocloud.dev/blob/s3blob"

	"github.com/ligustah/contentbackup/internal/testutils"
)

func TestCLIIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	lib := newLibrary()
	lib.ExportStatus["u2"] = 400
	endpoint := lib.Start(t)
	setCredentials(t, "cli-id", "cli-key")

	t.Log("Starting Minio container...")
	minio := testutils.StartMinio(t, ctx, "cli-test-bucket")
	defer func() {
		if err := minio.Close(ctx); err != nil {
			t.Logf("failed to terminate minio container: %v", err)
		}
	}()

	t.Run("backup", func(t *testing.T) {
		args := backupArgs(endpoint, "")
		args = append(args, "-bucket", minio.BucketURL)
		if code := runBackup(args); code != ExitSuccess {
			t.Fatalf("backup failed with exit code %d", code)
		}
	})

	t.Run("contents", func(t *testing.T) {
		bkt, err := minio.OpenBucket(ctx)
		if err != nil {
			t.Fatalf("open bucket: %v", err)
		}
		defer bkt.Close()

		for _, key := range []string{"report.json", "u1_alice.json", "u2_bob/Latency.json", "u2_bob/Team.json"} {
			ok, err := bkt.Exists(ctx, key)
			if err != nil {
				t.Fatalf("exists %s: %v", key, err)
			}
			if !ok {
				t.Errorf("expected %s in bucket", key)
			}
		}
	})

	t.Run("validate", func(t *testing.T) {
		if code := runValidate([]string{"-bucket", minio.BucketURL, "-verify"}); code != ExitSuccess {
			t.Fatalf("validate failed with exit code %d", code)
		}
	})

	t.Run("validate_missing", func(t *testing.T) {
		bkt, err := minio.OpenBucket(ctx)
		if err != nil {
			t.Fatalf("open bucket: %v", err)
		}
		defer bkt.Close()

		if err := bkt.Delete(ctx, "u1_alice.json"); err != nil {
			t.Fatalf("delete artifact: %v", err)
		}
		if code := runValidate([]string{"-bucket", minio.BucketURL}); code != ExitValidationFailed {
			t.Fatalf("expected exit %d, got %d", ExitValidationFailed, code)
		}
	})
}
