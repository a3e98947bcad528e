package sumo

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ligustah/contentbackup/internal/content"
	"github.com/ligustah/contentbackup/internal/testutils"
)

func testOptions(endpoint string) Options {
	opts := DefaultOptions()
	opts.Endpoint = endpoint
	opts.RetryDelay = 5 * time.Millisecond
	opts.PollInterval = 5 * time.Millisecond
	opts.AccessID = "id"
	opts.AccessKey = "key"
	return opts
}

func testLibrary() *testutils.Library {
	lib := testutils.NewLibrary()
	lib.AccessID = "id"
	lib.AccessKey = "key"
	lib.Global = []*testutils.Item{
		testutils.Folder("u1", "alice@example.com",
			testutils.Leaf("d1", "Errors"),
			testutils.Folder("f1", "Team",
				testutils.Leaf("d2", "Latency"),
			),
		),
		testutils.Folder("u2", "bob@example.com"),
	}
	return lib
}

func TestFolder(t *testing.T) {
	lib := testLibrary()
	client := NewClient(testOptions(lib.Start(t)))

	node, err := client.Folder(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Folder: %v", err)
	}

	if node.Kind != content.KindFolder {
		t.Errorf("expected folder kind, got %v", node.Kind)
	}
	if len(node.Children) != 2 {
		t.Fatalf("expected 2 children, got %d", len(node.Children))
	}
	if node.Children[0].Kind != content.KindLeaf || node.Children[1].Kind != content.KindFolder {
		t.Errorf("unexpected child kinds: %v, %v", node.Children[0].Kind, node.Children[1].Kind)
	}
	if len(node.Children[1].Children) != 0 {
		t.Error("listing must not inline grandchildren")
	}
}

func TestFolderNotFound(t *testing.T) {
	lib := testLibrary()
	client := NewClient(testOptions(lib.Start(t)))

	_, err := client.Folder(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusNotFound {
		t.Errorf("expected StatusError 404, got %v", err)
	}
}

func TestExportContent(t *testing.T) {
	lib := testLibrary()
	lib.PendingPolls = 2
	client := NewClient(testOptions(lib.Start(t)))

	doc, err := client.ExportContent(context.Background(), "u1")
	if err != nil {
		t.Fatalf("ExportContent: %v", err)
	}
	if doc.ChildCount() != 2 {
		t.Errorf("expected 2 children, got %d", doc.ChildCount())
	}

	var v map[string]any
	if err := json.Unmarshal(doc, &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v["type"] != "FolderSyncDefinition" {
		t.Errorf("unexpected type %v", v["type"])
	}
}

func TestExportContentJobFailed(t *testing.T) {
	lib := testLibrary()
	lib.ExportJobFails["u1"] = true
	client := NewClient(testOptions(lib.Start(t)))

	_, err := client.ExportContent(context.Background(), "u1")
	if !errors.Is(err, ErrJobFailed) {
		t.Errorf("expected ErrJobFailed, got %v", err)
	}
}

func TestExportContentNotRetried(t *testing.T) {
	lib := testLibrary()
	lib.ExportStatus["d1"] = http.StatusInternalServerError
	client := NewClient(testOptions(lib.Start(t)))

	_, err := client.ExportContent(context.Background(), "d1")
	if !errors.Is(err, ErrServerError) {
		t.Errorf("expected ErrServerError, got %v", err)
	}
	if calls := lib.ExportCalls("d1"); calls != 1 {
		t.Errorf("expected 1 export attempt, got %d", calls)
	}
}

func TestExportContentRetriedOnRateLimit(t *testing.T) {
	lib := testLibrary()
	lib.ExportStatus["d1"] = http.StatusTooManyRequests
	opts := testOptions(lib.Start(t))
	opts.RetryAttempts = 2
	client := NewClient(opts)

	_, err := client.ExportContent(context.Background(), "d1")
	if !errors.Is(err, ErrTooManyRequests) {
		t.Errorf("expected ErrTooManyRequests, got %v", err)
	}
	if calls := lib.ExportCalls("d1"); calls != 3 {
		t.Errorf("expected 3 export attempts, got %d", calls)
	}
}

func TestRetryOnRateLimit(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"id":"root-id"}`))
	}))
	defer server.Close()

	client := NewClient(testOptions(server.URL))
	id, err := client.MonitorsRoot(context.Background())
	if err != nil {
		t.Fatalf("MonitorsRoot: %v", err)
	}
	if id != "root-id" {
		t.Errorf("expected root-id, got %s", id)
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestRateLimitExhausted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	opts := testOptions(server.URL)
	opts.RetryAttempts = 1
	client := NewClient(opts)

	_, err := client.MonitorsRoot(context.Background())
	if !errors.Is(err, ErrTooManyRequests) {
		t.Errorf("expected ErrTooManyRequests, got %v", err)
	}
}

func TestUnauthorized(t *testing.T) {
	lib := testLibrary()
	opts := testOptions(lib.Start(t))
	opts.AccessKey = "wrong"
	client := NewClient(opts)

	_, err := client.GlobalFolder(context.Background())
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func TestGlobalFolder(t *testing.T) {
	lib := testLibrary()
	client := NewClient(testOptions(lib.Start(t)))

	roots, err := client.GlobalFolder(context.Background())
	if err != nil {
		t.Fatalf("GlobalFolder: %v", err)
	}
	if len(roots) != 2 {
		t.Fatalf("expected 2 roots, got %d", len(roots))
	}
	if roots[0].ID != "u1" || roots[1].Name != "bob@example.com" {
		t.Errorf("unexpected roots: %+v", roots)
	}
}

func TestObjectsPaging(t *testing.T) {
	lib := testLibrary()
	for i := 0; i < 5; i++ {
		lib.Objects["roles"] = append(lib.Objects["roles"], map[string]any{"id": i})
	}
	opts := testOptions(lib.Start(t))
	opts.PageSize = 2
	client := NewClient(opts)

	doc, err := client.Objects(context.Background(), "roles")
	if err != nil {
		t.Fatalf("Objects: %v", err)
	}

	var v struct {
		Data []map[string]any `json:"data"`
	}
	if err := json.Unmarshal(doc, &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(v.Data) != 5 {
		t.Errorf("expected 5 objects across pages, got %d", len(v.Data))
	}
}

func TestNormalizeEndpoint(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"https://api.sumologic.com/api", "https://api.sumologic.com/api"},
		{"https://api.sumologic.com/api/", "https://api.sumologic.com/api"},
		{"https://api.us2.sumologic.com/api/v1", "https://api.us2.sumologic.com/api"},
		{"https://api.us2.sumologic.com/api/v2/", "https://api.us2.sumologic.com/api"},
	}

	for _, tt := range tests {
		if got := normalizeEndpoint(tt.input); got != tt.expected {
			t.Errorf("normalizeEndpoint(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Second)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	client := NewClient(testOptions(server.URL))
	_, err := client.Folder(ctx, "x")
	if err == nil {
		t.Error("expected error due to context cancellation")
	}
}
