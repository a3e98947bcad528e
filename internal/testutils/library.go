// Package testutils provides shared test infrastructure: an in-memory content
// library served over HTTP, and (with the integration tag) a MinIO container.
package testutils

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
)

// Item is a folder or leaf of the fake content library.
type Item struct {
	ID       string
	Name     string
	Type     string
	Children []*Item
}

// Folder builds a folder item.
func Folder(id, name string, children ...*Item) *Item {
	return &Item{ID: id, Name: name, Type: "Folder", Children: children}
}

// Leaf builds a dashboard item.
func Leaf(id, name string) *Item {
	return &Item{ID: id, Name: name, Type: "Dashboard"}
}

// Library is a fake content management API backed by an item tree.
// Zero-valued maps are allocated by NewLibrary; tests fill them before
// starting the server.
type Library struct {
	Global           []*Item
	AdminRecommended *Item

	// Objects holds global object sets by kind, served in pages.
	Objects map[string][]map[string]any

	MonitorsRootID string
	Monitors       map[string]any

	// ExportStatus makes the export job start for an item ID fail with the
	// given HTTP status.
	ExportStatus map[string]int
	// ExportJobFails makes the export job for an item ID end as Failed.
	ExportJobFails map[string]bool
	// ListStatus makes listing a folder ID fail with the given HTTP status.
	ListStatus map[string]int
	// GlobalStatus makes the global folder job start fail with the given
	// HTTP status.
	GlobalStatus int

	// PendingPolls is how many status polls report InProgress before a job
	// succeeds.
	PendingPolls int

	AccessID  string
	AccessKey string

	mu      sync.Mutex
	index   map[string]*Item
	exports map[string]int
	lists   map[string]int
	jobs    map[string]*job
	nextJob int
}

type job struct {
	polls  int
	failed bool
	result any
}

// NewLibrary returns an empty library.
func NewLibrary() *Library {
	return &Library{
		Objects:        map[string][]map[string]any{},
		ExportStatus:   map[string]int{},
		ExportJobFails: map[string]bool{},
		ListStatus:     map[string]int{},
		exports:        map[string]int{},
		lists:          map[string]int{},
		jobs:           map[string]*job{},
	}
}

// Start serves the library until the test ends. The returned URL is the API
// endpoint (it ends in /api).
func (l *Library) Start(t *testing.T) string {
	t.Helper()
	server := httptest.NewServer(l.Handler())
	t.Cleanup(server.Close)
	return server.URL + "/api"
}

// ExportCalls returns how many export jobs were started for id.
func (l *Library) ExportCalls(id string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.exports[id]
}

// ListCalls returns how many times the folder id was listed.
func (l *Library) ListCalls(id string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lists[id]
}

// Handler returns the HTTP handler implementing the API.
func (l *Library) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v2/content/folders/global", l.startFolderJob(&l.GlobalStatus, func() any {
		data := make([]any, 0, len(l.Global))
		for _, it := range l.Global {
			data = append(data, folderView(it, false))
		}
		return map[string]any{"data": data}
	}))
	mux.HandleFunc("GET /api/v2/content/folders/adminRecommended", l.startFolderJob(nil, func() any {
		if l.AdminRecommended == nil {
			return map[string]any{"id": "", "name": "Admin Recommended", "itemType": "Folder", "children": []any{}}
		}
		return folderView(l.AdminRecommended, true)
	}))
	mux.HandleFunc("GET /api/v2/content/folders/global/{job}/status", l.jobStatus)
	mux.HandleFunc("GET /api/v2/content/folders/global/{job}/result", l.jobResult)
	mux.HandleFunc("GET /api/v2/content/folders/adminRecommended/{job}/status", l.jobStatus)
	mux.HandleFunc("GET /api/v2/content/folders/adminRecommended/{job}/result", l.jobResult)
	mux.HandleFunc("GET /api/v2/content/folders/{id}", l.listFolder)
	mux.HandleFunc("POST /api/v2/content/{id}/export", l.startExport)
	mux.HandleFunc("GET /api/v2/content/{id}/export/{job}/status", l.jobStatus)
	mux.HandleFunc("GET /api/v2/content/{id}/export/{job}/result", l.jobResult)
	mux.HandleFunc("GET /api/v1/monitors/root", l.monitorsRoot)
	mux.HandleFunc("GET /api/v1/monitors/{id}/export", l.exportMonitors)
	mux.HandleFunc("GET /api/v1/{kind}", l.listObjects)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l.AccessID != "" {
			id, key, ok := r.BasicAuth()
			if !ok || id != l.AccessID || key != l.AccessKey {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
		}
		mux.ServeHTTP(w, r)
	})
}

func (l *Library) lookup(id string) *Item {
	if l.index == nil {
		l.index = map[string]*Item{}
		var walk func(*Item)
		walk = func(it *Item) {
			l.index[it.ID] = it
			for _, c := range it.Children {
				walk(c)
			}
		}
		for _, it := range l.Global {
			walk(it)
		}
		if l.AdminRecommended != nil {
			walk(l.AdminRecommended)
		}
	}
	return l.index[id]
}

func (l *Library) listFolder(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	l.mu.Lock()
	l.lists[id]++
	status := l.ListStatus[id]
	it := l.lookup(id)
	l.mu.Unlock()

	if status != 0 {
		w.WriteHeader(status)
		return
	}
	if it == nil || it.Type != "Folder" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, folderView(it, true))
}

func (l *Library) startExport(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	l.mu.Lock()
	l.exports[id]++
	status := l.ExportStatus[id]
	it := l.lookup(id)
	l.mu.Unlock()

	if status != 0 {
		w.WriteHeader(status)
		return
	}
	if it == nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, map[string]string{"id": l.newJob(exportView(it), l.ExportJobFails[id])})
}

func (l *Library) startFolderJob(status *int, result func() any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l.mu.Lock()
		code := 0
		if status != nil {
			code = *status
		}
		res := result()
		l.mu.Unlock()
		if code != 0 {
			w.WriteHeader(code)
			return
		}
		writeJSON(w, map[string]string{"id": l.newJob(res, false)})
	}
}

func (l *Library) newJob(result any, failed bool) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextJob++
	id := fmt.Sprintf("job-%d", l.nextJob)
	l.jobs[id] = &job{result: result, failed: failed}
	return id
}

func (l *Library) jobStatus(w http.ResponseWriter, r *http.Request) {
	l.mu.Lock()
	j := l.jobs[r.PathValue("job")]
	if j != nil {
		j.polls++
	}
	l.mu.Unlock()

	switch {
	case j == nil:
		http.NotFound(w, r)
	case j.polls <= l.PendingPolls:
		writeJSON(w, map[string]any{"status": "InProgress"})
	case j.failed:
		writeJSON(w, map[string]any{
			"status": "Failed",
			"error":  map[string]string{"code": "content:too_large", "message": "export too large"},
		})
	default:
		writeJSON(w, map[string]any{"status": "Success"})
	}
}

func (l *Library) jobResult(w http.ResponseWriter, r *http.Request) {
	l.mu.Lock()
	j := l.jobs[r.PathValue("job")]
	l.mu.Unlock()

	if j == nil || j.failed {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, j.result)
}

func (l *Library) monitorsRoot(w http.ResponseWriter, r *http.Request) {
	if l.MonitorsRootID == "" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, map[string]string{"id": l.MonitorsRootID, "name": "Root"})
}

func (l *Library) exportMonitors(w http.ResponseWriter, r *http.Request) {
	if r.PathValue("id") != l.MonitorsRootID || l.Monitors == nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, l.Monitors)
}

func (l *Library) listObjects(w http.ResponseWriter, r *http.Request) {
	objs, ok := l.Objects[r.PathValue("kind")]
	if !ok {
		http.NotFound(w, r)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = len(objs)
	}
	start, _ := strconv.Atoi(r.URL.Query().Get("token"))
	end := start + limit
	if end > len(objs) {
		end = len(objs)
	}

	page := map[string]any{"data": objs[start:end]}
	if end < len(objs) {
		page["next"] = strconv.Itoa(end)
	}
	writeJSON(w, page)
}

// folderView is the listing shape: the folder with one level of children.
func folderView(it *Item, withChildren bool) map[string]any {
	v := map[string]any{"id": it.ID, "name": it.Name, "itemType": it.Type}
	if withChildren {
		children := make([]any, 0, len(it.Children))
		for _, c := range it.Children {
			children = append(children, map[string]any{"id": c.ID, "name": c.Name, "itemType": c.Type})
		}
		v["children"] = children
	}
	return v
}

// exportView is the export shape: the item with every descendant inlined.
func exportView(it *Item) map[string]any {
	if it.Type != "Folder" {
		return map[string]any{"type": it.Type + "SyncDefinition", "name": it.Name}
	}
	children := make([]any, 0, len(it.Children))
	for _, c := range it.Children {
		children = append(children, exportView(c))
	}
	return map[string]any{"type": "FolderSyncDefinition", "name": it.Name, "children": children}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
