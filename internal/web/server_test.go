package web

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/panemux/panemux/internal/layout"
	"github.com/panemux/panemux/internal/store"
)

// fakeHost implements PaneHost for handler tests.
type fakeHost struct {
	mu        sync.Mutex
	root      *layout.Node
	sinks     map[string]io.Writer
	inputs    map[string][]byte
	resizes   map[string][2]int
	snapshots map[string][]byte
}

func newFakeHost(root *layout.Node) *fakeHost {
	return &fakeHost{
		root:      root,
		sinks:     make(map[string]io.Writer),
		inputs:    make(map[string][]byte),
		resizes:   make(map[string][2]int),
		snapshots: make(map[string][]byte),
	}
}

func (h *fakeHost) Root() *layout.Node { return h.root }

func (h *fakeHost) Bind(paneID string, rows, cols int, sink io.Writer) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sinks[paneID] = sink
	if snap := h.snapshots[paneID]; len(snap) > 0 {
		_, _ = sink.Write(snap)
	}
	return nil
}

func (h *fakeHost) Unbind(paneID string, sink io.Writer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sinks[paneID] == sink {
		delete(h.sinks, paneID)
	}
}

func (h *fakeHost) Input(paneID string, p []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.inputs[paneID] = append(h.inputs[paneID], p...)
	return nil
}

func (h *fakeHost) Resize(paneID string, rows, cols int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.resizes[paneID] = [2]int{rows, cols}
}

func (h *fakeHost) Snapshot(paneID string) []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snapshots[paneID]
}

func (h *fakeHost) Bound(paneID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.sinks[paneID]
	return ok
}

func (h *fakeHost) input(paneID string) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return string(h.inputs[paneID])
}

func testTree() *layout.Node {
	return layout.DefaultLayout([]*layout.Command{
		{ID: 1, Text: "top"},
		{ID: 2, Text: "htop"},
	})
}

func TestHealthzEndpoint(t *testing.T) {
	srv := NewServer(Config{
		ListenAddr: "127.0.0.1:0",
		Host:       newFakeHost(testTree()),
	})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}

	body := rr.Body.String()
	if !strings.Contains(body, `"ok":true`) {
		t.Fatalf("expected health response to contain ok=true, got: %s", body)
	}
	if !strings.Contains(body, `"panes":2`) {
		t.Fatalf("expected health response to contain pane count, got: %s", body)
	}
}

func TestHealthzMethodNotAllowed(t *testing.T) {
	srv := NewServer(Config{
		ListenAddr: "127.0.0.1:0",
	})

	req := httptest.NewRequest(http.MethodPost, "/healthz", nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status %d, got %d", http.StatusMethodNotAllowed, rr.Code)
	}
}

func TestIndexServed(t *testing.T) {
	srv := NewServer(Config{
		ListenAddr: "127.0.0.1:0",
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}

	contentType := rr.Header().Get("Content-Type")
	if !strings.Contains(contentType, "text/html") {
		t.Fatalf("expected html content-type, got: %s", contentType)
	}
	if !strings.Contains(rr.Body.String(), "Panemux Web") {
		t.Fatalf("expected shell html body, got: %s", rr.Body.String())
	}
}

func TestPaneDeepLinkServesIndex(t *testing.T) {
	tree := testTree()
	srv := NewServer(Config{
		ListenAddr: "127.0.0.1:0",
		Host:       newFakeHost(tree),
	})
	pane := layout.Leaves(tree)[0]

	req := httptest.NewRequest(http.MethodGet, "/p/"+pane.ID, nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Panemux Web") {
		t.Fatalf("expected shell html body, got: %s", rr.Body.String())
	}
}

func TestPaneDeepLinkUnknownPane(t *testing.T) {
	srv := NewServer(Config{
		ListenAddr: "127.0.0.1:0",
		Host:       newFakeHost(testTree()),
	})

	req := httptest.NewRequest(http.MethodGet, "/p/nope", nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, rr.Code)
	}
}

func TestStaticCSSServed(t *testing.T) {
	srv := NewServer(Config{
		ListenAddr: "127.0.0.1:0",
	})

	req := httptest.NewRequest(http.MethodGet, "/static/styles.css", nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "--accent") {
		t.Fatalf("expected css payload, got: %s", rr.Body.String())
	}
}

func TestProjectsList(t *testing.T) {
	projects, err := store.NewProjectStore(t.TempDir())
	if err != nil {
		t.Fatalf("new project store: %v", err)
	}
	if err := projects.Save(&store.Project{Name: "alpha"}); err != nil {
		t.Fatalf("save project: %v", err)
	}

	srv := NewServer(Config{
		ListenAddr: "127.0.0.1:0",
		Projects:   projects,
	})

	req := httptest.NewRequest(http.MethodGet, "/api/projects", nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"alpha"`) {
		t.Fatalf("expected project in list, got: %s", rr.Body.String())
	}
}

func TestProjectByIDNotFound(t *testing.T) {
	projects, err := store.NewProjectStore(t.TempDir())
	if err != nil {
		t.Fatalf("new project store: %v", err)
	}

	srv := NewServer(Config{
		ListenAddr: "127.0.0.1:0",
		Projects:   projects,
	})

	req := httptest.NewRequest(http.MethodGet, "/api/projects/42", nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, rr.Code)
	}
}

func TestProjectDelete(t *testing.T) {
	projects, err := store.NewProjectStore(t.TempDir())
	if err != nil {
		t.Fatalf("new project store: %v", err)
	}
	p := &store.Project{Name: "doomed"}
	if err := projects.Save(p); err != nil {
		t.Fatalf("save project: %v", err)
	}

	srv := NewServer(Config{
		ListenAddr: "127.0.0.1:0",
		Projects:   projects,
	})

	req := httptest.NewRequest(http.MethodDelete, "/api/projects/1", nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, rr.Code)
	}

	if _, err := projects.Get(p.ID); err == nil {
		t.Fatal("expected project to be gone after delete")
	}
}

func TestProjectDeleteReadOnly(t *testing.T) {
	projects, err := store.NewProjectStore(t.TempDir())
	if err != nil {
		t.Fatalf("new project store: %v", err)
	}
	if err := projects.Save(&store.Project{Name: "kept"}); err != nil {
		t.Fatalf("save project: %v", err)
	}

	srv := NewServer(Config{
		ListenAddr: "127.0.0.1:0",
		ReadOnly:   true,
		Projects:   projects,
	})

	req := httptest.NewRequest(http.MethodDelete, "/api/projects/1", nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status %d, got %d", http.StatusForbidden, rr.Code)
	}
}

func TestLayoutEndpoint(t *testing.T) {
	srv := NewServer(Config{
		ListenAddr: "127.0.0.1:0",
		Host:       newFakeHost(testTree()),
	})

	req := httptest.NewRequest(http.MethodGet, "/api/layout", nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, `"type":"container"`) {
		t.Fatalf("expected container record, got: %s", body)
	}
	if !strings.Contains(body, `"type":"terminal"`) {
		t.Fatalf("expected terminal records, got: %s", body)
	}
}

func TestLayoutWithoutHost(t *testing.T) {
	srv := NewServer(Config{ListenAddr: "127.0.0.1:0"})

	req := httptest.NewRequest(http.MethodGet, "/api/layout", nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status %d, got %d", http.StatusServiceUnavailable, rr.Code)
	}
}

func TestPaneSnapshot(t *testing.T) {
	tree := testTree()
	host := newFakeHost(tree)
	pane := layout.Leaves(tree)[0]
	host.snapshots[pane.ID] = []byte("\x1b[32mready\x1b[0m")

	srv := NewServer(Config{
		ListenAddr: "127.0.0.1:0",
		Host:       host,
	})

	req := httptest.NewRequest(http.MethodGet, "/api/panes/"+pane.ID+"/snapshot", nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if rr.Body.String() != "\x1b[32mready\x1b[0m" {
		t.Fatalf("expected raw snapshot bytes, got: %q", rr.Body.String())
	}
}

func TestPaneSnapshotUnknownPane(t *testing.T) {
	srv := NewServer(Config{
		ListenAddr: "127.0.0.1:0",
		Host:       newFakeHost(testTree()),
	})

	req := httptest.NewRequest(http.MethodGet, "/api/panes/nope/snapshot", nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, rr.Code)
	}
}

func TestAuthTokenRequired(t *testing.T) {
	srv := NewServer(Config{
		ListenAddr: "127.0.0.1:0",
		AuthToken:  "secret",
		Host:       newFakeHost(testTree()),
	})

	req := httptest.NewRequest(http.MethodGet, "/api/layout", nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/layout", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rr = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d with bearer token, got %d", http.StatusOK, rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/layout?token=secret", nil)
	rr = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d with query token, got %d", http.StatusOK, rr.Code)
	}
}
