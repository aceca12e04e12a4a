// Package web serves the browser attach surface: a JSON API over the
// project store plus a websocket bridge that mirrors a live pane into a
// browser terminal.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/panemux/panemux/internal/layout"
	"github.com/panemux/panemux/internal/store"
)

// PaneHost is the live workspace a browser can attach to. Satisfied by
// *workspace.Workspace.
type PaneHost interface {
	Root() *layout.Node
	Bind(paneID string, rows, cols int, sink io.Writer) error
	Unbind(paneID string, sink io.Writer)
	Input(paneID string, p []byte) error
	Resize(paneID string, rows, cols int)
	Snapshot(paneID string) []byte
	Bound(paneID string) bool
}

// Config configures the web server.
type Config struct {
	ListenAddr string
	AuthToken  string // empty disables auth (local use)
	ReadOnly   bool   // mirror only, no input or resize

	Projects *store.ProjectStore
	Host     PaneHost
}

// Server is the panemux web server.
type Server struct {
	cfg     Config
	httpSrv *http.Server
}

// NewServer creates a web server. Call Handler to get the route mux, or
// Start to listen on the configured address.
func NewServer(cfg Config) *Server {
	return &Server{cfg: cfg}
}

// Start listens on the configured address and blocks until Shutdown or a
// listener error.
func (s *Server) Start() error {
	s.httpSrv = &http.Server{Addr: s.cfg.ListenAddr, Handler: s.Handler()}
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// Handler returns the full route mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/api/projects", s.handleProjects)
	mux.HandleFunc("/api/projects/", s.handleProjectByID)
	mux.HandleFunc("/api/layout", s.handleLayout)
	mux.HandleFunc("/api/panes/", s.handlePaneByID)
	mux.HandleFunc("/ws/panes/", s.handlePaneSocket)
	mux.Handle("/static/", http.StripPrefix("/static/", s.staticFileServer()))
	mux.HandleFunc("/", s.handleIndex)
	return mux
}

// authorizeRequest checks the bearer token or ?token= query parameter.
// An empty configured token allows everything.
func (s *Server) authorizeRequest(r *http.Request) bool {
	if s.cfg.AuthToken == "" {
		return true
	}
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.cfg.AuthToken {
		return true
	}
	return r.URL.Query().Get("token") == s.cfg.AuthToken
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeAPIError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
		return
	}
	panes := 0
	if s.cfg.Host != nil {
		panes = len(layout.Leaves(s.cfg.Host.Root()))
	}
	writeJSON(w, http.StatusOK, healthResponse{OK: true, ReadOnly: s.cfg.ReadOnly, Panes: panes})
}

type healthResponse struct {
	OK       bool `json:"ok"`
	ReadOnly bool `json:"readOnly"`
	Panes    int  `json:"panes"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeAPIError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, apiError{Error: apiErrorBody{Code: code, Message: message}})
}

type apiError struct {
	Error apiErrorBody `json:"error"`
}

type apiErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
