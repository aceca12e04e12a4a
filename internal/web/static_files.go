package web

import (
	"embed"
	"io/fs"
	"net/http"
	"strings"

	"github.com/panemux/panemux/internal/layout"
)

//go:embed static/*
var staticAssets embed.FS

func (s *Server) staticFileServer() http.Handler {
	sub, err := fs.Sub(staticAssets, "static")
	if err != nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "static assets unavailable", http.StatusInternalServerError)
		})
	}
	return http.FileServer(http.FS(sub))
}

// handleIndex serves the single-page client. "/p/{paneID}" deep-links one
// pane: the path is validated against the live tree here so a dead link
// 404s at the HTTP layer instead of loading a client that cannot attach,
// then the client parses the same path to pick its initial pane.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeAPIError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
		return
	}

	switch {
	case r.URL.Path == "/":
	case strings.HasPrefix(r.URL.Path, "/p/"):
		if !s.paneExists(strings.TrimPrefix(r.URL.Path, "/p/")) {
			http.NotFound(w, r)
			return
		}
	default:
		http.NotFound(w, r)
		return
	}

	index, err := staticAssets.ReadFile("static/index.html")
	if err != nil {
		http.Error(w, "index unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(index)
}

// paneExists reports whether the deep-linked pane is a live leaf. With no
// workspace attached the link cannot be checked; the client reports the
// missing workspace itself.
func (s *Server) paneExists(paneID string) bool {
	if s.cfg.Host == nil {
		return true
	}
	leaf := layout.Find(s.cfg.Host.Root(), paneID)
	return leaf != nil && leaf.IsLeaf()
}
