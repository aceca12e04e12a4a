package web

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/panemux/panemux/internal/layout"
	"github.com/panemux/panemux/internal/store"
)

// handleProjects serves GET /api/projects.
func (s *Server) handleProjects(w http.ResponseWriter, r *http.Request) {
	if !s.authorizeRequest(r) {
		writeAPIError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
		return
	}
	if r.Method != http.MethodGet {
		writeAPIError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
		return
	}

	if s.cfg.Projects == nil {
		writeJSON(w, http.StatusOK, projectsListResponse{Projects: []*store.Project{}})
		return
	}

	projects, err := s.cfg.Projects.List()
	if err != nil {
		writeAPIError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to load projects")
		return
	}
	if projects == nil {
		projects = []*store.Project{}
	}
	writeJSON(w, http.StatusOK, projectsListResponse{Projects: projects})
}

// handleProjectByID serves GET and DELETE /api/projects/{id}.
func (s *Server) handleProjectByID(w http.ResponseWriter, r *http.Request) {
	if !s.authorizeRequest(r) {
		writeAPIError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
		return
	}

	idText := strings.TrimPrefix(r.URL.Path, "/api/projects/")
	id, err := strconv.Atoi(idText)
	if err != nil || id < 1 {
		writeAPIError(w, http.StatusBadRequest, "INVALID_REQUEST", "project id is required")
		return
	}
	if s.cfg.Projects == nil {
		writeAPIError(w, http.StatusNotFound, "NOT_FOUND", "project not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		project, err := s.cfg.Projects.Get(id)
		if err != nil {
			writeAPIError(w, http.StatusNotFound, "NOT_FOUND", "project not found")
			return
		}
		writeJSON(w, http.StatusOK, projectDetailResponse{Project: project})
	case http.MethodDelete:
		if s.cfg.ReadOnly {
			writeAPIError(w, http.StatusForbidden, "READ_ONLY", "server is read-only")
			return
		}
		if err := s.cfg.Projects.Delete(id); err != nil {
			writeAPIError(w, http.StatusNotFound, "NOT_FOUND", "project not found")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeAPIError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	}
}

// handleLayout serves GET /api/layout: the attached workspace's live pane
// tree.
func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	if !s.authorizeRequest(r) {
		writeAPIError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
		return
	}
	if r.Method != http.MethodGet {
		writeAPIError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
		return
	}
	if s.cfg.Host == nil {
		writeAPIError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "no workspace attached")
		return
	}
	writeJSON(w, http.StatusOK, layoutResponse{Layout: layout.Serialize(s.cfg.Host.Root())})
}

// handlePaneByID serves GET /api/panes/{id}/snapshot: the pane's raw
// scrollback, escape sequences included.
func (s *Server) handlePaneByID(w http.ResponseWriter, r *http.Request) {
	if !s.authorizeRequest(r) {
		writeAPIError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
		return
	}
	if r.Method != http.MethodGet {
		writeAPIError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
		return
	}

	remaining := strings.TrimPrefix(r.URL.Path, "/api/panes/")
	parts := strings.SplitN(remaining, "/", 2)
	paneID := parts[0]
	subPath := ""
	if len(parts) > 1 {
		subPath = parts[1]
	}
	if paneID == "" {
		writeAPIError(w, http.StatusBadRequest, "INVALID_REQUEST", "pane id is required")
		return
	}
	if subPath != "snapshot" {
		writeAPIError(w, http.StatusNotFound, "NOT_FOUND", "route not found")
		return
	}

	if s.cfg.Host == nil || layout.Find(s.cfg.Host.Root(), paneID) == nil {
		writeAPIError(w, http.StatusNotFound, "NOT_FOUND", "pane not found")
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(s.cfg.Host.Snapshot(paneID))
}

type projectsListResponse struct {
	Projects []*store.Project `json:"projects"`
}

type projectDetailResponse struct {
	Project *store.Project `json:"project"`
}

type layoutResponse struct {
	Layout *layout.Record `json:"layout"`
}
