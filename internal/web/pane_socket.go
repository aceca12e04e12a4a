package web

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/panemux/panemux/internal/layout"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Local tool: the listen address is the access control.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// clientFrame is a control message from the browser. Raw binary frames
// are treated as keyboard input directly.
type clientFrame struct {
	Type string `json:"type"` // "input" or "resize"
	Data string `json:"data,omitempty"`
	Rows int    `json:"rows,omitempty"`
	Cols int    `json:"cols,omitempty"`
}

// wsSink adapts a websocket connection to the widget sink interface.
// Writes are serialized; gorilla connections allow one writer at a time.
type wsSink struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *wsSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// handlePaneSocket serves /ws/panes/{id}: upgrades to a websocket, binds
// the pane with the socket as its view sink (which replays the scrollback
// first), then pumps browser input back into the session until either
// side hangs up.
func (s *Server) handlePaneSocket(w http.ResponseWriter, r *http.Request) {
	if !s.authorizeRequest(r) {
		writeAPIError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
		return
	}
	paneID := strings.TrimPrefix(r.URL.Path, "/ws/panes/")
	if paneID == "" || strings.Contains(paneID, "/") {
		writeAPIError(w, http.StatusBadRequest, "INVALID_REQUEST", "pane id is required")
		return
	}

	host := s.cfg.Host
	if host == nil {
		writeAPIError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "no workspace attached")
		return
	}
	leaf := layout.Find(host.Root(), paneID)
	if leaf == nil || !leaf.IsLeaf() {
		writeAPIError(w, http.StatusNotFound, "NOT_FOUND", "pane not found")
		return
	}

	rows, cols := queryInt(r, "rows", 24), queryInt(r, "cols", 80)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WEB] upgrade pane %s: %v", paneID, err)
		return
	}
	defer conn.Close()

	sink := &wsSink{conn: conn}
	if err := host.Bind(paneID, rows, cols, sink); err != nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"bind failed"}`))
		return
	}
	defer host.Unbind(paneID, sink)

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if s.cfg.ReadOnly {
			continue
		}
		switch msgType {
		case websocket.BinaryMessage:
			if err := host.Input(paneID, data); err != nil {
				log.Printf("[WEB] input pane %s: %v", paneID, err)
			}
		case websocket.TextMessage:
			var frame clientFrame
			if err := json.Unmarshal(data, &frame); err != nil {
				continue
			}
			switch frame.Type {
			case "input":
				if err := host.Input(paneID, []byte(frame.Data)); err != nil {
					log.Printf("[WEB] input pane %s: %v", paneID, err)
				}
			case "resize":
				host.Resize(paneID, frame.Rows, frame.Cols)
			}
		}
	}
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	var n int
	for _, c := range v {
		if c < '0' || c > '9' {
			return def
		}
		n = n*10 + int(c-'0')
	}
	if n < 1 {
		return def
	}
	return n
}
