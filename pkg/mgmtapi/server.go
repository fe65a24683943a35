// Package mgmtapi is the reference host's HTTP management and
// introspection surface: read-only GET endpoints for every getter
// pkg/stpengine's public API exposes, POST endpoints for the admin
// setters gated behind a JWT bearer token, and a websocket stream of
// role-change/topology-change events as they happen.
package mgmtapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/thelastdreamer/spantree/pkg/audit"
	"github.com/thelastdreamer/spantree/pkg/stpengine"
)

// Server is the management API's HTTP+websocket listener.
type Server struct {
	bridge *stpengine.Bridge
	store  *audit.Store

	jwtSecret []byte
	tokenTTL  time.Duration

	httpServer *http.Server
	upgrader   websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]chan []byte
}

// Config configures a Server.
type Config struct {
	ListenAddr string
	JWTSecret  string
	TokenTTL   time.Duration
}

// NewServer builds a Server around bridge; store supplies both the
// operator credential table and the audit history served by GET
// /api/v1/audit/recent. The /api/v1/events websocket streams only
// events broadcast after the client connects.
func NewServer(bridge *stpengine.Bridge, store *audit.Store, cfg Config) *Server {
	s := &Server{
		bridge:    bridge,
		store:     store,
		jwtSecret: []byte(cfg.JWTSecret),
		tokenTTL:  cfg.TokenTTL,
		upgrader:  websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
		clients:   make(map[*websocket.Conn]chan []byte),
	}

	router := mux.NewRouter()
	router.HandleFunc("/api/v1/auth/login", s.handleLogin).Methods(http.MethodPost)
	router.HandleFunc("/api/v1/version", s.handleVersion).Methods(http.MethodGet)

	router.HandleFunc("/api/v1/ports/{port}/trees/{tree}/role", s.handlePortRole).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/ports/{port}/trees/{tree}/state", s.handlePortState).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/ports/{port}/trees/{tree}/vector", s.handlePortVector).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/ports/{port}/trees/{tree}/times", s.handlePortTimes).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/ports/{port}/oper-edge", s.handlePortOperEdge).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/ports/{port}/oper-p2p", s.handlePortOperP2P).Methods(http.MethodGet)

	router.HandleFunc("/api/v1/trees/{tree}/root", s.handleTreeRoot).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/trees/{tree}/topology-change", s.handleTreeTopologyChange).Methods(http.MethodGet)

	router.HandleFunc("/api/v1/bridge/priority", s.requireAuth(s.handleSetBridgePriority)).Methods(http.MethodPost)
	router.HandleFunc("/api/v1/ports/{port}/admin-edge", s.requireAuth(s.handleSetPortAdminEdge)).Methods(http.MethodPost)
	router.HandleFunc("/api/v1/ports/{port}/admin-path-cost", s.requireAuth(s.handleSetPortPathCost)).Methods(http.MethodPost)

	router.HandleFunc("/api/v1/events", s.handleEvents)

	router.HandleFunc("/api/v1/audit/recent", s.requireAuth(s.handleAuditRecent)).Methods(http.MethodGet)

	s.httpServer = &http.Server{Addr: cfg.ListenAddr, Handler: router}
	return s
}

// ListenAndServe starts the HTTP server; it blocks until the server
// is shut down or fails.
func (s *Server) ListenAndServe() error {
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown closes listeners and any open websocket connections.
func (s *Server) Shutdown() error {
	s.mu.Lock()
	for c := range s.clients {
		c.Close()
	}
	s.mu.Unlock()
	return s.httpServer.Close()
}

// BroadcastEvent fans out a JSON-encoded event to every connected
// /events websocket client. cmd/stpd calls this from its Callbacks
// implementation of OnTopologyChange and OnPortRoleChanged.
func (s *Server) BroadcastEvent(kind string, payload any) {
	msg, err := json.Marshal(map[string]any{"kind": kind, "data": payload, "ts": time.Now().Unix()})
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.clients {
		select {
		case ch <- msg:
		default:
			// slow consumer, drop rather than block the bridge's callback path
		}
	}
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": fmt.Sprint(s.bridge.Version())})
}

func (s *Server) handlePortRole(w http.ResponseWriter, r *http.Request) {
	port, tree, err := portTreeParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	role, err := s.bridge.PortRole(port, tree)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"role": role.String()})
}

func (s *Server) handlePortState(w http.ResponseWriter, r *http.Request) {
	port, tree, err := portTreeParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	st, err := s.bridge.PortState(port, tree)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": st.String()})
}

func (s *Server) handlePortVector(w http.ResponseWriter, r *http.Request) {
	port, tree, err := portTreeParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	vec, err := s.bridge.PortPriorityVector(port, tree)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, vec)
}

func (s *Server) handlePortTimes(w http.ResponseWriter, r *http.Request) {
	port, tree, err := portTreeParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	times, err := s.bridge.PortTimes(port, tree)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, times)
}

func (s *Server) handlePortOperEdge(w http.ResponseWriter, r *http.Request) {
	port, err := intParam(r, "port")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	edge, err := s.bridge.PortOperEdge(port)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"operEdge": edge})
}

func (s *Server) handlePortOperP2P(w http.ResponseWriter, r *http.Request) {
	port, err := intParam(r, "port")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	p2p, err := s.bridge.PortOperPointToPoint(port)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"operP2P": p2p})
}

func (s *Server) handleTreeRoot(w http.ResponseWriter, r *http.Request) {
	tree, err := intParam(r, "tree")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	vec, err := s.bridge.TreeRootVector(tree)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	port, _ := s.bridge.TreeRootPort(tree)
	writeJSON(w, http.StatusOK, map[string]any{"rootVector": vec, "rootPort": port})
}

func (s *Server) handleTreeTopologyChange(w http.ResponseWriter, r *http.Request) {
	tree, err := intParam(r, "tree")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	active, err := s.bridge.TreeTopologyChange(tree)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	count, _ := s.bridge.TreeTopologyChangeCount(tree)
	writeJSON(w, http.StatusOK, map[string]any{"active": active, "count": count})
}

func (s *Server) handleSetBridgePriority(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tree     int    `json:"tree"`
		Priority uint16 `json:"priority"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.bridge.SetBridgePriority(req.Tree, req.Priority, time.Now()); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleSetPortAdminEdge(w http.ResponseWriter, r *http.Request) {
	port, err := intParam(r, "port")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.bridge.SetPortAdminEdge(port, req.Enabled, time.Now()); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleSetPortPathCost(w http.ResponseWriter, r *http.Request) {
	port, err := intParam(r, "port")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req struct {
		Tree int    `json:"tree"`
		Cost uint32 `json:"cost"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.bridge.SetPortAdminPathCost(port, req.Tree, req.Cost, time.Now()); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleAuditRecent(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	events, err := s.store.RecentEvents(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	ch := make(chan []byte, 32)

	s.mu.Lock()
	s.clients[conn] = ch
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	for msg := range ch {
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func portTreeParams(r *http.Request) (port, tree int, err error) {
	port, err = intParam(r, "port")
	if err != nil {
		return 0, 0, err
	}
	tree, err = intParam(r, "tree")
	if err != nil {
		return 0, 0, err
	}
	return port, tree, nil
}

func intParam(r *http.Request, name string) (int, error) {
	v := mux.Vars(r)[name]
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("mgmtapi: %s must be an integer, got %q", name, v)
	}
	return n, nil
}

func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
