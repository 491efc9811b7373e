// Package gateway exposes the tracker over HTTP and streams events over
// WebSocket.
package gateway

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dohr-michael/nudge/internal/events"
	"github.com/dohr-michael/nudge/internal/gateway/ws"
	"github.com/dohr-michael/nudge/internal/scheduler"
	"github.com/dohr-michael/nudge/internal/tracker"
)

const (
	defaultEventLimit = 50
	maxEventLimit     = 1000
)

// Auditor compares recorded job ids with the live timeline.
type Auditor interface {
	Audit() scheduler.AuditReport
}

// Options configures a Server.
type Options struct {
	Host    string
	Port    int
	Token   string
	Tracker *tracker.Service
	Auditor Auditor
	Bus     *events.Bus
}

// Server is the nudge gateway HTTP server.
type Server struct {
	httpServer *http.Server
	hub        *ws.Hub
	bus        *events.Bus
	tracker    *tracker.Service
	auditor    Auditor
	token      string
}

// NewServer creates a new gateway server.
func NewServer(opts Options) *Server {
	s := &Server{
		hub:     ws.NewHub(opts.Bus),
		bus:     opts.Bus,
		tracker: opts.Tracker,
		auditor: opts.Auditor,
		token:   opts.Token,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Get("/api/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(s.requireToken)

		r.Get("/api/ws", s.hub.ServeWS)
		r.Get("/api/events", s.handleEvents)
		r.Get("/api/audit", s.handleAudit)

		r.Route("/api/reports/{group}/{user}", func(r chi.Router) {
			r.Post("/", s.handleStartTask)
			r.Get("/", s.handleStatus)
			r.Put("/theme", s.handleSetTheme)
			r.Put("/deadline", s.handleSetDeadline)
			r.Post("/progress", s.handleLogProgress)
			r.Post("/milestones/{name}", s.handleMarkMilestone)
			r.Put("/thread", s.handleAttachThread)
		})

		r.Route("/api/deeds/{group}/{user}", func(r chi.Router) {
			r.Post("/", s.handleRecordDeed)
			r.Get("/today", s.handleToday)
			r.Get("/week", s.handleWeek)
			r.Get("/streak", s.handleStreak)
		})
	})

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", opts.Host, opts.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening. It blocks until the server is stopped.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.httpServer.Addr, err)
	}
	slog.Info("gateway: listening", "addr", ln.Addr().String())
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.httpServer.Shutdown(ctx)
}

// requireToken enforces "Authorization: Bearer <token>". With no token
// configured every request is rejected.
func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || s.token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(s.token)) != 1 {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "ws_clients": s.hub.Clients()})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := defaultEventLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid limit"})
			return
		}
		limit = min(n, maxEventLimit)
	}
	group := r.URL.Query().Get("group")

	history := s.bus.History(maxEventLimit)
	result := make([]events.Event, 0, limit)
	for i := len(history) - 1; i >= 0 && len(result) < limit; i-- {
		if group != "" && history[i].GroupID != group {
			continue
		}
		result = append(result, history[i])
	}
	// oldest first
	for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
		result[i], result[j] = result[j], result[i]
	}

	writeJSON(w, http.StatusOK, result)
}

type auditResponse struct {
	scheduler.AuditReport
	Consistent bool `json:"consistent"`
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	if s.auditor == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "audit not available"})
		return
	}
	report := s.auditor.Audit()
	writeJSON(w, http.StatusOK, auditResponse{AuditReport: report, Consistent: report.Consistent()})
}
