package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.io/infrasutra/holomail/internal/config"
	"github.io/infrasutra/holomail/internal/mailbox"
	"github.io/infrasutra/holomail/internal/realtime"
	"github.io/infrasutra/holomail/internal/schema"
	"github.io/infrasutra/holomail/internal/store"
)

const maxDiagnosticCollections = 10

type Server struct {
	cfg     config.Config
	store   *store.Store
	service *mailbox.Service
	schemas *schema.Registry
	hub     *realtime.Hub
	logger  *slog.Logger
	handler http.Handler
}

func NewServer(cfg config.Config, st *store.Store, service *mailbox.Service, schemas *schema.Registry, hub *realtime.Hub, logger *slog.Logger) *Server {
	server := &Server{
		cfg:     cfg,
		store:   st,
		service: service,
		schemas: schemas,
		hub:     hub,
		logger:  logger,
	}

	router := mux.NewRouter()
	router.HandleFunc("/", server.handleRoot).Methods(http.MethodGet)
	router.HandleFunc("/health", server.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/ready", server.handleReady).Methods(http.MethodGet)
	router.HandleFunc("/metrics", server.handleMetrics).Methods(http.MethodGet)
	router.HandleFunc("/test", server.handleDiagnostics).Methods(http.MethodGet)
	router.HandleFunc("/schema", server.handleSchema).Methods(http.MethodGet)
	router.Handle("/ws", realtime.NewWebsocketHandler(hub, cfg.WSWriteTimeout, logger)).Methods(http.MethodGet)

	apiRouter := router.PathPrefix("/api").Subrouter()
	apiRouter.HandleFunc("/emails", server.handleListEmails).Methods(http.MethodGet)
	apiRouter.HandleFunc("/emails", server.handleCreateEmail).Methods(http.MethodPost)
	apiRouter.HandleFunc("/emails/bulk", server.handleBulkUpdate).Methods(http.MethodPatch)
	apiRouter.HandleFunc("/tags", server.handleListTags).Methods(http.MethodGet)
	apiRouter.HandleFunc("/tags", server.handleCreateTag).Methods(http.MethodPost)
	apiRouter.HandleFunc("/folders", server.handleListFolders).Methods(http.MethodGet)
	apiRouter.HandleFunc("/folders", server.handleCreateFolder).Methods(http.MethodPost)
	apiRouter.HandleFunc("/events", server.handleListEvents).Methods(http.MethodGet)
	apiRouter.HandleFunc("/events", server.handleCreateEvent).Methods(http.MethodPost)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		server.respondError(w, http.StatusNotFound, "not found")
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		server.respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	server.handler = withCORS(router)
	return server
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// withCORS allows any origin, method and header. Preflight requests are
// answered here so they never reach the method-restricted routes.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := w.Header()
		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		} else {
			header.Add("Vary", "Origin")
			header.Set("Access-Control-Allow-Credentials", "true")
		}
		header.Set("Access-Control-Allow-Origin", origin)

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			header.Set("Access-Control-Allow-Methods", "GET, POST, PATCH, PUT, DELETE, OPTIONS")
			if requested := r.Header.Get("Access-Control-Request-Headers"); requested != "" {
				header.Set("Access-Control-Allow-Headers", requested)
			}
			header.Set("Access-Control-Max-Age", "600")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"message": "HoloMail backend running"})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondText(w, http.StatusOK, "ok")
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn("readiness check failed", "error", err)
		s.respondText(w, http.StatusServiceUnavailable, "not ready")
		return
	}
	s.respondText(w, http.StatusOK, "ready")
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	stats := s.hub.Stats()
	var b strings.Builder
	fmt.Fprintf(&b, "holomail_realtime_connections %d\n", stats.Connections)
	fmt.Fprintf(&b, "holomail_realtime_broadcasts_total %d\n", stats.Broadcasts)
	fmt.Fprintf(&b, "holomail_realtime_deliveries_total %d\n", stats.Deliveries)
	fmt.Fprintf(&b, "holomail_realtime_evictions_total %d\n", stats.Evictions)
	s.respondText(w, http.StatusOK, b.String())
}

type diagnostics struct {
	Backend          string   `json:"backend"`
	Database         string   `json:"database"`
	DatabaseURL      string   `json:"database_url"`
	DatabaseName     string   `json:"database_name"`
	ConnectionStatus string   `json:"connection_status"`
	Collections      []string `json:"collections"`
}

// handleDiagnostics always answers 200; problems are reported in the body.
func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	report := diagnostics{
		Backend:          "running",
		Database:         "not available",
		DatabaseURL:      "not set",
		DatabaseName:     s.cfg.DatabaseName,
		ConnectionStatus: "not connected",
		Collections:      []string{},
	}
	if s.cfg.DatabaseURL != "" {
		report.DatabaseURL = "set"
	}
	if s.store == nil {
		s.respondJSON(w, http.StatusOK, report)
		return
	}

	report.Database = "available (" + s.store.Backend() + ")"
	if err := s.store.Ping(r.Context()); err != nil {
		report.Database = "error: " + truncate(err.Error(), 50)
		s.respondJSON(w, http.StatusOK, report)
		return
	}
	report.ConnectionStatus = "connected"

	collections, err := s.store.Collections(r.Context())
	if err != nil {
		report.Database = "connected but error: " + truncate(err.Error(), 50)
		s.respondJSON(w, http.StatusOK, report)
		return
	}
	if len(collections) > maxDiagnosticCollections {
		collections = collections[:maxDiagnosticCollections]
	}
	report.Collections = collections
	report.Database = "connected and working (" + s.store.Backend() + ")"
	s.respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleSchema(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, s.schemas.Catalogue())
}

// readValidated reads the capped request body and checks it against the
// named schema. On failure the response has already been written.
func (s *Server) readValidated(w http.ResponseWriter, r *http.Request, name schema.Name, dst any) bool {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		s.respondError(w, http.StatusBadRequest, "unable to read body")
		return false
	}

	if err := s.schemas.Validate(name, body); err != nil {
		var verr *schema.ValidationError
		switch {
		case errors.Is(err, schema.ErrMalformed):
			s.respondError(w, http.StatusBadRequest, "invalid JSON")
		case errors.As(err, &verr):
			s.respondValidation(w, verr.Details)
		default:
			s.logger.Error("validate request", "schema", name, "error", err)
			s.respondError(w, http.StatusInternalServerError, "unable to validate request")
		}
		return false
	}

	if err := json.Unmarshal(body, dst); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON")
		return false
	}
	return true
}

// respondServiceError maps an error returned by the mailbox service.
func (s *Server) respondServiceError(w http.ResponseWriter, op string, err error) {
	var verr *mailbox.ValidationError
	if errors.As(err, &verr) {
		s.respondValidation(w, []schema.Detail{{Location: "/" + verr.Field, Message: verr.Message}})
		return
	}
	if errors.Is(err, context.Canceled) {
		return
	}
	s.logger.Error(op, "error", err)
	s.respondError(w, http.StatusInternalServerError, "unable to "+op)
}

func (s *Server) respondValidation(w http.ResponseWriter, details []schema.Detail) {
	s.respondJSON(w, http.StatusUnprocessableEntity, map[string]any{
		"error":  "validation_failed",
		"detail": details,
	})
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) respondText(w http.ResponseWriter, status int, payload string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(payload))
}

// truncate keeps at most n runes of s.
func truncate(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
