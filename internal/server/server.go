// Package server exposes the HTTP API and the WebSocket channels for
// admin dashboards and driver devices.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/daejeonsafe/safenet/internal/database"
	"github.com/daejeonsafe/safenet/internal/enrich"
	"github.com/daejeonsafe/safenet/internal/notify"
	"github.com/daejeonsafe/safenet/internal/realtime"
	"github.com/daejeonsafe/safenet/internal/safe182"
)

// Notifier matches the dispatcher's send operation.
type Notifier interface {
	Send(ctx context.Context, person *database.Person, message string) notify.Outcome
}

// Translator produces readable English renderings of Korean feature
// descriptions. Nil when the language model is not configured.
type Translator interface {
	Paraphrase(ctx context.Context, koreanText string) (string, error)
}

// ForceUpdater runs one forced ingestion cycle.
type ForceUpdater interface {
	RunOnce(ctx context.Context) (added, updated int, err error)
}

// Server holds the handler dependencies.
type Server struct {
	store      database.Store
	cache      *safe182.Cache
	enricher   *enrich.Enricher
	registry   *realtime.Registry
	dispatcher Notifier
	translator Translator
	updater    ForceUpdater
	upgrader   websocket.Upgrader
	logger     *slog.Logger
}

// New builds the server. Dispatcher and translator may be nil; the
// corresponding endpoints then report the feature as unavailable.
func New(store database.Store, cache *safe182.Cache, enricher *enrich.Enricher,
	registry *realtime.Registry, dispatcher Notifier, translator Translator,
	updater ForceUpdater, logger *slog.Logger,
) *Server {
	return &Server{
		store:      store,
		cache:      cache,
		enricher:   enricher,
		registry:   registry,
		dispatcher: dispatcher,
		translator: translator,
		updater:    updater,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger.With("component", "server"),
	}
}

// Routes assembles the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/missing_persons", s.handleListPersons)
		r.Get("/person/{id}", s.handleGetPerson)
		r.Get("/statistics", s.handleStatistics)
		r.Post("/register_token", s.handleRegisterToken)
		r.Post("/report_sighting", s.handleReportSighting)
		r.Post("/sightings/{id}/review", s.handleReviewSighting)
		r.Post("/send_notification", s.handleSendNotification)
		r.Post("/force_update", s.handleForceUpdate)
		r.Post("/translate", s.handleTranslate)
	})

	r.Get("/ws/admin", s.handleAdminWS)
	r.Get("/ws/driver/{driverID}", s.handleDriverWS)

	return r
}

// requestLogger logs one line per request, WebSocket upgrades excluded
// since their duration is the connection lifetime.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if websocket.IsWebSocketUpgrade(r) {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start))
	})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to encode response", "error", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, msg string) {
	s.respondJSON(w, status, map[string]string{"error": msg})
}
