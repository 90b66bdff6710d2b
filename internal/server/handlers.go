package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/daejeonsafe/safenet/internal/database"
	"github.com/daejeonsafe/safenet/internal/notify"
	"github.com/daejeonsafe/safenet/internal/realtime"
)

const defaultListLimit = 100

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "ok"
	if err := s.store.Ping(ctx); err != nil {
		dbStatus = "unavailable"
	}

	enrichStatus := "unavailable"
	if s.enricher != nil && s.enricher.Health(ctx) {
		enrichStatus = "ok"
	}

	body := map[string]any{
		"status":      "ok",
		"database":    dbStatus,
		"enrichment":  enrichStatus,
		"cache":       s.cache.Stats(),
		"connections": s.registry.Stats(),
	}
	status := http.StatusOK
	if dbStatus != "ok" {
		body["status"] = "degraded"
		status = http.StatusServiceUnavailable
	}
	s.respondJSON(w, status, body)
}

func (s *Server) handleListPersons(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := database.PersonFilter{
		Status:       q.Get("status"),
		Priority:     q.Get("priority"),
		Category:     q.Get("category"),
		MappableOnly: q.Get("mappable") == "true",
		Limit:        defaultListLimit,
	}
	if filter.Status == "" {
		filter.Status = database.StatusActive
	}
	if v, err := strconv.Atoi(q.Get("limit")); err == nil && v > 0 {
		filter.Limit = v
	}
	if v, err := strconv.Atoi(q.Get("offset")); err == nil && v > 0 {
		filter.Offset = v
	}

	persons, err := s.store.ListPersons(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list persons", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to list persons")
		return
	}

	views := make([]personView, len(persons))
	for i := range persons {
		views[i] = toPersonView(&persons[i])
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"total":   len(views),
		"persons": views,
	})
}

func (s *Server) handleGetPerson(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	person, err := s.store.GetPerson(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "person not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to load person", "person_id", id, "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to load person")
		return
	}

	sightings, err := s.store.RecentSightings(r.Context(), id, 10)
	if err != nil {
		s.logger.Warn("failed to load sightings", "person_id", id, "error", err)
	}
	sightingViews := make([]sightingView, len(sightings))
	for i := range sightings {
		sightingViews[i] = toSightingView(&sightings[i])
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"person":    toPersonView(person),
		"sightings": sightingViews,
	})
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Statistics(r.Context())
	if err != nil {
		s.logger.Error("failed to compute statistics", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to compute statistics")
		return
	}
	s.respondJSON(w, http.StatusOK, stats)
}

type registerTokenRequest struct {
	Token      string   `json:"token"`
	DriverID   string   `json:"driver_id"`
	DriverName string   `json:"driver_name"`
	Platform   string   `json:"platform"`
	DeviceInfo string   `json:"device_info"`
	Lat        *float64 `json:"lat"`
	Lng        *float64 `json:"lng"`
}

func (s *Server) handleRegisterToken(w http.ResponseWriter, r *http.Request) {
	var req registerTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Token == "" || req.DriverID == "" {
		s.respondError(w, http.StatusBadRequest, "token and driver_id are required")
		return
	}

	token := &database.DeviceToken{
		Token:      req.Token,
		DriverID:   req.DriverID,
		DriverName: req.DriverName,
		Platform:   req.Platform,
		DeviceInfo: req.DeviceInfo,
		Active:     true,
	}
	if req.Lat != nil && req.Lng != nil {
		token.LocationLat = sql.NullFloat64{Float64: *req.Lat, Valid: true}
		token.LocationLng = sql.NullFloat64{Float64: *req.Lng, Valid: true}
	}

	if err := s.store.SaveDeviceToken(r.Context(), token); err != nil {
		s.logger.Error("failed to save device token", "driver_id", req.DriverID, "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to register token")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]string{"status": "registered"})
}

type reportSightingRequest struct {
	PersonID        string   `json:"person_id"`
	ReporterID      string   `json:"reporter_id"`
	Lat             *float64 `json:"lat"`
	Lng             *float64 `json:"lng"`
	Description     string   `json:"description"`
	PhotoData       string   `json:"photo_data"`
	ConfidenceLevel string   `json:"confidence_level"`
}

func (s *Server) handleReportSighting(w http.ResponseWriter, r *http.Request) {
	var req reportSightingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PersonID == "" {
		s.respondError(w, http.StatusBadRequest, "person_id is required")
		return
	}

	if _, err := s.store.GetPerson(r.Context(), req.PersonID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "person not found")
			return
		}
		s.logger.Error("failed to load person", "person_id", req.PersonID, "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to file report")
		return
	}

	report := &database.SightingReport{
		PersonID:        req.PersonID,
		ReporterID:      req.ReporterID,
		Description:     req.Description,
		PhotoData:       req.PhotoData,
		ConfidenceLevel: req.ConfidenceLevel,
		Status:          database.SightingPending,
	}
	if req.Lat != nil && req.Lng != nil {
		report.ReporterLat = sql.NullFloat64{Float64: *req.Lat, Valid: true}
		report.ReporterLng = sql.NullFloat64{Float64: *req.Lng, Valid: true}
	}

	id, err := s.store.InsertSightingReport(r.Context(), report)
	if err != nil {
		s.logger.Error("failed to insert sighting report", "person_id", req.PersonID, "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to file report")
		return
	}

	location := ""
	if req.Lat != nil && req.Lng != nil {
		location = strconv.FormatFloat(*req.Lat, 'f', 5, 64) + "," + strconv.FormatFloat(*req.Lng, 'f', 5, 64)
	}
	s.registry.Broadcast(realtime.NewSightingReport(id, req.PersonID, location), realtime.ChannelAdmin)

	s.respondJSON(w, http.StatusCreated, map[string]any{"report_id": id, "status": database.SightingPending})
}

type reviewSightingRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

func (s *Server) handleReviewSighting(w http.ResponseWriter, r *http.Request) {
	reportID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid report id")
		return
	}

	var req reviewSightingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Status != database.SightingConfirmed && req.Status != database.SightingRejected {
		s.respondError(w, http.StatusBadRequest, "status must be CONFIRMED or REJECTED")
		return
	}

	report, err := s.store.ReviewSightingReport(r.Context(), reportID, req.Status, req.Notes)
	if errors.Is(err, database.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "report not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to review sighting", "report_id", reportID, "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to review report")
		return
	}

	if req.Status == database.SightingConfirmed {
		name := ""
		if person, err := s.store.GetPerson(r.Context(), report.PersonID); err == nil {
			name = person.Name
		}
		s.registry.Broadcast(realtime.PersonFound(report.PersonID, name))
	}

	s.respondJSON(w, http.StatusOK, toSightingView(report))
}

type sendNotificationRequest struct {
	PersonID string `json:"person_id"`
	Message  string `json:"message"`
}

func (s *Server) handleSendNotification(w http.ResponseWriter, r *http.Request) {
	if s.dispatcher == nil {
		s.respondError(w, http.StatusServiceUnavailable, "push delivery is not configured")
		return
	}

	var req sendNotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PersonID == "" || req.Message == "" {
		s.respondError(w, http.StatusBadRequest, "person_id and message are required")
		return
	}

	person, err := s.store.GetPerson(r.Context(), req.PersonID)
	if errors.Is(err, database.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "person not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to load person", "person_id", req.PersonID, "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to send notification")
		return
	}

	outcome := s.dispatcher.Send(r.Context(), person, req.Message)
	switch outcome.Kind {
	case notify.Delivered:
		s.respondJSON(w, http.StatusOK, map[string]any{
			"status":  "sent",
			"success": outcome.Success,
			"failure": outcome.Failure,
		})
	case notify.NoTargets:
		s.respondJSON(w, http.StatusOK, map[string]any{"status": "no_targets"})
	default:
		s.respondError(w, http.StatusBadGateway, "push delivery failed")
	}
}

func (s *Server) handleForceUpdate(w http.ResponseWriter, r *http.Request) {
	added, updated, err := s.updater.RunOnce(r.Context())
	if err != nil {
		s.logger.Error("forced update failed", "error", err)
		s.respondError(w, http.StatusBadGateway, "forced update failed")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]int{"new": added, "updated": updated})
}

type translateRequest struct {
	PersonID string `json:"person_id"`
}

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	if s.translator == nil {
		s.respondError(w, http.StatusServiceUnavailable, "translation is not configured")
		return
	}

	var req translateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PersonID == "" {
		s.respondError(w, http.StatusBadRequest, "person_id is required")
		return
	}

	person, err := s.store.GetPerson(r.Context(), req.PersonID)
	if errors.Is(err, database.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "person not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to load person", "person_id", req.PersonID, "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to translate")
		return
	}

	if person.DescriptionEN.Valid {
		s.respondJSON(w, http.StatusOK, map[string]any{
			"person_id":   person.ID,
			"translation": person.DescriptionEN.String,
			"cached":      true,
		})
		return
	}
	if person.Description == "" {
		s.respondError(w, http.StatusUnprocessableEntity, "person has no description")
		return
	}

	translation, err := s.translator.Paraphrase(r.Context(), person.Description)
	if err != nil {
		s.logger.Error("translation failed", "person_id", person.ID, "error", err)
		s.respondError(w, http.StatusBadGateway, "translation failed")
		return
	}

	person.DescriptionEN = sql.NullString{String: translation, Valid: true}
	if err := s.store.UpsertPerson(r.Context(), person); err != nil {
		s.logger.Warn("failed to cache translation", "person_id", person.ID, "error", err)
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"person_id":   person.ID,
		"translation": translation,
		"cached":      false,
	})
}
