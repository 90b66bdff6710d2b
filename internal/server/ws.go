package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/daejeonsafe/safenet/internal/database"
	"github.com/daejeonsafe/safenet/internal/realtime"
)

// inboundMessage is the envelope clients send over WebSocket.
type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func (s *Server) handleAdminWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	s.registry.Register(conn, realtime.ChannelAdmin, "")
	defer s.registry.Unregister(conn)

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		s.handleAdminMessage(r.Context(), conn, msg)
	}
}

func (s *Server) handleAdminMessage(ctx context.Context, conn *websocket.Conn, msg inboundMessage) {
	switch msg.Type {
	case "ping":
		s.registry.TouchPing(conn)
		_ = s.registry.SendTo(conn, realtime.Pong())
	case "request_stats":
		_ = s.registry.SendTo(conn, realtime.StatsUpdate(s.registry.Stats()))
		if stats, err := s.store.Statistics(ctx); err == nil {
			_ = s.registry.SendTo(conn, realtime.AnalyticsUpdate(stats))
		}
	default:
		s.logger.Debug("unknown admin message", "type", msg.Type)
	}
}

func (s *Server) handleDriverWS(w http.ResponseWriter, r *http.Request) {
	driverID := chi.URLParam(r, "driverID")
	if driverID == "" {
		http.Error(w, "driver id is required", http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "driver_id", driverID, "error", err)
		return
	}

	s.registry.Register(conn, realtime.ChannelDriver, driverID)
	defer s.registry.Unregister(conn)

	_ = s.registry.SendTo(conn, realtime.DriverRegistered(driverID))

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		s.handleDriverMessage(r.Context(), conn, driverID, msg)
	}
}

type locationUpdate struct {
	Lat      float64  `json:"lat"`
	Lng      float64  `json:"lng"`
	Accuracy *float64 `json:"accuracy"`
	Speed    *float64 `json:"speed"`
	Heading  *float64 `json:"heading"`
}

type wsSightingReport struct {
	PersonID        string   `json:"person_id"`
	Lat             *float64 `json:"lat"`
	Lng             *float64 `json:"lng"`
	Description     string   `json:"description"`
	ConfidenceLevel string   `json:"confidence_level"`
}

func (s *Server) handleDriverMessage(ctx context.Context, conn *websocket.Conn, driverID string, msg inboundMessage) {
	switch msg.Type {
	case "ping":
		s.registry.TouchPing(conn)
		_ = s.registry.SendTo(conn, realtime.Pong())

	case "location_update":
		var loc locationUpdate
		if err := json.Unmarshal(msg.Data, &loc); err != nil {
			s.logger.Debug("malformed location update", "driver_id", driverID, "error", err)
			return
		}
		s.saveDriverLocation(ctx, driverID, loc)

	case "sighting_report":
		var report wsSightingReport
		if err := json.Unmarshal(msg.Data, &report); err != nil || report.PersonID == "" {
			s.logger.Debug("malformed sighting report", "driver_id", driverID)
			return
		}
		s.fileDriverSighting(ctx, driverID, report)

	default:
		s.logger.Debug("unknown driver message", "driver_id", driverID, "type", msg.Type)
	}
}

func (s *Server) saveDriverLocation(ctx context.Context, driverID string, loc locationUpdate) {
	sample := &database.DriverLocation{
		DriverID:   driverID,
		Lat:        loc.Lat,
		Lng:        loc.Lng,
		RecordedAt: time.Now().UTC(),
	}
	if loc.Accuracy != nil {
		sample.Accuracy.Float64, sample.Accuracy.Valid = *loc.Accuracy, true
	}
	if loc.Speed != nil {
		sample.Speed.Float64, sample.Speed.Valid = *loc.Speed, true
	}
	if loc.Heading != nil {
		sample.Heading.Float64, sample.Heading.Valid = *loc.Heading, true
	}

	if err := s.store.SaveDriverLocation(ctx, sample); err != nil {
		s.logger.Warn("failed to save driver location", "driver_id", driverID, "error", err)
		return
	}
	if err := s.store.TouchDeviceLocation(ctx, driverID, loc.Lat, loc.Lng); err != nil {
		s.logger.Warn("failed to refresh device location", "driver_id", driverID, "error", err)
	}
}

func (s *Server) fileDriverSighting(ctx context.Context, driverID string, report wsSightingReport) {
	row := &database.SightingReport{
		PersonID:        report.PersonID,
		ReporterID:      driverID,
		Description:     report.Description,
		ConfidenceLevel: report.ConfidenceLevel,
		Status:          database.SightingPending,
	}
	location := ""
	if report.Lat != nil && report.Lng != nil {
		row.ReporterLat.Float64, row.ReporterLat.Valid = *report.Lat, true
		row.ReporterLng.Float64, row.ReporterLng.Valid = *report.Lng, true
		location = strconv.FormatFloat(*report.Lat, 'f', 5, 64) + "," + strconv.FormatFloat(*report.Lng, 'f', 5, 64)
	}

	id, err := s.store.InsertSightingReport(ctx, row)
	if err != nil {
		s.logger.Warn("failed to file driver sighting", "driver_id", driverID, "error", err)
		return
	}
	s.registry.Broadcast(realtime.NewSightingReport(id, report.PersonID, location), realtime.ChannelAdmin)
}
