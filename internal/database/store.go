package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// ErrNotFound is returned by read paths when no row matches.
var ErrNotFound = errors.New("not found")

// PersonFilter narrows ListPersons results. MappableOnly excludes records
// without coordinates (the "plot on map" view); the plain list view keeps
// them.
type PersonFilter struct {
	Status       string
	Priority     string
	Category     string
	MappableOnly bool
	Limit        int
	Offset       int
}

// CleanupAges holds retention windows for CleanupOldData.
type CleanupAges struct {
	APIRequests     time.Duration
	DriverLocations time.Duration
	Notifications   time.Duration
}

// Store defines the data access interface. Methods accept context.Context
// for cancellation and timeouts.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// UpsertPerson inserts or replaces a person record keyed by id. It is
	// idempotent: repeated calls with identical content leave one row, and
	// the original created_at is preserved on update.
	UpsertPerson(ctx context.Context, p *Person) error

	// ExistingActiveIDs returns the set of ACTIVE person ids, used to
	// classify ingested records as new or updated before persistence.
	ExistingActiveIDs(ctx context.Context) (map[string]struct{}, error)

	// GetPerson retrieves one person by id. Returns ErrNotFound when absent.
	GetPerson(ctx context.Context, id string) (*Person, error)

	// ListPersons retrieves person records matching the filter, most urgent
	// and most recent first.
	ListPersons(ctx context.Context, f PersonFilter) ([]Person, error)

	// SetPersonStatus updates a person's lifecycle status. DELETED is a
	// soft delete: the row stays, active queries exclude it.
	SetPersonStatus(ctx context.Context, id, status string) error

	// SaveDeviceToken registers or refreshes a push target keyed by token.
	SaveDeviceToken(ctx context.Context, t *DeviceToken) error

	// ActiveDeviceTokens returns all currently active push targets.
	ActiveDeviceTokens(ctx context.Context) ([]DeviceToken, error)

	// DeactivateDeviceToken marks a token inactive without deleting it.
	DeactivateDeviceToken(ctx context.Context, token string) error

	// TouchDeviceLocation updates a driver's last-known location and
	// activity timestamp on its registered tokens.
	TouchDeviceLocation(ctx context.Context, driverID string, lat, lng float64) error

	// InsertSightingReport stores a citizen observation and returns its id.
	InsertSightingReport(ctx context.Context, r *SightingReport) (int64, error)

	// ReviewSightingReport sets a report's review status. Confirming it
	// transitions the parent person to FOUND in the same transaction.
	ReviewSightingReport(ctx context.Context, reportID int64, status, notes string) (*SightingReport, error)

	// RecentSightings returns the newest reports for a person.
	RecentSightings(ctx context.Context, personID string, limit int) ([]SightingReport, error)

	// CountSightings returns the number of reports filed for a person.
	CountSightings(ctx context.Context, personID string) (int, error)

	// InsertNotificationLog records one push dispatch attempt.
	InsertNotificationLog(ctx context.Context, n *Notification) error

	// InsertAPIRequestLog records one outbound collaborator call.
	InsertAPIRequestLog(ctx context.Context, l *APIRequestLog) error

	// SaveDriverLocation stores a driver position sample.
	SaveDriverLocation(ctx context.Context, loc *DriverLocation) error

	// SaveAnalyticsSnapshot stores a periodic analytics summary.
	SaveAnalyticsSnapshot(ctx context.Context, s *AnalyticsSnapshot) error

	// Statistics computes the aggregate snapshot for status reporting.
	Statistics(ctx context.Context) (*Statistics, error)

	// CleanupOldData purges audit rows past their retention windows and
	// returns the number of rows removed.
	CleanupOldData(ctx context.Context, ages CleanupAges) (int64, error)
}

// sqlxStore implements Store using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a Store implementation backed by sqlx. It requires a
// connected sqlx.DB instance and a logger.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const upsertPersonQuery = `
INSERT INTO missing_persons (
	id, name, age, gender, location, description, description_en, photo_data,
	priority, category, risk_factors, features, lat, lng,
	status, approval_status, source, occurred_at, created_at, updated_at
) VALUES (
	:id, :name, :age, :gender, :location, :description, :description_en, :photo_data,
	:priority, :category, :risk_factors, :features, :lat, :lng,
	:status, :approval_status, :source, :occurred_at, :created_at, :updated_at
)
ON CONFLICT(id) DO UPDATE SET
	name = excluded.name,
	age = excluded.age,
	gender = excluded.gender,
	location = excluded.location,
	description = excluded.description,
	description_en = COALESCE(excluded.description_en, missing_persons.description_en),
	photo_data = excluded.photo_data,
	priority = excluded.priority,
	category = excluded.category,
	risk_factors = excluded.risk_factors,
	features = excluded.features,
	lat = excluded.lat,
	lng = excluded.lng,
	status = excluded.status,
	approval_status = excluded.approval_status,
	source = excluded.source,
	occurred_at = excluded.occurred_at,
	updated_at = excluded.updated_at`

func (s *sqlxStore) UpsertPerson(ctx context.Context, p *Person) error {
	if p == nil {
		return fmt.Errorf("cannot upsert nil person")
	}
	if p.ID == "" {
		return fmt.Errorf("person must have a non-empty id")
	}

	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	if _, err := s.db.NamedExecContext(ctx, upsertPersonQuery, p); err != nil {
		s.logger.ErrorContext(ctx, "Failed to upsert person", "person_id", p.ID, "error", err)
		return fmt.Errorf("failed to upsert person %s: %w", p.ID, err)
	}
	return nil
}

func (s *sqlxStore) ExistingActiveIDs(ctx context.Context) (map[string]struct{}, error) {
	var ids []string
	if err := s.db.SelectContext(ctx, &ids,
		`SELECT id FROM missing_persons WHERE status = ?`, StatusActive); err != nil {
		return nil, fmt.Errorf("failed to load active ids: %w", err)
	}

	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

func (s *sqlxStore) GetPerson(ctx context.Context, id string) (*Person, error) {
	var p Person
	err := s.db.GetContext(ctx, &p, `SELECT * FROM missing_persons WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get person %s: %w", id, err)
	}
	return &p, nil
}

func (s *sqlxStore) ListPersons(ctx context.Context, f PersonFilter) ([]Person, error) {
	query := `SELECT * FROM missing_persons WHERE 1=1`
	args := []any{}

	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, f.Status)
	} else {
		query += ` AND status != ?`
		args = append(args, StatusDeleted)
	}
	if f.Priority != "" {
		query += ` AND priority = ?`
		args = append(args, f.Priority)
	}
	if f.Category != "" {
		query += ` AND category = ?`
		args = append(args, f.Category)
	}
	if f.MappableOnly {
		query += ` AND lat IS NOT NULL AND lng IS NOT NULL`
	}

	query += ` ORDER BY CASE priority
		WHEN 'URGENT' THEN 0 WHEN 'HIGH' THEN 1 WHEN 'MEDIUM' THEN 2 ELSE 3
	END, created_at DESC`

	if f.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, f.Offset)
	}

	persons := []Person{}
	if err := s.db.SelectContext(ctx, &persons, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list persons: %w", err)
	}
	return persons, nil
}

func (s *sqlxStore) SetPersonStatus(ctx context.Context, id, status string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE missing_persons SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to set status for person %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqlxStore) SaveDeviceToken(ctx context.Context, t *DeviceToken) error {
	if t == nil || t.Token == "" {
		return fmt.Errorf("device token must be non-empty")
	}

	now := time.Now().UTC()
	if t.RegisteredAt.IsZero() {
		t.RegisteredAt = now
	}
	t.LastActive = now
	t.Active = true

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO device_tokens (
			token, driver_id, driver_name, platform, device_info,
			location_lat, location_lng, active, registered_at, last_active
		) VALUES (
			:token, :driver_id, :driver_name, :platform, :device_info,
			:location_lat, :location_lng, 1, :registered_at, :last_active
		)
		ON CONFLICT(token) DO UPDATE SET
			driver_id = excluded.driver_id,
			driver_name = excluded.driver_name,
			platform = excluded.platform,
			device_info = excluded.device_info,
			location_lat = excluded.location_lat,
			location_lng = excluded.location_lng,
			active = 1,
			last_active = excluded.last_active`, t)
	if err != nil {
		return fmt.Errorf("failed to save device token: %w", err)
	}
	return nil
}

func (s *sqlxStore) ActiveDeviceTokens(ctx context.Context) ([]DeviceToken, error) {
	tokens := []DeviceToken{}
	if err := s.db.SelectContext(ctx, &tokens,
		`SELECT * FROM device_tokens WHERE active = 1 ORDER BY last_active DESC`); err != nil {
		return nil, fmt.Errorf("failed to load active device tokens: %w", err)
	}
	return tokens, nil
}

func (s *sqlxStore) DeactivateDeviceToken(ctx context.Context, token string) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE device_tokens SET active = 0 WHERE token = ?`, token); err != nil {
		return fmt.Errorf("failed to deactivate device token: %w", err)
	}
	return nil
}

func (s *sqlxStore) TouchDeviceLocation(ctx context.Context, driverID string, lat, lng float64) error {
	if _, err := s.db.ExecContext(ctx, `
		UPDATE device_tokens
		SET location_lat = ?, location_lng = ?, last_active = ?
		WHERE driver_id = ?`,
		lat, lng, time.Now().UTC(), driverID); err != nil {
		return fmt.Errorf("failed to update device location for driver %s: %w", driverID, err)
	}
	return nil
}

func (s *sqlxStore) InsertSightingReport(ctx context.Context, r *SightingReport) (int64, error) {
	if r == nil || r.PersonID == "" {
		return 0, fmt.Errorf("sighting report must reference a person")
	}
	if r.Status == "" {
		r.Status = SightingPending
	}
	if r.ReportedAt.IsZero() {
		r.ReportedAt = time.Now().UTC()
	}

	res, err := s.db.NamedExecContext(ctx, `
		INSERT INTO sighting_reports (
			person_id, reporter_id, reporter_lat, reporter_lng, description,
			photo_data, confidence_level, status, reported_at
		) VALUES (
			:person_id, :reporter_id, :reporter_lat, :reporter_lng, :description,
			:photo_data, :confidence_level, :status, :reported_at
		)`, r)
	if err != nil {
		return 0, fmt.Errorf("failed to insert sighting report: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read sighting report id: %w", err)
	}
	r.ID = id
	return id, nil
}

func (s *sqlxStore) ReviewSightingReport(ctx context.Context, reportID int64, status, notes string) (*SightingReport, error) {
	if status != SightingConfirmed && status != SightingRejected {
		return nil, fmt.Errorf("invalid review status %q", status)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
				s.logger.ErrorContext(ctx, "Failed to rollback review transaction", "error", rollbackErr)
			}
		}
	}()

	var report SightingReport
	err = tx.GetContext(ctx, &report, `SELECT * FROM sighting_reports WHERE id = ?`, reportID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load sighting report %d: %w", reportID, err)
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
		UPDATE sighting_reports
		SET status = ?, review_notes = ?, reviewed_at = ?
		WHERE id = ?`, status, notes, now, reportID); err != nil {
		return nil, fmt.Errorf("failed to update sighting report %d: %w", reportID, err)
	}

	if status == SightingConfirmed {
		if _, err := tx.ExecContext(ctx, `
			UPDATE missing_persons SET status = ?, updated_at = ? WHERE id = ?`,
			StatusFound, now, report.PersonID); err != nil {
			return nil, fmt.Errorf("failed to mark person %s found: %w", report.PersonID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit review transaction: %w", err)
	}
	tx = nil

	report.Status = status
	report.ReviewNotes = sql.NullString{String: notes, Valid: notes != ""}
	report.ReviewedAt = sql.NullTime{Time: now, Valid: true}
	return &report, nil
}

func (s *sqlxStore) RecentSightings(ctx context.Context, personID string, limit int) ([]SightingReport, error) {
	if limit <= 0 {
		limit = 5
	}
	reports := []SightingReport{}
	if err := s.db.SelectContext(ctx, &reports, `
		SELECT * FROM sighting_reports
		WHERE person_id = ? ORDER BY reported_at DESC LIMIT ?`,
		personID, limit); err != nil {
		return nil, fmt.Errorf("failed to load sightings for person %s: %w", personID, err)
	}
	return reports, nil
}

func (s *sqlxStore) CountSightings(ctx context.Context, personID string) (int, error) {
	var count int
	if err := s.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM sighting_reports WHERE person_id = ?`, personID); err != nil {
		return 0, fmt.Errorf("failed to count sightings for person %s: %w", personID, err)
	}
	return count, nil
}

func (s *sqlxStore) InsertNotificationLog(ctx context.Context, n *Notification) error {
	if n == nil || n.PersonID == "" {
		return fmt.Errorf("notification log must reference a person")
	}
	if n.SentAt.IsZero() {
		n.SentAt = time.Now().UTC()
	}

	if _, err := s.db.NamedExecContext(ctx, `
		INSERT INTO notifications (
			person_id, message, priority, target_count,
			success_count, failure_count, error_message, sent_at
		) VALUES (
			:person_id, :message, :priority, :target_count,
			:success_count, :failure_count, :error_message, :sent_at
		)`, n); err != nil {
		return fmt.Errorf("failed to insert notification log: %w", err)
	}
	return nil
}

func (s *sqlxStore) InsertAPIRequestLog(ctx context.Context, l *APIRequestLog) error {
	if l == nil {
		return fmt.Errorf("cannot insert nil api request log")
	}
	if l.RequestedAt.IsZero() {
		l.RequestedAt = time.Now().UTC()
	}

	if _, err := s.db.NamedExecContext(ctx, `
		INSERT INTO api_requests (
			endpoint, method, result_count, success,
			response_time_ms, error_message, requested_at
		) VALUES (
			:endpoint, :method, :result_count, :success,
			:response_time_ms, :error_message, :requested_at
		)`, l); err != nil {
		return fmt.Errorf("failed to insert api request log: %w", err)
	}
	return nil
}

func (s *sqlxStore) SaveDriverLocation(ctx context.Context, loc *DriverLocation) error {
	if loc == nil || loc.DriverID == "" {
		return fmt.Errorf("driver location must reference a driver")
	}
	if loc.RecordedAt.IsZero() {
		loc.RecordedAt = time.Now().UTC()
	}

	if _, err := s.db.NamedExecContext(ctx, `
		INSERT INTO driver_locations (
			driver_id, lat, lng, accuracy, speed, heading, recorded_at
		) VALUES (
			:driver_id, :lat, :lng, :accuracy, :speed, :heading, :recorded_at
		)`, loc); err != nil {
		return fmt.Errorf("failed to save driver location: %w", err)
	}
	return nil
}

func (s *sqlxStore) SaveAnalyticsSnapshot(ctx context.Context, snap *AnalyticsSnapshot) error {
	if snap == nil {
		return fmt.Errorf("cannot save nil analytics snapshot")
	}
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}

	if _, err := s.db.NamedExecContext(ctx, `
		INSERT INTO analytics_snapshots (
			total_active, high_priority, active_devices, today_reports, created_at
		) VALUES (
			:total_active, :high_priority, :active_devices, :today_reports, :created_at
		)`, snap); err != nil {
		return fmt.Errorf("failed to save analytics snapshot: %w", err)
	}
	return nil
}

func (s *sqlxStore) Statistics(ctx context.Context) (*Statistics, error) {
	stats := &Statistics{
		PriorityDistribution: map[string]int{},
		CategoryDistribution: map[string]int{},
	}

	if err := s.db.GetContext(ctx, &stats.TotalActive,
		`SELECT COUNT(*) FROM missing_persons WHERE status = ?`, StatusActive); err != nil {
		return nil, fmt.Errorf("failed to count active persons: %w", err)
	}
	if err := s.db.GetContext(ctx, &stats.HighPriority, `
		SELECT COUNT(*) FROM missing_persons
		WHERE status = ? AND priority IN (?, ?)`,
		StatusActive, PriorityHigh, PriorityUrgent); err != nil {
		return nil, fmt.Errorf("failed to count high priority persons: %w", err)
	}
	if err := s.db.GetContext(ctx, &stats.ActiveDevices,
		`SELECT COUNT(*) FROM device_tokens WHERE active = 1`); err != nil {
		return nil, fmt.Errorf("failed to count active devices: %w", err)
	}

	todayStart := time.Now().UTC().Truncate(24 * time.Hour)
	if err := s.db.GetContext(ctx, &stats.TodayNotifications,
		`SELECT COUNT(*) FROM notifications WHERE sent_at >= ?`, todayStart); err != nil {
		return nil, fmt.Errorf("failed to count today's notifications: %w", err)
	}
	if err := s.db.GetContext(ctx, &stats.TodayReports,
		`SELECT COUNT(*) FROM sighting_reports WHERE reported_at >= ?`, todayStart); err != nil {
		return nil, fmt.Errorf("failed to count today's reports: %w", err)
	}

	type bucket struct {
		Key   string `db:"key"`
		Count int    `db:"count"`
	}

	var priorities []bucket
	if err := s.db.SelectContext(ctx, &priorities, `
		SELECT priority AS key, COUNT(*) AS count
		FROM missing_persons WHERE status = ? GROUP BY priority`, StatusActive); err != nil {
		return nil, fmt.Errorf("failed to load priority distribution: %w", err)
	}
	for _, b := range priorities {
		stats.PriorityDistribution[b.Key] = b.Count
	}

	var categories []bucket
	if err := s.db.SelectContext(ctx, &categories, `
		SELECT category AS key, COUNT(*) AS count
		FROM missing_persons
		WHERE status = ? AND category != '' GROUP BY category`, StatusActive); err != nil {
		return nil, fmt.Errorf("failed to load category distribution: %w", err)
	}
	for _, b := range categories {
		stats.CategoryDistribution[b.Key] = b.Count
	}

	return stats, nil
}

func (s *sqlxStore) CleanupOldData(ctx context.Context, ages CleanupAges) (int64, error) {
	now := time.Now().UTC()
	var total int64

	purges := []struct {
		query  string
		cutoff time.Time
	}{
		{`DELETE FROM api_requests WHERE requested_at < ?`, now.Add(-ages.APIRequests)},
		{`DELETE FROM notifications WHERE sent_at < ?`, now.Add(-ages.Notifications)},
		{`DELETE FROM driver_locations WHERE recorded_at < ?`, now.Add(-ages.DriverLocations)},
	}

	for _, p := range purges {
		res, err := s.db.ExecContext(ctx, p.query, p.cutoff)
		if err != nil {
			return total, fmt.Errorf("cleanup failed: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil {
			total += n
		}
	}

	return total, nil
}
