package database

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Person lifecycle states.
const (
	StatusActive   = "ACTIVE"
	StatusInactive = "INACTIVE"
	StatusFound    = "FOUND"
	StatusDeleted  = "DELETED"
)

// Approval states for user-submitted cases. Upstream-sourced cases are
// implicitly approved and persisted as such.
const (
	ApprovalPending  = "PENDING"
	ApprovalApproved = "APPROVED"
	ApprovalRejected = "REJECTED"
)

// Record provenance.
const (
	SourceUpstreamRegistry = "UPSTREAM_REGISTRY"
	SourceUserReport       = "USER_REPORT"
)

// Priority tiers. URGENT is accepted from the enrichment service and
// treated like HIGH by the notification path.
const (
	PriorityHigh   = "HIGH"
	PriorityMedium = "MEDIUM"
	PriorityLow    = "LOW"
	PriorityUrgent = "URGENT"
)

// Derived case categories.
const (
	CategoryPreschoolChild         = "preschool-child"
	CategorySchoolAgeChild         = "school-age-child"
	CategoryDementiaPatient        = "dementia-patient"
	CategoryElder                  = "elder"
	CategoryIntellectualDisability = "intellectual-disability"
	CategoryAutism                 = "autism"
	CategoryMentalDisorder         = "mental-disorder"
	CategoryAdultRunaway           = "adult-runaway"
	CategoryAdult                  = "adult"
	CategoryOther                  = "other"
)

// Sighting report review states.
const (
	SightingPending   = "PENDING"
	SightingConfirmed = "CONFIRMED"
	SightingRejected  = "REJECTED"
)

// StringList is a JSON-encoded list column ([]string).
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		l = StringList{}
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal string list: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(src any) error {
	return scanJSON(src, l, "string list")
}

// FeatureMap is a JSON-encoded mapping from feature class to values.
type FeatureMap map[string][]string

// Value implements driver.Valuer.
func (m FeatureMap) Value() (driver.Value, error) {
	if m == nil {
		m = FeatureMap{}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal feature map: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (m *FeatureMap) Scan(src any) error {
	return scanJSON(src, m, "feature map")
}

func scanJSON(src, dst any, what string) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("cannot scan %T into %s", src, what)
	}
}

// Person is one missing-person case. Lat/Lng are nullable: NULL means the
// case could not be placed on the map, which is a valid state rather than
// an error. The ID is stable across repeated polls of the same upstream
// record, so re-ingestion upserts instead of duplicating.
type Person struct {
	ID             string          `db:"id"`
	Name           string          `db:"name"`
	Age            sql.NullInt64   `db:"age"`
	Gender         string          `db:"gender"`
	Location       string          `db:"location"`
	Description    string          `db:"description"`
	DescriptionEN  sql.NullString  `db:"description_en"`
	PhotoData      string          `db:"photo_data"`
	Priority       string          `db:"priority"`
	Category       string          `db:"category"`
	RiskFactors    StringList      `db:"risk_factors"`
	Features       FeatureMap      `db:"features"`
	Lat            sql.NullFloat64 `db:"lat"`
	Lng            sql.NullFloat64 `db:"lng"`
	Status         string          `db:"status"`
	ApprovalStatus string          `db:"approval_status"`
	Source         string          `db:"source"`
	OccurredAt     string          `db:"occurred_at"`
	CreatedAt      time.Time       `db:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

// Urgent reports whether the record qualifies for push notification.
func (p *Person) Urgent() bool {
	return p.Priority == PriorityHigh || p.Priority == PriorityUrgent
}

// DeviceToken is a registered push-notification target. Tokens are
// deactivated, never deleted, when delivery repeatedly fails.
type DeviceToken struct {
	ID           int64           `db:"id"`
	Token        string          `db:"token"`
	DriverID     string          `db:"driver_id"`
	DriverName   string          `db:"driver_name"`
	Platform     string          `db:"platform"`
	DeviceInfo   string          `db:"device_info"`
	LocationLat  sql.NullFloat64 `db:"location_lat"`
	LocationLng  sql.NullFloat64 `db:"location_lng"`
	Active       bool            `db:"active"`
	RegisteredAt time.Time       `db:"registered_at"`
	LastActive   time.Time       `db:"last_active"`
}

// SightingReport is a citizen-submitted observation of a missing person.
// Confirming a report transitions the parent record to FOUND.
type SightingReport struct {
	ID              int64           `db:"id"`
	PersonID        string          `db:"person_id"`
	ReporterID      string          `db:"reporter_id"`
	ReporterLat     sql.NullFloat64 `db:"reporter_lat"`
	ReporterLng     sql.NullFloat64 `db:"reporter_lng"`
	Description     string          `db:"description"`
	PhotoData       string          `db:"photo_data"`
	ConfidenceLevel string          `db:"confidence_level"`
	Status          string          `db:"status"`
	ReviewNotes     sql.NullString  `db:"review_notes"`
	ReportedAt      time.Time       `db:"reported_at"`
	ReviewedAt      sql.NullTime    `db:"reviewed_at"`
}

// Notification is a delivery audit row for one push dispatch attempt.
type Notification struct {
	ID           int64          `db:"id"`
	PersonID     string         `db:"person_id"`
	Message      string         `db:"message"`
	Priority     string         `db:"priority"`
	TargetCount  int            `db:"target_count"`
	SuccessCount int            `db:"success_count"`
	FailureCount int            `db:"failure_count"`
	ErrorMessage sql.NullString `db:"error_message"`
	SentAt       time.Time      `db:"sent_at"`
}

// APIRequestLog records one outbound collaborator call for health and
// statistics reporting.
type APIRequestLog struct {
	ID             int64          `db:"id"`
	Endpoint       string         `db:"endpoint"`
	Method         string         `db:"method"`
	ResultCount    int            `db:"result_count"`
	Success        bool           `db:"success"`
	ResponseTimeMS int64          `db:"response_time_ms"`
	ErrorMessage   sql.NullString `db:"error_message"`
	RequestedAt    time.Time      `db:"requested_at"`
}

// DriverLocation is one position sample reported over the driver channel.
type DriverLocation struct {
	ID         int64           `db:"id"`
	DriverID   string          `db:"driver_id"`
	Lat        float64         `db:"lat"`
	Lng        float64         `db:"lng"`
	Accuracy   sql.NullFloat64 `db:"accuracy"`
	Speed      sql.NullFloat64 `db:"speed"`
	Heading    sql.NullFloat64 `db:"heading"`
	RecordedAt time.Time       `db:"recorded_at"`
}

// AnalyticsSnapshot is a periodically computed summary broadcast to admin
// clients.
type AnalyticsSnapshot struct {
	ID            int64     `db:"id"`
	TotalActive   int       `db:"total_active"`
	HighPriority  int       `db:"high_priority"`
	ActiveDevices int       `db:"active_devices"`
	TodayReports  int       `db:"today_reports"`
	CreatedAt     time.Time `db:"created_at"`
}

// Statistics is the aggregate snapshot served by the statistics endpoint
// and the request_stats WebSocket message.
type Statistics struct {
	TotalActive          int            `json:"total_active"`
	HighPriority         int            `json:"high_priority"`
	ActiveDevices        int            `json:"active_devices"`
	TodayNotifications   int            `json:"today_notifications"`
	TodayReports         int            `json:"today_reports"`
	PriorityDistribution map[string]int `json:"priority_distribution"`
	CategoryDistribution map[string]int `json:"category_distribution"`
}
