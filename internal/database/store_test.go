package database

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) Store {
	t.Helper()

	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { CloseDB(db) })

	return NewStore(db, nil)
}

func testPerson(id string) *Person {
	return &Person{
		ID:             id,
		Name:           "김철수",
		Age:            sql.NullInt64{Int64: 7, Valid: true},
		Gender:         "남자",
		Location:       "대전광역시 서구 둔산동",
		Description:    "파란 티셔츠",
		Priority:       PriorityHigh,
		Category:       CategoryPreschoolChild,
		RiskFactors:    StringList{"어린이(10세 이하)"},
		Features:       FeatureMap{"clothing": {"티셔츠"}},
		Status:         StatusActive,
		ApprovalStatus: ApprovalApproved,
		Source:         SourceUpstreamRegistry,
		OccurredAt:     "2026-08-01",
	}
}

func TestUpsertPersonIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)

	p := testPerson("p1")
	if err := store.UpsertPerson(ctx, p); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	first, err := store.GetPerson(ctx, "p1")
	if err != nil {
		t.Fatalf("GetPerson: %v", err)
	}

	time.Sleep(10 * time.Millisecond)
	p.Description = "파란 티셔츠, 검은 바지"
	if err := store.UpsertPerson(ctx, p); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	second, err := store.GetPerson(ctx, "p1")
	if err != nil {
		t.Fatalf("GetPerson after update: %v", err)
	}
	if second.Description != "파란 티셔츠, 검은 바지" {
		t.Errorf("description = %q", second.Description)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("created_at changed on update: %v -> %v", first.CreatedAt, second.CreatedAt)
	}

	ids, err := store.ExistingActiveIDs(ctx)
	if err != nil {
		t.Fatalf("ExistingActiveIDs: %v", err)
	}
	if len(ids) != 1 {
		t.Errorf("active ids = %d, want 1", len(ids))
	}
}

func TestUpsertPreservesTranslation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)

	p := testPerson("p1")
	p.DescriptionEN = sql.NullString{String: "blue t-shirt", Valid: true}
	if err := store.UpsertPerson(ctx, p); err != nil {
		t.Fatal(err)
	}

	// A later poll cycle carries no translation.
	refreshed := testPerson("p1")
	if err := store.UpsertPerson(ctx, refreshed); err != nil {
		t.Fatal(err)
	}

	got, err := store.GetPerson(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if !got.DescriptionEN.Valid || got.DescriptionEN.String != "blue t-shirt" {
		t.Errorf("cached translation lost: %+v", got.DescriptionEN)
	}
}

func TestGetPersonNotFound(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	if _, err := store.GetPerson(context.Background(), "nope"); err != ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListPersonsFilters(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)

	high := testPerson("p-high")
	low := testPerson("p-low")
	low.Priority = PriorityLow
	low.Lat = sql.NullFloat64{Float64: 36.35, Valid: true}
	low.Lng = sql.NullFloat64{Float64: 127.38, Valid: true}
	for _, p := range []*Person{high, low} {
		if err := store.UpsertPerson(ctx, p); err != nil {
			t.Fatal(err)
		}
	}

	got, err := store.ListPersons(ctx, PersonFilter{Status: StatusActive, Priority: PriorityHigh, Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "p-high" {
		t.Errorf("priority filter returned %d rows", len(got))
	}

	got, err = store.ListPersons(ctx, PersonFilter{Status: StatusActive, MappableOnly: true, Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "p-low" {
		t.Errorf("mappable filter returned %d rows", len(got))
	}
}

func TestDeviceTokenLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)

	token := &DeviceToken{Token: "tok-1", DriverID: "d1", Platform: "android", Active: true}
	if err := store.SaveDeviceToken(ctx, token); err != nil {
		t.Fatal(err)
	}
	// Re-registration of the same token must not duplicate it.
	if err := store.SaveDeviceToken(ctx, token); err != nil {
		t.Fatal(err)
	}

	active, err := store.ActiveDeviceTokens(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 {
		t.Fatalf("active tokens = %d, want 1", len(active))
	}

	if err := store.DeactivateDeviceToken(ctx, "tok-1"); err != nil {
		t.Fatal(err)
	}
	active, err = store.ActiveDeviceTokens(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 0 {
		t.Errorf("active tokens after deactivation = %d, want 0", len(active))
	}
}

func TestReviewSightingConfirmMarksPersonFound(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.UpsertPerson(ctx, testPerson("p1")); err != nil {
		t.Fatal(err)
	}
	id, err := store.InsertSightingReport(ctx, &SightingReport{
		PersonID:        "p1",
		ReporterID:      "d1",
		Description:     "둔산동에서 목격",
		ConfidenceLevel: "high",
		Status:          SightingPending,
	})
	if err != nil {
		t.Fatal(err)
	}

	report, err := store.ReviewSightingReport(ctx, id, SightingConfirmed, "verified")
	if err != nil {
		t.Fatal(err)
	}
	if report.Status != SightingConfirmed || !report.ReviewedAt.Valid {
		t.Errorf("report = %+v", report)
	}

	person, err := store.GetPerson(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if person.Status != StatusFound {
		t.Errorf("person status = %s, want FOUND", person.Status)
	}
}

func TestReviewSightingRejectKeepsPersonActive(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.UpsertPerson(ctx, testPerson("p1")); err != nil {
		t.Fatal(err)
	}
	id, err := store.InsertSightingReport(ctx, &SightingReport{
		PersonID: "p1", Status: SightingPending,
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := store.ReviewSightingReport(ctx, id, SightingRejected, "not them"); err != nil {
		t.Fatal(err)
	}

	person, err := store.GetPerson(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if person.Status != StatusActive {
		t.Errorf("person status = %s, want ACTIVE", person.Status)
	}
}

func TestStatistics(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.UpsertPerson(ctx, testPerson("p1")); err != nil {
		t.Fatal(err)
	}
	medium := testPerson("p2")
	medium.Priority = PriorityMedium
	medium.Category = CategoryAdult
	if err := store.UpsertPerson(ctx, medium); err != nil {
		t.Fatal(err)
	}

	stats, err := store.Statistics(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalActive != 2 {
		t.Errorf("total active = %d, want 2", stats.TotalActive)
	}
	if stats.HighPriority != 1 {
		t.Errorf("high priority = %d, want 1", stats.HighPriority)
	}
	if stats.PriorityDistribution[PriorityHigh] != 1 {
		t.Errorf("priority distribution = %v", stats.PriorityDistribution)
	}
}

func TestCleanupOldData(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)

	old := &Notification{
		PersonID: "p1",
		Message:  "m",
		Priority: PriorityHigh,
		SentAt:   time.Now().UTC().Add(-48 * time.Hour),
	}
	if err := store.InsertNotificationLog(ctx, old); err != nil {
		t.Fatal(err)
	}

	removed, err := store.CleanupOldData(ctx, CleanupAges{
		APIRequests:     24 * time.Hour,
		DriverLocations: 24 * time.Hour,
		Notifications:   24 * time.Hour,
	})
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
}
