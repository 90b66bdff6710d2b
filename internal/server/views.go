package server

import (
	"time"

	"github.com/daejeonsafe/safenet/internal/database"
)

// personView is the API rendering of a person record. Nullable columns
// become pointers so absent values serialize as null.
type personView struct {
	ID            string              `json:"id"`
	Name          string              `json:"name"`
	Age           *int64              `json:"age"`
	Gender        string              `json:"gender"`
	Location      string              `json:"location"`
	Description   string              `json:"description"`
	DescriptionEN *string             `json:"description_en"`
	PhotoData     string              `json:"photo_data,omitempty"`
	Priority      string              `json:"priority"`
	Category      string              `json:"category"`
	RiskFactors   []string            `json:"risk_factors"`
	Features      map[string][]string `json:"features"`
	Lat           *float64            `json:"lat"`
	Lng           *float64            `json:"lng"`
	Status        string              `json:"status"`
	Source        string              `json:"source"`
	OccurredAt    string              `json:"occurred_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

func toPersonView(p *database.Person) personView {
	v := personView{
		ID:          p.ID,
		Name:        p.Name,
		Gender:      p.Gender,
		Location:    p.Location,
		Description: p.Description,
		PhotoData:   p.PhotoData,
		Priority:    p.Priority,
		Category:    p.Category,
		RiskFactors: p.RiskFactors,
		Features:    p.Features,
		Status:      p.Status,
		Source:      p.Source,
		OccurredAt:  p.OccurredAt,
		UpdatedAt:   p.UpdatedAt,
	}
	if p.Age.Valid {
		v.Age = &p.Age.Int64
	}
	if p.DescriptionEN.Valid {
		v.DescriptionEN = &p.DescriptionEN.String
	}
	if p.Lat.Valid && p.Lng.Valid {
		v.Lat = &p.Lat.Float64
		v.Lng = &p.Lng.Float64
	}
	return v
}

// sightingView is the API rendering of a sighting report.
type sightingView struct {
	ID              int64      `json:"id"`
	PersonID        string     `json:"person_id"`
	ReporterID      string     `json:"reporter_id"`
	Lat             *float64   `json:"lat"`
	Lng             *float64   `json:"lng"`
	Description     string     `json:"description"`
	ConfidenceLevel string     `json:"confidence_level"`
	Status          string     `json:"status"`
	ReviewNotes     *string    `json:"review_notes"`
	ReportedAt      time.Time  `json:"reported_at"`
	ReviewedAt      *time.Time `json:"reviewed_at"`
}

func toSightingView(r *database.SightingReport) sightingView {
	v := sightingView{
		ID:              r.ID,
		PersonID:        r.PersonID,
		ReporterID:      r.ReporterID,
		Description:     r.Description,
		ConfidenceLevel: r.ConfidenceLevel,
		Status:          r.Status,
		ReportedAt:      r.ReportedAt,
	}
	if r.ReporterLat.Valid && r.ReporterLng.Valid {
		v.Lat = &r.ReporterLat.Float64
		v.Lng = &r.ReporterLng.Float64
	}
	if r.ReviewNotes.Valid {
		v.ReviewNotes = &r.ReviewNotes.String
	}
	if r.ReviewedAt.Valid {
		v.ReviewedAt = &r.ReviewedAt.Time
	}
	return v
}
