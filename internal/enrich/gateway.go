package enrich

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/daejeonsafe/safenet/internal/config"
	"github.com/daejeonsafe/safenet/internal/database"
	"github.com/daejeonsafe/safenet/internal/safe182"
)

// RequestRecorder persists one outbound enrichment call for auditing.
// database.Store satisfies it.
type RequestRecorder interface {
	InsertAPIRequestLog(ctx context.Context, l *database.APIRequestLog) error
}

// Gateway is the HTTP client for the external NER enrichment service.
type Gateway struct {
	baseURL    string
	httpClient *http.Client
	recorder   RequestRecorder
	logger     *slog.Logger
}

// NewGateway creates a gateway client from the given configuration. The
// recorder may be nil to skip request auditing.
func NewGateway(cfg config.EnrichConfig, recorder RequestRecorder, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		recorder:   recorder,
		logger:     logger.With("component", "enrich_gateway"),
	}
}

type processRequest struct {
	RawRecords []safe182.RawPerson `json:"rawRecords"`
}

// ProcessBatch submits raw records for classification and feature
// extraction. Results come back in submission order. Any failure is
// transient; callers fall back to rule-based enrichment.
func (g *Gateway) ProcessBatch(ctx context.Context, records []safe182.RawPerson) ([]Result, error) {
	start := time.Now()
	results, err := g.process(ctx, records)
	g.record(ctx, start, len(results), err)
	return results, err
}

func (g *Gateway) process(ctx context.Context, records []safe182.RawPerson) ([]Result, error) {
	payload, err := json.Marshal(processRequest{RawRecords: records})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal enrichment request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.baseURL+"/api/process_missing_persons", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build enrichment request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("enrichment request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("enrichment service returned status %d", resp.StatusCode)
	}

	var results []Result
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("malformed enrichment response: %w", err)
	}

	if len(results) != len(records) {
		return nil, fmt.Errorf("enrichment returned %d results for %d records",
			len(results), len(records))
	}

	return results, nil
}

// record audits the attempt. Recording survives caller cancellation so a
// failed batch still leaves a row.
func (g *Gateway) record(ctx context.Context, start time.Time, count int, err error) {
	if g.recorder == nil {
		return
	}
	entry := &database.APIRequestLog{
		Endpoint:       "ner/process_missing_persons",
		Method:         http.MethodPost,
		ResultCount:    count,
		Success:        err == nil,
		ResponseTimeMS: time.Since(start).Milliseconds(),
		RequestedAt:    start.UTC(),
	}
	if err != nil {
		entry.ErrorMessage = sql.NullString{String: err.Error(), Valid: true}
	}
	if rerr := g.recorder.InsertAPIRequestLog(context.WithoutCancel(ctx), entry); rerr != nil {
		g.logger.Warn("failed to record enrichment request", "error", rerr)
	}
}

// Health probes the enrichment service, used at startup to decide whether
// to warn about degraded mode.
func (g *Gateway) Health(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/api/health", nil)
	if err != nil {
		return false
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		g.logger.WarnContext(ctx, "Enrichment service unreachable", "error", err)
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}
