package enrich

import (
	"context"
	"log/slog"

	"github.com/daejeonsafe/safenet/internal/safe182"
)

// BatchProcessor is the enrichment service contract consumed by the
// Enricher.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, records []safe182.RawPerson) ([]Result, error)
	Health(ctx context.Context) bool
}

// Enricher classifies raw records through the gateway, degrading to the
// rule-based fallback when the service is unreachable so ingestion never
// blocks on it.
type Enricher struct {
	gateway BatchProcessor
	logger  *slog.Logger
}

// NewEnricher creates an enricher over the given gateway.
func NewEnricher(gateway BatchProcessor, logger *slog.Logger) *Enricher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Enricher{
		gateway: gateway,
		logger:  logger.With("component", "enricher"),
	}
}

// EnrichBatch returns one result per raw record, in order. The degraded
// flag reports that the gateway was unavailable and rule-based results
// were substituted.
func (e *Enricher) EnrichBatch(ctx context.Context, records []safe182.RawPerson) (results []Result, degraded bool) {
	if len(records) == 0 {
		return nil, false
	}

	results, err := e.gateway.ProcessBatch(ctx, records)
	if err == nil {
		return results, false
	}

	e.logger.WarnContext(ctx, "Enrichment service unavailable, using rule-based fallback",
		"error", err, "records", len(records))

	results = make([]Result, 0, len(records))
	for _, raw := range records {
		results = append(results, Fallback(raw))
	}
	return results, true
}

// Health reports whether the enrichment service is reachable.
func (e *Enricher) Health(ctx context.Context) bool {
	return e.gateway.Health(ctx)
}
