package geocode

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"
)

// Result holds the outcome of a resolution attempt. Unresolved is an
// expected outcome, not an error.
type Result struct {
	Resolved bool
	Lat      float64
	Lng      float64
	Address  string
	Strategy string
}

// Resolver turns free-text addresses into Daejeon coordinates by trying
// a fixed sequence of query variants until one produces an in-region hit.
type Resolver struct {
	geocoder    Geocoder
	minQueryLen int
	logger      *slog.Logger
}

// attempt pairs a strategy label with the query it produced.
type attempt struct {
	strategy string
	query    string
}

// NewResolver wraps a geocoder with the strategy chain. Queries shorter
// than minQueryLen runes are never sent.
func NewResolver(geocoder Geocoder, minQueryLen int, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Resolver{geocoder: geocoder, minQueryLen: minQueryLen, logger: logger}
}

// Resolve attempts each strategy in order and returns the first in-region
// hit. Geocoder failures on one variant do not abort the chain.
func (r *Resolver) Resolve(ctx context.Context, address string) Result {
	address = strings.TrimSpace(address)
	if address == "" {
		return Result{}
	}

	if excludedRegion(address) {
		r.logger.Debug("address names another region, skipping geocode", "address", address)
		return Result{}
	}

	seen := make(map[string]struct{})
	for _, a := range r.attempts(address) {
		if a.query == "" || utf8.RuneCountInString(a.query) < r.minQueryLen {
			continue
		}
		if _, dup := seen[a.query]; dup {
			continue
		}
		seen[a.query] = struct{}{}

		candidates, err := r.geocoder.Search(ctx, a.query)
		if err != nil {
			if ctx.Err() != nil {
				return Result{}
			}
			r.logger.Warn("geocode lookup failed", "strategy", a.strategy, "query", a.query, "error", err)
			continue
		}
		if len(candidates) == 0 {
			continue
		}

		hit := candidates[0]
		if !hasRegionMarker(hit.Address) {
			r.logger.Debug("geocode hit outside region", "strategy", a.strategy, "address", hit.Address)
			continue
		}

		return Result{
			Resolved: true,
			Lat:      hit.Lat,
			Lng:      hit.Lng,
			Address:  hit.Address,
			Strategy: a.strategy,
		}
	}

	return Result{}
}

// attempts builds the ordered query variants for an address. Later
// variants are progressively more aggressive canonicalizations.
func (r *Resolver) attempts(address string) []attempt {
	attempts := []attempt{
		{"cleaned", cleanAddress(address)},
		{"original", address},
		{"district", districtNeighborhood(address)},
		{"landmark", landmarkAddress(address)},
	}

	if !hasRegionMarker(address) {
		attempts = append(attempts,
			attempt{"region-prefix", regionFormal + " " + address},
			attempt{"region-prefix", regionColloquial + " " + address},
		)
	}

	attempts = append(attempts, attempt{"district-keyword", districtKeywordAddress(address)})

	return attempts
}
