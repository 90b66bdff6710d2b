// Package poller runs the ingestion cycle: fetch raw registry records on
// a rate-limited cadence, enrich and geocode them, persist the results,
// and fan out realtime and push notifications for what changed.
package poller

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/daejeonsafe/safenet/internal/database"
	"github.com/daejeonsafe/safenet/internal/enrich"
	"github.com/daejeonsafe/safenet/internal/geocode"
	"github.com/daejeonsafe/safenet/internal/notify"
	"github.com/daejeonsafe/safenet/internal/realtime"
	"github.com/daejeonsafe/safenet/internal/safe182"
)

// Fetcher pulls the current raw record batch from the upstream registry.
type Fetcher interface {
	FetchMissingPersons(ctx context.Context) ([]safe182.RawPerson, error)
}

// Enricher classifies a raw batch. The degraded flag means the rule
// fallback produced some or all of the results.
type Enricher interface {
	EnrichBatch(ctx context.Context, records []safe182.RawPerson) ([]enrich.Result, bool)
}

// Resolver geocodes one free-text address.
type Resolver interface {
	Resolve(ctx context.Context, address string) geocode.Result
}

// Notifier pushes an alert about one person.
type Notifier interface {
	Send(ctx context.Context, person *database.Person, message string) notify.Outcome
}

// Sleeps is the cadence policy for the polling loop.
type Sleeps struct {
	Fresh   time.Duration
	Gate    time.Duration
	Backoff time.Duration
	Idle    time.Duration
}

// Poller drives the ingestion cycle.
type Poller struct {
	fetcher    Fetcher
	cache      *safe182.Cache
	enricher   Enricher
	resolver   Resolver
	store      database.Store
	registry   *realtime.Registry
	dispatcher Notifier
	sleeps     Sleeps
	logger     *slog.Logger
}

// New wires a poller. Registry and dispatcher may be nil; the cycle then
// skips broadcast and push respectively.
func New(fetcher Fetcher, cache *safe182.Cache, enricher Enricher, resolver Resolver,
	store database.Store, registry *realtime.Registry, dispatcher Notifier,
	sleeps Sleeps, logger *slog.Logger,
) *Poller {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Poller{
		fetcher:    fetcher,
		cache:      cache,
		enricher:   enricher,
		resolver:   resolver,
		store:      store,
		registry:   registry,
		dispatcher: dispatcher,
		sleeps:     sleeps,
		logger:     logger,
	}
}

// Run loops the ingestion cycle until the context is canceled. Cycle
// failures never end the loop; they only pick the next sleep.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("polling started",
		"fresh_sleep", p.sleeps.Fresh,
		"gate_sleep", p.sleeps.Gate,
		"backoff", p.sleeps.Backoff,
		"idle_sleep", p.sleeps.Idle)

	for {
		delay := p.cycle(ctx)
		select {
		case <-ctx.Done():
			p.logger.Info("polling stopped")
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// cycle runs one pass and returns how long to sleep before the next.
func (p *Poller) cycle(ctx context.Context) time.Duration {
	if batch := p.cache.Cached(); batch != nil {
		p.logger.Debug("cache fresh, skipping fetch", "records", len(batch))
		return p.sleeps.Fresh
	}
	if !p.cache.ShouldFetch() {
		return p.sleeps.Gate
	}

	records, err := p.fetcher.FetchMissingPersons(ctx)
	if err != nil {
		p.cache.RecordFailure()
		p.logger.Error("registry fetch failed", "error", err)
		return p.sleeps.Backoff
	}
	p.cache.RecordSuccess(records)

	if len(records) == 0 {
		p.logger.Info("registry returned no records")
		return p.sleeps.Idle
	}

	added, updated, err := p.process(ctx, records)
	if err != nil {
		p.logger.Error("ingestion cycle failed", "error", err)
		return p.sleeps.Backoff
	}

	p.logger.Info("ingestion cycle complete",
		"total", len(records), "new", added, "updated", updated)
	return p.sleeps.Idle
}

// RunOnce bypasses the cache gate and runs a single forced cycle.
func (p *Poller) RunOnce(ctx context.Context) (added, updated int, err error) {
	records, err := p.fetcher.FetchMissingPersons(ctx)
	if err != nil {
		p.cache.RecordFailure()
		return 0, 0, fmt.Errorf("registry fetch failed: %w", err)
	}
	p.cache.RecordSuccess(records)

	if len(records) == 0 {
		return 0, 0, nil
	}
	return p.process(ctx, records)
}

// process enriches, geocodes, and persists a raw batch, then broadcasts
// one aggregate update and pushes alerts for new urgent records.
// Persistence strictly precedes broadcast, which precedes push.
func (p *Poller) process(ctx context.Context, records []safe182.RawPerson) (added, updated int, err error) {
	existing, err := p.store.ExistingActiveIDs(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to load existing ids: %w", err)
	}

	results, degraded := p.enricher.EnrichBatch(ctx, records)
	if degraded {
		p.logger.Warn("enrichment degraded to rule fallback", "records", len(records))
	}

	var fresh []*database.Person
	for i, res := range results {
		person := p.buildPerson(ctx, records[i], res)

		isNew := true
		if _, ok := existing[person.ID]; ok {
			isNew = false
		}

		if err := p.store.UpsertPerson(ctx, person); err != nil {
			p.logger.Error("failed to persist person", "person_id", person.ID, "error", err)
			continue
		}

		if isNew {
			added++
			fresh = append(fresh, person)
		} else {
			updated++
		}
	}

	if p.registry != nil {
		p.registry.Broadcast(realtime.DataUpdate(len(results), added, updated))
	}

	if p.dispatcher != nil {
		for _, person := range fresh {
			if !person.Urgent() {
				continue
			}
			p.dispatcher.Send(ctx, person, alertMessage(person))
		}
	}

	return added, updated, nil
}

// buildPerson merges the raw record and its enrichment into a persistent
// record, resolving coordinates when the location allows it.
func (p *Poller) buildPerson(ctx context.Context, raw safe182.RawPerson, res enrich.Result) *database.Person {
	person := &database.Person{
		ID:             raw.ID(),
		Name:           res.Name,
		Gender:         res.Gender,
		Location:       res.Location,
		Description:    res.Description,
		PhotoData:      res.PhotoDataURL,
		Priority:       res.Priority,
		Category:       res.Category,
		RiskFactors:    res.RiskFactors,
		Features:       res.Features,
		Status:         database.StatusActive,
		ApprovalStatus: database.ApprovalApproved,
		Source:         database.SourceUpstreamRegistry,
		OccurredAt:     raw.OccurredAt,
	}
	if res.Age != nil {
		person.Age = sql.NullInt64{Int64: int64(*res.Age), Valid: true}
	}

	if res.Location != "" {
		if geo := p.resolver.Resolve(ctx, res.Location); geo.Resolved {
			person.Lat = sql.NullFloat64{Float64: geo.Lat, Valid: true}
			person.Lng = sql.NullFloat64{Float64: geo.Lng, Valid: true}
		}
	}

	return person
}

func alertMessage(person *database.Person) string {
	msg := person.Name
	if person.Age.Valid {
		msg = fmt.Sprintf("%s(%d세)", person.Name, person.Age.Int64)
	}
	if person.Location != "" {
		msg += " " + person.Location
	}
	return msg + " 인근에서 실종되었습니다. 목격 시 제보해 주세요."
}
