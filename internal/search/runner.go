package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/placescout/api/internal/client"
	"github.com/placescout/api/internal/model"
)

// Store is the persistence the runner needs for business records.
type Store interface {
	Lookup
	InsertIfAbsent(ctx context.Context, rec *model.BusinessRecord) (bool, error)
	CountByJob(ctx context.Context, jobID string) (int, error)
}

// Options configures a Runner.
type Options struct {
	Separator     string
	Tiler         Tiler
	Paginator     Paginator
	Pacer         Pacer
	Rules         DedupRules
	Similarity    SimilarityFunc
	EnrichDetails bool
}

// Outcome summarizes a finished job execution.
type Outcome struct {
	TotalResults  int
	FailedQueries int
}

// ProgressFunc receives one event per processed query.
type ProgressFunc func(model.ProgressEvent)

// Runner executes the queries of one job strictly sequentially.
type Runner struct {
	geocoder client.Geocoder
	registry *client.Registry
	store    Store
	opts     Options
	now      func() time.Time
	logger   *zap.Logger
}

// NewRunner creates a new Runner
func NewRunner(geocoder client.Geocoder, registry *client.Registry, store Store, opts Options, logger *zap.Logger) *Runner {
	if opts.Pacer == nil {
		opts.Pacer = noPacer{}
	}
	if opts.Tiler.Step <= 0 || opts.Tiler.MetersPerDegree <= 0 {
		opts.Tiler = NewTiler(opts.Tiler.Step, opts.Tiler.MetersPerDegree)
	}
	return &Runner{
		geocoder: geocoder,
		registry: registry,
		store:    store,
		opts:     opts,
		now:      time.Now,
		logger:   logger.Named("runner"),
	}
}

// Run processes every query of job in order. Geocode and provider failures are
// logged and skipped. Persistence failures, cancellation and panics end the
// run with an error; the outcome then reflects the work done so far.
func (r *Runner) Run(ctx context.Context, job *model.Job, onProgress ProgressFunc) (out Outcome, err error) {
	log := r.logger.With(zap.String("job_id", job.ID))

	defer func() {
		if p := recover(); p != nil {
			log.Error("job panicked", zap.Any("panic", p))
			err = &UnexpectedError{Err: fmt.Errorf("panic: %v", p)}
		}
	}()

	total, err := r.store.CountByJob(ctx, job.ID)
	if err != nil {
		return out, &PersistenceError{Op: "count existing records", Err: err}
	}
	out.TotalResults = total

	dedup := NewDeduplicator(job.ID, r.opts.Rules, r.store, r.opts.Similarity)
	searchers := r.registry.Resolve(job.Providers)
	if len(searchers) == 0 {
		log.Warn("no usable providers for job", zap.Any("providers", job.Providers))
	}

	for i, query := range job.Queries {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		accepted, qerr := r.runQuery(ctx, job, query, searchers, dedup)
		out.TotalResults += accepted

		if qerr != nil {
			if !IsIsolated(qerr) {
				return out, qerr
			}
			out.FailedQueries++
			log.Warn("query failed, continuing", zap.String("query", query), zap.Error(qerr))
		}

		if onProgress != nil {
			onProgress(model.ProgressEvent{
				Completed:    i + 1,
				Total:        len(job.Queries),
				CurrentQuery: query,
				TotalResults: out.TotalResults,
			})
		}
	}

	return out, nil
}

// runQuery returns the number of records inserted for query. An isolated error
// is returned only when the query produced nothing because of it.
func (r *Runner) runQuery(ctx context.Context, job *model.Job, query string, searchers []client.PlaceSearcher, dedup *Deduplicator) (int, error) {
	q := Decompose(query, r.opts.Separator)

	var anchor model.Point
	if q.HasLocation {
		p, err := r.geocoder.Geocode(ctx, q.Location)
		if err != nil {
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			return 0, &GeocodeError{Location: q.Location, Err: err}
		}
		anchor = p
	}

	var (
		accepted  int
		calls     int
		failed    int
		lastError error
	)

	for _, s := range searchers {
		var pending []providerCall
		if q.HasLocation {
			for _, cell := range r.opts.Tiler.Cells(anchor, job.Radius, s.MaxRadius()) {
				req := client.NearbyRequest{Location: cell.Center, Radius: cell.Radius, Keyword: q.Term}
				pending = append(pending, providerCall{
					first: func(ctx context.Context) (model.Page, error) { return s.NearbySearch(ctx, req) },
					next:  s.NextPage,
				})
			}
		} else {
			pending = append(pending, providerCall{
				first: func(ctx context.Context) (model.Page, error) { return s.TextSearch(ctx, query) },
				next:  s.NextTextPage,
			})
		}

		for i, call := range pending {
			// every call takes a slot, the first one included
			if err := r.opts.Pacer.Wait(ctx); err != nil {
				return accepted, err
			}

			calls++
			candidates, err := r.fetchAll(ctx, call)
			if err != nil {
				if ctx.Err() != nil {
					return accepted, ctx.Err()
				}
				failed++
				lastError = err
				r.logger.Warn("provider call failed, skipping",
					zap.String("job_id", job.ID),
					zap.String("provider", string(s.Provider())),
					zap.Int("cell", i),
					zap.Error(err),
				)
			}

			n, err := r.accept(ctx, job.ID, s, candidates, dedup)
			accepted += n
			if err != nil {
				return accepted, err
			}
		}
	}

	if calls > 0 && failed == calls && accepted == 0 {
		return 0, &ProviderError{Op: "query", Err: fmt.Errorf("all %d calls failed, last: %w", calls, lastError)}
	}
	return accepted, nil
}

// providerCall is one search request plus the continuation endpoint its tokens belong to.
type providerCall struct {
	first func(ctx context.Context) (model.Page, error)
	next  NextFunc
}

// fetchAll runs one call and its pagination chain, returning partial results on failure.
func (r *Runner) fetchAll(ctx context.Context, call providerCall) ([]model.Candidate, error) {
	first, err := call.first(ctx)
	if err != nil {
		return nil, &ProviderError{Op: "search", Err: err}
	}

	res, err := r.opts.Paginator.Collect(ctx, first, call.next)
	if res.Truncated {
		r.logger.Warn("pagination stopped at page limit", zap.Int("pages", res.Pages))
	}
	return res.Candidates, err
}

func (r *Runner) accept(ctx context.Context, jobID string, s client.PlaceSearcher, candidates []model.Candidate, dedup *Deduplicator) (int, error) {
	inserted := 0
	for _, c := range candidates {
		if dedup.MarkSeen(c) {
			continue
		}

		if r.opts.EnrichDetails && c.Phone == "" && c.PlaceID != "" {
			c = r.enrich(ctx, s, c)
		}
		c.Phone = normalizePhone(c.Phone)

		reason, err := dedup.IsDuplicate(ctx, c)
		if err != nil {
			return inserted, &PersistenceError{Op: "check duplicates", Err: err}
		}
		if reason != NotDuplicate {
			r.logger.Debug("duplicate candidate",
				zap.String("job_id", jobID),
				zap.String("place_id", c.PlaceID),
				zap.String("reason", string(reason)),
			)
			continue
		}

		city, state, country := ParseVicinity(c.Address)
		rec := &model.BusinessRecord{
			ID:        uuid.New().String(),
			JobID:     jobID,
			Candidate: c,
			City:      city,
			State:     state,
			Country:   country,
			CreatedAt: r.now(),
		}

		ok, err := r.store.InsertIfAbsent(ctx, rec)
		if err != nil {
			return inserted, &PersistenceError{Op: "save business record", Err: err}
		}
		dedup.Accept(c)
		if ok {
			inserted++
		}
	}
	return inserted, nil
}

func (r *Runner) enrich(ctx context.Context, s client.PlaceSearcher, c model.Candidate) model.Candidate {
	fetcher, ok := s.(client.DetailsFetcher)
	if !ok {
		return c
	}

	details, err := fetcher.Details(ctx, c.PlaceID)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			r.logger.Warn("failed to fetch place details", zap.String("place_id", c.PlaceID), zap.Error(err))
		}
		return c
	}

	c.Phone = details.Phone
	if c.Website == "" {
		c.Website = details.Website
	}
	return c
}
