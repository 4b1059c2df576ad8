package client

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/placescout/api/internal/model"
)

// ErrNotConfigured is returned when a provider client has no credentials
var ErrNotConfigured = errors.New("provider client not configured")

// Geocoder resolves a free-text location into an anchor coordinate
type Geocoder interface {
	Geocode(ctx context.Context, location string) (model.Point, error)
}

// NearbyRequest describes one grid-cell search
type NearbyRequest struct {
	Location model.Point
	Radius   int
	Keyword  string
}

// PlaceSearcher defines the operations of a places provider
type PlaceSearcher interface {
	Provider() model.Provider
	MaxRadius() int
	NearbySearch(ctx context.Context, req NearbyRequest) (model.Page, error)
	NextPage(ctx context.Context, token string) (model.Page, error)
	TextSearch(ctx context.Context, query string) (model.Page, error)
	NextTextPage(ctx context.Context, token string) (model.Page, error)
}

// DetailsFetcher is implemented by providers able to fill in contact details for a place
type DetailsFetcher interface {
	Details(ctx context.Context, placeID string) (*model.Candidate, error)
}

// Registry holds one searcher per provider
type Registry struct {
	searchers map[model.Provider]PlaceSearcher
	logger    *zap.Logger
}

// NewRegistry creates a registry from the given searchers
func NewRegistry(logger *zap.Logger, searchers ...PlaceSearcher) *Registry {
	r := &Registry{
		searchers: make(map[model.Provider]PlaceSearcher, len(searchers)),
		logger:    logger,
	}
	for _, s := range searchers {
		r.searchers[s.Provider()] = s
	}
	return r
}

// Resolve returns searchers for the requested providers in request order.
// Providers without a registered client are skipped.
func (r *Registry) Resolve(providers []model.Provider) []PlaceSearcher {
	if len(providers) == 0 {
		providers = []model.Provider{model.ProviderGoogle}
	}

	seen := make(map[model.Provider]bool, len(providers))
	out := make([]PlaceSearcher, 0, len(providers))
	for _, p := range providers {
		if seen[p] {
			continue
		}
		seen[p] = true

		s, ok := r.searchers[p]
		if !ok {
			r.logger.Warn("no client registered for provider, skipping", zap.String("provider", string(p)))
			continue
		}
		out = append(out, s)
	}
	return out
}
