package search

import (
	"context"
	"time"

	"github.com/placescout/api/internal/model"
)

const (
	DefaultPageDelay = 2 * time.Second
	DefaultMaxPages  = 10
)

// NextFunc fetches the page behind a continuation token.
type NextFunc func(ctx context.Context, token string) (model.Page, error)

// Paginator follows continuation tokens until the chain ends or MaxPages is reached.
// Tokens are not valid immediately after issuance, so every follow-up call waits Delay first.
type Paginator struct {
	Clock    Clock
	Delay    time.Duration
	MaxPages int
}

// PageResult is the merged output of a pagination chain.
type PageResult struct {
	Candidates []model.Candidate
	Pages      int
	// Truncated is set when MaxPages stopped a chain that still had a token.
	Truncated bool
}

// Collect merges first and every page reachable from it in fetch order, dropping
// repeated place ids. On a failed follow-up call the pages fetched so far are
// returned together with a *ProviderError.
func (p Paginator) Collect(ctx context.Context, first model.Page, next NextFunc) (PageResult, error) {
	clock := p.Clock
	if clock == nil {
		clock = RealClock{}
	}
	maxPages := p.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}

	seen := make(map[string]struct{}, len(first.Candidates))
	res := PageResult{Pages: 1}
	res.Candidates = appendUnique(res.Candidates, first.Candidates, seen)

	token := first.NextToken
	for token != "" {
		if res.Pages >= maxPages {
			res.Truncated = true
			break
		}

		if err := clock.Sleep(ctx, p.Delay); err != nil {
			return res, err
		}

		page, err := next(ctx, token)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			return res, &ProviderError{Op: "next page", Err: err}
		}

		res.Pages++
		res.Candidates = appendUnique(res.Candidates, page.Candidates, seen)
		token = page.NextToken
	}

	return res, nil
}

func appendUnique(dst, src []model.Candidate, seen map[string]struct{}) []model.Candidate {
	for _, c := range src {
		if c.PlaceID != "" {
			if _, ok := seen[c.PlaceID]; ok {
				continue
			}
			seen[c.PlaceID] = struct{}{}
		}
		dst = append(dst, c)
	}
	return dst
}
