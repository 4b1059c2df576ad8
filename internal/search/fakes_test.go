package search

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/placescout/api/internal/client"
	"github.com/placescout/api/internal/model"
)

type fakeClock struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	return ctx.Err()
}

type countingPacer struct {
	waits int
}

func (p *countingPacer) Wait(ctx context.Context) error {
	p.waits++
	return ctx.Err()
}

type fakeGeocoder struct {
	points map[string]model.Point
}

func (g fakeGeocoder) Geocode(_ context.Context, location string) (model.Point, error) {
	p, ok := g.points[location]
	if !ok {
		return model.Point{}, errors.New("not found")
	}
	return p, nil
}

// fakeSearcher answers nearby searches by keyword and text searches by query.
type fakeSearcher struct {
	maxRadius int
	nearby    map[string][]model.Candidate
	text      map[string][]model.Candidate
	pages     map[string]model.Page
	textToken map[string]string
	textPages map[string]model.Page
	failAll   bool
	calls     int
	callTimes []time.Time
}

func (s *fakeSearcher) Provider() model.Provider { return model.ProviderGoogle }

func (s *fakeSearcher) MaxRadius() int {
	if s.maxRadius == 0 {
		return 5000
	}
	return s.maxRadius
}

func (s *fakeSearcher) NearbySearch(_ context.Context, req client.NearbyRequest) (model.Page, error) {
	s.calls++
	s.callTimes = append(s.callTimes, time.Now())
	if s.failAll {
		return model.Page{}, errors.New("boom")
	}
	return model.Page{Candidates: s.nearby[req.Keyword]}, nil
}

func (s *fakeSearcher) NextPage(_ context.Context, token string) (model.Page, error) {
	s.calls++
	return s.pages[token], nil
}

func (s *fakeSearcher) NextTextPage(_ context.Context, token string) (model.Page, error) {
	s.calls++
	page, ok := s.textPages[token]
	if !ok {
		return model.Page{}, errors.New("INVALID_REQUEST")
	}
	return page, nil
}

func (s *fakeSearcher) TextSearch(_ context.Context, query string) (model.Page, error) {
	s.calls++
	if s.failAll {
		return model.Page{}, errors.New("boom")
	}
	return model.Page{Candidates: s.text[query], NextToken: s.textToken[query]}, nil
}

type memStore struct {
	records   []*model.BusinessRecord
	insertErr error
}

func (m *memStore) InsertIfAbsent(_ context.Context, rec *model.BusinessRecord) (bool, error) {
	if m.insertErr != nil {
		return false, m.insertErr
	}
	for _, r := range m.records {
		if r.JobID == rec.JobID && r.Candidate.Provider == rec.Candidate.Provider && r.Candidate.PlaceID == rec.Candidate.PlaceID {
			return false, nil
		}
	}
	m.records = append(m.records, rec)
	return true, nil
}

func (m *memStore) CountByJob(_ context.Context, jobID string) (int, error) {
	n := 0
	for _, r := range m.records {
		if r.JobID == jobID {
			n++
		}
	}
	return n, nil
}

func (m *memStore) ExistsByPhone(_ context.Context, jobID, phone string) (bool, error) {
	for _, r := range m.records {
		if r.JobID == jobID && r.Candidate.Phone == phone {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) ExistsNearWithName(context.Context, string, model.Point, float64, string, float64) (bool, error) {
	return false, nil
}

func place(id, name string, lat, lng float64) model.Candidate {
	return model.Candidate{
		Provider: model.ProviderGoogle,
		PlaceID:  id,
		Name:     name,
		Location: &model.Point{Lat: lat, Lng: lng},
	}
}
