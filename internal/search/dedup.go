package search

import (
	"context"
	"strings"

	"github.com/placescout/api/internal/model"
)

const (
	DefaultDedupDistanceMeters = 50.0
	DefaultNameSimilarity      = 0.8
)

// DuplicateReason names the rule that matched a candidate.
type DuplicateReason string

const (
	NotDuplicate      DuplicateReason = ""
	DuplicatePhone    DuplicateReason = "phone"
	DuplicateNearName DuplicateReason = "proximity"
)

// Lookup answers dedup questions from records persisted for a job,
// including ones written by earlier attempts.
type Lookup interface {
	ExistsByPhone(ctx context.Context, jobID, phone string) (bool, error)
	ExistsNearWithName(ctx context.Context, jobID string, p model.Point, meters float64, name string, threshold float64) (bool, error)
}

// DedupRules holds the thresholds of the proximity rule.
type DedupRules struct {
	DistanceMeters float64
	NameThreshold  float64
}

type acceptedPlace struct {
	point model.Point
	name  string
}

// Deduplicator tracks what a single job execution has accepted so far.
// It is owned by that execution and must not be shared.
type Deduplicator struct {
	jobID      string
	rules      DedupRules
	similarity SimilarityFunc
	lookup     Lookup

	phones map[string]struct{}
	places []acceptedPlace
	seen   map[string]struct{}
}

// NewDeduplicator creates per-job dedup state. lookup may be nil.
func NewDeduplicator(jobID string, rules DedupRules, lookup Lookup, similarity SimilarityFunc) *Deduplicator {
	if rules.DistanceMeters <= 0 {
		rules.DistanceMeters = DefaultDedupDistanceMeters
	}
	if rules.NameThreshold <= 0 {
		rules.NameThreshold = DefaultNameSimilarity
	}
	if similarity == nil {
		similarity = TrigramSimilarity
	}
	return &Deduplicator{
		jobID:      jobID,
		rules:      rules,
		similarity: similarity,
		lookup:     lookup,
		phones:     make(map[string]struct{}),
		seen:       make(map[string]struct{}),
	}
}

// MarkSeen records a provider id and reports whether it had been evaluated before.
func (d *Deduplicator) MarkSeen(c model.Candidate) bool {
	if c.PlaceID == "" {
		return false
	}
	key := string(c.Provider) + ":" + c.PlaceID
	if _, ok := d.seen[key]; ok {
		return true
	}
	d.seen[key] = struct{}{}
	return false
}

// IsDuplicate applies the phone rule, then the proximity and name rule.
// The first matching rule wins.
func (d *Deduplicator) IsDuplicate(ctx context.Context, c model.Candidate) (DuplicateReason, error) {
	if phone := normalizePhone(c.Phone); phone != "" {
		if _, ok := d.phones[phone]; ok {
			return DuplicatePhone, nil
		}
		if d.lookup != nil {
			found, err := d.lookup.ExistsByPhone(ctx, d.jobID, phone)
			if err != nil {
				return NotDuplicate, err
			}
			if found {
				return DuplicatePhone, nil
			}
		}
	}

	if c.Location == nil {
		return NotDuplicate, nil
	}

	for _, p := range d.places {
		if DistanceMeters(p.point, *c.Location) > d.rules.DistanceMeters {
			continue
		}
		if d.namesMatch(p.name, c.Name) {
			return DuplicateNearName, nil
		}
	}

	if d.lookup != nil {
		found, err := d.lookup.ExistsNearWithName(ctx, d.jobID, *c.Location, d.rules.DistanceMeters, c.Name, d.rules.NameThreshold)
		if err != nil {
			return NotDuplicate, err
		}
		if found {
			return DuplicateNearName, nil
		}
	}

	return NotDuplicate, nil
}

// Accept adds c to the job's accepted set.
func (d *Deduplicator) Accept(c model.Candidate) {
	if phone := normalizePhone(c.Phone); phone != "" {
		d.phones[phone] = struct{}{}
	}
	if c.Location != nil {
		d.places = append(d.places, acceptedPlace{point: *c.Location, name: c.Name})
	}
}

func (d *Deduplicator) namesMatch(a, b string) bool {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	if strings.EqualFold(a, b) {
		return true
	}
	// strictly greater: a score equal to the threshold is not a match
	return d.similarity(a, b) > d.rules.NameThreshold
}

func normalizePhone(phone string) string {
	return strings.TrimSpace(phone)
}
