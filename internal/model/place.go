package model

import (
	"encoding/json"
	"time"
)

// Point is a WGS84 coordinate
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// GridCell is one provider call area within a tiled search radius
type GridCell struct {
	Center Point `json:"center"`
	Radius int   `json:"radius"`
}

// Candidate is a place returned by a provider, not yet accepted
type Candidate struct {
	Provider    Provider        `json:"provider"`
	PlaceID     string          `json:"placeId"`
	Name        string          `json:"name"`
	Address     string          `json:"address,omitempty"`
	Phone       string          `json:"phone,omitempty"`
	Website     string          `json:"website,omitempty"`
	Rating      *float64        `json:"rating,omitempty"`
	ReviewCount *int            `json:"reviewCount,omitempty"`
	PriceLevel  *int            `json:"priceLevel,omitempty"`
	Location    *Point          `json:"location,omitempty"`
	Types       []string        `json:"types,omitempty"`
	Raw         json.RawMessage `json:"raw,omitempty"`
}

// BusinessRecord is an accepted candidate tied to a job
type BusinessRecord struct {
	ID        string    `json:"id"`
	JobID     string    `json:"jobId"`
	Candidate Candidate `json:"candidate"`
	City      string    `json:"city,omitempty"`
	State     string    `json:"state,omitempty"`
	Country   string    `json:"country,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Page is one page of provider results. NextToken is empty on the last page.
type Page struct {
	Candidates []Candidate `json:"candidates"`
	NextToken  string      `json:"nextToken,omitempty"`
}
