package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/placescout/api/internal/config"
	"github.com/placescout/api/internal/model"
)

// Google Places status values
const (
	googleStatusOK          = "OK"
	googleStatusZeroResults = "ZERO_RESULTS"
)

// GoogleClient implements Geocoder, PlaceSearcher and DetailsFetcher for the Google Maps APIs
type GoogleClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	maxRadius  int
	logger     *zap.Logger
}

type googleLocation struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type googlePlace struct {
	PlaceID              string   `json:"place_id"`
	Name                 string   `json:"name"`
	Vicinity             string   `json:"vicinity"`
	FormattedAddress     string   `json:"formatted_address"`
	FormattedPhoneNumber string   `json:"formatted_phone_number"`
	Website              string   `json:"website"`
	Rating               *float64 `json:"rating"`
	UserRatingsTotal     *int     `json:"user_ratings_total"`
	PriceLevel           *int     `json:"price_level"`
	Types                []string `json:"types"`
	Geometry             struct {
		Location *googleLocation `json:"location"`
	} `json:"geometry"`
}

type googlePlacesResponse struct {
	Status        string            `json:"status"`
	ErrorMessage  string            `json:"error_message"`
	Results       []json.RawMessage `json:"results"`
	NextPageToken string            `json:"next_page_token"`
}

type googleDetailsResponse struct {
	Status       string          `json:"status"`
	ErrorMessage string          `json:"error_message"`
	Result       json.RawMessage `json:"result"`
}

type googleGeocodeResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		FormattedAddress string `json:"formatted_address"`
		Geometry         struct {
			Location googleLocation `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

// NewGoogleClient creates a new Google Maps API client
func NewGoogleClient(cfg *config.GoogleConfig, logger *zap.Logger) *GoogleClient {
	return &GoogleClient{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:   cfg.BaseURL,
		apiKey:    cfg.APIKey,
		maxRadius: cfg.MaxRadius,
		logger:    logger.Named("google"),
	}
}

// Provider returns the provider this client serves
func (c *GoogleClient) Provider() model.Provider {
	return model.ProviderGoogle
}

// MaxRadius returns the largest radius accepted by a single nearby search
func (c *GoogleClient) MaxRadius() int {
	return c.maxRadius
}

// IsConfigured returns true if the client has valid configuration
func (c *GoogleClient) IsConfigured() bool {
	return c.apiKey != ""
}

// Geocode resolves a location phrase to coordinates
func (c *GoogleClient) Geocode(ctx context.Context, location string) (model.Point, error) {
	params := url.Values{}
	params.Set("address", location)

	var resp googleGeocodeResponse
	if err := c.get(ctx, "/geocode/json", params, &resp); err != nil {
		return model.Point{}, err
	}

	if resp.Status != googleStatusOK || len(resp.Results) == 0 {
		return model.Point{}, fmt.Errorf("geocoding %q returned status %s: %s", location, resp.Status, resp.ErrorMessage)
	}

	loc := resp.Results[0].Geometry.Location
	return model.Point{Lat: loc.Lat, Lng: loc.Lng}, nil
}

// NearbySearch searches one circular area for places matching the keyword
func (c *GoogleClient) NearbySearch(ctx context.Context, req NearbyRequest) (model.Page, error) {
	radius := req.Radius
	if radius > c.maxRadius {
		radius = c.maxRadius
	}

	params := url.Values{}
	params.Set("location", fmt.Sprintf("%.6f,%.6f", req.Location.Lat, req.Location.Lng))
	params.Set("radius", strconv.Itoa(radius))
	if req.Keyword != "" {
		params.Set("keyword", req.Keyword)
	}

	return c.places(ctx, "/place/nearbysearch/json", params)
}

// NextPage fetches the page behind a nearby search continuation token
func (c *GoogleClient) NextPage(ctx context.Context, token string) (model.Page, error) {
	params := url.Values{}
	params.Set("pagetoken", token)
	return c.places(ctx, "/place/nearbysearch/json", params)
}

// TextSearch searches by free text when no anchor coordinate is available
func (c *GoogleClient) TextSearch(ctx context.Context, query string) (model.Page, error) {
	params := url.Values{}
	params.Set("query", query)
	return c.places(ctx, "/place/textsearch/json", params)
}

// NextTextPage fetches the page behind a text search continuation token
func (c *GoogleClient) NextTextPage(ctx context.Context, token string) (model.Page, error) {
	params := url.Values{}
	params.Set("pagetoken", token)
	return c.places(ctx, "/place/textsearch/json", params)
}

// Details fetches contact details for a single place
func (c *GoogleClient) Details(ctx context.Context, placeID string) (*model.Candidate, error) {
	params := url.Values{}
	params.Set("place_id", placeID)
	params.Set("fields", "place_id,name,vicinity,formatted_address,formatted_phone_number,website,rating,user_ratings_total,price_level,geometry,types")

	var resp googleDetailsResponse
	if err := c.get(ctx, "/place/details/json", params, &resp); err != nil {
		return nil, err
	}
	if resp.Status != googleStatusOK {
		return nil, fmt.Errorf("place details returned status %s: %s", resp.Status, resp.ErrorMessage)
	}

	candidate, err := toCandidate(resp.Result)
	if err != nil {
		return nil, err
	}
	return &candidate, nil
}

func (c *GoogleClient) places(ctx context.Context, endpoint string, params url.Values) (model.Page, error) {
	var resp googlePlacesResponse
	if err := c.get(ctx, endpoint, params, &resp); err != nil {
		return model.Page{}, err
	}

	switch resp.Status {
	case googleStatusOK:
	case googleStatusZeroResults:
		return model.Page{}, nil
	default:
		return model.Page{}, fmt.Errorf("places API returned status %s: %s", resp.Status, resp.ErrorMessage)
	}

	page := model.Page{
		Candidates: make([]model.Candidate, 0, len(resp.Results)),
		NextToken:  resp.NextPageToken,
	}
	for _, raw := range resp.Results {
		candidate, err := toCandidate(raw)
		if err != nil {
			c.logger.Warn("skipping malformed place", zap.Error(err))
			continue
		}
		page.Candidates = append(page.Candidates, candidate)
	}
	return page, nil
}

// get sends a GET request and parses the JSON response
func (c *GoogleClient) get(ctx context.Context, endpoint string, params url.Values, result interface{}) error {
	if !c.IsConfigured() {
		return ErrNotConfigured
	}

	params.Set("key", c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	return c.doRequest(req, endpoint, result)
}

// doRequest executes an HTTP request and parses the response
func (c *GoogleClient) doRequest(req *http.Request, endpoint string, result interface{}) error {
	c.logger.Debug("request", zap.String("method", req.Method), zap.String("endpoint", endpoint))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("request failed", zap.String("endpoint", endpoint), zap.Error(err))
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Debug("response", zap.Int("status", resp.StatusCode), zap.String("endpoint", endpoint))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("google API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return nil
}

func toCandidate(raw json.RawMessage) (model.Candidate, error) {
	var p googlePlace
	if err := json.Unmarshal(raw, &p); err != nil {
		return model.Candidate{}, fmt.Errorf("failed to unmarshal place: %w", err)
	}

	address := p.Vicinity
	if address == "" {
		address = p.FormattedAddress
	}

	candidate := model.Candidate{
		Provider:    model.ProviderGoogle,
		PlaceID:     p.PlaceID,
		Name:        p.Name,
		Address:     address,
		Phone:       p.FormattedPhoneNumber,
		Website:     p.Website,
		Rating:      p.Rating,
		ReviewCount: p.UserRatingsTotal,
		PriceLevel:  p.PriceLevel,
		Types:       p.Types,
		Raw:         raw,
	}
	if loc := p.Geometry.Location; loc != nil {
		candidate.Location = &model.Point{Lat: loc.Lat, Lng: loc.Lng}
	}
	return candidate, nil
}
