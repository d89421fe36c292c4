package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"sync"
	"time"
)

const defaultNWSBaseURL = "https://api.weather.gov"

// NWSSource pulls the latest station observation from api.weather.gov.
// Responses are cached briefly to respect NWS rate expectations.
type NWSSource struct {
	baseURL   string
	stationID string
	userAgent string
	http      *http.Client
	cacheTTL  time.Duration

	mu       sync.Mutex
	cached   *Reading
	cachedAt time.Time
}

func NewNWSSource(baseURL, stationID, userAgent string, timeout, cacheTTL time.Duration) *NWSSource {
	if baseURL == "" {
		baseURL = defaultNWSBaseURL
	}
	return &NWSSource{
		baseURL:   baseURL,
		stationID: stationID,
		userAgent: userAgent,
		http:      &http.Client{Timeout: timeout},
		cacheTTL:  cacheTTL,
	}
}

func (s *NWSSource) Name() string { return SourceStation }

type nwsMeasurement struct {
	Value *float64 `json:"value"`
}

type nwsObservation struct {
	Properties struct {
		Timestamp                 string         `json:"timestamp"`
		Temperature               nwsMeasurement `json:"temperature"`
		MaxTemperatureLast24Hours nwsMeasurement `json:"maxTemperatureLast24Hours"`
		MinTemperatureLast24Hours nwsMeasurement `json:"minTemperatureLast24Hours"`
	} `json:"properties"`
}

func (s *NWSSource) Fetch(ctx context.Context) (*Reading, error) {
	if s.stationID == "" {
		return nil, &SourceError{Source: s.Name(), Err: fmt.Errorf("no station configured")}
	}

	s.mu.Lock()
	if s.cached != nil && time.Since(s.cachedAt) < s.cacheTTL {
		cached := *s.cached
		s.mu.Unlock()
		return &cached, nil
	}
	s.mu.Unlock()

	url := fmt.Sprintf("%s/stations/%s/observations/latest", s.baseURL, s.stationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &SourceError{Source: s.Name(), Err: err}
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "application/geo+json")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, &SourceError{Source: s.Name(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &SourceError{Source: s.Name(), Err: fmt.Errorf("status %d: %s", resp.StatusCode, body)}
	}

	var obs nwsObservation
	if err := json.NewDecoder(resp.Body).Decode(&obs); err != nil {
		return nil, &SourceError{Source: s.Name(), Err: fmt.Errorf("decode observation: %w", err)}
	}

	props := obs.Properties
	if props.Temperature.Value == nil {
		return nil, &SourceError{Source: s.Name(), Err: fmt.Errorf("observation has no current temperature")}
	}

	reading := &Reading{
		Source:       SourceStation,
		ObservedAt:   time.Now(),
		CurrentTempF: floatPtr(celsiusToF(*props.Temperature.Value)),
	}
	if t, err := time.Parse(time.RFC3339, props.Timestamp); err == nil {
		reading.ObservedAt = t
	}
	if props.MaxTemperatureLast24Hours.Value != nil {
		reading.HighTodayF = floatPtr(celsiusToF(*props.MaxTemperatureLast24Hours.Value))
	}
	if props.MinTemperatureLast24Hours.Value != nil {
		reading.LowTodayF = floatPtr(celsiusToF(*props.MinTemperatureLast24Hours.Value))
	}

	s.mu.Lock()
	s.cached = reading
	s.cachedAt = time.Now()
	s.mu.Unlock()

	cached := *reading
	return &cached, nil
}

// celsiusToF rounds to the nearest whole degree, matching how NWS
// observations are quoted against the market resolution source.
func celsiusToF(c float64) float64 {
	return math.Round(c*9/5 + 32)
}
