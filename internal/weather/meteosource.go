package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	meteosourceFreeBaseURL  = "https://www.meteosource.com/api/v1/free/point"
	meteosourceFlexiBaseURL = "https://www.meteosource.com/api/v1/flexi/point"
)

// MeteosourceBaseURL resolves the point endpoint for a subscription tier.
// An explicit override wins.
func MeteosourceBaseURL(tier, override string) string {
	if override != "" {
		return override
	}
	if tier == "flexi" {
		return meteosourceFlexiBaseURL
	}
	return meteosourceFreeBaseURL
}

// MeteosourceSource pulls current conditions and the daily high/low from the
// Meteosource point API.
type MeteosourceSource struct {
	baseURL string
	apiKey  string
	lat     float64
	lon     float64
	http    *http.Client
}

func NewMeteosourceSource(baseURL, apiKey string, lat, lon float64, timeout time.Duration) *MeteosourceSource {
	return &MeteosourceSource{
		baseURL: baseURL,
		apiKey:  apiKey,
		lat:     lat,
		lon:     lon,
		http:    &http.Client{Timeout: timeout},
	}
}

func (s *MeteosourceSource) Name() string { return SourceCommercialAPI }

type meteosourcePoint struct {
	Current struct {
		Temperature *float64 `json:"temperature"`
	} `json:"current"`
	Daily struct {
		Data []struct {
			AllDay struct {
				TemperatureMax *float64 `json:"temperature_max"`
				TemperatureMin *float64 `json:"temperature_min"`
			} `json:"all_day"`
		} `json:"data"`
	} `json:"daily"`
}

func (s *MeteosourceSource) Fetch(ctx context.Context) (*Reading, error) {
	if s.apiKey == "" {
		return nil, &SourceError{Source: s.Name(), Err: fmt.Errorf("no api key configured")}
	}

	query := url.Values{}
	query.Set("lat", strconv.FormatFloat(s.lat, 'f', -1, 64))
	query.Set("lon", strconv.FormatFloat(s.lon, 'f', -1, 64))
	query.Set("sections", "current,daily")
	query.Set("timezone", "auto")
	query.Set("units", "us")
	query.Set("key", s.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, &SourceError{Source: s.Name(), Err: err}
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, &SourceError{Source: s.Name(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &SourceError{Source: s.Name(), Err: fmt.Errorf("status %d: %s", resp.StatusCode, body)}
	}

	var point meteosourcePoint
	if err := json.NewDecoder(resp.Body).Decode(&point); err != nil {
		return nil, &SourceError{Source: s.Name(), Err: fmt.Errorf("decode point data: %w", err)}
	}

	if point.Current.Temperature == nil {
		return nil, &SourceError{Source: s.Name(), Err: fmt.Errorf("no current temperature in response")}
	}

	reading := &Reading{
		Source:       SourceCommercialAPI,
		ObservedAt:   time.Now(),
		CurrentTempF: point.Current.Temperature,
	}
	if len(point.Daily.Data) > 0 {
		day := point.Daily.Data[0].AllDay
		reading.HighTodayF = day.TemperatureMax
		reading.LowTodayF = day.TemperatureMin
	}
	return reading, nil
}
