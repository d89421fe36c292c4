package forecast

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

const defaultBaseURL = "https://api.open-meteo.com"

// Pair holds daily-high forecasts from two independent numerical weather
// models for the same coordinate and date.
type Pair struct {
	GFSHighF   *float64 `json:"gfs_high,omitempty"`
	ECMWFHighF *float64 `json:"ecmwf_high,omitempty"`
	SpreadF    *float64 `json:"spread,omitempty"`
}

// Average returns the mean of the two model highs when both are present,
// whichever one is present otherwise, and nil when neither is.
func (p *Pair) Average() *float64 {
	switch {
	case p == nil:
		return nil
	case p.GFSHighF != nil && p.ECMWFHighF != nil:
		avg := (*p.GFSHighF + *p.ECMWFHighF) / 2
		return &avg
	case p.GFSHighF != nil:
		return p.GFSHighF
	default:
		return p.ECMWFHighF
	}
}

// Client pulls hourly temperature forecasts from Open-Meteo and reduces them
// to a daily high per model. No retries; a failed cycle is just absent data.
type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

func NewClient(baseURL string, timeout time.Duration, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

// DailyHighs queries the GFS and ECMWF models. A single model failure leaves
// that field nil; the call fails only when both models fail.
func (c *Client) DailyHighs(ctx context.Context, lat, lon float64, date time.Time) (*Pair, error) {
	gfs, gfsErr := c.modelHigh(ctx, "gfs", lat, lon, date)
	if gfsErr != nil {
		c.log.Warn().Err(gfsErr).Msg("gfs forecast unavailable")
	}
	ecmwf, ecmwfErr := c.modelHigh(ctx, "ecmwf", lat, lon, date)
	if ecmwfErr != nil {
		c.log.Warn().Err(ecmwfErr).Msg("ecmwf forecast unavailable")
	}
	if gfsErr != nil && ecmwfErr != nil {
		return nil, fmt.Errorf("open-meteo: gfs: %v; ecmwf: %v", gfsErr, ecmwfErr)
	}

	pair := &Pair{GFSHighF: gfs, ECMWFHighF: ecmwf}
	if gfs != nil && ecmwf != nil {
		spread := *gfs - *ecmwf
		if spread < 0 {
			spread = -spread
		}
		pair.SpreadF = &spread
	}
	return pair, nil
}

type hourlySeries struct {
	Hourly struct {
		Time          []string  `json:"time"`
		Temperature2M []float64 `json:"temperature_2m"`
	} `json:"hourly"`
}

func (c *Client) modelHigh(ctx context.Context, model string, lat, lon float64, date time.Time) (*float64, error) {
	query := url.Values{}
	query.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	query.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	query.Set("hourly", "temperature_2m")
	query.Set("forecast_days", "2")
	query.Set("temperature_unit", "fahrenheit")
	query.Set("timezone", "auto")

	endpoint := fmt.Sprintf("%s/v1/%s?%s", c.baseURL, model, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%s: status %d: %s", model, resp.StatusCode, body)
	}

	var series hourlySeries
	if err := json.NewDecoder(resp.Body).Decode(&series); err != nil {
		return nil, fmt.Errorf("%s: decode hourly series: %w", model, err)
	}

	// Hourly timestamps are in the location's local time; match on the
	// target calendar date and take the max.
	day := date.Format("2006-01-02")
	var high *float64
	times := series.Hourly.Time
	temps := series.Hourly.Temperature2M
	for i := 0; i < len(times) && i < len(temps); i++ {
		if len(times[i]) < 10 || times[i][:10] != day {
			continue
		}
		if high == nil || temps[i] > *high {
			v := temps[i]
			high = &v
		}
	}
	if high == nil {
		return nil, fmt.Errorf("%s: no hourly data for %s", model, day)
	}
	return high, nil
}
