package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const defaultWethrBaseURL = "https://wethr.net"

// Browser user agents rotated per request; wethr.net rejects obvious bots.
var wethrUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
}

var (
	wethrCurrentRe  = regexp.MustCompile(`(?i)CURRENT TEMP\D{0,40}?(-?\d+)\s*°`)
	wethrExtremesRe = regexp.MustCompile(`(?i)WETHR EXTREMES`)
	wethrHighLowRe  = regexp.MustCompile(`(-?\d+)\s*°\s*\d{1,2}:\d{2}\s*[AP]M`)
)

// WethrSource scrapes the market page on wethr.net. The markup is not under
// our control and may break without notice; a manual-override JSON file is
// used as a last resort when the scrape fails.
type WethrSource struct {
	baseURL    string
	manualPath string
	http       *http.Client
}

func NewWethrSource(baseURL, manualPath string, timeout time.Duration) *WethrSource {
	if baseURL == "" {
		baseURL = defaultWethrBaseURL
	}
	return &WethrSource{
		baseURL:    baseURL,
		manualPath: manualPath,
		http:       &http.Client{Timeout: timeout},
	}
}

func (s *WethrSource) Name() string { return SourceScrape }

func (s *WethrSource) Fetch(ctx context.Context) (*Reading, error) {
	reading, scrapeErr := s.scrape(ctx)
	if scrapeErr == nil {
		return reading, nil
	}
	if manual, err := s.loadManual(); err == nil {
		return manual, nil
	}
	return nil, scrapeErr
}

func (s *WethrSource) scrape(ctx context.Context) (*Reading, error) {
	resp, err := s.get(ctx)
	if err != nil {
		return nil, &SourceError{Source: s.Name(), Err: err}
	}
	// One retry with a fresh user agent when the first attempt is rejected.
	if resp.StatusCode == http.StatusNotAcceptable {
		resp.Body.Close()
		resp, err = s.get(ctx)
		if err != nil {
			return nil, &SourceError{Source: s.Name(), Err: err}
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &SourceError{Source: s.Name(), Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &SourceError{Source: s.Name(), Err: err}
	}
	if len(body) < 100 || strings.Contains(string(body), "Not Acceptable") {
		return nil, &SourceError{Source: s.Name(), Err: fmt.Errorf("blocked or empty response")}
	}

	reading, ok := parseWethrPage(string(body))
	if !ok {
		return nil, &SourceError{Source: s.Name(), Err: fmt.Errorf("could not parse current temperature from page")}
	}
	return reading, nil
}

func (s *WethrSource) get(ctx context.Context) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/market/miami", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", wethrUserAgents[rand.Intn(len(wethrUserAgents))])
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	return s.http.Do(req)
}

func parseWethrPage(html string) (*Reading, bool) {
	text := stripTags(html)

	m := wethrCurrentRe.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}
	current, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil, false
	}

	reading := &Reading{
		Source:       SourceScrape,
		ObservedAt:   time.Now(),
		CurrentTempF: floatPtr(current),
	}

	// The extremes block lists the daily high then the daily low, each with
	// the time it was set.
	if loc := wethrExtremesRe.FindStringIndex(text); loc != nil {
		section := text[loc[1]:]
		if len(section) > 400 {
			section = section[:400]
		}
		pairs := wethrHighLowRe.FindAllStringSubmatch(section, 2)
		if len(pairs) >= 1 {
			if high, err := strconv.ParseFloat(pairs[0][1], 64); err == nil {
				reading.HighTodayF = floatPtr(high)
			}
		}
		if len(pairs) >= 2 {
			if low, err := strconv.ParseFloat(pairs[1][1], 64); err == nil {
				reading.LowTodayF = floatPtr(low)
			}
		}
	}
	return reading, true
}

// stripTags flattens HTML into whitespace-separated text. Good enough for
// marker matching; a full parser is not worth the fragility trade.
func stripTags(html string) string {
	var b strings.Builder
	b.Grow(len(html))
	inTag := false
	for _, r := range html {
		switch {
		case r == '<':
			inTag = true
			b.WriteRune(' ')
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return b.String()
}

type manualReading struct {
	CurrentTemp *float64 `json:"current_temp"`
	HighToday   *float64 `json:"high_today"`
	LowToday    *float64 `json:"low_today"`
	Timestamp   string   `json:"timestamp"`
}

func (s *WethrSource) loadManual() (*Reading, error) {
	if s.manualPath == "" {
		return nil, fmt.Errorf("no manual data path configured")
	}
	data, err := os.ReadFile(s.manualPath)
	if err != nil {
		return nil, err
	}
	var manual manualReading
	if err := json.Unmarshal(data, &manual); err != nil {
		return nil, fmt.Errorf("parse manual weather data: %w", err)
	}
	if manual.CurrentTemp == nil {
		return nil, fmt.Errorf("manual weather data has no current_temp")
	}

	reading := &Reading{
		Source:       SourceScrape,
		ObservedAt:   time.Now(),
		CurrentTempF: manual.CurrentTemp,
		HighTodayF:   manual.HighToday,
		LowTodayF:    manual.LowToday,
	}
	if t, err := time.Parse(time.RFC3339, manual.Timestamp); err == nil {
		reading.ObservedAt = t
	}
	return reading, nil
}
