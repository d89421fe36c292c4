package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var wethrPageBody = `<!DOCTYPE html>
<html><body>
<div class="hero"><span>MIAMI</span><p>CURRENT TEMP</p><h1>85°</h1></div>
<section><h2>WETHR EXTREMES</h2>
<div><span>86°</span><span>2:41 PM</span></div>
<div><span>71°</span><span>6:12 AM</span></div>
</section>
<footer>` + strings.Repeat("x", 200) + `</footer>
</body></html>`

func TestWethrScrape_ParsesPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/market/miami" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("User-Agent") == "" {
			t.Error("request missing browser user agent")
		}
		w.Write([]byte(wethrPageBody))
	}))
	defer srv.Close()

	src := NewWethrSource(srv.URL, "", 5*time.Second)
	reading, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if reading.CurrentTempF == nil || *reading.CurrentTempF != 85 {
		t.Fatalf("want current 85F, got %v", reading.CurrentTempF)
	}
	if reading.HighTodayF == nil || *reading.HighTodayF != 86 {
		t.Fatalf("want high 86F, got %v", reading.HighTodayF)
	}
	if reading.LowTodayF == nil || *reading.LowTodayF != 71 {
		t.Fatalf("want low 71F, got %v", reading.LowTodayF)
	}
	if reading.Source != SourceScrape {
		t.Fatalf("want source %s, got %s", SourceScrape, reading.Source)
	}
}

func TestWethrScrape_RetriesOn406(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if hits == 1 {
			w.WriteHeader(http.StatusNotAcceptable)
			return
		}
		w.Write([]byte(wethrPageBody))
	}))
	defer srv.Close()

	src := NewWethrSource(srv.URL, "", 5*time.Second)
	reading, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch after retry: %v", err)
	}
	if hits != 2 {
		t.Fatalf("want exactly one retry, got %d hits", hits)
	}
	if *reading.CurrentTempF != 85 {
		t.Fatalf("want 85F, got %v", *reading.CurrentTempF)
	}
}

func TestWethrFetch_ManualFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	manual := filepath.Join(t.TempDir(), "weather_data.json")
	data := `{"current_temp": 84.0, "high_today": 87.0, "low_today": 72.0, "timestamp": "2026-01-26T15:00:00Z"}`
	if err := os.WriteFile(manual, []byte(data), 0o644); err != nil {
		t.Fatalf("write manual data: %v", err)
	}

	src := NewWethrSource(srv.URL, manual, 5*time.Second)
	reading, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch with manual fallback: %v", err)
	}
	if *reading.CurrentTempF != 84 || *reading.HighTodayF != 87 {
		t.Fatalf("manual data not loaded: %+v", reading)
	}
	if reading.ObservedAt.UTC().Hour() != 15 {
		t.Fatalf("manual timestamp not parsed: %v", reading.ObservedAt)
	}
}

func TestWethrFetch_ScrapeErrorWithoutManual(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	src := NewWethrSource(srv.URL, "", 5*time.Second)
	if _, err := src.Fetch(context.Background()); err == nil {
		t.Fatal("want scrape error when no manual data exists")
	}
}

func TestParseWethrPage_NegativeTemperatures(t *testing.T) {
	page := `<html><body>
<p>CURRENT TEMP</p><h1>-4°</h1>
<h2>WETHR EXTREMES</h2>
<div><span>-2°</span><span>2:41 PM</span></div>
<div><span>-11°</span><span>6:12 AM</span></div>
</body></html>`

	reading, ok := parseWethrPage(page)
	if !ok {
		t.Fatal("sub-zero page must parse")
	}
	if *reading.CurrentTempF != -4 {
		t.Fatalf("want current -4F, got %v", *reading.CurrentTempF)
	}
	if reading.HighTodayF == nil || *reading.HighTodayF != -2 {
		t.Fatalf("want high -2F, got %v", reading.HighTodayF)
	}
	if reading.LowTodayF == nil || *reading.LowTodayF != -11 {
		t.Fatalf("want low -11F, got %v", reading.LowTodayF)
	}
}

func TestParseWethrPage_NoCurrentTemp(t *testing.T) {
	if _, ok := parseWethrPage("<html><body>nothing useful here, but long enough to not look blocked</body></html>"); ok {
		t.Fatal("want parse failure for page without current temp")
	}
}
