package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const nwsObservationBody = `{
  "properties": {
    "timestamp": "2026-01-26T18:53:00+00:00",
    "temperature": {"value": 29.4},
    "maxTemperatureLast24Hours": {"value": 30.0},
    "minTemperatureLast24Hours": {"value": 21.1}
  }
}`

func TestNWSFetch_ConvertsAndRounds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/stations/KMIA/observations/latest" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("User-Agent") == "" {
			t.Error("request missing User-Agent")
		}
		w.Write([]byte(nwsObservationBody))
	}))
	defer srv.Close()

	src := NewNWSSource(srv.URL, "KMIA", "test-agent", 5*time.Second, time.Minute)
	reading, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	// 29.4C is 84.92F, rounded to the whole degree the market resolves on.
	if reading.CurrentTempF == nil || *reading.CurrentTempF != 85 {
		t.Fatalf("want current 85F, got %v", reading.CurrentTempF)
	}
	if reading.HighTodayF == nil || *reading.HighTodayF != 86 {
		t.Fatalf("want high 86F, got %v", reading.HighTodayF)
	}
	if reading.LowTodayF == nil || *reading.LowTodayF != 70 {
		t.Fatalf("want low 70F, got %v", reading.LowTodayF)
	}
	if reading.Source != SourceStation {
		t.Fatalf("want source %s, got %s", SourceStation, reading.Source)
	}
	if reading.ObservedAt.UTC().Hour() != 18 {
		t.Fatalf("observation timestamp not parsed: %v", reading.ObservedAt)
	}
}

func TestNWSFetch_CachesWithinTTL(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte(nwsObservationBody))
	}))
	defer srv.Close()

	src := NewNWSSource(srv.URL, "KMIA", "test-agent", 5*time.Second, time.Hour)
	for i := 0; i < 3; i++ {
		if _, err := src.Fetch(context.Background()); err != nil {
			t.Fatalf("Fetch %d: %v", i, err)
		}
	}
	if hits != 1 {
		t.Fatalf("want 1 upstream hit within TTL, got %d", hits)
	}
}

func TestNWSFetch_NoCurrentTemperature(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"properties": {"temperature": {"value": null}}}`))
	}))
	defer srv.Close()

	src := NewNWSSource(srv.URL, "KMIA", "test-agent", 5*time.Second, 0)
	if _, err := src.Fetch(context.Background()); err == nil {
		t.Fatal("want error when observation has no temperature")
	}
}
