package forecast

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func hourlyBody(day string, temps []float64) string {
	times := make([]string, len(temps))
	values := make([]string, len(temps))
	for i, v := range temps {
		times[i] = fmt.Sprintf(`"%sT%02d:00"`, day, i)
		values[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return fmt.Sprintf(`{"hourly":{"time":[%s],"temperature_2m":[%s]}}`,
		strings.Join(times, ","), strings.Join(values, ","))
}

func TestDailyHighs_BothModels(t *testing.T) {
	day := "2026-01-26"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("temperature_unit") != "fahrenheit" || q.Get("hourly") != "temperature_2m" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		switch {
		case strings.HasPrefix(r.URL.Path, "/v1/gfs"):
			w.Write([]byte(hourlyBody(day, []float64{80, 86, 84})))
		case strings.HasPrefix(r.URL.Path, "/v1/ecmwf"):
			w.Write([]byte(hourlyBody(day, []float64{81, 84, 83})))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second, zerolog.Nop())
	date := time.Date(2026, time.January, 26, 9, 0, 0, 0, time.UTC)
	pair, err := client.DailyHighs(context.Background(), 25.78805, -80.31694, date)
	if err != nil {
		t.Fatalf("DailyHighs: %v", err)
	}
	if *pair.GFSHighF != 86 || *pair.ECMWFHighF != 84 {
		t.Fatalf("unexpected highs: %+v", pair)
	}
	if *pair.SpreadF != 2 {
		t.Fatalf("want spread 2, got %v", *pair.SpreadF)
	}
	if *pair.Average() != 85 {
		t.Fatalf("want average 85, got %v", *pair.Average())
	}
}

func TestDailyHighs_OneModelFails(t *testing.T) {
	day := "2026-01-26"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/v1/ecmwf") {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(hourlyBody(day, []float64{82, 88})))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second, zerolog.Nop())
	date := time.Date(2026, time.January, 26, 9, 0, 0, 0, time.UTC)
	pair, err := client.DailyHighs(context.Background(), 0, 0, date)
	if err != nil {
		t.Fatalf("one failing model must not fail the call: %v", err)
	}
	if pair.ECMWFHighF != nil {
		t.Fatalf("failed model must stay nil, got %v", *pair.ECMWFHighF)
	}
	if *pair.GFSHighF != 88 {
		t.Fatalf("want gfs high 88, got %v", *pair.GFSHighF)
	}
	if pair.SpreadF != nil {
		t.Fatal("spread requires both models")
	}
	if *pair.Average() != 88 {
		t.Fatalf("average with one model must pass it through, got %v", *pair.Average())
	}
}

func TestDailyHighs_BothModelsFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second, zerolog.Nop())
	if _, err := client.DailyHighs(context.Background(), 0, 0, time.Now()); err == nil {
		t.Fatal("want error when both models fail")
	}
}

func TestDailyHighs_IgnoresOtherDates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Tomorrow runs hotter; only the target date may count.
		w.Write([]byte(`{"hourly":{
			"time":["2026-01-26T12:00","2026-01-26T13:00","2026-01-27T12:00"],
			"temperature_2m":[84,85,95]
		}}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second, zerolog.Nop())
	date := time.Date(2026, time.January, 26, 9, 0, 0, 0, time.UTC)
	pair, err := client.DailyHighs(context.Background(), 0, 0, date)
	if err != nil {
		t.Fatalf("DailyHighs: %v", err)
	}
	if *pair.GFSHighF != 85 || *pair.ECMWFHighF != 85 {
		t.Fatalf("next-day hours leaked into the daily high: %+v", pair)
	}
}

func TestPairAverage_Nil(t *testing.T) {
	var p *Pair
	if p.Average() != nil {
		t.Fatal("nil pair must average to nil")
	}
	if (&Pair{}).Average() != nil {
		t.Fatal("empty pair must average to nil")
	}
}
