package weather

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

const (
	SourceStation       = "station"
	SourceCommercialAPI = "commercial-api"
	SourceScrape        = "scrape"
)

// Reading is a normalized observation. A reading is produced whole by
// exactly one source per cycle; fields are never merged across sources
// within one reading.
type Reading struct {
	CurrentTempF *float64  `json:"current_temp_f,omitempty"`
	HighTodayF   *float64  `json:"high_today_f,omitempty"`
	LowTodayF    *float64  `json:"low_today_f,omitempty"`
	ObservedAt   time.Time `json:"observed_at"`
	Source       string    `json:"source"`
}

// SourceError marks a non-fatal adapter failure. The chain falls through to
// the next source.
type SourceError struct {
	Source string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("weather source %s: %v", e.Source, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// Source produces a Reading or fails. Adapters share no state.
type Source interface {
	Name() string
	Fetch(ctx context.Context) (*Reading, error)
}

// Chain tries sources in priority order and uses the first success. Later
// sources are not consulted once one succeeds.
type Chain struct {
	sources []Source
	log     zerolog.Logger
}

func NewChain(log zerolog.Logger, sources ...Source) *Chain {
	return &Chain{sources: sources, log: log}
}

func (c *Chain) Fetch(ctx context.Context) (*Reading, error) {
	for _, src := range c.sources {
		reading, err := src.Fetch(ctx)
		if err != nil {
			c.log.Warn().Str("source", src.Name()).Err(err).Msg("weather source failed, falling through")
			continue
		}
		c.log.Debug().Str("source", src.Name()).Msg("weather reading loaded")
		return reading, nil
	}
	return nil, &SourceError{Source: "chain", Err: fmt.Errorf("all %d sources failed", len(c.sources))}
}

func floatPtr(v float64) *float64 { return &v }
