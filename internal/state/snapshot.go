package state

import (
	"time"

	"github.com/Mohpann/kalshi-weather/internal/forecast"
	"github.com/Mohpann/kalshi-weather/internal/kalshi"
	"github.com/Mohpann/kalshi-weather/internal/opportunity"
	"github.com/Mohpann/kalshi-weather/internal/weather"
)

// Snapshot is the persisted aggregate document, overwritten wholesale each
// cycle. Every field is optional; readers must tolerate missing keys.
type Snapshot struct {
	Timestamp      time.Time `json:"timestamp"`
	Ticker         string    `json:"ticker,omitempty"`
	Title          string    `json:"title,omitempty"`
	Status         string    `json:"status,omitempty"`
	LastPriceCents *int      `json:"last_price,omitempty"`
	Volume         *int64    `json:"volume,omitempty"`

	Weather      *weather.Reading `json:"weather,omitempty"`
	Forecast     *forecast.Pair   `json:"open_meteo,omitempty"`
	ForecastAvgF *float64         `json:"forecast_avg_f,omitempty"`

	Orderbook *kalshi.Orderbook `json:"orderbook,omitempty"`

	BalanceCents *int64            `json:"balance,omitempty"`
	Positions    []kalshi.Position `json:"positions,omitempty"`
	Orders       []kalshi.Order    `json:"orders,omitempty"`

	EventTicker     string           `json:"event_ticker,omitempty"`
	EventMarkets    []kalshi.Market  `json:"event_markets,omitempty"`
	EventOrderbooks []EventOrderbook `json:"event_orderbooks,omitempty"`

	Opportunities []opportunity.Opportunity `json:"opportunities,omitempty"`
}

// EventOrderbook pairs an event market's ticker with its book.
type EventOrderbook struct {
	Ticker    string           `json:"ticker"`
	Orderbook kalshi.Orderbook `json:"orderbook"`
}

func (s Snapshot) clone() Snapshot {
	out := s
	if s.LastPriceCents != nil {
		v := *s.LastPriceCents
		out.LastPriceCents = &v
	}
	if s.Volume != nil {
		v := *s.Volume
		out.Volume = &v
	}
	if s.Weather != nil {
		w := *s.Weather
		out.Weather = &w
	}
	if s.Forecast != nil {
		f := *s.Forecast
		out.Forecast = &f
	}
	if s.ForecastAvgF != nil {
		v := *s.ForecastAvgF
		out.ForecastAvgF = &v
	}
	if s.Orderbook != nil {
		ob := *s.Orderbook
		ob.Yes = append([]kalshi.PriceLevel(nil), s.Orderbook.Yes...)
		ob.No = append([]kalshi.PriceLevel(nil), s.Orderbook.No...)
		out.Orderbook = &ob
	}
	if s.BalanceCents != nil {
		v := *s.BalanceCents
		out.BalanceCents = &v
	}
	out.Positions = append([]kalshi.Position(nil), s.Positions...)
	out.Orders = append([]kalshi.Order(nil), s.Orders...)
	out.EventMarkets = append([]kalshi.Market(nil), s.EventMarkets...)
	out.EventOrderbooks = append([]EventOrderbook(nil), s.EventOrderbooks...)
	out.Opportunities = append([]opportunity.Opportunity(nil), s.Opportunities...)
	return out
}
