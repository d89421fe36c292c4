package state

import (
	"sync"
	"time"

	"github.com/Mohpann/kalshi-weather/internal/forecast"
	"github.com/Mohpann/kalshi-weather/internal/kalshi"
	"github.com/Mohpann/kalshi-weather/internal/opportunity"
	"github.com/Mohpann/kalshi-weather/internal/weather"
)

// CycleResult carries everything one heartbeat cycle produced. Nil fields
// were unavailable this cycle and leave the previous aggregate values in
// place; opportunities are the exception and are replaced every cycle.
type CycleResult struct {
	Ticker          string
	Market          *kalshi.Market
	Orderbook       *kalshi.Orderbook
	Weather         *weather.Reading
	Forecast        *forecast.Pair
	Balance         *kalshi.Balance
	Positions       []kalshi.Position
	Orders          []kalshi.Order
	EventTicker     string
	EventMarkets    []kalshi.Market
	EventOrderbooks []EventOrderbook
	Opportunities   []opportunity.Opportunity
}

// Aggregate is the orchestrator's latest-known-good state, merged by
// presence across cycles. Single writer (the bot); the merge is a single
// critical section so readers never observe a torn snapshot.
type Aggregate struct {
	mu         sync.RWMutex
	snap       Snapshot
	weatherAt  time.Time
	forecastAt time.Time
	staleAfter time.Duration
}

func NewAggregate(staleAfter time.Duration) *Aggregate {
	return &Aggregate{staleAfter: staleAfter}
}

// Merge folds one cycle's results into the aggregate.
func (a *Aggregate) Merge(now time.Time, res CycleResult) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.snap.Timestamp = now
	if res.Ticker != "" {
		a.snap.Ticker = res.Ticker
	}
	if res.Market != nil {
		a.snap.Title = res.Market.Title
		a.snap.Status = res.Market.Status
		a.snap.LastPriceCents = res.Market.LastPrice
		volume := res.Market.Volume
		a.snap.Volume = &volume
	}
	if res.Orderbook != nil {
		a.snap.Orderbook = res.Orderbook
	}
	if res.Weather != nil {
		a.snap.Weather = res.Weather
		a.weatherAt = now
	}
	if res.Forecast != nil {
		a.snap.Forecast = res.Forecast
		a.snap.ForecastAvgF = res.Forecast.Average()
		a.forecastAt = now
	}
	if res.Balance != nil {
		balance := res.Balance.BalanceCents
		a.snap.BalanceCents = &balance
	}
	if res.Positions != nil {
		a.snap.Positions = res.Positions
	}
	if res.Orders != nil {
		a.snap.Orders = res.Orders
	}
	if res.EventTicker != "" {
		a.snap.EventTicker = res.EventTicker
	}
	if res.EventMarkets != nil {
		a.snap.EventMarkets = res.EventMarkets
	}
	if res.EventOrderbooks != nil {
		a.snap.EventOrderbooks = res.EventOrderbooks
	}

	// Opportunities are recomputed per cycle, never carried forward.
	a.snap.Opportunities = res.Opportunities
}

// Snapshot returns a copy of the aggregate for persistence. Weather and
// forecast entries past the staleness TTL are reported as absent rather
// than carried indefinitely.
func (a *Aggregate) Snapshot(now time.Time) Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()

	snap := a.snap.clone()
	if a.staleAfter > 0 {
		if snap.Weather != nil && now.Sub(a.weatherAt) > a.staleAfter {
			snap.Weather = nil
		}
		if snap.Forecast != nil && now.Sub(a.forecastAt) > a.staleAfter {
			snap.Forecast = nil
			snap.ForecastAvgF = nil
		}
	}
	return snap
}
