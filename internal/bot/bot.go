package bot

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Mohpann/kalshi-weather/internal/config"
	"github.com/Mohpann/kalshi-weather/internal/forecast"
	"github.com/Mohpann/kalshi-weather/internal/kalshi"
	"github.com/Mohpann/kalshi-weather/internal/metrics"
	"github.com/Mohpann/kalshi-weather/internal/opportunity"
	"github.com/Mohpann/kalshi-weather/internal/state"
	"github.com/Mohpann/kalshi-weather/internal/weather"
)

// Bot runs the heartbeat loop: fetch, compare, persist, sleep. Every
// per-cycle failure is logged and treated as absent data; the loop only
// stops on interrupt.
type Bot struct {
	cfg      *config.Config
	log      zerolog.Logger
	kalshi   *kalshi.Client
	weather  *weather.Chain
	forecast *forecast.Client
	agg      *state.Aggregate
	store    *state.Store
	metrics  *metrics.Recorder

	thresholds opportunity.Thresholds

	// Slow-moving upstream data is cached across cycles with its own TTL.
	eventMarketsAt    time.Time
	eventMarketsCache []kalshi.Market
	eventBooksAt      time.Time
	eventBooksCache   []state.EventOrderbook
	forecastAt        time.Time
	forecastCache     *forecast.Pair
}

func New(
	cfg *config.Config,
	log zerolog.Logger,
	client *kalshi.Client,
	chain *weather.Chain,
	forecastClient *forecast.Client,
	agg *state.Aggregate,
	store *state.Store,
	recorder *metrics.Recorder,
) *Bot {
	return &Bot{
		cfg:      cfg,
		log:      log,
		kalshi:   client,
		weather:  chain,
		forecast: forecastClient,
		agg:      agg,
		store:    store,
		metrics:  recorder,
		thresholds: opportunity.Thresholds{
			GreaterMarginF:       cfg.Trading.GreaterMarginF,
			LessMarginF:          cfg.Trading.LessMarginF,
			BetweenSlackF:        cfg.Trading.BetweenSlackF,
			GreaterMaxPriceCents: cfg.Trading.GreaterMaxPriceCents,
			LessMaxPriceCents:    cfg.Trading.LessMaxPriceCents,
			BetweenMaxPriceCents: cfg.Trading.BetweenMaxPriceCents,
		},
	}
}

// Verify confirms the configured series exists. Called once at startup;
// failure is logged, not fatal.
func (b *Bot) Verify(ctx context.Context) {
	series, err := b.kalshi.GetSeries(ctx, b.cfg.Kalshi.SeriesTicker)
	if err != nil {
		b.log.Warn().Err(err).Str("series", b.cfg.Kalshi.SeriesTicker).Msg("series lookup failed")
		return
	}
	b.log.Info().Str("series", series.Ticker).Str("title", series.Title).Msg("series confirmed")
}

// Run executes cycles on a fixed interval until the context is cancelled.
// The interrupt is checked between cycles; in-flight calls finish first.
func (b *Bot) Run(ctx context.Context) error {
	interval := b.cfg.Bot.Interval()
	b.log.Info().Dur("interval", interval).Msg("heartbeat started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	b.runCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			b.log.Info().Msg("heartbeat stopped")
			return nil
		case <-ticker.C:
			b.runCycle(ctx)
		}
	}
}

func (b *Bot) runCycle(ctx context.Context) {
	started := time.Now()
	defer func() {
		b.metrics.ObserveCycle(time.Since(started))
	}()

	if status, err := b.kalshi.GetExchangeStatus(ctx); err != nil {
		b.log.Warn().Err(err).Msg("exchange status unavailable")
		b.metrics.RecordFetchFailure("exchange_status")
	} else if !status.ExchangeActive || !status.TradingActive {
		b.log.Warn().
			Bool("exchange_active", status.ExchangeActive).
			Bool("trading_active", status.TradingActive).
			Msg("exchange inactive, skipping cycle")
		return
	}

	ticker := b.resolveTicker()
	res := state.CycleResult{
		Ticker:      ticker,
		EventTicker: b.cfg.Kalshi.EventTicker,
	}

	// The fetches have no ordering dependency; each goroutine writes only
	// its own result slots and the merge happens once, after all complete.
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		reading, err := b.weather.Fetch(ctx)
		if err != nil {
			b.log.Warn().Err(err).Msg("no weather reading this cycle")
			b.metrics.RecordFetchFailure("weather")
			return
		}
		res.Weather = reading
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		res.Forecast = b.forecastPair(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		market, err := b.kalshi.GetMarket(ctx, ticker)
		if err != nil {
			b.log.Warn().Err(err).Str("ticker", ticker).Msg("market fetch failed")
			b.metrics.RecordFetchFailure("market")
		} else {
			res.Market = market
		}

		book, err := b.kalshi.GetOrderbook(ctx, ticker, b.cfg.Kalshi.OrderbookDepth)
		if err != nil {
			b.log.Warn().Err(err).Str("ticker", ticker).Msg("orderbook fetch failed")
			b.metrics.RecordFetchFailure("orderbook")
		} else {
			res.Orderbook = book
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if balance, err := b.kalshi.GetBalance(ctx); err != nil {
			b.log.Warn().Err(err).Msg("balance fetch failed")
			b.metrics.RecordFetchFailure("balance")
		} else {
			res.Balance = balance
		}
		if positions, err := b.kalshi.GetPositions(ctx); err != nil {
			b.log.Warn().Err(err).Msg("positions fetch failed")
			b.metrics.RecordFetchFailure("positions")
		} else {
			res.Positions = positions
		}
		if orders, err := b.kalshi.GetOrders(ctx, "executed"); err != nil {
			b.log.Warn().Err(err).Msg("orders fetch failed")
			b.metrics.RecordFetchFailure("orders")
		} else {
			res.Orders = orders
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if b.cfg.Kalshi.EventTicker == "" {
			return
		}
		markets := b.eventMarkets(ctx)
		res.EventMarkets = markets
		res.EventOrderbooks = b.eventOrderbooks(ctx, markets)
	}()

	wg.Wait()

	res.Opportunities = b.evaluateOpportunities(res)

	now := time.Now()
	b.agg.Merge(now, res)
	snap := b.agg.Snapshot(now)
	if err := b.store.Write(snap); err != nil {
		b.log.Error().Err(err).Msg("snapshot persist failed")
	} else {
		b.metrics.RecordSnapshotWrite()
	}

	b.maybeTrade(ctx, ticker, res)

	b.log.Info().
		Str("ticker", ticker).
		Bool("weather", res.Weather != nil).
		Bool("market", res.Market != nil).
		Bool("forecast", res.Forecast != nil).
		Int("opportunities", len(res.Opportunities)).
		Dur("took", time.Since(started)).
		Msg("cycle complete")
}

func (b *Bot) resolveTicker() string {
	if override := b.cfg.Kalshi.MarketTickerOverride; override != "" {
		return override
	}
	return TickerForDate(b.cfg.Kalshi.SeriesTicker, time.Now())
}

func (b *Bot) forecastPair(ctx context.Context) *forecast.Pair {
	if b.forecast == nil {
		return nil
	}
	if b.forecastCache != nil && time.Since(b.forecastAt) < b.cfg.Forecast.Refresh() {
		return b.forecastCache
	}
	pair, err := b.forecast.DailyHighs(ctx, b.cfg.Forecast.Latitude, b.cfg.Forecast.Longitude, time.Now())
	if err != nil {
		b.log.Warn().Err(err).Msg("forecast fetch failed")
		b.metrics.RecordFetchFailure("forecast")
		// Absent this cycle. The aggregate keeps the last merged pair under
		// its own staleness TTL; handing back the expired cache here would
		// restamp it fresh on every merge and it could never expire.
		return nil
	}
	b.forecastCache = pair
	b.forecastAt = time.Now()
	return pair
}

func (b *Bot) eventMarkets(ctx context.Context) []kalshi.Market {
	if b.eventMarketsCache != nil && time.Since(b.eventMarketsAt) < b.cfg.Bot.EventMarketsRefresh() {
		return b.eventMarketsCache
	}
	markets, err := b.kalshi.GetEventMarkets(ctx, b.cfg.Kalshi.EventTicker, b.cfg.Kalshi.EventMarketLimit)
	if err != nil {
		b.log.Warn().Err(err).Str("event", b.cfg.Kalshi.EventTicker).Msg("event markets fetch failed")
		b.metrics.RecordFetchFailure("event_markets")
		return b.eventMarketsCache
	}
	b.eventMarketsCache = markets
	b.eventMarketsAt = time.Now()
	return markets
}

func (b *Bot) eventOrderbooks(ctx context.Context, markets []kalshi.Market) []state.EventOrderbook {
	if b.eventBooksCache != nil && time.Since(b.eventBooksAt) < b.cfg.Bot.EventOrderbooksRefresh() {
		return b.eventBooksCache
	}

	limit := b.cfg.Kalshi.EventOrderbookLimit
	books := make([]state.EventOrderbook, 0, len(markets))
	for i, market := range markets {
		if limit > 0 && i >= limit {
			break
		}
		book, err := b.kalshi.GetOrderbook(ctx, market.Ticker, b.cfg.Kalshi.OrderbookDepth)
		if err != nil {
			b.log.Warn().Err(err).Str("ticker", market.Ticker).Msg("event orderbook fetch failed")
			continue
		}
		books = append(books, state.EventOrderbook{Ticker: market.Ticker, Orderbook: *book})
	}
	b.eventBooksCache = books
	b.eventBooksAt = time.Now()
	return books
}

// evaluateOpportunities runs the decision rule over every market with a
// parsable numeric condition in its title. Absent forecast means an empty
// list.
func (b *Bot) evaluateOpportunities(res state.CycleResult) []opportunity.Opportunity {
	avg := res.Forecast.Average()
	if avg == nil {
		return nil
	}
	forecastF := *avg

	bookByTicker := make(map[string]*kalshi.Orderbook, len(res.EventOrderbooks)+1)
	for i := range res.EventOrderbooks {
		bookByTicker[res.EventOrderbooks[i].Ticker] = &res.EventOrderbooks[i].Orderbook
	}
	if res.Orderbook != nil {
		bookByTicker[res.Ticker] = res.Orderbook
	}

	candidates := res.EventMarkets
	if res.Market != nil && !containsTicker(candidates, res.Market.Ticker) {
		candidates = append(append([]kalshi.Market(nil), candidates...), *res.Market)
	}

	var opps []opportunity.Opportunity
	for _, market := range candidates {
		cond, ok := opportunity.ParseCondition(market.Title)
		if !ok {
			continue
		}
		price, ok := observedPrice(bookByTicker[market.Ticker], market.LastPrice)
		if !ok {
			continue
		}
		opp := opportunity.Evaluate(market.Ticker, market.Title, cond, forecastF, price, b.thresholds)
		b.metrics.RecordOpportunity(opp.Decision)
		if opp.Decision {
			b.log.Info().
				Str("ticker", opp.Ticker).
				Str("condition", cond.String()).
				Float64("forecast_f", forecastF).
				Int("price_cents", price).
				Msg("opportunity detected")
		}
		opps = append(opps, opp)
	}
	return opps
}

// observedPrice is the best resting YES bid, falling back to the market's
// last trade price. Markets with neither are skipped.
func observedPrice(book *kalshi.Orderbook, lastPrice *int) (int, bool) {
	if book != nil {
		if best, ok := book.BestYes(); ok {
			return best.PriceCents, true
		}
	}
	if lastPrice != nil {
		return *lastPrice, true
	}
	return 0, false
}

func containsTicker(markets []kalshi.Market, ticker string) bool {
	for _, m := range markets {
		if m.Ticker == ticker {
			return true
		}
	}
	return false
}

// maybeTrade submits a capped buy-YES limit order for the primary market
// when trading is enabled and the cycle flagged it. Order failures are
// logged, never fatal.
func (b *Bot) maybeTrade(ctx context.Context, ticker string, res state.CycleResult) {
	if !b.cfg.Trading.Enabled {
		return
	}

	var signal *opportunity.Opportunity
	for i := range res.Opportunities {
		if res.Opportunities[i].Ticker == ticker && res.Opportunities[i].Decision {
			signal = &res.Opportunities[i]
			break
		}
	}
	if signal == nil {
		return
	}

	exposure := 0
	for _, pos := range res.Positions {
		if pos.Ticker == ticker {
			if pos.Position < 0 {
				exposure += -pos.Position
			} else {
				exposure += pos.Position
			}
		}
	}
	count := b.cfg.Trading.MaxOrderSize
	if capacity := b.cfg.Trading.MaxPosition - exposure; capacity < count {
		count = capacity
	}
	if count <= 0 {
		b.log.Info().Str("ticker", ticker).Int("exposure", exposure).Msg("position limit reached, skipping order")
		return
	}

	price := signal.ObservedPriceCents
	if price < 1 {
		price = 1
	}
	if price > 99 {
		price = 99
	}

	order, err := b.kalshi.PlaceOrder(ctx, kalshi.OrderParams{
		Ticker:     ticker,
		Action:     kalshi.ActionBuy,
		Side:       kalshi.SideYes,
		Count:      count,
		Type:       kalshi.OrderTypeLimit,
		PriceCents: price,
	})
	if err != nil {
		b.log.Error().Err(err).Str("ticker", ticker).Msg("order placement failed")
		b.metrics.RecordOrder("error")
		return
	}
	b.metrics.RecordOrder("placed")
	b.log.Info().Str("ticker", ticker).Str("order_id", order.OrderID).Int("count", count).Int("price_cents", price).Msg("order placed")
}
