package kalshi

import (
	"encoding/json"
	"sort"
)

const (
	ActionBuy  = "buy"
	ActionSell = "sell"

	SideYes = "yes"
	SideNo  = "no"

	OrderTypeLimit  = "limit"
	OrderTypeMarket = "market"
)

type ExchangeStatus struct {
	ExchangeActive bool `json:"exchange_active"`
	TradingActive  bool `json:"trading_active"`
}

type Market struct {
	Ticker      string `json:"ticker"`
	EventTicker string `json:"event_ticker,omitempty"`
	Title       string `json:"title"`
	Status      string `json:"status"`
	LastPrice   *int   `json:"last_price,omitempty"`
	Volume      int64  `json:"volume"`
	CloseTime   string `json:"close_time,omitempty"`
}

type marketResponse struct {
	Market Market `json:"market"`
}

type marketsResponse struct {
	Markets []Market `json:"markets"`
	Cursor  string   `json:"cursor,omitempty"`
}

// PriceLevel is one resting bid level. The API encodes levels as
// [price_cents, count] pairs.
type PriceLevel struct {
	PriceCents int `json:"price"`
	Count      int `json:"count"`
}

func (l *PriceLevel) UnmarshalJSON(data []byte) error {
	var pair [2]int
	if err := json.Unmarshal(data, &pair); err == nil {
		l.PriceCents, l.Count = pair[0], pair[1]
		return nil
	}
	var obj struct {
		Price int `json:"price"`
		Count int `json:"count"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	l.PriceCents, l.Count = obj.Price, obj.Count
	return nil
}

// Orderbook holds resting bids for both sides of a binary market. Both
// sides are bids; each is kept best price first.
type Orderbook struct {
	Yes []PriceLevel `json:"yes"`
	No  []PriceLevel `json:"no"`
}

func (ob *Orderbook) sortBestFirst() {
	sort.Slice(ob.Yes, func(i, j int) bool { return ob.Yes[i].PriceCents > ob.Yes[j].PriceCents })
	sort.Slice(ob.No, func(i, j int) bool { return ob.No[i].PriceCents > ob.No[j].PriceCents })
}

// BestYes returns the top YES bid, if any.
func (ob *Orderbook) BestYes() (PriceLevel, bool) {
	if len(ob.Yes) == 0 {
		return PriceLevel{}, false
	}
	return ob.Yes[0], true
}

func (ob *Orderbook) truncate(depth int) {
	if depth <= 0 {
		return
	}
	if len(ob.Yes) > depth {
		ob.Yes = ob.Yes[:depth]
	}
	if len(ob.No) > depth {
		ob.No = ob.No[:depth]
	}
}

type orderbookResponse struct {
	Orderbook Orderbook `json:"orderbook"`
}

type Series struct {
	Ticker    string `json:"ticker"`
	Title     string `json:"title,omitempty"`
	Frequency string `json:"frequency,omitempty"`
}

type seriesResponse struct {
	Series Series `json:"series"`
}

type Balance struct {
	BalanceCents int64 `json:"balance"`
}

type Position struct {
	Ticker             string `json:"ticker"`
	Position           int    `json:"position"`
	MarketExposure     int64  `json:"market_exposure,omitempty"`
	RestingOrdersCount int    `json:"resting_orders_count,omitempty"`
}

type positionsResponse struct {
	MarketPositions []Position `json:"market_positions"`
}

type Order struct {
	OrderID  string `json:"order_id"`
	Ticker   string `json:"ticker"`
	Action   string `json:"action"`
	Side     string `json:"side"`
	Count    int    `json:"count"`
	Type     string `json:"type,omitempty"`
	YesPrice *int   `json:"yes_price,omitempty"`
	NoPrice  *int   `json:"no_price,omitempty"`
	Status   string `json:"status,omitempty"`
}

type ordersResponse struct {
	Orders []Order `json:"orders"`
}

type orderResponse struct {
	Order Order `json:"order"`
}

// OrderParams describes one order placement. PriceCents is required for
// limit orders and is sent on the side-specific wire field.
type OrderParams struct {
	Ticker     string
	Action     string
	Side       string
	Count      int
	Type       string
	PriceCents int
}

type orderRequest struct {
	Ticker        string `json:"ticker"`
	ClientOrderID string `json:"client_order_id"`
	Action        string `json:"action"`
	Side          string `json:"side"`
	Count         int    `json:"count"`
	Type          string `json:"type"`
	YesPrice      *int   `json:"yes_price,omitempty"`
	NoPrice       *int   `json:"no_price,omitempty"`
}
