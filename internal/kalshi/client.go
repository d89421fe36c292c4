package kalshi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const apiPrefix = "/trade-api/v2"

// Client is a thin authenticated wrapper over the Kalshi trade API. It does
// not retry; retry and skip policy belongs to the caller.
type Client struct {
	baseURL string
	signer  *Signer
	http    *http.Client
	limiter *rate.Limiter
	log     zerolog.Logger
}

func NewClient(baseURL string, signer *Signer, timeout time.Duration, ratePerSecond int, log zerolog.Logger) *Client {
	if ratePerSecond <= 0 {
		ratePerSecond = 10
	}
	return &Client{
		baseURL: baseURL,
		signer:  signer,
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), ratePerSecond),
		log:     log,
	}
}

// do issues one signed request. Query parameters are appended to the URL but
// excluded from the signed path.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	signedPath := apiPrefix + path
	fullURL := c.baseURL + signedPath
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	headers, err := c.signer.Sign(time.Now().UnixMilli(), method, signedPath)
	if err != nil {
		return err
	}
	req.Header.Set(headerAccessKey, headers.AccessKey)
	req.Header.Set(headerAccessSignature, headers.AccessSignature)
	req.Header.Set(headerAccessTimestamp, headers.AccessTimestamp)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Status: resp.StatusCode, Body: string(b)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

func (c *Client) GetExchangeStatus(ctx context.Context) (*ExchangeStatus, error) {
	var status ExchangeStatus
	if err := c.do(ctx, http.MethodGet, "/exchange/status", nil, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *Client) GetMarket(ctx context.Context, ticker string) (*Market, error) {
	var resp marketResponse
	if err := c.do(ctx, http.MethodGet, "/markets/"+ticker, nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Market, nil
}

func (c *Client) GetOrderbook(ctx context.Context, ticker string, depth int) (*Orderbook, error) {
	query := url.Values{}
	if depth > 0 {
		query.Set("depth", strconv.Itoa(depth))
	}
	var resp orderbookResponse
	if err := c.do(ctx, http.MethodGet, "/markets/"+ticker+"/orderbook", query, nil, &resp); err != nil {
		return nil, err
	}
	ob := resp.Orderbook
	ob.sortBestFirst()
	ob.truncate(depth)
	return &ob, nil
}

// GetEventMarkets lists open markets under an event ticker.
func (c *Client) GetEventMarkets(ctx context.Context, eventTicker string, limit int) ([]Market, error) {
	query := url.Values{}
	query.Set("event_ticker", eventTicker)
	query.Set("status", "open")
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var resp marketsResponse
	if err := c.do(ctx, http.MethodGet, "/markets", query, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Markets, nil
}

func (c *Client) GetSeries(ctx context.Context, seriesTicker string) (*Series, error) {
	var resp seriesResponse
	if err := c.do(ctx, http.MethodGet, "/series/"+seriesTicker, nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Series, nil
}

func (c *Client) GetBalance(ctx context.Context) (*Balance, error) {
	var balance Balance
	if err := c.do(ctx, http.MethodGet, "/portfolio/balance", nil, nil, &balance); err != nil {
		return nil, err
	}
	return &balance, nil
}

func (c *Client) GetPositions(ctx context.Context) ([]Position, error) {
	var resp positionsResponse
	if err := c.do(ctx, http.MethodGet, "/portfolio/positions", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.MarketPositions, nil
}

func (c *Client) GetOrders(ctx context.Context, status string) ([]Order, error) {
	query := url.Values{}
	if status != "" {
		query.Set("status", status)
	}
	var resp ordersResponse
	if err := c.do(ctx, http.MethodGet, "/portfolio/orders", query, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Orders, nil
}

// PlaceOrder validates parameters locally and submits the order. Invalid
// parameters are rejected with a ValidationError before any network call.
func (c *Client) PlaceOrder(ctx context.Context, p OrderParams) (*Order, error) {
	if p.Ticker == "" {
		return nil, &ValidationError{Field: "ticker", Reason: "must not be empty"}
	}
	if p.Action != ActionBuy && p.Action != ActionSell {
		return nil, &ValidationError{Field: "action", Reason: "must be buy or sell"}
	}
	if p.Side != SideYes && p.Side != SideNo {
		return nil, &ValidationError{Field: "side", Reason: "must be yes or no"}
	}
	if p.Count <= 0 {
		return nil, &ValidationError{Field: "count", Reason: "must be positive"}
	}
	if p.Type != OrderTypeLimit && p.Type != OrderTypeMarket {
		return nil, &ValidationError{Field: "type", Reason: "must be limit or market"}
	}
	if p.Type == OrderTypeLimit && (p.PriceCents < 1 || p.PriceCents > 99) {
		return nil, &ValidationError{Field: "price_cents", Reason: "must be within 1-99"}
	}

	req := orderRequest{
		Ticker:        p.Ticker,
		ClientOrderID: uuid.NewString(),
		Action:        p.Action,
		Side:          p.Side,
		Count:         p.Count,
		Type:          p.Type,
	}
	if p.Type == OrderTypeLimit {
		price := p.PriceCents
		if p.Side == SideYes {
			req.YesPrice = &price
		} else {
			req.NoPrice = &price
		}
	}

	c.log.Info().
		Str("ticker", p.Ticker).
		Str("action", p.Action).
		Str("side", p.Side).
		Int("count", p.Count).
		Int("price_cents", p.PriceCents).
		Msg("placing order")

	var resp orderResponse
	if err := c.do(ctx, http.MethodPost, "/portfolio/orders", nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp.Order, nil
}

func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	if orderID == "" {
		return &ValidationError{Field: "order_id", Reason: "must not be empty"}
	}
	return c.do(ctx, http.MethodDelete, "/portfolio/orders/"+orderID, nil, nil, nil)
}
