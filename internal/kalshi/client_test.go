package kalshi

import (
	"context"
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testClient(t *testing.T, handler http.Handler) (*Client, *rsa.PrivateKey, *httptest.Server) {
	t.Helper()
	key, pemBytes := testKeyPEM(t)
	signer, err := NewSigner("key-123", pemBytes)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, signer, 5*time.Second, 100, zerolog.Nop()), key, srv
}

func TestGetOrderbook_SignsPathWithoutQuery(t *testing.T) {
	var key *rsa.PrivateKey
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("depth") != "5" {
			t.Errorf("depth query missing from URL: %s", r.URL.String())
		}

		ts := r.Header.Get("KALSHI-ACCESS-TIMESTAMP")
		sig, err := base64.StdEncoding.DecodeString(r.Header.Get("KALSHI-ACCESS-SIGNATURE"))
		if err != nil {
			t.Errorf("bad signature encoding: %v", err)
		}
		// Signature must cover the path only, not the query string.
		digest := sha256.Sum256([]byte(ts + "GET" + "/trade-api/v2/markets/TICK/orderbook"))
		if err := rsa.VerifyPSS(&key.PublicKey, crypto.SHA256, digest[:], sig, &rsa.PSSOptions{
			SaltLength: rsa.PSSSaltLengthEqualsHash,
			Hash:       crypto.SHA256,
		}); err != nil {
			t.Errorf("signature does not verify over query-free path: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"orderbook":{"yes":[[40,100],[55,10],[52,20]],"no":[[30,5]]}}`))
	})
	client, k, _ := testClient(t, handler)
	key = k

	ob, err := client.GetOrderbook(context.Background(), "TICK", 5)
	if err != nil {
		t.Fatalf("GetOrderbook: %v", err)
	}
	if len(ob.Yes) != 3 {
		t.Fatalf("want 3 yes levels, got %d", len(ob.Yes))
	}
	best, ok := ob.BestYes()
	if !ok || best.PriceCents != 55 || best.Count != 10 {
		t.Fatalf("want best yes 55x10, got %+v ok=%v", best, ok)
	}
	if ob.Yes[1].PriceCents != 52 || ob.Yes[2].PriceCents != 40 {
		t.Fatalf("yes side not sorted best first: %+v", ob.Yes)
	}
}

func TestGetOrderbook_TruncatesToDepth(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"orderbook":{"yes":[[10,1],[20,1],[30,1],[40,1]],"no":[]}}`))
	})
	client, _, _ := testClient(t, handler)

	ob, err := client.GetOrderbook(context.Background(), "TICK", 2)
	if err != nil {
		t.Fatalf("GetOrderbook: %v", err)
	}
	if len(ob.Yes) != 2 || ob.Yes[0].PriceCents != 40 {
		t.Fatalf("want top 2 levels best first, got %+v", ob.Yes)
	}
}

func TestPlaceOrder_RejectsInvalidParamsLocally(t *testing.T) {
	hits := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte(`{"order":{"order_id":"x"}}`))
	})
	client, _, _ := testClient(t, handler)

	cases := []OrderParams{
		{Ticker: "", Action: ActionBuy, Side: SideYes, Count: 1, Type: OrderTypeLimit, PriceCents: 50},
		{Ticker: "T", Action: "hold", Side: SideYes, Count: 1, Type: OrderTypeLimit, PriceCents: 50},
		{Ticker: "T", Action: ActionBuy, Side: "maybe", Count: 1, Type: OrderTypeLimit, PriceCents: 50},
		{Ticker: "T", Action: ActionBuy, Side: SideYes, Count: 0, Type: OrderTypeLimit, PriceCents: 50},
		{Ticker: "T", Action: ActionBuy, Side: SideYes, Count: 1, Type: OrderTypeLimit, PriceCents: 0},
		{Ticker: "T", Action: ActionBuy, Side: SideYes, Count: 1, Type: OrderTypeLimit, PriceCents: 100},
	}
	for i, p := range cases {
		_, err := client.PlaceOrder(context.Background(), p)
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("case %d: want ValidationError, got %v", i, err)
		}
	}
	if hits != 0 {
		t.Fatalf("invalid orders reached the server %d times", hits)
	}
}

func TestPlaceOrder_SendsSidePrice(t *testing.T) {
	var gotBody []byte
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		w.Write([]byte(`{"order":{"order_id":"ord-1","ticker":"T","status":"resting"}}`))
	})
	client, _, _ := testClient(t, handler)

	order, err := client.PlaceOrder(context.Background(), OrderParams{
		Ticker: "T", Action: ActionBuy, Side: SideYes, Count: 3, Type: OrderTypeLimit, PriceCents: 42,
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if order.OrderID != "ord-1" {
		t.Fatalf("want order id ord-1, got %s", order.OrderID)
	}

	body := string(gotBody)
	for _, want := range []string{`"yes_price":42`, `"client_order_id"`, `"action":"buy"`, `"side":"yes"`} {
		if !strings.Contains(body, want) {
			t.Fatalf("request body missing %s: %s", want, body)
		}
	}
	if strings.Contains(body, "no_price") {
		t.Fatalf("yes-side order must not carry no_price: %s", body)
	}
}

func TestDo_APIError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"boom"}`))
	})
	client, _, _ := testClient(t, handler)

	_, err := client.GetExchangeStatus(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("want APIError, got %v", err)
	}
	if apiErr.Status != http.StatusInternalServerError {
		t.Fatalf("want status 500, got %d", apiErr.Status)
	}
}

func TestGetEventMarkets_Query(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("event_ticker") != "KXHIGHMIA-26JAN26" || q.Get("status") != "open" || q.Get("limit") != "200" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{"markets":[{"ticker":"A","title":"t"},{"ticker":"B","title":"u"}]}`))
	})
	client, _, _ := testClient(t, handler)

	markets, err := client.GetEventMarkets(context.Background(), "KXHIGHMIA-26JAN26", 200)
	if err != nil {
		t.Fatalf("GetEventMarkets: %v", err)
	}
	if len(markets) != 2 || markets[0].Ticker != "A" {
		t.Fatalf("unexpected markets: %+v", markets)
	}
}
