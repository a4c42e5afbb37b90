package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"polymarket-scanner/internal/config"
	"polymarket-scanner/pkg/types"
)

const catalogJSON = `[
  {
    "id": "1", "slug": "btc-70k", "question": "Will BTC be above $70k?",
    "category": "crypto",
    "outcomes": "[\"Yes\",\"No\"]",
    "outcomePrices": "[\"0.55\",\"0.45\"]",
    "clobTokenIds": "[\"tok-yes\",\"tok-no\"]",
    "liquidityNum": 50000,
    "endDate": "2026-02-01T00:00:00Z",
    "tags": [{"slug": "crypto", "label": "Crypto"}]
  },
  {
    "id": "2", "slug": "small", "question": "Thin market?",
    "category": "crypto",
    "outcomes": "[\"Yes\",\"No\"]",
    "liquidityNum": 100
  },
  {
    "id": "3", "slug": "election", "question": "Will X win?",
    "category": "politics",
    "outcomes": "[\"Yes\",\"No\"]",
    "clobTokenIds": "[\"tok-a\",\"tok-b\"]",
    "liquidityNum": 90000
  },
  {
    "id": "4", "slug": "broken", "question": "Malformed row",
    "category": "crypto",
    "outcomes": "not json",
    "liquidityNum": 70000
  }
]`

func writeJSON(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(body))
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := config.APIConfig{GammaBaseURL: srv.URL, CLOBBaseURL: srv.URL}
	return NewClient(cfg, NewHealthRegistry(), discard())
}

func TestMarketsParsesAndFilters(t *testing.T) {
	t.Parallel()
	mux := http.NewServeMux()
	mux.HandleFunc("/markets", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, catalogJSON)
	})
	c := newTestClient(t, mux)

	markets, err := c.Markets(context.Background(), CatalogFilter{MinLiquidity: 1000})
	if err != nil {
		t.Fatalf("markets: %v", err)
	}
	// Row 2 is under the liquidity floor, row 4 is malformed.
	if len(markets) != 2 {
		t.Fatalf("markets = %d, want 2", len(markets))
	}
	// Sorted by liquidity, descending.
	if markets[0].ID != "3" || markets[1].ID != "1" {
		t.Errorf("order = %s, %s, want 3, 1", markets[0].ID, markets[1].ID)
	}

	m := markets[1]
	if m.YesTokenID != "tok-yes" || m.NoTokenID != "tok-no" {
		t.Errorf("token ids = %q/%q", m.YesTokenID, m.NoTokenID)
	}
	if m.YesPrice != 0.55 || m.NoPrice != 0.45 {
		t.Errorf("prices = %v/%v", m.YesPrice, m.NoPrice)
	}
	if len(m.Tags) != 1 || m.Tags[0] != "crypto" {
		t.Errorf("tags = %v, want [crypto]", m.Tags)
	}
	if !m.IsCrypto() {
		t.Error("crypto category market should report IsCrypto")
	}
}

func TestMarketsCategoryAllowList(t *testing.T) {
	t.Parallel()
	mux := http.NewServeMux()
	mux.HandleFunc("/markets", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, catalogJSON)
	})
	c := newTestClient(t, mux)

	markets, err := c.Markets(context.Background(), CatalogFilter{Categories: []string{"politics"}})
	if err != nil {
		t.Fatalf("markets: %v", err)
	}
	if len(markets) != 1 || markets[0].ID != "3" {
		t.Errorf("markets = %+v, want only the politics row", markets)
	}
}

func TestMarketsSendsSeriesID(t *testing.T) {
	t.Parallel()
	var gotSeries atomic.Value
	mux := http.NewServeMux()
	mux.HandleFunc("/markets", func(w http.ResponseWriter, r *http.Request) {
		gotSeries.Store(r.URL.Query().Get("seriesId"))
		writeJSON(w, catalogJSON)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	cfg := config.APIConfig{GammaBaseURL: srv.URL, CLOBBaseURL: srv.URL, SeriesID: "10023"}
	c := NewClient(cfg, NewHealthRegistry(), discard())
	if _, err := c.Markets(context.Background(), CatalogFilter{}); err != nil {
		t.Fatalf("markets: %v", err)
	}
	if got := gotSeries.Load(); got != "10023" {
		t.Errorf("seriesId param = %q, want 10023", got)
	}

	// Without a configured series the param stays off the wire.
	cfg.SeriesID = ""
	c = NewClient(cfg, NewHealthRegistry(), discard())
	if _, err := c.Markets(context.Background(), CatalogFilter{}); err != nil {
		t.Fatalf("markets: %v", err)
	}
	if got := gotSeries.Load(); got != "" {
		t.Errorf("seriesId param = %q, want empty", got)
	}
}

func TestMarketsServesCachedCatalogOnFailure(t *testing.T) {
	t.Parallel()
	var fail atomic.Bool
	mux := http.NewServeMux()
	mux.HandleFunc("/markets", func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			// Terminal status: fails fast without retries.
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(w, catalogJSON)
	})
	c := newTestClient(t, mux)

	first, err := c.Markets(context.Background(), CatalogFilter{MinLiquidity: 1000})
	if err != nil {
		t.Fatalf("markets: %v", err)
	}

	fail.Store(true)
	second, err := c.Markets(context.Background(), CatalogFilter{MinLiquidity: 1000})
	if err != nil {
		t.Fatalf("markets with upstream down: %v, want cached catalog", err)
	}
	if len(second) != len(first) {
		t.Errorf("cached markets = %d, want %d", len(second), len(first))
	}
}

func TestMarketsErrorsWithEmptyCache(t *testing.T) {
	t.Parallel()
	mux := http.NewServeMux()
	mux.HandleFunc("/markets", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	c := newTestClient(t, mux)

	if _, err := c.Markets(context.Background(), CatalogFilter{}); !errors.Is(err, ErrTerminal) {
		t.Errorf("err = %v, want terminal error with nothing cached", err)
	}
}

func TestBestPrices(t *testing.T) {
	t.Parallel()
	mux := http.NewServeMux()
	mux.HandleFunc("/price", func(w http.ResponseWriter, r *http.Request) {
		price := "0.55"
		if r.URL.Query().Get("side") == "sell" {
			price = "0.53"
		}
		writeJSON(w, `{"price":"`+price+`"}`)
	})
	c := newTestClient(t, mux)

	buy, sell, err := c.BestPrices(context.Background(), "tok-yes")
	if err != nil {
		t.Fatalf("best prices: %v", err)
	}
	if buy != 0.55 || sell != 0.53 {
		t.Errorf("buy/sell = %v/%v, want 0.55/0.53", buy, sell)
	}
}

func TestBookSetsAssetID(t *testing.T) {
	t.Parallel()
	mux := http.NewServeMux()
	mux.HandleFunc("/book", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"bids":[{"price":"0.54","size":"120"}],"asks":[{"price":"0.56","size":"80"}]}`)
	})
	c := newTestClient(t, mux)

	book, err := c.Book(context.Background(), "tok-yes")
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if book.AssetID != "tok-yes" {
		t.Errorf("assetID = %q, want the requested token", book.AssetID)
	}
	if len(book.Bids) != 1 || book.Bids[0].Price != "0.54" {
		t.Errorf("bids = %+v", book.Bids)
	}
	if book.Timestamp.IsZero() {
		t.Error("timestamp should default to now")
	}
}

func TestPriceHistorySortsAscending(t *testing.T) {
	t.Parallel()
	mux := http.NewServeMux()
	mux.HandleFunc("/prices-history", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"history":[{"t":300,"p":0.57},{"t":100,"p":0.52},{"t":200,"p":0.55}]}`)
	})
	c := newTestClient(t, mux)

	points, err := c.PriceHistory(context.Background(), "tok-yes", "1m", 1)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(points) != 3 {
		t.Fatalf("points = %d, want 3", len(points))
	}
	for i := 1; i < len(points); i++ {
		if points[i].T < points[i-1].T {
			t.Fatalf("points not ascending: %+v", points)
		}
	}
}

func TestApplyFilterCapsMarkets(t *testing.T) {
	t.Parallel()
	markets := []types.Market{
		{ID: "a", Liquidity: 100},
		{ID: "b", Liquidity: 300},
		{ID: "c", Liquidity: 200},
	}
	got := applyFilter(markets, CatalogFilter{MaxMarkets: 2})
	if len(got) != 2 || got[0].ID != "b" || got[1].ID != "c" {
		t.Errorf("filtered = %+v, want top two by liquidity", got)
	}
}

func TestGammaMarketMissingTokenIDs(t *testing.T) {
	t.Parallel()
	g := gammaMarket{
		ID:       "5",
		Outcomes: `["Yes","No"]`,
	}
	m, err := g.toMarket()
	if err != nil {
		t.Fatalf("toMarket: %v", err)
	}
	if m.YesTokenID != "" || m.NoTokenID != "" {
		t.Errorf("token ids = %q/%q, want empty", m.YesTokenID, m.NoTokenID)
	}
}
