// Package fetch implements the upstream data clients for the scanner.
//
// Two REST surfaces are wrapped:
//   - Gamma catalog: market discovery with client-side filters
//   - CLOB data API: best price, L2 order book, price history per token
//
// Every request is rate-limited via per-category TokenBuckets, retried with
// exponential backoff, and routed through a per-source circuit breaker that
// opens after 5 consecutive failures. Per-source health (call counts,
// consecutive errors, rolling latency) is tracked and exported to prometheus.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"polymarket-scanner/internal/config"
	"polymarket-scanner/pkg/types"
)

// Breaker source names.
const (
	srcGamma   = "gamma"
	srcBook    = "clob_book"
	srcPrice   = "clob_price"
	srcHistory = "clob_history"
)

// CatalogFilter is applied client-side after the catalog fetch.
type CatalogFilter struct {
	MinLiquidity float64
	Categories   []string // allow-list; empty admits all
	MaxMarkets   int
}

// Client fetches catalog and market data.
type Client struct {
	gamma    *resty.Client
	clob     *resty.Client
	seriesID string // optional server-side catalog filter
	rl       *RateLimiter
	breakers *breakerSet
	health   *HealthRegistry
	log      *slog.Logger

	cacheMu      sync.RWMutex
	catalogCache []types.Market // last good catalog, served while the circuit is open
}

// NewClient creates the REST client pair with shared rate limiting, retry
// and circuit breaking.
func NewClient(cfg config.APIConfig, health *HealthRegistry, log *slog.Logger) *Client {
	return &Client{
		gamma:    newRESTClient(cfg.GammaBaseURL),
		clob:     newRESTClient(cfg.CLOBBaseURL),
		seriesID: cfg.SeriesID,
		rl:       NewRateLimiter(),
		breakers: newBreakerSet(health, log),
		health:   health,
		log:      log.With("component", "fetch"),
	}
}

// Health returns the per-source health registry.
func (c *Client) Health() *HealthRegistry { return c.health }

// gammaMarket is the catalog row shape. Outcome labels, prices and token
// ids arrive as JSON arrays encoded inside strings.
type gammaMarket struct {
	ID            string    `json:"id"`
	Slug          string    `json:"slug"`
	Question      string    `json:"question"`
	Category      string    `json:"category"`
	Outcomes      string    `json:"outcomes"`
	OutcomePrices string    `json:"outcomePrices"`
	ClobTokenIDs  string    `json:"clobTokenIds"`
	Liquidity     float64   `json:"liquidityNum"`
	EndDate       time.Time `json:"endDate"`
	Closed        bool      `json:"closed"`
	Tags          []struct {
		Slug  string `json:"slug"`
		Label string `json:"label"`
	} `json:"tags"`
}

func (g gammaMarket) toMarket() (types.Market, error) {
	var outcomes, prices, tokens []string
	if err := json.Unmarshal([]byte(g.Outcomes), &outcomes); err != nil || len(outcomes) < 2 {
		return types.Market{}, fmt.Errorf("market %s: bad outcomes %q", g.ID, g.Outcomes)
	}
	// A market without token ids is still listed; the poller flags it.
	if g.ClobTokenIDs != "" {
		if err := json.Unmarshal([]byte(g.ClobTokenIDs), &tokens); err != nil {
			return types.Market{}, fmt.Errorf("market %s: bad token ids %q", g.ID, g.ClobTokenIDs)
		}
	}
	if g.OutcomePrices != "" {
		_ = json.Unmarshal([]byte(g.OutcomePrices), &prices)
	}

	m := types.Market{
		ID:        g.ID,
		Slug:      g.Slug,
		Question:  g.Question,
		Category:  g.Category,
		YesLabel:  outcomes[0],
		NoLabel:   outcomes[1],
		Liquidity: g.Liquidity,
		EndDate:   g.EndDate,
		Closed:    g.Closed,
	}
	if len(tokens) >= 2 {
		m.YesTokenID, m.NoTokenID = tokens[0], tokens[1]
	}
	if len(prices) >= 2 {
		m.YesPrice, _ = strconv.ParseFloat(prices[0], 64)
		m.NoPrice, _ = strconv.ParseFloat(prices[1], 64)
	}
	for _, t := range g.Tags {
		m.Tags = append(m.Tags, t.Slug)
	}
	return m, nil
}

// Markets fetches the live catalog and applies the filter. While the gamma
// circuit is open the last good catalog is served instead of failing the
// discovery cycle.
func (c *Client) Markets(ctx context.Context, filter CatalogFilter) ([]types.Market, error) {
	if err := c.rl.Catalog.Wait(ctx); err != nil {
		return nil, err
	}

	params := map[string]string{
		"active": "true",
		"closed": "false",
		"limit":  "200",
	}
	if c.seriesID != "" {
		params["seriesId"] = c.seriesID
	}

	var rows []gammaMarket
	err := c.breakers.do(srcGamma, func() error {
		resp, err := c.gamma.R().
			SetContext(ctx).
			SetQueryParams(params).
			SetResult(&rows).
			Get("/markets")
		return checkResp(resp, err, "gamma markets")
	})
	if err != nil {
		if cached := c.cachedCatalog(); cached != nil {
			c.log.Warn("serving cached catalog", "error", err, "markets", len(cached))
			return applyFilter(cached, filter), nil
		}
		return nil, err
	}

	markets := make([]types.Market, 0, len(rows))
	for _, row := range rows {
		m, err := row.toMarket()
		if err != nil {
			c.log.Debug("skipping malformed catalog row", "error", err)
			continue
		}
		markets = append(markets, m)
	}

	c.cacheMu.Lock()
	c.catalogCache = markets
	c.cacheMu.Unlock()

	return applyFilter(markets, filter), nil
}

// MarketBySlug fetches a single market by its URL slug.
func (c *Client) MarketBySlug(ctx context.Context, slug string) (types.Market, error) {
	if err := c.rl.Catalog.Wait(ctx); err != nil {
		return types.Market{}, err
	}

	var rows []gammaMarket
	err := c.breakers.do(srcGamma, func() error {
		resp, err := c.gamma.R().
			SetContext(ctx).
			SetQueryParam("slug", slug).
			SetResult(&rows).
			Get("/markets")
		return checkResp(resp, err, "gamma market by slug")
	})
	if err != nil {
		return types.Market{}, err
	}
	if len(rows) == 0 {
		return types.Market{}, fmt.Errorf("market %q: %w", slug, ErrTerminal)
	}
	return rows[0].toMarket()
}

func (c *Client) cachedCatalog() []types.Market {
	c.cacheMu.RLock()
	defer c.cacheMu.RUnlock()
	if len(c.catalogCache) == 0 {
		return nil
	}
	out := make([]types.Market, len(c.catalogCache))
	copy(out, c.catalogCache)
	return out
}

// applyFilter drops illiquid and off-category markets, then keeps the top
// MaxMarkets by liquidity.
func applyFilter(markets []types.Market, f CatalogFilter) []types.Market {
	allowed := make(map[string]bool, len(f.Categories))
	for _, cat := range f.Categories {
		allowed[cat] = true
	}

	kept := make([]types.Market, 0, len(markets))
	for _, m := range markets {
		if m.Liquidity < f.MinLiquidity {
			continue
		}
		if len(allowed) > 0 && !allowed[m.Category] {
			continue
		}
		kept = append(kept, m)
	}

	sort.Slice(kept, func(i, j int) bool { return kept[i].Liquidity > kept[j].Liquidity })
	if f.MaxMarkets > 0 && len(kept) > f.MaxMarkets {
		kept = kept[:f.MaxMarkets]
	}
	return kept
}

// BestPrices returns the current buy and sell prices for a token.
func (c *Client) BestPrices(ctx context.Context, tokenID string) (buy, sell float64, err error) {
	buy, err = c.price(ctx, tokenID, "buy")
	if err != nil {
		return 0, 0, err
	}
	sell, err = c.price(ctx, tokenID, "sell")
	if err != nil {
		return 0, 0, err
	}
	return buy, sell, nil
}

func (c *Client) price(ctx context.Context, tokenID, side string) (float64, error) {
	if err := c.rl.Price.Wait(ctx); err != nil {
		return 0, err
	}

	var result struct {
		Price string `json:"price"`
	}
	err := c.breakers.do(srcPrice, func() error {
		resp, err := c.clob.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{"token_id": tokenID, "side": side}).
			SetResult(&result).
			Get("/price")
		return checkResp(resp, err, "clob price")
	})
	if err != nil {
		return 0, err
	}
	p, err := strconv.ParseFloat(result.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("clob price: parse %q: %w", result.Price, err)
	}
	return p, nil
}

// Book fetches the L2 order book for a token.
func (c *Client) Book(ctx context.Context, tokenID string) (*types.BookSnapshot, error) {
	if err := c.rl.Book.Wait(ctx); err != nil {
		return nil, err
	}

	var result types.BookSnapshot
	err := c.breakers.do(srcBook, func() error {
		resp, err := c.clob.R().
			SetContext(ctx).
			SetQueryParam("token_id", tokenID).
			SetResult(&result).
			Get("/book")
		return checkResp(resp, err, "clob book")
	})
	if err != nil {
		return nil, err
	}
	result.AssetID = tokenID
	if result.Timestamp.IsZero() {
		result.Timestamp = time.Now()
	}
	return &result, nil
}

// PriceHistory fetches the token's trade-price history at the given
// interval and fidelity. Points come back oldest first.
func (c *Client) PriceHistory(ctx context.Context, tokenID, interval string, fidelity int) ([]types.PricePoint, error) {
	if err := c.rl.History.Wait(ctx); err != nil {
		return nil, err
	}

	var result struct {
		History []types.PricePoint `json:"history"`
	}
	err := c.breakers.do(srcHistory, func() error {
		resp, err := c.clob.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"market":   tokenID,
				"interval": interval,
				"fidelity": strconv.Itoa(fidelity),
			}).
			SetResult(&result).
			Get("/prices-history")
		return checkResp(resp, err, "clob history")
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(result.History, func(i, j int) bool { return result.History[i].T < result.History[j].T })
	return result.History, nil
}

// checkResp folds transport errors and HTTP status into one error, tagging
// 404/401 as terminal so the retry and breaker layers skip them.
func checkResp(resp *resty.Response, err error, op string) error {
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	code := resp.StatusCode()
	if code == http.StatusOK {
		return nil
	}
	if isTerminalStatus(code) {
		return fmt.Errorf("%s: status %d: %w", op, code, ErrTerminal)
	}
	return fmt.Errorf("%s: status %d: %s", op, code, resp.String())
}
