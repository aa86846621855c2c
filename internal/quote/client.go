package quote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrQuoteUnavailable covers every failure mode of a lookup: transport
// errors, non-2xx responses and malformed bodies. Callers only learn that
// no quote could be obtained for the symbol.
var ErrQuoteUnavailable = errors.New("quote unavailable")

const defaultBaseURL = "https://cloud.iexapis.com"

// Quote is a live price snapshot for a ticker symbol. Never persisted.
type Quote struct {
	Symbol string          `json:"symbol"`
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
}

type Client interface {
	Lookup(ctx context.Context, symbol string) (*Quote, error)
}

// IEXClient fetches quotes from an IEX Cloud compatible endpoint.
type IEXClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewIEXClient(apiKey, baseURL string) *IEXClient {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &IEXClient{
		apiKey:     apiKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *IEXClient) Lookup(ctx context.Context, symbol string) (*Quote, error) {
	fullURL := fmt.Sprintf("%s/stable/stock/%s/quote?token=%s", c.baseURL, url.PathEscape(symbol), url.QueryEscape(c.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, ErrQuoteUnavailable
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("Quote lookup failed for %q: %v", symbol, err)
		return nil, ErrQuoteUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("Quote lookup for %q returned %s", symbol, resp.Status)
		return nil, ErrQuoteUnavailable
	}

	var body struct {
		CompanyName *string  `json:"companyName"`
		LatestPrice *float64 `json:"latestPrice"`
		Symbol      *string  `json:"symbol"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, ErrQuoteUnavailable
	}
	if body.CompanyName == nil || body.LatestPrice == nil || body.Symbol == nil {
		return nil, ErrQuoteUnavailable
	}

	return &Quote{
		Symbol: strings.ToUpper(*body.Symbol),
		Name:   *body.CompanyName,
		Price:  decimal.NewFromFloat(*body.LatestPrice),
	}, nil
}
