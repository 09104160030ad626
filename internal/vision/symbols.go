package vision

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/happycreater/binance-historical-data/internal/errors"
)

// symbolsAPI maps each product to its exchangeInfo endpoint, the fallback
// symbol universe when the remote listing is unavailable.
var symbolsAPI = map[string]string{
	"spot":   "https://api.binance.com/api/v3/exchangeInfo",
	"usd-m":  "https://fapi.binance.com/fapi/v1/exchangeInfo",
	"coin-m": "https://dapi.binance.com/dapi/v1/exchangeInfo",
	"option": "https://eapi.binance.com/eapi/v1/exchangeInfo",
}

// SymbolAPIClient fetches the symbol universe for a product from the
// Binance exchangeInfo API.
type SymbolAPIClient struct {
	httpClient *http.Client
	endpoints  map[string]string
}

// NewSymbolAPIClient creates a symbol API client. A nil httpClient gets a
// default with a proxy-friendly timeout.
func NewSymbolAPIClient(httpClient *http.Client) *SymbolAPIClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &SymbolAPIClient{httpClient: httpClient, endpoints: symbolsAPI}
}

// NewSymbolAPIClientWithEndpoints creates a client against custom endpoints,
// used by tests.
func NewSymbolAPIClientWithEndpoints(httpClient *http.Client, endpoints map[string]string) *SymbolAPIClient {
	client := NewSymbolAPIClient(httpClient)
	client.endpoints = endpoints
	return client
}

type exchangeInfo struct {
	Symbols []struct {
		Symbol string `json:"symbol"`
	} `json:"symbols"`
}

// FetchSymbols returns every symbol the product currently lists
func (c *SymbolAPIClient) FetchSymbols(ctx context.Context, product string) ([]string, error) {
	endpoint, ok := c.endpoints[product]
	if !ok {
		return nil, errors.Newf(errors.ErrorCategoryInput, "symbols", "fetch", "unsupported product for symbol lookup: %q", product)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.NewCacheError("symbols", "build_request", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewCacheError("symbols", "request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf(errors.ErrorCategoryCache, "symbols", "request", "exchangeInfo returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewCacheError("symbols", "read_response", err)
	}

	var info exchangeInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, errors.NewCacheError("symbols", "parse_response", err)
	}

	symbols := make([]string, 0, len(info.Symbols))
	for _, item := range info.Symbols {
		if item.Symbol != "" {
			symbols = append(symbols, item.Symbol)
		}
	}
	return symbols, nil
}
