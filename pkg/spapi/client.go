package spapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/sedori-labs/resale-research/pkg/logging"
)

// Credentials are the LWA application credentials for the selling-partner
// account.
type Credentials struct {
	RefreshToken string
	ClientID     string
	ClientSecret string
}

// Valid reports whether all credential fields are present.
func (c Credentials) Valid() bool {
	return c.RefreshToken != "" && c.ClientID != "" && c.ClientSecret != ""
}

// Config holds the HTTP client configuration.
type Config struct {
	// Endpoint is the SP-API base URL. Defaults to the Far East endpoint.
	Endpoint string

	// AuthEndpoint is the LWA token exchange URL.
	AuthEndpoint string

	// MarketplaceID identifies the marketplace. Defaults to amazon.co.jp.
	MarketplaceID string

	// UserAgent is sent on every request.
	UserAgent string

	// HTTPClient overrides the default HTTP client (for testing).
	HTTPClient *http.Client
}

// DefaultConfig returns the configuration for the Japanese marketplace.
func DefaultConfig() Config {
	return Config{
		Endpoint:      "https://sellingpartnerapi-fe.amazon.com",
		AuthEndpoint:  "https://api.amazon.co.jp/auth/o2/token",
		MarketplaceID: "A1VC38T7YXB528",
		UserAgent:     "resale-research/1.0",
	}
}

// Client is the HTTP implementation of API.
type Client struct {
	config Config
	creds  Credentials
	http   *http.Client
	logger zerolog.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewClient creates an SP-API HTTP client.
func NewClient(cfg Config, creds Credentials) (*Client, error) {
	if !creds.Valid() {
		return nil, fmt.Errorf("incomplete credentials: refresh token, client id and client secret are required")
	}

	defaults := DefaultConfig()
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaults.Endpoint
	}
	if cfg.AuthEndpoint == "" {
		cfg.AuthEndpoint = defaults.AuthEndpoint
	}
	if cfg.MarketplaceID == "" {
		cfg.MarketplaceID = defaults.MarketplaceID
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaults.UserAgent
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Client{
		config: cfg,
		creds:  creds,
		http:   httpClient,
		logger: logging.NewLogger("spapi"),
	}, nil
}

// GetCatalogItem implements API.
func (c *Client) GetCatalogItem(ctx context.Context, asin string) (*CatalogItem, error) {
	query := url.Values{
		"marketplaceIds": {c.config.MarketplaceID},
		"includedData":   {"attributes,salesRanks,summaries"},
	}

	var item CatalogItem
	path := "/catalog/2022-04-01/items/" + url.PathEscape(asin)
	if err := c.get(ctx, "getCatalogItem", path, query, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// GetItemOffers implements API.
func (c *Client) GetItemOffers(ctx context.Context, asin string) (*OfferSet, error) {
	query := url.Values{
		"MarketplaceId": {c.config.MarketplaceID},
		"ItemCondition": {"New"},
	}

	var envelope struct {
		Payload OfferSet `json:"payload"`
	}
	path := "/products/pricing/v0/items/" + url.PathEscape(asin) + "/offers"
	if err := c.get(ctx, "getItemOffers", path, query, &envelope); err != nil {
		return nil, err
	}
	return &envelope.Payload, nil
}

// GetCompetitivePricing implements API.
func (c *Client) GetCompetitivePricing(ctx context.Context, asins []string) ([]PricingProduct, error) {
	if len(asins) == 0 {
		return nil, nil
	}
	if len(asins) > MaxPricingBatch {
		return nil, &APIError{
			Operation: "getCompetitivePricing",
			Class:     ErrorClassClient,
			Message:   fmt.Sprintf("batch size %d exceeds limit %d", len(asins), MaxPricingBatch),
		}
	}

	query := url.Values{
		"MarketplaceId": {c.config.MarketplaceID},
		"Asins":         {strings.Join(asins, ",")},
		"ItemType":      {"Asin"},
	}

	var envelope struct {
		Payload []PricingProduct `json:"payload"`
	}
	if err := c.get(ctx, "getCompetitivePricing", "/products/pricing/v0/competitivePrice", query, &envelope); err != nil {
		return nil, err
	}
	return envelope.Payload, nil
}

// GetFeesEstimate implements API.
func (c *Client) GetFeesEstimate(ctx context.Context, asin string, price decimal.Decimal) (*FeesEstimate, error) {
	const op = "getFeesEstimate"

	body := map[string]interface{}{
		"FeesEstimateRequest": map[string]interface{}{
			"MarketplaceId":     c.config.MarketplaceID,
			"IsAmazonFulfilled": true,
			"Identifier":        "fee-" + asin,
			"PriceToEstimateFees": map[string]interface{}{
				"ListingPrice": map[string]interface{}{
					"CurrencyCode": "JPY",
					"Amount":       price,
				},
			},
		},
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, &APIError{Operation: op, Class: ErrorClassClient, Message: "encode request", Err: err}
	}

	var envelope struct {
		Payload struct {
			FeesEstimateResult struct {
				FeesEstimate FeesEstimate `json:"FeesEstimate"`
			} `json:"FeesEstimateResult"`
		} `json:"payload"`
	}

	path := "/products/fees/v0/items/" + url.PathEscape(asin) + "/feesEstimate"
	if err := c.do(ctx, op, http.MethodPost, path, nil, bytes.NewReader(encoded), &envelope); err != nil {
		return nil, err
	}
	return &envelope.Payload.FeesEstimateResult.FeesEstimate, nil
}

// get performs an authenticated GET and decodes the response into out.
func (c *Client) get(ctx context.Context, op, path string, query url.Values, out interface{}) error {
	return c.do(ctx, op, http.MethodGet, path, query, nil, out)
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body io.Reader, out interface{}) error {
	token, err := c.token(ctx)
	if err != nil {
		return &APIError{Operation: op, Class: ErrorClassNetwork, Message: "token refresh", Err: err}
	}

	reqURL := c.config.Endpoint + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return &APIError{Operation: op, Class: ErrorClassClient, Message: "create request", Err: err}
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-amz-access-token", token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("operation", op).Msg("Request failed")
		return &APIError{Operation: op, Class: ErrorClassNetwork, Message: "http request", Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("operation", op).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Request complete")

	if resp.StatusCode != http.StatusOK {
		return &APIError{
			Operation:  op,
			StatusCode: resp.StatusCode,
			Class:      classifyStatus(resp.StatusCode),
			Message:    resp.Status,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &APIError{Operation: op, StatusCode: resp.StatusCode, Class: ErrorClassServer, Message: "decode response", Err: err}
	}
	return nil
}

// token returns a valid access token, refreshing through the LWA endpoint
// when the cached one is missing or about to expire.
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Until(c.tokenExpiry) > 30*time.Second {
		return c.accessToken, nil
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {c.creds.RefreshToken},
		"client_id":     {c.creds.ClientID},
		"client_secret": {c.creds.ClientSecret},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.AuthEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request: %s", resp.Status)
	}

	var grant struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&grant); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if grant.AccessToken == "" {
		return "", fmt.Errorf("token response missing access_token")
	}

	c.accessToken = grant.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(grant.ExpiresIn) * time.Second)

	c.logger.Debug().Time("expires", c.tokenExpiry).Msg("Access token refreshed")
	return c.accessToken, nil
}
