package plaid

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"
)

const (
	sandboxURL     = "https://sandbox.plaid.com"
	developmentURL = "https://development.plaid.com"
	productionURL  = "https://production.plaid.com"
	defaultTimeout = 60 * time.Second
	apiVersion     = "2020-09-14"

	linkTokenPath   = "/link/token/create"
	exchangePath    = "/item/public_token/exchange"
	itemPath        = "/item/get"
	institutionPath = "/institutions/get_by_id"
	accountsPath    = "/accounts/get"
	balancesPath    = "/accounts/balance/get"
	syncPath        = "/transactions/sync"
)

// CountryCodes are the countries institutions are looked up in.
var CountryCodes = []string{"US"}

// ErrUnknownEnvironment is returned for an environment name other than
// sandbox, development or production.
var ErrUnknownEnvironment = errors.New("unknown plaid environment")

// APIError is the error body returned by the aggregation API
type APIError struct {
	StatusCode     int    `json:"-"`
	ErrorType      string `json:"error_type"`
	ErrorCode      string `json:"error_code"`
	ErrorMessage   string `json:"error_message"`
	DisplayMessage string `json:"display_message"`
	RequestID      string `json:"request_id"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("plaid API error (status %d): %s/%s - %s", e.StatusCode, e.ErrorType, e.ErrorCode, e.ErrorMessage)
}

// IsItemLoginRequired reports whether the user must re-link the institution
func IsItemLoginRequired(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode == "ITEM_LOGIN_REQUIRED"
}

// Config holds client credentials and limits
type Config struct {
	ClientID          string
	Secret            string
	Environment       string
	BaseURL           string // overrides Environment when set
	RequestsPerSecond float64
	Timeout           time.Duration
}

// BaseURLFor returns the API host of an environment
func BaseURLFor(env string) (string, error) {
	switch env {
	case "", "sandbox":
		return sandboxURL, nil
	case "development":
		return developmentURL, nil
	case "production":
		return productionURL, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownEnvironment, env)
	}
}

// Client handles communication with the aggregation API
type Client struct {
	httpClient *http.Client
	baseURL    string
	clientID   string
	secret     string
	limiter    *rate.Limiter
}

// Ensure Client implements ClientInterface
var _ ClientInterface = (*Client)(nil)

// NewClient creates a new aggregation API client. Outgoing calls are traced
// and throttled to RequestsPerSecond when it is positive.
func NewClient(cfg Config) (*Client, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		var err error
		baseURL, err = BaseURLFor(cfg.Environment)
		if err != nil {
			return nil, err
		}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		baseURL:  baseURL,
		clientID: cfg.ClientID,
		secret:   cfg.Secret,
		limiter:  limiter,
	}, nil
}

// CreateLinkToken creates a token the frontend uses to open Link
func (c *Client) CreateLinkToken(ctx context.Context, req LinkTokenRequest) (*LinkTokenResponse, error) {
	var resp LinkTokenResponse
	if err := c.post(ctx, linkTokenPath, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ExchangePublicToken trades a one-time public token for a durable access token
func (c *Client) ExchangePublicToken(ctx context.Context, publicToken string) (*ExchangeResponse, error) {
	payload := map[string]string{"public_token": publicToken}

	var resp ExchangeResponse
	if err := c.post(ctx, exchangePath, payload, &resp); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, fmt.Errorf("exchange response has no access token")
	}
	return &resp, nil
}

// GetItem fetches item metadata
func (c *Client) GetItem(ctx context.Context, accessToken string) (*ItemResponse, error) {
	payload := map[string]string{"access_token": accessToken}

	var resp ItemResponse
	if err := c.post(ctx, itemPath, payload, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

type institutionPayload struct {
	InstitutionID string             `json:"institution_id"`
	CountryCodes  []string           `json:"country_codes"`
	Options       institutionOptions `json:"options"`
}

type institutionOptions struct {
	IncludeOptionalMetadata bool `json:"include_optional_metadata"`
}

// GetInstitution fetches institution display metadata, logo included
func (c *Client) GetInstitution(ctx context.Context, institutionID string) (*InstitutionResponse, error) {
	payload := institutionPayload{
		InstitutionID: institutionID,
		CountryCodes:  CountryCodes,
		Options:       institutionOptions{IncludeOptionalMetadata: true},
	}

	var resp InstitutionResponse
	if err := c.post(ctx, institutionPath, payload, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetAccounts fetches the item's accounts with cached balances
func (c *Client) GetAccounts(ctx context.Context, accessToken string) (*AccountsResponse, error) {
	payload := map[string]string{"access_token": accessToken}

	var resp AccountsResponse
	if err := c.post(ctx, accountsPath, payload, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

type balancePayload struct {
	AccessToken string          `json:"access_token"`
	Options     *balanceOptions `json:"options,omitempty"`
}

type balanceOptions struct {
	AccountIDs []string `json:"account_ids"`
}

// GetBalances fetches real-time balances
func (c *Client) GetBalances(ctx context.Context, accessToken string, accountIDs []string) (*AccountsResponse, error) {
	payload := balancePayload{AccessToken: accessToken}
	if len(accountIDs) > 0 {
		payload.Options = &balanceOptions{AccountIDs: accountIDs}
	}

	var resp AccountsResponse
	if err := c.post(ctx, balancesPath, payload, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

type syncPayload struct {
	AccessToken string       `json:"access_token"`
	Cursor      string       `json:"cursor,omitempty"`
	Count       int          `json:"count,omitempty"`
	Options     *syncOptions `json:"options,omitempty"`
}

type syncOptions struct {
	IncludeOriginalDescription bool   `json:"include_original_description"`
	AccountID                  string `json:"account_id,omitempty"`
}

// SyncTransactions fetches one page of transaction deltas after the cursor
func (c *Client) SyncTransactions(ctx context.Context, req SyncRequest) (*SyncResponse, error) {
	payload := syncPayload{
		AccessToken: req.AccessToken,
		Cursor:      req.Cursor,
		Count:       req.Count,
		Options: &syncOptions{
			IncludeOriginalDescription: true,
			AccountID:                  req.AccountID,
		},
	}

	var resp SyncResponse
	if err := c.post(ctx, syncPath, payload, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// post sends an authenticated JSON request and decodes a 200 response into out.
// Non-200 responses are returned as *APIError when the body carries one.
func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter wait failed: %w", err)
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("PLAID-CLIENT-ID", c.clientID)
	req.Header.Set("PLAID-SECRET", c.secret)
	req.Header.Set("Plaid-Version", apiVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr APIError
		if err := json.Unmarshal(respBody, &apiErr); err != nil || apiErr.ErrorCode == "" {
			return fmt.Errorf("API request %s failed with status %d: %s", path, resp.StatusCode, string(respBody))
		}
		apiErr.StatusCode = resp.StatusCode
		return &apiErr
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return nil
}
