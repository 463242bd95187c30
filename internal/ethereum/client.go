// Package ethereum implements the provider sources against an
// Etherscan-compatible HTTP API.
//
// The client is deliberately thin: it maps one call to one HTTP request and
// translates provider signals into domain errors. Pacing and retry live with
// the callers.
package ethereum

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/GentianSadiku/eth-wallet-tracker/internal/domain"
)

// Default configuration values.
const (
	DefaultBaseURL  = "https://api.etherscan.io/api"
	DefaultTimeout  = 30 * time.Second
	DefaultPageSize = 1000
	DefaultCurrency = "ETH"
)

// Client talks to an Etherscan-compatible API.
type Client struct {
	baseURL  string
	apiKey   string
	currency string
	pageSize int
	client   *http.Client
	logger   *log.Logger
	verbose  bool
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithBaseURL sets the API endpoint (chain-specific explorers share the
// Etherscan API shape).
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// WithPageSize sets the transfer page size requested from the provider.
func WithPageSize(n int) ClientOption {
	return func(c *Client) {
		c.pageSize = n
	}
}

// WithCurrency sets the chain's native currency symbol.
func WithCurrency(symbol string) ClientOption {
	return func(c *Client) {
		c.currency = symbol
	}
}

// WithLogger sets the logger used for verbose output.
func WithLogger(logger *log.Logger, verbose bool) ClientOption {
	return func(c *Client) {
		c.logger = logger
		c.verbose = verbose
	}
}

// NewClient creates a new provider client.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:  DefaultBaseURL,
		apiKey:   apiKey,
		currency: DefaultCurrency,
		pageSize: DefaultPageSize,
		client:   &http.Client{Timeout: DefaultTimeout},
		logger:   log.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// envelope is the Etherscan response wrapper for module=account and
// module=stats actions. Result shape depends on the action.
type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// proxyEnvelope is the JSON-RPC passthrough wrapper for module=proxy actions.
type proxyEnvelope struct {
	Result json.RawMessage `json:"result"`
	Error  *proxyError     `json:"error"`
}

type proxyError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *proxyError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// get performs one API request and returns the raw body.
func (c *Client) get(ctx context.Context, params url.Values) ([]byte, error) {
	params.Set("apikey", c.apiKey)
	reqURL := c.baseURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	c.log("GET module=%s action=%s", params.Get("module"), params.Get("action"))
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, domainRateLimited(resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected HTTP status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}

// account performs a module=account/stats style request and unwraps the
// envelope. Returns the raw result payload; an empty result set is not an
// error.
func (c *Client) account(ctx context.Context, params url.Values) (json.RawMessage, error) {
	body, err := c.get(ctx, params)
	if err != nil {
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Status != "1" {
		if isRateLimitMessage(env.Message, env.Result) {
			return nil, domainRateLimited(0)
		}
		if isEmptyResultMessage(env.Message) {
			return env.Result, nil
		}
		return nil, fmt.Errorf("provider error: %s (%s)", env.Message, strings.TrimSpace(string(env.Result)))
	}
	return env.Result, nil
}

// proxy performs a module=proxy request and unwraps the JSON-RPC envelope.
func (c *Client) proxy(ctx context.Context, params url.Values) (json.RawMessage, error) {
	body, err := c.get(ctx, params)
	if err != nil {
		return nil, err
	}

	var env proxyEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode proxy envelope: %w", err)
	}
	if env.Error != nil {
		if strings.Contains(strings.ToLower(env.Error.Message), "rate limit") {
			return nil, domainRateLimited(0)
		}
		return nil, env.Error
	}
	return env.Result, nil
}

// isRateLimitMessage detects throttling in envelope text; Etherscan reports
// it with status "0" rather than HTTP 429.
func isRateLimitMessage(message string, result json.RawMessage) bool {
	text := strings.ToLower(message + " " + string(result))
	return strings.Contains(text, "rate limit")
}

func domainRateLimited(status int) error {
	if status > 0 {
		return fmt.Errorf("%w: HTTP %d", domain.ErrRateLimited, status)
	}
	return domain.ErrRateLimited
}

func isEmptyResultMessage(message string) bool {
	return strings.Contains(strings.ToLower(message), "no transactions found") ||
		strings.Contains(strings.ToLower(message), "no records found")
}

func (c *Client) log(format string, args ...interface{}) {
	if c.verbose {
		c.logger.Printf("[ethereum] "+format, args...)
	}
}
