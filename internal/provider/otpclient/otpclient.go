// Package otpclient talks to the upstream virtual number provider. Every
// endpoint is a GET keyed by an API key; responses share a loose
// {success, message, data} envelope whose data shape differs per
// endpoint, so callers must treat every field as potentially absent.
package otpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/ditznesia/otpstore/internal/httpclient"
)

const DefaultBaseURL = "https://api.jasaotp.id/v2"

var (
	// ErrAPIKeyMissing is returned before any network call is attempted.
	ErrAPIKeyMissing = errors.New("provider api key is not configured")

	// ErrOrderGone means the provider no longer knows the order id: its
	// history silently purges expired rentals.
	ErrOrderGone = errors.New("order not found on provider side")
)

// ProviderError carries the provider's own failure message for a call
// that reached the provider but was refused.
type ProviderError struct {
	Endpoint string
	Message  string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %s", e.Endpoint, e.Message)
}

type Client struct {
	log    *slog.Logger
	client *resty.Client
	apiKey string
}

func New(apiKey string, opts ...Option) *Client {
	// The poll loop is the retry mechanism; individual provider calls
	// are fired once.
	httpClient := httpclient.New(
		httpclient.WithBaseURL(DefaultBaseURL),
		httpclient.WithRetryCount(0),
	)

	c := &Client{
		log:    slog.New(&slog.JSONHandler{}),
		client: httpClient,
		apiKey: apiKey,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

type Option func(c *Client)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.log = logger
	}
}

func WithClient(client *resty.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.client.SetBaseURL(strings.TrimRight(baseURL, "/"))
	}
}

// envelope is the provider's response wrapper. Older endpoints report
// the success flag as "status", newer ones as "success".
type envelope struct {
	Success *bool           `json:"success,omitempty"`
	Status  *bool           `json:"status,omitempty"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *envelope) ok() bool {
	if e.Success != nil && *e.Success {
		return true
	}

	return e.Status != nil && *e.Status
}

func (e *envelope) failureMessage() string {
	if e.Message != "" {
		return e.Message
	}

	if len(e.Data) > 0 {
		return string(e.Data)
	}

	return "unknown provider error"
}

// goneMessage reports whether a failure message means the order id has
// been purged from the provider's history.
func goneMessage(msg string) bool {
	m := strings.ToLower(msg)

	return strings.Contains(m, "tidak ditemukan") ||
		strings.Contains(m, "not found") ||
		strings.Contains(m, "data kosong")
}

func (c *Client) call(ctx context.Context, endpoint string, params map[string]string) (*envelope, error) {
	if c.apiKey == "" {
		return nil, ErrAPIKeyMissing
	}

	req := c.client.R().
		SetContext(ctx).
		SetQueryParam("api_key", c.apiKey)

	for k, v := range params {
		req.SetQueryParam(k, v)
	}

	resp, err := req.Get("/" + endpoint + ".php")
	if err != nil {
		c.log.Error("provider call failed",
			slog.String("endpoint", endpoint),
			slog.Any("error", err),
		)

		return nil, fmt.Errorf("client.R: %w", err)
	}

	env := new(envelope)
	if err := json.Unmarshal(resp.Body(), env); err != nil {
		return nil, fmt.Errorf("json.Unmarshal: %w", err)
	}

	return env, nil
}

type BalanceData struct {
	Saldo decimal.Decimal `json:"saldo"`
}

// Balance returns the reseller account balance held at the provider.
func (c *Client) Balance(ctx context.Context) (decimal.Decimal, error) {
	env, err := c.call(ctx, "balance", nil)
	if err != nil {
		return decimal.Zero, err
	}

	if !env.ok() {
		return decimal.Zero, &ProviderError{Endpoint: "balance", Message: env.failureMessage()}
	}

	var data BalanceData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return decimal.Zero, fmt.Errorf("json.Unmarshal: %w", err)
	}

	return data.Saldo, nil
}

type Country struct {
	ID   json.Number `json:"id_negara"`
	Name string      `json:"nama_negara"`
}

func (c *Client) Countries(ctx context.Context) ([]Country, error) {
	env, err := c.call(ctx, "negara", nil)
	if err != nil {
		return nil, err
	}

	if !env.ok() {
		return nil, &ProviderError{Endpoint: "negara", Message: env.failureMessage()}
	}

	var countries []Country
	if err := json.Unmarshal(env.Data, &countries); err != nil {
		return nil, fmt.Errorf("json.Unmarshal: %w", err)
	}

	return countries, nil
}

type Service struct {
	Label string          `json:"layanan"`
	Cost  decimal.Decimal `json:"harga"`
	Stock int             `json:"stok"`
}

// Services returns the provider price list for one country, keyed by
// service code. The response nests the map under the country id.
func (c *Client) Services(ctx context.Context, countryID string) (map[string]Service, error) {
	if c.apiKey == "" {
		return nil, ErrAPIKeyMissing
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("api_key", c.apiKey).
		SetQueryParam("negara", countryID).
		Get("/layanan.php")
	if err != nil {
		return nil, fmt.Errorf("client.R: %w", err)
	}

	var byCountry map[string]map[string]Service
	if err := json.Unmarshal(resp.Body(), &byCountry); err != nil {
		return nil, fmt.Errorf("json.Unmarshal: %w", err)
	}

	services, ok := byCountry[countryID]
	if !ok {
		return nil, &ProviderError{Endpoint: "layanan", Message: "no services for country " + countryID}
	}

	return services, nil
}

type PlacedOrder struct {
	OrderID string `json:"order_id"`
	Number  string `json:"number"`
}

// PlaceOrder rents a number for the given upstream SKU.
func (c *Client) PlaceOrder(ctx context.Context, countryID, serviceCode string) (*PlacedOrder, error) {
	env, err := c.call(ctx, "order", map[string]string{
		"negara":   countryID,
		"layanan":  serviceCode,
		"operator": "any",
	})
	if err != nil {
		return nil, err
	}

	if !env.ok() {
		return nil, &ProviderError{Endpoint: "order", Message: env.failureMessage()}
	}

	placed := new(PlacedOrder)
	if err := json.Unmarshal(env.Data, placed); err != nil {
		return nil, fmt.Errorf("json.Unmarshal: %w", err)
	}

	if placed.OrderID == "" || placed.Number == "" {
		return nil, &ProviderError{Endpoint: "order", Message: "order id or number missing in response"}
	}

	return placed, nil
}

type SMSData struct {
	Status string `json:"status"`
	OTP    string `json:"otp"`
}

// GetSMS polls the provider for the order's SMS state. ErrOrderGone is
// returned when the provider reports the order id as unknown.
func (c *Client) GetSMS(ctx context.Context, providerOrderID string) (*SMSData, error) {
	env, err := c.call(ctx, "sms", map[string]string{"id": providerOrderID})
	if err != nil {
		return nil, err
	}

	if !env.ok() {
		if goneMessage(env.failureMessage()) {
			return nil, ErrOrderGone
		}

		return nil, &ProviderError{Endpoint: "sms", Message: env.failureMessage()}
	}

	data := new(SMSData)
	if err := json.Unmarshal(env.Data, data); err != nil {
		return nil, fmt.Errorf("json.Unmarshal: %w", err)
	}

	return data, nil
}

// CancelOrder asks the provider to stop the rental. Only an explicit
// provider success means the rental is gone; callers must not refund on
// any other outcome.
func (c *Client) CancelOrder(ctx context.Context, providerOrderID string) error {
	env, err := c.call(ctx, "cancel", map[string]string{"id": providerOrderID})
	if err != nil {
		return err
	}

	if env.ok() {
		return nil
	}

	// Some provider versions acknowledge via data: true instead of the
	// success flag.
	var acked bool
	if len(env.Data) > 0 && json.Unmarshal(env.Data, &acked) == nil && acked {
		return nil
	}

	return &ProviderError{Endpoint: "cancel", Message: env.failureMessage()}
}
