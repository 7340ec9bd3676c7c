package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"storefront/internal/domain"
)

const defaultBaseURL = "https://api.razorpay.com"

// Config configures the Razorpay orders client.
type Config struct {
	BaseURL   string
	KeyID     string
	KeySecret string
	Timeout   time.Duration
	Logger    *zap.Logger

	// HTTPClient overrides the default client; Timeout is still applied per call.
	HTTPClient *http.Client
}

// Client creates orders through the Razorpay REST API.
type Client struct {
	baseURL   string
	keyID     string
	keySecret string
	timeout   time.Duration
	http      *http.Client
	log       *zap.Logger
	now       func() time.Time
}

// New validates credentials and builds a Client.
func New(cfg Config) (*Client, error) {
	if cfg.KeyID == "" || cfg.KeySecret == "" {
		return nil, errors.New("gateway key id and secret are required")
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:   base,
		keyID:     cfg.KeyID,
		keySecret: cfg.KeySecret,
		timeout:   timeout,
		http:      httpClient,
		log:       logger.Named("gateway"),
		now:       time.Now,
	}, nil
}

// KeyID is the public key the browser checkout widget needs.
func (c *Client) KeyID() string { return c.keyID }

type createOrderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

type createOrderResponse struct {
	ID        string `json:"id"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Receipt   string `json:"receipt"`
	Status    string `json:"status"`
	CreatedAt int64  `json:"created_at"`
}

// CreateIntent registers a new order with the gateway. The call is made once;
// every transport or protocol failure wraps domain.ErrGatewayUnavailable.
func (c *Client) CreateIntent(ctx context.Context, amountMinor int64, currency, receipt string) (*domain.GatewayIntent, error) {
	if err := validateIntent(amountMinor, currency); err != nil {
		return nil, err
	}
	if receipt == "" {
		receipt = fmt.Sprintf("receipt_%d", c.now().UnixMilli())
	}

	body, err := json.Marshal(createOrderRequest{Amount: amountMinor, Currency: currency, Receipt: receipt})
	if err != nil {
		return nil, fmt.Errorf("encode gateway request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build gateway request: %w", err)
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", domain.ErrGatewayUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Warn("gateway rejected order",
			zap.Int("status", resp.StatusCode),
			zap.String("receipt", receipt),
			zap.ByteString("body", truncate(raw, 512)),
		)
		return nil, fmt.Errorf("%w: status %d", domain.ErrGatewayUnavailable, resp.StatusCode)
	}

	var out createOrderResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", domain.ErrGatewayUnavailable, err)
	}
	if out.ID == "" {
		return nil, fmt.Errorf("%w: response without order id", domain.ErrGatewayUnavailable)
	}
	if out.Amount != amountMinor || !strings.EqualFold(out.Currency, currency) {
		c.log.Error("gateway echoed different amount",
			zap.String("gateway_order_id", out.ID),
			zap.Int64("requested", amountMinor),
			zap.Int64("echoed", out.Amount),
			zap.String("currency", out.Currency),
		)
		return nil, fmt.Errorf("%w: echoed %d %s, requested %d %s",
			domain.ErrGatewayUnavailable, out.Amount, out.Currency, amountMinor, currency)
	}

	created := c.now().UTC()
	if out.CreatedAt > 0 {
		created = time.Unix(out.CreatedAt, 0).UTC()
	}
	return &domain.GatewayIntent{
		ID:          out.ID,
		AmountMinor: out.Amount,
		Currency:    currency,
		Receipt:     out.Receipt,
		CreatedAt:   created,
	}, nil
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
