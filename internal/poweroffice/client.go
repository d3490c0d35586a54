// Package poweroffice is the client for the PowerOffice GO sales-order API.
// Authentication is OAuth2 client credentials with an Azure API Management
// subscription key on every request.
package poweroffice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/nordial/invoicerun/internal/clock"
	"github.com/nordial/invoicerun/internal/config"
	orderdomain "github.com/nordial/invoicerun/internal/order/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// APIError carries the status and response body of a failed API call so the
// batch log can show what the provider rejected.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("poweroffice: status %d: %s", e.StatusCode, e.Body)
}

// CreateOrderResult is the provider's answer to a submitted order.
type CreateOrderResult struct {
	ID   int64           `json:"id"`
	Body json.RawMessage `json:"-"`
}

type Params struct {
	fx.In

	Config config.Config
	Log    *zap.Logger
	Clock  clock.Clock
}

type Client struct {
	cfg        config.PowerOfficeConfig
	httpClient *http.Client
	clk        clock.Clock
	log        *zap.Logger
	tokens     tokenHolder
}

func New(p Params) *Client {
	return &Client{
		cfg:        p.Config.PowerOffice,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		clk:        p.Clock,
		log:        p.Log.Named("poweroffice.client"),
	}
}

// CreateSalesOrder submits one complete sales order. A 401 on a cached
// token triggers a single re-authentication and retry.
func (c *Client) CreateSalesOrder(ctx context.Context, order *orderdomain.SalesOrder) (*CreateOrderResult, error) {
	payload, err := json.Marshal(order)
	if err != nil {
		return nil, fmt.Errorf("marshal sales order: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, "/SalesOrders/Complete", payload)
	if err != nil {
		return nil, err
	}

	result := &CreateOrderResult{Body: body}
	if err := json.Unmarshal(body, result); err != nil {
		// The order went through; an unparsable body only costs us the id.
		c.log.Warn("could not parse create-order response", zap.Error(err))
	}

	c.log.Info("sales order created",
		zap.String("customer_no", order.CustomerNo),
		zap.Int64("order_id", result.ID),
		zap.Int("lines", len(order.Lines)),
	)
	return result, nil
}

// ListSalesOrders fetches all sales orders, for ad-hoc verification runs.
func (c *Client) ListSalesOrders(ctx context.Context) ([]json.RawMessage, error) {
	body, err := c.do(ctx, http.MethodGet, "/SalesOrders", nil)
	if err != nil {
		return nil, err
	}

	var orders []json.RawMessage
	if err := json.Unmarshal(body, &orders); err != nil {
		return nil, fmt.Errorf("parse sales orders: %w", err)
	}
	return orders, nil
}

// SendOrderEmail asks the provider to mail an existing order to recipient.
func (c *Client) SendOrderEmail(ctx context.Context, orderID int64, recipient string) error {
	payload, err := json.Marshal(map[string]string{
		"sendTo":  recipient,
		"subject": "Your Sales Order Confirmation",
		"message": "Please find your sales order attached.",
	})
	if err != nil {
		return err
	}

	_, err = c.do(ctx, http.MethodPost, fmt.Sprintf("/Orders/%d/send", orderID), payload)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	body, retry, err := c.doOnce(ctx, method, path, payload)
	if retry {
		c.invalidateToken()
		body, _, err = c.doOnce(ctx, method, path, payload)
	}
	return body, err
}

func (c *Client) doOnce(ctx context.Context, method, path string, payload []byte) ([]byte, bool, error) {
	token, err := c.getValidToken(ctx)
	if err != nil {
		return nil, false, err
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.APIBaseURL+path, reader)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Ocp-Apim-Subscription-Key", c.cfg.SubscriptionKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("poweroffice request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("poweroffice response: %w", err)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, true, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, false, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, false, nil
}
