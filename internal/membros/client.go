// Package membros is the HTTP client for the Membros payment gateway.
// The gateway issues PIX orders and reports their status; it does not
// deduplicate order creation, so callers must avoid re-invoking
// CreateOrder for the same diet record.
package membros

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nutriplan/nutriplan-backend/internal/models"
)

type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	log        *slog.Logger
}

func NewClient(baseURL, apiKey string, timeout time.Duration, log *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

type Phone struct {
	CountryCode string `json:"country_code,omitempty"`
	AreaCode    string `json:"area_code"`
	Number      string `json:"number"`
}

type Customer struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Document     string `json:"document,omitempty"`
	DocumentType string `json:"document_type,omitempty"`
	Type         string `json:"type,omitempty"`
	Phone        *Phone `json:"phone,omitempty"`
}

type OrderItem struct {
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
	// Amount is in minor currency units (integer cents).
	Amount int `json:"amount"`
}

type CreateOrderRequest struct {
	PaymentMethod string      `json:"paymentMethod"`
	Customer      Customer    `json:"customer"`
	Items         []OrderItem `json:"items"`
	TotalAmount   int         `json:"totalAmount"`
}

type OrderPayment struct {
	ID            string `json:"id"`
	PaymentMethod string `json:"payment_method"`
	Amount        int    `json:"amount"`
	Status        string `json:"status"`
	PixQRCode     string `json:"pix_qr_code,omitempty"`
	PixQRCodeURL  string `json:"pix_qr_code_url,omitempty"`
	PixExpiresAt  string `json:"pix_expires_at,omitempty"`
}

type Order struct {
	ID          string         `json:"id"`
	Code        string         `json:"code"`
	Status      string         `json:"status"`
	TotalAmount int            `json:"totalAmount"`
	Payments    []OrderPayment `json:"payments"`
	CreatedAt   string         `json:"createdAt"`
	UpdatedAt   string         `json:"updatedAt"`
}

// PaymentStatus maps the gateway's status string onto the canonical
// enum; unrecognized values come back as (_, false).
func (o *Order) PaymentStatus() (models.PaymentStatus, bool) {
	return models.ParsePaymentStatus(o.Status)
}

// PixDetails returns the scannable code fields from the first PIX
// payment attached to the order.
func (o *Order) PixDetails() (qrCode, qrCodeURL, expiresAt string) {
	for _, p := range o.Payments {
		if p.PixQRCode != "" || p.PixQRCodeURL != "" {
			return p.PixQRCode, p.PixQRCodeURL, p.PixExpiresAt
		}
	}
	return "", "", ""
}

// CreateOrder opens a PIX order with the gateway. The caller is
// responsible for not calling this twice for the same diet record.
func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	if req.PaymentMethod == "" {
		req.PaymentMethod = "pix"
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal order request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/orders/pix", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	c.setHeaders(httpReq)
	httpReq.Header.Set("Content-Type", "application/json")

	return c.do(httpReq)
}

// GetOrder fetches the current state of an order. A transport error
// means "status unknown"; callers must keep their local state.
func (c *Client) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v2/orders/"+orderID, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	c.setHeaders(httpReq)

	return c.do(httpReq)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")
}

func (c *Client) do(req *http.Request) (*Order, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("membros request: %w", err)
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode >= 300 {
		if c.log != nil {
			c.log.Error("membros request failed", "status", resp.StatusCode, "url", req.URL.String(), "body", truncateBody(rawBody))
		}
		return nil, fmt.Errorf("membros error: status=%d body=%s", resp.StatusCode, truncateBody(rawBody))
	}

	var order Order
	if err := json.Unmarshal(rawBody, &order); err != nil {
		return nil, fmt.Errorf("decode order response: %w (body=%s)", err, truncateBody(rawBody))
	}
	if order.ID == "" {
		return nil, fmt.Errorf("empty order id in response (body=%s)", truncateBody(rawBody))
	}
	return &order, nil
}

func truncateBody(body []byte) string {
	const limit = 512
	s := strings.TrimSpace(string(body))
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "…"
}
