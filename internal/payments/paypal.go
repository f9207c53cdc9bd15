package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const (
	SandboxBaseURL = "https://api-m.sandbox.paypal.com"
	LiveBaseURL    = "https://api-m.paypal.com"
)

// BaseURL returns the REST endpoint for mode ("live" or anything else for sandbox).
func BaseURL(mode string) string {
	if mode == "live" {
		return LiveBaseURL
	}
	return SandboxBaseURL
}

// APIError is a non-2xx answer from PayPal.
type APIError struct {
	StatusCode int
	Name       string `json:"name"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("paypal: %d %s: %s", e.StatusCode, e.Name, e.Message)
	}
	return fmt.Sprintf("paypal: status %d", e.StatusCode)
}

type PayPalConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	ReturnURL    string
	CancelURL    string
	HTTPClient   *http.Client
}

// PayPalClient talks to the PayPal v1 payments REST API.
type PayPalClient struct {
	cfg     PayPalConfig
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

func NewPayPalClient(cfg PayPalConfig, logger *zap.Logger) *PayPalClient {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	c := &PayPalClient{
		cfg:    cfg,
		http:   httpClient,
		logger: logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "paypal",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		// Client errors mean PayPal is up and answering.
		IsSuccessful: func(err error) bool {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return apiErr.StatusCode < 500
			}
			return err == nil
		},
	})
	return c
}

type ppAmount struct {
	Total    string `json:"total"`
	Currency string `json:"currency"`
}

type ppTransaction struct {
	Amount      ppAmount `json:"amount"`
	Description string   `json:"description,omitempty"`
	InvoiceID   string   `json:"invoice_number,omitempty"`
}

type ppCreateRequest struct {
	Intent       string            `json:"intent"`
	Payer        map[string]string `json:"payer"`
	Transactions []ppTransaction   `json:"transactions"`
	RedirectURLs map[string]string `json:"redirect_urls"`
}

type ppLink struct {
	Href string `json:"href"`
	Rel  string `json:"rel"`
}

type ppPayment struct {
	ID    string   `json:"id"`
	State string   `json:"state"`
	Links []ppLink `json:"links"`
}

// CreatePayment registers a sale and returns the buyer approval link.
func (c *PayPalClient) CreatePayment(ctx context.Context, order Order) (*Payment, error) {
	currency := order.Currency
	if currency == "" {
		currency = "USD"
	}
	body := ppCreateRequest{
		Intent: "sale",
		Payer:  map[string]string{"payment_method": "paypal"},
		Transactions: []ppTransaction{{
			Amount:      ppAmount{Total: order.Amount.StringFixed(2), Currency: currency},
			Description: order.Description,
			InvoiceID:   order.Reference,
		}},
		RedirectURLs: map[string]string{
			"return_url": c.cfg.ReturnURL,
			"cancel_url": c.cfg.CancelURL,
		},
	}

	var out ppPayment
	if err := c.call(ctx, http.MethodPost, "/v1/payments/payment", body, &out); err != nil {
		return nil, err
	}

	payment := &Payment{ID: out.ID}
	for _, link := range out.Links {
		if link.Rel == "approval_url" {
			payment.ApprovalURL = link.Href
			break
		}
	}
	if payment.ApprovalURL == "" {
		return nil, ErrNoApprovalURL
	}
	if u, err := url.Parse(payment.ApprovalURL); err == nil {
		payment.Token = u.Query().Get("token")
	}
	return payment, nil
}

// ExecutePayment captures a payment the buyer approved.
func (c *PayPalClient) ExecutePayment(ctx context.Context, paymentID, payerID string) (*Execution, error) {
	var out ppPayment
	path := "/v1/payments/payment/" + url.PathEscape(paymentID) + "/execute"
	if err := c.call(ctx, http.MethodPost, path, map[string]string{"payer_id": payerID}, &out); err != nil {
		return nil, err
	}
	return &Execution{ID: out.ID, State: out.State}, nil
}

func (c *PayPalClient) call(ctx context.Context, method, path string, in, out any) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.do(ctx, method, path, in, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}

func (c *PayPalClient) do(ctx context.Context, method, path string, in, out any) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}

	bodyBytes, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode paypal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("paypal %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		if resp.StatusCode == http.StatusUnauthorized {
			c.resetToken()
		}
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode paypal response: %w", err)
	}
	return nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// token returns a cached OAuth2 client-credentials token, refreshing it a minute early.
func (c *PayPalClient) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.expiresAt) {
		return c.accessToken, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("paypal token: %w", err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return "", err
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("decode paypal token: %w", err)
	}
	c.accessToken = tr.AccessToken
	c.expiresAt = time.Now().Add(time.Duration(tr.ExpiresIn)*time.Second - time.Minute)
	return c.accessToken, nil
}

func (c *PayPalClient) resetToken() {
	c.mu.Lock()
	c.accessToken = ""
	c.mu.Unlock()
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	apiErr := &APIError{StatusCode: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = json.Unmarshal(raw, apiErr)
	return apiErr
}
