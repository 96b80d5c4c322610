package external

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Gateway notification statuses
const (
	PaymentStatusCompleted = "COMPLETED"
	PaymentStatusConfirmed = "CONFIRMED"
	PaymentStatusFailed    = "FAILED"
	PaymentStatusCancelled = "CANCELLED"
	PaymentStatusExpired   = "EXPIRED"
)

type PaymentClient struct {
	baseURL         string
	teamSlug        string
	password        string
	currency        string
	successURL      string
	failURL         string
	notificationURL string
	httpClient      *http.Client
}

type PaymentConfig struct {
	BaseURL         string
	TeamSlug        string
	Password        string
	Currency        string
	SuccessURL      string
	FailURL         string
	NotificationURL string
	Timeout         time.Duration
}

// CheckoutRequest describes one card checkout session for a booking
type CheckoutRequest struct {
	OrderID     string
	UnitAmount  int64
	Quantity    int
	Description string
	Email       string
}

type PaymentInitRequest struct {
	TeamSlug        string `json:"teamSlug"`
	Token           string `json:"token"`
	Amount          int64  `json:"amount"`
	Quantity        int    `json:"quantity"`
	OrderID         string `json:"orderId"`
	Currency        string `json:"currency"`
	Description     string `json:"description,omitempty"`
	Email           string `json:"email,omitempty"`
	SuccessURL      string `json:"successURL,omitempty"`
	FailURL         string `json:"failURL,omitempty"`
	NotificationURL string `json:"notificationURL,omitempty"`
}

type PaymentInitResponse struct {
	Success    bool   `json:"success"`
	PaymentID  string `json:"paymentId"`
	OrderID    string `json:"orderId"`
	Status     string `json:"status"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
	PaymentURL string `json:"paymentURL"`
	ExpiresAt  string `json:"expiresAt"`
	Message    string `json:"message,omitempty"`
}

func NewPaymentClient(cfg PaymentConfig) *PaymentClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}

	return &PaymentClient{
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		teamSlug:        cfg.TeamSlug,
		password:        cfg.Password,
		currency:        cfg.Currency,
		successURL:      cfg.SuccessURL,
		failURL:         cfg.FailURL,
		notificationURL: cfg.NotificationURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// generateToken hashes the values of params plus the team credentials, ordered by key
func (pc *PaymentClient) generateToken(params map[string]string) string {
	all := make(map[string]string, len(params)+2)
	for k, v := range params {
		all[k] = v
	}
	all["TeamSlug"] = pc.teamSlug
	all["Password"] = pc.password

	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, key := range keys {
		sb.WriteString(all[key])
	}

	hash := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(hash[:])
}

// CreateCheckout opens a hosted checkout session and returns its id and redirect URL
func (pc *PaymentClient) CreateCheckout(ctx context.Context, in CheckoutRequest) (*PaymentInitResponse, error) {
	token := pc.generateToken(map[string]string{
		"Amount":   strconv.FormatInt(in.UnitAmount, 10),
		"Currency": pc.currency,
		"OrderId":  in.OrderID,
		"Quantity": strconv.Itoa(in.Quantity),
	})

	req := PaymentInitRequest{
		TeamSlug:        pc.teamSlug,
		Token:           token,
		Amount:          in.UnitAmount,
		Quantity:        in.Quantity,
		OrderID:         in.OrderID,
		Currency:        pc.currency,
		Description:     in.Description,
		Email:           in.Email,
		SuccessURL:      pc.successURL,
		FailURL:         pc.failURL,
		NotificationURL: pc.notificationURL,
	}

	var result PaymentInitResponse
	if err := pc.post(ctx, "/api/v1/PaymentInit/init", req, &result); err != nil {
		return nil, fmt.Errorf("failed to init payment: %w", err)
	}

	if !result.Success || result.PaymentID == "" {
		return nil, fmt.Errorf("payment init failed: %s", result.Message)
	}

	return &result, nil
}

// CancelPayment voids an open checkout session
func (pc *PaymentClient) CancelPayment(ctx context.Context, paymentID, reason string) error {
	token := pc.generateToken(map[string]string{
		"PaymentId": paymentID,
	})

	reqData := map[string]interface{}{
		"teamSlug":  pc.teamSlug,
		"token":     token,
		"paymentId": paymentID,
		"reason":    reason,
	}

	if err := pc.post(ctx, "/api/v1/PaymentCancel/cancel", reqData, nil); err != nil {
		return fmt.Errorf("failed to cancel payment: %w", err)
	}
	return nil
}

// VerifyNotification checks the webhook token, computed like request tokens over
// PaymentId, Status and Timestamp.
func (pc *PaymentClient) VerifyNotification(paymentID, status, timestamp, token string) bool {
	expected := pc.NotificationToken(paymentID, status, timestamp)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(token))) == 1
}

// NotificationToken is the token the gateway attaches to a notification
func (pc *PaymentClient) NotificationToken(paymentID, status, timestamp string) string {
	return pc.generateToken(map[string]string{
		"PaymentId": paymentID,
		"Status":    status,
		"Timestamp": timestamp,
	})
}

func (pc *PaymentClient) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, pc.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := pc.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
