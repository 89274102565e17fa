package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/namthanhstores/storefront-backend/pkg/config"
	"github.com/namthanhstores/storefront-backend/pkg/logger"
	"github.com/namthanhstores/storefront-backend/pkg/types"
)

// DefaultNote is sent when the buyer leaves the delivery note empty.
const DefaultNote = "Không có ghi chú"

// Item is one purchased line as sent to the payment gateway.
type Item struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Price     types.Money `json:"price"`
	ItemCount int         `json:"itemCount"`
	Image     string      `json:"image"`
}

// InitiateRequest is everything the gateway needs to open a transaction.
type InitiateRequest struct {
	Amount  types.Money
	Items   []Item
	Name    string
	Phone   string
	Address string
	Note    string
	UserID  string
	Email   string
}

// InitiateResult identifies the opened transaction.
type InitiateResult struct {
	TransactionID string `json:"transactionId"`
	RedirectURL   string `json:"redirectUrl"`
}

// Initiator opens a payment transaction with the external gateway.
type Initiator interface {
	Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error)
}

type createPaymentBody struct {
	Amount  types.Money `json:"amount"`
	Items   []Item      `json:"items"`
	Email   string      `json:"email"`
	Address string      `json:"address"`
	Name    string      `json:"name"`
	Phone   string      `json:"phone"`
	Note    string      `json:"note"`
	UserID  string      `json:"userid"`
}

type createPaymentResponse struct {
	OrderURL   string `json:"order_url"`
	AppTransID string `json:"app_trans_id"`
}

// HTTPInitiator posts to the storefront's createPayment endpoint.
type HTTPInitiator struct {
	url    string
	client *http.Client
	logg   *logger.Logger
}

// NewHTTPInitiator builds an initiator for cfg.CreateURL. A nil client gets
// one bounded by cfg.Timeout.
func NewHTTPInitiator(cfg config.PaymentConfig, client *http.Client, logg *logger.Logger) (*HTTPInitiator, error) {
	url := strings.TrimSpace(cfg.CreateURL)
	if url == "" {
		return nil, fmt.Errorf("payment create url required")
	}
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &HTTPInitiator{url: url, client: client, logg: logg}, nil
}

func (h *HTTPInitiator) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	note := strings.TrimSpace(req.Note)
	if note == "" {
		note = DefaultNote
	}
	payload, err := json.Marshal(createPaymentBody{
		Amount:  req.Amount,
		Items:   req.Items,
		Email:   req.Email,
		Address: req.Address,
		Name:    req.Name,
		Phone:   req.Phone,
		Note:    note,
		UserID:  req.UserID,
	})
	if err != nil {
		return nil, fmt.Errorf("encode payment request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build payment request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call payment gateway: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read payment response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		h.logg.Warn(h.logg.WithFields(ctx, map[string]any{
			"status": resp.StatusCode,
			"body":   truncate(string(body), 256),
		}), "payment gateway rejected request")
		return nil, fmt.Errorf("payment gateway returned status %d", resp.StatusCode)
	}

	var decoded createPaymentResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("decode payment response: %w", err)
	}
	if decoded.OrderURL == "" || decoded.AppTransID == "" {
		return nil, fmt.Errorf("payment response missing order_url or app_trans_id")
	}
	return &InitiateResult{TransactionID: decoded.AppTransID, RedirectURL: decoded.OrderURL}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
