package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/hotspotvend/HotspotVend/internal/pkg/env"
)

const defaultMpesaBaseURL = "https://api.safaricom.example/v1"

// MpesaGateway charges customers through an M-Pesa STK push aggregator.
type MpesaGateway struct {
	BaseURL   string
	ShortCode string
	APIKey    string

	HTTPClient *http.Client
}

// NewMpesaGatewayFromEnv builds the gateway from MPESA_* environment variables.
func NewMpesaGatewayFromEnv() *MpesaGateway {
	return &MpesaGateway{
		BaseURL:   strings.TrimRight(env.GetEnv("MPESA_BASE_URL", defaultMpesaBaseURL), "/"),
		ShortCode: strings.TrimSpace(env.GetEnv("MPESA_SHORT_CODE", "")),
		APIKey:    strings.TrimSpace(env.GetEnv("MPESA_API_KEY", "")),
		HTTPClient: &http.Client{
			Timeout: time.Duration(env.GetEnvInt("MPESA_TIMEOUT_SECONDS", 15)) * time.Second,
		},
	}
}

func (g *MpesaGateway) Method() string { return "mpesa" }

// RequiresAccount is true: STK push needs the subscriber's phone number.
func (g *MpesaGateway) RequiresAccount() bool { return true }

type mpesaChargeRequest struct {
	ShortCode   string `json:"short_code"`
	Phone       string `json:"phone"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	Reference   string `json:"reference"`
}

type mpesaChargeResponse struct {
	Status     string `json:"status"`
	ReceiptRef string `json:"receipt_ref"`
	Reason     string `json:"reason"`
}

// Charge runs a synchronous STK push and waits for the aggregator's verdict.
func (g *MpesaGateway) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	payload := mpesaChargeRequest{
		ShortCode:   g.ShortCode,
		Phone:       strings.TrimSpace(req.AccountRef),
		AmountCents: req.AmountCents,
		Currency:    req.Currency,
		Reference:   req.Reference,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.BaseURL+"/stkpush", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.APIKey)

	resp, err := g.HTTPClient.Do(httpReq)
	if err != nil {
		if isTimeoutErr(err) {
			return nil, ErrTimeout
		}
		return nil, err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode == http.StatusPaymentRequired || resp.StatusCode == http.StatusForbidden {
			return nil, &DeclineError{Reason: declineReason(raw)}
		}
		// 5xx and friends leave the charge outcome unknown.
		return nil, fmt.Errorf("mpesa charge failed: status=%d body=%s: %w", resp.StatusCode, string(raw), ErrTimeout)
	}

	var out mpesaChargeResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("mpesa charge returned unparseable body: %w", ErrTimeout)
	}

	switch strings.ToLower(out.Status) {
	case "success", "completed":
		return &ChargeResult{ProviderRef: out.ReceiptRef}, nil
	case "declined", "failed", "cancelled":
		return nil, &DeclineError{Reason: out.Reason}
	default:
		return nil, fmt.Errorf("mpesa charge status %q: %w", out.Status, ErrTimeout)
	}
}

func isTimeoutErr(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func declineReason(raw []byte) string {
	var out struct {
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return ""
	}
	return out.Reason
}
