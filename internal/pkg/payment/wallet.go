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

	"github.com/hotspotvend/HotspotVend/internal/pkg/env"
)

const defaultWalletBaseURL = "http://localhost:9810"

// WalletGateway debits an operator-hosted prepaid wallet. Wallets are keyed
// by the device when the caller does not name an account, so kiosk-topped-up
// devices can buy without typing anything.
type WalletGateway struct {
	BaseURL string
	APIKey  string

	HTTPClient *http.Client
}

// NewWalletGatewayFromEnv builds the gateway from WALLET_* environment variables.
func NewWalletGatewayFromEnv() *WalletGateway {
	return &WalletGateway{
		BaseURL: strings.TrimRight(env.GetEnv("WALLET_BASE_URL", defaultWalletBaseURL), "/"),
		APIKey:  strings.TrimSpace(env.GetEnv("WALLET_API_KEY", "")),
		HTTPClient: &http.Client{
			Timeout: time.Duration(env.GetEnvInt("WALLET_TIMEOUT_SECONDS", 10)) * time.Second,
		},
	}
}

func (g *WalletGateway) Method() string { return "wallet" }

// RequiresAccount is false: a missing account ref falls back to the device ID.
func (g *WalletGateway) RequiresAccount() bool { return false }

type walletDebitRequest struct {
	WalletRef   string `json:"wallet_ref"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	Reference   string `json:"reference"`
}

type walletDebitResponse struct {
	Status  string `json:"status"`
	DebitID string `json:"debit_id"`
	Reason  string `json:"reason"`
}

// Charge debits the wallet balance.
func (g *WalletGateway) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	walletRef := strings.TrimSpace(req.AccountRef)
	if walletRef == "" {
		walletRef = req.DeviceID
	}

	payload := walletDebitRequest{
		WalletRef:   walletRef,
		AmountCents: req.AmountCents,
		Currency:    req.Currency,
		Reference:   req.Reference,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.BaseURL+"/debit", bytes.NewReader(body))
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
		if resp.StatusCode == http.StatusPaymentRequired {
			return nil, &DeclineError{Reason: "insufficient wallet balance"}
		}
		if resp.StatusCode == http.StatusNotFound {
			return nil, &DeclineError{Reason: "wallet not found"}
		}
		return nil, fmt.Errorf("wallet debit failed: status=%d body=%s: %w", resp.StatusCode, string(raw), ErrTimeout)
	}

	var out walletDebitResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("wallet debit returned unparseable body: %w", ErrTimeout)
	}

	switch strings.ToLower(out.Status) {
	case "success", "completed":
		return &ChargeResult{ProviderRef: out.DebitID}, nil
	case "declined", "insufficient_funds":
		return nil, &DeclineError{Reason: out.Reason}
	default:
		return nil, fmt.Errorf("wallet debit status %q: %w", out.Status, ErrTimeout)
	}
}
