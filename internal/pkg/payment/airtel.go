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

const defaultAirtelBaseURL = "https://openapi.airtel.example/merchant/v1"

// AirtelGateway charges customers through the Airtel Money collections API.
type AirtelGateway struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	CountryCode  string

	HTTPClient *http.Client
}

// NewAirtelGatewayFromEnv builds the gateway from AIRTEL_* environment variables.
func NewAirtelGatewayFromEnv() *AirtelGateway {
	return &AirtelGateway{
		BaseURL:      strings.TrimRight(env.GetEnv("AIRTEL_BASE_URL", defaultAirtelBaseURL), "/"),
		ClientID:     strings.TrimSpace(env.GetEnv("AIRTEL_CLIENT_ID", "")),
		ClientSecret: strings.TrimSpace(env.GetEnv("AIRTEL_CLIENT_SECRET", "")),
		CountryCode:  strings.TrimSpace(env.GetEnv("AIRTEL_COUNTRY_CODE", "KE")),
		HTTPClient: &http.Client{
			Timeout: time.Duration(env.GetEnvInt("AIRTEL_TIMEOUT_SECONDS", 15)) * time.Second,
		},
	}
}

func (g *AirtelGateway) Method() string { return "airtel" }

// RequiresAccount is true: collections are pushed to the subscriber's phone.
func (g *AirtelGateway) RequiresAccount() bool { return true }

type airtelChargeRequest struct {
	Msisdn      string `json:"msisdn"`
	Country     string `json:"country"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	TxnID       string `json:"transaction_id"`
}

type airtelChargeResponse struct {
	Result struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		AirtelRef string `json:"airtel_ref"`
	} `json:"result"`
}

// Charge pushes a collection request and waits for the provider's verdict.
func (g *AirtelGateway) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	payload := airtelChargeRequest{
		Msisdn:      strings.TrimSpace(req.AccountRef),
		Country:     g.CountryCode,
		AmountCents: req.AmountCents,
		Currency:    req.Currency,
		TxnID:       req.Reference,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.BaseURL+"/collections", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.SetBasicAuth(g.ClientID, g.ClientSecret)

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
		return nil, fmt.Errorf("airtel charge failed: status=%d body=%s: %w", resp.StatusCode, string(raw), ErrTimeout)
	}

	var out airtelChargeResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("airtel charge returned unparseable body: %w", ErrTimeout)
	}

	// Airtel result codes: DP00800001006 = success, DP00800001007 = declined.
	switch out.Result.Code {
	case "DP00800001006":
		return &ChargeResult{ProviderRef: out.Result.AirtelRef}, nil
	case "DP00800001007":
		return nil, &DeclineError{Reason: out.Result.Message}
	default:
		return nil, fmt.Errorf("airtel charge result code %q: %w", out.Result.Code, ErrTimeout)
	}
}
