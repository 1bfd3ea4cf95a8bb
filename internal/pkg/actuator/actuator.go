// Package actuator talks to the hotspot controller that actually opens and
// closes the captive portal for a client device. The database stays the
// source of truth; the actuator is best-effort enforcement on top of it.
package actuator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/hotspotvend/HotspotVend/internal/pkg/env"
)

// Actuator is implemented by anything that can toggle network access for a
// device.
type Actuator interface {
	// Grant opens access for the device until the given time.
	Grant(ctx context.Context, deviceID string, until time.Time) error
	// Revoke closes access for the device.
	Revoke(ctx context.Context, deviceID string) error
}

// HTTPActuator drives a RouterOS-style controller over its REST bridge.
type HTTPActuator struct {
	BaseURL string
	Token   string

	HTTPClient *http.Client
}

// NewHTTPActuatorFromEnv builds the actuator from ACTUATOR_* environment
// variables.
func NewHTTPActuatorFromEnv() *HTTPActuator {
	return &HTTPActuator{
		BaseURL: strings.TrimRight(env.GetEnv("ACTUATOR_BASE_URL", ""), "/"),
		Token:   strings.TrimSpace(env.GetEnv("ACTUATOR_TOKEN", "")),
		HTTPClient: &http.Client{
			Timeout: time.Duration(env.GetEnvInt("ACTUATOR_TIMEOUT_SECONDS", 10)) * time.Second,
		},
	}
}

// SetupActuator returns the configured controller client, or a no-op stand-in
// when no controller is configured (dev setups, tests).
func SetupActuator() Actuator {
	a := NewHTTPActuatorFromEnv()
	if a.BaseURL == "" {
		log.Warn("[Actuator] ACTUATOR_BASE_URL not set, network enforcement disabled")
		return &NoopActuator{}
	}
	return a
}

type grantRequest struct {
	DeviceID string `json:"device_id"`
	Until    string `json:"until"`
}

type revokeRequest struct {
	DeviceID string `json:"device_id"`
}

// Grant opens the controller gate for the device.
func (a *HTTPActuator) Grant(ctx context.Context, deviceID string, until time.Time) error {
	payload := grantRequest{DeviceID: deviceID, Until: until.UTC().Format(time.RFC3339)}
	return a.post(ctx, "/access/grant", payload)
}

// Revoke closes the controller gate for the device.
func (a *HTTPActuator) Revoke(ctx context.Context, deviceID string) error {
	return a.post(ctx, "/access/revoke", revokeRequest{DeviceID: deviceID})
}

func (a *HTTPActuator) post(ctx context.Context, path string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.Token)

	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return fmt.Errorf("actuator %s failed: status=%d body=%s", path, resp.StatusCode, string(raw))
	}
	return nil
}

// NoopActuator satisfies the interface without touching any network gear.
type NoopActuator struct{}

func (a *NoopActuator) Grant(ctx context.Context, deviceID string, until time.Time) error {
	_ = ctx
	log.Debugf("[Actuator] noop grant for device %s until %s", deviceID, until.Format(time.RFC3339))
	return nil
}

func (a *NoopActuator) Revoke(ctx context.Context, deviceID string) error {
	_ = ctx
	log.Debugf("[Actuator] noop revoke for device %s", deviceID)
	return nil
}
