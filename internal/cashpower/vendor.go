package cashpower

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/noah-isme/backoffice-api/internal/resilience"
)

// ErrVendorRejected is returned when the token vendor refuses a request.
var ErrVendorRejected = errors.New("cashpower: vendor rejected request")

// VendorTokens requests tokens from an external vending endpoint.
type VendorTokens struct {
	URL    string
	APIKey string
	HTTP   resilience.HTTPClient
}

type vendorRequest struct {
	MeterNumber string  `json:"meterNumber"`
	Units       float64 `json:"units"`
}

type vendorResponse struct {
	Token string `json:"token"`
}

// Token implements TokenGenerator.
func (v VendorTokens) Token(ctx context.Context, meter string, units float64) (string, error) {
	payload, err := json.Marshal(vendorRequest{MeterNumber: meter, Units: units})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.URL, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if v.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+v.APIKey)
	}
	resp, err := v.HTTP.Do(ctx, req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("%w: %s", ErrVendorRejected, resp.Status)
	}
	var out vendorResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode vendor response: %w", err)
	}
	token := strings.TrimSpace(out.Token)
	if token == "" {
		return "", fmt.Errorf("%w: empty token", ErrVendorRejected)
	}
	return token, nil
}
