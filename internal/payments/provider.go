// Package payments talks to the external payment processor. The real
// gateway sits behind the Provider interface so the service layer and tests
// never depend on the wire client.
package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tradeshield/escrow-backend/internal/apperr"
)

// VerificationResult is the provider's answer for one payment reference.
type VerificationResult struct {
	Reference string `json:"reference"`
	Paid      bool   `json:"paid"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
}

type Provider interface {
	// Initialize registers a pending charge and returns a checkout URL the
	// payer is redirected to.
	Initialize(ctx context.Context, reference string, amount int64, currency string) (string, error)
	// VerifyReference asks the provider whether the reference was paid.
	// Transport failures surface as retryable upstream errors.
	VerifyReference(ctx context.Context, reference string) (VerificationResult, error)
}

// HTTPProvider is the production client. Calls are bounded by the client
// timeout; a timeout is an upstream error, never a state transition.
type HTTPProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPProvider(baseURL, apiKey string, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

func (p *HTTPProvider) Initialize(ctx context.Context, reference string, amount int64, currency string) (string, error) {
	body := fmt.Sprintf(`{"reference":%q,"amount":%d,"currency":%q}`, reference, amount, currency)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/charges", strings.NewReader(body))
	if err != nil {
		return "", err
	}
	p.decorate(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", apperr.Upstream("payment provider unreachable", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return "", apperr.Upstream(fmt.Sprintf("payment provider returned %d", resp.StatusCode), nil)
	}
	if resp.StatusCode >= 400 {
		return "", apperr.Validation("payment provider rejected the charge")
	}

	var out struct {
		CheckoutURL string `json:"checkout_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", apperr.Upstream("decode provider response", err)
	}
	return out.CheckoutURL, nil
}

func (p *HTTPProvider) VerifyReference(ctx context.Context, reference string) (VerificationResult, error) {
	u := p.baseURL + "/charges/" + url.PathEscape(reference)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return VerificationResult{}, err
	}
	p.decorate(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return VerificationResult{}, apperr.Upstream("payment provider unreachable", err)
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return VerificationResult{}, apperr.NotFound("unknown payment reference")
	case resp.StatusCode >= 400:
		return VerificationResult{}, apperr.Upstream(fmt.Sprintf("payment provider returned %d", resp.StatusCode), nil)
	}

	var out VerificationResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return VerificationResult{}, apperr.Upstream("decode provider response", err)
	}
	return out, nil
}

func (p *HTTPProvider) decorate(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")
}
