package payout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/homebase/referral-api/internal/config"
	"github.com/homebase/referral-api/internal/model"
	"github.com/homebase/referral-api/pkg/circuitbreaker"
)

// httpTransferClient posts transfer orders to the external payout provider.
// The circuit breaker keeps a flapping provider from stalling the worker.
type httpTransferClient struct {
	client *http.Client
	url    string
	apiKey string
	cb     *circuitbreaker.CircuitBreaker
}

func NewHTTPTransferClient(cfg config.TransferConfig) TransferClient {
	return &httpTransferClient{
		client: &http.Client{Timeout: cfg.RequestTimeout},
		url:    cfg.ProviderURL,
		apiKey: cfg.APIKey,
		cb: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "payout-transfer",
			MaxFailures: cfg.MaxFailures,
			Timeout:     cfg.BreakerTimeout,
		}),
	}
}

type transferRequest struct {
	ReferenceID string `json:"reference_id"`
	RecipientID string `json:"recipient_id"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
}

func (c *httpTransferClient) Transfer(ctx context.Context, payout *model.AgentPayout) error {
	body, err := json.Marshal(transferRequest{
		ReferenceID: payout.ID.String(),
		RecipientID: payout.AgentID.String(),
		AmountCents: payout.AmountCents,
		Currency:    "USD",
	})
	if err != nil {
		return fmt.Errorf("failed to marshal transfer request: %w", err)
	}

	return c.cb.Execute(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("failed to build transfer request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("transfer request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			return fmt.Errorf("transfer provider returned %d", resp.StatusCode)
		}
		return nil
	})
}
