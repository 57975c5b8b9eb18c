package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"swellwatch/internal/types"
)

// PushProvider delivers one push notification to a set of device tokens
// and returns the gateway's delivery reference.
type PushProvider interface {
	Push(ctx context.Context, input SendPushInput) (string, error)
}

// SendPushInput carries a rendered push notification.
type SendPushInput struct {
	DeviceTokens []string
	Title        string
	Body         string
	// TriggerID is passed through as gateway metadata for correlation.
	TriggerID string
}

// PushClientConfig holds the configuration for creating a PushHTTPClient.
type PushClientConfig struct {
	BaseURL string
	APIKey  types.SecretString
	Logger  *slog.Logger
}

// pushRequest is the gateway's wire format.
type pushRequest struct {
	Tokens   []string          `json:"tokens"`
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type pushResponse struct {
	DeliveryID string `json:"delivery_id"`
	Accepted   int    `json:"accepted"`
	Rejected   int    `json:"rejected"`
}

// PushHTTPClient implements PushProvider against the push gateway through
// BaseClient, so deliveries get the circuit breaker, retries, and error
// mapping the other outbound calls get.
type PushHTTPClient struct {
	base    *BaseClient
	baseURL string
	apiKey  types.SecretString
	logger  *slog.Logger
}

// NewPushClient creates a new PushHTTPClient.
func NewPushClient(httpClient *http.Client, cfg PushClientConfig) *PushHTTPClient {
	base := NewBaseClient(
		httpClient,
		"push",
		RetryPolicy{
			MaxRetries: 2,
			MinWait:    500 * time.Millisecond,
			MaxWait:    5 * time.Second,
		},
		"SwellWatch/1.0",
	)
	return NewPushClientWithBase(base, cfg)
}

// NewPushClientWithBase creates a PushHTTPClient with a pre-configured
// BaseClient. Useful in tests to control retry behavior.
func NewPushClientWithBase(base *BaseClient, cfg PushClientConfig) *PushHTTPClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &PushHTTPClient{
		base:    base,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		logger:  logger,
	}
}

// Push POSTs one notification to /v1/push. A response naming zero accepted
// devices is an invalid-recipient condition, not a transport failure.
func (c *PushHTTPClient) Push(ctx context.Context, input SendPushInput) (string, error) {
	reqBody := pushRequest{
		Tokens: input.DeviceTokens,
		Title:  input.Title,
		Body:   input.Body,
	}
	if input.TriggerID != "" {
		reqBody.Metadata = map[string]string{"trigger_id": input.TriggerID}
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to serialize push payload",
			err,
		)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/push", bytes.NewReader(bodyBytes))
	if err != nil {
		return "", types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to create push request",
			err,
		)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey.Unmask())

	resp, err := c.base.Do(req)
	if err != nil {
		return "", types.NewAppError(
			types.ErrCodeDispatchTransport,
			"push gateway request failed",
			err,
		)
	}
	defer resp.Body.Close()

	// BaseClient returns non-429 4xx responses as-is without error.
	if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity {
		return "", types.NewAppError(
			types.ErrCodeDispatchInvalidRecipient,
			fmt.Sprintf("push gateway rejected recipient: status %d", resp.StatusCode),
			nil,
		)
	}
	if resp.StatusCode >= 400 {
		return "", types.NewAppError(
			types.ErrCodeDispatchTransport,
			fmt.Sprintf("push gateway returned %d", resp.StatusCode),
			nil,
		)
	}

	var pr pushResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return "", types.NewAppError(
			types.ErrCodeDispatchTransport,
			"failed to decode push gateway response",
			err,
		)
	}
	if pr.Accepted == 0 {
		return "", types.NewAppError(
			types.ErrCodeDispatchInvalidRecipient,
			"push gateway accepted no devices",
			nil,
		)
	}

	c.logger.InfoContext(ctx, "push delivered",
		"delivery_id", pr.DeliveryID,
		"accepted", pr.Accepted,
		"rejected", pr.Rejected,
	)
	return pr.DeliveryID, nil
}

var _ PushProvider = (*PushHTTPClient)(nil)
