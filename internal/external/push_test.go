package external

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"swellwatch/internal/types"
)

func newTestPushClient(serverURL string, server *httptest.Server) *PushHTTPClient {
	base := NewBaseClient(server.Client(), "push-test",
		RetryPolicy{MaxRetries: 0}, "test",
		WithSleepFunc(func(time.Duration) {}))
	return NewPushClientWithBase(base, PushClientConfig{
		BaseURL: serverURL,
		APIKey:  types.SecretString("push-key"),
	})
}

func TestPush_Success(t *testing.T) {
	var captured pushRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/push" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer push-key" {
			t.Errorf("authorization = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(pushResponse{DeliveryID: "del_123", Accepted: 2})
	}))
	defer server.Close()

	client := newTestPushClient(server.URL, server)

	ref, err := client.Push(context.Background(), SendPushInput{
		DeviceTokens: []string{"tok-a", "tok-b"},
		Title:        "Surf's up",
		Body:         "6 ft at 14s",
		TriggerID:    "trg_001",
	})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if ref != "del_123" {
		t.Errorf("ref = %q", ref)
	}
	if len(captured.Tokens) != 2 {
		t.Errorf("tokens = %v", captured.Tokens)
	}
	if captured.Metadata["trigger_id"] != "trg_001" {
		t.Errorf("metadata = %v", captured.Metadata)
	}
}

func TestPush_RejectedRecipient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	client := newTestPushClient(server.URL, server)

	_, err := client.Push(context.Background(), SendPushInput{
		DeviceTokens: []string{"stale-token"},
		Title:        "t", Body: "b",
	})
	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %v", err)
	}
	if appErr.Code != types.ErrCodeDispatchInvalidRecipient {
		t.Errorf("code = %s, want %s", appErr.Code, types.ErrCodeDispatchInvalidRecipient)
	}
}

func TestPush_ZeroAccepted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(pushResponse{DeliveryID: "del_123", Accepted: 0, Rejected: 1})
	}))
	defer server.Close()

	client := newTestPushClient(server.URL, server)

	_, err := client.Push(context.Background(), SendPushInput{
		DeviceTokens: []string{"stale-token"},
		Title:        "t", Body: "b",
	})
	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %v", err)
	}
	if appErr.Code != types.ErrCodeDispatchInvalidRecipient {
		t.Errorf("code = %s, want %s", appErr.Code, types.ErrCodeDispatchInvalidRecipient)
	}
}

func TestPush_GatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestPushClient(server.URL, server)

	_, err := client.Push(context.Background(), SendPushInput{
		DeviceTokens: []string{"tok"},
		Title:        "t", Body: "b",
	})
	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %v", err)
	}
	if appErr.Code != types.ErrCodeDispatchTransport {
		t.Errorf("code = %s, want %s", appErr.Code, types.ErrCodeDispatchTransport)
	}
}
