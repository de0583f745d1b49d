package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pithecene-io/lifi/adapter"
)

func testEvent() *adapter.TransferCompletedEvent {
	return &adapter.TransferCompletedEvent{
		ContractVersion: adapter.ContractVersion,
		EventType:       adapter.EventTypeTransferCompleted,
		ReceiverID:      "rx-1",
		Filename:        "foo.txt",
		TotalChunks:     3,
		Bytes:           9,
		Location:        "received/foo.txt",
		Timestamp:       "2026-02-07T12:00:00Z",
	}
}

func newAdapter(t *testing.T, cfg Config) *Adapter {
	t.Helper()
	if cfg.Backoff == 0 {
		cfg.Backoff = time.Millisecond
	}
	a, err := New(cfg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestPublish_Success(t *testing.T) {
	var received adapter.TransferCompletedEvent
	var eventHeader, authHeader string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected application/json, got %s", ct)
		}
		eventHeader = r.Header.Get("X-Lifi-Event")
		authHeader = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &received); err != nil {
			t.Errorf("unmarshal: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	a := newAdapter(t, Config{
		URL:     ts.URL,
		Headers: map[string]string{"Authorization": "Bearer test-token"},
	})
	if err := a.Publish(t.Context(), testEvent()); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if received.Filename != "foo.txt" || received.Bytes != 9 || received.TotalChunks != 3 {
		t.Errorf("unexpected payload %+v", received)
	}
	if received.EventType != "transfer_completed" {
		t.Errorf("expected transfer_completed, got %s", received.EventType)
	}
	if eventHeader != "transfer_completed" {
		t.Errorf("X-Lifi-Event = %q", eventHeader)
	}
	if authHeader != "Bearer test-token" {
		t.Errorf("expected Bearer test-token, got %s", authHeader)
	}
}

func TestPublish_StatusHandling(t *testing.T) {
	tests := []struct {
		name         string
		failures     int32
		failStatus   int
		retries      int
		wantAttempts int32
		wantErr      bool
	}{
		{name: "recovers from 5xx", failures: 2, failStatus: http.StatusInternalServerError, retries: 3, wantAttempts: 3},
		{name: "exhausts retries", failures: 100, failStatus: http.StatusBadGateway, retries: 2, wantAttempts: 3, wantErr: true},
		{name: "4xx is not retried", failures: 100, failStatus: http.StatusBadRequest, retries: 3, wantAttempts: 1, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var attempts atomic.Int32
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				if attempts.Add(1) <= tt.failures {
					w.WriteHeader(tt.failStatus)
					return
				}
				w.WriteHeader(http.StatusOK)
			}))
			defer ts.Close()

			a := newAdapter(t, Config{URL: ts.URL, Retries: tt.retries})
			err := a.Publish(t.Context(), testEvent())
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got := attempts.Load(); got != tt.wantAttempts {
				t.Errorf("attempts = %d, want %d", got, tt.wantAttempts)
			}
		})
	}
}

func TestPublish_ContextCanceled(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	a := newAdapter(t, Config{URL: ts.URL, Retries: 5, Backoff: time.Hour})
	ctx, cancel := context.WithTimeout(t.Context(), 100*time.Millisecond)
	defer cancel()

	if err := a.Publish(ctx, testEvent()); err == nil {
		t.Fatal("expected error on canceled context")
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("expected error for empty URL")
	}
	if _, err := New(Config{URL: "http://localhost", Retries: -1}); err == nil {
		t.Error("expected error for negative retries")
	}

	a, err := New(Config{URL: "http://localhost"})
	if err != nil {
		t.Fatal(err)
	}
	if a.config.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", a.config.Timeout, DefaultTimeout)
	}
	if a.config.Backoff != adapter.DefaultBackoff {
		t.Errorf("Backoff = %v, want %v", a.config.Backoff, adapter.DefaultBackoff)
	}
}
