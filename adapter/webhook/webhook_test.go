package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pithecene-io/netbackup/adapter"
	"github.com/pithecene-io/netbackup/iox"
)

func testEvent() *adapter.FileCommittedEvent {
	return adapter.NewFileCommittedEvent("store", "report_2024.pdf", 2048, "c0ffee", time.Date(2026, 2, 7, 12, 0, 0, 0, time.UTC))
}

func TestPublish_PostsJSON(t *testing.T) {
	var received adapter.FileCommittedEvent
	var userAgent string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected application/json, got %s", ct)
		}
		userAgent = r.Header.Get("User-Agent")
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &received); err != nil {
			t.Errorf("unmarshal: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	a, err := New(Config{URL: ts.URL})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer iox.DiscardClose(a)

	if err := a.Publish(t.Context(), testEvent()); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if received.Filename != "report_2024.pdf" || received.Op != "store" || received.Size != 2048 {
		t.Errorf("received = %+v", received)
	}
	if received.EventType != adapter.EventTypeFileCommitted {
		t.Errorf("event_type = %q", received.EventType)
	}
	if !strings.HasPrefix(userAgent, "netbackup/") {
		t.Errorf("User-Agent = %q", userAgent)
	}
}

func TestPublish_CustomHeaders(t *testing.T) {
	var authHeader string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	a, err := New(Config{
		URL:     ts.URL,
		Headers: map[string]string{"Authorization": "Bearer hook-token"},
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer iox.DiscardClose(a)

	if err := a.Publish(t.Context(), testEvent()); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if authHeader != "Bearer hook-token" {
		t.Errorf("Authorization = %q", authHeader)
	}
}

func TestPublish_StatusHandling(t *testing.T) {
	tests := []struct {
		name         string
		codes        []int // response per attempt; last repeats
		retries      int
		wantErr      bool
		wantAttempts int32
	}{
		{"ok", []int{200}, 3, false, 1},
		{"accepted", []int{202}, 3, false, 1},
		{"recovers after 5xx", []int{500, 503, 200}, 3, false, 3},
		{"5xx exhausts", []int{502}, 2, true, 3},
		{"4xx stops", []int{403}, 3, true, 1},
		{"404 stops", []int{404}, 3, true, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var attempts atomic.Int32
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				n := int(attempts.Add(1))
				w.WriteHeader(tt.codes[min(n, len(tt.codes))-1])
			}))
			defer ts.Close()

			a, err := New(Config{URL: ts.URL, Retries: tt.retries, Timeout: 5 * time.Second})
			if err != nil {
				t.Fatalf("new: %v", err)
			}
			defer iox.DiscardClose(a)

			err = a.Publish(t.Context(), testEvent())
			if (err != nil) != tt.wantErr {
				t.Fatalf("Publish() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got := attempts.Load(); got != tt.wantAttempts {
				t.Errorf("attempts = %d, want %d", got, tt.wantAttempts)
			}
			if err != nil {
				var statusErr *StatusError
				if !errors.As(err, &statusErr) {
					t.Errorf("expected StatusError in chain, got %v", err)
				}
			}
		})
	}
}

func TestPublish_ContextDeadline(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()
	defer close(release)

	a, err := New(Config{URL: ts.URL, Timeout: 10 * time.Second})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer iox.DiscardClose(a)

	ctx, cancel := context.WithTimeout(t.Context(), 100*time.Millisecond)
	defer cancel()

	if err := a.Publish(ctx, testEvent()); err == nil {
		t.Fatal("expected error on expired context")
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("expected error for empty URL")
	}
	if _, err := New(Config{URL: "http://example.com", Retries: -1}); err == nil {
		t.Error("expected error for negative retries")
	}

	a, err := New(Config{URL: "http://example.com"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if a.config.Timeout != DefaultTimeout {
		t.Errorf("timeout = %v, want %v", a.config.Timeout, DefaultTimeout)
	}
}
