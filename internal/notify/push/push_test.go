package push

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSendEmergencyAlert_PostsPayload(t *testing.T) {
	t.Parallel()

	var got payload
	var gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := New(srv.URL, nil)
	if err := n.SendEmergencyAlert(context.Background(), "u-1", "glucose 3.2 below 3.9"); err != nil {
		t.Fatalf("SendEmergencyAlert = %v", err)
	}
	if gotContentType != "application/json" {
		t.Errorf("content type = %q", gotContentType)
	}
	if got.UserID != "u-1" || got.Kind != KindEmergency {
		t.Errorf("payload = %+v", got)
	}
	if got.Text != "glucose 3.2 below 3.9" {
		t.Errorf("text = %q", got.Text)
	}
	if _, err := time.Parse(time.RFC3339, got.SentAt); err != nil {
		t.Errorf("sent_at %q is not RFC3339: %v", got.SentAt, err)
	}
}

func TestSendPush_UsesMessageKind(t *testing.T) {
	t.Parallel()

	var got payload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	n := New(srv.URL, nil)
	if err := n.SendPush(context.Background(), "u-1", "Consider a small snack."); err != nil {
		t.Fatalf("SendPush = %v", err)
	}
	if got.Kind != KindMessage {
		t.Errorf("kind = %q, want %q", got.Kind, KindMessage)
	}
	if got.Text != "Consider a small snack." {
		t.Errorf("text = %q", got.Text)
	}
}

func TestSend_EmptyURLIsNoOp(t *testing.T) {
	t.Parallel()

	n := New("", nil)
	if err := n.SendPush(context.Background(), "u-1", "hello"); err != nil {
		t.Errorf("SendPush with empty webhook = %v, want nil", err)
	}
	if err := n.SendEmergencyAlert(context.Background(), "u-1", "reason"); err != nil {
		t.Errorf("SendEmergencyAlert with empty webhook = %v, want nil", err)
	}
}

func TestSend_WebhookFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "device token expired", http.StatusUnauthorized)
	}))
	defer srv.Close()

	err := New(srv.URL, nil).SendPush(context.Background(), "u-1", "hello")
	if err == nil {
		t.Fatal("SendPush accepted a 401")
	}
	if !strings.Contains(err.Error(), "401") || !strings.Contains(err.Error(), "device token expired") {
		t.Errorf("error = %v, want status and body", err)
	}
}

func TestSend_UnreachableWebhook(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // already closed: connection refused

	if err := New(srv.URL, nil).SendPush(context.Background(), "u-1", "hello"); err == nil {
		t.Fatal("SendPush succeeded against a closed listener")
	}
}
