//go:build !integration

package email

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gifting-service/internal/domain/ports/adapter"
)

func TestResendSender_Send(t *testing.T) {
	ctx := context.Background()
	msg := adapter.EmailMessage{
		From:           "gifts@example.com",
		To:             "alice@example.com",
		Subject:        "You've received a $25.00 gift",
		Text:           "hi",
		HTML:           "<p>hi</p>",
		IdempotencyKey: "01HZX",
	}

	t.Run("posts the message and returns the provider id", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || r.URL.Path != "/emails" {
				t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
			}
			if got := r.Header.Get("Authorization"); got != "Bearer key-1" {
				t.Errorf("authorization header = %q", got)
			}
			if got := r.Header.Get("Idempotency-Key"); got != "01HZX" {
				t.Errorf("idempotency header = %q", got)
			}
			var body sendRequest
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("decode: %v", err)
			}
			if len(body.To) != 1 || body.To[0] != "alice@example.com" || body.Subject != msg.Subject {
				t.Errorf("unexpected body %+v", body)
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"re_123"}`))
		}))
		defer srv.Close()

		s := NewResendSender("key-1", srv.URL+"/", time.Second)
		res, err := s.Send(ctx, msg)
		if err != nil {
			t.Fatalf("Send: %v", err)
		}
		if res.MessageID != "re_123" {
			t.Errorf("message id = %q", res.MessageID)
		}
	})

	cases := []struct {
		status    int
		retryable bool
	}{
		{http.StatusBadRequest, false},
		{http.StatusUnprocessableEntity, false},
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
	}
	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(`{"message":"nope"}`))
			}))
			defer srv.Close()

			_, err := NewResendSender("k", srv.URL, time.Second).Send(ctx, msg)
			var se *SendError
			if !errors.As(err, &se) {
				t.Fatalf("expected *SendError, got %v", err)
			}
			if se.StatusCode != tc.status || se.Retryable() != tc.retryable {
				t.Errorf("status=%d retryable=%v, want %d %v", se.StatusCode, se.Retryable(), tc.status, tc.retryable)
			}
		})
	}

	t.Run("client timeout is retryable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		defer srv.Close()

		_, err := NewResendSender("k", srv.URL, 20*time.Millisecond).Send(ctx, msg)
		var se *SendError
		if !errors.As(err, &se) || !se.Retryable() {
			t.Fatalf("expected retryable SendError, got %v", err)
		}
	})
}

func TestNoopSender(t *testing.T) {
	s := NewNoopSender(true, nil)
	res, err := s.Send(context.Background(), adapter.EmailMessage{To: "a@example.com", IdempotencyKey: "k1"})
	if err != nil || res.MessageID != "noop-k1" {
		t.Fatalf("got %+v %v", res, err)
	}
}
