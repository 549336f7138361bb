//go:build !integration

package captcha

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestTurnstileVerifier(t *testing.T) {
	ctx := context.Background()

	t.Run("sends the form and reads success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := r.ParseForm(); err != nil {
				t.Fatal(err)
			}
			if r.PostForm.Get("secret") != "s3cret" || r.PostForm.Get("response") != "tok" || r.PostForm.Get("remoteip") != "1.2.3.4" {
				t.Errorf("unexpected form %v", r.PostForm)
			}
			_, _ = w.Write([]byte(`{"success":true}`))
		}))
		defer srv.Close()

		ok, err := NewTurnstileVerifier("s3cret", srv.URL, time.Second).Verify(ctx, "tok", "1.2.3.4")
		if err != nil || !ok {
			t.Fatalf("expected success, got %v %v", ok, err)
		}
	})

	t.Run("rejected token", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"success":false,"error-codes":["invalid-input-response"]}`))
		}))
		defer srv.Close()

		ok, err := NewTurnstileVerifier("s", srv.URL, time.Second).Verify(ctx, "bad", "")
		if err != nil || ok {
			t.Fatalf("expected rejection without error, got %v %v", ok, err)
		}
	})

	t.Run("timeout is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		defer srv.Close()

		if _, err := NewTurnstileVerifier("s", srv.URL, 20*time.Millisecond).Verify(ctx, "tok", ""); err == nil {
			t.Fatal("expected timeout error")
		}
	})

	t.Run("non-200 is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		if _, err := NewTurnstileVerifier("s", srv.URL, time.Second).Verify(ctx, "tok", ""); err == nil {
			t.Fatal("expected error")
		}
	})
}
