package services

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/trackmatch/internal/models"
	"github.com/desertthunder/trackmatch/internal/shared"
	tu "github.com/desertthunder/trackmatch/internal/testing"
	"golang.org/x/oauth2"
)

type failingTokenSource struct{}

func (failingTokenSource) Token() (*oauth2.Token, error) { return nil, errors.New("expired") }

func TestTokenTransport(t *testing.T) {
	t.Run("sets the configured header", func(t *testing.T) {
		var got string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = r.Header.Get("X-ND-Authorization")
			if r.Header.Get("Authorization") != "" {
				t.Error("expected Authorization to be left unset")
			}
		}))
		defer server.Close()

		client := NewHTTPClient(shared.CatalogConfig{Token: "jwt", AuthHeader: "X-ND-Authorization", TimeoutSeconds: 5}, nil)
		if _, ok := client.Transport.(*TokenTransport); !ok {
			t.Fatalf("expected TokenTransport, got %T", client.Transport)
		}
		resp, err := client.Get(server.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		resp.Body.Close()

		if got != "Bearer jwt" {
			t.Errorf("expected 'Bearer jwt', got %q", got)
		}
	})

	t.Run("uses oauth2.Transport for Authorization", func(t *testing.T) {
		var got string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = r.Header.Get("Authorization")
		}))
		defer server.Close()

		client := NewHTTPClient(shared.CatalogConfig{Token: "abc", AuthHeader: "authorization"}, nil)
		if _, ok := client.Transport.(*oauth2.Transport); !ok {
			t.Fatalf("expected oauth2.Transport, got %T", client.Transport)
		}
		resp, err := client.Get(server.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		resp.Body.Close()

		if got != "Bearer abc" {
			t.Errorf("expected 'Bearer abc', got %q", got)
		}
	})

	t.Run("no token leaves requests unauthenticated", func(t *testing.T) {
		client := NewHTTPClient(shared.CatalogConfig{TimeoutSeconds: 3}, nil)
		if client.Transport != nil {
			t.Errorf("expected default transport, got %T", client.Transport)
		}
		if client.Timeout != 3*time.Second {
			t.Errorf("expected 3s timeout, got %v", client.Timeout)
		}
	})

	t.Run("does not modify the caller's request", func(t *testing.T) {
		base := tu.NewMockRoundTripper(&http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader("[]"))}, nil)
		tr := &TokenTransport{Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "t"}), Header: "X-Token", Base: base}

		req := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
		resp, err := tr.RoundTrip(req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		resp.Body.Close()
		if req.Header.Get("X-Token") != "" {
			t.Error("expected original request to be untouched")
		}
	})

	t.Run("token failures are authentication errors", func(t *testing.T) {
		tr := &TokenTransport{Source: failingTokenSource{}}
		_, err := tr.RoundTrip(httptest.NewRequest(http.MethodGet, "http://example.com", nil))
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}

		tr = &TokenTransport{}
		_, err = tr.RoundTrip(httptest.NewRequest(http.MethodGet, "http://example.com", nil))
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})
}

func TestRateLimitedCatalog(t *testing.T) {
	t.Run("delegates", func(t *testing.T) {
		inner := &tu.MockCatalog{Fallback: []models.CandidateTrack{{ID: "a"}}}
		rl := NewRateLimitedCatalog(inner, 0, 1)

		got, err := rl.Search(context.Background(), "q", 5)
		if err != nil || len(got) != 1 || inner.Calls() != 1 {
			t.Errorf("expected delegation, got %v %v calls=%d", got, err, inner.Calls())
		}
	})

	t.Run("spaces requests", func(t *testing.T) {
		var calls atomic.Int32
		inner := &tu.MockCatalog{Hook: func(context.Context, string) error { calls.Add(1); return nil }}
		rl := NewRateLimitedCatalog(inner, 20, 1)

		start := time.Now()
		for range 3 {
			if _, err := rl.Search(context.Background(), "q", 1); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}
		if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
			t.Errorf("expected at least ~100ms for 3 calls at 20/s, took %v", elapsed)
		}
		if calls.Load() != 3 {
			t.Errorf("expected 3 calls, got %d", calls.Load())
		}
	})

	t.Run("canceled wait is a rate limit error", func(t *testing.T) {
		inner := &tu.MockCatalog{}
		rl := NewRateLimitedCatalog(inner, 0.001, 1)
		ctx, cancel := context.WithCancel(context.Background())

		if _, err := rl.Search(ctx, "q", 1); err != nil {
			t.Fatalf("first call should use the burst: %v", err)
		}
		cancel()
		_, err := rl.Search(ctx, "q", 1)
		if !errors.Is(err, shared.ErrRateLimited) {
			t.Errorf("expected ErrRateLimited, got %v", err)
		}
		if inner.Calls() != 1 {
			t.Errorf("expected the second call to be blocked, got %d calls", inner.Calls())
		}
	})
}
