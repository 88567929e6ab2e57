package services

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/desertthunder/trackmatch/internal/shared"
	"golang.org/x/oauth2"
)

// TokenTransport adds a bearer token from Source to each request under Header.
//
// Navidrome expects its JWT in X-ND-Authorization instead of Authorization, which
// [oauth2.Transport] cannot be told to use.
type TokenTransport struct {
	Source oauth2.TokenSource
	Header string
	Base   http.RoundTripper
}

// RoundTrip implements [http.RoundTripper]. The caller's request is never modified.
func (t *TokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Source == nil {
		return nil, fmt.Errorf("%w: no token source", shared.ErrNotAuthenticated)
	}

	token, err := t.Source.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrNotAuthenticated, err)
	}

	header := t.Header
	if header == "" {
		header = "Authorization"
	}

	r := req.Clone(req.Context())
	r.Header.Set(header, token.Type()+" "+token.AccessToken)
	return t.base().RoundTrip(r)
}

func (t *TokenTransport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

// NewHTTPClient builds the catalog HTTP client from config.
//
// A static token is wrapped in [oauth2.StaticTokenSource]. With the standard Authorization
// header the stock [oauth2.Transport] is used; any other header goes through [TokenTransport].
// Without a token requests are sent unauthenticated.
func NewHTTPClient(cfg shared.CatalogConfig, base http.RoundTripper) *http.Client {
	client := &http.Client{Timeout: cfg.Timeout(), Transport: base}
	if cfg.Token == "" {
		return client
	}

	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token, TokenType: "Bearer"})
	if cfg.AuthHeader == "" || strings.EqualFold(cfg.AuthHeader, "Authorization") {
		client.Transport = &oauth2.Transport{Source: src, Base: base}
		return client
	}

	client.Transport = &TokenTransport{Source: src, Header: cfg.AuthHeader, Base: base}
	return client
}
