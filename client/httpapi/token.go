package httpapi

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

// TokenProvider supplies bearer tokens to the Client.
// Refresh is called once when the API rejects the current token.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
	Refresh(ctx context.Context) (string, error)
}

// StaticTokenProvider always returns the same token.
type StaticTokenProvider string

func (p StaticTokenProvider) Token(context.Context) (string, error) {
	return string(p), nil
}

func (p StaticTokenProvider) Refresh(context.Context) (string, error) {
	return string(p), nil
}

// OAuth2TokenProvider hands out access tokens of an oauth2 session and refreshes them with
// its refresh token.
type OAuth2TokenProvider struct {
	conf *oauth2.Config

	mu    sync.Mutex
	token *oauth2.Token
}

func NewOAuth2TokenProvider(conf *oauth2.Config, token *oauth2.Token) *OAuth2TokenProvider {
	return &OAuth2TokenProvider{conf: conf, token: token}
}

// Token returns the current access token, refreshing it first if it has expired.
func (p *OAuth2TokenProvider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tok, err := p.conf.TokenSource(ctx, p.token).Token()
	if err != nil {
		return "", errors.Wrap(err, "getting oauth2 token")
	}
	p.token = tok
	return tok.AccessToken, nil
}

// Refresh exchanges the refresh token for a new access token, even if the current one
// has not expired yet.
func (p *OAuth2TokenProvider) Refresh(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token == nil || p.token.RefreshToken == "" {
		return "", errors.New("no refresh token")
	}
	tok, err := p.conf.TokenSource(ctx, &oauth2.Token{RefreshToken: p.token.RefreshToken}).Token()
	if err != nil {
		return "", errors.Wrap(err, "refreshing oauth2 token")
	}
	p.token = tok
	return tok.AccessToken, nil
}
