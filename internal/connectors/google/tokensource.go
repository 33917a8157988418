package google

import (
	"context"
	"errors"

	"golang.org/x/oauth2"

	"github.com/custodia-labs/gcpkit/internal/core/ports/driven"
)

// TokenSourceAdapter adapts a driven.TokenProvider to oauth2.TokenSource.
// This allows Google API clients to use externally managed access tokens.
type TokenSourceAdapter struct {
	provider driven.TokenProvider
	ctx      context.Context
}

// NewTokenSource creates an oauth2.TokenSource from a TokenProvider.
// The returned TokenSource can be used with option.WithTokenSource() when
// creating Google API services.
func NewTokenSource(ctx context.Context, provider driven.TokenProvider) oauth2.TokenSource {
	return oauth2.ReuseTokenSource(nil, &TokenSourceAdapter{
		provider: provider,
		ctx:      ctx,
	})
}

// Token implements oauth2.TokenSource interface.
// Called by Google API clients when they need an access token.
func (t *TokenSourceAdapter) Token() (*oauth2.Token, error) {
	accessToken, err := t.provider.GetToken(t.ctx)
	if err != nil {
		return nil, err
	}

	return &oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}, nil
}

// StaticTokenProvider serves a fixed access token, e.g. one printed by
// `gcloud auth print-access-token`.
type StaticTokenProvider struct {
	AccessToken string
}

var _ driven.TokenProvider = StaticTokenProvider{}

// GetToken returns the configured token.
func (p StaticTokenProvider) GetToken(context.Context) (string, error) {
	if p.AccessToken == "" {
		return "", errors.New("google: empty access token")
	}
	return p.AccessToken, nil
}
