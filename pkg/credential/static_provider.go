package credential

import (
	"context"

	"golang.org/x/oauth2"
)

// StaticProvider serves a single configured access token for every user.
// Intended for local runs; deployments front this service with the auth
// collaborator that resolves per-user tokens.
type StaticProvider struct {
	accessToken string
}

func NewStaticProvider(accessToken string) *StaticProvider {
	return &StaticProvider{accessToken: accessToken}
}

func (p *StaticProvider) Resolve(_ context.Context) (oauth2.TokenSource, error) {
	if p.accessToken == "" {
		return nil, ErrNoCredential
	}
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: p.accessToken}), nil
}
