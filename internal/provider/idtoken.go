package provider

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"google.golang.org/api/idtoken"

	"github.com/containifyci/assertion-login/pkg/model"
)

// IDToken requests Google-signed identity tokens from application default
// credentials or the metadata server.
type IDToken struct {
	source oauth2.TokenSource
}

func NewIDToken(ctx context.Context, audience string) (*IDToken, error) {
	if audience == "" {
		return nil, fmt.Errorf("idtoken provider requires an audience")
	}
	source, err := idtoken.NewTokenSource(ctx, audience)
	if err != nil {
		return nil, fmt.Errorf("failed to create id token source: %w", err)
	}
	return &IDToken{source: source}, nil
}

func (p *IDToken) RequestAssertion(context.Context) (model.Assertion, error) {
	tok, err := p.source.Token()
	if err != nil {
		return "", fmt.Errorf("failed to fetch id token: %w", err)
	}
	return model.Assertion(tok.AccessToken), nil
}
