// Package verify checks identity assertions presented to the login endpoint.
package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/api/idtoken"

	"github.com/containifyci/assertion-login/internal/secretstore"
	"github.com/containifyci/assertion-login/pkg/model"
)

const (
	KindIDToken = "idtoken"
	KindSecret  = "secret"
)

// ErrInvalidAssertion marks assertions that were checked and rejected. Any
// other error means the check itself could not run.
var ErrInvalidAssertion = errors.New("invalid assertion")

type Verifier interface {
	Verify(ctx context.Context, assertion model.Assertion) (*model.User, error)
}

type IDToken struct {
	audience string
	issuer   string
	validate func(ctx context.Context, token, audience string) (*idtoken.Payload, error)
}

func NewIDToken(audience, issuer string) *IDToken {
	return &IDToken{
		audience: audience,
		issuer:   issuer,
		validate: idtoken.Validate,
	}
}

func (v *IDToken) Verify(ctx context.Context, assertion model.Assertion) (*model.User, error) {
	payload, err := v.validate(ctx, assertion.String(), v.audience)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAssertion, err)
	}

	email, _ := payload.Claims["email"].(string)
	if email == "" {
		return nil, fmt.Errorf("%w: token has no email claim", ErrInvalidAssertion)
	}
	if verified, ok := payload.Claims["email_verified"].(bool); ok && !verified {
		return nil, fmt.Errorf("%w: email %s is not verified", ErrInvalidAssertion, email)
	}

	user := model.NewUser(email, v.issuer, time.Unix(payload.Expires, 0))
	return &user, nil
}

type Secret struct {
	store  *secretstore.Store
	issuer string
	logger *slog.Logger
}

func NewSecret(store *secretstore.Store, issuer string, logger *slog.Logger) *Secret {
	if logger == nil {
		logger = slog.Default()
	}
	return &Secret{store: store, issuer: issuer, logger: logger}
}

func (v *Secret) Verify(ctx context.Context, assertion model.Assertion) (*model.User, error) {
	latest, err := v.store.Latest(ctx)
	if errors.Is(err, secretstore.ErrNoToken) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAssertion, err)
	}
	if err != nil {
		return nil, err
	}
	if latest != assertion.String() {
		return nil, fmt.Errorf("%w: token mismatch", ErrInvalidAssertion)
	}

	metadata, err := model.ParseToken(latest)
	if err != nil {
		return nil, fmt.Errorf("%w: error parsing token metadata: %v", ErrInvalidAssertion, err)
	}
	if metadata.ServiceName == "" {
		return nil, fmt.Errorf("%w: service name not found in token metadata", ErrInvalidAssertion)
	}

	if err := v.store.Consume(ctx); err != nil {
		v.logger.Warn("failed to consume login token", "error", err)
	}

	email := metadata.Email
	if email == "" {
		email = fmt.Sprintf("%s@%s", metadata.ServiceName, v.issuer)
	}
	issued := time.Unix(0, metadata.Nonce)
	user := model.NewUser(email, v.issuer, issued.Add(secretstore.TokenTTL))
	return &user, nil
}
