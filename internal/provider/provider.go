// Package provider implements the identity assertion sources a login trigger
// can request from.
package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/containifyci/assertion-login/internal/secretstore"
	"github.com/containifyci/assertion-login/pkg/binder"
	"github.com/containifyci/assertion-login/pkg/model"
)

const (
	KindIDToken = "idtoken"
	KindSecret  = "secret"
	KindStatic  = "static"
)

var ErrUnknownProvider = errors.New("unknown assertion provider")

type Options struct {
	Kind string

	// Audience is the intended audience of Google ID tokens.
	Audience string

	ServiceName string
	Email       string
	Store       *secretstore.Store

	Value string

	Logger *slog.Logger
}

func New(ctx context.Context, opts Options) (binder.Requester, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	switch opts.Kind {
	case KindIDToken:
		return NewIDToken(ctx, opts.Audience)
	case KindSecret:
		if opts.Store == nil {
			return nil, fmt.Errorf("secret provider requires a secret store")
		}
		return NewSecret(opts.Store, opts.ServiceName, opts.Email, logger), nil
	case KindStatic:
		return Static(opts.Value), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, opts.Kind)
	}
}

// Static always hands out the same assertion. An empty value models a user
// who dismissed the identity prompt.
type Static model.Assertion

func (s Static) RequestAssertion(context.Context) (model.Assertion, error) {
	return model.Assertion(s), nil
}
