// Package client posts identity assertions to the login endpoint.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/containifyci/assertion-login/pkg/model"
)

const (
	LoginPath      = "/login/login"
	DefaultTimeout = 10 * time.Second
)

var ErrUnexpectedStatus = errors.New("unexpected login response status")

type Forwarder struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

type Option func(*Forwarder)

func WithHTTPClient(c *http.Client) Option { return func(f *Forwarder) { f.client = c } }

func WithLogger(l *slog.Logger) Option { return func(f *Forwarder) { f.logger = l } }

func NewForwarder(host string, timeout time.Duration, opts ...Option) *Forwarder {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	f := &Forwarder{
		url:    strings.TrimSuffix(host, "/") + LoginPath,
		client: &http.Client{Timeout: timeout},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Forward returns a nil user when the endpoint answers with a null body.
func (f *Forwarder) Forward(ctx context.Context, assertion model.Assertion) (*model.User, error) {
	payload, err := json.Marshal(model.LoginRequest{Assertion: assertion})
	if err != nil {
		return nil, fmt.Errorf("error encoding login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error making request: %w", err)
	}
	defer func() {
		err := resp.Body.Close()
		if err != nil {
			f.logger.Warn("error closing response body", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}

	var user *model.User
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("error parsing JSON: %w", err)
	}
	return user, nil
}
