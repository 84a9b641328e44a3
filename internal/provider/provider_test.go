package provider

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/containifyci/assertion-login/internal/secretstore"
	"github.com/containifyci/assertion-login/pkg/model"
)

func TestStatic(t *testing.T) {
	a, err := Static("abc123").RequestAssertion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.Assertion("abc123"), a)

	a, err = Static("").RequestAssertion(context.Background())
	require.NoError(t, err)
	assert.False(t, a.Present())
}

func TestNewSelectsProvider(t *testing.T) {
	ctx := context.Background()

	r, err := New(ctx, Options{Kind: KindStatic, Value: "v"})
	require.NoError(t, err)
	assert.Equal(t, Static("v"), r)

	store := secretstore.New(secretstore.NewMemoryClient(), "proj", nil)
	r, err = New(ctx, Options{Kind: KindSecret, Store: store, ServiceName: "svc"})
	require.NoError(t, err)
	assert.IsType(t, &Secret{}, r)

	_, err = New(ctx, Options{Kind: KindSecret})
	assert.ErrorContains(t, err, "requires a secret store")

	_, err = New(ctx, Options{Kind: KindIDToken})
	assert.ErrorContains(t, err, "requires an audience")

	_, err = New(ctx, Options{Kind: "persona"})
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func newTestSecret(store *secretstore.Store) *Secret {
	p := NewSecret(store, "billing", "dev@example.com", slog.Default())
	p.now = func() time.Time { return time.Unix(0, 42) }
	p.clientIP = func() (string, error) { return "10.0.0.4", nil }
	return p
}

func TestSecretPublishesToken(t *testing.T) {
	ctx := context.Background()
	store := secretstore.New(secretstore.NewMemoryClient(), "proj", nil)
	p := newTestSecret(store)

	a, err := p.RequestAssertion(ctx)
	require.NoError(t, err)
	require.True(t, a.Present())

	latest, err := store.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, a.String(), latest)

	metadata, err := model.ParseToken(latest)
	require.NoError(t, err)
	assert.Equal(t, "billing", metadata.ServiceName)
	assert.Equal(t, "dev@example.com", metadata.Email)
	assert.Equal(t, "10.0.0.4", metadata.ClientIP)
	assert.Equal(t, int64(42), metadata.Nonce)
	assert.Len(t, metadata.RandomValue, 22)
}

func TestSecretTokensAreUnique(t *testing.T) {
	p := newTestSecret(nil)
	first, err := p.Issue()
	require.NoError(t, err)
	second, err := p.Issue()
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestSecretErrors(t *testing.T) {
	client := secretstore.NewMemoryClient()
	client.Err = errors.New("unavailable")
	p := newTestSecret(secretstore.New(client, "proj", nil))

	_, err := p.RequestAssertion(context.Background())
	assert.ErrorContains(t, err, "failed to save token to Secret Manager")

	p.clientIP = func() (string, error) { return "", errors.New("no interfaces") }
	_, err = p.Issue()
	assert.ErrorContains(t, err, "failed to retrieve client IP")

	p.serviceName = ""
	_, err = p.Issue()
	assert.ErrorContains(t, err, "service name is required")
}

func TestGetClientIP(t *testing.T) {
	ip, err := getClientIP()
	if err != nil {
		assert.EqualError(t, err, "could not determine client IP")
		return
	}
	parsed := net.ParseIP(ip)
	require.NotNil(t, parsed)
	assert.NotNil(t, parsed.To4())
	assert.False(t, parsed.IsLoopback())
}
