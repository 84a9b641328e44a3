package secretstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestSaveCreatesSecretOnce(t *testing.T) {
	ctx := context.Background()
	client := NewMemoryClient()
	store := New(client, "proj", nil)
	store.now = func() time.Time { return time.Unix(1000, 0) }

	require.NoError(t, store.Save(ctx, "first"))
	require.NoError(t, store.Save(ctx, "second"))

	created := client.secrets["projects/proj/secrets/"+TokenSecretName]
	require.NotNil(t, created)
	assert.Equal(t, int64(1000+15*60), created.GetExpireTime().GetSeconds())
	assert.NotNil(t, created.GetReplication().GetAutomatic())

	latest, err := store.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second", latest)
}

func TestConsumeDestroysAllVersions(t *testing.T) {
	ctx := context.Background()
	store := New(NewMemoryClient(), "proj", nil)

	require.NoError(t, store.Save(ctx, "one"))
	require.NoError(t, store.Save(ctx, "two"))
	require.NoError(t, store.Consume(ctx))

	_, err := store.Latest(ctx)
	assert.ErrorIs(t, err, ErrNoToken)

	require.NoError(t, store.Consume(ctx))
}

func TestStoreErrors(t *testing.T) {
	ctx := context.Background()
	client := NewMemoryClient()
	client.Err = errors.New("permission denied")
	store := New(client, "proj", nil)

	assert.ErrorContains(t, store.Save(ctx, "t"), "failed to create secret")
	assert.ErrorContains(t, store.Consume(ctx), "error listing token versions")

	_, err := store.Latest(ctx)
	assert.ErrorContains(t, err, "permission denied")
	assert.NotErrorIs(t, err, ErrNoToken)
}

func TestLatestWithoutSecretIsNoToken(t *testing.T) {
	_, err := New(NewMemoryClient(), "proj", nil).Latest(context.Background())
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestLatestOtherErrorsAreNotNoToken(t *testing.T) {
	client := NewMemoryClient()
	client.Err = status.Error(codes.Unavailable, "backend down")

	_, err := New(client, "proj", nil).Latest(context.Background())
	assert.NotErrorIs(t, err, ErrNoToken)
	assert.ErrorContains(t, err, "error accessing token secret")
}

func TestLatestTrimsPayload(t *testing.T) {
	ctx := context.Background()
	store := New(NewMemoryClient(), "proj", nil)
	require.NoError(t, store.Save(ctx, "token\n"))

	latest, err := store.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "token", latest)
}
