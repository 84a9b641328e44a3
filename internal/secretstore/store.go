// Package secretstore keeps one-time login tokens in Google Secret Manager.
package secretstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/golang/protobuf/ptypes/timestamp"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	TokenSecretName = "LOGIN_ASSERTION_TOKEN"
	TokenTTL        = 15 * time.Minute
)

// ErrNoToken means there is no live token: the secret expired, was never
// created, or every version was consumed.
var ErrNoToken = errors.New("no login token available")

type (
	// Client is the subset of the Secret Manager API the store needs.
	Client interface {
		GetSecret(ctx context.Context, req *secretmanagerpb.GetSecretRequest) (*secretmanagerpb.Secret, error)
		CreateSecret(ctx context.Context, req *secretmanagerpb.CreateSecretRequest) (*secretmanagerpb.Secret, error)
		AddSecretVersion(ctx context.Context, req *secretmanagerpb.AddSecretVersionRequest) (*secretmanagerpb.SecretVersion, error)
		AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error)
		ListSecretVersions(ctx context.Context, req *secretmanagerpb.ListSecretVersionsRequest) VersionIterator
		DestroySecretVersion(ctx context.Context, req *secretmanagerpb.DestroySecretVersionRequest) (*secretmanagerpb.SecretVersion, error)
		Close() error
	}

	// VersionIterator follows the google.golang.org/api/iterator protocol.
	VersionIterator interface {
		Next() (*secretmanagerpb.SecretVersion, error)
	}
)

type Store struct {
	client    Client
	projectID string
	secretID  string
	now       func() time.Time
	logger    *slog.Logger
}

func New(client Client, projectID string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		client:    client,
		projectID: projectID,
		secretID:  TokenSecretName,
		now:       time.Now,
		logger:    logger,
	}
}

// Dial connects to Secret Manager with application default credentials.
func Dial(ctx context.Context, projectID string, logger *slog.Logger) (*Store, error) {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Secret Manager client: %w", err)
	}
	return New(&gcpClient{c: client}, projectID, logger), nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) secretName() string {
	return fmt.Sprintf("projects/%s/secrets/%s", s.projectID, s.secretID)
}

// Save stores token as the newest version of the token secret, creating the
// secret on first use.
func (s *Store) Save(ctx context.Context, token string) error {
	secretName := s.secretName()
	_, err := s.client.GetSecret(ctx, &secretmanagerpb.GetSecretRequest{Name: secretName})
	if err != nil {
		s.logger.Debug("token secret not readable, creating it", "secret", secretName, "error", err)
		_, err = s.client.CreateSecret(ctx, &secretmanagerpb.CreateSecretRequest{
			Parent:   fmt.Sprintf("projects/%s", s.projectID),
			SecretId: s.secretID,
			Secret: &secretmanagerpb.Secret{
				Replication: &secretmanagerpb.Replication{
					Replication: &secretmanagerpb.Replication_Automatic_{
						Automatic: &secretmanagerpb.Replication_Automatic{},
					},
				},
				Expiration: &secretmanagerpb.Secret_ExpireTime{
					ExpireTime: &timestamp.Timestamp{
						Seconds: s.now().Add(TokenTTL).Unix(),
					},
				},
			},
		})
		if err != nil {
			return fmt.Errorf("failed to create secret: %w", err)
		}
	}

	_, err = s.client.AddSecretVersion(ctx, &secretmanagerpb.AddSecretVersionRequest{
		Parent: secretName,
		Payload: &secretmanagerpb.SecretPayload{
			Data: []byte(token),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to add secret version: %w", err)
	}
	return nil
}

func (s *Store) Latest(ctx context.Context) (string, error) {
	resp, err := s.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: s.secretName() + "/versions/latest",
	})
	if err != nil {
		switch status.Code(err) {
		case codes.NotFound, codes.FailedPrecondition:
			return "", fmt.Errorf("%w: %v", ErrNoToken, err)
		}
		return "", fmt.Errorf("error accessing token secret: %w", err)
	}
	return strings.TrimSpace(string(resp.GetPayload().GetData())), nil
}

// Consume destroys every enabled version so a token validates only once.
func (s *Store) Consume(ctx context.Context) error {
	it := s.client.ListSecretVersions(ctx, &secretmanagerpb.ListSecretVersionsRequest{
		Parent: s.secretName(),
		Filter: "state:ENABLED",
	})

	destroyed := 0
	for {
		version, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return fmt.Errorf("error listing token versions: %w", err)
		}
		if _, err := s.client.DestroySecretVersion(ctx, &secretmanagerpb.DestroySecretVersionRequest{
			Name: version.GetName(),
		}); err != nil {
			return fmt.Errorf("failed to destroy token version %s: %w", version.GetName(), err)
		}
		destroyed++
	}

	s.logger.Debug("token versions destroyed", "secret", s.secretName(), "count", destroyed)
	return nil
}

type gcpClient struct {
	c *secretmanager.Client
}

func (g *gcpClient) GetSecret(ctx context.Context, req *secretmanagerpb.GetSecretRequest) (*secretmanagerpb.Secret, error) {
	return g.c.GetSecret(ctx, req)
}

func (g *gcpClient) CreateSecret(ctx context.Context, req *secretmanagerpb.CreateSecretRequest) (*secretmanagerpb.Secret, error) {
	return g.c.CreateSecret(ctx, req)
}

func (g *gcpClient) AddSecretVersion(ctx context.Context, req *secretmanagerpb.AddSecretVersionRequest) (*secretmanagerpb.SecretVersion, error) {
	return g.c.AddSecretVersion(ctx, req)
}

func (g *gcpClient) AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	return g.c.AccessSecretVersion(ctx, req)
}

func (g *gcpClient) ListSecretVersions(ctx context.Context, req *secretmanagerpb.ListSecretVersionsRequest) VersionIterator {
	return g.c.ListSecretVersions(ctx, req)
}

func (g *gcpClient) DestroySecretVersion(ctx context.Context, req *secretmanagerpb.DestroySecretVersionRequest) (*secretmanagerpb.SecretVersion, error) {
	return g.c.DestroySecretVersion(ctx, req)
}

func (g *gcpClient) Close() error {
	return g.c.Close()
}
