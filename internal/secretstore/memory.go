package secretstore

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// MemoryClient is an in-process Client used by tests and local runs.
type MemoryClient struct {
	mu       sync.Mutex
	secrets  map[string]*secretmanagerpb.Secret
	versions map[string][]*memoryVersion

	// Err, when set, is returned by every call.
	Err error
}

type memoryVersion struct {
	name      string
	data      []byte
	destroyed bool
}

func NewMemoryClient() *MemoryClient {
	return &MemoryClient{
		secrets:  map[string]*secretmanagerpb.Secret{},
		versions: map[string][]*memoryVersion{},
	}
}

func (m *MemoryClient) GetSecret(_ context.Context, req *secretmanagerpb.GetSecretRequest) (*secretmanagerpb.Secret, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	s, ok := m.secrets[req.GetName()]
	if !ok {
		return nil, status.Errorf(codes.NotFound, "secret %s not found", req.GetName())
	}
	return s, nil
}

func (m *MemoryClient) CreateSecret(_ context.Context, req *secretmanagerpb.CreateSecretRequest) (*secretmanagerpb.Secret, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	name := fmt.Sprintf("%s/secrets/%s", req.GetParent(), req.GetSecretId())
	if _, ok := m.secrets[name]; ok {
		return nil, status.Errorf(codes.AlreadyExists, "secret %s already exists", name)
	}
	s := req.GetSecret()
	if s == nil {
		s = &secretmanagerpb.Secret{}
	}
	s.Name = name
	m.secrets[name] = s
	return s, nil
}

func (m *MemoryClient) AddSecretVersion(_ context.Context, req *secretmanagerpb.AddSecretVersionRequest) (*secretmanagerpb.SecretVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	if _, ok := m.secrets[req.GetParent()]; !ok {
		return nil, status.Errorf(codes.NotFound, "secret %s not found", req.GetParent())
	}
	v := &memoryVersion{
		name: fmt.Sprintf("%s/versions/%d", req.GetParent(), len(m.versions[req.GetParent()])+1),
		data: req.GetPayload().GetData(),
	}
	m.versions[req.GetParent()] = append(m.versions[req.GetParent()], v)
	return &secretmanagerpb.SecretVersion{Name: v.name, State: secretmanagerpb.SecretVersion_ENABLED}, nil
}

func (m *MemoryClient) AccessSecretVersion(_ context.Context, req *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	parent, ok := strings.CutSuffix(req.GetName(), "/versions/latest")
	if !ok {
		return nil, status.Errorf(codes.InvalidArgument, "only latest versions are supported, got %s", req.GetName())
	}
	if _, ok := m.secrets[parent]; !ok {
		return nil, status.Errorf(codes.NotFound, "secret %s not found", parent)
	}
	versions := m.versions[parent]
	for i := len(versions) - 1; i >= 0; i-- {
		if !versions[i].destroyed {
			return &secretmanagerpb.AccessSecretVersionResponse{
				Name:    versions[i].name,
				Payload: &secretmanagerpb.SecretPayload{Data: versions[i].data},
			}, nil
		}
	}
	return nil, status.Errorf(codes.FailedPrecondition, "no enabled version of %s", parent)
}

func (m *MemoryClient) ListSecretVersions(_ context.Context, req *secretmanagerpb.ListSecretVersionsRequest) VersionIterator {
	m.mu.Lock()
	defer m.mu.Unlock()
	it := &memoryIterator{err: m.Err}
	for _, v := range m.versions[req.GetParent()] {
		if !v.destroyed {
			it.items = append(it.items, &secretmanagerpb.SecretVersion{
				Name:  v.name,
				State: secretmanagerpb.SecretVersion_ENABLED,
			})
		}
	}
	return it
}

func (m *MemoryClient) DestroySecretVersion(_ context.Context, req *secretmanagerpb.DestroySecretVersionRequest) (*secretmanagerpb.SecretVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	for _, versions := range m.versions {
		for _, v := range versions {
			if v.name == req.GetName() {
				v.destroyed = true
				return &secretmanagerpb.SecretVersion{Name: v.name, State: secretmanagerpb.SecretVersion_DESTROYED}, nil
			}
		}
	}
	return nil, status.Errorf(codes.NotFound, "version %s not found", req.GetName())
}

func (m *MemoryClient) Close() error { return nil }

type memoryIterator struct {
	items []*secretmanagerpb.SecretVersion
	err   error
}

func (it *memoryIterator) Next() (*secretmanagerpb.SecretVersion, error) {
	if it.err != nil {
		return nil, it.err
	}
	if len(it.items) == 0 {
		return nil, iterator.Done
	}
	v := it.items[0]
	it.items = it.items[1:]
	return v, nil
}
