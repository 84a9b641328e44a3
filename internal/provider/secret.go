package provider

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/containifyci/assertion-login/internal/secretstore"
	"github.com/containifyci/assertion-login/pkg/model"
)

// Secret issues one-time tokens and publishes them to Secret Manager where
// the login endpoint can check them.
type Secret struct {
	store       *secretstore.Store
	serviceName string
	email       string
	logger      *slog.Logger

	now      func() time.Time
	clientIP func() (string, error)
}

func NewSecret(store *secretstore.Store, serviceName, email string, logger *slog.Logger) *Secret {
	if logger == nil {
		logger = slog.Default()
	}
	return &Secret{
		store:       store,
		serviceName: serviceName,
		email:       email,
		logger:      logger,
		now:         time.Now,
		clientIP:    getClientIP,
	}
}

func (p *Secret) RequestAssertion(ctx context.Context) (model.Assertion, error) {
	token, err := p.Issue()
	if err != nil {
		return "", err
	}
	if err := p.store.Save(ctx, token); err != nil {
		return "", fmt.Errorf("failed to save token to Secret Manager: %w", err)
	}
	p.logger.Info("login token issued", "service", p.serviceName)
	return model.Assertion(token), nil
}

// Issue builds a fresh encoded token without publishing it.
func (p *Secret) Issue() (string, error) {
	if p.serviceName == "" {
		return "", fmt.Errorf("service name is required")
	}

	clientIP, err := p.clientIP()
	if err != nil {
		return "", fmt.Errorf("failed to retrieve client IP: %w", err)
	}

	metadata := model.TokenMetadata{
		ServiceName: p.serviceName,
		Email:       p.email,
		ClientIP:    clientIP,
		Nonce:       p.now().UnixNano(),
	}
	metadata.RandomValue, err = generateRandomValue(16)
	if err != nil {
		return "", err
	}
	return model.EncodeToken(metadata)
}

// getClientIP returns the first non-loopback IPv4 address of this host.
func getClientIP() (string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", err
	}
	for _, addr := range addrs {
		if ipNet, ok := addr.(*net.IPNet); ok && !ipNet.IP.IsLoopback() {
			if ipNet.IP.To4() != nil {
				return ipNet.IP.String(), nil
			}
		}
	}
	return "", fmt.Errorf("could not determine client IP")
}

func generateRandomValue(length int) (string, error) {
	bytes := make([]byte, length)
	_, err := rand.Read(bytes)
	if err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}
