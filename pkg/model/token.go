package model

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

type TokenMetadata struct {
	ServiceName string `json:"serviceName"`
	Email       string `json:"email,omitempty"`
	ClientIP    string `json:"clientIP"`
	Nonce       int64  `json:"nonce"`       // Timestamp in nanoseconds
	RandomValue string `json:"randomValue"` // Random cryptographic value
}

func EncodeToken(metadata TokenMetadata) (string, error) {
	metadataBytes, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(metadataBytes), nil
}

func ParseToken(token string) (TokenMetadata, error) {
	var metadata TokenMetadata

	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return metadata, fmt.Errorf("failed to decode token: %w", err)
	}

	if err := json.Unmarshal(decoded, &metadata); err != nil {
		return metadata, fmt.Errorf("failed to parse metadata: %w", err)
	}

	return metadata, nil
}
