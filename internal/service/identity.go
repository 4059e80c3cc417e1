package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"interviewprep/internal/config"
)

// ErrInvalidToken is returned when the identity provider rejects a token.
var ErrInvalidToken = errors.New("invalid token")

// Identity is the verified subject behind a bearer token.
type Identity struct {
	SubjectID string                 `json:"subjectId"`
	Claims    map[string]interface{} `json:"claims"`
}

// IdentityVerifier resolves a bearer token to an identity. The core only
// needs the subject id for session ownership.
type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

// IdentityClient verifies tokens against the hosted identity provider.
type IdentityClient struct {
	client *http.Client
	url    string
	logger *zap.Logger
}

func NewIdentityClient(cfg config.IdentityConfig, logger *zap.Logger) *IdentityClient {
	return &IdentityClient{
		client: &http.Client{Timeout: cfg.Timeout},
		url:    cfg.URL,
		logger: logger,
	}
}

func (c *IdentityClient) Verify(ctx context.Context, token string) (*Identity, error) {
	payload, err := json.Marshal(map[string]string{"token": token})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send HTTP request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, ErrInvalidToken
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("identity provider returned non-200 status: %d, body: %s", resp.StatusCode, string(body))
	}

	var identity Identity
	if err := json.Unmarshal(body, &identity); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response JSON: %w", err)
	}
	if identity.SubjectID == "" {
		return nil, ErrInvalidToken
	}

	return &identity, nil
}
