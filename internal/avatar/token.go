package avatar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/eliseochoa/monica/internal/reliability"
)

// maxErrorDetailBytes caps upstream error bodies so a misbehaving provider
// cannot leak arbitrarily large payloads into our responses and logs.
const maxErrorDetailBytes = 200

const tokenMaxAttempts = 3

// HeyGenTokenConfig configures the token provider.
type HeyGenTokenConfig struct {
	APIKey  string
	BaseURL string
	TTL     time.Duration
	Timeout time.Duration
}

// HeyGenTokenProvider issues short-lived session tokens from the HeyGen API.
type HeyGenTokenProvider struct {
	cfg    HeyGenTokenConfig
	client *http.Client
	logger *zap.Logger
}

func NewHeyGenTokenProvider(cfg HeyGenTokenConfig, logger *zap.Logger) *HeyGenTokenProvider {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.heygen.com"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = time.Hour
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HeyGenTokenProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// AcquireToken requests a fresh session token. Rejections with a retryable
// HTTP status are retried a bounded number of times; a missing secret or a
// malformed success payload fails immediately.
func (p *HeyGenTokenProvider) AcquireToken(ctx context.Context) (string, error) {
	if strings.TrimSpace(p.cfg.APIKey) == "" {
		return "", &AuthError{Kind: AuthMissingSecret, Detail: "HEYGEN_API_KEY is not set"}
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 2 * time.Second

	return backoff.Retry(ctx, func() (string, error) {
		token, err := p.requestToken(ctx)
		if err == nil {
			return token, nil
		}
		var authErr *AuthError
		if errors.As(err, &authErr) {
			if !authErr.Retryable() || !reliability.IsRetryableHTTPStatus(authErr.Status) {
				return "", backoff.Permanent(err)
			}
		}
		p.logger.Warn("session token request failed, retrying", zap.Error(err))
		return "", err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(tokenMaxAttempts))
}

func (p *HeyGenTokenProvider) requestToken(ctx context.Context) (string, error) {
	payload, err := json.Marshal(map[string]any{"expires_in": int(p.cfg.TTL.Seconds())})
	if err != nil {
		return "", fmt.Errorf("marshal token request: %w", err)
	}

	url := strings.TrimRight(p.cfg.BaseURL, "/") + "/v1/session_token.create"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", p.cfg.APIKey)

	res, err := p.client.Do(req)
	if err != nil {
		return "", &AuthError{Kind: AuthRemoteRejected, Detail: "token endpoint unreachable", Status: http.StatusBadGateway, wrapped: err}
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorDetailBytes))
		return "", &AuthError{
			Kind:   AuthRemoteRejected,
			Detail: fmt.Sprintf("status %d: %s", res.StatusCode, strings.TrimSpace(string(detail))),
			Status: res.StatusCode,
		}
	}

	var body struct {
		Data struct {
			SessionToken string `json:"session_token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return "", &AuthError{Kind: AuthMalformedResponse, Detail: "token response is not valid JSON", wrapped: err}
	}
	if strings.TrimSpace(body.Data.SessionToken) == "" {
		return "", &AuthError{Kind: AuthMalformedResponse, Detail: "token response missing data.session_token"}
	}
	return body.Data.SessionToken, nil
}
