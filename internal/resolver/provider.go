package resolver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"orderbot_backend/platform/config"
	"orderbot_backend/platform/logger"

	"github.com/google/uuid"
)

// assumedTokenLifetime is used when the exchange response carries no expiry.
// Provider tokens are observed to live about 30 minutes; assume less.
const assumedTokenLifetime = 25 * time.Minute

const extractSystemPrompt = "Разбери заказ на позиции. Верни только JSON-массив вида " +
	`[{"title":"...","qty":1}]. Без пояснений и лишнего текста.`

// ProviderClient performs structured extraction against one LLM provider.
// Tokens come from the shared TokenCache; on an authentication rejection the
// client invalidates the cached credential and retries exactly once.
type ProviderClient struct {
	cfg    config.ProviderConfig
	tokens *TokenCache
	http   *http.Client
	log    *logger.Logger
}

// NewProviderClient creates a provider-backed extraction source.
func NewProviderClient(cfg config.ProviderConfig, tokens *TokenCache, log *logger.Logger) *ProviderClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 20 * time.Second
	}

	return &ProviderClient{
		cfg:    cfg,
		tokens: tokens,
		http:   &http.Client{Timeout: timeout},
		log:    log,
	}
}

// Name returns the audit tag for lines resolved through this provider.
func (p *ProviderClient) Name() string {
	return "provider:" + p.cfg.Name
}

// Configured reports whether a secret is present. An unconfigured provider
// is never invoked; the check happens before any network call.
func (p *ProviderClient) Configured() bool {
	return p.cfg.Configured()
}

// Extract sends the order text to the provider and parses the returned JSON
// array into candidates.
func (p *ProviderClient) Extract(ctx context.Context, orderText string) ([]Candidate, error) {
	if !p.Configured() {
		return nil, fmt.Errorf("%w: %s not configured", ErrProviderUnavailable, p.cfg.Name)
	}

	token, err := p.tokens.Token(ctx, p.cfg.Name, p.exchange)
	if err != nil {
		return nil, err
	}

	body, status, err := p.complete(ctx, token, orderText)
	if err != nil {
		return nil, err
	}

	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		// One refresh, one retry. A second rejection is fatal for this
		// provider attempt.
		p.tokens.Invalidate(ctx, p.cfg.Name)
		token, err = p.tokens.Token(ctx, p.cfg.Name, p.exchange)
		if err != nil {
			return nil, err
		}
		body, status, err = p.complete(ctx, token, orderText)
		if err != nil {
			return nil, err
		}
		if status == http.StatusUnauthorized || status == http.StatusForbidden {
			return nil, fmt.Errorf("%w: %s", ErrProviderAuth, p.cfg.Name)
		}
	}

	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned %d", ErrProviderUnavailable, p.cfg.Name, status)
	}

	return parseCompletion(body)
}

// exchange trades the configured static secret for a short-lived bearer token.
func (p *ProviderClient) exchange(ctx context.Context) (Credential, error) {
	form := url.Values{}
	if p.cfg.Scope != "" {
		form.Set("scope", p.cfg.Scope)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.OAuthURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Credential{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Basic "+p.cfg.AuthKey)
	req.Header.Set("RqUID", uuid.NewString())

	resp, err := p.http.Do(req)
	if err != nil {
		return Credential{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return Credential{}, fmt.Errorf("oauth endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresAt   int64  `json:"expires_at"` // unix milliseconds
		ExpiresIn   int64  `json:"expires_in"` // seconds
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Credential{}, fmt.Errorf("decode oauth response: %w", err)
	}
	if payload.AccessToken == "" {
		return Credential{}, errors.New("oauth response missing access_token")
	}

	expiresAt := time.Now().Add(assumedTokenLifetime)
	switch {
	case payload.ExpiresAt > 0:
		expiresAt = time.UnixMilli(payload.ExpiresAt)
	case payload.ExpiresIn > 0:
		expiresAt = time.Now().Add(time.Duration(payload.ExpiresIn) * time.Second)
	}

	return Credential{Token: payload.AccessToken, ExpiresAt: expiresAt}, nil
}

// complete issues the chat/completions request. Transport failures map to
// ErrProviderUnavailable; auth rejections are returned via the status code
// so the caller can drive the single-retry policy.
func (p *ProviderClient) complete(ctx context.Context, token, orderText string) ([]byte, int, error) {
	payload := map[string]interface{}{
		"model": p.cfg.Model,
		"messages": []map[string]string{
			{"role": "system", "content": extractSystemPrompt},
			{"role": "user", "content": orderText},
		},
		"temperature": 0.1,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, fmt.Errorf("marshal completion request: %w", err)
	}

	endpoint := strings.TrimRight(p.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %s: %v", ErrProviderUnavailable, p.cfg.Name, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, resp.StatusCode, fmt.Errorf("%w: %s returned %d", ErrProviderUnavailable, p.cfg.Name, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%w: %s: %v", ErrProviderUnavailable, p.cfg.Name, err)
	}

	return data, resp.StatusCode, nil
}

// parseCompletion digs the candidate array out of a chat completion body.
// The model output is untrusted: items that are not objects or lack a title
// are dropped individually; a response with nothing usable is malformed.
func parseCompletion(body []byte) ([]Candidate, error) {
	var completion struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &completion); err != nil || len(completion.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices in completion", ErrMalformedResponse)
	}

	content := strings.TrimSpace(completion.Choices[0].Message.Content)
	content = stripCodeFence(content)

	raw, ok := extractJSONArray(content)
	if !ok {
		return nil, fmt.Errorf("%w: no JSON array in content", ErrMalformedResponse)
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	candidates := make([]Candidate, 0, len(items))
	dropped := 0
	for _, item := range items {
		var entry struct {
			Title string `json:"title"`
			Name  string `json:"name"`
			Qty   int    `json:"qty"`
			Quant int    `json:"quantity"`
		}
		if err := json.Unmarshal(item, &entry); err != nil {
			dropped++
			continue
		}
		title := strings.TrimSpace(entry.Title)
		if title == "" {
			title = strings.TrimSpace(entry.Name)
		}
		if title == "" {
			dropped++
			continue
		}
		qty := entry.Qty
		if qty <= 0 {
			qty = entry.Quant
		}
		if qty <= 0 {
			qty = 1
		}
		candidates = append(candidates, Candidate{Title: title, Qty: qty})
	}

	// An empty extraction is as useless as a garbled one: accepting it would
	// end the source chain with every input fragment silently dropped.
	if len(candidates) == 0 {
		if dropped > 0 {
			return nil, fmt.Errorf("%w: all %d items unusable", ErrMalformedResponse, dropped)
		}
		return nil, fmt.Errorf("%w: empty candidate array", ErrMalformedResponse)
	}

	return candidates, nil
}

// stripCodeFence removes a surrounding markdown code fence if present.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// extractJSONArray returns the first top-level JSON array in s. Models
// occasionally prepend prose despite instructions.
func extractJSONArray(s string) (json.RawMessage, bool) {
	start := strings.IndexByte(s, '[')
	end := strings.LastIndexByte(s, ']')
	if start < 0 || end <= start {
		return nil, false
	}
	return json.RawMessage(s[start : end+1]), true
}

// Compile-time check that ProviderClient implements Source.
var _ Source = (*ProviderClient)(nil)
