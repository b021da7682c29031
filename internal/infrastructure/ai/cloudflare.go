package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/kernhell/kernhell-go/internal/domain"
	"github.com/kernhell/kernhell-go/internal/ports"
)

// cloudflareClient calls Workers AI over REST. Credentials have the form ACCOUNT_ID:API_TOKEN.
type cloudflareClient struct {
	spec       domain.BackendSpec
	baseURL    string
	httpClient *http.Client
	maxTokens  int
}

type cloudflareMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type cloudflareRequest struct {
	Messages  []cloudflareMessage `json:"messages"`
	MaxTokens int                 `json:"max_tokens,omitempty"`
}

// Invoke ignores image; the model is text only.
func (c *cloudflareClient) Invoke(ctx context.Context, code, errorLog, credential string, _ []byte) (string, error) {
	body, err := c.run(ctx, credential, cloudflareRequest{
		Messages: []cloudflareMessage{
			{Role: "system", Content: SystemPrompt},
			{Role: "user", Content: RenderUserPrompt(code, errorLog, false)},
		},
		MaxTokens: c.maxTokens,
	})
	if err != nil {
		return "", err
	}

	if !gjson.ValidBytes(body) {
		return "", fmt.Errorf("cloudflare: %w", domain.ErrMalformedResponse)
	}
	parsed := gjson.ParseBytes(body)
	if !parsed.Get("success").Bool() {
		return "", nil
	}
	return ExtractCode(parsed.Get("result.response").String()), nil
}

// Verify sends a tiny prompt to check that the credential is accepted.
func (c *cloudflareClient) Verify(ctx context.Context, credential string) error {
	_, err := c.run(ctx, credential, cloudflareRequest{
		Messages:  []cloudflareMessage{{Role: "user", Content: verifyPrompt}},
		MaxTokens: verifyMaxTokens,
	})
	return err
}

func (c *cloudflareClient) run(ctx context.Context, credential string, payload cloudflareRequest) ([]byte, error) {
	accountID, token, err := SplitCloudflareCredential(credential)
	if err != nil {
		return nil, err
	}

	requestBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/accounts/%s/ai/run/%s", strings.TrimRight(c.baseURL, "/"), accountID, c.spec.Model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(requestBody))
	if err != nil {
		return nil, fmt.Errorf("create HTTP request: %w", err)
	}
	httpReq.Header.Set("content-type", "application/json")
	httpReq.Header.Set("authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("cloudflare: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode >= 400 {
		msg := gjson.GetBytes(body, "errors.0.message").String()
		if msg == "" {
			msg = resp.Status
		}
		return nil, fmt.Errorf("cloudflare: HTTP %d: %s", resp.StatusCode, msg)
	}
	return body, nil
}

// SplitCloudflareCredential parses an ACCOUNT_ID:API_TOKEN credential.
func SplitCloudflareCredential(credential string) (accountID, token string, err error) {
	accountID, token, ok := strings.Cut(credential, ":")
	if !ok || accountID == "" || token == "" {
		return "", "", fmt.Errorf("%w: cloudflare key must be ACCOUNT_ID:API_TOKEN", domain.ErrMalformedCredential)
	}
	return accountID, token, nil
}

var (
	_ ports.BackendClient      = (*cloudflareClient)(nil)
	_ ports.CredentialVerifier = (*cloudflareClient)(nil)
)
