package ai

import (
	"context"
	"fmt"
	"net/http"

	"google.golang.org/genai"

	"github.com/kernhell/kernhell-go/internal/domain"
	"github.com/kernhell/kernhell-go/internal/ports"
)

// googleClient talks to Gemini through the Gemini API backend of the genai SDK.
type googleClient struct {
	spec       domain.BackendSpec
	baseURL    string
	httpClient *http.Client
	maxTokens  int
}

func (c *googleClient) newClient(ctx context.Context, credential string) (*genai.Client, error) {
	cfg := &genai.ClientConfig{
		APIKey:     credential,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: c.httpClient,
	}
	if c.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: c.baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("google: create client: %w", err)
	}
	return client, nil
}

func (c *googleClient) Invoke(ctx context.Context, code, errorLog, credential string, image []byte) (string, error) {
	client, err := c.newClient(ctx, credential)
	if err != nil {
		return "", err
	}

	withImage := len(image) > 0
	parts := []*genai.Part{genai.NewPartFromText(SystemPrompt + "\n\n" + RenderUserPrompt(code, errorLog, withImage))}
	if withImage {
		parts = append(parts, genai.NewPartFromBytes(image, "image/png"))
	}

	resp, err := client.Models.GenerateContent(ctx, c.spec.ModelFor(withImage),
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)},
		&genai.GenerateContentConfig{
			Temperature:     genai.Ptr[float32](defaultTemperature),
			MaxOutputTokens: int32(c.maxTokens),
		})
	if err != nil {
		return "", fmt.Errorf("google: %w", err)
	}
	return ExtractCode(resp.Text()), nil
}

// Verify sends a tiny prompt to check that the credential is accepted.
func (c *googleClient) Verify(ctx context.Context, credential string) error {
	client, err := c.newClient(ctx, credential)
	if err != nil {
		return err
	}
	_, err = client.Models.GenerateContent(ctx, c.spec.Model, genai.Text(verifyPrompt), nil)
	if err != nil {
		return fmt.Errorf("google: %w", err)
	}
	return nil
}

var (
	_ ports.BackendClient      = (*googleClient)(nil)
	_ ports.CredentialVerifier = (*googleClient)(nil)
)
