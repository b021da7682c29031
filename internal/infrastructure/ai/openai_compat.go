package ai

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/sashabaranov/go-openai"

	"github.com/kernhell/kernhell-go/internal/domain"
	"github.com/kernhell/kernhell-go/internal/ports"
)

// openAICompatClient serves every backend that speaks the OpenAI chat completions API.
type openAICompatClient struct {
	spec        domain.BackendSpec
	baseURL     string
	httpClient  *http.Client
	maxTokens   int
	verifyModel string

	alwaysMultipart bool
}

func (c *openAICompatClient) newClient(credential string) *openai.Client {
	cfg := openai.DefaultConfig(credential)
	cfg.BaseURL = c.baseURL
	if c.httpClient != nil {
		cfg.HTTPClient = c.httpClient
	}
	return openai.NewClientWithConfig(cfg)
}

func (c *openAICompatClient) Invoke(ctx context.Context, code, errorLog, credential string, image []byte) (string, error) {
	withImage := len(image) > 0 && c.spec.SupportsVision
	prompt := RenderUserPrompt(code, errorLog, withImage)

	user := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser}
	if withImage || c.alwaysMultipart {
		user.MultiContent = []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: prompt},
		}
		if withImage {
			user.MultiContent = append(user.MultiContent, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL:    "data:image/png;base64," + base64.StdEncoding.EncodeToString(image),
					Detail: openai.ImageURLDetailAuto,
				},
			})
		}
	} else {
		user.Content = prompt
	}

	resp, err := c.newClient(credential).CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.spec.ModelFor(withImage),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt},
			user,
		},
		Temperature: defaultTemperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", c.spec.ID, err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return ExtractCode(resp.Choices[0].Message.Content), nil
}

// Verify sends a tiny prompt to check that the credential is accepted.
func (c *openAICompatClient) Verify(ctx context.Context, credential string) error {
	_, err := c.newClient(credential).CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.verifyModel,
		Messages:  []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: verifyPrompt}},
		MaxTokens: verifyMaxTokens,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", c.spec.ID, err)
	}
	return nil
}

var (
	_ ports.BackendClient      = (*openAICompatClient)(nil)
	_ ports.CredentialVerifier = (*openAICompatClient)(nil)
)
