// Package ai holds the backend registry and one client per AI backend.
//
// Each client turns (code, error log, credential, optional image) into extracted
// code using the vendor SDK that fits it:
//   - google: google.golang.org/genai
//   - groq, openrouter, nvidia: github.com/sashabaranov/go-openai against their
//     OpenAI-compatible endpoints
//   - cloudflare: plain REST against Workers AI, decoded with gjson
package ai

import (
	"net/http"

	"github.com/kernhell/kernhell-go/internal/domain"
	"github.com/kernhell/kernhell-go/internal/ports"
)

const (
	groqBaseURL       = "https://api.groq.com/openai/v1"
	openRouterBaseURL = "https://openrouter.ai/api/v1"
	nvidiaBaseURL     = "https://integrate.api.nvidia.com/v1"
	cloudflareBaseURL = "https://api.cloudflare.com/client/v4"

	// nvidiaVerifyModel is a small model used only to check NVIDIA keys.
	nvidiaVerifyModel = "meta/llama-3.1-8b-instruct"

	defaultTemperature = 0.2
	verifyMaxTokens    = 5
)

// Registry maps every backend to its client and static spec.
type Registry struct {
	clients map[domain.Backend]ports.BackendClient
}

type registryOptions struct {
	httpClient *http.Client
	baseURLs   map[domain.Backend]string
	maxTokens  int
}

// Option customizes the registry.
type Option func(*registryOptions)

// WithHTTPClient shares one HTTP client across all backends.
func WithHTTPClient(client *http.Client) Option {
	return func(o *registryOptions) { o.httpClient = client }
}

// WithBaseURL points a backend at a different endpoint, e.g. a proxy or a test server.
func WithBaseURL(b domain.Backend, url string) Option {
	return func(o *registryOptions) { o.baseURLs[b] = url }
}

// NewRegistry builds clients for all known backends.
func NewRegistry(cfg domain.Config, opts ...Option) *Registry {
	o := &registryOptions{
		httpClient: &http.Client{Timeout: cfg.RequestTimeout()},
		baseURLs:   make(map[domain.Backend]string),
		maxTokens:  cfg.Backends.MaxTokens,
	}
	if o.maxTokens <= 0 {
		o.maxTokens = domain.DefaultMaxTokens
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: domain.DefaultRequestTimeout}
	}

	spec := func(b domain.Backend) domain.BackendSpec {
		s, _ := domain.SpecFor(b)
		return s
	}
	base := func(b domain.Backend, fallback string) string {
		if url, ok := o.baseURLs[b]; ok {
			return url
		}
		return fallback
	}

	return &Registry{clients: map[domain.Backend]ports.BackendClient{
		domain.BackendGoogle: &googleClient{
			spec:       spec(domain.BackendGoogle),
			baseURL:    o.baseURLs[domain.BackendGoogle],
			httpClient: o.httpClient,
			maxTokens:  o.maxTokens,
		},
		domain.BackendGroq: &openAICompatClient{
			spec:        spec(domain.BackendGroq),
			baseURL:     base(domain.BackendGroq, groqBaseURL),
			httpClient:  o.httpClient,
			maxTokens:   o.maxTokens,
			verifyModel: spec(domain.BackendGroq).Model,
		},
		domain.BackendOpenRouter: &openAICompatClient{
			spec:        spec(domain.BackendOpenRouter),
			baseURL:     base(domain.BackendOpenRouter, openRouterBaseURL),
			httpClient:  o.httpClient,
			maxTokens:   o.maxTokens,
			verifyModel: spec(domain.BackendOpenRouter).Model,
		},
		domain.BackendCloudflare: &cloudflareClient{
			spec:       spec(domain.BackendCloudflare),
			baseURL:    base(domain.BackendCloudflare, cloudflareBaseURL),
			httpClient: o.httpClient,
			maxTokens:  o.maxTokens,
		},
		domain.BackendNvidia: &openAICompatClient{
			spec:        spec(domain.BackendNvidia),
			baseURL:     base(domain.BackendNvidia, nvidiaBaseURL),
			httpClient:  o.httpClient,
			maxTokens:   o.maxTokens,
			verifyModel: nvidiaVerifyModel,

			// NIM takes the multimodal message shape even for text-only prompts.
			alwaysMultipart: true,
		},
	}}
}

// Client returns the implementation for a backend.
func (r *Registry) Client(b domain.Backend) (ports.BackendClient, bool) {
	c, ok := r.clients[b]
	return c, ok
}

// Spec returns the static capabilities of a backend.
func (r *Registry) Spec(b domain.Backend) (domain.BackendSpec, bool) {
	return domain.SpecFor(b)
}

// Verifier returns the credential checker for a backend, if it has one.
func (r *Registry) Verifier(b domain.Backend) (ports.CredentialVerifier, bool) {
	c, ok := r.clients[b]
	if !ok {
		return nil, false
	}
	v, ok := c.(ports.CredentialVerifier)
	return v, ok
}

var _ ports.BackendRegistry = (*Registry)(nil)

