// Package domain defines core business entities and value objects for kernhell.
//
// This file contains the AI backend catalogue. Backends are a closed set known at
// build time; each carries the model it talks to and whether it accepts an image
// alongside the prompt.
package domain

import (
	"fmt"
	"strings"
)

// Backend identifies one external AI API integration.
type Backend string

const (
	BackendGoogle     Backend = "google"
	BackendGroq       Backend = "groq"
	BackendOpenRouter Backend = "openrouter"
	BackendCloudflare Backend = "cloudflare"
	BackendNvidia     Backend = "nvidia"
)

// BackendOrder is the fixed total order used for lookups, removal searches and
// backend switching.
var BackendOrder = []Backend{
	BackendGoogle,
	BackendGroq,
	BackendOpenRouter,
	BackendCloudflare,
	BackendNvidia,
}

// VisionPriority is the router preference when a failure screenshot is available.
var VisionPriority = []Backend{BackendNvidia, BackendGoogle, BackendOpenRouter}

// TextPriority is the router preference for text-only requests.
var TextPriority = []Backend{BackendGroq, BackendCloudflare, BackendNvidia, BackendGoogle}

// BackendSpec is the static capability record of a backend.
type BackendSpec struct {
	ID             Backend
	Model          string
	VisionModel    string
	SupportsVision bool
}

// ModelFor returns the model used for a request, switching to the vision model
// when an image is attached and the backend has a dedicated one.
func (s BackendSpec) ModelFor(withImage bool) string {
	if withImage && s.VisionModel != "" {
		return s.VisionModel
	}
	return s.Model
}

var backendSpecs = map[Backend]BackendSpec{
	BackendGoogle: {
		ID:             BackendGoogle,
		Model:          "gemini-2.0-flash",
		SupportsVision: true,
	},
	BackendGroq: {
		ID:    BackendGroq,
		Model: "llama-3.3-70b-versatile",
	},
	BackendOpenRouter: {
		ID:             BackendOpenRouter,
		Model:          "meta-llama/llama-3.3-70b-instruct:free",
		VisionModel:    "meta-llama/llama-4-scout:free",
		SupportsVision: true,
	},
	BackendCloudflare: {
		ID:    BackendCloudflare,
		Model: "@cf/meta/llama-3.1-8b-instruct",
	},
	BackendNvidia: {
		ID:             BackendNvidia,
		Model:          "meta/llama-3.2-90b-vision-instruct",
		SupportsVision: true,
	},
}

// SpecFor returns the static spec of a backend.
func SpecFor(b Backend) (BackendSpec, bool) {
	spec, ok := backendSpecs[b]
	return spec, ok
}

// ModelName returns the display model name of a backend, or "unknown".
func ModelName(b Backend) string {
	if spec, ok := backendSpecs[b]; ok {
		return spec.Model
	}
	return "unknown"
}

// SupportsVision reports whether the backend accepts image input.
func SupportsVision(b Backend) bool {
	return backendSpecs[b].SupportsVision
}

// Valid reports whether b is one of the known backends.
func (b Backend) Valid() bool {
	_, ok := backendSpecs[b]
	return ok
}

func (b Backend) String() string {
	return string(b)
}

// ParseBackend normalizes and validates a backend identifier.
func ParseBackend(raw string) (Backend, error) {
	b := Backend(strings.ToLower(strings.TrimSpace(raw)))
	if !b.Valid() {
		return "", fmt.Errorf("%w: %q (supported: %s)", ErrUnknownBackend, raw, strings.Join(BackendNames(), ", "))
	}
	return b, nil
}

// BackendNames lists identifiers in total order.
func BackendNames() []string {
	names := make([]string, 0, len(BackendOrder))
	for _, b := range BackendOrder {
		names = append(names, string(b))
	}
	return names
}
