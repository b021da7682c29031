package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoCredentials is the configuration error raised when no backend has a credential.
	ErrNoCredentials = errors.New("no API keys configured; run `kernhell config add-key <KEY> --provider <name>` first")
	// ErrUnknownBackend rejects identifiers outside the backend catalogue.
	ErrUnknownBackend = errors.New("unknown provider")
	// ErrCredentialExists rejects duplicate credentials within one backend.
	ErrCredentialExists = errors.New("key already exists")
	// ErrCredentialNotFound is returned by removals that match nothing.
	ErrCredentialNotFound = errors.New("key not found")
	// ErrEmptyResponse marks a backend call that succeeded but returned no code.
	ErrEmptyResponse = errors.New("empty response from provider")
	// ErrMalformedResponse marks a response body that could not be decoded.
	ErrMalformedResponse = errors.New("malformed provider response")
	// ErrMalformedCredential marks a credential in the wrong shape for its backend.
	ErrMalformedCredential = errors.New("malformed credential")
)

// ExhaustionError is returned when every backend and credential failed.
type ExhaustionError struct {
	Attempted []Backend
}

func (e *ExhaustionError) Error() string {
	var b strings.Builder
	b.WriteString("all providers and keys exhausted")
	if len(e.Attempted) > 0 {
		names := make([]string, 0, len(e.Attempted))
		for _, a := range e.Attempted {
			names = append(names, string(a))
		}
		fmt.Fprintf(&b, " (tried: %s)", strings.Join(names, ", "))
	}
	b.WriteString("! Add more keys:\n")
	for _, p := range []Backend{BackendGoogle, BackendGroq, BackendOpenRouter} {
		fmt.Fprintf(&b, "  kernhell config add-key <KEY> --provider %s\n", p)
	}
	return strings.TrimRight(b.String(), "\n")
}

// PatchError wraps a failure while applying a fix to a file.
type PatchError struct {
	Path string
	Op   string
	Err  error
}

func (e *PatchError) Error() string {
	return fmt.Sprintf("patch %s: %s: %v", e.Path, e.Op, e.Err)
}

func (e *PatchError) Unwrap() error {
	return e.Err
}
