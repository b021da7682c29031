package commands

import (
	"context"

	"github.com/kernhell/kernhell-go/internal/app"
)

// ContainerFunc returns the process container, building it on first use so that
// persistent flags such as --config are honored.
type ContainerFunc func(ctx context.Context) (*app.Container, error)

// Listing defaults
const (
	DefaultHistoryLimit = 20
	DefaultMemoryLimit  = 20
	TimestampFormat     = "2006-01-02 15:04:05"
)

// Error messages
const (
	ErrDoctorServiceUnavailable = "doctor service unavailable"
	ErrHistoryStoreUnavailable  = "history store unavailable"
)

// Success messages
const (
	MsgConfigurationValid       = "Configuration valid"
	MsgNoDifferencesFromDefault = "No differences from default configuration."
	MsgNoHistoryRecorded        = "No history recorded yet."
	MsgNoMemoryRecorded         = "Healing memory is empty."
	MsgNoKeysConfigured         = "No API keys configured. Add one with: kernhell config add-key <KEY> --provider <name>"
	MsgNoCache                  = "No cache directory found."
	MsgGuardrailDisabled        = "Guardrail is disabled; generated fixes are applied unscreened."
)
