package domain

import "time"

// File permissions constants
const (
	// DirectoryPermissions is the default permission for directories (rwxr-xr-x)
	DirectoryPermissions = 0o755
	// SecureFilePermissions is the permission for sensitive files (rw-------)
	SecureFilePermissions = 0o600
)

// State file names under the state directory
const (
	KeysFileName    = "keys.json"
	QuotaFileName   = "quota.json"
	MemoryFileName  = "memory.json"
	RunsDBFileName  = "runs.db"
	RunsLogFileName = "runs.jsonl"
	CacheDirName    = ".kernhell_cache"
	BackupSuffix    = ".bak"
)

// Healing defaults
const (
	DefaultMaxRetries        = 3
	DefaultEscalateAttempt   = 2
	DefaultTestTimeout       = 60 * time.Second
	DefaultInterpreter       = "python"
	DefaultScreenshotTimeout = 30 * time.Second
	DefaultRequestTimeout    = 60 * time.Second
	DefaultMaxTokens         = 4096
	DefaultWatchDebounce     = 2 * time.Second
)

// Memory defaults
const (
	DefaultRecallThreshold  = 0.7
	DefaultMaxMemoryRecords = 100
	MaxErrorSnippetLength   = 300
)

// Quota defaults
const (
	DefaultQuotaRetentionDays = 7
	// UnlimitedQuota is reported as remaining for backends without a limit.
	UnlimitedQuota = 1 << 30
)

// Run log defaults
const (
	MaxRunErrorLength   = 200
	SavedHoursPerHeal   = 0.5
	DefaultHistoryLimit = 20
)

// DefaultDailyLimits are the free-tier ceilings per backend.
func DefaultDailyLimits() map[Backend]int {
	return map[Backend]int{
		BackendGoogle:     1500,
		BackendGroq:       14400,
		BackendOpenRouter: 50,
		BackendCloudflare: 10000,
		BackendNvidia:     1000,
	}
}

// Time formats
const (
	// TimestampFormat is the standard timestamp format
	TimestampFormat = time.RFC3339
	// QuotaDateFormat keys quota counts by calendar day.
	QuotaDateFormat = "2006-01-02"
)
