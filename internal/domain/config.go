package domain

// Config mirrors ~/.kernhell/config.yaml.
type Config struct {
	ConfigFormatVersion string             `yaml:"config_format_version"`
	Paths               PathSettings       `yaml:"paths"`
	Healing             HealingSettings    `yaml:"healing"`
	Screenshot          ScreenshotSettings `yaml:"screenshot"`
	Memory              MemorySettings     `yaml:"memory"`
	Quota               QuotaSettings      `yaml:"quota"`
	Backends            BackendSettings    `yaml:"backends"`
	Guardrail           GuardrailSettings  `yaml:"guardrail"`
	Logging             LoggingSettings    `yaml:"logging"`
	Watch               WatchSettings      `yaml:"watch"`
}

// PathSettings locates durable state.
type PathSettings struct {
	StateDir string `yaml:"state_dir"`
}

// HealingSettings controls the retry loop.
type HealingSettings struct {
	MaxRetries         int      `yaml:"max_retries"`
	EscalateAtAttempt  int      `yaml:"escalate_at_attempt"`
	TestTimeoutSeconds int      `yaml:"test_timeout_seconds"`
	Interpreter        string   `yaml:"interpreter"`
	TestPatterns       []string `yaml:"test_patterns"`
}

// ScreenshotSettings tunes the failure screenshot gate.
type ScreenshotSettings struct {
	Enabled        bool     `yaml:"enabled"`
	Hints          []string `yaml:"hints"`
	CaseSensitive  bool     `yaml:"case_sensitive"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	Headless       bool     `yaml:"headless"`
}

// MemorySettings tunes healing memory recall.
type MemorySettings struct {
	Enabled    bool    `yaml:"enabled"`
	Threshold  float64 `yaml:"threshold"`
	MaxRecords int     `yaml:"max_records"`
}

// QuotaSettings holds daily call ceilings.
type QuotaSettings struct {
	TimeZone      string          `yaml:"time_zone"`
	RetentionDays int             `yaml:"retention_days"`
	DailyLimits   map[Backend]int `yaml:"daily_limits"`
}

// BackendSettings tunes outbound AI calls.
type BackendSettings struct {
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds"`
	MaxTokens             int `yaml:"max_tokens"`
}

// GuardrailSettings controls screening of proposed fixes.
type GuardrailSettings struct {
	Enabled   bool   `yaml:"enabled"`
	RulesFile string `yaml:"rules_file"`
}

// LoggingSettings configures the structured logger.
type LoggingSettings struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// WatchSettings configures watch mode.
type WatchSettings struct {
	DebounceSeconds int `yaml:"debounce_seconds"`
}
