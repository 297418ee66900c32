package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// RepoDirName is the per-project config directory found by walking upward.
const RepoDirName = ".agenda"

// configFileNames are tried in order inside a config directory.
var configFileNames = []string{"config.json", "config.yaml", "config.yml"}

// Config holds application configuration.
type Config struct {
	// DefaultUser is the user key used when a request names none.
	DefaultUser string `json:"default_user,omitempty" yaml:"default_user,omitempty"`

	// Suggestion defaults, used when a request leaves them unset.
	DefaultDurationMinutes int    `json:"default_duration_minutes,omitempty" yaml:"default_duration_minutes,omitempty"`
	DefaultWindowStart     string `json:"default_window_start,omitempty" yaml:"default_window_start,omitempty"`
	DefaultWindowEnd       string `json:"default_window_end,omitempty" yaml:"default_window_end,omitempty"`

	// DefaultCategoryColor is applied to categories saved without a color.
	DefaultCategoryColor string `json:"default_category_color,omitempty" yaml:"default_category_color,omitempty"`

	// MaxRangeDays caps the number of days a single calendar query may expand.
	MaxRangeDays int `json:"max_range_days,omitempty" yaml:"max_range_days,omitempty"`

	// UpcomingLimit is the default number of upcoming occurrences returned.
	UpcomingLimit int `json:"upcoming_limit,omitempty" yaml:"upcoming_limit,omitempty"`

	// ReminderSchedule is the cron expression driving the reminder daemon.
	ReminderSchedule string `json:"reminder_schedule,omitempty" yaml:"reminder_schedule,omitempty"`

	// ReminderLeadMinutes is how far ahead of an occurrence a reminder fires.
	ReminderLeadMinutes int `json:"reminder_lead_minutes,omitempty" yaml:"reminder_lead_minutes,omitempty"`

	// TelegramToken enables reminder delivery through a Telegram bot.
	// Usually supplied through AGENDA_TELEGRAM_TOKEN instead of a file.
	TelegramToken string `json:"telegram_token,omitempty" yaml:"telegram_token,omitempty"`

	// TelegramChatID is the chat reminders are sent to.
	TelegramChatID int64 `json:"telegram_chat_id,omitempty" yaml:"telegram_chat_id,omitempty"`

	// RedisAddr, when set, stores sent-reminder markers in Redis so several
	// daemons never notify the same occurrence twice.
	RedisAddr string `json:"redis_addr,omitempty" yaml:"redis_addr,omitempty"`

	// LogLevel is a zerolog level name ("debug", "info", "warn", ...).
	LogLevel string `json:"log_level,omitempty" yaml:"log_level,omitempty"`

	// AllowedPaths is an allowlist of directories for import/export operations.
	// Paths outside ~/.agenda/exports require either being in this list or AllowUnsafePaths=true.
	// Paths should be absolute (relative paths are ignored).
	AllowedPaths []string `json:"allowed_paths,omitempty" yaml:"allowed_paths,omitempty"`

	// AllowUnsafePaths disables directory restrictions for import/export.
	// Symlink and extension checks still apply.
	AllowUnsafePaths bool `json:"allow_unsafe_paths,omitempty" yaml:"allow_unsafe_paths,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty" yaml:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty" yaml:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty" yaml:"disabled_tools,omitempty"`

	// DisabledTypes disables every MCP tool of the named types
	// ("category", "event", "calendar", "priority", "slot", "planner").
	DisabledTypes []string `json:"disabled_types,omitempty" yaml:"disabled_types,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		DefaultUser:            "default",
		DefaultDurationMinutes: 60,
		DefaultWindowStart:     "06:00",
		DefaultWindowEnd:       "22:00",
		DefaultCategoryColor:   "#4C78A8",
		MaxRangeDays:           400,
		UpcomingLimit:          8,
		ReminderSchedule:       "* * * * *",
		ReminderLeadMinutes:    15,
		LogLevel:               "info",
	}
}

// Load loads configuration from baseDir (config.json, config.yaml or config.yml).
// Returns default config if no file exists.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFileRaw(findConfigFile(baseDir))
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// LoadWithRepo loads configuration from both the global (~/.agenda) and the
// nearest repo (.agenda) directory found walking upward from startDir.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
// Either or both configs may be missing.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(findConfigFile(globalDir))
	if err != nil {
		return nil, err
	}

	repo, err := loadFileRaw(FindRepoConfig(startDir))
	if err != nil {
		return nil, err
	}

	return Merge(Merge(DefaultConfig(), global), repo), nil
}

// FindRepoConfig walks upward from startDir to find the nearest .agenda config file.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	if startDir == "" {
		return ""
	}
	dir := startDir
	for {
		if path := findConfigFile(filepath.Join(dir, RepoDirName)); path != "" {
			return path
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// findConfigFile returns the first existing config file in dir, or "".
func findConfigFile(dir string) string {
	for _, name := range configFileNames {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the path is empty or the file doesn't exist.
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	switch strings.ToLower(filepath.Ext(configPath)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", configPath, err)
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", configPath, err)
		}
	}

	return cfg, nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	// Scalars: overlay wins if non-zero, else base
	result.DefaultUser = pickString(overlay.DefaultUser, base.DefaultUser)
	result.DefaultDurationMinutes = pickInt(overlay.DefaultDurationMinutes, base.DefaultDurationMinutes)
	result.DefaultWindowStart = pickString(overlay.DefaultWindowStart, base.DefaultWindowStart)
	result.DefaultWindowEnd = pickString(overlay.DefaultWindowEnd, base.DefaultWindowEnd)
	result.DefaultCategoryColor = pickString(overlay.DefaultCategoryColor, base.DefaultCategoryColor)
	result.MaxRangeDays = pickInt(overlay.MaxRangeDays, base.MaxRangeDays)
	result.UpcomingLimit = pickInt(overlay.UpcomingLimit, base.UpcomingLimit)
	result.ReminderSchedule = pickString(overlay.ReminderSchedule, base.ReminderSchedule)
	result.ReminderLeadMinutes = pickInt(overlay.ReminderLeadMinutes, base.ReminderLeadMinutes)
	result.TelegramToken = pickString(overlay.TelegramToken, base.TelegramToken)
	if overlay.TelegramChatID != 0 {
		result.TelegramChatID = overlay.TelegramChatID
	} else {
		result.TelegramChatID = base.TelegramChatID
	}
	result.RedisAddr = pickString(overlay.RedisAddr, base.RedisAddr)
	result.LogLevel = pickString(overlay.LogLevel, base.LogLevel)
	result.DBMaxOpenConns = pickInt(overlay.DBMaxOpenConns, base.DBMaxOpenConns)
	result.DBMaxIdleConns = pickInt(overlay.DBMaxIdleConns, base.DBMaxIdleConns)

	// Booleans: overlay wins if true, else base
	result.AllowUnsafePaths = base.AllowUnsafePaths || overlay.AllowUnsafePaths

	// Arrays: merge and deduplicate
	result.AllowedPaths = mergeStringSlice(base.AllowedPaths, overlay.AllowedPaths)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)
	result.DisabledTypes = mergeStringSlice(base.DisabledTypes, overlay.DisabledTypes)

	return result
}

func pickString(overlay, base string) string {
	if strings.TrimSpace(overlay) != "" {
		return overlay
	}
	return base
}

func pickInt(overlay, base int) int {
	if overlay != 0 {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, list := range [][]string{a, b} {
		for _, s := range list {
			s = strings.TrimSpace(s)
			if s != "" && !seen[s] {
				seen[s] = true
				result = append(result, s)
			}
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
