// Package config provides configuration management for the mentorship journal.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	apperrors "mentor-desk/internal/errors"
	"mentor-desk/internal/models"
)

// ConfigFileName is the name of the main configuration file.
const ConfigFileName = "config.toml"

// Config holds all application configuration.
type Config struct {
	Storage  StorageConfig  `mapstructure:"storage"`
	Journal  JournalConfig  `mapstructure:"journal"`
	Rules    RulesConfig    `mapstructure:"rules"`
	Log      LogConfig      `mapstructure:"log"`
	Audit    AuditConfig    `mapstructure:"audit"`
	Security SecurityConfig `mapstructure:"security"`
	UI       UIConfig       `mapstructure:"ui"`

	// Path is the file the configuration was read from.
	Path string `mapstructure:"-"`
}

// StorageConfig holds database configuration.
type StorageConfig struct {
	Path string `mapstructure:"path"`
}

// JournalConfig holds trade journal behaviour.
type JournalConfig struct {
	DeriveStatusFromPnL bool   `mapstructure:"derive_status_from_pnl"`
	DefaultSource       string `mapstructure:"default_source"` // demo, live, paper
	DefaultMentorID     string `mapstructure:"default_mentor_id"`
}

// RulesConfig holds rule evaluation settings.
type RulesConfig struct {
	MinTokenLength int `mapstructure:"min_token_length"`
}

// LogConfig holds application log settings.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       bool   `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

// AuditConfig holds audit log settings.
type AuditConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	LogDir  string `mapstructure:"log_dir"`
}

// SecurityConfig holds security-related configuration.
type SecurityConfig struct {
	ReadOnlyMode     bool `mapstructure:"read_only_mode"`
	StrictValidation bool `mapstructure:"strict_validation"`
}

// UIConfig holds UI-related configuration.
type UIConfig struct {
	ColorEnabled   bool   `mapstructure:"color_enabled"`
	CurrencySymbol string `mapstructure:"currency_symbol"`
	DateFormat     string `mapstructure:"date_format"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/mentor-desk"
	}
	return filepath.Join(home, ".config", "mentor-desk")
}

// Default returns the configuration used when no file overrides a value.
func Default() *Config {
	dir := DefaultConfigDir()
	return &Config{
		Storage: StorageConfig{Path: filepath.Join(dir, "mentor.db")},
		Journal: JournalConfig{
			DeriveStatusFromPnL: true,
			DefaultSource:       string(models.SourceDemo),
		},
		Rules: RulesConfig{MinTokenLength: 3},
		Log: LogConfig{
			Level:      "info",
			File:       true,
			MaxSize:    10,
			MaxBackups: 5,
			MaxAge:     30,
		},
		Audit: AuditConfig{Enabled: true, LogDir: filepath.Join(dir, "audit")},
		Security: SecurityConfig{
			ReadOnlyMode:     false,
			StrictValidation: true,
		},
		UI: UIConfig{
			ColorEnabled:   true,
			CurrencySymbol: "$",
			DateFormat:     "02-Jan-2006",
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("storage.path", d.Storage.Path)
	v.SetDefault("journal.derive_status_from_pnl", d.Journal.DeriveStatusFromPnL)
	v.SetDefault("journal.default_source", d.Journal.DefaultSource)
	v.SetDefault("journal.default_mentor_id", d.Journal.DefaultMentorID)
	v.SetDefault("rules.min_token_length", d.Rules.MinTokenLength)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.max_size", d.Log.MaxSize)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.max_age", d.Log.MaxAge)
	v.SetDefault("audit.enabled", d.Audit.Enabled)
	v.SetDefault("audit.log_dir", d.Audit.LogDir)
	v.SetDefault("security.read_only_mode", d.Security.ReadOnlyMode)
	v.SetDefault("security.strict_validation", d.Security.StrictValidation)
	v.SetDefault("ui.color_enabled", d.UI.ColorEnabled)
	v.SetDefault("ui.currency_symbol", d.UI.CurrencySymbol)
	v.SetDefault("ui.date_format", d.UI.DateFormat)
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}
	return LoadFile(filepath.Join(configDir, ConfigFileName))
}

// LoadFile loads configuration from a TOML file, writing a commented
// template first if the file does not exist.
func LoadFile(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := createTemplateConfig(path); err != nil {
			return nil, err
		}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	cfg.Path = path

	// Environment variables (optionally from .env) win over the file.
	_ = godotenv.Load()
	applyEnvOverrides(cfg)

	cfg.Storage.Path = expandHome(cfg.Storage.Path)
	cfg.Audit.LogDir = expandHome(cfg.Audit.LogDir)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MENTOR_DB_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("MENTOR_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("MENTOR_READ_ONLY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Security.ReadOnlyMode = b
		}
	}
	if v := os.Getenv("MENTOR_MENTOR_ID"); v != "" {
		cfg.Journal.DefaultMentorID = v
	}
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Storage.Path == "" {
		return configError("storage.path", c.Storage.Path, "must not be empty")
	}
	if _, err := models.ParseTradeSource(c.Journal.DefaultSource); err != nil {
		return configError("journal.default_source", c.Journal.DefaultSource, "must be demo, live or paper")
	}
	if c.Rules.MinTokenLength <= 0 {
		return configError("rules.min_token_length", c.Rules.MinTokenLength, "must be positive")
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level)); err != nil || c.Log.Level == "" {
		return configError("log.level", c.Log.Level, "must be one of trace, debug, info, warn, error")
	}
	if c.Log.MaxSize < 0 || c.Log.MaxBackups < 0 || c.Log.MaxAge < 0 {
		return configError("log", nil, "rotation settings must be non-negative")
	}
	return nil
}

func configError(field string, value interface{}, message string) error {
	return fmt.Errorf("%w: %w", apperrors.ErrConfigInvalid, apperrors.NewValidationError(field, value, message))
}

// DefaultTradeSource returns the configured default source.
func (c *Config) DefaultTradeSource() models.TradeSource {
	src, err := models.ParseTradeSource(c.Journal.DefaultSource)
	if err != nil {
		return models.SourceDemo
	}
	return src
}
