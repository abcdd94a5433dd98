// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/danhackerowner-jpg/gemini-bot/internal/cloud"
	"github.com/danhackerowner-jpg/gemini-bot/internal/server"
	"github.com/danhackerowner-jpg/gemini-bot/internal/storage"
	"github.com/danhackerowner-jpg/gemini-bot/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete gemini-bot configuration.
type Config struct {
	Provider ProviderConfig `toml:"provider" json:"provider" yaml:"provider"`
	Storage  StorageConfig  `toml:"storage" json:"storage" yaml:"storage"`
	Server   ServerConfig   `toml:"server" json:"server" yaml:"server"`
	Log      LogConfig      `toml:"log" json:"log" yaml:"log"`
	UI       UIConfig       `toml:"ui" json:"ui" yaml:"ui"`
}

// Provider modes.
const (
	ModeDirect = "direct"
	ModeProxy  = "proxy"
)

// ProviderConfig selects how replies are obtained.
type ProviderConfig struct {
	// Mode is "direct" (call Gemini with the local key) or "proxy" (call a
	// running gemini-bot proxy).
	Mode string `toml:"mode" json:"mode" yaml:"mode"`
	// Endpoint is the generateContent URL used in direct mode.
	Endpoint string `toml:"endpoint" json:"endpoint" yaml:"endpoint"`
	// APIKey is sent as x-goog-api-key. GEMINI_API_KEY overrides it.
	APIKey string `toml:"api_key" json:"api_key" yaml:"api_key"`
	// ProxyURL is the full proxy route URL used in proxy mode.
	ProxyURL string `toml:"proxy_url" json:"proxy_url" yaml:"proxy_url"`
	// TimeoutSecs bounds each provider call; 0 means no timeout.
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs" yaml:"timeout_secs"`
}

// StorageConfig selects the history backend.
type StorageConfig struct {
	// Backend is "file", "sqlite" or "memory".
	Backend string `toml:"backend" json:"backend" yaml:"backend"`
	// Dir holds the history; empty means ~/.gemini-bot/history.
	Dir string `toml:"dir" json:"dir" yaml:"dir"`
	// Key names the history record.
	Key string `toml:"key" json:"key" yaml:"key"`
	// Watch warns when another process rewrites the history file.
	Watch bool `toml:"watch" json:"watch" yaml:"watch"`
}

// ServerConfig configures the proxy server.
type ServerConfig struct {
	Addr           string  `toml:"addr" json:"addr" yaml:"addr"`
	Route          string  `toml:"route" json:"route" yaml:"route"`
	RateLimitRPS   float64 `toml:"rate_limit_rps" json:"rate_limit_rps" yaml:"rate_limit_rps"`
	RateLimitBurst int     `toml:"rate_limit_burst" json:"rate_limit_burst" yaml:"rate_limit_burst"`
}

// LogConfig configures zerolog output.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `toml:"level" json:"level" yaml:"level"`
	// Format is "text" (console) or "json".
	Format string `toml:"format" json:"format" yaml:"format"`
	// File, when set, receives logs with rotation.
	File string `toml:"file" json:"file" yaml:"file"`
}

// UIConfig contains terminal UI settings.
type UIConfig struct {
	// Markdown renders assistant replies with glamour.
	Markdown bool `toml:"markdown" json:"markdown" yaml:"markdown"`
	// NoColor disables colors (NO_COLOR is honored as well).
	NoColor bool `toml:"no_color" json:"no_color" yaml:"no_color"`
	// SidebarWidth is the conversation list width in columns.
	SidebarWidth int `toml:"sidebar_width" json:"sidebar_width" yaml:"sidebar_width"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Provider: ProviderConfig{
			Mode:     ModeDirect,
			Endpoint: cloud.DefaultEndpoint,
			ProxyURL: "http://" + server.DefaultAddr + server.DefaultRoute,
		},
		Storage: StorageConfig{
			Backend: storage.BackendFile,
			Key:     storage.DefaultKey,
			Watch:   true,
		},
		Server: ServerConfig{
			Addr:           server.DefaultAddr,
			Route:          server.DefaultRoute,
			RateLimitRPS:   server.DefaultRateLimitRPS,
			RateLimitBurst: server.DefaultRateLimitBurst,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		UI: UIConfig{
			Markdown:     true,
			SidebarWidth: 24,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the gemini-bot configuration directory.
// GEMINI_BOT_HOME overrides the default ~/.gemini-bot.
func ConfigDir() (string, error) {
	if dir := os.Getenv("GEMINI_BOT_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "could not determine home directory")
	}
	return filepath.Join(home, ".gemini-bot"), nil
}

// candidatePaths lists config files in lookup order.
func candidatePaths() ([]string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	return []string{
		filepath.Join(dir, "config.toml"),
		filepath.Join(dir, "config.json"),
		filepath.Join(dir, "config.yaml"),
		filepath.Join(dir, "config.yml"),
	}, nil
}

// HistoryDir returns the directory for the history record.
func (c *Config) HistoryDir() (string, error) {
	if c.Storage.Dir != "" {
		return expandHome(c.Storage.Dir)
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history"), nil
}

// Timeout returns the provider timeout; zero means none.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Provider.TimeoutSecs) * time.Second
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "could not determine home directory")
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// ensureSecurePermissions tightens config file permissions.
// SECURITY: Config files may contain the API key and should be 0600.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return errors.Wrapf(err, "fix insecure permissions (was %o)", mode)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads the first config file found in the config directory, applies
// environment overrides and validates the result. Without a config file the
// defaults (plus overrides) are used.
func Load() (*Config, error) {
	paths, err := candidatePaths()
	if err != nil {
		return nil, err
	}
	for _, path := range paths {
		if _, statErr := os.Stat(path); statErr == nil {
			return LoadFromPath(path)
		}
	}

	cfg := Default()
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	return cfg, nil
}

// LoadFromPath loads a specific file. The format follows the extension:
// .json, .yaml/.yml, anything else is TOML.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	if err := decodeFile(cfg, path); err != nil {
		return nil, errors.Wrapf(err, "load config from %s", path)
	}

	cfg.ApplyEnvOverrides()
	cfg.fillDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	return cfg, nil
}

func decodeFile(cfg *Config, path string) error {
	// SECURITY: Check and fix file permissions if needed
	if err := ensureSecurePermissions(path); err != nil && !os.IsNotExist(errors.Cause(err)) {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read config file")
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		_, err = toml.Decode(string(data), cfg)
	}
	return errors.Wrap(err, "decode config file")
}

// fillDefaults restores defaults for fields a file explicitly blanked.
func (c *Config) fillDefaults() {
	defaults := Default()

	if c.Provider.Mode == "" {
		c.Provider.Mode = defaults.Provider.Mode
	}
	if c.Provider.Endpoint == "" {
		c.Provider.Endpoint = defaults.Provider.Endpoint
	}
	if c.Provider.ProxyURL == "" {
		c.Provider.ProxyURL = defaults.Provider.ProxyURL
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = defaults.Storage.Backend
	}
	if c.Storage.Key == "" {
		c.Storage.Key = defaults.Storage.Key
	}
	if c.Server.Addr == "" {
		c.Server.Addr = defaults.Server.Addr
	}
	if c.Server.Route == "" {
		c.Server.Route = defaults.Server.Route
	}
	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = defaults.Log.Format
	}
	if c.UI.SidebarWidth == 0 {
		c.UI.SidebarWidth = defaults.UI.SidebarWidth
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes the configuration to ~/.gemini-bot/config.toml.
func Save(cfg *Config) error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, filepath.Join(dir, "config.toml"))
}

// SaveTOML writes the configuration as TOML.
// SECURITY: The file is written with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# gemini-bot configuration file\n")
	buf.WriteString("# The API key is better kept in GEMINI_API_KEY than here.\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return errors.Wrap(err, "encode config")
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return errors.Wrap(err, "write config file")
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError is one invalid setting.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors collects every invalid setting found by Validate.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks every section and returns ValidationErrors, or nil.
// The API key is not checked; the provider decides whether it is valid.
func (c *Config) Validate() error {
	var errs ValidationErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	// Provider
	switch strings.ToLower(c.Provider.Mode) {
	case ModeDirect:
		if !isHTTPURL(c.Provider.Endpoint) {
			add("provider.endpoint", "invalid URL '%s'", c.Provider.Endpoint)
		}
	case ModeProxy:
		if !isHTTPURL(c.Provider.ProxyURL) {
			add("provider.proxy_url", "invalid URL '%s'", c.Provider.ProxyURL)
		}
	default:
		add("provider.mode", "invalid mode '%s', must be one of: direct, proxy", c.Provider.Mode)
	}
	if c.Provider.TimeoutSecs < 0 {
		add("provider.timeout_secs", "must be >= 0, got %d", c.Provider.TimeoutSecs)
	}

	// Storage
	switch strings.ToLower(c.Storage.Backend) {
	case storage.BackendFile, storage.BackendSQLite, storage.BackendMemory:
	default:
		add("storage.backend", "invalid backend '%s', must be one of: file, sqlite, memory", c.Storage.Backend)
	}
	if c.Storage.Key == "" || strings.ContainsAny(c.Storage.Key, `/\`) || c.Storage.Key == "." || c.Storage.Key == ".." {
		add("storage.key", "invalid record name '%s'", c.Storage.Key)
	}

	// Server
	if _, _, err := net.SplitHostPort(c.Server.Addr); err != nil {
		add("server.addr", "invalid address '%s'", c.Server.Addr)
	}
	if !strings.HasPrefix(c.Server.Route, "/") || strings.ContainsAny(c.Server.Route, " {}") {
		add("server.route", "invalid route '%s', must start with /", c.Server.Route)
	}
	if c.Server.RateLimitRPS < 0 {
		add("server.rate_limit_rps", "must be >= 0, got %v", c.Server.RateLimitRPS)
	}
	if c.Server.RateLimitBurst < 0 {
		add("server.rate_limit_burst", "must be >= 0, got %d", c.Server.RateLimitBurst)
	}

	// Log
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		add("log.level", "invalid level '%s', must be one of: debug, info, warn, error", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		add("log.format", "invalid format '%s', must be one of: text, json", c.Log.Format)
	}

	// UI
	if c.UI.SidebarWidth < 10 || c.UI.SidebarWidth > 60 {
		add("ui.sidebar_width", "must be between 10 and 60, got %d", c.UI.SidebarWidth)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variables on top of the file:
//   - GEMINI_API_KEY: provider.api_key
//   - GEMINI_BOT_ENDPOINT: provider.endpoint
//   - GEMINI_BOT_MODE: provider.mode
//   - GEMINI_BOT_PROXY_URL: provider.proxy_url
//   - GEMINI_BOT_TIMEOUT: provider.timeout_secs
//   - GEMINI_BOT_STORE: storage.backend
//   - GEMINI_BOT_LOG_LEVEL: log.level
//   - GEMINI_BOT_ADDR: server.addr
func (c *Config) ApplyEnvOverrides() {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Provider.APIKey = key
	}
	if endpoint := os.Getenv("GEMINI_BOT_ENDPOINT"); endpoint != "" {
		c.Provider.Endpoint = endpoint
	}
	if mode := os.Getenv("GEMINI_BOT_MODE"); mode != "" {
		c.Provider.Mode = mode
	}
	if proxyURL := os.Getenv("GEMINI_BOT_PROXY_URL"); proxyURL != "" {
		c.Provider.ProxyURL = proxyURL
	}
	if timeout := os.Getenv("GEMINI_BOT_TIMEOUT"); timeout != "" {
		if secs, err := strconv.Atoi(timeout); err == nil {
			c.Provider.TimeoutSecs = secs
		}
	}
	if store := os.Getenv("GEMINI_BOT_STORE"); store != "" {
		c.Storage.Backend = store
	}
	if level := os.Getenv("GEMINI_BOT_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	if addr := os.Getenv("GEMINI_BOT_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
}

// =============================================================================
// DEBUG OUTPUT
// =============================================================================

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// String renders the configuration as TOML with the API key redacted.
// SECURITY: Secrets never appear in debug output.
func (c *Config) String() string {
	safe := c.Clone()
	if safe.Provider.APIKey != "" {
		safe.Provider.APIKey = "[REDACTED, fingerprint=" + cloud.KeyFingerprint(c.Provider.APIKey) + "]"
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(safe); err != nil {
		return fmt.Sprintf("config: %v", err)
	}
	return buf.String()
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig   *Config
	globalConfigMu sync.RWMutex
)

// Global returns the process-wide configuration, loading it on first use.
// Load errors fall back to defaults with a warning on stderr.
func Global() *Config {
	globalConfigMu.RLock()
	cfg := globalConfig
	globalConfigMu.RUnlock()
	if cfg != nil {
		return cfg
	}

	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	if globalConfig == nil {
		loaded, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
			loaded = Default()
		}
		globalConfig = loaded
	}
	return globalConfig
}

// SetGlobal replaces the process-wide configuration.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting clears the process-wide configuration.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
}
