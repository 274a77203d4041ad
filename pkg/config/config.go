package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// MbasicUserAgent is the mobile browser identity presented to mbasic.facebook.com.
const MbasicUserAgent = "Mozilla/5.0 (Linux; U; Android 4.4.2; en-us; SCH-I535 Build/KOT49H) AppleWebKit/534.30 (KHTML, like Gecko) Version/4.0 Mobile Safari/534.30"

// Activity Log category filters.
const (
	CategoryPosts     = "cluster_11"
	CategoryComments  = "cluster_116"
	CategoryReactions = "cluster_15"
)

// Config holds all configuration options for the cleanup job
type Config struct {
	Facebook  FacebookConfig  `yaml:"facebook" json:"facebook"`
	Safety    SafetyConfig    `yaml:"safety" json:"safety"`
	Traversal TraversalConfig `yaml:"traversal" json:"traversal"`
	Browser   BrowserConfig   `yaml:"browser" json:"browser"`
	State     StateConfig     `yaml:"state" json:"state"`
	Output    OutputConfig    `yaml:"output" json:"output"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
}

// FacebookConfig identifies the account being cleaned
type FacebookConfig struct {
	Username        string   `yaml:"username" json:"username"`
	CookiesPath     string   `yaml:"cookies_path" json:"cookies_path"`
	TargetInterface string   `yaml:"target_interface" json:"target_interface"`
	Categories      []string `yaml:"categories" json:"categories"`
}

// SafetyConfig holds pacing and block-handling parameters
type SafetyConfig struct {
	MaxDeletionsPerHour int     `yaml:"max_deletions_per_hour" json:"max_deletions_per_hour"`
	MeanDelaySeconds    float64 `yaml:"mean_delay_seconds" json:"mean_delay_seconds"`
	DelayStdDev         float64 `yaml:"delay_std_dev" json:"delay_std_dev"`
	MinDelaySeconds     float64 `yaml:"min_delay_seconds" json:"min_delay_seconds"`
	BlockWaitHours      float64 `yaml:"block_wait_hours" json:"block_wait_hours"`
	BackoffMultiplier   float64 `yaml:"backoff_multiplier" json:"backoff_multiplier"`
	MaxRetries          int     `yaml:"max_retries" json:"max_retries"`
}

// TraversalConfig bounds the Activity Log walk
type TraversalConfig struct {
	TargetYear        int           `yaml:"target_year" json:"target_year"`
	StartYear         int           `yaml:"start_year" json:"start_year"`
	MinYear           int           `yaml:"min_year" json:"min_year"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout" json:"navigation_timeout"`
}

// BrowserConfig controls the automated browser
type BrowserConfig struct {
	Headless       bool   `yaml:"headless" json:"headless"`
	UserAgent      string `yaml:"user_agent" json:"user_agent"`
	ViewportWidth  int    `yaml:"viewport_width" json:"viewport_width"`
	ViewportHeight int    `yaml:"viewport_height" json:"viewport_height"`
	Locale         string `yaml:"locale" json:"locale"`
	Timezone       string `yaml:"timezone" json:"timezone"`
	BlockImages    bool   `yaml:"block_images" json:"block_images"`
	ExecPath       string `yaml:"exec_path" json:"exec_path"`
}

// StateConfig points at the progress file
type StateConfig struct {
	ProgressPath string `yaml:"progress_path" json:"progress_path"`
}

// OutputConfig holds terminal output preferences
type OutputConfig struct {
	ColorOutput   bool `yaml:"color_output" json:"color_output"`
	TUI           bool `yaml:"tui" json:"tui"`
	Notifications bool `yaml:"notifications" json:"notifications"`
	SkipTrash     bool `yaml:"skip_trash" json:"skip_trash"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `yaml:"level" json:"level"`
	File       string `yaml:"file" json:"file"`
	NoColor    bool   `yaml:"no_color" json:"no_color"`
	MaxSize    int    `yaml:"max_size" json:"max_size"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	MaxAge     int    `yaml:"max_age" json:"max_age"`
	Compress   bool   `yaml:"compress" json:"compress"`
}

// DefaultConfig returns a Config instance with the conservative defaults
func DefaultConfig() *Config {
	return &Config{
		Facebook: FacebookConfig{
			CookiesPath:     filepath.Join("data", "cookies.json"),
			TargetInterface: "mbasic",
			Categories:      []string{CategoryPosts, CategoryComments, CategoryReactions},
		},
		Safety: SafetyConfig{
			MaxDeletionsPerHour: 50,
			MeanDelaySeconds:    5.0,
			DelayStdDev:         1.5,
			MinDelaySeconds:     2.0,
			BlockWaitHours:      24,
			BackoffMultiplier:   1.5,
			MaxRetries:          3,
		},
		Traversal: TraversalConfig{
			TargetYear:        2021,
			StartYear:         2020,
			MinYear:           2004,
			NavigationTimeout: 30 * time.Second,
		},
		Browser: BrowserConfig{
			Headless:       false,
			UserAgent:      MbasicUserAgent,
			ViewportWidth:  360,
			ViewportHeight: 640,
			Locale:         "en-US",
			Timezone:       "America/New_York",
			BlockImages:    true,
		},
		State: StateConfig{
			ProgressPath: filepath.Join("data", "progress.json"),
		},
		Output: OutputConfig{
			ColorOutput:   true,
			Notifications: false,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     7,
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("FACEBOOK_USERNAME"); v != "" {
		c.Facebook.Username = v
	}
	if v := os.Getenv("FACEBOOK_COOKIES_PATH"); v != "" {
		c.Facebook.CookiesPath = v
	}
	if v := os.Getenv("FACEBOOK_PROGRESS_PATH"); v != "" {
		c.State.ProgressPath = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("HEADLESS"); v != "" {
		c.Browser.Headless = strings.ToLower(v) == "true"
	}
	if v := os.Getenv("FBCLEANUP_USER_AGENT"); v != "" {
		c.Browser.UserAgent = v
	}
	if v := os.Getenv("FBCLEANUP_LOG_FILE"); v != "" {
		c.Logging.File = v
	}

	var errs []error
	intVars := map[string]*int{
		"FBCLEANUP_MAX_DELETIONS_PER_HOUR": &c.Safety.MaxDeletionsPerHour,
		"FBCLEANUP_MAX_RETRIES":            &c.Safety.MaxRetries,
		"FBCLEANUP_TARGET_YEAR":            &c.Traversal.TargetYear,
		"FBCLEANUP_START_YEAR":             &c.Traversal.StartYear,
		"FBCLEANUP_MIN_YEAR":               &c.Traversal.MinYear,
	}
	for name, dst := range intVars {
		raw := os.Getenv(name)
		if raw == "" {
			continue
		}
		val, err := strconv.Atoi(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		*dst = val
	}

	floatVars := map[string]*float64{
		"FBCLEANUP_MEAN_DELAY":         &c.Safety.MeanDelaySeconds,
		"FBCLEANUP_DELAY_STD_DEV":      &c.Safety.DelayStdDev,
		"FBCLEANUP_MIN_DELAY":          &c.Safety.MinDelaySeconds,
		"FBCLEANUP_BLOCK_WAIT_HOURS":   &c.Safety.BlockWaitHours,
		"FBCLEANUP_BACKOFF_MULTIPLIER": &c.Safety.BackoffMultiplier,
	}
	for name, dst := range floatVars {
		raw := os.Getenv(name)
		if raw == "" {
			continue
		}
		val, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		*dst = val
	}

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// DefaultConfigPath is where `config init` writes and the loader looks last
func DefaultConfigPath() string {
	return filepath.Join(os.Getenv("HOME"), ".config", "fbcleanup", "config.yaml")
}

func (c *Config) findConfigFile() string {
	locations := []string{
		"fbcleanup.yaml",
		"fbcleanup.yml",
		DefaultConfigPath(),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Safety.MaxDeletionsPerHour <= 0 {
		errs = append(errs, errors.New("max deletions per hour must be positive"))
	}
	if c.Safety.MeanDelaySeconds <= 0 {
		errs = append(errs, errors.New("mean delay must be positive"))
	}
	if c.Safety.DelayStdDev < 0 {
		errs = append(errs, errors.New("delay standard deviation cannot be negative"))
	}
	if c.Safety.MinDelaySeconds <= 0 {
		errs = append(errs, errors.New("min delay must be positive"))
	}
	if c.Safety.BlockWaitHours <= 0 {
		errs = append(errs, errors.New("block wait hours must be positive"))
	}
	if c.Safety.BackoffMultiplier < 1 {
		errs = append(errs, errors.New("backoff multiplier must be at least 1"))
	}
	if c.Safety.MaxRetries < 1 {
		errs = append(errs, errors.New("max retries must be at least 1"))
	}

	t := c.Traversal
	if t.MinYear < 2004 || t.MinYear > 2030 {
		errs = append(errs, fmt.Errorf("min year must be between 2004 and 2030, got %d", t.MinYear))
	}
	if t.StartYear < 2004 || t.StartYear > 2030 {
		errs = append(errs, fmt.Errorf("start year must be between 2004 and 2030, got %d", t.StartYear))
	}
	if t.StartYear < t.MinYear {
		errs = append(errs, errors.New("start year cannot be before min year"))
	}
	if t.TargetYear < 2004 || t.TargetYear > 2031 {
		errs = append(errs, fmt.Errorf("target year out of range: %d", t.TargetYear))
	}

	if c.Facebook.CookiesPath == "" {
		errs = append(errs, errors.New("cookies path is required"))
	}
	if c.State.ProgressPath == "" {
		errs = append(errs, errors.New("progress path is required"))
	}
	if c.Facebook.TargetInterface != "mbasic" {
		errs = append(errs, fmt.Errorf("unsupported target interface %q", c.Facebook.TargetInterface))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration.
// Only non-zero values override.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["username"].(string); ok && v != "" {
		c.Facebook.Username = v
	}
	if v, ok := flags["cookies"].(string); ok && v != "" {
		c.Facebook.CookiesPath = v
	}
	if v, ok := flags["progress"].(string); ok && v != "" {
		c.State.ProgressPath = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := flags["log-file"].(string); ok && v != "" {
		c.Logging.File = v
	}
	if v, ok := flags["headless"].(bool); ok && v {
		c.Browser.Headless = true
	}
	if v, ok := flags["tui"].(bool); ok && v {
		c.Output.TUI = true
	}
	if v, ok := flags["no-color"].(bool); ok && v {
		c.Output.ColorOutput = false
		c.Logging.NoColor = true
	}
	if v, ok := flags["notify"].(bool); ok && v {
		c.Output.Notifications = true
	}
	if v, ok := flags["skip-trash"].(bool); ok && v {
		c.Output.SkipTrash = true
	}
	if v, ok := flags["max-per-hour"].(int); ok && v > 0 {
		c.Safety.MaxDeletionsPerHour = v
	}
	if v, ok := flags["target-year"].(int); ok && v > 0 {
		c.Traversal.TargetYear = v
	}
	if v, ok := flags["start-year"].(int); ok && v > 0 {
		c.Traversal.StartYear = v
	}
}

// Load loads configuration from all sources with proper precedence.
// Precedence order: flags > environment (.env included) > config file > defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".fbcleanup.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// TargetDate is the cutoff: content strictly before it is deleted
func (c *Config) TargetDate() time.Time {
	return time.Date(c.Traversal.TargetYear, time.January, 1, 0, 0, 0, 0, time.Local)
}
