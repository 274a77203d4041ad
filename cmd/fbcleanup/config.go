package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"fbcleanup/pkg/config"
	"fbcleanup/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage fbcleanup configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables, including a .env file
  - Configuration file
  - Default values (lowest priority)`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file will be created in the current directory as 'fbcleanup.yaml'
unless a different path is specified with the --config flag.`,
	Run: runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Show the effective configuration after merging every source.`,
	Run:   runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate a configuration file for syntax errors and invalid values.

This command checks:
  - YAML syntax
  - Value ranges for pacing and traversal
  - Cookie export and progress file locations`,
	Run: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

const exampleConfig = `# fbcleanup configuration file
#
# Environment variables override this file, for example
# FACEBOOK_USERNAME, FACEBOOK_COOKIES_PATH or FBCLEANUP_MAX_DELETIONS_PER_HOUR.

facebook:
  # mbasic profile name (the part after mbasic.facebook.com/).
  # Leave empty to reuse the one from saved progress.
  username: ""

  # Cookie export used when no session is stored with 'fbcleanup auth import'
  cookies_path: "data/cookies.json"

  # Only mbasic is supported
  target_interface: "mbasic"

  # Activity Log categories. All three walks the combined log.
  categories:
    - cluster_11   # posts
    - cluster_116  # comments
    - cluster_15   # reactions

# Pacing and block handling. Keep these conservative.
safety:
  max_deletions_per_hour: 50
  mean_delay_seconds: 5.0
  delay_std_dev: 1.5
  min_delay_seconds: 2.0

  # Cool-down after a detected block
  block_wait_hours: 24

  # Delays are multiplied by this, raised to the block count, after a block
  backoff_multiplier: 1.5

  # Attempts per item, including the first
  max_retries: 3

traversal:
  # Content dated before January 1 of this year is deleted
  target_year: 2021

  # Newest year to walk; the walk goes back to min_year
  start_year: 2020
  min_year: 2004

  navigation_timeout: 30s

browser:
  headless: false
  viewport_width: 360
  viewport_height: 640
  locale: "en-US"
  timezone: "America/New_York"
  block_images: true
  # exec_path: /usr/bin/chromium

state:
  progress_path: "data/progress.json"

output:
  color_output: true
  tui: false
  notifications: false
  skip_trash: false

logging:
  # debug, info, warn, error
  level: "info"

  # Optional log file, written as JSON lines
  file: ""
`

func runConfigInit(cmd *cobra.Command, args []string) {
	configPath := configFile
	if configPath == "" {
		configPath = "fbcleanup.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		ui.PrintError("Configuration file already exists", configPath)
		fmt.Println("\nTo overwrite, first remove the existing file:")
		fmt.Printf("  rm %s\n", configPath)
		os.Exit(1)
	}

	if dir := filepath.Dir(configPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			ui.PrintError("Failed to create configuration directory", err.Error())
			os.Exit(1)
		}
	}
	if err := os.WriteFile(configPath, []byte(exampleConfig), 0644); err != nil {
		ui.PrintError("Failed to create configuration file", err.Error())
		os.Exit(1)
	}

	ui.PrintSuccess("Configuration file created: " + configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Set facebook.username in the configuration file")
	fmt.Println("2. Export your cookies ('fbcleanup auth guide') and run 'fbcleanup auth import <file>'")
	fmt.Println("3. Run 'fbcleanup config validate' to check the configuration")
	fmt.Println("4. Start cleaning with 'fbcleanup run'")
}

func runConfigShow(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig(nil)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(1)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		ui.PrintError("Failed to format configuration", err.Error())
		os.Exit(1)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Println()
	fmt.Print(string(data))

	fmt.Println("\nConfiguration sources (in order of priority):")
	fmt.Println("1. Command line flags")
	fmt.Println("2. Environment variables (FACEBOOK_*, FBCLEANUP_*)")
	if configFile != "" {
		fmt.Printf("3. Configuration file: %s\n", configFile)
	} else {
		fmt.Println("3. Configuration file: fbcleanup.yaml or " + config.DefaultConfigPath() + " if present")
	}
	fmt.Println("4. Default values")
}

func runConfigValidate(cmd *cobra.Command, args []string) {
	if configFile != "" {
		ui.PrintInfo("Validating configuration", configFile)
	}

	cfg, err := loadConfig(nil)
	if err != nil {
		ui.PrintError("Configuration validation failed", err.Error())
		os.Exit(1)
	}

	warnings, problems := checkConfig(cfg)

	if len(problems) > 0 {
		ui.PrintError("Configuration has errors:")
		for _, p := range problems {
			fmt.Printf("  - %s\n", p)
		}
		os.Exit(1)
	}

	if len(warnings) > 0 {
		ui.PrintWarning("Configuration warnings:")
		for _, w := range warnings {
			fmt.Printf("  - %s\n", w)
		}
		fmt.Println()
	}

	ui.PrintSuccess("Configuration is valid")

	fmt.Println("\nConfiguration summary:")
	fmt.Printf("  Username: %s\n", valueOr(cfg.Facebook.Username, "(from saved progress)"))
	fmt.Printf("  Cutoff: %s\n", cfg.TargetDate().Format(dateLayout))
	fmt.Printf("  Years: %d down to %d\n", cfg.Traversal.StartYear, cfg.Traversal.MinYear)
	fmt.Printf("  Pacing: %.1fs ± %.1fs, at most %d per hour\n",
		cfg.Safety.MeanDelaySeconds, cfg.Safety.DelayStdDev, cfg.Safety.MaxDeletionsPerHour)
	fmt.Printf("  Block cool-down: %.0fh\n", cfg.Safety.BlockWaitHours)
	fmt.Printf("  Log level: %s\n", cfg.Logging.Level)
}

// checkConfig reports issues config.Validate does not cover: settings that
// will work but look wrong, and paths that cannot be used.
func checkConfig(cfg *config.Config) (warnings, problems []string) {
	if cfg.Facebook.Username == "" {
		warnings = append(warnings, "facebook.username is not set; a saved last_url must supply it")
	}
	if cfg.Traversal.StartYear >= cfg.Traversal.TargetYear {
		warnings = append(warnings, fmt.Sprintf("start_year %d is not before target_year %d; newer content is walked but kept",
			cfg.Traversal.StartYear, cfg.Traversal.TargetYear))
	}
	if cfg.Safety.MaxDeletionsPerHour > 100 {
		warnings = append(warnings, "more than 100 deletions per hour makes a block likely")
	}
	if cfg.Safety.MinDelaySeconds > cfg.Safety.MeanDelaySeconds {
		warnings = append(warnings, "min_delay_seconds exceeds mean_delay_seconds; every delay will be the minimum")
	}

	if _, err := os.Stat(cfg.Facebook.CookiesPath); err != nil {
		warnings = append(warnings, fmt.Sprintf("cookie export %s not found; a stored session is required", cfg.Facebook.CookiesPath))
	}
	if dir := filepath.Dir(cfg.State.ProgressPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			problems = append(problems, fmt.Sprintf("Cannot create progress directory: %v", err))
		}
	}
	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			problems = append(problems, fmt.Sprintf("Cannot create log directory: %v", err))
		}
	}
	return warnings, problems
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
