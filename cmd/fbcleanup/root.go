package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"fbcleanup/pkg/config"
	"fbcleanup/pkg/logger"
	"fbcleanup/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile    string
	logLevel      string
	logFile       string
	noColor       bool
	notifications bool
	quiet         bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "fbcleanup",
	Short: "Delete old Facebook activity through the mbasic interface",
	Long: `fbcleanup walks your Facebook Activity Log month by month on
mbasic.facebook.com and deletes posts, comments and reactions older
than a cutoff date.

Features:
  - Conservative pacing with an hourly action cap
  - Block detection with a cool-down and slower pacing afterwards
  - Crash-safe progress file, so an interrupted run resumes where it stopped
  - Session cookies kept in the system keychain or an encrypted file
  - Optional terminal dashboard and desktop notifications`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		ui.SetColorEnabled(!noColor)
		logger.Version = version

		// The dashboard owns the screen; the logo would only flicker
		if quiet || cmd.Name() == "version" || cmd.Name() == "help" {
			return
		}
		if tui, _ := cmd.Flags().GetBool("tui"); tui {
			return
		}
		ui.PrintLogo()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./fbcleanup.yaml or "+config.DefaultConfigPath()+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write logs to this file")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVar(&notifications, "notify", false, "enable desktop notifications")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress everything but errors and the summary")

	rootCmd.SetVersionTemplate(`fbcleanup {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "fbcleanup %s (commit: %s, built: %s)\n", version, gitCommit, buildDate)
		fmt.Fprintf(cmd.OutOrStdout(), "Go Version: %s\nOS/Arch: %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}

// globalFlags collects the persistent flags in the shape
// config.MergeCommandLineFlags expects.
func globalFlags() map[string]interface{} {
	return map[string]interface{}{
		"log-level": logLevel,
		"log-file":  logFile,
		"no-color":  noColor,
		"notify":    notifications,
	}
}

// loadConfig loads configuration with the global flags plus extra merged in
func loadConfig(extra map[string]interface{}) (*config.Config, error) {
	flags := globalFlags()
	for k, v := range extra {
		flags[k] = v
	}
	return config.Load(configFile, flags)
}

// initLogger installs the global logger for commands other than run
func initLogger(cfg *config.Config) {
	if quiet && cfg.Logging.Level == "info" {
		cfg.Logging.Level = "error"
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		ui.PrintWarning("Failed to initialize logger", err.Error())
	}
}
