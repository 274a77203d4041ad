package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"fbcleanup/pkg/auth"
	"fbcleanup/pkg/browser"
	"fbcleanup/pkg/deletion"
	"fbcleanup/pkg/logger"
	"fbcleanup/pkg/ratelimit"
	"fbcleanup/pkg/safety"
	"fbcleanup/pkg/state"
	"fbcleanup/pkg/stats"
	"fbcleanup/pkg/traversal"
	"fbcleanup/pkg/ui"
	"fbcleanup/pkg/ui/tui"
)

const dateLayout = "2006-01-02"

var (
	// Run command flags
	startDate    string
	endDate      string
	resumeRun    bool
	forceRestart bool
	headless     bool
	useTUI       bool
	skipTrash    bool
	username     string
	cookiesPath  string
	progressPath string
	maxPerHour   int
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Delete Activity Log content older than the cutoff",
	Long: `Walk the mbasic Activity Log from the start year back in time and
delete every post, comment and reaction dated before the cutoff.

The session comes from a stored account (see 'fbcleanup auth import') or
from the cookie export at facebook.cookies_path. Progress is saved after
every page; an interrupted run resumes from the saved month.

A detected Facebook block stops the run with exit status 1. Running again
before the cool-down has passed exits immediately.`,
	Example: `  # Delete everything before 2021 using the config file
  fbcleanup run

  # Narrow the window and watch the dashboard
  fbcleanup run --start-date 2019-12-31 --end-date 2019-01-01 --tui

  # Ignore saved progress and start over
  fbcleanup run --force-restart`,
	Args: cobra.NoArgs,
	Run:  runCleanup,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&startDate, "start-date", "", "newest date to walk from (YYYY-MM-DD); sets the start year")
	runCmd.Flags().StringVar(&endDate, "end-date", "", "cutoff date (YYYY-MM-DD); content before it is deleted")
	runCmd.Flags().BoolVar(&resumeRun, "resume", true, "resume from the saved position")
	runCmd.Flags().BoolVar(&forceRestart, "force-restart", false, "clear saved progress and start over")
	runCmd.Flags().BoolVar(&headless, "headless", false, "run the browser without a window")
	runCmd.Flags().BoolVar(&useTUI, "tui", false, "show the interactive dashboard")
	runCmd.Flags().BoolVar(&skipTrash, "skip-trash", false, "do not empty the trash after traversal")
	runCmd.Flags().StringVarP(&username, "username", "u", "", "Facebook username or profile id")
	runCmd.Flags().StringVar(&cookiesPath, "cookies", "", "cookie export file")
	runCmd.Flags().StringVar(&progressPath, "progress", "", "progress file")
	runCmd.Flags().IntVar(&maxPerHour, "max-per-hour", 0, "hourly deletion cap")
}

func runCleanup(cmd *cobra.Command, args []string) {
	target, start, err := deriveWindow(startDate, endDate)
	if err != nil {
		ui.PrintError("Invalid date range", err.Error())
		os.Exit(1)
	}

	flags := map[string]interface{}{
		"username":     username,
		"cookies":      cookiesPath,
		"progress":     progressPath,
		"headless":     headless,
		"tui":          useTUI,
		"skip-trash":   skipTrash,
		"max-per-hour": maxPerHour,
		"start-year":   start,
	}
	if !target.IsZero() {
		flags["target-year"] = target.Year()
	}
	cfg, err := loadConfig(flags)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(1)
	}
	if target.IsZero() {
		target = cfg.TargetDate()
	}
	if start == 0 {
		start = cfg.Traversal.StartYear
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		display     ui.Display
		waitDisplay func()
		log         logger.Logger
		dash        *tui.TUI
	)
	// fatal tears the dashboard down before exiting so the terminal is restored
	fatal := func(msg string, detail ...interface{}) {
		if dash != nil {
			dash.Quit()
			_ = dash.Wait()
		}
		ui.PrintError(msg, detail...)
		os.Exit(1)
	}

	if cfg.Output.TUI {
		dash = tui.New(stop)
		cfg.Logging.NoColor = true
		log, err = logger.NewWithWriter(&cfg.Logging, dash.LogWriter())
		dash.Start()
		display = dash
		waitDisplay = func() {
			if err := dash.Wait(); err != nil {
				log.WithError(err).Warn("dashboard exited with error")
			}
		}
	} else {
		if quiet && cfg.Logging.Level == "info" {
			cfg.Logging.Level = "error"
		}
		log, err = logger.New(&cfg.Logging)
		display = ui.NewConsoleDisplay(quiet)
	}
	if err != nil {
		fatal("Failed to initialize logger", err.Error())
	}
	logger.SetGlobal(log)
	log.WithField("version", version).Info("fbcleanup starting")

	states, err := state.NewManager(cfg.State.ProgressPath)
	if err != nil {
		fatal("Failed to open progress file", err.Error())
	}
	states.WithLogger(log)
	if forceRestart {
		if err := states.ClearState(); err != nil {
			fatal("Failed to clear progress", err.Error())
		}
		display.Log("WARN", "Saved progress cleared")
	}

	creds, err := auth.NewManager()
	if err != nil {
		log.WithError(err).Warn("credential store unavailable, using the cookie file only")
	}
	bundle, source, err := creds.ResolveBundle(cfg.Facebook.Username, cfg.Facebook.CookiesPath)
	if err != nil {
		if dash != nil {
			dash.Quit()
			_ = dash.Wait()
		}
		ui.PrintError("No usable Facebook session", err.Error())
		auth.ShowQuickExportGuide(os.Stdout)
		os.Exit(1)
	}
	log.WithFields(map[string]interface{}{
		"source":  string(source),
		"user_id": bundle.UserID(),
	}).Info("session cookies loaded")

	limiterCfg := ratelimit.ConfigFromSafety(cfg.Safety)
	limiterCfg.Logger = log

	var chrome *browser.ChromePage
	r := &runner{
		cfg:       cfg,
		target:    target,
		startYear: start,
		resume:    resumeRun && !forceRestart,
		skipTrash: cfg.Output.SkipTrash,
		open: func(ctx context.Context) (browser.Page, error) {
			// The browser outlives a cancelled run so the item in flight can finish
			page, err := browser.Launch(context.WithoutCancel(ctx), browser.Options{
				Browser:           cfg.Browser,
				NavigationTimeout: cfg.Traversal.NavigationTimeout,
				Cookies:           bundle.BrowserCookies(),
				Logger:            log,
			})
			if err != nil {
				return nil, err
			}
			chrome = page
			return page, nil
		},
		states:      states,
		reporter:    stats.New().WithLogger(log),
		limiter:     ratelimit.New(limiterCfg),
		blocks:      safety.NewBlockManagerFromConfig(cfg.Safety).WithLogger(log),
		detector:    safety.NewErrorDetector().WithLogger(log),
		session:     auth.NewSessionValidator(log),
		trash:       deletion.NewTrashCleanup(log),
		display:     display,
		waitDisplay: waitDisplay,
		notifier:    ui.NewNotifier(cfg.Output.Notifications),
		out:         os.Stdout,
		log:         log,
	}

	code := r.run(ctx)
	if chrome != nil {
		chrome.Close()
	}
	if code != exitOK {
		os.Exit(code)
	}
}

// deriveWindow turns the date flags into a cutoff and a start year. Zero
// values mean the configuration decides. Without --start-date the walk
// starts in the cutoff's own year, unless the cutoff is January 1.
func deriveWindow(startFlag, endFlag string) (time.Time, int, error) {
	var target time.Time
	var startYear int

	if endFlag != "" {
		t, err := time.ParseInLocation(dateLayout, endFlag, time.Local)
		if err != nil {
			return time.Time{}, 0, fmt.Errorf("--end-date: %w", err)
		}
		target = t
		startYear = t.Year()
		if t.Month() == time.January && t.Day() == 1 {
			startYear--
		}
	}

	if startFlag != "" {
		t, err := time.ParseInLocation(dateLayout, startFlag, time.Local)
		if err != nil {
			return time.Time{}, 0, fmt.Errorf("--start-date: %w", err)
		}
		if !target.IsZero() && !t.After(target) {
			return time.Time{}, 0, fmt.Errorf("--start-date %s must be after --end-date %s", startFlag, endFlag)
		}
		startYear = t.Year()
	}

	if startYear != 0 && startYear < traversal.MinSupportedYear {
		return time.Time{}, 0, fmt.Errorf("start year %d is before Facebook existed", startYear)
	}
	return target, startYear, nil
}
