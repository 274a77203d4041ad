package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"fbcleanup/pkg/config"
	"fbcleanup/pkg/safety"
	"fbcleanup/pkg/state"
	"fbcleanup/pkg/stats"
	"fbcleanup/pkg/ui"
)

var confirmClear bool

// stateCmd represents the state command
var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Inspect or reset saved progress",
	Long: `Inspect or reset the progress file that lets an interrupted run resume.

The file lives at state.progress_path (default data/progress.json) with a
.bak copy of the previous version beside it.`,
}

// stateShowCmd represents the state show command
var stateShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show saved progress and block status",
	Args:  cobra.NoArgs,
	Run:   runStateShow,
}

// stateClearCmd represents the state clear command
var stateClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete saved progress",
	Long: `Delete the progress file. The next run starts from the configured
start year with no block on record.`,
	Args: cobra.NoArgs,
	Run:  runStateClear,
}

func init() {
	rootCmd.AddCommand(stateCmd)
	stateCmd.AddCommand(stateShowCmd)
	stateCmd.AddCommand(stateClearCmd)

	stateCmd.PersistentFlags().StringVar(&progressPath, "progress", "", "progress file")
	stateClearCmd.Flags().BoolVarP(&confirmClear, "yes", "y", false, "do not ask for confirmation")
}

func openState() (*config.Config, *state.Manager) {
	cfg, err := loadConfig(map[string]interface{}{"progress": progressPath})
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(1)
	}
	initLogger(cfg)

	m, err := state.NewManager(cfg.State.ProgressPath)
	if err != nil {
		ui.PrintError("Failed to open progress file", err.Error())
		os.Exit(1)
	}
	return cfg, m
}

func runStateShow(cmd *cobra.Command, args []string) {
	cfg, m := openState()
	if !m.Exists() {
		ui.PrintInfo("No saved progress", m.Path())
		return
	}
	ui.PrintInfo("Progress file", m.Path())
	st := m.LoadState()
	if st == nil {
		ui.PrintWarning("Progress file is unreadable; the next run starts fresh")
		return
	}
	writeStateReport(cmd.OutOrStdout(), cfg.Safety, st, time.Now())
}

// writeStateReport renders block status followed by the stats report for a
// saved state
func writeStateReport(w io.Writer, s config.SafetyConfig, st *state.ProgressState, now time.Time) {
	blocks := safety.NewBlockManagerFromConfig(s).WithClock(func() time.Time { return now })
	var last *time.Time
	if st.LastBlockTime != nil && !st.LastBlockTime.IsZero() {
		t := st.LastBlockTime.Time
		last = &t
	}
	blocks.Restore(st.BlockDetected, st.BlockCount, last)
	info := blocks.Info()

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Total Deleted: %d (today: %d)\n", st.TotalDeleted, st.DeletedToday)
	fmt.Fprintf(w, "Last Updated: %s\n", st.LastUpdated.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Block Detected: %t (count: %d)\n", info.Detected, info.Count)
	switch {
	case info.Detected && !info.CanContinue && info.ResumeAt != nil:
		fmt.Fprintf(w, "Cooling down until %s (%s left)\n",
			info.ResumeAt.Format("2006-01-02 15:04"), ui.FormatDuration(info.ResumeAt.Sub(now)))
	case info.Detected && info.LastBlockTime != nil:
		fmt.Fprintf(w, "Cool-down over since %s\n", info.ResumeAt.Format("2006-01-02 15:04"))
	case info.Detected:
		fmt.Fprintln(w, "Block time unknown; the next run may proceed")
	}
	fmt.Fprintln(w)

	reporter := stats.NewWithStart(st.SessionStart.Time).WithClock(func() time.Time { return now })
	_ = reporter.UpdateFromState(st)
	fmt.Fprintln(w, reporter.GenerateReport(st))
}

func runStateClear(cmd *cobra.Command, args []string) {
	_, m := openState()
	if !m.Exists() {
		ui.PrintInfo("No saved progress", m.Path())
		return
	}

	if !confirmClear {
		reader := bufio.NewReader(os.Stdin)
		fmt.Printf("Delete saved progress at %s? (y/N): ", m.Path())
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return
		}
	}

	if err := m.ClearState(); err != nil {
		ui.PrintError("Failed to clear progress", err.Error())
		os.Exit(1)
	}
	ui.PrintSuccess("Saved progress cleared")
}
