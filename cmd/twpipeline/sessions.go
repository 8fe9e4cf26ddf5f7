package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/danielbelay23/data-pipelines/pkg/session"
	"github.com/danielbelay23/data-pipelines/pkg/ui"
)

var (
	sessionsLimit int
	sessionsJSON  bool
	sessionID     string
)

// sessionsCmd represents the sessions command
var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Show recent session log entries",
	Example: `  # Last 20 entries
  twpipeline sessions

  # Every entry of one session as JSON
  twpipeline sessions --id 3f2a... --json`,
	Args: cobra.NoArgs,
	Run:  runSessions,
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.Flags().IntVarP(&sessionsLimit, "limit", "n", 20, "number of entries to show")
	sessionsCmd.Flags().StringVar(&sessionID, "id", "", "show only entries of this session")
	sessionsCmd.Flags().BoolVar(&sessionsJSON, "json", false, "print raw JSON")
}

func runSessions(cmd *cobra.Command, args []string) {
	cfg, log, err := loadConfig(nil)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(1)
	}
	sessionLog := session.NewLog(cfg.Storage.Path(cfg.Storage.SessionLogFile), log)

	var entries []session.Entry
	if sessionID != "" {
		entries, err = sessionLog.BySession(sessionID)
	} else {
		entries, err = sessionLog.Recent(sessionsLimit)
	}
	if err != nil {
		ui.PrintError("Failed to read session log", err.Error())
		os.Exit(1)
	}

	if sessionsJSON {
		enc := json.NewEncoder(ui.Out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(entries); err != nil {
			ui.PrintError("Failed to encode entries", err.Error())
			os.Exit(1)
		}
		return
	}

	if len(entries) == 0 {
		ui.PrintWarning("No session log entries")
		return
	}
	for _, e := range entries {
		line := fmt.Sprintf("%s  %-8.8s  %-18s calls=%d following+%d tweets+%d errors=%d",
			e.Timestamp, e.SessionID, e.Status, e.Calls, e.NewFollowingCount, e.TweetsCollected, len(e.Errors))
		if reason, ok := e.Str("reason"); ok {
			line += " reason=" + reason
		}
		if outcome, ok := e.Str("outcome"); ok {
			line += " outcome=" + outcome
		}
		fmt.Fprintln(ui.Out, line)
	}
}
