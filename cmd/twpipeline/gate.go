package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/danielbelay23/data-pipelines/pkg/ui"
)

var gateSample bool

// gateCmd represents the gate command
var gateCmd = &cobra.Command{
	Use:   "gate",
	Short: "Show whether the following collection is due",
	Long: `Evaluate the schedule gate against the session log as of now.

Below the minimum interval the following list is skipped, past the maximum it
is forced, and in between the chance of running rises linearly. With --sample
one draw is taken, exactly as a run would.`,
	Args: cobra.NoArgs,
	Run:  runGate,
}

func init() {
	rootCmd.AddCommand(gateCmd)
	gateCmd.Flags().BoolVar(&gateSample, "sample", false, "draw once and report the outcome")
}

func runGate(cmd *cobra.Command, args []string) {
	cfg, log, err := loadConfig(nil)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(1)
	}
	a, err := newApp(cfg, log)
	if err != nil {
		ui.PrintError("Failed to initialize", err.Error())
		os.Exit(1)
	}
	defer a.Close()

	now := time.Now()
	if !gateSample {
		eval, err := a.gate.Evaluate(now)
		if err != nil {
			ui.PrintError("Failed to evaluate gate", err.Error())
			os.Exit(1)
		}
		ui.PrintInfo("Reason", string(eval.Reason))
		if eval.LastRun != nil {
			ui.PrintInfo("Last run", eval.LastRun.In(a.loc).Format(time.RFC3339))
		} else {
			ui.PrintInfo("Last run", "never")
		}
		ui.PrintInfo("Hours since", fmt.Sprintf("%.1f", eval.HoursSince))
		ui.PrintInfo("Run probability", fmt.Sprintf("%.3f", eval.Probability))
		return
	}

	d, err := a.gate.Decide(now)
	if err != nil {
		ui.PrintError("Failed to evaluate gate", err.Error())
		os.Exit(1)
	}
	ui.PrintInfo("Reason", string(d.Reason))
	ui.PrintInfo("Hours since", fmt.Sprintf("%.1f", d.HoursSince))
	ui.PrintInfo("Run probability", fmt.Sprintf("%.3f", d.Probability))
	ui.PrintInfo("Draw", fmt.Sprintf("%.3f", d.Draw))
	if d.Run {
		ui.PrintSuccess("Following collection would run")
	} else {
		ui.PrintWarning("Following collection would be skipped")
	}
}
