package ui

import (
	"fmt"
	"strings"

	"github.com/danielbelay23/data-pipelines/pkg/session"
)

const (
	barFull  = "█"
	barEmpty = "░"
	barWidth = 20
)

// ProgressBar renders collected against target; a target of 0 renders the count only
func ProgressBar(collected, target int) string {
	if target <= 0 {
		return fmt.Sprintf("%d collected", collected)
	}
	filled := collected * barWidth / target
	if filled > barWidth {
		filled = barWidth
	}
	bar := strings.Repeat(barFull, filled) + strings.Repeat(barEmpty, barWidth-filled)
	return fmt.Sprintf("[%s] %d/%d", bar, collected, target)
}

// PrintSummary prints the end-of-run report
func PrintSummary(s session.Summary, timelineTarget int) {
	fmt.Fprintln(Out)
	PrintHighlight("Session " + s.SessionID)
	PrintInfo("Runtime", fmt.Sprintf("%.1fs", s.RuntimeSeconds))

	if s.FollowingRan {
		PrintInfo("Following", fmt.Sprintf("+%d (total %d, %s)", s.NewFollowing, s.FollowingTotal, s.FollowingOutcome))
	} else {
		PrintInfo("Following", Dim("skipped: "+s.GateReason))
	}
	PrintInfo("Timeline", fmt.Sprintf("%s (total %d, %s)",
		ProgressBar(s.TweetsCollected, timelineTarget), s.TweetsTotal, s.TimelineOutcome))
	PrintInfo("Calls", fmt.Sprintf("%d", s.Calls))

	if s.Errors > 0 {
		PrintWarning(fmt.Sprintf("%d error events recorded", s.Errors))
	}
	if s.Success {
		PrintSuccess("Run completed")
	} else {
		PrintError("Run interrupted")
	}
}
