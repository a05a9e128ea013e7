package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/agenthive/agenthive/internal/plan"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show coordination state: agents, queues, current plan, learning stats",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, st, err := openStore()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		fmt.Fprintln(out, color.CyanString("agenthive %s", version))
		fmt.Fprintf(out, "data root: %s\n\n", st.Root())

		fmt.Fprintln(out, color.New(color.Bold).Sprint("Agents"))
		if len(cfg.Agents) == 0 {
			fmt.Fprintln(out, "  (none registered)")
		}
		for _, name := range cfg.KnownAgents() {
			inbox := st.Count("messages/" + name + "/inbox")
			fmt.Fprintf(out, "  %-24s inbox: %d\n", name, inbox)
		}

		fmt.Fprintln(out, "")
		fmt.Fprintln(out, color.New(color.Bold).Sprint("Current plan"))
		current, err := plan.NewTracker(st).CurrentPlan()
		if err != nil {
			return err
		}
		if current == nil {
			fmt.Fprintln(out, "  (no active plan)")
		} else {
			fmt.Fprintf(out, "  %s  status=%s  phase=%d  progress=%.1f%%\n",
				current.ID, current.Status, current.Progress.CurrentPhase,
				current.Progress.ProgressPercentage)
		}

		fmt.Fprintln(out, "")
		fmt.Fprintln(out, color.New(color.Bold).Sprint("Learning"))
		fmt.Fprintf(out, "  patterns: %d  rules: %d  insights: %d\n",
			st.Count("patterns"), st.Count("rules"), st.Count("insights"))

		return nil
	},
}
