package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var sweepMaxAgeHours int

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete coordination logs older than the retention window",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, st, err := openStore()
		if err != nil {
			return err
		}
		hours := sweepMaxAgeHours
		if hours <= 0 {
			hours = cfg.Logs.RetentionHours
		}
		if hours <= 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "log retention is disabled (retention_hours=0), nothing to sweep")
			return nil
		}
		removed, err := st.SweepLogs(time.Duration(hours) * time.Hour)
		if err != nil {
			return err
		}
		archived := st.Count("archive/expired")
		fmt.Fprintf(cmd.OutOrStdout(), "removed %d log file(s) older than %dh (%d expired messages archived)\n",
			removed, hours, archived)
		return nil
	},
}

func init() {
	sweepCmd.Flags().IntVar(&sweepMaxAgeHours, "max-age", 0,
		"maximum log age in hours (defaults to logs.retention_hours)")
}
