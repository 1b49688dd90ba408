package cli

import (
	"fmt"

	"github.com/mverkerk/opsboard/internal/config"
	"github.com/mverkerk/opsboard/internal/store"
	"github.com/spf13/cobra"
)

func newSummaryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show task counts by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			home := config.MustHomeFrom(cmd.Context())
			st, err := store.Open(home)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			sum, err := st.Summary(cmd.Context(), nil)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "total        %d\n", sum.Total)
			_, _ = fmt.Fprintf(out, "not_started  %d\n", sum.NotStarted)
			_, _ = fmt.Fprintf(out, "in_progress  %d\n", sum.InProgress)
			_, _ = fmt.Fprintf(out, "completed    %d\n", sum.Completed)
			_, _ = fmt.Fprintf(out, "suspended    %d\n", sum.Suspended)
			_, _ = fmt.Fprintf(out, "overdue      %d\n", sum.Overdue)
			return nil
		},
	}
	return cmd
}
