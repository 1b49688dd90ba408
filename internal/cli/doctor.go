package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/mverkerk/opsboard/internal/config"
	"github.com/mverkerk/opsboard/internal/store"
	"github.com/spf13/cobra"
)

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Verify the home directory and database are usable",
		RunE: func(cmd *cobra.Command, args []string) error {
			home := config.MustHomeFrom(cmd.Context())

			var problems []string

			if err := os.MkdirAll(home, 0o755); err != nil {
				problems = append(problems, fmt.Sprintf("home %s not writable: %v", home, err))
			}

			// Opening the store applies pending migrations.
			if st, err := store.Open(home); err != nil {
				problems = append(problems, fmt.Sprintf("open database: %v", err))
			} else {
				if _, err := st.ListUsers(cmd.Context()); err != nil {
					problems = append(problems, fmt.Sprintf("query database: %v", err))
				}
				_ = st.Close()
			}

			if len(problems) > 0 {
				for _, p := range problems {
					_, _ = fmt.Fprintln(cmd.ErrOrStderr(), p)
				}
				return errors.New("doctor checks failed")
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
	return cmd
}
