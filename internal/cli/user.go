package cli

import (
	"errors"
	"fmt"

	"github.com/mverkerk/opsboard/internal/config"
	"github.com/mverkerk/opsboard/internal/store"
	"github.com/mverkerk/opsboard/pkg/models"
	"github.com/spf13/cobra"
)

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts",
	}
	cmd.AddCommand(newUserAddCmd())
	cmd.AddCommand(newUserListCmd())
	return cmd
}

func newUserAddCmd() *cobra.Command {
	var (
		name         string
		email        string
		passwordHash string
		role         string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create an account (--name, --email, --role admin|manager|user)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" || email == "" {
				return errors.New("--name and --email are required")
			}
			if !models.ValidRole(role) {
				return fmt.Errorf("invalid role %q (want admin, manager, or user)", role)
			}
			home := config.MustHomeFrom(cmd.Context())
			st, err := store.Open(home)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			if existing, err := st.GetUserByEmail(cmd.Context(), email); err == nil {
				return fmt.Errorf("email %s already taken by %q (id %d)", email, existing.Name, existing.ID)
			} else if !errors.Is(err, store.ErrNotFound) {
				return err
			}

			id, err := st.CreateUser(cmd.Context(), name, email, passwordHash, role)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Created %s %q (id %d)\n", role, name, id)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&email, "email", "", "Email (unique)")
	cmd.Flags().StringVar(&passwordHash, "password-hash", "", "Opaque password hash stored verbatim (auth is handled upstream)")
	cmd.Flags().StringVar(&role, "role", models.RoleUser, "Role: admin, manager, or user")
	return cmd
}

func newUserListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			home := config.MustHomeFrom(cmd.Context())
			st, err := store.Open(home)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			users, err := st.ListUsers(cmd.Context())
			if err != nil {
				return err
			}
			if len(users) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No accounts.")
				return nil
			}
			for _, u := range users {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "- %d %s <%s> (%s)\n", u.ID, u.Name, u.Email, u.Role)
			}
			return nil
		},
	}
	return cmd
}
