package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mverkerk/opsboard/internal/config"
	"github.com/mverkerk/opsboard/internal/store"
	"github.com/mverkerk/opsboard/pkg/models"
	"github.com/spf13/cobra"
)

func newTagCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tag",
		Short: "Manage tags",
	}
	cmd.AddCommand(newTagAddCmd())
	cmd.AddCommand(newTagListCmd())
	cmd.AddCommand(newTagRemoveCmd())
	return cmd
}

func newTagAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a tag (no-op if it already exists)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.TrimSpace(args[0])
			if name == "" {
				return errors.New("tag name is required")
			}
			if len(name) > models.MaxTagNameLen {
				return fmt.Errorf("tag name exceeds %d characters", models.MaxTagNameLen)
			}
			home := config.MustHomeFrom(cmd.Context())
			st, err := store.Open(home)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			if existing, err := st.GetTagByName(cmd.Context(), name); err == nil {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Tag %q already exists (id %d)\n", existing.Name, existing.ID)
				return nil
			} else if !errors.Is(err, store.ErrNotFound) {
				return err
			}

			id, err := st.CreateTag(cmd.Context(), name)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Created tag %q (id %d)\n", name, id)
			return nil
		},
	}
	return cmd
}

func newTagListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tags",
		RunE: func(cmd *cobra.Command, args []string) error {
			home := config.MustHomeFrom(cmd.Context())
			st, err := store.Open(home)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			tags, err := st.ListTags(cmd.Context())
			if err != nil {
				return err
			}
			if len(tags) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No tags.")
				return nil
			}
			for _, tg := range tags {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "- %d %s\n", tg.ID, tg.Name)
			}
			return nil
		},
	}
	return cmd
}

func newTagRemoveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove <id>",
		Short: "Delete a tag and its task links",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid tag id %q", args[0])
			}
			home := config.MustHomeFrom(cmd.Context())
			st, err := store.Open(home)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			if err := st.DeleteTag(cmd.Context(), id); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("tag %d not found", id)
				}
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted tag %d\n", id)
			return nil
		},
	}
	return cmd
}
