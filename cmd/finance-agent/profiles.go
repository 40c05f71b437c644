package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pennywise/finance-client/internal/app"
	"github.com/pennywise/finance-client/internal/core/domain"
)

func newProfilesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "List and switch finance profiles",
	}
	cmd.AddCommand(newProfilesListCommand(), newProfilesSwitchCommand())
	return cmd
}

func newProfilesListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the profiles of the logged-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAgent(cmd.Context(), func(ctx context.Context, a *app.Agent) error {
				if err := requireSession(ctx, a); err != nil {
					return err
				}
				if _, err := a.Registry.FetchProfiles(ctx); err != nil {
					return err
				}
				return printOptions(cmd.OutOrStdout(), a.Registry.ProfileOptions())
			})
		},
	}
}

func newProfilesSwitchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "switch <profile-id>",
		Short: "Select the profile that scopes all finance data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAgent(cmd.Context(), func(ctx context.Context, a *app.Agent) error {
				if err := requireSession(ctx, a); err != nil {
					return err
				}
				p, err := a.Registry.SwitchProfile(ctx, domain.ProfileID(args[0]))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "switched to %s (%s)\n", p.Name, p.ID)
				return nil
			})
		},
	}
}

func printOptions(w io.Writer, opts []domain.ProfileOption) error {
	if len(opts) == 0 {
		_, err := fmt.Fprintln(w, "no profiles")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "\tID\tNAME\tCOLOR")
	for _, o := range opts {
		mark := ""
		if o.IsActive {
			mark = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", mark, o.ID, o.Name, o.Color)
	}
	return tw.Flush()
}
