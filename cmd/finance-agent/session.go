package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pennywise/finance-client/internal/app"
	"github.com/pennywise/finance-client/internal/core/domain"
)

func newLoginCommand() *cobra.Command {
	var creds domain.Credentials
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and persist the session in the state backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAgent(cmd.Context(), func(ctx context.Context, a *app.Agent) error {
				u, err := a.Session.Login(ctx, creds)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s\n", u.Email)
				if p, ok := a.Registry.CurrentProfile(); ok {
					fmt.Fprintf(cmd.OutOrStdout(), "current profile: %s (%s)\n", p.Name, p.ID)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&creds.Email, "email", "", "account email")
	cmd.Flags().StringVar(&creds.Password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the persisted session and profile selection",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAgent(cmd.Context(), func(ctx context.Context, a *app.Agent) error {
				a.Session.Logout(ctx)
				fmt.Fprintln(cmd.OutOrStdout(), "logged out")
				return nil
			})
		},
	}
}

// requireSession fails when no session was restored.
func requireSession(ctx context.Context, a *app.Agent) error {
	if _, err := a.Session.Current(ctx); err != nil {
		if errors.Is(err, domain.ErrNoSession) {
			return fmt.Errorf("not logged in, run %q with a durable STATE_BACKEND first", serviceName+" login")
		}
		return err
	}
	return nil
}
