package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func loginCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Log in to X in a browser and store the session cookies",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(true)
			if err != nil {
				return err
			}
			return a.TriggerLogin(cmd.Context())
		},
	}
}

func logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the stored session cookies",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(true)
			if err != nil {
				return err
			}
			return a.TriggerLogout()
		},
	}
}

func statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether a stored X session is available",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(true)
			if err != nil {
				return err
			}
			if a.IsAuthenticated() {
				fmt.Fprintln(cmd.OutOrStdout(), "Logged in")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Not logged in, requests use a guest token")
			}
			return nil
		},
	}
}
