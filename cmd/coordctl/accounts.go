package main

import (
	"github.com/spf13/cobra"
)

func newAddUserCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "add-user <user> <senha>",
		Short: "Register a new user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return send("addUser", map[string]any{
				"user":  args[0],
				"senha": args[1],
			})
		},
	}
}

func newLoginCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "login <user> <senha>",
		Short: "Authenticate and print a session token",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return send("login", map[string]any{
				"user":  args[0],
				"senha": args[1],
			})
		},
	}
}

func newListUsersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list-users",
		Short: "List all registered users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return send("listUsers", map[string]any{})
		},
	}
}

func newTimeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "time",
		Short: "Show the coordinator's wall clock and Lamport clock",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return send("getTime", map[string]any{})
		},
	}
}
