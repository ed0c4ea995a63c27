package main

import (
	"time"

	"github.com/spf13/cobra"
)

func newAddChannelCommand() *cobra.Command {
	var desc string
	cmd := &cobra.Command{
		Use:   "add-channel <titulo>",
		Short: "Create a channel (requires --token)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return send("addChannel", map[string]any{
				"token":  token,
				"titulo": args[0],
				"desc":   desc,
			})
		},
	}
	cmd.Flags().StringVar(&desc, "desc", "", "Channel description")
	return cmd
}

func newSubscribeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "subscribe <channel>",
		Short: "Subscribe to a channel (requires --token)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return send("subscribe", map[string]any{
				"token":   token,
				"channel": args[0],
			})
		},
	}
}

func newPublishCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "publish <channel> <message>",
		Short: "Publish a message to a channel (requires --token and subscription)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return send("publish", map[string]any{
				"token":     token,
				"channel":   args[0],
				"message":   args[1],
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			})
		},
	}
}

func newMessageCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "message <dst-user> <message>",
		Short: "Send a direct message to a user (requires --token)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return send("message", map[string]any{
				"token":     token,
				"dst":       args[0],
				"message":   args[1],
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			})
		},
	}
}

func newListChannelsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list-channels",
		Short: "List all channels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return send("listChannels", map[string]any{})
		},
	}
}
