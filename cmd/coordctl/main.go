package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/GabrielBalbine/ProjetoSistemasDistribuidos/internal/relay"
)

// coordctl is a non-interactive admin client: each command sends exactly one
// request through the broker and prints the coordinator's JSON reply.

var (
	brokerAddr string
	token      string
	timeout    time.Duration

	requester *relay.Requester
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "coordctl",
		Short: "Admin client for the messaging coordinator",
		Long: `coordctl sends single requests to the active coordinator through the
request broker: account management, channel management, publishing and
read-only listings.`,
		PersistentPreRunE: connect,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if requester != nil {
				return requester.Close()
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&brokerAddr, "broker", "tcp://localhost:5555", "Request broker frontend endpoint")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "Session token from a previous login")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Second, "Request timeout")

	rootCmd.AddCommand(newAddUserCommand())
	rootCmd.AddCommand(newLoginCommand())
	rootCmd.AddCommand(newAddChannelCommand())
	rootCmd.AddCommand(newSubscribeCommand())
	rootCmd.AddCommand(newPublishCommand())
	rootCmd.AddCommand(newMessageCommand())
	rootCmd.AddCommand(newListUsersCommand())
	rootCmd.AddCommand(newListChannelsCommand())
	rootCmd.AddCommand(newTimeCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func connect(cmd *cobra.Command, args []string) error {
	r, err := relay.NewRequester(brokerAddr, timeout)
	if err != nil {
		return err
	}
	requester = r
	return nil
}

// send performs the request and pretty-prints the reply.
func send(service string, data map[string]any) error {
	reply, err := requester.Do(service, data)
	if err != nil {
		return err
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, reply, "", "  "); err != nil {
		fmt.Println(string(reply))
		return nil
	}
	fmt.Println(pretty.String())
	return nil
}
