package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/queryfire/queryfire/internal/dashboard"
	"github.com/queryfire/queryfire/internal/stream"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		streamURL string
		timeout   time.Duration
	)

	cmd := &cobra.Command{
		Use:           "queryfire-watch",
		Short:         "Live terminal dashboard for a running load run",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client := stream.NewClient(stream.Config{URL: streamURL, Timeout: timeout})
			defer client.Close()

			dash, err := dashboard.New(client)
			if err != nil {
				return err
			}
			defer dash.Close()

			return dash.Run(cmd.Context())
		},
	}
	cmd.Flags().StringVarP(&streamURL, "url", "u", "http://localhost:9190/events", "Collector SSE stream URL")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Stream connect timeout")
	return cmd
}
