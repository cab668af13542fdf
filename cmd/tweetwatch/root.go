package main

import (
	"github.com/spf13/cobra"
)

type rootOptions struct {
	server string
	config string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "tweetwatch",
		Short:         "Periodic tweet sentiment watches",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.server, "server", "http://localhost:8080", "Base URL of the tweetwatch daemon")
	rootCmd.PersistentFlags().StringVarP(&opts.config, "config", "c", "", "Configuration file path (serve only)")

	rootCmd.AddCommand(newServeCommand(opts))
	rootCmd.AddCommand(newStartCommand(opts))
	rootCmd.AddCommand(newConfigureCommand(opts))
	rootCmd.AddCommand(newShowCommand(opts))
	rootCmd.AddCommand(newReminderCommand(opts))

	return rootCmd
}
