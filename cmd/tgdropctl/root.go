package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var usernameFlag string

	return buildRootCommand(newCommandContext(&configFlag, &usernameFlag))
}

func buildRootCommand(ctx *commandContext) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "tgdropctl",
		Short:         "Inspect deep links and stored bundles",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(ctx.configFlag, "config", "c", "", "Configuration file path (defaults to $APP_CONFIG)")
	rootCmd.PersistentFlags().StringVar(ctx.usernameFlag, "bot", "", "Bot username used to build links (defaults to the configured one)")

	rootCmd.AddCommand(newLinkCommand(ctx))
	rootCmd.AddCommand(newBundlesCommand(ctx))

	return rootCmd
}
