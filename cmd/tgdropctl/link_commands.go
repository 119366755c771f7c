package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ivankudzin/tgdrop/internal/pkg/deeplink"
)

func newLinkCommand(ctx *commandContext) *cobra.Command {
	linkCmd := &cobra.Command{
		Use:   "link",
		Short: "Encode and decode deep link tokens",
	}

	linkCmd.AddCommand(newLinkEncodeCommand(ctx))
	linkCmd.AddCommand(newLinkDecodeCommand())

	return linkCmd
}

func newLinkEncodeCommand(ctx *commandContext) *cobra.Command {
	var unlocked bool

	cmd := &cobra.Command{
		Use:   "encode <id>",
		Short: "Print the token and start link for a bundle id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("bundle id must be a positive integer, got %q", args[0])
			}

			token := deeplink.LockedToken(id)
			if unlocked {
				token = deeplink.UnlockedToken(id)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Token:  %s\n", deeplink.Encode(token))
			if username := ctx.botUsername(); username != "" {
				fmt.Fprintf(out, "Link:   %s\n", deeplink.Link(username, token))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&unlocked, "unlocked", false, "Encode the unlock token instead of the public one")
	return cmd
}

func newLinkDecodeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "decode <token>",
		Short: "Show the access level and bundle id carried by a token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := deeplink.Decode(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Access: %s\n", token.Access)
			fmt.Fprintf(out, "ID:     %d\n", token.ContentID)
			return nil
		},
	}
}
