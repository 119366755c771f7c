package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ivankudzin/tgdrop/internal/app/botapp"
	"github.com/ivankudzin/tgdrop/internal/domain/model"
	"github.com/ivankudzin/tgdrop/internal/pkg/deeplink"
)

const stampLayout = "2006-01-02 15:04"

func newBundlesCommand(ctx *commandContext) *cobra.Command {
	bundlesCmd := &cobra.Command{
		Use:   "bundles",
		Short: "Inspect the content store",
	}

	bundlesCmd.AddCommand(newBundlesListCommand(ctx))
	bundlesCmd.AddCommand(newBundlesShowCommand(ctx))

	return bundlesCmd
}

func newBundlesListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored bundles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(store botapp.BundleStore) error {
				bundles, err := store.List(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(bundles) == 0 {
					fmt.Fprintln(out, "No bundles stored")
					return nil
				}

				rows := make([][]string, 0, len(bundles))
				for _, b := range bundles {
					rows = append(rows, []string{
						strconv.FormatInt(b.ID, 10),
						strconv.Itoa(len(b.VideoRefs)),
						formatStamp(b),
						deeplink.Encode(deeplink.LockedToken(b.ID)),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Videos", "Created", "Token"},
					rows,
					[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft},
				))
				fmt.Fprintf(out, "%d bundle(s)\n", len(bundles))
				return nil
			})
		},
	}
}

func newBundlesShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one bundle with its media references and links",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("bundle id must be a positive integer, got %q", args[0])
			}

			return ctx.withStore(cmd.Context(), func(store botapp.BundleStore) error {
				bundle, err := store.GetByID(cmd.Context(), id)
				if errors.Is(err, model.ErrBundleNotFound) {
					return fmt.Errorf("bundle %d not found", id)
				}
				if err != nil {
					return err
				}

				rows := [][]string{{"cover", string(bundle.CoverRef)}}
				for i, ref := range bundle.VideoRefs {
					rows = append(rows, []string{fmt.Sprintf("video %d", i+1), string(ref)})
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Bundle %d (created %s)\n", bundle.ID, formatStamp(bundle))
				fmt.Fprintln(out, renderTable([]string{"Item", "File ID"}, rows, nil))
				if username := ctx.botUsername(); username != "" {
					fmt.Fprintf(out, "Public link: %s\n", deeplink.Link(username, deeplink.LockedToken(bundle.ID)))
					fmt.Fprintf(out, "Direct link: %s\n", deeplink.Link(username, deeplink.UnlockedToken(bundle.ID)))
				}
				return nil
			})
		},
	}
}

func formatStamp(b model.Bundle) string {
	if b.CreatedAt.IsZero() {
		return "-"
	}
	return b.CreatedAt.Local().Format(stampLayout)
}
