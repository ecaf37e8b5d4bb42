package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var inspectTop int

// inspectCmd shows chain statistics
var inspectCmd = &cobra.Command{
	Use:   "inspect [user...]",
	Short: "Show chain statistics for users",
	Long: `Shows chain statistics for the given users. Without arguments every user
stored in a store that can list its chains (postgres) is inspected.`,
	RunE:  runInspect,
}

func init() {
	inspectCmd.Flags().IntVar(&inspectTop, "top", 10, "number of most frequent links to list")
}

func runInspect(cmd *cobra.Command, args []string) error {
	svc, closeStore, err := newService(cmd.Context())
	if err != nil {
		return err
	}
	defer closeStore()

	if len(args) == 0 {
		args, err = svc.Users(cmd.Context())
		if err != nil {
			return err
		}
		if len(args) == 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), "no stored chains")
			return nil
		}
	}

	if err := svc.Warm(cmd.Context(), args); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, user := range args {
		stats, top, err := svc.Stats(cmd.Context(), user, inspectTop)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s\n", user)
		fmt.Fprintln(out, strings.Repeat("─", 40))
		fmt.Fprintf(out, "links          %d\n", stats.Links)
		fmt.Fprintf(out, "observations   %d\n", stats.Observations)
		fmt.Fprintf(out, "surface forms  %d\n", stats.SurfaceForms)
		fmt.Fprintf(out, "starts         %d\n", stats.Starts)
		fmt.Fprintf(out, "terminals      %d\n", stats.Terminals)
		for i, link := range top {
			fmt.Fprintf(out, "%2d. %-30s %d\n", i+1, link.Key, link.Count)
		}
		fmt.Fprintln(out)
	}
	return nil
}
