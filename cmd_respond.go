package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var respondLimit int

// respondCmd prints one reply in a user's voice
var respondCmd = &cobra.Command{
	Use:   "respond <user> [seed words...]",
	Short: "Generate a reply from a user's chain",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRespond,
}

func init() {
	respondCmd.Flags().IntVar(&respondLimit, "limit", 0, "maximum number of links in the reply (0 uses RESPONSE_LIMIT)")
}

func runRespond(cmd *cobra.Command, args []string) error {
	svc, closeStore, err := newService(cmd.Context())
	if err != nil {
		return err
	}
	defer closeStore()

	reply, err := svc.Respond(cmd.Context(), args[0], strings.Join(args[1:], " "), respondLimit)
	if err != nil {
		return err
	}
	if reply.Text == "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "no chain data for %s yet\n", reply.User)
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), reply.Text)
	return nil
}
