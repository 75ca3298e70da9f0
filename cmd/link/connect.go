package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stratify-tools/link/driverpath"
	"github.com/stratify-tools/link/link"
)

var connectCmd = &cobra.Command{
	Use:   "connect <path>",
	Short: "Probe a device path and report whether it answers the classify opcode",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), flagTimeout)
		defer cancel()

		path := driverpath.Parse(args[0])
		sess := link.NewSession(serialDialer{}, link.WithLogger(log))
		ok, err := sess.Ping(ctx, path, false)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Printf("%s: no response\n", path.String())
			return nil
		}
		fmt.Printf("%s: reachable\n", path.String())
		return nil
	},
}
