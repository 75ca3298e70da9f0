package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stratify-tools/link/link"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Enumerate reachable devices and their identity",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), flagTimeout)
		defer cancel()

		sess := link.NewSession(serialDialer{}, link.WithLogger(log))
		entries, err := sess.GetInfoList(ctx)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("no devices found")
			return nil
		}
		for _, e := range entries {
			fmt.Printf("%-28s %-10s %-20s serial=%s\n",
				e.Path.String(), e.SysInfo.Version, e.SysInfo.Name, e.SysInfo.Serial.String())
		}
		return nil
	},
}
