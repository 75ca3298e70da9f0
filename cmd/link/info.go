package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stratify-tools/link/driverpath"
	"github.com/stratify-tools/link/link"
)

var infoCmd = &cobra.Command{
	Use:   "info <path>",
	Short: "Connect once and print the target's system or bootloader identity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), flagTimeout)
		defer cancel()

		path := driverpath.Parse(args[0])
		sess := link.NewSession(serialDialer{}, link.WithLogger(log))
		if err := sess.Connect(ctx, path, false); err != nil {
			return err
		}
		defer sess.Disconnect()

		info := sess.SysInfo()
		fmt.Printf("path:     %s\n", sess.Path().String())
		fmt.Printf("kind:     %s\n", sess.Kind().String())
		fmt.Printf("name:     %s\n", info.Name)
		fmt.Printf("version:  %s\n", info.Version)
		fmt.Printf("arch:     %s\n", info.CPUArch)
		fmt.Printf("serial:   %s\n", info.Serial.String())
		fmt.Printf("hw id:    0x%08X\n", info.HardwareID)

		if sess.Kind() == link.ConnOS {
			tasks, err := sess.EnumerateTasks()
			if err != nil {
				return err
			}
			fmt.Printf("tasks:    %d running\n", len(tasks))
			for _, t := range tasks {
				fmt.Printf("  pid=%-4d tid=%-4d %-16s mem=%d%%\n", t.PID, t.TID, t.Name, t.MemoryUtilizationPct())
			}
		}
		return nil
	},
}
