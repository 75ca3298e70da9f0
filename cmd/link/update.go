package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stratify-tools/link/driverpath"
	"github.com/stratify-tools/link/firmware"
	"github.com/stratify-tools/link/link"
)

var updateFlagFlashPath string
var updateFlagHistoryFile string

var updateCmd = &cobra.Command{
	Use:   "update <path> <image-file>",
	Short: "Flash a bootloader or OS image onto the target",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), flagTimeout)
		defer cancel()

		devicePath := driverpath.Parse(args[0])
		imagePath := args[1]

		sess := link.NewSession(serialDialer{}, link.WithLogger(log))
		if err := sess.Connect(ctx, devicePath, false); err != nil {
			return err
		}
		defer sess.Disconnect()

		image, err := os.Open(imagePath)
		if err != nil {
			return err
		}
		defer image.Close()

		historySink, closeHistory, err := openHistoryFile(updateFlagHistoryFile)
		if err != nil {
			return err
		}
		defer closeHistory()

		opts := []firmware.Option{
			firmware.WithLogger(log),
			firmware.WithVerify(true),
			firmware.WithProgressCallback(func(p firmware.Progress) {
				fmt.Printf("\r%-12s %d/%d", p.Phase.String(), p.Current, p.Total)
			}),
		}
		if historySink != nil {
			opts = append(opts, firmware.WithEventSink(firmwareEventSink{sink: historySink}))
		}
		u := firmware.New(sess.Client(), opts...)

		var updateErr error
		switch sess.Kind() {
		case link.ConnBootloader:
			updateErr = u.UpdateBootloader(image)
		case link.ConnOS:
			if updateFlagFlashPath == "" {
				return fmt.Errorf("update: target is running its OS, --flash-path is required to name the flash device node")
			}
			updateErr = u.UpdateOS(updateFlagFlashPath, image)
		default:
			return fmt.Errorf("update: unrecognized connection kind for %s", devicePath.String())
		}
		fmt.Println()
		if updateErr != nil {
			return updateErr
		}
		fmt.Printf("update complete for %s\n", devicePath.String())
		return nil
	},
}

func init() {
	updateCmd.Flags().StringVar(&updateFlagFlashPath, "flash-path", "", "flash device node path, required when updating a target already running its OS")
	updateCmd.Flags().StringVar(&updateFlagHistoryFile, "history-file", "", "append one JSON line per update phase transition to this file")
}
