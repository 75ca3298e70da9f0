package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/stratify-tools/link/appfs"
	"github.com/stratify-tools/link/driverpath"
	"github.com/stratify-tools/link/link"
	"github.com/stratify-tools/link/sig"
)

var installFlagName string
var installFlagMount string
var installFlagOverwrite bool
var installFlagHistoryFile string

var installCmd = &cobra.Command{
	Use:   "install <path> <local-file>",
	Short: "Install a local executable into the target's application filesystem",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), flagTimeout)
		defer cancel()

		devicePath := driverpath.Parse(args[0])
		localPath := args[1]

		sess := link.NewSession(serialDialer{}, link.WithLogger(log))
		if err := sess.Connect(ctx, devicePath, false); err != nil {
			return err
		}
		defer sess.Disconnect()
		if sess.Kind() != link.ConnOS {
			return fmt.Errorf("install requires a target running its OS, not bootloader")
		}

		f, err := os.Open(localPath)
		if err != nil {
			return err
		}
		defer f.Close()
		stat, err := f.Stat()
		if err != nil {
			return err
		}

		name := installFlagName
		if name == "" {
			name = filepath.Base(localPath)
		}

		var markerSize int64
		if _, err := sig.GetSignature(f); err == nil {
			markerSize = sig.MarkerSize
		}
		if _, err := f.Seek(0, 0); err != nil {
			return err
		}

		historySink, closeHistory, err := openHistoryFile(installFlagHistoryFile)
		if err != nil {
			return err
		}
		defer closeHistory()
		construct := appfs.Construct{
			Mount:      installFlagMount,
			Name:       name,
			Executable: true,
			Overwrite:  installFlagOverwrite,
		}
		if historySink != nil {
			construct.EventSink = appfsEventSink{sink: historySink}
		}

		inst, err := appfs.NewInstaller(sess.Client(), construct)
		if err != nil {
			return err
		}
		defer inst.Close()

		progress := func(current, total int64) bool {
			if total > 0 {
				fmt.Printf("\rinstalling: %d/%d bytes", current, total)
			}
			return false
		}
		if err := inst.Append(f, stat.Size(), markerSize, progress); err != nil {
			return err
		}
		fmt.Println()

		if markerSize > 0 {
			if _, err := f.Seek(0, 0); err != nil {
				return err
			}
			marker, err := sig.GetSignature(f)
			if err == nil {
				if err := inst.VerifyInstalledSignature(marker.Signature); err != nil {
					return err
				}
			}
		}

		fmt.Printf("installed %s as %s\n", localPath, name)
		return nil
	},
}

func init() {
	installCmd.Flags().StringVar(&installFlagName, "name", "", "name to install as, defaults to the local file name")
	installCmd.Flags().StringVar(&installFlagMount, "mount", "/app", "appfs mount point")
	installCmd.Flags().BoolVar(&installFlagOverwrite, "overwrite", false, "unlink any existing entry with the same name first")
	installCmd.Flags().StringVar(&installFlagHistoryFile, "history-file", "", "append one JSON line per install lifecycle event to this file")
}
