package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stratify-tools/link/internal/logging"
)

var (
	flagVerbose bool
	flagQuiet   bool
	flagDevice  string
	flagTimeout time.Duration

	cfg *appConfig
	log *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "link",
	Short: "Control a target device's bootloader, filesystems, and tasks over a serial or USB link",
	Long: `link connects to a device running the target OS or its bootloader and lets
you enumerate devices, inspect system and task state, install application
binaries, and update firmware, all over the same RPC transport the device
firmware speaks.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := loadConfig()
		if err != nil {
			return err
		}
		if flagDevice != "" {
			loaded.DevicePath = flagDevice
		}
		cfg = loaded

		log = logging.New(os.Stderr, levelFromVerbosity(flagVerbose, flagQuiet), true)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress all but error logging")
	rootCmd.PersistentFlags().StringVar(&flagDevice, "device", "", "device path (e.g. serial@/dev/ttyACM0), overrides config")
	rootCmd.PersistentFlags().DurationVar(&flagTimeout, "timeout", 10*time.Second, "per-operation timeout")

	viper.BindPFlag("device_path", rootCmd.PersistentFlags().Lookup("device"))

	rootCmd.AddCommand(listCmd, infoCmd, connectCmd, installCmd, updateCmd, authCmd)
}

// Execute runs the command tree, exiting with status 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
