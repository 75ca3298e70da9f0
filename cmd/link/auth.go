package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/stratify-tools/link/driverpath"
	"github.com/stratify-tools/link/link"
	"github.com/stratify-tools/link/sig"
)

var authFlagKeyFile string

var authCmd = &cobra.Command{
	Use:   "auth <path>",
	Short: "Authenticate against a target's challenge-response handshake",
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

		keyFile := authFlagKeyFile
		if keyFile == "" {
			keyFile = cfg.KeyFile
		}

		var key []byte
		var err error
		if keyFile != "" {
			key, err = os.ReadFile(keyFile)
			if err != nil {
				return err
			}
		} else {
			fmt.Fprint(os.Stderr, "key: ")
			key, err = term.ReadPassword(int(os.Stdin.Fd()))
			fmt.Fprintln(os.Stderr)
			if err != nil {
				return err
			}
		}

		ok, err := sig.Authenticate(sess.Client(), key)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("auth: key rejected")
		}
		fmt.Println("authenticated")
		return nil
	},
}

func init() {
	authCmd.Flags().StringVar(&authFlagKeyFile, "key-file", "", "file containing the authentication key, overrides the configured key_file")
}
