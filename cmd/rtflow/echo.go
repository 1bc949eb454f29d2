package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oncobeam/rtflow/dimse"
)

var echoCmd = &cobra.Command{
	Use:   "echo",
	Short: "Verify connectivity to the remote node with a C-ECHO",
	RunE: func(cmd *cobra.Command, args []string) error {
		assoc, err := connectRemote()
		if err != nil {
			return err
		}
		defer assoc.Close()

		resp, err := assoc.SendCEcho(1)
		if err != nil {
			return err
		}
		if resp.Status != dimse.StatusSuccess {
			return fmt.Errorf("echo returned status 0x%04X", resp.Status)
		}

		fmt.Printf("%s answered the verification request\n", cfg.Remote.AETitle)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(echoCmd)
}
