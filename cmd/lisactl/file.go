package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var getFileCmd = &cobra.Command{
	Use:   "get-file <remote-name> <local-path>",
	Short: "Download a file from the server",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := sdk.GetFile(args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "fetched %s to %s\n", args[0], args[1])
		return nil
	},
}

var putFileCmd = &cobra.Command{
	Use:   "put-file <local-path> <remote-name>",
	Short: "Upload a file to the server",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := sdk.SendFile(args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "sent %s as %s\n", args[0], args[1])
		return nil
	},
}

var (
	execStdout bool
	execStderr bool
)

var execCmd = &cobra.Command{
	Use:   "exec <command>",
	Short: "Run a shell command on the server host",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := sdk.ExecuteBash(args[0], execStdout, execStderr)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "status: %s\n", res.StatusCode)
		if execStdout && res.Stdout != "" {
			fmt.Fprintln(cmd.OutOrStdout(), res.Stdout)
		}
		if execStderr && res.Stderr != "" {
			fmt.Fprintln(cmd.ErrOrStderr(), res.Stderr)
		}
		return nil
	},
}

// Only honored by servers running in test mode; hidden from regular use.
var resetDatabasesCmd = &cobra.Command{
	Use:    "reset-databases",
	Short:  "Restore a test-mode server's databases to their initial state",
	Hidden: true,
	Args:   cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := sdk.ResetDatabases()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), status)
		return nil
	},
}

func init() {
	execCmd.Flags().BoolVar(&execStdout, "stdout", false, "capture and print the command's stdout")
	execCmd.Flags().BoolVar(&execStderr, "stderr", false, "capture and print the command's stderr")

	rootCmd.AddCommand(getFileCmd, putFileCmd, execCmd, resetDatabasesCmd)
}
