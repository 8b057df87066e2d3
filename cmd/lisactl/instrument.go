package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	openlisa "github.com/openlisa/openlisa-go"
)

var instrumentCmd = &cobra.Command{
	Use:   "instrument",
	Short: "Manage instruments registered on the server",
}

var instrumentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all registered instruments",
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := sdk.GetInstruments()
		if err != nil {
			return err
		}
		return printJSON(cmd, v)
	},
}

var instrumentGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one instrument",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := sdk.GetInstrument(args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, v)
	},
}

var instrumentCreateCmd = &cobra.Command{
	Use:   "create <json-file>",
	Short: "Register a new instrument from its JSON description",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := readJSONArg(args[0])
		if err != nil {
			return err
		}
		v, err := sdk.CreateInstrument(body)
		if err != nil {
			return err
		}
		return printJSON(cmd, v)
	},
}

var instrumentUpdateCmd = &cobra.Command{
	Use:   "update <id> <json-file>",
	Short: "Apply a JSON update to an instrument",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := readJSONArg(args[1])
		if err != nil {
			return err
		}
		v, err := sdk.UpdateInstrument(args[0], body)
		if err != nil {
			return err
		}
		return printJSON(cmd, v)
	},
}

var instrumentDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Remove an instrument",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := sdk.DeleteInstrument(args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, v)
	},
}

var instrumentCommandsCmd = &cobra.Command{
	Use:   "commands <id>",
	Short: "List the commands an instrument accepts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := sdk.GetInstrumentCommands(args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, v)
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate <id> <command>",
	Short: "Check whether a command invocation is valid for an instrument",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ok, err := sdk.IsValidCommand(args[0], args[1])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%s is not valid for instrument %s", args[1], args[0])
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s is OK\n", args[1])
		return nil
	},
}

var sendConvertTo string

var sendCmd = &cobra.Command{
	Use:   "send <id> <command>",
	Short: "Execute a command on an instrument and print the result",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var res *openlisa.CommandResult
		var err error
		if sendConvertTo != "" {
			res, err = sdk.SendCommandAs(args[0], args[1], openlisa.ConvertType(sendConvertTo))
		} else {
			res, err = sdk.SendCommand(args[0], args[1])
		}
		if err != nil {
			return err
		}
		if raw, ok := res.Value.([]byte); ok {
			// Binary results go to stdout unmangled so they can be piped.
			_, err := cmd.OutOrStdout().Write(raw)
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%v\n", res.Value)
		return nil
	},
}

// readJSONArg accepts either a path to a JSON file or an inline JSON string.
func readJSONArg(arg string) (json.RawMessage, error) {
	if json.Valid([]byte(arg)) {
		return json.RawMessage(arg), nil
	}
	data, err := os.ReadFile(arg)
	if err != nil {
		return nil, fmt.Errorf("argument is neither valid JSON nor a readable file: %w", err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("%s does not contain valid JSON", arg)
	}
	return json.RawMessage(data), nil
}

func printJSON(cmd *cobra.Command, v any) error {
	text, ok := v.(string)
	if !ok {
		encoded, err := json.Marshal(v)
		if err != nil {
			return err
		}
		text = string(encoded)
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, []byte(text), "", "  "); err != nil {
		fmt.Fprintln(cmd.OutOrStdout(), text)
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), pretty.String())
	return nil
}

func init() {
	sendCmd.Flags().StringVar(&sendConvertTo, "as", "", "convert the result value: str, int, double, bytes")

	instrumentCmd.AddCommand(instrumentListCmd, instrumentGetCmd, instrumentCreateCmd,
		instrumentUpdateCmd, instrumentDeleteCmd, instrumentCommandsCmd)
	rootCmd.AddCommand(instrumentCmd, validateCmd, sendCmd)
}
