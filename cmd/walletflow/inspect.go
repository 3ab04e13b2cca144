package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
)

var flagShowState bool

var inspectCmd = &cobra.Command{
	Use:   "inspect <flow-id>",
	Short: "Print the persisted header of a flow",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, cleanup, err := openEngine(providers{}, false)
		if err != nil {
			return err
		}
		defer cleanup()

		info, raw, err := engine.Inspect(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		out := map[string]any{
			"flow":    info,
			"variant": gjson.GetBytes(raw, "kind").String(),
		}
		if sub := gjson.GetBytes(raw, "value.sub.kind"); sub.Exists() {
			out["sub_variant"] = sub.String()
		}
		if flagShowState {
			out["state"] = json.RawMessage(raw)
		}

		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

func init() {
	inspectCmd.Flags().BoolVar(&flagShowState, "state", false, "also print the state JSON (contains key material)")
}
