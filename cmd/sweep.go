package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one pass over events whose scheduled time has passed",
}

var sweepExpireCmd = &cobra.Command{
	Use:   "expire",
	Short: "Delete past events, their tickets and ledger rows without drawing",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, lotteryService, err := openService()
		if err != nil {
			return err
		}
		defer st.Close()

		report, err := lotteryService.RemovePastEvents(cmd.Context())
		if perr := printJSON(cmd.OutOrStdout(), report); perr != nil && err == nil {
			err = perr
		}
		return err
	},
}

var sweepFinalizeCmd = &cobra.Command{
	Use:   "finalize",
	Short: "Draw a winner for each past event and tear it down",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, lotteryService, err := openService()
		if err != nil {
			return err
		}
		defer st.Close()

		report, err := lotteryService.FinalizeEvents(cmd.Context())
		if perr := printJSON(cmd.OutOrStdout(), report); perr != nil && err == nil {
			err = perr
		}
		return err
	},
}

func init() {
	sweepCmd.AddCommand(sweepExpireCmd)
	sweepCmd.AddCommand(sweepFinalizeCmd)
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
