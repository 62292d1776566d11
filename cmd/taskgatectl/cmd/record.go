package cmd

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

// recordCmd groups idempotency record operations
var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Inspect or clear idempotency records",
	Long: `Inspect or clear the idempotency record for an event id.

Clearing a record reopens the gate for that event: the next delivery will be
treated as a first attempt. Use this to recover an event whose record is
stuck in PROCESSING after a failed revert.`,
}

var recordGetCmd = &cobra.Command{
	Use:   "get <eventId>",
	Short: "Show the idempotency record for an event id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := makeRequest("GET", "/admin/records/"+url.PathEscape(args[0]))
		if err != nil {
			return fmt.Errorf("get record failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == 404 {
			fmt.Printf("No record for event %s (gate open)\n", args[0])
			return nil
		}
		return printBody(resp.Body)
	},
}

var recordDeleteCmd = &cobra.Command{
	Use:   "delete <eventId>",
	Short: "Delete the idempotency record for an event id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := makeRequest("DELETE", "/admin/records/"+url.PathEscape(args[0]))
		if err != nil {
			return fmt.Errorf("delete record failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			fmt.Printf("✓ Record cleared for event %s\n", args[0])
			return nil
		}
		fmt.Printf("✗ Delete failed (HTTP %d)\n", resp.StatusCode)
		return printBody(resp.Body)
	},
}

func init() {
	recordCmd.AddCommand(recordGetCmd)
	recordCmd.AddCommand(recordDeleteCmd)
	rootCmd.AddCommand(recordCmd)
}
