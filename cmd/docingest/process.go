package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var processNext bool

var processCmd = &cobra.Command{
	Use:   "process [document-id]",
	Short: "Process one document now and print its final state",
	Long: `Processes the given document regardless of its status, or with --next
claims the oldest pending document.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runProcess,
}

func init() {
	processCmd.Flags().BoolVar(&processNext, "next", false, "claim the oldest pending document instead")
	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	if processNext == (len(args) == 1) {
		return fmt.Errorf("pass either a document id or --next")
	}
	ctx := cmd.Context()

	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if processNext {
		found, err := a.Scheduler.ProcessNextPendingDocument(ctx)
		if !found && err == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "No pending documents.")
		}
		return err
	}

	id := args[0]
	procErr := a.Scheduler.ProcessDocumentByID(ctx, id)

	doc, err := a.Documents.Get(ctx, id)
	if err != nil {
		if procErr != nil {
			return procErr
		}
		return err
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return procErr
}
