package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quipufin/quipu/internal/intent"
	"github.com/quipufin/quipu/internal/pipeline"
)

func replyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reply [reply text]",
		Short: "Process a free-text reply to a pending confirmation",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runReply,
	}

	cmd.Flags().String("from", "", "sender identity (required)")
	_ = cmd.MarkFlagRequired("from")

	return cmd
}

func runReply(cmd *cobra.Command, args []string) error {
	from, _ := cmd.Flags().GetString("from")

	store, err := openStorage()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	p := newResolutionPipeline(store)
	outcome, err := p.HandleReply(cmd.Context(), from, strings.Join(args, " "))
	if err != nil {
		return friendlyError(err)
	}

	if outcome.Intent == intent.IntentUnknown {
		fmt.Println("Reply not understood; pending confirmation left untouched")
		return nil
	}
	printResolveResult(outcome.Result)
	return nil
}

func confirmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "confirm",
		Short: "Confirm a pending prediction",
		Long: `Resolve the sender's most recent pending confirmation (or a specific
prediction) via the explicit-confirmation path. Grouped predictions from one
message resolve together.`,
		RunE: runConfirm,
	}

	cmd.Flags().String("from", "", "sender identity (required)")
	cmd.Flags().String("prediction", "", "target prediction id (default: most recent pending)")
	cmd.Flags().Bool("reject", false, "reject instead of confirm")
	_ = cmd.MarkFlagRequired("from")

	return cmd
}

func runConfirm(cmd *cobra.Command, _ []string) error {
	from, _ := cmd.Flags().GetString("from")
	predictionID, _ := cmd.Flags().GetString("prediction")
	reject, _ := cmd.Flags().GetBool("reject")

	store, err := openStorage()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	user, err := store.GetUserByIdentity(cmd.Context(), from)
	if err != nil {
		return err
	}

	p := newResolutionPipeline(store)
	var result *pipeline.ResolveResult
	if reject {
		result, err = p.Reject(cmd.Context(), user.ID, predictionID)
	} else {
		result, err = p.Confirm(cmd.Context(), user.ID, predictionID)
	}
	if err != nil {
		return friendlyError(err)
	}

	printResolveResult(result)
	return nil
}

func printResolveResult(result *pipeline.ResolveResult) {
	fmt.Printf("Resolved %d prediction(s) via %s\n", len(result.Predictions), result.Method)
	for _, txn := range result.Transactions {
		fmt.Printf("  committed %s %s  %s (%s)\n",
			txn.Amount.String(), txn.Currency, txn.Category, txn.OccurredAt.Format("2006-01-02 15:04"))
	}
	fmt.Printf("Cohort accuracy: %.1f%% over %d verified record(s)\n",
		result.Accuracy, result.VerifiedCount)
}
