package main

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/quipufin/quipu/internal/model"
)

func editCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit",
		Short: "Resolve a pending prediction with corrected fields",
		Long: `Overwrite a prediction's content fields and resolve it via the edit path.
An edit is the strongest correctness signal: the user actively reviewed and
corrected the record. The original event timestamp is never changed.`,
		RunE: runEdit,
	}

	cmd.Flags().String("from", "", "sender identity (required)")
	cmd.Flags().String("prediction", "", "target prediction id (required)")
	cmd.Flags().String("amount", "", "corrected amount (required)")
	cmd.Flags().String("direction", "debit", "corrected direction (debit, credit)")
	cmd.Flags().String("category", "", "corrected category")
	cmd.Flags().String("description", "", "corrected description")
	cmd.Flags().String("payment-method", "", "corrected payment method")
	cmd.Flags().String("currency", "", "corrected currency code")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("prediction")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}

func runEdit(cmd *cobra.Command, _ []string) error {
	from, _ := cmd.Flags().GetString("from")
	predictionID, _ := cmd.Flags().GetString("prediction")
	amountStr, _ := cmd.Flags().GetString("amount")
	direction, _ := cmd.Flags().GetString("direction")
	category, _ := cmd.Flags().GetString("category")
	description, _ := cmd.Flags().GetString("description")
	paymentMethod, _ := cmd.Flags().GetString("payment-method")
	currency, _ := cmd.Flags().GetString("currency")

	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", amountStr, err)
	}

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
	result, err := p.Edit(cmd.Context(), user.ID, predictionID, model.EditedFields{
		Amount:        amount,
		Direction:     model.TransactionDirection(direction),
		Category:      category,
		Description:   description,
		PaymentMethod: paymentMethod,
		Currency:      currency,
	})
	if err != nil {
		return friendlyError(err)
	}

	printResolveResult(result)
	return nil
}
