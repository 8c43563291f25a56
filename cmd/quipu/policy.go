package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quipufin/quipu/internal/common"
)

func policyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Inspect and recompute cohort confirmation policies",
	}

	cmd.AddCommand(policyShowCmd())
	cmd.AddCommand(policyRecomputeCmd())

	return cmd
}

func policyShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [cohort]",
		Short: "Show a cohort's confirmation policy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStorage()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			policy, err := store.GetConfirmationPolicy(cmd.Context(), args[0])
			if err != nil {
				if errors.Is(err, common.ErrNotFound) {
					fmt.Printf("Cohort %s: no policy row (confirmation required by default)\n", args[0])
					return nil
				}
				return err
			}

			fmt.Printf("Cohort %s\n", policy.Cohort)
			fmt.Printf("  require confirmation: %v\n", policy.RequireConfirmation)
			fmt.Printf("  auto-enabled:         %v\n", policy.AutoEnabled)
			if policy.AutoEnabledAt != nil {
				fmt.Printf("  auto-enabled at:      %s\n", policy.AutoEnabledAt.Format("2006-01-02 15:04:05"))
			}
			fmt.Printf("  verified records:     %d\n", policy.VerifiedCount)
			fmt.Printf("  weighted accuracy:    %.2f%%\n", policy.Accuracy)
			return nil
		},
	}
}

func policyRecomputeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recompute [cohort]",
		Short: "Recompute a cohort's accuracy from its feedback history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStorage()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			p := newResolutionPipeline(store)
			accuracy, verified, err := p.RecomputeAccuracy(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Printf("Cohort %s: %.2f%% accuracy over %d verified record(s)\n",
				args[0], accuracy, verified)
			return nil
		},
	}
}
