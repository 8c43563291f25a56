package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/quipufin/quipu/internal/model"
)

func usersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage registered senders",
	}

	cmd.AddCommand(usersAddCmd())
	cmd.AddCommand(usersListCmd())

	return cmd
}

func usersAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a sender",
		RunE:  runUsersAdd,
	}

	cmd.Flags().String("identity", "", "gateway identity, e.g. a phone number (required)")
	cmd.Flags().String("cohort", "", "country cohort code, e.g. BOL (required)")
	cmd.Flags().String("name", "", "display name")
	_ = cmd.MarkFlagRequired("identity")
	_ = cmd.MarkFlagRequired("cohort")

	return cmd
}

func runUsersAdd(cmd *cobra.Command, _ []string) error {
	identity, _ := cmd.Flags().GetString("identity")
	cohort, _ := cmd.Flags().GetString("cohort")
	name, _ := cmd.Flags().GetString("name")

	store, err := openStorage()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	user := model.User{
		ID:       uuid.NewString(),
		Identity: identity,
		Name:     name,
		Cohort:   cohort,
	}
	if err := store.SaveUser(cmd.Context(), &user); err != nil {
		return err
	}

	fmt.Printf("Registered %s (%s) in cohort %s\n", user.Identity, user.ID, user.Cohort)
	return nil
}

func usersListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered senders",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStorage()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			users, err := store.GetUsers(cmd.Context())
			if err != nil {
				return err
			}

			for _, user := range users {
				fmt.Printf("%s  %s  %s  %s\n", user.ID, user.Identity, user.Cohort, user.Name)
			}
			fmt.Printf("%d user(s)\n", len(users))
			return nil
		},
	}
}
