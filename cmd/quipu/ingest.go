package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/quipufin/quipu/internal/model"
)

func ingestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest [message text]",
		Short: "Process an inbound expense message",
		Long: `Run one inbound message through the pipeline: deduplication, extraction,
prediction storage, and pending-confirmation creation (or immediate
commitment for auto-enabled cohorts).`,
		Args: cobra.MinimumNArgs(1),
		RunE: runIngest,
	}

	cmd.Flags().String("from", "", "sender identity (required)")
	cmd.Flags().String("message-id", "", "inbound message id for deduplication")
	cmd.Flags().String("kind", "text", "message kind (text, audio)")
	cmd.Flags().String("channel", "cli", "origin channel tag")
	_ = cmd.MarkFlagRequired("from")

	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	from, _ := cmd.Flags().GetString("from")
	messageID, _ := cmd.Flags().GetString("message-id")
	kind, _ := cmd.Flags().GetString("kind")
	channel, _ := cmd.Flags().GetString("channel")

	store, err := openStorage()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	p, cleanup, err := newIngestPipeline(store)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := p.ProcessMessage(cmd.Context(), model.InboundMessage{
		SenderIdentity: from,
		Kind:           model.MessageKind(kind),
		Payload:        strings.Join(args, " "),
		MessageID:      messageID,
		Channel:        channel,
		Timestamp:      time.Now().UTC(),
	})
	if err != nil {
		return friendlyError(err)
	}

	if result.Deduplicated {
		fmt.Printf("Already processed: %d stored prediction(s)\n", len(result.Predictions))
		return nil
	}
	if len(result.Predictions) == 0 {
		fmt.Println("No transactions found in message")
		return nil
	}

	for _, prediction := range result.Predictions {
		fmt.Printf("  %s  %s %s  %s (%s)\n",
			prediction.ID, prediction.Amount.String(), prediction.Currency,
			prediction.Category, prediction.Direction)
	}
	if result.RequiresConfirmation {
		fmt.Printf("%d prediction(s) awaiting confirmation\n", len(result.Pending))
	} else {
		fmt.Printf("%d transaction(s) committed automatically\n", len(result.Committed))
	}
	return nil
}
