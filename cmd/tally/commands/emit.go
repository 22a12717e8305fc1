package commands

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tallybot/tally/internal/printer"
	"github.com/tallybot/tally/pkg/stream"
)

var (
	emitSender  string
	emitType    string
	emitTo      string
	emitContent string
)

var emitCmd = &cobra.Command{
	Use:   "emit",
	Short: "Publish a synthetic chat event into the stream",
	Long: `Publish a synthetic chat message event into the instance's event stream,
exactly as the chat bridge would. Useful for exercising attribute predicates
and verifying daemon behavior without a live chat connection.

Examples:
  # A plain chat message from Alice
  tally emit --sender "Alice" --content "hello world"

  # A commit notification on the commits stream
  tally emit --sender "GitHub" --to commits --content "Alice pushed 1 commit to branch main"`,
	RunE: runEmit,
}

func init() {
	emitCmd.Flags().StringVarP(&emitSender, "sender", "s", "", "Sender display name (required)")
	emitCmd.Flags().StringVarP(&emitContent, "content", "m", "", "Message content (required)")
	emitCmd.Flags().StringVarP(&emitTo, "to", "t", "general", "Destination stream or recipient")
	emitCmd.Flags().StringVar(&emitType, "type", string(stream.MessageTypeStream), "Message type: stream or direct")
	emitCmd.MarkFlagRequired("sender")
	emitCmd.MarkFlagRequired("content")
	rootCmd.AddCommand(emitCmd)
}

func runEmit(cmd *cobra.Command, args []string) error {
	event := &stream.Event{
		ID:   uuid.New().String(),
		Kind: stream.EventKindMessage,
		Message: &stream.ChatMessage{
			SenderName:  emitSender,
			MessageType: stream.MessageType(emitType),
			Recipient:   emitTo,
			Content:     emitContent,
		},
	}

	client, err := newStreamClient()
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.PublishEvent(ctx, event); err != nil {
		return err
	}

	printer.Success("Published event %s\n", event.ID)
	return nil
}
