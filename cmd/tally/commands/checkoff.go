package commands

import (
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tallybot/tally/internal/printer"
	"github.com/tallybot/tally/pkg/stream"
)

var checkoffCmd = &cobra.Command{
	Use:   "checkoff <username> <attribute>",
	Short: "Manually mark an achievement complete",
	Long: `Manually mark an achievement complete for a user.

Manual check-offs are silent: the completion is recorded and persisted, but
no progress announcement is sent. Already-complete pairs are a no-op.`,
	Args: cobra.ExactArgs(2),
	RunE: runCheckoff,
}

var uncheckCmd = &cobra.Command{
	Use:   "uncheck <username> <attribute>",
	Short: "Mark an achievement incomplete",
	Long: `Mark an achievement incomplete for a user, regardless of its current
state. Corrections never produce an announcement.`,
	Args: cobra.ExactArgs(2),
	RunE: runUncheck,
}

var updateCmd = &cobra.Command{
	Use:   "update <attribute>",
	Short: "Re-announce the current progress for an achievement",
	Args:  cobra.ExactArgs(1),
	RunE:  runUpdate,
}

var attributesCmd = &cobra.Command{
	Use:   "attributes",
	Short: "List the tracked achievements",
	RunE:  runAttributes,
}

func init() {
	rootCmd.AddCommand(checkoffCmd)
	rootCmd.AddCommand(uncheckCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(attributesCmd)
}

func runCheckoff(cmd *cobra.Command, args []string) error {
	_, err := callControl(&stream.ControlRequest{
		ID:        uuid.New().String(),
		Action:    stream.ControlCheckOff,
		User:      args[0],
		Attribute: args[1],
	})
	if err != nil {
		return err
	}

	printer.Success("Checked off %q for %q\n", args[1], args[0])
	return nil
}

func runUncheck(cmd *cobra.Command, args []string) error {
	_, err := callControl(&stream.ControlRequest{
		ID:        uuid.New().String(),
		Action:    stream.ControlUncheck,
		User:      args[0],
		Attribute: args[1],
	})
	if err != nil {
		return err
	}

	printer.Success("Unchecked %q for %q\n", args[1], args[0])
	return nil
}

func runUpdate(cmd *cobra.Command, args []string) error {
	reply, err := callControl(&stream.ControlRequest{
		ID:        uuid.New().String(),
		Action:    stream.ControlUpdate,
		Attribute: args[0],
	})
	if err != nil {
		return err
	}

	if reply.Announced {
		printer.Success("Progress for %q re-announced\n", args[0])
	} else {
		printer.Warning("Attribute %q produced no announcement\n", args[0])
	}
	return nil
}

func runAttributes(cmd *cobra.Command, args []string) error {
	reply, err := callControl(&stream.ControlRequest{
		ID:     uuid.New().String(),
		Action: stream.ControlListAttributes,
	})
	if err != nil {
		return err
	}

	printer.Heading("Tracked achievements (%d):", len(reply.Attributes))
	for _, name := range reply.Attributes {
		printer.Println("  " + name)
	}
	return nil
}
