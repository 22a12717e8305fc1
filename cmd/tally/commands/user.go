package commands

import (
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tallybot/tally/internal/printer"
	"github.com/tallybot/tally/pkg/stream"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage the tracked user roster",
}

var userAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Add a user to the roster",
	Long: `Add a user to the roster with no completed achievements.

The username must match the display name the chat platform reports for the
user, or events will not be attributed to them.`,
	Args: cobra.ExactArgs(1),
	RunE: runUserAdd,
}

var userRemoveCmd = &cobra.Command{
	Use:   "remove <username>",
	Short: "Remove a user and their completion flags",
	Args:  cobra.ExactArgs(1),
	RunE:  runUserRemove,
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "List all tracked users",
	RunE:  runUsers,
}

func init() {
	userCmd.AddCommand(userAddCmd)
	userCmd.AddCommand(userRemoveCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(usersCmd)
}

func runUserAdd(cmd *cobra.Command, args []string) error {
	_, err := callControl(&stream.ControlRequest{
		ID:     uuid.New().String(),
		Action: stream.ControlAddUser,
		User:   args[0],
	})
	if err != nil {
		return err
	}

	printer.Success("Added user %q\n", args[0])
	return nil
}

func runUserRemove(cmd *cobra.Command, args []string) error {
	_, err := callControl(&stream.ControlRequest{
		ID:     uuid.New().String(),
		Action: stream.ControlRemoveUser,
		User:   args[0],
	})
	if err != nil {
		return err
	}

	printer.Success("Removed user %q\n", args[0])
	return nil
}

func runUsers(cmd *cobra.Command, args []string) error {
	reply, err := callControl(&stream.ControlRequest{
		ID:     uuid.New().String(),
		Action: stream.ControlListUsers,
	})
	if err != nil {
		return err
	}

	if len(reply.Users) == 0 {
		printer.Info("No users are being tracked.\n")
		printer.Info("Add one with 'tally user add <username>'.\n")
		return nil
	}

	printer.Heading("Tracked users (%d):", len(reply.Users))
	for _, user := range reply.Users {
		printer.Println("  " + user)
	}
	return nil
}
