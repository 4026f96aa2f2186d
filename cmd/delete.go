package cmd

import (
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/marcus/kb/internal/output"
)

var deleteCmd = &cobra.Command{
	Use:     "delete <item-id>",
	Aliases: []string{"rm"},
	Short:   "Delete an item",
	GroupID: "items",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnv()
		if err != nil {
			return fail(err)
		}
		pid, err := env.projectID(cmd)
		if err != nil {
			return fail(err)
		}
		ctx := commandContext(cmd)

		state, err := fetchBoard(ctx, env.board(pid))
		if err != nil {
			return fail(err)
		}
		id, err := resolveItemID(state, args[0])
		if err != nil {
			return fail(err)
		}
		it, _ := state.Item(id)

		force, _ := cmd.Flags().GetBool("force")
		if !force && output.IsTerminal() {
			confirmed := false
			err := huh.NewConfirm().
				Title(fmt.Sprintf("Delete %q?", it.Title)).
				Affirmative("Delete").
				Negative("Cancel").
				Value(&confirmed).
				Run()
			if err != nil {
				return fail(err)
			}
			if !confirmed {
				output.Info("Cancelled")
				return nil
			}
		}

		if err := env.client.DeleteItem(ctx, pid, id); err != nil {
			return fail(err)
		}
		fmt.Printf("DELETED %s\n", id)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
	deleteCmd.Flags().BoolP("force", "f", false, "Skip the confirmation prompt")
}
