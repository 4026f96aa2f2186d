package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marcus/kb/internal/models"
	"github.com/marcus/kb/internal/output"
	"github.com/marcus/kb/internal/session"
)

var moveCmd = &cobra.Command{
	Use:     "move <item-id>",
	Aliases: []string{"mv"},
	Short:   "Move an item to another column or slot",
	Long: `Move an item. --to picks the destination column (default: the item's
current column) and --index the zero-based slot in it (default: the end).
Only items whose position changes are sent to the server.`,
	Example: `  kb move 3f2a --to in_progress
  kb move 3f2a --index 0`,
	GroupID: "board",
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
		remote := env.board(pid)

		state, err := fetchBoard(ctx, remote)
		if err != nil {
			return fail(err)
		}
		id, err := resolveItemID(state, args[0])
		if err != nil {
			return fail(err)
		}
		loc, _ := state.Locate(id)

		dest := models.Location{Column: loc.Column}
		if to, _ := cmd.Flags().GetString("to"); to != "" {
			if dest.Column, err = models.ParseColumn(to); err != nil {
				return fail(err)
			}
		}
		dest.Index = len(state.Column(dest.Column))
		if dest.Column == loc.Column {
			dest.Index--
		}
		if cmd.Flags().Changed("index") {
			dest.Index, _ = cmd.Flags().GetInt("index")
		}

		sess := session.New(remote, state)
		defer sess.Close()

		outcome, err := sess.MoveItem(id, dest).Wait(ctx)
		if err != nil {
			return fail(err)
		}
		if !outcome.OK() {
			return fail(outcome.Err)
		}

		if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
			return output.JSON(outcome.Records)
		}
		if len(outcome.Batch) == 0 {
			output.Info("%s is already there", output.ShortID(id))
			return nil
		}
		now, _ := sess.State().Locate(id)
		output.Success("Moved %s to %s (%d item(s) updated)", output.ShortID(id), formatLocation(now), len(outcome.Batch))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(moveCmd)
	moveCmd.Flags().StringP("to", "t", "", "Destination column")
	moveCmd.Flags().IntP("index", "n", 0, "Destination slot, 0 is the top")
	moveCmd.Flags().Bool("json", false, "Output the saved records as JSON")
}

// formatLocation is used in messages about a slot.
func formatLocation(l models.Location) string {
	return fmt.Sprintf("%s #%d", l.Column, l.Index)
}
