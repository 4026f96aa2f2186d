package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marcus/kb/internal/output"
)

var showCmd = &cobra.Command{
	Use:     "show <item-id>",
	Aliases: []string{"view", "get"},
	Short:   "Display an item",
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
		it, err := env.client.GetItem(ctx, pid, id)
		if err != nil {
			return fail(err)
		}

		if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
			return output.JSON(it)
		}
		fmt.Print(output.FormatItemLong(*it, output.RenderDescription(it.Description)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().Bool("json", false, "Output as JSON")
}
