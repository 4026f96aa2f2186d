package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/marcus/kb/internal/models"
	"github.com/marcus/kb/internal/output"
	"github.com/marcus/kb/internal/syncclient"
)

var createCmd = &cobra.Command{
	Use:     "create [title]",
	Aliases: []string{"add", "new"},
	Short:   "Create an item",
	Long: `Create an item at the bottom of a column (default: backlog).
Without a title on a terminal, kb asks for one.`,
	GroupID: "items",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnv()
		if err != nil {
			return fail(err)
		}
		pid, err := env.projectID(cmd)
		if err != nil {
			return fail(err)
		}

		in := syncclient.NewItem{Column: models.ColumnBacklog}
		if len(args) > 0 {
			in.Title = args[0]
		}
		in.Description, _ = cmd.Flags().GetString("description")
		if c, _ := cmd.Flags().GetString("column"); c != "" {
			if in.Column, err = models.ParseColumn(c); err != nil {
				return fail(err)
			}
		}

		if strings.TrimSpace(in.Title) == "" && output.IsTerminal() {
			if err := promptItem(&in); err != nil {
				return fail(err)
			}
		}
		if strings.TrimSpace(in.Title) == "" {
			return fail(fmt.Errorf("title is required"))
		}

		it, err := env.client.CreateItem(commandContext(cmd), pid, in)
		if err != nil {
			return fail(err)
		}

		if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
			return output.JSON(it)
		}
		output.Success("CREATED %s", it.ID)
		fmt.Println(output.FormatItemShort(*it))
		return nil
	},
}

// promptItem asks for a title and, if unset, a description.
func promptItem(in *syncclient.NewItem) error {
	fields := []huh.Field{
		huh.NewInput().
			Title("Title").
			Value(&in.Title).
			Validate(func(s string) error {
				if strings.TrimSpace(s) == "" {
					return fmt.Errorf("title is required")
				}
				return nil
			}),
	}
	if in.Description == "" {
		fields = append(fields, huh.NewText().
			Title("Description").
			Description("Markdown, optional").
			Value(&in.Description))
	}
	return huh.NewForm(huh.NewGroup(fields...)).Run()
}

func init() {
	rootCmd.AddCommand(createCmd)
	createCmd.Flags().StringP("column", "c", "", "Column (default: backlog)")
	createCmd.Flags().StringP("description", "d", "", "Description (markdown)")
	createCmd.Flags().Bool("json", false, "Output as JSON")
}
