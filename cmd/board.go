package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/marcus/kb/internal/board"
	"github.com/marcus/kb/internal/models"
	"github.com/marcus/kb/internal/output"
	"github.com/marcus/kb/internal/session"
	"github.com/marcus/kb/internal/tui/boardview"
)

// boardColumnJSON is one column of `kb board --json`.
type boardColumnJSON struct {
	Column models.ColumnKey `json:"column"`
	Items  []models.Item    `json:"items"`
}

// settleTimeout bounds how long kb waits for queued moves on exit.
const settleTimeout = 10 * time.Second

var boardCmd = &cobra.Command{
	Use:     "board",
	Aliases: []string{"b"},
	Short:   "Show the board",
	Long: `Show the project's board, one box per column.

With -i the board is interactive: select a card, press m to pick it up, and
use the arrow keys to move it. Each step is saved in the background.`,
	GroupID: "board",
	Args:    cobra.NoArgs,
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

		if interactive, _ := cmd.Flags().GetBool("interactive"); interactive {
			return runInteractiveBoard(ctx, env, pid, state)
		}

		var column models.ColumnKey
		if c, _ := cmd.Flags().GetString("column"); c != "" {
			column, err = models.ParseColumn(c)
			if err != nil {
				return fail(err)
			}
		}

		if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
			var out []boardColumnJSON
			for _, c := range state.Columns() {
				if column != "" && c != column {
					continue
				}
				out = append(out, boardColumnJSON{Column: c, Items: state.Column(c)})
			}
			return output.JSON(out)
		}

		if column != "" {
			fmt.Print(output.RenderColumnList(state, column))
			return nil
		}
		fmt.Println(output.RenderBoard(state, output.TerminalWidth(120)))
		return nil
	},
}

func runInteractiveBoard(ctx context.Context, env *clientEnv, pid string, initial board.State) error {
	remote := env.board(pid)
	feed := boardview.NewFeed()
	sess := session.New(remote, initial,
		session.WithOnChange(feed.Publish),
		session.WithFetcher(remote),
		session.WithLogger(slog.New(slog.DiscardHandler)),
	)
	defer sess.Close()

	title := pid
	if p, err := env.client.GetProject(ctx, pid); err == nil {
		title = p.Name
	}

	m := boardview.NewModel(ctx, sess, feed, title, env.settings.RefreshInterval)
	if _, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
		return fail(err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, settleTimeout)
	defer cancel()
	if err := sess.Wait(waitCtx); err != nil {
		output.Warning("some moves were still saving and may not have been stored")
	}
	return nil
}

func init() {
	rootCmd.AddCommand(boardCmd)
	boardCmd.Flags().StringP("column", "c", "", "Show only one column")
	boardCmd.Flags().Bool("json", false, "Output as JSON")
	boardCmd.Flags().BoolP("interactive", "i", false, "Open the interactive board")
}
