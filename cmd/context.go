package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marcus/kb/internal/board"
	"github.com/marcus/kb/internal/config"
	"github.com/marcus/kb/internal/output"
	"github.com/marcus/kb/internal/syncclient"
)

// clientEnv bundles what every server-backed command needs.
type clientEnv struct {
	dir      string
	settings config.Settings
	client   *syncclient.Client
}

func loadEnv() (*clientEnv, error) {
	dir, err := config.Dir()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	s := config.Resolve(cfg)
	if s.APIKey == "" {
		return nil, fmt.Errorf("no API key configured (run: kb config set api_key <key>)")
	}
	return &clientEnv{dir: dir, settings: s, client: syncclient.New(s.ServerURL, s.APIKey)}, nil
}

// projectID returns --project if given, otherwise the configured project.
func (e *clientEnv) projectID(cmd *cobra.Command) (string, error) {
	if p, _ := cmd.Flags().GetString("project"); p != "" {
		return p, nil
	}
	if e.settings.ProjectID != "" {
		return e.settings.ProjectID, nil
	}
	return "", fmt.Errorf("no project selected (run: kb project use <id>)")
}

func (e *clientEnv) board(projectID string) *syncclient.Board {
	return syncclient.NewBoard(e.client, projectID, e.settings.Retries)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// fail prints err for the user and returns it for cobra's exit status.
func fail(err error) error {
	output.Error("%s", describe(err))
	return err
}

// describe adds a hint to the errors users can act on.
func describe(err error) string {
	switch {
	case errors.Is(err, syncclient.ErrUnauthorized):
		return fmt.Sprintf("%v (check your API key)", err)
	case errors.Is(err, syncclient.ErrCrossTenant):
		return fmt.Sprintf("%v (the item belongs to another project)", err)
	case errors.Is(err, syncclient.ErrForbidden):
		return fmt.Sprintf("%v (your role in this project does not allow it)", err)
	case errors.Is(err, syncclient.ErrRateLimited):
		return fmt.Sprintf("%v (try again in a minute)", err)
	case syncclient.IsTransport(err):
		return fmt.Sprintf("%v (is the server running?)", err)
	default:
		return err.Error()
	}
}

// resolveItemID expands a unique id prefix against the board.
func resolveItemID(s board.State, arg string) (string, error) {
	if _, ok := s.Item(arg); ok {
		return arg, nil
	}
	var matches []string
	for _, it := range s.Items() {
		if strings.HasPrefix(it.ID, arg) {
			matches = append(matches, it.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no item matches %q", arg)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%q is ambiguous (%d items match)", arg, len(matches))
	}
}

// fetchBoard loads the whole board of a project.
func fetchBoard(ctx context.Context, b *syncclient.Board) (board.State, error) {
	items, err := b.FetchItems(ctx)
	if err != nil {
		return board.State{}, err
	}
	return board.Build(items), nil
}

func init() {
	rootCmd.PersistentFlags().StringP("project", "p", "", "Project id (default: configured project)")
}
