package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marcus/kb/internal/config"
	"github.com/marcus/kb/internal/output"
)

var configCmd = &cobra.Command{
	Use:     "config",
	Short:   "Manage kb configuration",
	GroupID: "system",
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value",
	Long:  "Set a config value. Keys: " + strings.Join(config.Keys, ", "),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		dir, err := config.Dir()
		if err != nil {
			return fail(err)
		}
		if err := config.Set(dir, key, val); err != nil {
			return fail(err)
		}
		if key == "api_key" {
			val = config.MaskedKey(val)
		}
		output.Success("set %s = %s", key, val)
		return nil
	},
}

// configView is the effective configuration as shown to the user.
type configView struct {
	ConfigDir       string `json:"config_dir"`
	ServerURL       string `json:"server_url"`
	APIKey          string `json:"api_key"`
	ProjectID       string `json:"project_id"`
	RefreshInterval string `json:"refresh_interval"`
	Retries         int    `json:"retries"`
}

var configShowCmd = &cobra.Command{
	Use:     "show",
	Aliases: []string{"list"},
	Short:   "Show the effective configuration",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := config.Dir()
		if err != nil {
			return fail(err)
		}
		cfg, err := config.Load(dir)
		if err != nil {
			return fail(err)
		}
		s := config.Resolve(cfg)
		view := configView{
			ConfigDir:       dir,
			ServerURL:       s.ServerURL,
			APIKey:          config.MaskedKey(s.APIKey),
			ProjectID:       s.ProjectID,
			RefreshInterval: s.RefreshInterval.String(),
			Retries:         s.Retries,
		}

		if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
			return output.JSON(view)
		}
		fmt.Printf("config dir:       %s\n", view.ConfigDir)
		fmt.Printf("server_url:       %s\n", view.ServerURL)
		fmt.Printf("api_key:          %s\n", view.APIKey)
		fmt.Printf("project_id:       %s\n", view.ProjectID)
		fmt.Printf("refresh_interval: %s\n", view.RefreshInterval)
		fmt.Printf("retries:          %d\n", view.Retries)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:     "version",
	Short:   "Show version",
	GroupID: "system",
	Args:    cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if short, _ := cmd.Flags().GetBool("short"); short {
			fmt.Print(versionStr)
			return
		}
		fmt.Printf("kb version %s\n", versionStr)
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configSetCmd, configShowCmd)
	configShowCmd.Flags().Bool("json", false, "Output as JSON")

	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().Bool("short", false, "Print only the version")
}
