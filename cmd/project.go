package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marcus/kb/internal/config"
	"github.com/marcus/kb/internal/output"
)

var validRoles = map[string]bool{"owner": true, "writer": true, "reader": true}

var projectCmd = &cobra.Command{
	Use:     "project",
	Aliases: []string{"proj"},
	Short:   "Manage projects",
	GroupID: "team",
}

var projectCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a project and select it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnv()
		if err != nil {
			return fail(err)
		}
		description, _ := cmd.Flags().GetString("description")

		p, err := env.client.CreateProject(commandContext(cmd), args[0], description)
		if err != nil {
			return fail(err)
		}

		if noUse, _ := cmd.Flags().GetBool("no-use"); !noUse {
			if err := useProject(env.dir, p.ID); err != nil {
				output.Success("Created project %s (%s)", p.Name, p.ID)
				output.Warning("could not select it: %v", err)
				return nil
			}
		}
		output.Success("Created project %s (%s)", p.Name, p.ID)
		return nil
	},
}

var projectListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List your projects",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnv()
		if err != nil {
			return fail(err)
		}
		projects, err := env.client.ListProjects(commandContext(cmd))
		if err != nil {
			return fail(err)
		}

		if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
			return output.JSON(projects)
		}
		if len(projects) == 0 {
			fmt.Println("No projects.")
			return nil
		}
		for _, p := range projects {
			marker := " "
			if p.ID == env.settings.ProjectID {
				marker = "*"
			}
			fmt.Printf("%s %-26s  %-24s  %s\n", marker, p.ID, p.Name, output.FormatTimeAgo(p.CreatedAt))
		}
		return nil
	},
}

var projectUseCmd = &cobra.Command{
	Use:   "use <project-id>",
	Short: "Select the project other commands act on",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnv()
		if err != nil {
			return fail(err)
		}
		p, err := env.client.GetProject(commandContext(cmd), args[0])
		if err != nil {
			return fail(err)
		}
		if err := useProject(env.dir, p.ID); err != nil {
			return fail(err)
		}
		output.Success("Using project %s (%s)", p.Name, p.ID)
		return nil
	},
}

var memberCmd = &cobra.Command{
	Use:     "member",
	Short:   "Manage project members",
	GroupID: "team",
}

var memberAddCmd = &cobra.Command{
	Use:   "add <email>",
	Short: "Add a user to the project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		role, _ := cmd.Flags().GetString("role")
		if !validRoles[role] {
			return fail(fmt.Errorf("invalid role %q (valid: owner, writer, reader)", role))
		}
		env, err := loadEnv()
		if err != nil {
			return fail(err)
		}
		pid, err := env.projectID(cmd)
		if err != nil {
			return fail(err)
		}
		m, err := env.client.AddMember(commandContext(cmd), pid, args[0], role)
		if err != nil {
			return fail(err)
		}
		output.Success("Added %s as %s", args[0], m.Role)
		return nil
	},
}

var memberListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List project members",
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
		members, err := env.client.ListMembers(commandContext(cmd), pid)
		if err != nil {
			return fail(err)
		}

		if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
			return output.JSON(members)
		}
		if len(members) == 0 {
			fmt.Println("No members.")
			return nil
		}
		fmt.Printf("%-24s  %-8s  %s\n", "USER ID", "ROLE", "ADDED")
		for _, m := range members {
			fmt.Printf("%-24s  %-8s  %s\n", m.UserID, m.Role, output.FormatTimeAgo(m.CreatedAt))
		}
		return nil
	},
}

var memberRemoveCmd = &cobra.Command{
	Use:   "remove <user-id>",
	Short: "Remove a user from the project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnv()
		if err != nil {
			return fail(err)
		}
		pid, err := env.projectID(cmd)
		if err != nil {
			return fail(err)
		}
		if err := env.client.RemoveMember(commandContext(cmd), pid, args[0]); err != nil {
			return fail(err)
		}
		output.Success("Removed %s", args[0])
		return nil
	},
}

func useProject(dir, projectID string) error {
	return config.Update(dir, func(c *config.Config) error {
		c.ProjectID = projectID
		return nil
	})
}

func init() {
	rootCmd.AddCommand(projectCmd)
	projectCmd.AddCommand(projectCreateCmd, projectListCmd, projectUseCmd)
	projectCreateCmd.Flags().StringP("description", "d", "", "Project description")
	projectCreateCmd.Flags().Bool("no-use", false, "Do not select the new project")
	projectListCmd.Flags().Bool("json", false, "Output as JSON")

	rootCmd.AddCommand(memberCmd)
	memberCmd.AddCommand(memberAddCmd, memberListCmd, memberRemoveCmd)
	memberAddCmd.Flags().String("role", "writer", "Role: owner, writer, or reader")
	memberListCmd.Flags().Bool("json", false, "Output as JSON")
}
