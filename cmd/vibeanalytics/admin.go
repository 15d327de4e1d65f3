package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ttracx/vibeanalytics/internal/domain"
	spg "github.com/ttracx/vibeanalytics/internal/storage/postgres"
)

var (
	teamOwner     string
	teamMember    string
	projectTeam   string
	projectDomain string
	keyName       string
)

var teamCmd = &cobra.Command{
	Use:   "team",
	Short: "Manage teams",
}

var teamCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a team owned by --owner",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if teamOwner == "" {
			return fmt.Errorf("--owner is required")
		}
		db, err := openDB(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()

		team, err := db.CreateTeam(cmd.Context(), args[0], teamOwner)
		if err != nil {
			return err
		}
		return output(team, fmt.Sprintf("Created team %s (%s), owner %s", team.Name, team.ID, teamOwner))
	},
}

var teamAddMemberCmd = &cobra.Command{
	Use:   "add-member <team-id>",
	Short: "Add --user to a team as a member",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if teamMember == "" {
			return fmt.Errorf("--user is required")
		}
		db, err := openDB(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.AddMember(cmd.Context(), args[0], teamMember, domain.RoleMember); err != nil {
			return err
		}
		return output(map[string]string{"teamId": args[0], "userId": teamMember},
			fmt.Sprintf("Added %s to team %s", teamMember, args[0]))
	},
}

var teamKeyCmd = &cobra.Command{
	Use:   "create-key <team-id>",
	Short: "Issue an API key for a team",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()

		key, err := db.CreateAPIKey(cmd.Context(), args[0], keyName)
		if err != nil {
			return err
		}
		return output(key, fmt.Sprintf("Created API key %q: %s", key.Name, key.Key))
	},
}

var teamShowCmd = &cobra.Command{
	Use:   "show <team-id>",
	Short: "Show a team's plan and subscription period",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()

		team, err := db.GetTeam(cmd.Context(), args[0])
		if errors.Is(err, spg.ErrNotFound) {
			return fmt.Errorf("team %s not found", args[0])
		}
		if err != nil {
			return err
		}
		return output(team, teamSummary(team))
	},
}

func teamSummary(team domain.Team) string {
	s := fmt.Sprintf("%s (%s) plan=%s", team.Name, team.ID, team.Plan)
	if team.StripeCurrentPeriodEnd != nil {
		s += " renews=" + team.StripeCurrentPeriodEnd.UTC().Format(time.DateOnly)
	}
	return s
}

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects",
}

var projectCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a project in --team",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if projectTeam == "" {
			return fmt.Errorf("--team is required")
		}
		db, err := openDB(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()

		p, err := db.CreateProject(cmd.Context(), projectTeam, args[0], projectDomain)
		if err != nil {
			return err
		}
		return output(p, fmt.Sprintf("Created project %s (%s)\nEmbed: <script src=\"%s/tracker.js\" data-project=\"%s\" defer></script>",
			p.Name, p.ID, strings.TrimRight(cfg.AppURL, "/"), p.ID))
	},
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the projects of --team",
	RunE: func(cmd *cobra.Command, args []string) error {
		if projectTeam == "" {
			return fmt.Errorf("--team is required")
		}
		db, err := openDB(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()

		projects, err := db.ListProjects(cmd.Context(), projectTeam)
		if err != nil {
			return err
		}
		if jsonOutput {
			return output(projects, "")
		}
		for _, p := range projects {
			fmt.Printf("%s\t%s\t%s\n", p.ID, p.Name, p.Domain)
		}
		return nil
	},
}

// output prints v as JSON with --json, else the human summary.
func output(v any, summary string) error {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	fmt.Println(summary)
	return nil
}

func init() {
	teamCreateCmd.Flags().StringVar(&teamOwner, "owner", "", "user id of the team owner")
	teamAddMemberCmd.Flags().StringVar(&teamMember, "user", "", "user id to add")
	teamKeyCmd.Flags().StringVar(&keyName, "name", "", "key name")
	teamCmd.AddCommand(teamCreateCmd, teamAddMemberCmd, teamKeyCmd, teamShowCmd)

	projectCmd.PersistentFlags().StringVar(&projectTeam, "team", "", "owning team id")
	projectCreateCmd.Flags().StringVar(&projectDomain, "domain", "", "site domain")
	projectCmd.AddCommand(projectCreateCmd, projectListCmd)

	rootCmd.AddCommand(teamCmd, projectCmd)
}
