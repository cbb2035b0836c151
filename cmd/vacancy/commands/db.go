package commands

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/vacancy/account"
	"github.com/teranos/vacancy/application"
	"github.com/teranos/vacancy/display"
	"github.com/teranos/vacancy/errors"
	"github.com/teranos/vacancy/listing"
	"github.com/teranos/vacancy/pulse/schedule"
)

// DbCmd represents the db (database) command
var DbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the vacancy database",
	Long: `db: Manage vacancy database operations

Examples:
  vacancy db migrate              # Apply pending schema migrations
  vacancy db stats                # Show row counts by lifecycle state`,
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDatabase(dbPathFlag)
		if err != nil {
			return err
		}
		defer database.Close()
		pterm.Success.Println("Database schema is up to date")
		return nil
	},
}

var dbStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show database statistics",
	Long:  "Display users by type, job posts by status, applications by status and scheduled tasks by state",
	RunE:  runDbStats,
}

var dbPathFlag string

func init() {
	DbCmd.PersistentFlags().StringVar(&dbPathFlag, "db-path", "", "Custom database path (overrides config)")
	DbCmd.AddCommand(dbMigrateCmd)
	DbCmd.AddCommand(dbStatsCmd)
}

// dbStats is a snapshot of row counts per lifecycle state
type dbStats struct {
	Users        map[account.UserType]int   `json:"users"`
	Posts        map[listing.Status]int     `json:"job_posts"`
	Applications map[application.Status]int `json:"applications"`
	Tasks        map[string]int             `json:"scheduled_tasks"`
}

func collectStats(ctx context.Context, database *sql.DB) (*dbStats, error) {
	users, err := account.NewStore(database).CountUsersByType(ctx)
	if err != nil {
		return nil, err
	}
	posts, err := listing.NewStore(database).CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	apps, err := application.NewStore(database).CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	tasks, err := schedule.NewStore(database).CountByState(ctx)
	if err != nil {
		return nil, err
	}
	return &dbStats{Users: users, Posts: posts, Applications: apps, Tasks: tasks}, nil
}

func runDbStats(cmd *cobra.Command, args []string) error {
	database, err := openDatabase(dbPathFlag)
	if err != nil {
		return errors.Wrap(err, "failed to open database")
	}
	defer database.Close()

	stats, err := collectStats(cmd.Context(), database)
	if err != nil {
		return errors.Wrap(err, "failed to collect statistics")
	}
	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(cmd.OutOrStdout(), stats)
	}

	pterm.DefaultSection.Println("Database statistics")
	data := pterm.TableData{{"Table", "State", "Rows"}}
	for _, t := range []account.UserType{account.UserTypeUnset, account.UserTypeCompany, account.UserTypeJobSeeker} {
		data = append(data, []string{"users", string(t), fmt.Sprint(stats.Users[t])})
	}
	for _, s := range []listing.Status{listing.StatusPendingPayment, listing.StatusActive, listing.StatusExpired, listing.StatusCancelled} {
		data = append(data, []string{"job_posts", string(s), fmt.Sprint(stats.Posts[s])})
	}
	for _, s := range []application.Status{application.StatusPending, application.StatusReviewed, application.StatusShortlisted,
		application.StatusRejected, application.StatusAccepted, application.StatusWithdrawn} {
		data = append(data, []string{"applications", string(s), fmt.Sprint(stats.Applications[s])})
	}
	for _, s := range []string{schedule.StatePending, schedule.StateRunning, schedule.StateCompleted, schedule.StateCancelled} {
		data = append(data, []string{"scheduled_tasks", s, fmt.Sprint(stats.Tasks[s])})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}
