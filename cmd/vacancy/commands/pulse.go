package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/vacancy/am"
	"github.com/teranos/vacancy/display"
	"github.com/teranos/vacancy/errors"
	"github.com/teranos/vacancy/logger"
	"github.com/teranos/vacancy/pulse/schedule"
)

// PulseCmd represents the pulse command - the scheduled task runner
var PulseCmd = &cobra.Command{
	Use:   "pulse",
	Short: "Inspect and run scheduled listing tasks",
	Long: `Pulse runs deferred work for the job board: each paid listing gets an
expiration task, and a recurring sweep cancels drafts that were never paid.

The server runs the ticker itself. "pulse start" runs it alone, for deployments
that keep the HTTP API and the scheduler in separate processes.

Examples:
  vacancy pulse ls                    # Pending tasks, soonest first
  vacancy pulse ls --state running
  vacancy pulse runs <task-id>        # Attempt history for one task
  vacancy pulse tick                  # Run everything due now, then exit
  vacancy pulse start                 # Run the ticker in the foreground`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var pulseLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List scheduled tasks",
	RunE:  runPulseLs,
}

var pulseRunsCmd = &cobra.Command{
	Use:   "runs <task-id>",
	Short: "Show the attempt history of a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runPulseRuns,
}

var pulseTickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Run every due task once and exit",
	RunE:  runPulseTick,
}

// PulseStartCmd runs the ticker without the HTTP API
var PulseStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the ticker in the foreground",
	RunE:  runPulseStart,
}

var (
	pulseState string
	pulseLimit int
)

func init() {
	PulseCmd.PersistentFlags().StringVar(&dbPathFlag, "db-path", "", "Custom database path (overrides config)")
	pulseLsCmd.Flags().StringVar(&pulseState, "state", schedule.StatePending, "Filter by state (pending, running, completed, cancelled; empty for all)")
	pulseLsCmd.Flags().IntVar(&pulseLimit, "limit", 50, "Maximum tasks to list")

	PulseCmd.AddCommand(pulseLsCmd)
	PulseCmd.AddCommand(pulseRunsCmd)
	PulseCmd.AddCommand(pulseTickCmd)
	PulseCmd.AddCommand(PulseStartCmd)
}

func runPulseLs(cmd *cobra.Command, args []string) error {
	database, err := openDatabase(dbPathFlag)
	if err != nil {
		return err
	}
	defer database.Close()

	tasks, err := schedule.NewStore(database).List(cmd.Context(), pulseState, pulseLimit)
	if err != nil {
		return err
	}
	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(cmd.OutOrStdout(), tasks)
	}
	if len(tasks) == 0 {
		pterm.Info.Println("No scheduled tasks")
		return nil
	}

	data := pterm.TableData{{"ID", "Task", "Key", "State", "Run at", "Attempts", "Last error"}}
	for _, t := range tasks {
		name := t.Name
		if t.IntervalSeconds > 0 {
			name += fmt.Sprintf(" (every %s)", time.Duration(t.IntervalSeconds)*time.Second)
		}
		data = append(data, []string{
			t.ID, name, t.DedupKey, t.State,
			t.RunAt.Local().Format(time.DateTime), fmt.Sprint(t.Attempts), t.LastError,
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func runPulseRuns(cmd *cobra.Command, args []string) error {
	database, err := openDatabase(dbPathFlag)
	if err != nil {
		return err
	}
	defer database.Close()

	store := schedule.NewStore(database)
	task, err := store.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	runs, err := store.ListRuns(cmd.Context(), task.ID)
	if err != nil {
		return err
	}

	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(cmd.OutOrStdout(), map[string]interface{}{"task": task, "runs": runs})
	}

	pterm.DefaultSection.Printfln("%s %s (%s)", task.Name, task.DedupKey, task.State)
	data := pterm.TableData{{"Run", "Status", "Started", "Duration", "Error"}}
	for _, r := range runs {
		duration := "-"
		if r.DurationMs != nil {
			duration = (time.Duration(*r.DurationMs) * time.Millisecond).String()
		}
		data = append(data, []string{r.ID, r.Status, r.StartedAt.Local().Format(time.DateTime), duration, r.ErrorMessage})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func runPulseTick(cmd *cobra.Command, args []string) error {
	cfg, err := loadValidConfig()
	if err != nil {
		return err
	}
	database, err := openDatabase(dbPathFlag)
	if err != nil {
		return err
	}
	defer database.Close()

	app, err := NewApp(cmd.Context(), cfg, database, logger.Logger)
	if err != nil {
		return err
	}
	defer app.Close()

	ran, err := app.Ticker.RunDue(cmd.Context(), time.Now())
	if err != nil {
		return errors.Wrap(err, "tick failed")
	}
	pterm.Success.Printfln("Ran %d due task(s)", ran)
	return nil
}

func runPulseStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadValidConfig()
	if err != nil {
		return err
	}
	database, err := openDatabase(dbPathFlag)
	if err != nil {
		return err
	}
	defer database.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := NewApp(ctx, cfg, database, logger.Logger)
	if err != nil {
		return err
	}
	defer app.Close()

	pterm.Info.Printfln("Pulse ticker running every %ds (Ctrl+C to stop)", cfg.Pulse.TickerIntervalSeconds)
	app.Ticker.Start()

	// GRACE: the in-flight batch finishes before Stop returns
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	pterm.Info.Println("Stopping ticker...")
	app.Ticker.Stop()
	pterm.Success.Println("Pulse stopped")
	return nil
}

func loadValidConfig() (*am.Config, error) {
	cfg, err := am.Load()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return cfg, nil
}
