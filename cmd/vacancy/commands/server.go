package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/vacancy/am"
	"github.com/teranos/vacancy/errors"
	"github.com/teranos/vacancy/listing"
	"github.com/teranos/vacancy/logger"
	"github.com/teranos/vacancy/server"
)

// ServerCmd starts the job board API
var ServerCmd = &cobra.Command{
	Use:     "server",
	Aliases: []string{"serve"},
	Short:   "Start the job board API server",
	Long: `Launch the vacancy HTTP API together with the Pulse ticker that expires
listings on schedule and sweeps abandoned drafts.

The listing event feed is served at /ws/listings.`,
	RunE: runServer,
}

var (
	serverDBPath string
	serverPort   int
)

func init() {
	ServerCmd.Flags().StringVar(&serverDBPath, "db-path", "", "Custom database path (overrides config)")
	ServerCmd.Flags().IntVar(&serverPort, "port", 0, "Listen port (overrides config)")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadValidConfig()
	if err != nil {
		return err
	}

	port := am.GetServerPort()
	if serverPort > 0 {
		port = serverPort
	}
	dbPath := cfg.Database.Path
	if serverDBPath != "" {
		dbPath = serverDBPath
	}

	database, err := openDatabase(dbPath)
	if err != nil {
		return errors.Wrap(err, "failed to open database")
	}
	defer database.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := NewApp(ctx, cfg, database, logger.Logger)
	if err != nil {
		return err
	}
	defer app.Close()

	printStartupBanner(cfg, dbPath, port)

	srv := server.New(cfg.Server, server.Deps{
		Accounts:     app.Accounts,
		Listings:     app.Listings,
		Applications: app.Applications,
		Searcher:     app.Searcher,
		Admission:    app.Admission,
		Hub:          app.Hub,
		Ticker:       app.Ticker,
	}, logger.Logger)

	if w := watchConfig(app); w != nil {
		defer w.Stop()
	}

	app.Ticker.Start()
	defer app.Ticker.Stop()

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start(fmt.Sprintf(":%d", port))
	}()

	// GRACE: Wait for shutdown signal (Ctrl+C)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return errors.Wrap(err, "server stopped unexpectedly")
	case <-sigChan:
		pterm.Info.Println("Shutting down gracefully (press Ctrl+C again to force)...")

		shutdownDone := make(chan error, 1)
		go func() {
			shutdownDone <- srv.Stop(ctx)
		}()

		select {
		case err := <-shutdownDone:
			if err != nil {
				return fmt.Errorf("shutdown error: %w", err)
			}
			pterm.Success.Println("Server stopped cleanly")
			return nil
		case <-sigChan:
			pterm.Warning.Println("Force shutdown - exiting immediately")
			os.Exit(1)
			return nil // unreachable
		}
	}
}

// watchConfig applies pricing tier edits to the running server. Other settings
// still need a restart. Returns nil when no config directory exists yet.
func watchConfig(app *App) *am.ConfigWatcher {
	w, err := am.NewConfigWatcher(am.ConfigPaths()...)
	if err != nil {
		logger.Debugw("Config hot reload disabled", "reason", err)
		return nil
	}
	w.OnReload(func(cfg *am.Config) error {
		return app.Listings.SetTiers(listing.TiersFromConfig(cfg.Listing.Tiers))
	})
	am.SetGlobalWatcher(w)
	w.Start()
	return w
}
