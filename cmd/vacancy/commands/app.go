package commands

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/vacancy/account"
	"github.com/teranos/vacancy/admission"
	"github.com/teranos/vacancy/am"
	"github.com/teranos/vacancy/application"
	"github.com/teranos/vacancy/errors"
	"github.com/teranos/vacancy/listing"
	"github.com/teranos/vacancy/payment"
	"github.com/teranos/vacancy/pulse/schedule"
	"github.com/teranos/vacancy/search"
	"github.com/teranos/vacancy/server"
)

// sweepKey identifies the single recurring abandoned-draft sweep
const sweepKey = "sweep"

// App is the wired job board: every service built from one configuration
type App struct {
	Accounts     *account.Service
	Listings     *listing.Service
	Applications *application.Service
	Searcher     *search.Searcher
	Admission    *admission.Enforcer
	Gateway      payment.Gateway
	Hub          *server.Hub
	Tasks        *schedule.Store
	Dispatcher   *schedule.Dispatcher
	Registry     *schedule.Registry
	Ticker       *schedule.Ticker

	closeGate func() error
}

// NewApp wires services over database according to cfg
func NewApp(ctx context.Context, cfg *am.Config, database *sql.DB, log *zap.SugaredLogger) (*App, error) {
	gate, closeGate, err := admission.FromConfig(cfg.Admission, log)
	if err != nil {
		return nil, err
	}
	enforcer := admission.NewEnforcer(gate, log.Named("admission"))

	gateway, err := newGateway(cfg.Payment, log)
	if err != nil {
		closeGate()
		return nil, err
	}

	app := &App{
		Admission: enforcer,
		Gateway:   gateway,
		Hub:       server.NewHub(log),
		Tasks:     schedule.NewStore(database),
		Registry:  schedule.NewRegistry(),
		closeGate: closeGate,
	}
	app.Dispatcher = schedule.NewDispatcher(app.Tasks, log.Named("pulse"))

	accountStore := account.NewStore(database)
	app.Accounts = account.NewService(accountStore, enforcer, log.Named("account"))

	listingStore := listing.NewStore(database)
	app.Listings = listing.NewService(listingStore, accountStore, gateway, app.Dispatcher, enforcer, app.Hub,
		listing.Config{
			Tiers:        listing.TiersFromConfig(cfg.Listing.Tiers),
			PublicURL:    cfg.Server.PublicURL,
			Currency:     cfg.Payment.Currency,
			AbandonAfter: time.Duration(cfg.Listing.AbandonAfterHours) * time.Hour,
		}, log.Named("listing"))
	app.Applications = application.NewService(application.NewStore(database), accountStore, enforcer, log.Named("application"))
	app.Searcher = search.NewSearcher(listingStore, log.Named("search"))

	for _, h := range app.Listings.Handlers() {
		app.Registry.Register(h)
	}
	app.Ticker = schedule.NewTicker(app.Tasks, app.Registry, schedule.TickerConfig{
		Interval:   time.Duration(cfg.Pulse.TickerIntervalSeconds) * time.Second,
		Lease:      time.Duration(cfg.Pulse.LeaseSeconds) * time.Second,
		MaxBackoff: time.Duration(cfg.Pulse.MaxBackoffSeconds) * time.Second,
		BatchSize:  cfg.Pulse.BatchSize,
	}, log)

	if cfg.Listing.AbandonAfterHours > 0 {
		interval := time.Duration(cfg.Listing.SweepIntervalMinutes) * time.Minute
		if _, err := app.Dispatcher.EnsureRecurring(ctx, listing.TaskReapAbandoned, sweepKey, nil,
			interval, time.Now().Add(interval)); err != nil {
			app.Close()
			return nil, errors.Wrap(err, "failed to schedule abandoned draft sweep")
		}
	}
	return app, nil
}

// Close releases admission backend connections
func (a *App) Close() error {
	return a.closeGate()
}

func newGateway(cfg am.PaymentConfig, log *zap.SugaredLogger) (payment.Gateway, error) {
	switch cfg.Provider {
	case "stripe":
		if cfg.SecretKey == "" || cfg.WebhookSecret == "" {
			return nil, errors.NewConfigurationError("stripe provider needs payment.secret_key and payment.webhook_secret")
		}
		return payment.NewStripe(cfg.SecretKey, cfg.WebhookSecret, log.Named("payment")), nil
	case "fake":
		log.Warnw("Using the fake payment gateway; checkouts are never charged")
		return payment.NewFake(cfg.WebhookSecret), nil
	default:
		return nil, errors.NewConfigurationError("unknown payment provider %q", cfg.Provider)
	}
}
