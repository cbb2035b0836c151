package am

import (
	"github.com/spf13/viper"
)

// DefaultTiers is the pricing table used when none is configured.
var DefaultTiers = []TierConfig{
	{Days: 30, PriceCents: 5900, Description: "Standard listing"},
	{Days: 60, PriceCents: 9900, Description: "Extended visibility"},
	{Days: 90, PriceCents: 14900, Description: "Maximum exposure"},
}

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "vacancy.db")

	v.SetDefault("server.public_url", "http://localhost:8787")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.shutdown_timeout_seconds", 10)

	v.SetDefault("payment.provider", "stripe")
	v.SetDefault("payment.currency", "usd")

	tiers := make([]map[string]interface{}, 0, len(DefaultTiers))
	for _, t := range DefaultTiers {
		tiers = append(tiers, map[string]interface{}{
			"days":        t.Days,
			"price_cents": t.PriceCents,
			"description": t.Description,
		})
	}
	v.SetDefault("listing.tiers", tiers)
	v.SetDefault("listing.abandon_after_hours", 72)
	v.SetDefault("listing.sweep_interval_minutes", 60)

	v.SetDefault("pulse.ticker_interval_seconds", 1)
	v.SetDefault("pulse.lease_seconds", 60)
	v.SetDefault("pulse.max_backoff_seconds", 300)
	v.SetDefault("pulse.batch_size", 100)

	v.SetDefault("admission.enabled", true)
	v.SetDefault("admission.backend", "memory")
	v.SetDefault("admission.units_per_minute", 30)
	v.SetDefault("admission.global_units_per_sec", 50.0)
	v.SetDefault("admission.global_burst", 100)
	v.SetDefault("admission.block_bots", true)
	v.SetDefault("admission.redis.addr", "localhost:6379")
}

// BindSensitiveEnvVars binds secrets to environment variables so they never need a file.
// The second name of each pair matches the variable the storefront deployment already sets.
func BindSensitiveEnvVars(v *viper.Viper) {
	v.BindEnv("payment.secret_key", "VACANCY_PAYMENT_SECRET_KEY", "SECRET_STRIPE_KEY")
	v.BindEnv("payment.webhook_secret", "VACANCY_PAYMENT_WEBHOOK_SECRET", "STRIPE_WEBHOOK_SECRET")
	v.BindEnv("admission.redis.password", "VACANCY_ADMISSION_REDIS_PASSWORD")
	v.BindEnv("database.path", "VACANCY_DATABASE_PATH")
}

// GetServerPort returns the configured server port, or DefaultServerPort
func GetServerPort() int {
	cfg, err := Load()
	if err != nil || cfg.Server.Port == nil {
		return DefaultServerPort
	}
	return *cfg.Server.Port
}

// GetDatabasePath returns the configured database path
func GetDatabasePath() (string, error) {
	cfg, err := Load()
	if err != nil {
		return "", err
	}
	return cfg.Database.Path, nil
}

func viperWithDefaults() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	return v
}
