package am

import (
	"net/url"

	"github.com/teranos/vacancy/errors"
)

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port != nil && *c.Server.Port <= 0 {
		return errors.Newf("server.port must be positive, got %d (omit for default %d)", *c.Server.Port, DefaultServerPort)
	}
	if c.Server.PublicURL == "" {
		return errors.New("server.public_url cannot be empty (checkout redirects are built from it)")
	}
	if u, err := url.Parse(c.Server.PublicURL); err != nil || u.Scheme == "" || u.Host == "" {
		return errors.Newf("server.public_url must be an absolute URL, got %q", c.Server.PublicURL)
	}

	switch c.Payment.Provider {
	case "stripe":
		if c.Payment.SecretKey == "" {
			return errors.WithHint(
				errors.New("payment.secret_key is required for the stripe provider"),
				"set VACANCY_PAYMENT_SECRET_KEY or SECRET_STRIPE_KEY")
		}
		if c.Payment.WebhookSecret == "" {
			return errors.WithHint(
				errors.New("payment.webhook_secret is required for the stripe provider"),
				"set VACANCY_PAYMENT_WEBHOOK_SECRET or STRIPE_WEBHOOK_SECRET")
		}
	case "fake":
	default:
		return errors.Newf("payment.provider must be stripe or fake, got %q", c.Payment.Provider)
	}

	if len(c.Listing.Tiers) == 0 {
		return errors.New("listing.tiers must define at least one tier")
	}
	seen := make(map[int]bool, len(c.Listing.Tiers))
	for _, t := range c.Listing.Tiers {
		if t.Days <= 0 {
			return errors.Newf("listing.tiers: days must be > 0, got %d", t.Days)
		}
		if t.PriceCents <= 0 {
			return errors.Newf("listing.tiers: price_cents for %d days must be > 0, got %d", t.Days, t.PriceCents)
		}
		if seen[t.Days] {
			return errors.Newf("listing.tiers: duplicate tier for %d days", t.Days)
		}
		seen[t.Days] = true
	}
	if c.Listing.AbandonAfterHours < 0 {
		return errors.Newf("listing.abandon_after_hours must be >= 0, got %d", c.Listing.AbandonAfterHours)
	}
	if c.Listing.AbandonAfterHours > 0 && c.Listing.SweepIntervalMinutes <= 0 {
		return errors.Newf("listing.sweep_interval_minutes must be > 0 when the sweep is enabled, got %d", c.Listing.SweepIntervalMinutes)
	}

	if c.Pulse.TickerIntervalSeconds <= 0 {
		return errors.Newf("pulse.ticker_interval_seconds must be > 0, got %d", c.Pulse.TickerIntervalSeconds)
	}
	if c.Pulse.LeaseSeconds <= 0 {
		return errors.Newf("pulse.lease_seconds must be > 0, got %d", c.Pulse.LeaseSeconds)
	}

	if c.Admission.Enabled {
		switch c.Admission.Backend {
		case "memory":
		case "redis":
			if c.Admission.Redis.Addr == "" {
				return errors.New("admission.redis.addr cannot be empty for the redis backend")
			}
		default:
			return errors.Newf("admission.backend must be memory or redis, got %q", c.Admission.Backend)
		}
		if c.Admission.UnitsPerMinute <= 0 {
			return errors.Newf("admission.units_per_minute must be > 0, got %d", c.Admission.UnitsPerMinute)
		}
		if c.Admission.GlobalUnitsPerSec < 0 {
			return errors.Newf("admission.global_units_per_sec must be >= 0, got %f", c.Admission.GlobalUnitsPerSec)
		}
		if c.Admission.GlobalUnitsPerSec > 0 && c.Admission.GlobalBurst <= 0 {
			return errors.Newf("admission.global_burst must be > 0 when a global rate is set, got %d", c.Admission.GlobalBurst)
		}
	}

	return nil
}
