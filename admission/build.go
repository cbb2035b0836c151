package admission

import (
	"go.uber.org/zap"

	"github.com/teranos/vacancy/am"
	"github.com/teranos/vacancy/errors"
)

// FromConfig assembles the gate described by cfg.
// The returned close function releases backend connections and is never nil.
func FromConfig(cfg am.AdmissionConfig, log *zap.SugaredLogger) (Gate, func() error, error) {
	noop := func() error { return nil }
	if !cfg.Enabled {
		log.Infow("Admission gate disabled")
		return AllowAll(), noop, nil
	}

	var chain Chain
	if cfg.BlockBots {
		chain = append(chain, NewShield(cfg.AllowedBotPrefixes))
	}
	if cfg.GlobalUnitsPerSec > 0 {
		chain = append(chain, NewBucketLimiter(cfg.GlobalUnitsPerSec, cfg.GlobalBurst))
	}

	closer := noop
	switch cfg.Backend {
	case "", "memory":
		chain = append(chain, NewWindowLimiter(cfg.UnitsPerMinute))
	case "redis":
		client := NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		chain = append(chain, NewRedisLimiter(client, cfg.UnitsPerMinute))
		closer = client.Close
	default:
		return nil, noop, errors.NewConfigurationError("unknown admission backend %q", cfg.Backend)
	}

	log.Infow("Admission gate enabled",
		"backend", cfg.Backend,
		"units_per_minute", cfg.UnitsPerMinute,
		"block_bots", cfg.BlockBots)
	return chain, closer, nil
}
