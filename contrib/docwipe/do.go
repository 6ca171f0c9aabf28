package docwipe

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/docmigrate/docmigrate/pkg/remote"
)

// Do executes a wipe based on the provided configuration.
// The configuration should be validated before calling this function.
func Do(ctx context.Context, config *Config, log zerolog.Logger) (Stats, error) {
	client, err := remote.New(config.Remote, log)
	if err != nil {
		return Stats{}, err
	}

	log.Info().
		Str("database", config.Remote.Database).
		Str("collection", config.Remote.Collection).
		Int("limit", config.Limit).
		Msg("starting wipe")
	startTime := time.Now()

	stats, err := New(client, config.Limit, log).Wipe(ctx)
	if err != nil {
		log.Error().
			Err(err).
			Int("deleted", stats.Deleted).
			Int("cycles", stats.Cycles).
			Msg("wipe stopped")
		return stats, fmt.Errorf("wipe failed: %w", err)
	}

	log.Info().
		Int("deleted", stats.Deleted).
		Int("cycles", stats.Cycles).
		Dur("elapsed", time.Since(startTime)).
		Msg("wipe complete")
	return stats, nil
}
