package docrestore

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/docmigrate/docmigrate/internal/sealed"
	"github.com/docmigrate/docmigrate/pkg/remote"
)

// newRestorer creates a new restorer from the configuration
func newRestorer(config *Config, log zerolog.Logger) (*Restorer, error) {
	client, err := remote.New(config.Remote, log)
	if err != nil {
		return nil, err
	}
	restorer := New(client, log).SkipVerify(config.SkipVerify)

	if config.IdentityFile != "" {
		ids, err := sealed.LoadIdentities(config.IdentityFile)
		if err != nil {
			return nil, err
		}
		restorer.WithIdentities(ids...)
	}
	return restorer, nil
}

// Do executes the restore operation based on the configuration.
// The configuration should be validated before calling this function.
func Do(ctx context.Context, config *Config, log zerolog.Logger) (Stats, error) {
	restorer, err := newRestorer(config, log)
	if err != nil {
		return Stats{}, err
	}

	log.Info().
		Str("file", config.Input).
		Str("database", config.Remote.Database).
		Str("collection", config.Remote.Collection).
		Msg("starting restore")
	startTime := time.Now()

	stats, err := restorer.Restore(ctx, config.Input)
	if err != nil {
		log.Error().
			Err(err).
			Int("records", stats.RecordsRestored).
			Msg("restore stopped")
		return stats, fmt.Errorf("restore failed: %w", err)
	}

	log.Info().
		Int("records", stats.RecordsRestored).
		Bool("verified", stats.Verified).
		Dur("elapsed", time.Since(startTime)).
		Msg("restore complete")
	return stats, nil
}
