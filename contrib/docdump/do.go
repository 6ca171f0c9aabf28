package docdump

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/docmigrate/docmigrate/internal/sealed"
	"github.com/docmigrate/docmigrate/pkg/remote"
)

// newDumper creates a new dumper from the configuration
func newDumper(config *Config, log zerolog.Logger) (*Dumper, error) {
	client, err := remote.New(config.Remote, log)
	if err != nil {
		return nil, err
	}
	dumper := New(client, config.Remote.Database, config.Remote.Collection, config.Limit, log)

	if len(config.Recipients) > 0 {
		recipients, err := sealed.ParseRecipients(config.Recipients)
		if err != nil {
			return nil, err
		}
		dumper.WithRecipients(recipients...)
	}
	return dumper, nil
}

// Do executes a backup operation based on the provided configuration.
// The configuration should be validated before calling this function.
func Do(ctx context.Context, config *Config, log zerolog.Logger) (Stats, error) {
	dumper, err := newDumper(config, log)
	if err != nil {
		return Stats{}, err
	}

	log.Info().
		Str("database", config.Remote.Database).
		Str("collection", config.Remote.Collection).
		Int("limit", config.Limit).
		Msg("starting backup")
	startTime := time.Now()

	stats, err := dumper.Backup(ctx, config.GetDir())
	if err != nil {
		log.Error().
			Err(err).
			Int("records", stats.Records).
			Int("pages", stats.Pages).
			Str("removed", stats.Path).
			Msg("backup failed, partial file removed")
		return stats, fmt.Errorf("backup failed: %w", err)
	}

	log.Info().
		Str("file", stats.Path).
		Int("records", stats.Records).
		Int("pages", stats.Pages).
		Str("size", formatBytes(stats.Size)).
		Str("sha256", stats.SHA256).
		Dur("elapsed", time.Since(startTime)).
		Msg("backup complete")
	return stats, nil
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
