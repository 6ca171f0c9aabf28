// Package docrestore recreates documents from a backup file, one at a time.
package docrestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"filippo.io/age"
	"github.com/rs/zerolog"

	"github.com/docmigrate/docmigrate"
	"github.com/docmigrate/docmigrate/contrib/docdump"
	"github.com/docmigrate/docmigrate/internal/sealed"
	"github.com/docmigrate/docmigrate/pkg/constants"
	"github.com/docmigrate/docmigrate/pkg/csvcodec"
	"github.com/docmigrate/docmigrate/pkg/models"
)

// Creator creates one document in the target collection.
type Creator interface {
	Create(ctx context.Context, id string, data map[string]any, permissions []string) (models.Record, error)
}

// Stats tracks restoration progress. On failure it counts the rows created before the error.
type Stats struct {
	RecordsRestored int
	// Verified is set when the backup checksum was checked against its manifest.
	Verified bool
}

// Restorer handles the restore process
type Restorer struct {
	creator    Creator
	identities []age.Identity
	skipVerify bool
	log        zerolog.Logger
}

// New creates a new Restorer instance
func New(creator Creator, log zerolog.Logger) *Restorer {
	return &Restorer{creator: creator, log: log}
}

// WithIdentities sets the age identities used to open encrypted backups.
func (r *Restorer) WithIdentities(ids ...age.Identity) *Restorer {
	r.identities = ids
	return r
}

// SkipVerify disables the manifest checksum check.
func (r *Restorer) SkipVerify(skip bool) *Restorer {
	r.skipVerify = skip
	return r
}

// Restore verifies the backup at path against its manifest, if it has one, and replays it.
func (r *Restorer) Restore(ctx context.Context, path string) (Stats, error) {
	var stats Stats
	if path == "" {
		return stats, docmigrate.Usagef("input file is required for restore")
	}

	if !r.skipVerify {
		verified, err := r.verify(path)
		if err != nil {
			return stats, err
		}
		stats.Verified = verified
	}

	file, err := os.Open(path)
	if err != nil {
		return stats, &docmigrate.IOError{Op: "open", Path: path, Err: err}
	}
	defer file.Close()

	var input io.Reader = file
	if strings.HasSuffix(path, constants.EncryptedSuffix) {
		input, err = sealed.Decrypt(file, r.identities...)
		if err != nil {
			return stats, &docmigrate.DecodeError{Err: fmt.Errorf("decrypt %s: %w", path, err)}
		}
	}

	restored, err := r.FromReader(ctx, input)
	restored.Verified = stats.Verified
	return restored, err
}

func (r *Restorer) verify(path string) (bool, error) {
	manifest, err := docdump.ReadManifest(path)
	if errors.Is(err, docdump.ErrNoManifest) {
		r.log.Debug().Str("file", path).Msg("no manifest, skipping checksum verification")
		return false, nil
	}
	if err != nil {
		return false, &docmigrate.DecodeError{Err: err}
	}
	if err := docdump.Verify(path, manifest); err != nil {
		return false, err
	}
	r.log.Debug().Str("file", path).Str("sha256", manifest.SHA256).Int("records", manifest.Records).Msg("checksum verified")
	return true, nil
}

// FromReader creates one document per CSV row read from src, in file order.
// The first decode or create failure stops the run.
func (r *Restorer) FromReader(ctx context.Context, src io.Reader) (Stats, error) {
	var stats Stats
	dec := csvcodec.NewDecoder(src)
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		rec, err := dec.Decode()
		if err == io.EOF {
			return stats, nil
		}
		if err != nil {
			return stats, err
		}

		if _, err := r.creator.Create(ctx, rec.ID, rec.Data, rec.Permissions); err != nil {
			return stats, fmt.Errorf("row %d: %w", dec.Row(), err)
		}
		stats.RecordsRestored++
		r.log.Debug().Str("id", rec.ID).Int("row", dec.Row()).Msg("document created")
	}
}
