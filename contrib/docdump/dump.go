// Package docdump backs up a remote document collection to a CSV file.
package docdump

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"filippo.io/age"
	"github.com/rs/zerolog"

	"github.com/docmigrate/docmigrate"
	"github.com/docmigrate/docmigrate/internal/paginate"
	"github.com/docmigrate/docmigrate/internal/sealed"
	"github.com/docmigrate/docmigrate/pkg/constants"
	"github.com/docmigrate/docmigrate/pkg/csvcodec"
	"github.com/docmigrate/docmigrate/pkg/models"
)

// Stats reports what a backup wrote. On failure it holds the progress made before the error.
type Stats struct {
	Path    string
	Records int
	Pages   int
	Fetches int
	Size    int64
	SHA256  string
}

// Dumper handles the backup process of one collection.
type Dumper struct {
	lister     paginate.Lister
	database   string
	collection string
	limit      int
	recipients []age.Recipient
	now        func() time.Time
	log        zerolog.Logger
}

// New creates a new Dumper instance.
// database and collection name the source and are only used for the file name and manifest.
func New(lister paginate.Lister, database, collection string, limit int, log zerolog.Logger) *Dumper {
	return &Dumper{
		lister:     lister,
		database:   database,
		collection: collection,
		limit:      limit,
		now:        time.Now,
		log:        log,
	}
}

// WithRecipients encrypts the backup to the given age recipients.
func (d *Dumper) WithRecipients(recipients ...age.Recipient) *Dumper {
	d.recipients = recipients
	return d
}

// WithClock replaces the clock used for the file name and manifest.
func (d *Dumper) WithClock(now func() time.Time) *Dumper {
	d.now = now
	return d
}

// Write streams the CSV backup to w. It does not flush anything on error.
func (d *Dumper) Write(ctx context.Context, w io.Writer) (paginate.Stats, error) {
	enc := csvcodec.NewEncoder(w)
	if err := enc.WriteHeader(); err != nil {
		return paginate.Stats{}, err
	}

	driver := paginate.New(d.lister, d.limit, d.log)
	stats, err := driver.Walk(ctx, func(_ context.Context, rec models.Record) error {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("encode record %q: %w", rec.ID, err)
		}
		return nil
	})
	if err != nil {
		return stats, err
	}
	return stats, enc.Flush()
}

// Backup writes a new backup file into dir and its manifest next to it.
// Any failure removes both files, so a backup either exists complete or not at all.
func (d *Dumper) Backup(ctx context.Context, dir string) (stats Stats, err error) {
	startTime := d.now()

	ext := fileExt
	if len(d.recipients) > 0 {
		ext += constants.EncryptedSuffix
	}
	file, path, err := createOutput(dir, BaseName(d.database, d.collection, startTime), ext)
	if err != nil {
		return stats, &docmigrate.IOError{Op: "create", Path: path, Err: err}
	}
	stats.Path = path

	closed := false
	defer func() {
		if err == nil {
			return
		}
		if !closed {
			file.Close()
		}
		d.discard(path)
	}()

	hash := sha256.New()
	var out io.Writer = io.MultiWriter(file, hash)
	var sealer io.WriteCloser
	if len(d.recipients) > 0 {
		sealer, err = sealed.Encrypt(out, d.recipients...)
		if err != nil {
			return stats, fmt.Errorf("start encryption: %w", err)
		}
		out = sealer
	}

	walk, err := d.Write(ctx, out)
	stats.Records, stats.Pages, stats.Fetches = walk.Records, walk.Pages, walk.Fetches
	if err != nil {
		return stats, err
	}

	if sealer != nil {
		if err = sealer.Close(); err != nil {
			return stats, &docmigrate.IOError{Op: "write", Path: path, Err: err}
		}
	}
	if err = file.Sync(); err != nil {
		return stats, &docmigrate.IOError{Op: "sync", Path: path, Err: err}
	}
	fileInfo, err := file.Stat()
	if err != nil {
		return stats, &docmigrate.IOError{Op: "stat", Path: path, Err: err}
	}
	closed = true
	if err = file.Close(); err != nil {
		return stats, &docmigrate.IOError{Op: "close", Path: path, Err: err}
	}

	stats.Size = fileInfo.Size()
	stats.SHA256 = fmt.Sprintf("%x", hash.Sum(nil))

	manifest := &Manifest{
		Filename:   filepath.Base(path),
		CreatedAt:  startTime.UTC(),
		Size:       stats.Size,
		Encrypted:  sealer != nil,
		Database:   d.database,
		Collection: d.collection,
		Records:    stats.Records,
		Pages:      stats.Pages,
		SHA256:     stats.SHA256,
	}
	if err = WriteManifest(path, manifest); err != nil {
		return stats, &docmigrate.IOError{Op: "write manifest", Path: ManifestPath(path), Err: err}
	}
	return stats, nil
}

// discard removes a partial backup and its manifest.
func (d *Dumper) discard(path string) {
	for _, p := range []string{path, ManifestPath(path)} {
		if rmErr := os.Remove(p); rmErr != nil && !os.IsNotExist(rmErr) {
			d.log.Warn().Err(rmErr).Str("path", p).Msg("failed to remove partial backup")
		}
	}
	d.log.Debug().Str("path", path).Msg("partial backup removed")
}
