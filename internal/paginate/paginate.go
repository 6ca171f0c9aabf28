// Package paginate drives list calls over a collection until it is exhausted.
//
// Walk follows a cursor: each page starts after the last record of the previous one.
// Drain always asks for the first page, for callers that remove every record they are handed.
// Both stop at the first empty page and never fetch again after it.
package paginate

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/docmigrate/docmigrate/pkg/models"
	"github.com/docmigrate/docmigrate/pkg/query"
)

// ErrUnstableOrdering is returned by Drain when the first page lists a record
// that was already handed to the callback in an earlier cycle.
var ErrUnstableOrdering = errors.New("remote listed an already processed record again; ordering is not stable under deletion")

// Lister fetches one page of records.
type Lister interface {
	List(ctx context.Context, queries ...query.Query) ([]models.Record, error)
}

// RecordFunc is called once per listed record, in page order.
type RecordFunc func(ctx context.Context, rec models.Record) error

// Stats describes how far a walk got. It is valid even when an error is returned.
type Stats struct {
	// Fetches counts list calls, including the final empty one.
	Fetches int
	// Pages counts non-empty pages.
	Pages int
	// Records counts records for which the callback returned nil.
	Records int
	// Cursor is the id of the last record of the last non-empty page.
	Cursor string
}

// Driver runs the list loop with a fixed page size.
type Driver struct {
	Lister Lister
	Limit  int
	Logger zerolog.Logger
}

// New creates a driver. The logger receives one debug event per page.
func New(lister Lister, limit int, log zerolog.Logger) *Driver {
	return &Driver{Lister: lister, Limit: limit, Logger: log}
}

// Walk visits every record once, in list order, following the cursor until an empty page.
func (d *Driver) Walk(ctx context.Context, fn RecordFunc) (Stats, error) {
	return d.run(ctx, true, fn)
}

// Drain repeatedly fetches the first page and hands its records to fn until a page comes back empty.
// fn is expected to remove each record, otherwise the loop fails with ErrUnstableOrdering.
func (d *Driver) Drain(ctx context.Context, fn RecordFunc) (Stats, error) {
	return d.run(ctx, false, fn)
}

func (d *Driver) run(ctx context.Context, follow bool, fn RecordFunc) (Stats, error) {
	var stats Stats
	if d.Limit <= 0 {
		return stats, fmt.Errorf("invalid page limit %d", d.Limit)
	}

	var seen map[string]struct{}
	if !follow {
		seen = make(map[string]struct{})
	}

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		queries := []query.Query{query.Limit(d.Limit)}
		if follow && stats.Cursor != "" {
			queries = append(queries, query.CursorAfter(stats.Cursor))
		}

		page, err := d.Lister.List(ctx, queries...)
		stats.Fetches++
		if err != nil {
			return stats, fmt.Errorf("list page %d: %w", stats.Fetches, err)
		}
		if len(page) == 0 {
			d.Logger.Debug().Int("fetches", stats.Fetches).Int("records", stats.Records).Msg("empty page, done")
			return stats, nil
		}
		stats.Pages++

		for _, rec := range page {
			if seen != nil {
				if _, dup := seen[rec.ID]; dup {
					return stats, fmt.Errorf("record %q: %w", rec.ID, ErrUnstableOrdering)
				}
				seen[rec.ID] = struct{}{}
			}
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			if err := fn(ctx, rec); err != nil {
				return stats, err
			}
			stats.Records++
		}
		stats.Cursor = page[len(page)-1].ID

		d.Logger.Debug().
			Int("page", stats.Pages).
			Int("size", len(page)).
			Int("records", stats.Records).
			Str("cursor", stats.Cursor).
			Msg("page processed")
	}
}
