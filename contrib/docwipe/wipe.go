// Package docwipe deletes every document of a remote collection.
package docwipe

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/docmigrate/docmigrate/internal/paginate"
	"github.com/docmigrate/docmigrate/pkg/models"
)

// Collection lists and deletes documents.
type Collection interface {
	paginate.Lister
	Delete(ctx context.Context, id string) error
}

// Stats reports how many documents were deleted, and in how many list cycles.
type Stats struct {
	Deleted int
	Cycles  int
	Fetches int
}

// Wiper empties one collection.
type Wiper struct {
	coll  Collection
	limit int
	log   zerolog.Logger
}

// New creates a new Wiper instance
func New(coll Collection, limit int, log zerolog.Logger) *Wiper {
	return &Wiper{coll: coll, limit: limit, log: log}
}

// Wipe lists the first page and deletes everything on it until a list comes back empty.
// It relies on deleted documents never being listed again, and fails with
// paginate.ErrUnstableOrdering when the remote breaks that.
func (w *Wiper) Wipe(ctx context.Context) (Stats, error) {
	driver := paginate.New(w.coll, w.limit, w.log)
	res, err := driver.Drain(ctx, func(ctx context.Context, rec models.Record) error {
		if err := w.coll.Delete(ctx, rec.ID); err != nil {
			return err
		}
		w.log.Debug().Str("id", rec.ID).Msg("document deleted")
		return nil
	})
	return Stats{Deleted: res.Records, Cycles: res.Pages, Fetches: res.Fetches}, err
}
