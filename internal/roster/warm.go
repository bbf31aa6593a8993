package roster

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// warmConcurrency bounds parallel derivations. The dlib recognizer
// serializes its own calls; the extra workers overlap photo reads and
// embedding writes.
const warmConcurrency = 4

// WarmStats summarizes a bulk descriptor warm-up.
type WarmStats struct {
	Total   int // people examined
	Ready   int // usable descriptor now cached
	Skipped int // photo missing, unreadable, or face-free
}

// Warm derives and caches a descriptor for every enrolled person,
// so sessions start with a hot cache. People without a usable photo
// are counted as skipped, not failed; Warm only returns an error when
// the people list cannot be read or the context is cancelled.
// progress, when non-nil, is called once per person examined.
func (s *Store) Warm(ctx context.Context, progress func()) (WarmStats, error) {
	people, err := s.db.ListPeople(ctx)
	if err != nil {
		return WarmStats{}, err
	}

	var ready, skipped atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(warmConcurrency)
	for _, person := range people {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if _, err := s.descriptorFor(gctx, &person); err != nil {
				skipped.Add(1)
				getLogger().Warn("warm-up skipped person",
					"person_id", person.ID,
					"reg_no", person.RegNo,
					"error", err)
			} else {
				ready.Add(1)
			}
			if progress != nil {
				progress()
			}
			return nil
		})
	}
	err = g.Wait()

	stats := WarmStats{
		Total:   len(people),
		Ready:   int(ready.Load()),
		Skipped: int(skipped.Load()),
	}
	getLogger().Info("roster warm-up complete",
		"total", stats.Total,
		"ready", stats.Ready,
		"skipped", stats.Skipped)
	return stats, err
}
