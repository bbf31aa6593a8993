package roster

import (
	"context"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/campuskit/faceroll/internal/datastore"
	"github.com/campuskit/faceroll/internal/errors"
	"github.com/campuskit/faceroll/internal/facerec"
	"github.com/campuskit/faceroll/internal/matcher"
	"github.com/campuskit/faceroll/internal/observability/metrics"
)

// Component identifier for roster errors
const ComponentRoster = "roster"

// cacheTypeEmbedding labels cache metrics emitted by the store.
const cacheTypeEmbedding = "embedding"

// People is the slice of the datastore the roster reads and writes.
// datastore.Interface satisfies it.
type People interface {
	ListPeople(ctx context.Context) ([]datastore.Person, error)
	ListGroup(ctx context.Context, groupTag string) ([]datastore.Person, error)
	GetPersonByRegNo(ctx context.Context, regNo string) (datastore.Person, error)
	SetEmbedding(ctx context.Context, personID uint, embedding []byte) error
}

// Embedder derives a face descriptor from an enrollment photo.
// *facerec.Recognizer satisfies it.
type Embedder interface {
	EmbedPhoto(photo []byte) (facerec.Descriptor, error)
}

// Store resolves people to matcher candidates, caching descriptors in
// process. Candidate sets carry every person with a usable embedding,
// in ascending id order; everyone else is logged and skipped.
type Store struct {
	db       People
	embedder Embedder
	cache    *cache.Cache

	hits   atomic.Int64
	misses atomic.Int64

	metricsMu sync.RWMutex
	metrics   *metrics.DatastoreMetrics
}

// New creates a roster store. Cached descriptors never expire; they
// leave the cache only through Invalidate or InvalidateAll.
func New(db People, embedder Embedder) *Store {
	return &Store{
		db:       db,
		embedder: embedder,
		cache:    cache.New(cache.NoExpiration, 0),
	}
}

// SetMetrics configures the metrics instance for the store.
func (s *Store) SetMetrics(m *metrics.DatastoreMetrics) {
	s.metricsMu.Lock()
	defer s.metricsMu.Unlock()
	s.metrics = m
}

// getMetrics returns the current metrics instance in a thread-safe
// manner.
func (s *Store) getMetrics() *metrics.DatastoreMetrics {
	s.metricsMu.RLock()
	defer s.metricsMu.RUnlock()
	return s.metrics
}

// All returns candidates for every enrolled person with a usable
// embedding, ordered by person id ascending.
func (s *Store) All(ctx context.Context) ([]matcher.Candidate, error) {
	people, err := s.db.ListPeople(ctx)
	if err != nil {
		return nil, err
	}
	return s.candidates(ctx, people), nil
}

// Group returns candidates for the people carrying the given group
// tag, ordered by person id ascending.
func (s *Store) Group(ctx context.Context, groupTag string) ([]matcher.Candidate, error) {
	people, err := s.db.ListGroup(ctx, groupTag)
	if err != nil {
		return nil, err
	}
	return s.candidates(ctx, people), nil
}

// ByRegNo resolves a single identifier to a candidate. The identifier
// is normalized before lookup. A person whose enrollment photo has no
// detectable face is reported with facerec.ErrNoFace; an unknown
// identifier with a not-found error from the store.
func (s *Store) ByRegNo(ctx context.Context, regNo string) (matcher.Candidate, error) {
	person, err := s.FindByIdentifier(ctx, regNo)
	if err != nil {
		return matcher.Candidate{}, err
	}
	d, err := s.descriptorFor(ctx, &person)
	if err != nil {
		return matcher.Candidate{}, err
	}
	return matcher.NewCandidate(person.ID, person.RegNo, person.Name, d), nil
}

// FindByIdentifier resolves operator or scanner input to a person
// record without touching the descriptor cache.
func (s *Store) FindByIdentifier(ctx context.Context, text string) (datastore.Person, error) {
	return s.db.GetPersonByRegNo(ctx, NormalizeIdentifier(text))
}

// Invalidate evicts one cached descriptor so the next load re-derives
// it. Called after a re-enrollment or photo swap.
func (s *Store) Invalidate(personID uint) {
	s.cache.Delete(cacheKey(personID))
	s.recordCacheOp("delete", "success")
}

// InvalidateAll drops every cached descriptor.
func (s *Store) InvalidateAll() {
	s.cache.Flush()
	s.recordCacheOp("flush", "success")
}

// CachedCount reports how many descriptors are currently cached.
func (s *Store) CachedCount() int {
	return s.cache.ItemCount()
}

// candidates resolves descriptors for the given people, preserving
// their order and skipping anyone without a usable embedding.
func (s *Store) candidates(ctx context.Context, people []datastore.Person) []matcher.Candidate {
	out := make([]matcher.Candidate, 0, len(people))
	for i := range people {
		p := &people[i]
		d, err := s.descriptorFor(ctx, p)
		if err != nil {
			getLogger().Warn("excluding person without usable embedding",
				"person_id", p.ID,
				"reg_no", p.RegNo,
				"error", err)
			continue
		}
		out = append(out, matcher.NewCandidate(p.ID, p.RegNo, p.Name, d))
	}
	return out
}

// descriptorFor returns the person's descriptor from, in order, the
// cache, the stored embedding blob, or a fresh derivation from the
// enrollment photo. An unreadable stored blob falls through to
// re-derivation, which heals it in place.
func (s *Store) descriptorFor(ctx context.Context, person *datastore.Person) (facerec.Descriptor, error) {
	key := cacheKey(person.ID)
	if cached, found := s.cache.Get(key); found {
		if d, ok := cached.(facerec.Descriptor); ok {
			s.hits.Add(1)
			s.recordCacheOp("get", "hit")
			return d, nil
		}
	}
	s.misses.Add(1)
	s.recordCacheOp("get", "miss")

	if len(person.Embedding) > 0 {
		d, err := facerec.DecodeDescriptor(person.Embedding)
		if err == nil {
			s.cache.Set(key, d, cache.NoExpiration)
			s.recordCacheOp("set", "success")
			return d, nil
		}
		getLogger().Warn("stored embedding is unreadable, re-deriving from photo",
			"person_id", person.ID,
			"reg_no", person.RegNo,
			"error", err)
	}

	d, err := s.derive(ctx, person)
	if err != nil {
		return facerec.Descriptor{}, err
	}
	s.cache.Set(key, d, cache.NoExpiration)
	s.recordCacheOp("set", "success")
	return d, nil
}

// derive reads the enrollment photo and computes its descriptor, then
// persists the blob so the next process start skips the dlib pass.
// Embedder errors pass through unchanged; callers branch on the
// facerec sentinels.
func (s *Store) derive(ctx context.Context, person *datastore.Person) (facerec.Descriptor, error) {
	var zero facerec.Descriptor
	if person.PhotoPath == "" {
		return zero, errors.Newf("roster: person %d has no enrollment photo", person.ID).
			Component(ComponentRoster).
			Category(errors.CategoryRoster).
			Context("person_id", person.ID).
			Context("reg_no", person.RegNo).
			Build()
	}

	photo, err := os.ReadFile(person.PhotoPath)
	if err != nil {
		return zero, errors.New(err).
			Component(ComponentRoster).
			Category(errors.CategoryFileIO).
			Context("person_id", person.ID).
			Context("photo_path", person.PhotoPath).
			Build()
	}

	start := time.Now()
	d, err := s.embedder.EmbedPhoto(photo)
	if err != nil {
		return zero, err
	}

	if err := s.db.SetEmbedding(ctx, person.ID, facerec.EncodeDescriptor(d)); err != nil {
		// The cache still serves this process; only the warm start is lost.
		getLogger().Warn("could not persist derived embedding",
			"person_id", person.ID,
			"error", err)
	}

	getLogger().Debug("embedding derived",
		"person_id", person.ID,
		"reg_no", person.RegNo,
		"derive_time_ms", time.Since(start).Milliseconds())
	return d, nil
}

// recordCacheOp emits one cache operation and refreshes the size and
// hit-ratio gauges.
func (s *Store) recordCacheOp(operation, result string) {
	m := s.getMetrics()
	if m == nil {
		return
	}
	m.RecordCacheOperation(cacheTypeEmbedding, operation, result)

	hits, misses := s.hits.Load(), s.misses.Load()
	var ratio float64
	if total := hits + misses; total > 0 {
		ratio = float64(hits) / float64(total)
	}
	m.UpdateCacheMetrics(s.cache.ItemCount(), ratio)
}

func cacheKey(personID uint) string {
	return strconv.FormatUint(uint64(personID), 10)
}
