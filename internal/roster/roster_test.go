// roster_test.go: Tests for candidate resolution and descriptor caching
package roster

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/faceroll/internal/datastore"
	"github.com/campuskit/faceroll/internal/errors"
	"github.com/campuskit/faceroll/internal/facerec"
)

// descAt builds a descriptor distinguishable by its first component.
func descAt(v float32) facerec.Descriptor {
	var d facerec.Descriptor
	d[0] = v
	return d
}

// writePhoto drops photo bytes into a temp dir and returns the path.
func writePhoto(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "photo.jpg")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// fakePeople is an in-memory stand-in for the datastore's people
// relation. Lookups normalize the registration number the way the
// real store does.
type fakePeople struct {
	mu        sync.Mutex
	people    []datastore.Person
	listErr   error
	embedSets int
}

func (f *fakePeople) ListPeople(_ context.Context) ([]datastore.Person, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]datastore.Person, len(f.people))
	copy(out, f.people)
	return out, nil
}

func (f *fakePeople) ListGroup(_ context.Context, tag string) ([]datastore.Person, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []datastore.Person
	for _, p := range f.people {
		if p.GroupTag == tag {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePeople) GetPersonByRegNo(_ context.Context, regNo string) (datastore.Person, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	normalized := datastore.NormalizeRegNo(regNo)
	for _, p := range f.people {
		if p.RegNo == normalized {
			return p, nil
		}
	}
	return datastore.Person{}, errors.Newf("person %s not found", normalized).
		Component("datastore").
		Category(errors.CategoryNotFound).
		Build()
}

func (f *fakePeople) SetEmbedding(_ context.Context, personID uint, embedding []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.embedSets++
	for i := range f.people {
		if f.people[i].ID == personID {
			f.people[i].Embedding = embedding
			return nil
		}
	}
	return errors.Newf("person %d not found", personID).
		Component("datastore").
		Category(errors.CategoryNotFound).
		Build()
}

// clearEmbedding mimics datastore.ClearEmbedding after a photo swap.
func (f *fakePeople) clearEmbedding(personID uint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.people {
		if f.people[i].ID == personID {
			f.people[i].Embedding = nil
		}
	}
}

func (f *fakePeople) setCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.embedSets
}

func (f *fakePeople) embeddingOf(personID uint) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.people {
		if f.people[i].ID == personID {
			return f.people[i].Embedding
		}
	}
	return nil
}

// fakeEmbedder resolves photo bytes to scripted descriptors or errors.
// Unknown photos report no face, like a blank frame would.
type fakeEmbedder struct {
	mu      sync.Mutex
	byPhoto map[string]facerec.Descriptor
	errs    map[string]error
	calls   int
}

func (f *fakeEmbedder) EmbedPhoto(photo []byte) (facerec.Descriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err, ok := f.errs[string(photo)]; ok {
		return facerec.Descriptor{}, err
	}
	if d, ok := f.byPhoto[string(photo)]; ok {
		return d, nil
	}
	return facerec.Descriptor{}, facerec.ErrNoFace
}

func (f *fakeEmbedder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestAllBuildsCandidatesFromStoredEmbeddings(t *testing.T) {
	t.Parallel()

	db := &fakePeople{people: []datastore.Person{
		{ID: 1, RegNo: "S001", Name: "Aisha Khan", GroupTag: "MCA-1", Embedding: facerec.EncodeDescriptor(descAt(0.1))},
		{ID: 2, RegNo: "S002", Name: "Bilal Ahmed", GroupTag: "MCA-1", Embedding: facerec.EncodeDescriptor(descAt(0.2))},
		{ID: 5, RegNo: "S005", Name: "Chitra Nair", GroupTag: "MCA-2", Embedding: facerec.EncodeDescriptor(descAt(0.5))},
	}}
	embedder := &fakeEmbedder{}
	store := New(db, embedder)

	candidates, err := store.All(t.Context())
	require.NoError(t, err)
	require.Len(t, candidates, 3)

	assert.Equal(t, uint(1), candidates[0].PersonID)
	assert.Equal(t, uint(2), candidates[1].PersonID)
	assert.Equal(t, uint(5), candidates[2].PersonID)
	assert.Equal(t, "S002", candidates[1].RegNo)
	assert.Equal(t, "Bilal Ahmed", candidates[1].Name)

	// Stored blobs decode without touching the embedder.
	assert.Zero(t, embedder.callCount())
	assert.Equal(t, 3, store.CachedCount())
}

func TestAllDerivesAndPersistsMissingEmbedding(t *testing.T) {
	t.Parallel()

	photo := writePhoto(t, "photo-dev")
	want := descAt(0.5)
	db := &fakePeople{people: []datastore.Person{
		{ID: 3, RegNo: "S003", Name: "Dev Patel", PhotoPath: photo},
	}}
	embedder := &fakeEmbedder{byPhoto: map[string]facerec.Descriptor{"photo-dev": want}}
	store := New(db, embedder)

	candidates, err := store.All(t.Context())
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, 1, embedder.callCount())

	// The derived blob lands in the store for the next process start.
	assert.Equal(t, 1, db.setCount())
	assert.Equal(t, facerec.EncodeDescriptor(want), db.embeddingOf(3))

	// The second load is served from cache.
	candidates, err = store.All(t.Context())
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, 1, embedder.callCount())
	assert.Equal(t, 1, db.setCount())
}

func TestAllSkipsPeopleWithoutUsableEmbedding(t *testing.T) {
	t.Parallel()

	faceFree := writePhoto(t, "photo-wall")
	db := &fakePeople{people: []datastore.Person{
		{ID: 1, RegNo: "S001", Name: "Aisha Khan", Embedding: facerec.EncodeDescriptor(descAt(0.1))},
		{ID: 2, RegNo: "S002", Name: "Bilal Ahmed", PhotoPath: faceFree},
		{ID: 3, RegNo: "S003", Name: "Chitra Nair", PhotoPath: filepath.Join(t.TempDir(), "missing.jpg")},
		{ID: 4, RegNo: "S004", Name: "Dev Patel"},
	}}
	embedder := &fakeEmbedder{errs: map[string]error{"photo-wall": facerec.ErrNoFace}}
	store := New(db, embedder)

	candidates, err := store.All(t.Context())
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, uint(1), candidates[0].PersonID)

	// The skipped people are still on the roster, just not matchable.
	people, err := db.ListPeople(t.Context())
	require.NoError(t, err)
	assert.Len(t, people, 4)
}

func TestGroupFiltersByTag(t *testing.T) {
	t.Parallel()

	db := &fakePeople{people: []datastore.Person{
		{ID: 1, RegNo: "S001", Name: "Aisha Khan", GroupTag: "MCA-1", Embedding: facerec.EncodeDescriptor(descAt(0.1))},
		{ID: 2, RegNo: "S002", Name: "Bilal Ahmed", GroupTag: "MCA-2", Embedding: facerec.EncodeDescriptor(descAt(0.2))},
		{ID: 3, RegNo: "S003", Name: "Chitra Nair", GroupTag: "MCA-1", Embedding: facerec.EncodeDescriptor(descAt(0.3))},
	}}
	store := New(db, &fakeEmbedder{})

	candidates, err := store.Group(t.Context(), "MCA-1")
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, uint(1), candidates[0].PersonID)
	assert.Equal(t, uint(3), candidates[1].PersonID)
}

func TestByRegNo(t *testing.T) {
	t.Parallel()

	faceFree := writePhoto(t, "photo-wall")
	db := &fakePeople{people: []datastore.Person{
		{ID: 1, RegNo: "S001", Name: "Aisha Khan", Embedding: facerec.EncodeDescriptor(descAt(0.1))},
		{ID: 2, RegNo: "S002", Name: "Bilal Ahmed", PhotoPath: faceFree},
	}}
	embedder := &fakeEmbedder{errs: map[string]error{"photo-wall": facerec.ErrNoFace}}
	store := New(db, embedder)

	t.Run("normalizes scanner input", func(t *testing.T) {
		cand, err := store.ByRegNo(t.Context(), "  š001\n")
		require.NoError(t, err)
		assert.Equal(t, uint(1), cand.PersonID)
		assert.Equal(t, "S001", cand.RegNo)
		assert.Equal(t, "Aisha Khan", cand.Name)
	})

	t.Run("unknown identifier", func(t *testing.T) {
		_, err := store.ByRegNo(t.Context(), "S999")
		require.Error(t, err)
		assert.True(t, errors.IsNotFound(err))
	})

	t.Run("face-free enrollment photo", func(t *testing.T) {
		_, err := store.ByRegNo(t.Context(), "S002")
		require.Error(t, err)
		assert.True(t, errors.Is(err, facerec.ErrNoFace))
		assert.False(t, errors.IsNotFound(err))
	})

	t.Run("find person record", func(t *testing.T) {
		person, err := store.FindByIdentifier(t.Context(), "s001")
		require.NoError(t, err)
		assert.Equal(t, uint(1), person.ID)
		assert.Equal(t, "Aisha Khan", person.Name)
	})
}

func TestCorruptStoredEmbeddingHealsInPlace(t *testing.T) {
	t.Parallel()

	photo := writePhoto(t, "photo-aisha")
	want := descAt(0.25)
	db := &fakePeople{people: []datastore.Person{
		{ID: 1, RegNo: "S001", Name: "Aisha Khan", PhotoPath: photo, Embedding: []byte("junk")},
	}}
	embedder := &fakeEmbedder{byPhoto: map[string]facerec.Descriptor{"photo-aisha": want}}
	store := New(db, embedder)

	candidates, err := store.All(t.Context())
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, 1, embedder.callCount())
	assert.Equal(t, facerec.EncodeDescriptor(want), db.embeddingOf(1))
}

func TestInvalidateForcesRederive(t *testing.T) {
	t.Parallel()

	photo := writePhoto(t, "photo-aisha")
	db := &fakePeople{people: []datastore.Person{
		{ID: 1, RegNo: "S001", Name: "Aisha Khan", PhotoPath: photo},
	}}
	embedder := &fakeEmbedder{byPhoto: map[string]facerec.Descriptor{"photo-aisha": descAt(0.25)}}
	store := New(db, embedder)

	_, err := store.All(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, embedder.callCount())
	assert.Equal(t, 1, store.CachedCount())

	// Eviction alone falls back to the blob persisted on first derive.
	store.Invalidate(1)
	assert.Zero(t, store.CachedCount())
	_, err = store.All(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, embedder.callCount())

	// A photo swap clears the stored blob too; the next load re-derives.
	db.clearEmbedding(1)
	store.Invalidate(1)
	_, err = store.All(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 2, embedder.callCount())
}

func TestInvalidateAllEmptiesCache(t *testing.T) {
	t.Parallel()

	db := &fakePeople{people: []datastore.Person{
		{ID: 1, RegNo: "S001", Name: "Aisha Khan", Embedding: facerec.EncodeDescriptor(descAt(0.1))},
		{ID: 2, RegNo: "S002", Name: "Bilal Ahmed", Embedding: facerec.EncodeDescriptor(descAt(0.2))},
	}}
	store := New(db, &fakeEmbedder{})

	_, err := store.All(t.Context())
	require.NoError(t, err)
	require.Equal(t, 2, store.CachedCount())

	store.InvalidateAll()
	assert.Zero(t, store.CachedCount())
}

func TestWarmDerivesEveryone(t *testing.T) {
	t.Parallel()

	photo := writePhoto(t, "photo-bilal")
	faceFree := writePhoto(t, "photo-wall")
	db := &fakePeople{people: []datastore.Person{
		{ID: 1, RegNo: "S001", Name: "Aisha Khan", Embedding: facerec.EncodeDescriptor(descAt(0.1))},
		{ID: 2, RegNo: "S002", Name: "Bilal Ahmed", PhotoPath: photo},
		{ID: 3, RegNo: "S003", Name: "Chitra Nair", PhotoPath: faceFree},
	}}
	embedder := &fakeEmbedder{
		byPhoto: map[string]facerec.Descriptor{"photo-bilal": descAt(0.2)},
		errs:    map[string]error{"photo-wall": facerec.ErrNoFace},
	}
	store := New(db, embedder)

	var ticks atomic.Int64
	stats, err := store.Warm(t.Context(), func() { ticks.Add(1) })
	require.NoError(t, err)

	assert.Equal(t, WarmStats{Total: 3, Ready: 2, Skipped: 1}, stats)
	assert.Equal(t, int64(3), ticks.Load())
	assert.Equal(t, 2, store.CachedCount())
	// One derive for the photo, one failed attempt on the face-free one.
	assert.Equal(t, 2, embedder.callCount())
}

func TestWarmStopsOnCancelledContext(t *testing.T) {
	t.Parallel()

	db := &fakePeople{people: []datastore.Person{
		{ID: 1, RegNo: "S001", Name: "Aisha Khan", Embedding: facerec.EncodeDescriptor(descAt(0.1))},
	}}
	store := New(db, &fakeEmbedder{})

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := store.Warm(ctx, nil)
	require.Error(t, err)
}
