package catalog

import (
	"context"
	"encoding/json"
	"image"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"critterlens/internal/logging"
	"critterlens/internal/model"
)

// fakeStrategy scores by absolute hash difference, which makes distances
// easy to stage in tests.
type fakeStrategy struct{ name string }

func (f fakeStrategy) Name() string { return f.name }

func (f fakeStrategy) Extract(image.Image) (model.Fingerprint, error) {
	return model.Fingerprint{}, nil
}

func (f fakeStrategy) Score(query, candidate model.Fingerprint) (float64, error) {
	return math.Abs(float64(*query.Hash) - float64(*candidate.Hash)), nil
}

func (f fakeStrategy) Better(a, b float64) bool { return a < b }

func (f fakeStrategy) Accepts(s float64) bool { return s <= 10 }

func (f fakeStrategy) Describe(s float64) string { return "fake" }

func newTestStore(t *testing.T, path string) *Store {
	t.Helper()
	log, err := logging.New(filepath.Join(t.TempDir(), "errors.log"))
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })

	s, err := Open(context.Background(), path, fakeStrategy{name: "fake"}, nil, "", log)
	require.NoError(t, err)
	return s
}

func fp(hash uint64) model.Fingerprint { return model.HashFingerprint(hash) }

func hashOf(t *testing.T, f model.Fingerprint) uint64 {
	t.Helper()
	require.NotNil(t, f.Hash)
	return *f.Hash
}

func TestAssignPersistsAcrossReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	s := newTestStore(t, path)

	n := s.Enqueue(fp(42), []byte("rawbytes"))
	assert.Equal(t, 1, n)

	entry, raw, err := s.Assign(context.Background(), "Bulbasaur")
	require.NoError(t, err)
	assert.Equal(t, "Bulbasaur", entry.Label)
	assert.Equal(t, uint64(42), hashOf(t, entry.Fingerprint))
	assert.Equal(t, []byte("rawbytes"), raw)
	assert.Equal(t, 0, s.PendingLen())

	// Fresh store from the same file sees the exact fingerprint.
	reloaded := newTestStore(t, path)
	assert.Equal(t, 1, reloaded.Len())

	best, score, found, err := reloaded.Nearest(fp(42))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Bulbasaur", best.Label)
	assert.Equal(t, uint64(42), hashOf(t, best.Fingerprint))
	assert.Equal(t, 0.0, score, "self-comparison score")
}

func TestAssignWithoutStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	s := newTestStore(t, path)

	_, _, err := s.Assign(context.Background(), "Pidgey")
	assert.ErrorIs(t, err, ErrNoPending)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "catalog file must stay untouched")
}

func TestAssignIsFIFO(t *testing.T) {
	s := newTestStore(t, filepath.Join(t.TempDir(), "catalog.json"))

	s.Enqueue(fp(1), nil)
	s.Enqueue(fp(2), nil)

	first, _, err := s.Assign(context.Background(), "abra")
	require.NoError(t, err)
	second, _, err := s.Assign(context.Background(), "beedrill")
	require.NoError(t, err)

	assert.Equal(t, uint64(1), hashOf(t, first.Fingerprint), "oldest pending goes first")
	assert.Equal(t, uint64(2), hashOf(t, second.Fingerprint))
}

func TestAssignOverwritesLabel(t *testing.T) {
	s := newTestStore(t, filepath.Join(t.TempDir(), "catalog.json"))

	s.Enqueue(fp(1), nil)
	s.Enqueue(fp(2), nil)

	_, _, err := s.Assign(context.Background(), "Ditto")
	require.NoError(t, err)
	_, _, err = s.Assign(context.Background(), "Ditto")
	require.NoError(t, err)

	assert.Equal(t, 1, s.Len())
	best, _, found, err := s.Nearest(fp(2))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, uint64(2), hashOf(t, best.Fingerprint), "newer fingerprint replaced the old one")
}

func TestNearestEmptyCatalog(t *testing.T) {
	s := newTestStore(t, filepath.Join(t.TempDir(), "catalog.json"))

	_, _, found, err := s.Nearest(fp(5))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestNearestTieBreaksByLabelOrder(t *testing.T) {
	s := newTestStore(t, filepath.Join(t.TempDir(), "catalog.json"))

	// Insert in reverse alphabetical order; both end up at distance 0.
	s.Enqueue(fp(5), nil)
	s.Enqueue(fp(5), nil)
	_, _, err := s.Assign(context.Background(), "zubat")
	require.NoError(t, err)
	_, _, err = s.Assign(context.Background(), "abra")
	require.NoError(t, err)

	best, score, found, err := s.Nearest(fp(5))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 0.0, score)
	assert.Equal(t, "abra", best.Label, "first label in sorted order wins ties")
}

func TestRemove(t *testing.T) {
	s := newTestStore(t, filepath.Join(t.TempDir(), "catalog.json"))

	s.Enqueue(fp(1), nil)
	_, _, err := s.Assign(context.Background(), "Eevee")
	require.NoError(t, err)

	assert.ErrorIs(t, s.Remove(context.Background(), "Mew"), ErrNotFound)
	require.NoError(t, s.Remove(context.Background(), "Eevee"))
	assert.Equal(t, 0, s.Len())
}

func TestLabelsSorted(t *testing.T) {
	s := newTestStore(t, filepath.Join(t.TempDir(), "catalog.json"))

	for _, label := range []string{"pidgey", "abra", "mew"} {
		s.Enqueue(fp(1), nil)
		_, _, err := s.Assign(context.Background(), label)
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"abra", "mew", "pidgey"}, s.Labels())
}

func TestOpenRejectsStrategyMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	s := newTestStore(t, path)
	s.Enqueue(fp(1), nil)
	_, _, err := s.Assign(context.Background(), "Mew")
	require.NoError(t, err)

	log, err := logging.New(filepath.Join(t.TempDir(), "errors.log"))
	require.NoError(t, err)
	defer log.Close()

	_, err = Open(context.Background(), path, fakeStrategy{name: "other"}, nil, "", log)
	assert.Error(t, err)
}

func TestOpenRejectsInvalidCatalogFile(t *testing.T) {
	log, err := logging.New(filepath.Join(t.TempDir(), "errors.log"))
	require.NoError(t, err)
	defer log.Close()

	tests := []struct {
		name string
		body string
	}{
		{"DuplicateLabels", `{"strategy":"fake","items":[{"label":"abra","hash":1},{"label":"abra","hash":2}]}`},
		{"EmptyLabel", `{"strategy":"fake","items":[{"label":"","hash":1}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "catalog.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0o644))

			_, err := Open(context.Background(), path, fakeStrategy{name: "fake"}, nil, "", log)
			assert.Error(t, err)
		})
	}
}

// recordingMirror keeps the last written catalog and serves it back, like
// the real object-storage mirror does.
type recordingMirror struct {
	keys []string
	data []byte
}

func (m *recordingMirror) WriteJSON(_ context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.keys = append(m.keys, key)
	m.data = b
	return nil
}

func (m *recordingMirror) ReadJSON(_ context.Context, _ string, out any) (bool, error) {
	if m.data == nil {
		return false, nil
	}
	return true, json.Unmarshal(m.data, out)
}

func TestMutationsHitTheMirror(t *testing.T) {
	log, err := logging.New(filepath.Join(t.TempDir(), "errors.log"))
	require.NoError(t, err)
	defer log.Close()

	mirror := &recordingMirror{}
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "catalog.json"), fakeStrategy{name: "fake"}, mirror, "catalog.json", log)
	require.NoError(t, err)

	s.Enqueue(fp(1), nil)
	_, _, err = s.Assign(context.Background(), "Mew")
	require.NoError(t, err)
	require.NoError(t, s.Remove(context.Background(), "Mew"))

	assert.Equal(t, []string{"catalog.json", "catalog.json"}, mirror.keys)
}

func TestOpenRestoresFromMirror(t *testing.T) {
	log, err := logging.New(filepath.Join(t.TempDir(), "errors.log"))
	require.NoError(t, err)
	defer log.Close()

	mirror := &recordingMirror{}
	path := filepath.Join(t.TempDir(), "catalog.json")

	s, err := Open(context.Background(), path, fakeStrategy{name: "fake"}, mirror, "catalog.json", log)
	require.NoError(t, err)
	s.Enqueue(fp(7), nil)
	_, _, err = s.Assign(context.Background(), "Snorlax")
	require.NoError(t, err)

	// Lose the local file; reopening pulls the last backup.
	require.NoError(t, os.Remove(path))
	restored, err := Open(context.Background(), path, fakeStrategy{name: "fake"}, mirror, "catalog.json", log)
	require.NoError(t, err)

	best, score, found, err := restored.Nearest(fp(7))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Snorlax", best.Label)
	assert.Equal(t, 0.0, score)

	_, statErr := os.Stat(path)
	assert.NoError(t, statErr, "restore rewrites the local file")
}
