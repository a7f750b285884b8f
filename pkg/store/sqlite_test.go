package store_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calliope-press/sectionmatch/internal/models"
	"github.com/calliope-press/sectionmatch/pkg/matcher"
	"github.com/calliope-press/sectionmatch/pkg/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewWithConfig(store.Config{
		Backend:   store.BackendSQLite,
		Path:      filepath.Join(t.TempDir(), "test.db"),
		VectorDim: 2,
	})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestSQLiteArticleRoundTrip(t *testing.T) {
	s := newTestStore(t)

	err := s.InsertArticles([]models.Article{
		{ID: "h1", Section: "ARTS", Embedding: []float32{1, 0}},
		{ID: "h2", Section: "BOOKS", Embedding: []float32{0, 1}},
		{ID: "h3", Section: "ARTS"}, // embedding missing
		{
			ID:        "c1",
			URL:       "https://example.com/c1",
			Filename:  "c1.md",
			Content:   "candidate one",
			Section:   models.CandidateSection,
			Embedding: []float32{1, 0},
		},
		{ID: "c2", Section: models.CandidateSection}, // embedding missing
	})
	require.NoError(t, err)

	rows, err := s.SectionEmbeddings()
	require.NoError(t, err)
	require.Len(t, rows, 2) // candidates and null embeddings are excluded
	assert.Equal(t, "ARTS", rows[0].Section)
	assert.Equal(t, []float32{1, 0}, rows[0].Embedding)
	assert.Equal(t, "BOOKS", rows[1].Section)

	candidates, err := s.Candidates()
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, "c1", candidates[0].ID)
	assert.Equal(t, "candidate one", candidates[0].Content)
	assert.Equal(t, []float32{1, 0}, candidates[0].Embedding)
	assert.Equal(t, "c2", candidates[1].ID)
	assert.Nil(t, candidates[1].Embedding)

	found, err := s.CandidateByID("c1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "https://example.com/c1", found.URL)

	missing, err := s.CandidateByID("nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	// Upsert: same id, new url.
	err = s.InsertArticles([]models.Article{
		{ID: "c1", URL: "https://example.com/moved", Section: models.CandidateSection, Embedding: []float32{1, 0}},
	})
	require.NoError(t, err)

	candidates, err = s.Candidates()
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, "https://example.com/moved", candidates[0].URL)
}

func TestSQLiteFingerprintReplacement(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.ReplaceFingerprints([]models.Fingerprint{
		{Section: "OLD", Embedding: []float32{0.5, 0.5}},
	}))
	require.NoError(t, s.ReplaceFingerprints([]models.Fingerprint{
		{Section: "BOOKS", Embedding: []float32{0, 1}},
		{Section: "ARTS", Embedding: []float32{1.5, 0.25}},
	}))

	fps, err := s.Fingerprints()
	require.NoError(t, err)
	require.Len(t, fps, 2) // the OLD generation is gone
	assert.Equal(t, "ARTS", fps[0].Section)
	assert.Equal(t, []float32{1.5, 0.25}, fps[0].Embedding)
	assert.Equal(t, "BOOKS", fps[1].Section)

	require.NoError(t, s.ReplaceClusterFingerprints([]models.ClusterFingerprint{
		{Section: "ARTS", ClusterID: 1, Embedding: []float32{3, 0}},
		{Section: "ARTS", ClusterID: 0, Embedding: []float32{1, 0}},
	}))

	cfps, err := s.ClusterFingerprints()
	require.NoError(t, err)
	require.Len(t, cfps, 2)
	assert.Equal(t, 0, cfps[0].ClusterID) // ordered by section, cluster id
	assert.Equal(t, 1, cfps[1].ClusterID)
}

func TestSQLiteRankedMatches(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.InsertArticles([]models.Article{
		{ID: "c1", Content: "about art", Section: models.CandidateSection, Embedding: []float32{1, 0}},
		{ID: "c2", Content: "about books", Section: models.CandidateSection, Embedding: []float32{0, 1}},
	}))
	require.NoError(t, s.ReplaceFingerprints([]models.Fingerprint{
		{Section: "ARTS", Embedding: []float32{1, 0}},
		{Section: "BOOKS", Embedding: []float32{0, 1}},
	}))

	matches, err := s.RankedMatches(matcher.Policy{
		Threshold: 0.40,
		TopK:      3,
		Mode:      matcher.RankPerCandidate,
	})
	require.NoError(t, err)

	require.Len(t, matches, 2) // cross-section pairs sit at distance 1.0, over threshold
	assert.Equal(t, "c1", matches[0].Candidate.ID)
	assert.Equal(t, "ARTS", matches[0].Section)
	assert.Equal(t, "about art", matches[0].Candidate.Content)
	assert.Equal(t, matcher.NoCluster, matches[0].ClusterID)
	assert.InDelta(t, 0, matches[0].Distance, 1e-6)
	assert.Equal(t, "c2", matches[1].Candidate.ID)
	assert.Equal(t, "BOOKS", matches[1].Section)
}

func TestSQLiteRankedClusterMatches(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.InsertArticles([]models.Article{
		{ID: "c1", Section: models.CandidateSection, Embedding: []float32{1, 0}},
	}))
	require.NoError(t, s.ReplaceClusterFingerprints([]models.ClusterFingerprint{
		{Section: "ARTS", ClusterID: 0, Embedding: []float32{0, 1}},
		{Section: "ARTS", ClusterID: 1, Embedding: []float32{1, 0}},
	}))

	matches, err := s.RankedClusterMatches(matcher.Policy{TopK: 5, Mode: matcher.RankPerSection})
	require.NoError(t, err)

	require.Len(t, matches, 1) // only the closest cluster of the section survives
	assert.Equal(t, 1, matches[0].ClusterID)
	assert.InDelta(t, 0, matches[0].Distance, 1e-6)
}

func TestSQLiteMatchTables(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.ReplaceMatches([]models.Match{
		{CandidateID: "c1", Section: "ARTS", CosineDistance: 0.1, Summary: "s…"},
	}))

	cluster := 1
	require.NoError(t, s.ReplaceClusterMatches([]models.Match{
		{CandidateID: "c1", Section: "ARTS", ClusterID: &cluster, CosineDistance: 0.1, Summary: "s…"},
	}))

	// Rebuilding from scratch must succeed on the second run too.
	require.NoError(t, s.ReplaceMatches(nil))
	require.NoError(t, s.ReplaceClusterMatches(nil))
}

func TestStoreRejectsUnknownBackend(t *testing.T) {
	_, err := store.NewWithConfig(store.Config{Backend: "oracle"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown storage backend")
}
