package matcher_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calliope-press/sectionmatch/internal/models"
	"github.com/calliope-press/sectionmatch/pkg/matcher"
)

// unitVec returns a 2D unit vector whose cosine distance to [1, 0] is 1-c.
func unitVec(c float64) []float32 {
	return []float32{float32(c), float32(math.Sqrt(1 - c*c))}
}

func candidate(id string, embedding []float32) models.Article {
	return models.Article{ID: id, Section: models.CandidateSection, Embedding: embedding}
}

func TestMatchSingleAppliesThresholdAndTopK(t *testing.T) {
	candidates := []models.Article{
		candidate("c1", unitVec(0.9)),  // distance 0.10
		candidate("c2", unitVec(0.8)),  // distance 0.20
		candidate("c3", unitVec(0.61)), // distance 0.39
		candidate("c4", unitVec(0.59)), // distance 0.41, over threshold
		candidate("c5", unitVec(0.5)),  // distance 0.50, over threshold
	}
	fingerprints := []models.Fingerprint{
		{Section: "ARTS", Embedding: []float32{1, 0}},
	}

	got := matcher.MatchSingle(candidates, fingerprints, matcher.Policy{
		Threshold: 0.40,
		TopK:      3,
		Mode:      matcher.RankPerSection,
	})

	require.Len(t, got, 3)
	assert.Equal(t, "c1", got[0].Candidate.ID)
	assert.Equal(t, "c2", got[1].Candidate.ID)
	assert.Equal(t, "c3", got[2].Candidate.ID)
	assert.InDelta(t, 0.10, got[0].Distance, 1e-4)
	assert.InDelta(t, 0.39, got[2].Distance, 1e-4)
	for _, m := range got {
		assert.Equal(t, "ARTS", m.Section)
		assert.Equal(t, matcher.NoCluster, m.ClusterID)
	}
}

func TestMatchSingleRanksPerCandidate(t *testing.T) {
	candidates := []models.Article{candidate("c1", []float32{1, 0})}
	fingerprints := []models.Fingerprint{
		{Section: "TECH", Embedding: unitVec(0.5)},
		{Section: "ARTS", Embedding: unitVec(0.9)},
		{Section: "BOOKS", Embedding: unitVec(0.8)},
	}

	got := matcher.MatchSingle(candidates, fingerprints, matcher.Policy{
		TopK: 2,
		Mode: matcher.RankPerCandidate,
	})

	require.Len(t, got, 2)
	assert.Equal(t, "ARTS", got[0].Section)
	assert.Equal(t, "BOOKS", got[1].Section)
}

func TestMatchSingleSkipsUnusableRows(t *testing.T) {
	candidates := []models.Article{
		candidate("no-embedding", nil),
		candidate("c1", []float32{1, 0}),
	}
	fingerprints := []models.Fingerprint{
		{Section: models.CandidateSection, Embedding: []float32{1, 0}}, // reserved label
		{Section: "WIDE", Embedding: []float32{1, 0, 0}},               // dimension mismatch
		{Section: "ARTS", Embedding: []float32{1, 0}},
	}

	got := matcher.MatchSingle(candidates, fingerprints, matcher.Policy{})

	require.Len(t, got, 1)
	assert.Equal(t, "c1", got[0].Candidate.ID)
	assert.Equal(t, "ARTS", got[0].Section)
}

func TestMatchSingleGroupsSortAscending(t *testing.T) {
	candidates := []models.Article{
		candidate("c1", unitVec(0.8)),
		candidate("c2", unitVec(0.9)),
	}
	// BOOKS deliberately arrives before ARTS.
	fingerprints := []models.Fingerprint{
		{Section: "BOOKS", Embedding: []float32{0, 1}},
		{Section: "ARTS", Embedding: []float32{1, 0}},
	}

	got := matcher.MatchSingle(candidates, fingerprints, matcher.Policy{})

	require.Len(t, got, 4)
	assert.Equal(t, "ARTS", got[0].Section)
	assert.Equal(t, "ARTS", got[1].Section)
	assert.Equal(t, "BOOKS", got[2].Section)
	assert.Equal(t, "BOOKS", got[3].Section)
	// Within a group the closer candidate leads.
	assert.Equal(t, "c2", got[0].Candidate.ID)
	assert.Equal(t, "c1", got[1].Candidate.ID)
}

func TestMatchClusteredKeepsBestClusterPerSection(t *testing.T) {
	candidates := []models.Article{candidate("c1", []float32{1, 0})}
	clusters := []models.ClusterFingerprint{
		{Section: "ARTS", ClusterID: 0, Embedding: unitVec(0.5)},
		{Section: "ARTS", ClusterID: 1, Embedding: unitVec(0.9)},
	}

	got := matcher.MatchClustered(candidates, clusters, matcher.Policy{})

	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].ClusterID)
	assert.InDelta(t, 0.10, got[0].Distance, 1e-4)
}

func TestMatchClusteredTieKeepsEarlierCluster(t *testing.T) {
	candidates := []models.Article{candidate("c1", []float32{1, 0})}
	clusters := []models.ClusterFingerprint{
		{Section: "ARTS", ClusterID: 0, Embedding: unitVec(0.8)},
		{Section: "ARTS", ClusterID: 1, Embedding: unitVec(0.8)},
	}

	got := matcher.MatchClustered(candidates, clusters, matcher.Policy{})

	require.Len(t, got, 1)
	assert.Equal(t, 0, got[0].ClusterID)
}

func TestMatchClusteredThresholdAppliesToBestCluster(t *testing.T) {
	candidates := []models.Article{candidate("c1", []float32{1, 0})}
	clusters := []models.ClusterFingerprint{
		{Section: "ARTS", ClusterID: 0, Embedding: unitVec(0.5)}, // best is 0.50
	}

	got := matcher.MatchClustered(candidates, clusters, matcher.Policy{Threshold: 0.40})

	assert.Empty(t, got)
}

func TestMatchClusteredTopKPerSection(t *testing.T) {
	candidates := []models.Article{
		candidate("c1", unitVec(0.5)),
		candidate("c2", unitVec(0.9)),
		candidate("c3", unitVec(0.8)),
	}
	clusters := []models.ClusterFingerprint{
		{Section: "ARTS", ClusterID: 0, Embedding: []float32{1, 0}},
	}

	got := matcher.MatchClustered(candidates, clusters, matcher.Policy{
		TopK: 2,
		Mode: matcher.RankPerSection,
	})

	require.Len(t, got, 2)
	assert.Equal(t, "c2", got[0].Candidate.ID)
	assert.Equal(t, "c3", got[1].Candidate.ID)
}
