// Package store persists embedded articles, section fingerprints, and
// ranked matches behind a backend-neutral interface. The postgres backend
// scores and ranks matches inside the database with pgvector; the sqlite
// backend keeps embeddings as packed float32 blobs and ranks in process.
package store

import (
	"fmt"

	"github.com/calliope-press/sectionmatch/internal/models"
	"github.com/calliope-press/sectionmatch/pkg/matcher"
)

const (
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Config selects and parameterizes a backend. Zero fields fall back to
// the table names and embedding dimension the pipeline assumes.
type Config struct {
	Backend                 string
	URL                     string
	Path                    string
	EmbeddingsTable         string
	FingerprintTable        string
	ClusterFingerprintTable string
	MatchTable              string
	ClusterMatchTable       string
	VectorDim               int
}

func (c *Config) applyDefaults() {
	if c.Backend == "" {
		c.Backend = BackendSQLite
	}
	if c.Path == "" {
		c.Path = "data/newsletter_embeddings.db"
	}
	if c.EmbeddingsTable == "" {
		c.EmbeddingsTable = "link_embeddings"
	}
	if c.FingerprintTable == "" {
		c.FingerprintTable = "section_fingerprints"
	}
	if c.ClusterFingerprintTable == "" {
		c.ClusterFingerprintTable = "section_cluster_fingerprints"
	}
	if c.MatchTable == "" {
		c.MatchTable = "candidate_section_matches"
	}
	if c.ClusterMatchTable == "" {
		c.ClusterMatchTable = "candidate_cluster_section_matches"
	}
	if c.VectorDim == 0 {
		c.VectorDim = 768
	}
}

// Store is everything the matching pipeline needs from persistence.
type Store interface {
	// InsertArticles upserts embedded rows into the embeddings table.
	InsertArticles(articles []models.Article) error

	// SectionEmbeddings returns every labeled embedded row outside the
	// reserved candidate section, ordered by id.
	SectionEmbeddings() ([]models.SectionEmbedding, error)

	// Candidates returns every candidate row ordered by id, including
	// rows whose embedding is missing.
	Candidates() ([]models.Article, error)

	// CandidateByID returns one row, or nil when the id is unknown.
	CandidateByID(id string) (*models.Article, error)

	// ReplaceFingerprints drops and rebuilds the fingerprint table so a
	// rerun never leaves stale sections behind. ReplaceClusterFingerprints
	// does the same for the cluster fingerprint table.
	ReplaceFingerprints(fps []models.Fingerprint) error
	ReplaceClusterFingerprints(cfps []models.ClusterFingerprint) error

	// Fingerprints returns fingerprints ordered by section.
	// ClusterFingerprints orders by section, then cluster id.
	Fingerprints() ([]models.Fingerprint, error)
	ClusterFingerprints() ([]models.ClusterFingerprint, error)

	// RankedMatches scores candidates against whole-section fingerprints
	// under the policy. RankedClusterMatches scores against cluster
	// fingerprints, keeping only each section's closest cluster per
	// candidate. Both return matches grouped by the ranked side in
	// ascending key order, ascending distance within a group.
	RankedMatches(policy matcher.Policy) ([]matcher.Match, error)
	RankedClusterMatches(policy matcher.Policy) ([]matcher.Match, error)

	// ReplaceMatches and ReplaceClusterMatches rebuild the two match
	// tables with the latest run's output.
	ReplaceMatches(matches []models.Match) error
	ReplaceClusterMatches(matches []models.Match) error

	Close()
}

// NewWithConfig opens the configured backend and ensures its schema.
func NewWithConfig(config Config) (Store, error) {
	config.applyDefaults()
	switch config.Backend {
	case BackendPostgres:
		return newPostgresStore(config)
	case BackendSQLite:
		return newSQLiteStore(config)
	default:
		return nil, fmt.Errorf("unknown storage backend: %q", config.Backend)
	}
}
