package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	// Create temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configData := `
database:
  backend: "postgres"
  url: "postgres://localhost:5432/newsletter"
  embeddings_table: "late_links"
  vector_dim: 1536

matching:
  similarity_threshold: 0.35
  top_k: 5
  rank: "section"

clustering:
  clusters: 4
  seed: 7

output:
  section_dir: "out/sections"

summary:
  char_limit: 200
  model: "gemini-1.5-pro"
  backend: "ollama"
  rate_limit: 0.5
`
	err := os.WriteFile(configPath, []byte(configData), 0644)
	require.NoError(t, err)

	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	// Verify loaded values
	assert.Equal(t, "late_links", config.Database.EmbeddingsTable)
	assert.Equal(t, 1536, config.Database.VectorDim)
	assert.Equal(t, 0.35, config.Matching.SimilarityThreshold)
	assert.Equal(t, 5, config.Matching.TopK)
	assert.Equal(t, "section", config.Matching.Rank)
	assert.Equal(t, 4, config.Clustering.Clusters)
	assert.Equal(t, int64(7), config.Clustering.Seed)
	assert.Equal(t, "out/sections", config.Output.SectionDir)
	assert.Equal(t, 200, config.Summary.CharLimit)
	assert.Equal(t, "gemini-1.5-pro", config.Summary.Model)
	assert.Equal(t, 0.5, config.Summary.RateLimit)

	// Unset fields fall back to defaults
	assert.Equal(t, "section_fingerprints", config.Database.FingerprintTable)
	assert.Equal(t, 5, config.Matching.ClusterTopK)
	assert.Equal(t, 300, config.Clustering.MaxIterations)
	assert.Equal(t, "section_cluster_matches", config.Output.ClusterDir)
}

func TestLoadConfigErrors(t *testing.T) {
	tmpDir := t.TempDir()

	_, err := LoadConfig(filepath.Join(tmpDir, "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")

	badPath := filepath.Join(tmpDir, "bad.yaml")
	err = os.WriteFile(badPath, []byte("database: [not a mapping"), 0644)
	require.NoError(t, err)

	_, err = LoadConfig(badPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error parsing config file")
}

func TestDefaults(t *testing.T) {
	config := &Config{}
	applyDefaults(config)

	assert.Equal(t, "sqlite", config.Database.Backend)
	assert.Equal(t, "data/newsletter_embeddings.db", config.Database.Path)
	assert.Equal(t, "link_embeddings", config.Database.EmbeddingsTable)
	assert.Equal(t, 768, config.Database.VectorDim)
	assert.Equal(t, 0.40, config.Matching.SimilarityThreshold)
	assert.Equal(t, 3, config.Matching.TopK)
	assert.Equal(t, "candidate", config.Matching.Rank)
	assert.Equal(t, "section", config.Matching.ClusterRank)
	assert.Equal(t, int64(42), config.Clustering.Seed)
	assert.Equal(t, "gemini-2.0-flash", config.Summary.Model)
	assert.Equal(t, "googleai", config.Summary.Backend)
	assert.Equal(t, 1.0, config.Summary.RateLimit)
}

func TestDefaultsKeepDisabledKnobs(t *testing.T) {
	config := &Config{}
	config.Matching.SimilarityThreshold = -1
	config.Matching.TopK = -1
	applyDefaults(config)

	// Negative means disabled, not unset
	assert.Equal(t, float64(-1), config.Matching.SimilarityThreshold)
	assert.Equal(t, -1, config.Matching.TopK)
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name          string
		mutate        func(*Config)
		errorMessages []string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name: "unknown database backend",
			mutate: func(c *Config) {
				c.Database.Backend = "oracle"
			},
			errorMessages: []string{
				`database.backend: unknown backend "oracle"`,
			},
		},
		{
			name: "postgres requires a url",
			mutate: func(c *Config) {
				c.Database.Backend = "postgres"
			},
			errorMessages: []string{
				"database.url: postgres backend requires a connection URL",
			},
		},
		{
			name: "sqlite requires a path",
			mutate: func(c *Config) {
				c.Database.Path = ""
			},
			errorMessages: []string{
				"database.path: sqlite backend requires a database path",
			},
		},
		{
			name: "threshold above maximum cosine distance",
			mutate: func(c *Config) {
				c.Matching.SimilarityThreshold = 2.5
			},
			errorMessages: []string{
				"matching.similarity_threshold: similarity_threshold cannot exceed 2",
			},
		},
		{
			name: "bad rank modes",
			mutate: func(c *Config) {
				c.Matching.Rank = "best"
				c.Matching.ClusterRank = "worst"
			},
			errorMessages: []string{
				`matching.rank: unknown rank mode "best"`,
				`matching.cluster_rank: unknown rank mode "worst"`,
			},
		},
		{
			name: "vertex requires a project",
			mutate: func(c *Config) {
				c.Summary.Backend = "vertex"
				c.Summary.Project = ""
			},
			errorMessages: []string{
				"summary.project: vertex backend requires a cloud project",
			},
		},
		{
			name: "unknown summary backend",
			mutate: func(c *Config) {
				c.Summary.Backend = "watson"
			},
			errorMessages: []string{
				`summary.backend: unknown backend "watson"`,
			},
		},
		{
			name: "non-positive knobs",
			mutate: func(c *Config) {
				c.Database.VectorDim = 0
				c.Clustering.Clusters = -1
				c.Clustering.MaxIterations = 0
				c.Summary.CharLimit = -5
				c.Summary.RateLimit = 0
			},
			errorMessages: []string{
				"database.vector_dim: vector_dim must be positive",
				"clustering.clusters: clusters must be positive",
				"clustering.max_iterations: max_iterations must be positive",
				"summary.char_limit: char_limit must be positive",
				"summary.rate_limit: rate_limit must be positive",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := &Config{}
			applyDefaults(config)
			tt.mutate(config)

			errors := config.Validate()
			require.Len(t, errors, len(tt.errorMessages))
			for i, msg := range tt.errorMessages {
				assert.Contains(t, errors[i].Error(), msg)
			}
		})
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	// Set environment variables
	os.Setenv("CANDIDATE_TABLE", "env_links")
	os.Setenv("SIMILARITY_THRESHOLD", "0.25")
	os.Setenv("SECTION_CLUSTER_K", "6")
	os.Setenv("EMBEDDING_DIM", "1024")
	os.Setenv("GOOGLE_GENAI_USE_VERTEXAI", "true")
	os.Setenv("TOP_K_MATCHES", "not-a-number")
	defer func() {
		os.Unsetenv("CANDIDATE_TABLE")
		os.Unsetenv("SIMILARITY_THRESHOLD")
		os.Unsetenv("SECTION_CLUSTER_K")
		os.Unsetenv("EMBEDDING_DIM")
		os.Unsetenv("GOOGLE_GENAI_USE_VERTEXAI")
		os.Unsetenv("TOP_K_MATCHES")
	}()

	config := &Config{}
	mergeWithEnv(config)

	assert.Equal(t, "env_links", config.Database.EmbeddingsTable)
	assert.Equal(t, 0.25, config.Matching.SimilarityThreshold)
	assert.Equal(t, 6, config.Clustering.Clusters)
	assert.Equal(t, 1024, config.Database.VectorDim)
	assert.Equal(t, "vertex", config.Summary.Backend)

	// Values that fail to parse are ignored
	assert.Equal(t, 0, config.Matching.TopK)
}
