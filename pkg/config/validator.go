package config

import (
	"fmt"
	"net/url"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate Database config
	switch c.Database.Backend {
	case "sqlite":
		if c.Database.Path == "" {
			errors = append(errors, ValidationError{
				Field:   "database.path",
				Message: "sqlite backend requires a database path",
			})
		}
	case "postgres":
		if c.Database.URL == "" {
			errors = append(errors, ValidationError{
				Field:   "database.url",
				Message: "postgres backend requires a connection URL",
			})
		}
	default:
		errors = append(errors, ValidationError{
			Field:   "database.backend",
			Message: fmt.Sprintf("unknown backend %q, must be sqlite or postgres", c.Database.Backend),
		})
	}

	if c.Database.URL != "" {
		if _, err := url.Parse(c.Database.URL); err != nil {
			errors = append(errors, ValidationError{
				Field:   "database.url",
				Message: "invalid database URL",
			})
		}
	}

	if c.Database.VectorDim < 1 {
		errors = append(errors, ValidationError{
			Field:   "database.vector_dim",
			Message: "vector_dim must be positive",
		})
	}

	// Validate Matching config
	if c.Matching.SimilarityThreshold > 2 {
		errors = append(errors, ValidationError{
			Field:   "matching.similarity_threshold",
			Message: "similarity_threshold cannot exceed 2, the maximum cosine distance",
		})
	}

	if c.Matching.Rank != "candidate" && c.Matching.Rank != "section" {
		errors = append(errors, ValidationError{
			Field:   "matching.rank",
			Message: fmt.Sprintf("unknown rank mode %q, must be candidate or section", c.Matching.Rank),
		})
	}

	if c.Matching.ClusterRank != "candidate" && c.Matching.ClusterRank != "section" {
		errors = append(errors, ValidationError{
			Field:   "matching.cluster_rank",
			Message: fmt.Sprintf("unknown rank mode %q, must be candidate or section", c.Matching.ClusterRank),
		})
	}

	// Validate Clustering config
	if c.Clustering.Clusters < 1 {
		errors = append(errors, ValidationError{
			Field:   "clustering.clusters",
			Message: "clusters must be positive",
		})
	}

	if c.Clustering.MaxIterations < 1 {
		errors = append(errors, ValidationError{
			Field:   "clustering.max_iterations",
			Message: "max_iterations must be positive",
		})
	}

	// Validate Summary config
	if c.Summary.CharLimit < 1 {
		errors = append(errors, ValidationError{
			Field:   "summary.char_limit",
			Message: "char_limit must be positive",
		})
	}

	switch c.Summary.Backend {
	case "googleai", "ollama":
	case "vertex":
		if c.Summary.Project == "" {
			errors = append(errors, ValidationError{
				Field:   "summary.project",
				Message: "vertex backend requires a cloud project",
			})
		}
	default:
		errors = append(errors, ValidationError{
			Field:   "summary.backend",
			Message: fmt.Sprintf("unknown backend %q, must be googleai, vertex, or ollama", c.Summary.Backend),
		})
	}

	if c.Summary.RateLimit <= 0 {
		errors = append(errors, ValidationError{
			Field:   "summary.rate_limit",
			Message: "rate_limit must be positive",
		})
	}

	// Validate Ollama URL format
	if _, err := url.Parse(c.Summary.OllamaURL); err != nil {
		errors = append(errors, ValidationError{
			Field:   "summary.ollama_url",
			Message: "invalid Ollama base URL",
		})
	}

	return errors
}
