package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Database struct {
		Backend                 string `yaml:"backend"`
		URL                     string `yaml:"url"`
		Path                    string `yaml:"path"`
		EmbeddingsTable         string `yaml:"embeddings_table"`
		FingerprintTable        string `yaml:"fingerprint_table"`
		ClusterFingerprintTable string `yaml:"cluster_fingerprint_table"`
		MatchTable              string `yaml:"match_table"`
		ClusterMatchTable       string `yaml:"cluster_match_table"`
		VectorDim               int    `yaml:"vector_dim"`
	} `yaml:"database"`

	Matching struct {
		SimilarityThreshold float64 `yaml:"similarity_threshold"`
		TopK                int     `yaml:"top_k"`
		ClusterTopK         int     `yaml:"cluster_top_k"`
		Rank                string  `yaml:"rank"`
		ClusterRank         string  `yaml:"cluster_rank"`
	} `yaml:"matching"`

	Clustering struct {
		Clusters      int   `yaml:"clusters"`
		Seed          int64 `yaml:"seed"`
		MaxIterations int   `yaml:"max_iterations"`
	} `yaml:"clustering"`

	Output struct {
		SectionDir           string `yaml:"section_dir"`
		ClusterDir           string `yaml:"cluster_dir"`
		SelectedSingleDir    string `yaml:"selected_single_dir"`
		SelectedClusteredDir string `yaml:"selected_clustered_dir"`
		SummariesDir         string `yaml:"summaries_dir"`
	} `yaml:"output"`

	Summary struct {
		CharLimit int     `yaml:"char_limit"`
		Model     string  `yaml:"model"`
		Backend   string  `yaml:"backend"`
		APIKey    string  `yaml:"api_key"`
		Project   string  `yaml:"project"`
		Location  string  `yaml:"location"`
		OllamaURL string  `yaml:"ollama_url"`
		RateLimit float64 `yaml:"rate_limit"`
	} `yaml:"summary"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/sectionmatch/config.yaml"),
			"/etc/sectionmatch/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %v", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %v", err)
	}

	// Merge with environment variables
	mergeWithEnv(&config)

	// Apply defaults for unset values
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	mergeWithEnv(config)
	applyDefaults(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.Database.Backend == "" {
		config.Database.Backend = "sqlite"
	}
	if config.Database.Path == "" {
		config.Database.Path = "data/newsletter_embeddings.db"
	}
	if config.Database.EmbeddingsTable == "" {
		config.Database.EmbeddingsTable = "link_embeddings"
	}
	if config.Database.FingerprintTable == "" {
		config.Database.FingerprintTable = "section_fingerprints"
	}
	if config.Database.ClusterFingerprintTable == "" {
		config.Database.ClusterFingerprintTable = "section_cluster_fingerprints"
	}
	if config.Database.MatchTable == "" {
		config.Database.MatchTable = "candidate_section_matches"
	}
	if config.Database.ClusterMatchTable == "" {
		config.Database.ClusterMatchTable = "candidate_cluster_section_matches"
	}
	if config.Database.VectorDim == 0 {
		config.Database.VectorDim = 768
	}

	// A negative threshold or top-k stays negative, which disables the
	// knob downstream. Only the unset zero value takes the default.
	if config.Matching.SimilarityThreshold == 0 {
		config.Matching.SimilarityThreshold = 0.40
	}
	if config.Matching.TopK == 0 {
		config.Matching.TopK = 3
	}
	if config.Matching.ClusterTopK == 0 {
		config.Matching.ClusterTopK = 5
	}
	if config.Matching.Rank == "" {
		config.Matching.Rank = "candidate"
	}
	if config.Matching.ClusterRank == "" {
		config.Matching.ClusterRank = "section"
	}

	if config.Clustering.Clusters == 0 {
		config.Clustering.Clusters = 3
	}
	if config.Clustering.Seed == 0 {
		config.Clustering.Seed = 42
	}
	if config.Clustering.MaxIterations == 0 {
		config.Clustering.MaxIterations = 300
	}

	if config.Output.SectionDir == "" {
		config.Output.SectionDir = "section_matches"
	}
	if config.Output.ClusterDir == "" {
		config.Output.ClusterDir = "section_cluster_matches"
	}
	if config.Output.SelectedSingleDir == "" {
		config.Output.SelectedSingleDir = "selected_ids/single"
	}
	if config.Output.SelectedClusteredDir == "" {
		config.Output.SelectedClusteredDir = "selected_ids/clustered"
	}
	if config.Output.SummariesDir == "" {
		config.Output.SummariesDir = "summaries"
	}

	if config.Summary.CharLimit == 0 {
		config.Summary.CharLimit = 280
	}
	if config.Summary.Model == "" {
		config.Summary.Model = "gemini-2.0-flash"
	}
	if config.Summary.Backend == "" {
		config.Summary.Backend = "googleai"
	}
	if config.Summary.Location == "" {
		config.Summary.Location = "us-central1"
	}
	if config.Summary.OllamaURL == "" {
		config.Summary.OllamaURL = "http://localhost:11434"
	}
	if config.Summary.RateLimit == 0 {
		config.Summary.RateLimit = 1.0
	}
}

func mergeWithEnv(config *Config) {
	envString("DATABASE_BACKEND", &config.Database.Backend)
	envString("DATABASE_URL", &config.Database.URL)
	envString("DATABASE_PATH", &config.Database.Path)
	envString("CANDIDATE_TABLE", &config.Database.EmbeddingsTable)
	envString("FINGERPRINT_TABLE", &config.Database.FingerprintTable)
	envString("CLUSTER_FINGERPRINT_TABLE", &config.Database.ClusterFingerprintTable)
	envString("MATCH_TABLE", &config.Database.MatchTable)
	envString("CLUSTER_MATCH_TABLE", &config.Database.ClusterMatchTable)
	envInt("EMBEDDING_DIM", &config.Database.VectorDim)

	envFloat("SIMILARITY_THRESHOLD", &config.Matching.SimilarityThreshold)
	envInt("TOP_K_MATCHES", &config.Matching.TopK)
	envInt("TOP_K_CLUSTER_MATCHES", &config.Matching.ClusterTopK)

	envInt("SECTION_CLUSTER_K", &config.Clustering.Clusters)

	envString("SECTION_JSON_OUTPUT_DIR", &config.Output.SectionDir)
	envString("CLUSTER_MATCH_OUTPUT_DIR", &config.Output.ClusterDir)
	envString("SELECTED_IDS_SINGLE_DIR", &config.Output.SelectedSingleDir)
	envString("SELECTED_IDS_CLUSTERED_DIR", &config.Output.SelectedClusteredDir)
	envString("SUMMARIES_OUTPUT_DIR", &config.Output.SummariesDir)

	envInt("SUMMARY_CHAR_LIMIT", &config.Summary.CharLimit)
	envString("SUMMARY_MODEL", &config.Summary.Model)
	envString("SUMMARY_BACKEND", &config.Summary.Backend)
	envString("GOOGLE_API_KEY", &config.Summary.APIKey)
	envString("GOOGLE_CLOUD_PROJECT", &config.Summary.Project)
	envString("GOOGLE_CLOUD_LOCATION", &config.Summary.Location)
	envString("OLLAMA_BASE_URL", &config.Summary.OllamaURL)
	envFloat("SUMMARY_RATE_LIMIT", &config.Summary.RateLimit)

	if v := os.Getenv("GOOGLE_GENAI_USE_VERTEXAI"); strings.EqualFold(v, "true") {
		config.Summary.Backend = "vertex"
	}
}

func envString(key string, target *string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

func envInt(key string, target *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*target = n
		}
	}
}

func envFloat(key string, target *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*target = f
		}
	}
}
