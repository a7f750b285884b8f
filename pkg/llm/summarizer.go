// Package llm generates capped-length candidate summaries through a
// hosted Gemini model, a Vertex AI deployment, or a local Ollama server.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/googleai/vertex"
	"github.com/tmc/langchaingo/llms/ollama"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Supported summarization backends.
const (
	BackendGoogleAI = "googleai"
	BackendVertex   = "vertex"
	BackendOllama   = "ollama"
)

// SummarizerConfig represents the configuration for a summarizer.
type SummarizerConfig struct {
	Backend   string
	Model     string
	CharLimit int
	APIKey    string // googleai
	Project   string // vertex
	Location  string // vertex
	BaseURL   string // Ollama server URL
}

// Summarizer asks a language model for a short summary of one article at
// a time.
type Summarizer struct {
	config SummarizerConfig
	llm    llms.Model
}

// NewWithConfig creates a new Summarizer with the given configuration.
func NewWithConfig(config SummarizerConfig) (*Summarizer, error) {
	// Validate and set default values for config fields if necessary
	if config.Backend == "" {
		config.Backend = BackendGoogleAI
	}
	if config.Model == "" {
		config.Model = "gemini-2.0-flash"
	}
	if config.CharLimit <= 0 {
		config.CharLimit = 280
	}
	if config.Location == "" {
		config.Location = "us-central1"
	}

	ctx := context.Background()

	var model llms.Model
	var err error
	switch config.Backend {
	case BackendGoogleAI:
		model, err = googleai.New(ctx,
			googleai.WithAPIKey(config.APIKey),
			googleai.WithDefaultModel(config.Model))
	case BackendVertex:
		if config.Project == "" {
			return nil, fmt.Errorf("vertex backend requires a cloud project")
		}
		model, err = vertex.New(ctx,
			googleai.WithCloudProject(config.Project),
			googleai.WithCloudLocation(config.Location),
			googleai.WithDefaultModel(config.Model))
	case BackendOllama:
		if config.BaseURL == "" {
			config.BaseURL = "http://localhost:11434" // Default Ollama URL
		}
		model, err = ollama.New(ollama.WithModel(config.Model),
			ollama.WithServerURL(config.BaseURL))
	default:
		return nil, fmt.Errorf("unknown summary backend: %q", config.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}

	return &Summarizer{
		config: config,
		llm:    model,
	}, nil
}

// NewWithModel wraps an already-constructed model.
func NewWithModel(model llms.Model, charLimit int) *Summarizer {
	if charLimit <= 0 {
		charLimit = 280
	}
	return &Summarizer{
		config: SummarizerConfig{CharLimit: charLimit},
		llm:    model,
	}
}

// Summarize returns the model's summary of content. Failures never abort
// a batch: they come back in band as an "[ERROR: ...]" summary string.
func (s *Summarizer) Summarize(ctx context.Context, content string) string {
	prompt := fmt.Sprintf("Summarize this in %d characters or less:\n%s",
		s.config.CharLimit, PlainText(content))

	out, err := llms.GenerateFromSinglePrompt(ctx, s.llm, prompt)
	if err != nil {
		return errorSummary(err)
	}

	return strings.TrimSpace(out)
}

// errorSummary maps a generation failure to the in-band summary format.
// Permission, authentication, missing-model, and unavailable statuses
// keep just the status message; anything else is marked unexpected.
func errorSummary(err error) string {
	switch status.Code(err) {
	case codes.PermissionDenied, codes.Unauthenticated, codes.NotFound, codes.Unavailable:
		return fmt.Sprintf("[ERROR: %s]", status.Convert(err).Message())
	default:
		return fmt.Sprintf("[ERROR: Unexpected failure: %v]", err)
	}
}
