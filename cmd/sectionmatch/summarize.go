package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/calliope-press/sectionmatch/internal/models"
	"github.com/calliope-press/sectionmatch/pkg/export"
	"github.com/calliope-press/sectionmatch/pkg/llm"
	"github.com/calliope-press/sectionmatch/pkg/store"
)

const (
	singleSummariesFile  = "summarized_candidates.json"
	clusterSummariesFile = "summarized_candidates_cluster.json"
)

func summarizeCmd() *cobra.Command {
	var modeFlag string
	var modelFlag string
	var backendFlag string

	cmd := &cobra.Command{
		Use:   "summarize",
		Short: "Summarize curator-selected candidates with a generative model",
		Long: "Reads the curator's per-section selection files, fetches each selected\n" +
			"article, and generates a short summary per article. Failures on single\n" +
			"articles are recorded inline; the batch keeps going.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("model") {
				cfg.Summary.Model = modelFlag
			}
			if cmd.Flags().Changed("backend") {
				cfg.Summary.Backend = backendFlag
			}

			switch modeFlag {
			case "single", "clustered", "both":
			default:
				return fmt.Errorf("unknown mode: %q (expected single, clustered, or both)", modeFlag)
			}

			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			summarizer, err := llm.NewWithConfig(llm.SummarizerConfig{
				Backend:   cfg.Summary.Backend,
				Model:     cfg.Summary.Model,
				CharLimit: cfg.Summary.CharLimit,
				APIKey:    cfg.Summary.APIKey,
				Project:   cfg.Summary.Project,
				Location:  cfg.Summary.Location,
				BaseURL:   cfg.Summary.OllamaURL,
			})
			if err != nil {
				return fmt.Errorf("failed to initialize summarizer: %v", err)
			}

			ctx := cmd.Context()
			limiter := rate.NewLimiter(rate.Limit(cfg.Summary.RateLimit), 1)

			if modeFlag == "single" || modeFlag == "both" {
				color.Cyan("Starting summarization for SINGLE...")
				summaries, err := summarizeSelections(ctx, st, summarizer, limiter, cfg.Output.SelectedSingleDir)
				if err != nil {
					return err
				}
				out := filepath.Join(cfg.Output.SummariesDir, singleSummariesFile)
				if err := export.WriteSummaries(out, summaries); err != nil {
					return fmt.Errorf("failed to write summaries: %v", err)
				}
				color.Green("✓ Wrote %d single summaries to %s\n", len(summaries), out)
			}

			if modeFlag == "clustered" || modeFlag == "both" {
				color.Cyan("Starting summarization for CLUSTER...")
				summaries, err := summarizeSelections(ctx, st, summarizer, limiter, cfg.Output.SelectedClusteredDir)
				if err != nil {
					return err
				}
				out := filepath.Join(cfg.Output.SummariesDir, clusterSummariesFile)
				if err := export.WriteSummaries(out, summaries); err != nil {
					return fmt.Errorf("failed to write summaries: %v", err)
				}
				color.Green("✓ Wrote %d cluster summaries to %s\n", len(summaries), out)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&modeFlag, "mode", "both", "selection set to summarize: single, clustered, or both")
	cmd.Flags().StringVar(&modelFlag, "model", "gemini-2.0-flash", "generative model identifier")
	cmd.Flags().StringVar(&backendFlag, "backend", "", "LLM backend: googleai, vertex, or ollama")

	return cmd
}

// summarizeSelections walks one selection directory. Selected ids that no
// longer resolve to a stored article are skipped.
func summarizeSelections(ctx context.Context, st store.Store, summarizer *llm.Summarizer, limiter *rate.Limiter, dir string) ([]models.Summary, error) {
	selections, err := export.ReadSelections(dir, func(path string, err error) {
		color.Yellow("⚠ Error reading %s: %v", path, err)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read selections: %v", err)
	}

	var summaries []models.Summary
	for _, sel := range selections {
		bar := getProgressBar(len(sel.IDs), " Summarizing "+sel.Section)
		for _, id := range sel.IDs {
			article, err := st.CandidateByID(id)
			if err != nil {
				bar.Finish()
				return nil, fmt.Errorf("failed to fetch candidate %s: %v", id, err)
			}
			if article == nil {
				bar.Add(1)
				continue
			}
			if err := limiter.Wait(ctx); err != nil {
				bar.Finish()
				return nil, err
			}
			summaries = append(summaries, models.Summary{
				ID:      article.ID,
				URL:     article.URL,
				Section: sel.Section,
				Summary: summarizer.Summarize(ctx, article.Content),
			})
			bar.Add(1)
		}
		bar.Finish()
	}
	return summaries, nil
}
