package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/calliope-press/sectionmatch/internal/models"
)

func loadCmd() *cobra.Command {
	var inputFlag string
	var batchSize int

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Load embedded articles from a JSON file into the database",
		Long: "Reads a JSON array of pre-embedded articles and upserts them into the\n" +
			"embeddings table. Embeddings are produced upstream; rows labeled\n" +
			"CANDIDATE are the ones later matched against section fingerprints.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if batchSize < 1 {
				batchSize = 100
			}

			data, err := os.ReadFile(inputFlag)
			if err != nil {
				return fmt.Errorf("failed to read %s: %v", inputFlag, err)
			}

			var rows []articleRecord
			if err := json.Unmarshal(data, &rows); err != nil {
				return fmt.Errorf("failed to parse %s: %v", inputFlag, err)
			}

			articles := make([]models.Article, 0, len(rows))
			for _, r := range rows {
				if r.ID == "" {
					return fmt.Errorf("article with url %q has no id", r.URL)
				}
				if r.Section == "" {
					return fmt.Errorf("article %s has no section", r.ID)
				}
				articles = append(articles, models.Article{
					ID:        r.ID,
					URL:       r.URL,
					Filename:  r.Filename,
					Content:   r.Content,
					Section:   r.Section,
					Embedding: r.Embedding,
				})
			}

			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			bar := getProgressBar(len(articles), " Loading articles")
			for i := 0; i < len(articles); i += batchSize {
				end := i + batchSize
				if end > len(articles) {
					end = len(articles)
				}
				if err := st.InsertArticles(articles[i:end]); err != nil {
					bar.Finish()
					return fmt.Errorf("failed to store articles: %v", err)
				}
				bar.Add(end - i)
			}
			bar.Finish()

			color.Green("✓ Loaded %d articles into %s\n", len(articles), cfg.Database.EmbeddingsTable)
			return nil
		},
	}

	cmd.Flags().StringVarP(&inputFlag, "input", "i", "", "JSON file with an array of embedded articles")
	cmd.Flags().IntVar(&batchSize, "batch-size", 100, "rows per insert batch")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

type articleRecord struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Filename  string    `json:"filename"`
	Content   string    `json:"content"`
	Section   string    `json:"section"`
	Embedding []float32 `json:"embedding"`
}
