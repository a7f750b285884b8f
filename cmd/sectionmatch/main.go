package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/calliope-press/sectionmatch/pkg/config"
	"github.com/calliope-press/sectionmatch/pkg/store"
)

var configPath string

func main() {
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "sectionmatch",
		Short: "Match newsletter candidates to sections by embedding distance",
		Long: "Batch pipeline for a curated newsletter: builds per-section embedding\n" +
			"fingerprints from historical articles, ranks candidate articles against\n" +
			"them by cosine distance, and summarizes the curator's picks.",
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")

	root.AddCommand(
		loadCmd(),
		fingerprintCmd(),
		clusterCmd(),
		annotateCmd(),
		annotateClustersCmd(),
		summarizeCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %v", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			color.Red("config: %v", e)
		}
		return nil, fmt.Errorf("invalid configuration")
	}

	return cfg, nil
}

func openStore(cfg *config.Config) (store.Store, error) {
	st, err := store.NewWithConfig(store.Config{
		Backend:                 cfg.Database.Backend,
		URL:                     cfg.Database.URL,
		Path:                    cfg.Database.Path,
		EmbeddingsTable:         cfg.Database.EmbeddingsTable,
		FingerprintTable:        cfg.Database.FingerprintTable,
		ClusterFingerprintTable: cfg.Database.ClusterFingerprintTable,
		MatchTable:              cfg.Database.MatchTable,
		ClusterMatchTable:       cfg.Database.ClusterMatchTable,
		VectorDim:               cfg.Database.VectorDim,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %v", err)
	}

	return st, nil
}
