package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/calliope-press/sectionmatch/internal/models"
	"github.com/calliope-press/sectionmatch/pkg/fingerprint"
)

func clusterCmd() *cobra.Command {
	var clustersFlag int
	var seedFlag int64

	cmd := &cobra.Command{
		Use:   "cluster",
		Short: "Build k-means cluster fingerprints per section",
		Long: "Clusters each section's historical embeddings into K centroids so a\n" +
			"section with several recurring themes gets one fingerprint per theme.\n" +
			"Sections with fewer samples than K fall back to the single mean.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("clusters") {
				cfg.Clustering.Clusters = clustersFlag
			}
			if cmd.Flags().Changed("seed") {
				cfg.Clustering.Seed = seedFlag
			}

			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			spinner := getSpinner(" Loading section embeddings...")
			rows, err := st.SectionEmbeddings()
			spinner.Finish()
			if err != nil {
				return fmt.Errorf("failed to load section embeddings: %v", err)
			}

			groups, err := fingerprint.GroupBySection(rows)
			if err != nil {
				return fmt.Errorf("failed to group embeddings: %v", err)
			}

			clusterConfig := fingerprint.ClusterConfig{
				Clusters:      cfg.Clustering.Clusters,
				Seed:          cfg.Clustering.Seed,
				MaxIterations: cfg.Clustering.MaxIterations,
			}

			color.Cyan("Generating clustered fingerprints with k=%d into %s",
				clusterConfig.Clusters, cfg.Database.ClusterFingerprintTable)

			var cfps []models.ClusterFingerprint
			bar := getProgressBar(len(groups), " Clustering sections")
			for _, g := range groups {
				cfps = append(cfps, fingerprint.ClusterSection(g, clusterConfig)...)
				bar.Add(1)
			}
			bar.Finish()

			if err := st.ReplaceClusterFingerprints(cfps); err != nil {
				return fmt.Errorf("failed to store cluster fingerprints: %v", err)
			}

			color.Green("✓ Inserted %d cluster fingerprints for %d sections into %s\n",
				len(cfps), len(groups), cfg.Database.ClusterFingerprintTable)
			return nil
		},
	}

	cmd.Flags().IntVarP(&clustersFlag, "clusters", "k", 3, "clusters per section")
	cmd.Flags().Int64Var(&seedFlag, "seed", 42, "random seed for clustering")

	return cmd
}
