package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/calliope-press/sectionmatch/pkg/export"
)

func annotateClustersCmd() *cobra.Command {
	var thresholdFlag float64
	var topKFlag int
	var rankFlag string
	var jsonDirFlag string
	var jsonFlag bool

	cmd := &cobra.Command{
		Use:   "annotate-clusters",
		Short: "Rank candidates against cluster fingerprints and store the matches",
		Long: "Scores every candidate embedding against every section's cluster\n" +
			"centroids, keeps only the closest cluster per candidate and section,\n" +
			"applies the top-K policy, and rebuilds the cluster match table.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("top-k") {
				cfg.Matching.ClusterTopK = topKFlag
			}
			if cmd.Flags().Changed("rank") {
				cfg.Matching.ClusterRank = rankFlag
			}
			if cmd.Flags().Changed("json-dir") {
				cfg.Output.ClusterDir = jsonDirFlag
			}

			policy, err := rankPolicy(thresholdFlag, cfg.Matching.ClusterTopK, cfg.Matching.ClusterRank)
			if err != nil {
				return err
			}

			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			color.Cyan("Matching candidates to clustered fingerprints (k=%d) from %s",
				policy.TopK, cfg.Database.ClusterFingerprintTable)

			spinner := getSpinner(" Processing matches...")
			matches, err := st.RankedClusterMatches(policy)
			spinner.Finish()
			if err != nil {
				return fmt.Errorf("failed to rank cluster matches: %v", err)
			}

			records := export.Records(matches, cfg.Summary.CharLimit)

			if err := st.ReplaceClusterMatches(records); err != nil {
				return fmt.Errorf("failed to store cluster matches: %v", err)
			}
			color.Green("✓ Inserted %d rows into %s\n", len(records), cfg.Database.ClusterMatchTable)

			if !jsonFlag {
				return nil
			}

			files, err := export.WriteSectionFiles(cfg.Output.ClusterDir, records)
			if err != nil {
				return fmt.Errorf("failed to write section files: %v", err)
			}
			for _, f := range files {
				color.Green("✓ Wrote %d clustered matches to %s", f.Count, f.Path)
			}
			return nil
		},
	}

	cmd.Flags().Float64Var(&thresholdFlag, "similarity-threshold", 0, "max cosine distance to keep a match (<= 0 disables)")
	cmd.Flags().IntVar(&topKFlag, "top-k", 5, "matches kept per ranked group (<= 0 disables)")
	cmd.Flags().StringVar(&rankFlag, "rank", "section", "ranked group: candidate or section")
	cmd.Flags().StringVar(&jsonDirFlag, "json-dir", "", "directory for per-section JSON files")
	cmd.Flags().BoolVar(&jsonFlag, "json", true, "dump per-section JSON files")

	return cmd
}
