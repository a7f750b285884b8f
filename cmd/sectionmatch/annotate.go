package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/calliope-press/sectionmatch/pkg/export"
	"github.com/calliope-press/sectionmatch/pkg/matcher"
)

func annotateCmd() *cobra.Command {
	var thresholdFlag float64
	var topKFlag int
	var rankFlag string
	var jsonDirFlag string
	var jsonFlag bool

	cmd := &cobra.Command{
		Use:   "annotate",
		Short: "Rank candidates against section fingerprints and store the matches",
		Long: "Scores every candidate embedding against every section fingerprint by\n" +
			"cosine distance, keeps the matches allowed by the threshold and top-K\n" +
			"policy, rebuilds the match table, and dumps one JSON file per section.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("similarity-threshold") {
				cfg.Matching.SimilarityThreshold = thresholdFlag
			}
			if cmd.Flags().Changed("top-k") {
				cfg.Matching.TopK = topKFlag
			}
			if cmd.Flags().Changed("rank") {
				cfg.Matching.Rank = rankFlag
			}
			if cmd.Flags().Changed("json-dir") {
				cfg.Output.SectionDir = jsonDirFlag
			}

			policy, err := rankPolicy(cfg.Matching.SimilarityThreshold, cfg.Matching.TopK, cfg.Matching.Rank)
			if err != nil {
				return err
			}

			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			spinner := getSpinner(" Matching candidates to section fingerprints...")
			matches, err := st.RankedMatches(policy)
			spinner.Finish()
			if err != nil {
				return fmt.Errorf("failed to rank matches: %v", err)
			}

			records := export.Records(matches, cfg.Summary.CharLimit)

			if err := st.ReplaceMatches(records); err != nil {
				return fmt.Errorf("failed to store matches: %v", err)
			}
			color.Green("✓ Inserted %d matches into %s\n", len(records), cfg.Database.MatchTable)

			if !jsonFlag {
				color.Cyan("Showing top %d matches per %s (threshold=%g):",
					policy.TopK, cfg.Matching.Rank, policy.Threshold)
				for _, r := range records {
					fmt.Printf("%s  %s  %.4f\n", r.CandidateID, r.Section, r.CosineDistance)
				}
				return nil
			}

			files, err := export.WriteSectionFiles(cfg.Output.SectionDir, records)
			if err != nil {
				return fmt.Errorf("failed to write section files: %v", err)
			}
			for _, f := range files {
				color.Green("✓ Wrote %d matches to %s", f.Count, f.Path)
			}
			return nil
		},
	}

	cmd.Flags().Float64Var(&thresholdFlag, "similarity-threshold", 0.40, "max cosine distance to keep a match (<= 0 disables)")
	cmd.Flags().IntVar(&topKFlag, "top-k", 3, "matches kept per ranked group (<= 0 disables)")
	cmd.Flags().StringVar(&rankFlag, "rank", "candidate", "ranked group: candidate or section")
	cmd.Flags().StringVar(&jsonDirFlag, "json-dir", "", "directory for per-section JSON files")
	cmd.Flags().BoolVar(&jsonFlag, "json", true, "dump per-section JSON files (false prints matches instead)")

	return cmd
}

// rankPolicy validates a rank-mode string, since flag values bypass the
// config validator.
func rankPolicy(threshold float64, topK int, rank string) (matcher.Policy, error) {
	mode := matcher.RankMode(rank)
	switch mode {
	case matcher.RankPerCandidate, matcher.RankPerSection:
	default:
		return matcher.Policy{}, fmt.Errorf("unknown rank mode: %q", rank)
	}
	return matcher.Policy{
		Threshold: threshold,
		TopK:      topK,
		Mode:      mode,
	}, nil
}
