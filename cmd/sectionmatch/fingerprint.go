package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/calliope-press/sectionmatch/pkg/fingerprint"
)

func fingerprintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fingerprint",
		Short: "Build one mean fingerprint per section from historical embeddings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
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

			fps, err := fingerprint.Build(rows)
			if err != nil {
				return fmt.Errorf("failed to build fingerprints: %v", err)
			}

			if err := st.ReplaceFingerprints(fps); err != nil {
				return fmt.Errorf("failed to store fingerprints: %v", err)
			}

			color.Green("✓ Inserted %d section fingerprints into %s\n", len(fps), cfg.Database.FingerprintTable)
			return nil
		},
	}
}
