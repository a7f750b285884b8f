// Package export writes ranked matches and candidate summaries to their
// JSON destinations, one file per section, replacing stale output so the
// directory always mirrors the latest run.
package export

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/calliope-press/sectionmatch/internal/models"
	"github.com/calliope-press/sectionmatch/pkg/matcher"
)

// Records converts scored matches into their persisted form: distances
// rounded to four decimals, content squeezed into a one-line preview
// capped at charLimit runes, and cluster ids carried only for clustered
// matches.
func Records(matches []matcher.Match, charLimit int) []models.Match {
	out := make([]models.Match, len(matches))
	for i, m := range matches {
		rec := models.Match{
			CandidateID:    m.Candidate.ID,
			Section:        m.Section,
			CosineDistance: round4(m.Distance),
			URL:            m.Candidate.URL,
			Filename:       m.Candidate.Filename,
			Summary:        Truncate(m.Candidate.Content, charLimit),
		}
		if m.ClusterID >= 0 {
			id := m.ClusterID
			rec.ClusterID = &id
		}
		out[i] = rec
	}
	return out
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// Truncate flattens content to one trimmed line capped at limit runes,
// appending an ellipsis whenever the content was non-empty. limit <= 0
// leaves the length uncapped.
func Truncate(content string, limit int) string {
	if content == "" {
		return ""
	}
	text := strings.ReplaceAll(strings.TrimSpace(content), "\n", " ")
	if limit > 0 {
		if runes := []rune(text); len(runes) > limit {
			text = string(runes[:limit])
		}
	}
	return text + "…"
}

// matchRecord is the wire shape of one exported match. ClusterID is
// omitted for single-fingerprint runs.
type matchRecord struct {
	CandidateID    string  `json:"candidate_id"`
	URL            string  `json:"url"`
	Filename       string  `json:"filename"`
	ClusterID      *int    `json:"cluster_id,omitempty"`
	CosineDistance float64 `json:"cosine_distance"`
	Summary        string  `json:"summary"`
}

// WrittenFile reports one emitted section file.
type WrittenFile struct {
	Path    string
	Section string
	Count   int
}

// WriteSectionFiles writes one <section>.json per section present in
// records, lower-cased, each array sorted by ascending distance. Stale
// .json files from earlier runs are removed first, so rerunning with the
// same matches reproduces the directory byte for byte.
func WriteSectionFiles(dir string, records []models.Match) ([]WrittenFile, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	if err := clearJSON(dir); err != nil {
		return nil, err
	}
	bySection := make(map[string][]models.Match)
	var sections []string
	for _, rec := range records {
		if _, ok := bySection[rec.Section]; !ok {
			sections = append(sections, rec.Section)
		}
		bySection[rec.Section] = append(bySection[rec.Section], rec)
	}
	sort.Strings(sections)
	written := make([]WrittenFile, 0, len(sections))
	for _, section := range sections {
		rows := bySection[section]
		sort.SliceStable(rows, func(i, j int) bool {
			return rows[i].CosineDistance < rows[j].CosineDistance
		})
		wire := make([]matchRecord, len(rows))
		for i, r := range rows {
			wire[i] = matchRecord{
				CandidateID:    r.CandidateID,
				URL:            r.URL,
				Filename:       r.Filename,
				ClusterID:      r.ClusterID,
				CosineDistance: r.CosineDistance,
				Summary:        r.Summary,
			}
		}
		path := filepath.Join(dir, strings.ToLower(section)+".json")
		if err := writeJSON(path, wire); err != nil {
			return nil, err
		}
		written = append(written, WrittenFile{Path: path, Section: section, Count: len(rows)})
	}
	return written, nil
}

// WriteSummaries writes the flat summary array produced by one
// summarization pass.
func WriteSummaries(path string, summaries []models.Summary) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	type summaryRecord struct {
		ID      string `json:"id"`
		URL     string `json:"url"`
		Section string `json:"section"`
		Summary string `json:"summary"`
	}
	records := make([]summaryRecord, len(summaries))
	for i, s := range summaries {
		records[i] = summaryRecord{ID: s.ID, URL: s.URL, Section: s.Section, Summary: s.Summary}
	}
	return writeJSON(path, records)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func clearJSON(dir string) error {
	stale, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return fmt.Errorf("scan %s: %w", dir, err)
	}
	for _, path := range stale {
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("remove stale %s: %w", path, err)
		}
	}
	return nil
}
