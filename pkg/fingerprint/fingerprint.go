// Package fingerprint condenses labeled section embeddings into the
// centroid vectors that candidates are matched against.
package fingerprint

import (
	"fmt"
	"sort"
	"strings"

	"github.com/calliope-press/sectionmatch/internal/models"
)

// Group holds every embedding observed for one section, keyed by the
// upper-cased section name.
type Group struct {
	Section string
	Vectors [][]float32
}

// GroupBySection buckets rows by upper-cased section name and returns
// the groups in ascending name order. Rows without an embedding and rows
// labeled with the reserved candidate section are dropped. A section
// whose embeddings disagree on dimension is a data error.
func GroupBySection(rows []models.SectionEmbedding) ([]Group, error) {
	byName := make(map[string][][]float32)
	for _, row := range rows {
		section := strings.ToUpper(row.Section)
		if section == models.CandidateSection || len(row.Embedding) == 0 {
			continue
		}
		if prev := byName[section]; len(prev) > 0 && len(prev[0]) != len(row.Embedding) {
			return nil, fmt.Errorf("section %s mixes embedding dimensions %d and %d",
				section, len(prev[0]), len(row.Embedding))
		}
		byName[section] = append(byName[section], row.Embedding)
	}
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)
	groups := make([]Group, len(names))
	for i, name := range names {
		groups[i] = Group{Section: name, Vectors: byName[name]}
	}
	return groups, nil
}

// Mean returns the arithmetic mean of the vectors, accumulated in float64
// and stored back at float32 precision.
func Mean(vectors [][]float32) []float32 {
	if len(vectors) == 0 {
		return nil
	}
	acc := make([]float64, len(vectors[0]))
	for _, v := range vectors {
		for i, x := range v {
			acc[i] += float64(x)
		}
	}
	out := make([]float32, len(acc))
	n := float64(len(vectors))
	for i, sum := range acc {
		out[i] = float32(sum / n)
	}
	return out
}

// Build produces one mean fingerprint per section.
func Build(rows []models.SectionEmbedding) ([]models.Fingerprint, error) {
	groups, err := GroupBySection(rows)
	if err != nil {
		return nil, err
	}
	fps := make([]models.Fingerprint, len(groups))
	for i, g := range groups {
		fps[i] = models.Fingerprint{Section: g.Section, Embedding: Mean(g.Vectors)}
	}
	return fps, nil
}

// ClusterConfig controls the per-section k-means pass.
type ClusterConfig struct {
	Clusters      int
	Seed          int64
	MaxIterations int
}

// ClusterSection splits one section's embeddings into k centroid
// fingerprints with ids 0..k-1. A section with fewer samples than k falls
// back to a single mean fingerprint with cluster id 0. Runs with the same
// seed produce identical centroids.
func ClusterSection(g Group, config ClusterConfig) []models.ClusterFingerprint {
	k := config.Clusters
	if k < 1 {
		k = 1
	}
	if len(g.Vectors) < k {
		return []models.ClusterFingerprint{{Section: g.Section, ClusterID: 0, Embedding: Mean(g.Vectors)}}
	}
	centroids := kmeans(g.Vectors, k, config.Seed, config.MaxIterations)
	out := make([]models.ClusterFingerprint, len(centroids))
	for i, c := range centroids {
		out[i] = models.ClusterFingerprint{Section: g.Section, ClusterID: i, Embedding: c}
	}
	return out
}

// BuildClusters runs ClusterSection over every section group.
func BuildClusters(rows []models.SectionEmbedding, config ClusterConfig) ([]models.ClusterFingerprint, error) {
	groups, err := GroupBySection(rows)
	if err != nil {
		return nil, err
	}
	var out []models.ClusterFingerprint
	for _, g := range groups {
		out = append(out, ClusterSection(g, config)...)
	}
	return out, nil
}
