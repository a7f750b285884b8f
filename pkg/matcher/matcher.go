// Package matcher scores candidate articles against section fingerprints
// by cosine distance and applies the configured ranking policy.
package matcher

import (
	"sort"

	"github.com/calliope-press/sectionmatch/internal/models"
)

// RankMode selects which side of a match the per-group cap applies to.
type RankMode string

const (
	// RankPerCandidate keeps the top K sections for each candidate.
	RankPerCandidate RankMode = "candidate"
	// RankPerSection keeps the top K candidates for each section.
	RankPerSection RankMode = "section"
)

// NoCluster marks matches scored against whole-section fingerprints.
const NoCluster = -1

// Match is one scored candidate-to-section pairing before persistence.
type Match struct {
	Candidate models.Article
	Section   string
	ClusterID int
	Distance  float64
}

// Policy bounds which scored pairings survive ranking. Threshold <= 0
// keeps every distance, TopK <= 0 keeps every rank, and an empty Mode
// ranks per section. The two knobs are independent.
type Policy struct {
	Threshold float64
	TopK      int
	Mode      RankMode
}

// MatchSingle scores every candidate against every whole-section
// fingerprint. Candidates without embeddings are skipped. Results come
// back grouped by the ranked side in ascending key order, sorted by
// ascending distance within each group.
func MatchSingle(candidates []models.Article, fingerprints []models.Fingerprint, policy Policy) []Match {
	groups := newGroupSet(policy)
	for _, c := range candidates {
		if len(c.Embedding) == 0 {
			continue
		}
		for _, f := range fingerprints {
			if f.Section == models.CandidateSection || len(f.Embedding) != len(c.Embedding) {
				continue
			}
			groups.add(Match{
				Candidate: c,
				Section:   f.Section,
				ClusterID: NoCluster,
				Distance:  CosineDistance(c.Embedding, f.Embedding),
			})
		}
	}
	return groups.collect()
}

// MatchClustered scores candidates against per-cluster fingerprints. For
// each candidate only the closest cluster of a section survives, so a
// candidate never pairs with the same section twice. Ties between a
// section's clusters keep the earlier cluster.
func MatchClustered(candidates []models.Article, clusters []models.ClusterFingerprint, policy Policy) []Match {
	groups := newGroupSet(policy)
	for _, c := range candidates {
		if len(c.Embedding) == 0 {
			continue
		}
		best := make(map[string]Match)
		var order []string
		for _, cf := range clusters {
			if cf.Section == models.CandidateSection || len(cf.Embedding) != len(c.Embedding) {
				continue
			}
			d := CosineDistance(c.Embedding, cf.Embedding)
			cur, seen := best[cf.Section]
			if seen && d >= cur.Distance {
				continue
			}
			if !seen {
				order = append(order, cf.Section)
			}
			best[cf.Section] = Match{
				Candidate: c,
				Section:   cf.Section,
				ClusterID: cf.ClusterID,
				Distance:  d,
			}
		}
		for _, section := range order {
			groups.add(best[section])
		}
	}
	return groups.collect()
}

// groupSet buckets incoming matches under the policy's rank key and
// delegates per-group retention to a bounded topK.
type groupSet struct {
	policy Policy
	groups map[string]*topK
	keys   []string
}

func newGroupSet(policy Policy) *groupSet {
	return &groupSet{policy: policy, groups: make(map[string]*topK)}
}

func (g *groupSet) add(m Match) {
	if g.policy.Threshold > 0 && m.Distance > g.policy.Threshold {
		return
	}
	key := m.Section
	if g.policy.Mode == RankPerCandidate {
		key = m.Candidate.ID
	}
	tk, ok := g.groups[key]
	if !ok {
		tk = newTopK(g.policy.TopK)
		g.groups[key] = tk
		g.keys = append(g.keys, key)
	}
	tk.Add(m)
}

func (g *groupSet) collect() []Match {
	sort.Strings(g.keys)
	var out []Match
	for _, key := range g.keys {
		out = append(out, g.groups[key].Sorted()...)
	}
	return out
}
