package models

// CandidateSection is the reserved section label for unmatched articles.
// Rows carrying it are candidates to be matched, never a matchable section.
const CandidateSection = "CANDIDATE"

type Article struct {
	ID        string
	URL       string
	Filename  string
	Content   string
	Section   string
	Embedding []float32
}

type SectionEmbedding struct {
	Section   string
	Embedding []float32
}

type Fingerprint struct {
	Section   string
	Embedding []float32
}

type ClusterFingerprint struct {
	Section   string
	ClusterID int
	Embedding []float32
}

type Match struct {
	CandidateID    string
	Section        string
	ClusterID      *int
	CosineDistance float64
	URL            string
	Filename       string
	Summary        string
}

type Summary struct {
	ID      string
	URL     string
	Section string
	Summary string
}
