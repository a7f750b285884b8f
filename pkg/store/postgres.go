package store

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/calliope-press/sectionmatch/internal/models"
	"github.com/calliope-press/sectionmatch/pkg/matcher"
)

type postgresStore struct {
	config Config
	pool   *pgxpool.Pool
}

func newPostgresStore(config Config) (*postgresStore, error) {
	pool, err := pgxpool.New(context.Background(), config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}

	ps := &postgresStore{config: config, pool: pool}

	if err := ps.initialize(); err != nil {
		pool.Close()
		return nil, err
	}

	return ps, nil
}

func (ps *postgresStore) initialize() error {
	ctx := context.Background()

	// Enable pgvector extension
	_, err := ps.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("failed to create vector extension: %v", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			url TEXT,
			filename TEXT,
			content TEXT,
			section TEXT NOT NULL,
			embedding vector(%d)
		)`, ps.config.EmbeddingsTable, ps.config.VectorDim)

	_, err = ps.pool.Exec(ctx, createTable)
	if err != nil {
		return fmt.Errorf("failed to create embeddings table: %v", err)
	}

	createIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_embedding_idx
		ON %s
		USING ivfflat (embedding vector_cosine_ops)
		WITH (lists = 100)`,
		ps.config.EmbeddingsTable, ps.config.EmbeddingsTable)

	_, err = ps.pool.Exec(ctx, createIndex)
	if err != nil {
		return fmt.Errorf("failed to create embedding index: %v", err)
	}

	createSectionIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_section_idx
		ON %s (section)`,
		ps.config.EmbeddingsTable, ps.config.EmbeddingsTable)

	_, err = ps.pool.Exec(ctx, createSectionIndex)
	if err != nil {
		return fmt.Errorf("failed to create section index: %v", err)
	}

	return nil
}

func (ps *postgresStore) InsertArticles(articles []models.Article) error {
	ctx := context.Background()

	tx, err := ps.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, url, filename, content, section, embedding)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			url = EXCLUDED.url,
			filename = EXCLUDED.filename,
			content = EXCLUDED.content,
			section = EXCLUDED.section,
			embedding = EXCLUDED.embedding`,
		ps.config.EmbeddingsTable)

	for _, a := range articles {
		_, err := tx.Exec(ctx, stmt,
			a.ID,
			a.URL,
			a.Filename,
			sanitizeUTF8(a.Content),
			a.Section,
			nullableVector(a.Embedding),
		)
		if err != nil {
			return fmt.Errorf("failed to insert article %s: %v", a.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %v", err)
	}

	return nil
}

func (ps *postgresStore) SectionEmbeddings() ([]models.SectionEmbedding, error) {
	ctx := context.Background()

	query := fmt.Sprintf(`
		SELECT section, embedding
		FROM %s
		WHERE section != $1 AND embedding IS NOT NULL
		ORDER BY id`, ps.config.EmbeddingsTable)

	rows, err := ps.pool.Query(ctx, query, models.CandidateSection)
	if err != nil {
		return nil, fmt.Errorf("failed to query section embeddings: %v", err)
	}
	defer rows.Close()

	var out []models.SectionEmbedding
	for rows.Next() {
		var section string
		var vec pgvector.Vector
		if err := rows.Scan(&section, &vec); err != nil {
			return nil, fmt.Errorf("failed to scan row: %v", err)
		}
		out = append(out, models.SectionEmbedding{Section: section, Embedding: vec.Slice()})
	}

	return out, rows.Err()
}

func (ps *postgresStore) Candidates() ([]models.Article, error) {
	ctx := context.Background()

	query := fmt.Sprintf(`
		SELECT id, COALESCE(url, ''), COALESCE(filename, ''), COALESCE(content, ''), section, embedding
		FROM %s
		WHERE section = $1
		ORDER BY id`, ps.config.EmbeddingsTable)

	rows, err := ps.pool.Query(ctx, query, models.CandidateSection)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates: %v", err)
	}
	defer rows.Close()

	var out []models.Article
	for rows.Next() {
		var a models.Article
		var vec *pgvector.Vector
		if err := rows.Scan(&a.ID, &a.URL, &a.Filename, &a.Content, &a.Section, &vec); err != nil {
			return nil, fmt.Errorf("failed to scan row: %v", err)
		}
		if vec != nil {
			a.Embedding = vec.Slice()
		}
		out = append(out, a)
	}

	return out, rows.Err()
}

func (ps *postgresStore) CandidateByID(id string) (*models.Article, error) {
	ctx := context.Background()

	query := fmt.Sprintf(`
		SELECT id, COALESCE(url, ''), COALESCE(filename, ''), COALESCE(content, ''), section
		FROM %s
		WHERE id = $1`, ps.config.EmbeddingsTable)

	var a models.Article
	err := ps.pool.QueryRow(ctx, query, id).Scan(&a.ID, &a.URL, &a.Filename, &a.Content, &a.Section)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query candidate %s: %v", id, err)
	}

	return &a, nil
}

func (ps *postgresStore) ReplaceFingerprints(fps []models.Fingerprint) error {
	ctx := context.Background()

	tx, err := ps.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	drop := fmt.Sprintf("DROP TABLE IF EXISTS %s", ps.config.FingerprintTable)
	if _, err := tx.Exec(ctx, drop); err != nil {
		return fmt.Errorf("failed to drop fingerprint table: %v", err)
	}

	create := fmt.Sprintf(`
		CREATE TABLE %s (
			section TEXT PRIMARY KEY,
			embedding vector(%d) NOT NULL
		)`, ps.config.FingerprintTable, ps.config.VectorDim)
	if _, err := tx.Exec(ctx, create); err != nil {
		return fmt.Errorf("failed to create fingerprint table: %v", err)
	}

	stmt := fmt.Sprintf("INSERT INTO %s (section, embedding) VALUES ($1, $2)", ps.config.FingerprintTable)
	for _, fp := range fps {
		if _, err := tx.Exec(ctx, stmt, fp.Section, pgvector.NewVector(fp.Embedding)); err != nil {
			return fmt.Errorf("failed to insert fingerprint for %s: %v", fp.Section, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %v", err)
	}

	return nil
}

func (ps *postgresStore) Fingerprints() ([]models.Fingerprint, error) {
	ctx := context.Background()

	query := fmt.Sprintf("SELECT section, embedding FROM %s ORDER BY section", ps.config.FingerprintTable)

	rows, err := ps.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query fingerprints: %v", err)
	}
	defer rows.Close()

	var out []models.Fingerprint
	for rows.Next() {
		var fp models.Fingerprint
		var vec pgvector.Vector
		if err := rows.Scan(&fp.Section, &vec); err != nil {
			return nil, fmt.Errorf("failed to scan row: %v", err)
		}
		fp.Embedding = vec.Slice()
		out = append(out, fp)
	}

	return out, rows.Err()
}

func (ps *postgresStore) ReplaceClusterFingerprints(cfps []models.ClusterFingerprint) error {
	ctx := context.Background()

	tx, err := ps.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	drop := fmt.Sprintf("DROP TABLE IF EXISTS %s", ps.config.ClusterFingerprintTable)
	if _, err := tx.Exec(ctx, drop); err != nil {
		return fmt.Errorf("failed to drop cluster fingerprint table: %v", err)
	}

	create := fmt.Sprintf(`
		CREATE TABLE %s (
			section TEXT NOT NULL,
			cluster_id INTEGER NOT NULL,
			embedding vector(%d) NOT NULL,
			PRIMARY KEY (section, cluster_id)
		)`, ps.config.ClusterFingerprintTable, ps.config.VectorDim)
	if _, err := tx.Exec(ctx, create); err != nil {
		return fmt.Errorf("failed to create cluster fingerprint table: %v", err)
	}

	stmt := fmt.Sprintf(
		"INSERT INTO %s (section, cluster_id, embedding) VALUES ($1, $2, $3)",
		ps.config.ClusterFingerprintTable)
	for _, cfp := range cfps {
		if _, err := tx.Exec(ctx, stmt, cfp.Section, cfp.ClusterID, pgvector.NewVector(cfp.Embedding)); err != nil {
			return fmt.Errorf("failed to insert cluster fingerprint for %s/%d: %v", cfp.Section, cfp.ClusterID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %v", err)
	}

	return nil
}

func (ps *postgresStore) ClusterFingerprints() ([]models.ClusterFingerprint, error) {
	ctx := context.Background()

	query := fmt.Sprintf(
		"SELECT section, cluster_id, embedding FROM %s ORDER BY section, cluster_id",
		ps.config.ClusterFingerprintTable)

	rows, err := ps.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query cluster fingerprints: %v", err)
	}
	defer rows.Close()

	var out []models.ClusterFingerprint
	for rows.Next() {
		var cfp models.ClusterFingerprint
		var vec pgvector.Vector
		if err := rows.Scan(&cfp.Section, &cfp.ClusterID, &vec); err != nil {
			return nil, fmt.Errorf("failed to scan row: %v", err)
		}
		cfp.Embedding = vec.Slice()
		out = append(out, cfp)
	}

	return out, rows.Err()
}

// RankedMatches pushes scoring, thresholding, and ranking down into
// postgres. The threshold applies before ranks are assigned, so a capped
// group is filled by the nearest matches that survived the threshold.
func (ps *postgresStore) RankedMatches(policy matcher.Policy) ([]matcher.Match, error) {
	ctx := context.Background()

	partition, order := "s.section", "section"
	if policy.Mode == matcher.RankPerCandidate {
		partition, order = "c.id", "id"
	}

	query := fmt.Sprintf(`
		WITH scored AS (
			SELECT c.id,
				COALESCE(c.url, '') AS url,
				COALESCE(c.filename, '') AS filename,
				COALESCE(c.content, '') AS content,
				s.section,
				(c.embedding <=> s.embedding) AS cosine_distance,
				ROW_NUMBER() OVER (
					PARTITION BY %s
					ORDER BY (c.embedding <=> s.embedding), c.id, s.section
				) AS rnk
			FROM %s c, %s s
			WHERE c.section = $1
			  AND s.section != $1
			  AND c.embedding IS NOT NULL
			  AND ($2::float8 <= 0 OR (c.embedding <=> s.embedding) <= $2::float8)
		)
		SELECT id, url, filename, content, section, cosine_distance
		FROM scored
		WHERE ($3::int <= 0 OR rnk <= $3::int)
		ORDER BY %s, rnk`,
		partition, ps.config.EmbeddingsTable, ps.config.FingerprintTable, order)

	rows, err := ps.pool.Query(ctx, query, models.CandidateSection, policy.Threshold, policy.TopK)
	if err != nil {
		return nil, fmt.Errorf("failed to query ranked matches: %v", err)
	}
	defer rows.Close()

	var out []matcher.Match
	for rows.Next() {
		m := matcher.Match{ClusterID: matcher.NoCluster}
		if err := rows.Scan(&m.Candidate.ID, &m.Candidate.URL, &m.Candidate.Filename,
			&m.Candidate.Content, &m.Section, &m.Distance); err != nil {
			return nil, fmt.Errorf("failed to scan row: %v", err)
		}
		m.Candidate.Section = models.CandidateSection
		out = append(out, m)
	}

	return out, rows.Err()
}

// RankedClusterMatches collapses each candidate-section pair to the
// section's closest cluster before thresholding and ranking, so a
// candidate never matches the same section through two clusters.
func (ps *postgresStore) RankedClusterMatches(policy matcher.Policy) ([]matcher.Match, error) {
	ctx := context.Background()

	partition, order := "section", "section"
	if policy.Mode == matcher.RankPerCandidate {
		partition, order = "id", "id"
	}

	query := fmt.Sprintf(`
		WITH scored AS (
			SELECT c.id,
				COALESCE(c.url, '') AS url,
				COALESCE(c.filename, '') AS filename,
				COALESCE(c.content, '') AS content,
				s.section,
				s.cluster_id,
				(c.embedding <=> s.embedding) AS cosine_distance,
				ROW_NUMBER() OVER (
					PARTITION BY c.id, s.section
					ORDER BY (c.embedding <=> s.embedding), s.cluster_id
				) AS cluster_rnk
			FROM %s c, %s s
			WHERE c.section = $1
			  AND s.section != $1
			  AND c.embedding IS NOT NULL
		),
		best AS (
			SELECT id, url, filename, content, section, cluster_id, cosine_distance
			FROM scored
			WHERE cluster_rnk = 1
			  AND ($2::float8 <= 0 OR cosine_distance <= $2::float8)
		),
		ranked AS (
			SELECT *,
				ROW_NUMBER() OVER (
					PARTITION BY %s
					ORDER BY cosine_distance, id, section
				) AS rnk
			FROM best
		)
		SELECT id, url, filename, content, section, cluster_id, cosine_distance
		FROM ranked
		WHERE ($3::int <= 0 OR rnk <= $3::int)
		ORDER BY %s, rnk`,
		ps.config.EmbeddingsTable, ps.config.ClusterFingerprintTable, partition, order)

	rows, err := ps.pool.Query(ctx, query, models.CandidateSection, policy.Threshold, policy.TopK)
	if err != nil {
		return nil, fmt.Errorf("failed to query ranked cluster matches: %v", err)
	}
	defer rows.Close()

	var out []matcher.Match
	for rows.Next() {
		var m matcher.Match
		if err := rows.Scan(&m.Candidate.ID, &m.Candidate.URL, &m.Candidate.Filename,
			&m.Candidate.Content, &m.Section, &m.ClusterID, &m.Distance); err != nil {
			return nil, fmt.Errorf("failed to scan row: %v", err)
		}
		m.Candidate.Section = models.CandidateSection
		out = append(out, m)
	}

	return out, rows.Err()
}

func (ps *postgresStore) ReplaceMatches(matches []models.Match) error {
	ctx := context.Background()

	tx, err := ps.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	drop := fmt.Sprintf("DROP TABLE IF EXISTS %s", ps.config.MatchTable)
	if _, err := tx.Exec(ctx, drop); err != nil {
		return fmt.Errorf("failed to drop match table: %v", err)
	}

	create := fmt.Sprintf(`
		CREATE TABLE %s (
			candidate_id TEXT NOT NULL,
			section TEXT NOT NULL,
			cosine_distance DOUBLE PRECISION NOT NULL,
			url TEXT,
			filename TEXT,
			summary TEXT
		)`, ps.config.MatchTable)
	if _, err := tx.Exec(ctx, create); err != nil {
		return fmt.Errorf("failed to create match table: %v", err)
	}

	stmt := fmt.Sprintf(`
		INSERT INTO %s (candidate_id, section, cosine_distance, url, filename, summary)
		VALUES ($1, $2, $3, $4, $5, $6)`, ps.config.MatchTable)
	for _, m := range matches {
		if _, err := tx.Exec(ctx, stmt, m.CandidateID, m.Section, m.CosineDistance, m.URL, m.Filename, m.Summary); err != nil {
			return fmt.Errorf("failed to insert match for %s: %v", m.CandidateID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %v", err)
	}

	return nil
}

func (ps *postgresStore) ReplaceClusterMatches(matches []models.Match) error {
	ctx := context.Background()

	tx, err := ps.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	drop := fmt.Sprintf("DROP TABLE IF EXISTS %s", ps.config.ClusterMatchTable)
	if _, err := tx.Exec(ctx, drop); err != nil {
		return fmt.Errorf("failed to drop cluster match table: %v", err)
	}

	create := fmt.Sprintf(`
		CREATE TABLE %s (
			candidate_id TEXT NOT NULL,
			section TEXT NOT NULL,
			cluster_id INTEGER NOT NULL,
			cosine_distance DOUBLE PRECISION NOT NULL,
			url TEXT,
			filename TEXT,
			summary TEXT
		)`, ps.config.ClusterMatchTable)
	if _, err := tx.Exec(ctx, create); err != nil {
		return fmt.Errorf("failed to create cluster match table: %v", err)
	}

	stmt := fmt.Sprintf(`
		INSERT INTO %s (candidate_id, section, cluster_id, cosine_distance, url, filename, summary)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`, ps.config.ClusterMatchTable)
	for _, m := range matches {
		if _, err := tx.Exec(ctx, stmt, m.CandidateID, m.Section, m.ClusterID, m.CosineDistance, m.URL, m.Filename, m.Summary); err != nil {
			return fmt.Errorf("failed to insert cluster match for %s: %v", m.CandidateID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %v", err)
	}

	return nil
}

func (ps *postgresStore) Close() {
	if ps.pool != nil {
		ps.pool.Close()
	}
}

func nullableVector(vec []float32) *pgvector.Vector {
	if len(vec) == 0 {
		return nil
	}
	v := pgvector.NewVector(vec)
	return &v
}

func sanitizeUTF8(s string) string {
	if !utf8.ValidString(s) {
		v := make([]rune, 0, len(s))
		for i, r := range s {
			if r == utf8.RuneError {
				_, size := utf8.DecodeRuneInString(s[i:])
				if size == 1 {
					continue
				}
			}
			v = append(v, r)
		}
		return string(v)
	}
	return s
}
