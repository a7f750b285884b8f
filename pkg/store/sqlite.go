package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/calliope-press/sectionmatch/internal/models"
	"github.com/calliope-press/sectionmatch/pkg/matcher"
)

// sqliteStore is the embedded, file-backed backend. SQLite has no vector
// type, so embeddings live as packed float32 blobs and distance math runs
// in process through the matcher.
type sqliteStore struct {
	config Config
	db     *sql.DB
}

func newSQLiteStore(config Config) (*sqliteStore, error) {
	if dir := filepath.Dir(config.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %v", err)
		}
	}

	db, err := sql.Open("sqlite", config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %v", config.Path, err)
	}

	ss := &sqliteStore{config: config, db: db}

	if err := ss.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	return ss, nil
}

func (ss *sqliteStore) initialize() error {
	schema := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			url TEXT,
			filename TEXT,
			content TEXT,
			section TEXT NOT NULL,
			embedding BLOB
		);
		CREATE INDEX IF NOT EXISTS %s_section_idx ON %s (section);`,
		ss.config.EmbeddingsTable, ss.config.EmbeddingsTable, ss.config.EmbeddingsTable)

	if _, err := ss.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create embeddings table: %v", err)
	}

	return nil
}

func (ss *sqliteStore) InsertArticles(articles []models.Article) error {
	tx, err := ss.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, url, filename, content, section, embedding)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			url = excluded.url,
			filename = excluded.filename,
			content = excluded.content,
			section = excluded.section,
			embedding = excluded.embedding`,
		ss.config.EmbeddingsTable)

	for _, a := range articles {
		_, err := tx.Exec(stmt,
			a.ID,
			a.URL,
			a.Filename,
			sanitizeUTF8(a.Content),
			a.Section,
			vecToBlob(a.Embedding),
		)
		if err != nil {
			return fmt.Errorf("failed to insert article %s: %v", a.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %v", err)
	}

	return nil
}

func (ss *sqliteStore) SectionEmbeddings() ([]models.SectionEmbedding, error) {
	query := fmt.Sprintf(`
		SELECT section, embedding
		FROM %s
		WHERE section != ? AND embedding IS NOT NULL
		ORDER BY id`, ss.config.EmbeddingsTable)

	rows, err := ss.db.Query(query, models.CandidateSection)
	if err != nil {
		return nil, fmt.Errorf("failed to query section embeddings: %v", err)
	}
	defer rows.Close()

	var out []models.SectionEmbedding
	for rows.Next() {
		var section string
		var blob []byte
		if err := rows.Scan(&section, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan row: %v", err)
		}
		vec, err := blobToVec(blob)
		if err != nil {
			return nil, fmt.Errorf("failed to decode embedding for section %s: %v", section, err)
		}
		out = append(out, models.SectionEmbedding{Section: section, Embedding: vec})
	}

	return out, rows.Err()
}

func (ss *sqliteStore) Candidates() ([]models.Article, error) {
	query := fmt.Sprintf(`
		SELECT id, COALESCE(url, ''), COALESCE(filename, ''), COALESCE(content, ''), section, embedding
		FROM %s
		WHERE section = ?
		ORDER BY id`, ss.config.EmbeddingsTable)

	rows, err := ss.db.Query(query, models.CandidateSection)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates: %v", err)
	}
	defer rows.Close()

	var out []models.Article
	for rows.Next() {
		var a models.Article
		var blob []byte
		if err := rows.Scan(&a.ID, &a.URL, &a.Filename, &a.Content, &a.Section, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan row: %v", err)
		}
		vec, err := blobToVec(blob)
		if err != nil {
			return nil, fmt.Errorf("failed to decode embedding for candidate %s: %v", a.ID, err)
		}
		a.Embedding = vec
		out = append(out, a)
	}

	return out, rows.Err()
}

func (ss *sqliteStore) CandidateByID(id string) (*models.Article, error) {
	query := fmt.Sprintf(`
		SELECT id, COALESCE(url, ''), COALESCE(filename, ''), COALESCE(content, ''), section
		FROM %s
		WHERE id = ?`, ss.config.EmbeddingsTable)

	var a models.Article
	err := ss.db.QueryRow(query, id).Scan(&a.ID, &a.URL, &a.Filename, &a.Content, &a.Section)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query candidate %s: %v", id, err)
	}

	return &a, nil
}

func (ss *sqliteStore) ReplaceFingerprints(fps []models.Fingerprint) error {
	tx, err := ss.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	drop := fmt.Sprintf("DROP TABLE IF EXISTS %s", ss.config.FingerprintTable)
	if _, err := tx.Exec(drop); err != nil {
		return fmt.Errorf("failed to drop fingerprint table: %v", err)
	}

	create := fmt.Sprintf(`
		CREATE TABLE %s (
			section TEXT PRIMARY KEY,
			embedding BLOB NOT NULL
		)`, ss.config.FingerprintTable)
	if _, err := tx.Exec(create); err != nil {
		return fmt.Errorf("failed to create fingerprint table: %v", err)
	}

	stmt := fmt.Sprintf("INSERT INTO %s (section, embedding) VALUES (?, ?)", ss.config.FingerprintTable)
	for _, fp := range fps {
		if _, err := tx.Exec(stmt, fp.Section, vecToBlob(fp.Embedding)); err != nil {
			return fmt.Errorf("failed to insert fingerprint for %s: %v", fp.Section, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %v", err)
	}

	return nil
}

func (ss *sqliteStore) Fingerprints() ([]models.Fingerprint, error) {
	query := fmt.Sprintf("SELECT section, embedding FROM %s ORDER BY section", ss.config.FingerprintTable)

	rows, err := ss.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query fingerprints: %v", err)
	}
	defer rows.Close()

	var out []models.Fingerprint
	for rows.Next() {
		var fp models.Fingerprint
		var blob []byte
		if err := rows.Scan(&fp.Section, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan row: %v", err)
		}
		vec, err := blobToVec(blob)
		if err != nil {
			return nil, fmt.Errorf("failed to decode fingerprint for %s: %v", fp.Section, err)
		}
		fp.Embedding = vec
		out = append(out, fp)
	}

	return out, rows.Err()
}

func (ss *sqliteStore) ReplaceClusterFingerprints(cfps []models.ClusterFingerprint) error {
	tx, err := ss.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	drop := fmt.Sprintf("DROP TABLE IF EXISTS %s", ss.config.ClusterFingerprintTable)
	if _, err := tx.Exec(drop); err != nil {
		return fmt.Errorf("failed to drop cluster fingerprint table: %v", err)
	}

	create := fmt.Sprintf(`
		CREATE TABLE %s (
			section TEXT NOT NULL,
			cluster_id INTEGER NOT NULL,
			embedding BLOB NOT NULL,
			PRIMARY KEY (section, cluster_id)
		)`, ss.config.ClusterFingerprintTable)
	if _, err := tx.Exec(create); err != nil {
		return fmt.Errorf("failed to create cluster fingerprint table: %v", err)
	}

	stmt := fmt.Sprintf(
		"INSERT INTO %s (section, cluster_id, embedding) VALUES (?, ?, ?)",
		ss.config.ClusterFingerprintTable)
	for _, cfp := range cfps {
		if _, err := tx.Exec(stmt, cfp.Section, cfp.ClusterID, vecToBlob(cfp.Embedding)); err != nil {
			return fmt.Errorf("failed to insert cluster fingerprint for %s/%d: %v", cfp.Section, cfp.ClusterID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %v", err)
	}

	return nil
}

func (ss *sqliteStore) ClusterFingerprints() ([]models.ClusterFingerprint, error) {
	query := fmt.Sprintf(
		"SELECT section, cluster_id, embedding FROM %s ORDER BY section, cluster_id",
		ss.config.ClusterFingerprintTable)

	rows, err := ss.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query cluster fingerprints: %v", err)
	}
	defer rows.Close()

	var out []models.ClusterFingerprint
	for rows.Next() {
		var cfp models.ClusterFingerprint
		var blob []byte
		if err := rows.Scan(&cfp.Section, &cfp.ClusterID, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan row: %v", err)
		}
		vec, err := blobToVec(blob)
		if err != nil {
			return nil, fmt.Errorf("failed to decode cluster fingerprint for %s/%d: %v", cfp.Section, cfp.ClusterID, err)
		}
		cfp.Embedding = vec
		out = append(out, cfp)
	}

	return out, rows.Err()
}

// RankedMatches loads candidates and fingerprints and ranks in process.
// Candidates and fingerprints arrive ordered by id and section, so tied
// distances resolve the same way the postgres backend resolves them.
func (ss *sqliteStore) RankedMatches(policy matcher.Policy) ([]matcher.Match, error) {
	candidates, err := ss.Candidates()
	if err != nil {
		return nil, err
	}
	fps, err := ss.Fingerprints()
	if err != nil {
		return nil, err
	}
	return matcher.MatchSingle(candidates, fps, policy), nil
}

func (ss *sqliteStore) RankedClusterMatches(policy matcher.Policy) ([]matcher.Match, error) {
	candidates, err := ss.Candidates()
	if err != nil {
		return nil, err
	}
	cfps, err := ss.ClusterFingerprints()
	if err != nil {
		return nil, err
	}
	return matcher.MatchClustered(candidates, cfps, policy), nil
}

func (ss *sqliteStore) ReplaceMatches(matches []models.Match) error {
	tx, err := ss.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	drop := fmt.Sprintf("DROP TABLE IF EXISTS %s", ss.config.MatchTable)
	if _, err := tx.Exec(drop); err != nil {
		return fmt.Errorf("failed to drop match table: %v", err)
	}

	create := fmt.Sprintf(`
		CREATE TABLE %s (
			candidate_id TEXT NOT NULL,
			section TEXT NOT NULL,
			cosine_distance REAL NOT NULL,
			url TEXT,
			filename TEXT,
			summary TEXT
		)`, ss.config.MatchTable)
	if _, err := tx.Exec(create); err != nil {
		return fmt.Errorf("failed to create match table: %v", err)
	}

	stmt := fmt.Sprintf(`
		INSERT INTO %s (candidate_id, section, cosine_distance, url, filename, summary)
		VALUES (?, ?, ?, ?, ?, ?)`, ss.config.MatchTable)
	for _, m := range matches {
		if _, err := tx.Exec(stmt, m.CandidateID, m.Section, m.CosineDistance, m.URL, m.Filename, m.Summary); err != nil {
			return fmt.Errorf("failed to insert match for %s: %v", m.CandidateID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %v", err)
	}

	return nil
}

func (ss *sqliteStore) ReplaceClusterMatches(matches []models.Match) error {
	tx, err := ss.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	drop := fmt.Sprintf("DROP TABLE IF EXISTS %s", ss.config.ClusterMatchTable)
	if _, err := tx.Exec(drop); err != nil {
		return fmt.Errorf("failed to drop cluster match table: %v", err)
	}

	create := fmt.Sprintf(`
		CREATE TABLE %s (
			candidate_id TEXT NOT NULL,
			section TEXT NOT NULL,
			cluster_id INTEGER NOT NULL,
			cosine_distance REAL NOT NULL,
			url TEXT,
			filename TEXT,
			summary TEXT
		)`, ss.config.ClusterMatchTable)
	if _, err := tx.Exec(create); err != nil {
		return fmt.Errorf("failed to create cluster match table: %v", err)
	}

	stmt := fmt.Sprintf(`
		INSERT INTO %s (candidate_id, section, cluster_id, cosine_distance, url, filename, summary)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, ss.config.ClusterMatchTable)
	for _, m := range matches {
		if _, err := tx.Exec(stmt, m.CandidateID, m.Section, m.ClusterID, m.CosineDistance, m.URL, m.Filename, m.Summary); err != nil {
			return fmt.Errorf("failed to insert cluster match for %s: %v", m.CandidateID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %v", err)
	}

	return nil
}

func (ss *sqliteStore) Close() {
	if ss.db != nil {
		ss.db.Close()
	}
}
