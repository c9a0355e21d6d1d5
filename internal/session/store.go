package session

import (
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx" driver
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const maxPersistedSessions = 100

// SentenceEntry is one bilingual sentence persisted for a session.
type SentenceEntry struct {
	ID            string
	SessionID     string
	SegmentID     string
	SourceText    string
	TargetText    string
	Tier          string
	IsHighQuality bool
	CreatedAt     time.Time
}

// SummaryEntry is one summary persisted for a session.
type SummaryEntry struct {
	ID         string
	SessionID  string
	SourceText string
	TargetText string
	WordCount  int
	Threshold  int
	IsFinal    bool
	StartedAt  time.Time
	EndedAt    time.Time
}

// Descriptor is a session's metadata record.
type Descriptor struct {
	ID             string
	SourceLanguage string
	TargetLanguage string
	StartedAt      time.Time
	EndedAt        *time.Time
}

// Store persists session memory to PostgreSQL, the external session
// memory service that owns on-disk layout.
type Store struct {
	db *sql.DB
}

// Open connects to a PostgreSQL session-memory database at connStr and
// runs pending migrations.
func Open(connStr string) (*Store, error) {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("session store open: %w", err)
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("session store ping: %w", err)
	}
	if err = migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("session store migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`)
	if err != nil {
		return err
	}

	var current int
	row := db.QueryRow(`SELECT COALESCE(MAX(version), -1) FROM schema_version`)
	if err = row.Scan(&current); err != nil {
		return err
	}

	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	for i := current + 1; i < len(entries); i++ {
		data, readErr := migrationFS.ReadFile("migrations/" + entries[i].Name())
		if readErr != nil {
			return fmt.Errorf("read migration %d: %w", i, readErr)
		}
		if _, execErr := db.Exec(string(data)); execErr != nil {
			return fmt.Errorf("migration %d: %w", i, execErr)
		}
		if _, execErr := db.Exec(`INSERT INTO schema_version (version) VALUES ($1)`, i); execErr != nil {
			return fmt.Errorf("migration %d record: %w", i, execErr)
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateSession inserts a new session descriptor and prunes old sessions
// beyond maxPersistedSessions.
func (s *Store) CreateSession(d Descriptor) error {
	_, err := s.db.Exec(
		`INSERT INTO sessions (id, source_language, target_language, started_at) VALUES ($1, $2, $3, $4)`,
		d.ID, d.SourceLanguage, d.TargetLanguage, d.StartedAt.UTC(),
	)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`DELETE FROM sessions WHERE id NOT IN (SELECT id FROM sessions ORDER BY started_at DESC LIMIT $1)`,
		maxPersistedSessions,
	)
	return err
}

// EndSession sets the ended_at timestamp.
func (s *Store) EndSession(id string, endedAt time.Time) error {
	_, err := s.db.Exec(`UPDATE sessions SET ended_at = $1 WHERE id = $2`, endedAt.UTC(), id)
	return err
}

// InsertSentence appends one bilingual sentence entry.
func (s *Store) InsertSentence(e SentenceEntry) error {
	_, err := s.db.Exec(
		`INSERT INTO sentences (id, session_id, segment_id, source_text, target_text, tier, is_high_quality, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.SessionID, e.SegmentID, e.SourceText, e.TargetText, e.Tier, e.IsHighQuality, e.CreatedAt.UTC(),
	)
	return err
}

// InsertSummary appends one summary entry.
func (s *Store) InsertSummary(e SummaryEntry) error {
	_, err := s.db.Exec(
		`INSERT INTO summaries (id, session_id, source_text, target_text, word_count, threshold, is_final, started_at, ended_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.SessionID, e.SourceText, e.TargetText, e.WordCount, e.Threshold, e.IsFinal, e.StartedAt.UTC(), e.EndedAt.UTC(),
	)
	return err
}

// GetSentences returns a session's persisted bilingual entries, oldest first.
func (s *Store) GetSentences(sessionID string) ([]SentenceEntry, error) {
	rows, err := s.db.Query(
		`SELECT id, session_id, segment_id, source_text, target_text, tier, is_high_quality, created_at
		 FROM sentences WHERE session_id = $1 ORDER BY created_at ASC`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SentenceEntry
	for rows.Next() {
		var e SentenceEntry
		if err = rows.Scan(&e.ID, &e.SessionID, &e.SegmentID, &e.SourceText, &e.TargetText, &e.Tier, &e.IsHighQuality, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetSummaries returns a session's persisted summaries, oldest first.
func (s *Store) GetSummaries(sessionID string) ([]SummaryEntry, error) {
	rows, err := s.db.Query(
		`SELECT id, session_id, source_text, target_text, word_count, threshold, is_final, started_at, ended_at
		 FROM summaries WHERE session_id = $1 ORDER BY started_at ASC`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SummaryEntry
	for rows.Next() {
		var e SummaryEntry
		if err = rows.Scan(&e.ID, &e.SessionID, &e.SourceText, &e.TargetText, &e.WordCount, &e.Threshold, &e.IsFinal, &e.StartedAt, &e.EndedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
