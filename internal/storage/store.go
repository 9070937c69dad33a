package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/jainabhishek/AbhiScript/internal/domain"
)

const schema = `
PRAGMA busy_timeout = 10000;
PRAGMA journal_mode = WAL;
PRAGMA synchronous  = NORMAL;
PRAGMA foreign_keys = ON;

CREATE TABLE IF NOT EXISTS recordings (
	id                TEXT PRIMARY KEY,
	user_id           TEXT,
	filename          TEXT NOT NULL,
	original_filename TEXT NOT NULL,
	size_bytes        INTEGER NOT NULL DEFAULT 0,
	duration          REAL,
	storage_path      TEXT NOT NULL,
	content_hash      TEXT,
	status            TEXT NOT NULL,
	created_at        INTEGER NOT NULL,
	updated_at        INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS transcripts (
	id                TEXT PRIMARY KEY,
	recording_id      TEXT NOT NULL UNIQUE REFERENCES recordings(id) ON DELETE CASCADE,
	content           TEXT NOT NULL,
	raw_text          TEXT NOT NULL,
	speaker_count     INTEGER NOT NULL DEFAULT 1,
	confidence        REAL,
	language          TEXT,
	speaker_names     TEXT,
	speakers_resolved INTEGER NOT NULL DEFAULT 0,
	created_at        INTEGER NOT NULL,
	updated_at        INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS ai_insights (
	id           TEXT PRIMARY KEY,
	recording_id TEXT NOT NULL REFERENCES recordings(id) ON DELETE CASCADE,
	insight_type TEXT NOT NULL,
	content      TEXT NOT NULL,
	created_at   INTEGER NOT NULL,
	UNIQUE(recording_id, insight_type)
);
`

// Store persists recordings, transcripts and insights in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the database at dbPath and applies the schema.
func NewStore(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." && !strings.HasPrefix(dbPath, ":memory:") {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Single connection: SQLite allows one writer, and pragmas (and :memory:
	// databases) are per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) CreateRecording(ctx context.Context, rec domain.Recording) (domain.Recording, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Status == "" {
		rec.Status = domain.StatusUploading
	}
	now := time.Now().Unix()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO recordings (id, user_id, filename, original_filename, size_bytes,
			duration, storage_path, content_hash, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, nullString(rec.UserID), rec.Filename, rec.OriginalFilename, rec.SizeBytes,
		nullFloat(rec.Duration), rec.StoragePath, nullString(rec.ContentHash), rec.Status,
		rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return domain.Recording{}, wrapWriteError("insert recording", err)
	}

	return rec, nil
}

func (s *Store) GetRecording(ctx context.Context, id string) (domain.Recording, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, filename, original_filename, size_bytes, duration,
			storage_path, content_hash, status, created_at, updated_at
		FROM recordings WHERE id = ?`, id)

	rec, err := scanRecording(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Recording{}, fmt.Errorf("%w: recording %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return domain.Recording{}, fmt.Errorf("%w: get recording: %v", domain.ErrPersistence, err)
	}
	return rec, nil
}

func (s *Store) ListRecordings(ctx context.Context) ([]domain.Recording, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, filename, original_filename, size_bytes, duration,
			storage_path, content_hash, status, created_at, updated_at
		FROM recordings ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("%w: list recordings: %v", domain.ErrPersistence, err)
	}
	defer rows.Close()

	recordings := make([]domain.Recording, 0)
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan recording: %v", domain.ErrPersistence, err)
		}
		recordings = append(recordings, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list recordings: %v", domain.ErrPersistence, err)
	}
	return recordings, nil
}

func (s *Store) UpdateRecordingStatus(ctx context.Context, id, status string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE recordings SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("%w: update recording status: %v", domain.ErrPersistence, err)
	}
	return requireRow(res, "recording "+id)
}

func (s *Store) UpdateRecordingDuration(ctx context.Context, id string, seconds float64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE recordings SET duration = ?, updated_at = ? WHERE id = ?`,
		seconds, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("%w: update recording duration: %v", domain.ErrPersistence, err)
	}
	return requireRow(res, "recording "+id)
}

// DeleteRecording removes a recording; its transcript and insights cascade.
func (s *Store) DeleteRecording(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM recordings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%w: delete recording: %v", domain.ErrPersistence, err)
	}
	return requireRow(res, "recording "+id)
}

// CreateTranscript inserts the transcript row. A second transcript for the
// same recording violates the UNIQUE constraint and surfaces as ErrConflict.
func (s *Store) CreateTranscript(ctx context.Context, t domain.Transcript) (domain.Transcript, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().Unix()
	t.CreatedAt = now
	t.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transcripts (id, recording_id, content, raw_text, speaker_count,
			confidence, language, speaker_names, speakers_resolved, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.RecordingID, t.Content, t.RawText, t.SpeakerCount,
		nullFloat(t.Confidence), nullString(t.Language), nullString(t.SpeakerNames),
		boolToInt(t.SpeakersResolved), t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return domain.Transcript{}, wrapWriteError("insert transcript", err)
	}

	return t, nil
}

func (s *Store) GetTranscriptByRecording(ctx context.Context, recordingID string) (domain.Transcript, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, recording_id, content, raw_text, speaker_count, confidence,
			language, speaker_names, speakers_resolved, created_at, updated_at
		FROM transcripts WHERE recording_id = ?`, recordingID)

	t, err := scanTranscript(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Transcript{}, fmt.Errorf("%w: transcript for recording %s", domain.ErrNotFound, recordingID)
	}
	if err != nil {
		return domain.Transcript{}, fmt.Errorf("%w: get transcript: %v", domain.ErrPersistence, err)
	}
	return t, nil
}

func (s *Store) ListTranscripts(ctx context.Context) ([]domain.Transcript, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, recording_id, content, raw_text, speaker_count, confidence,
			language, speaker_names, speakers_resolved, created_at, updated_at
		FROM transcripts ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("%w: list transcripts: %v", domain.ErrPersistence, err)
	}
	defer rows.Close()

	transcripts := make([]domain.Transcript, 0)
	for rows.Next() {
		t, err := scanTranscript(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan transcript: %v", domain.ErrPersistence, err)
		}
		transcripts = append(transcripts, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list transcripts: %v", domain.ErrPersistence, err)
	}
	return transcripts, nil
}

// UpdateSpeakerNames overwrites the stored mapping; a later identical call is
// a no-op at the data level, last write wins.
func (s *Store) UpdateSpeakerNames(ctx context.Context, recordingID string, names string, resolved bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE transcripts SET speaker_names = ?, speakers_resolved = ?, updated_at = ?
		WHERE recording_id = ?`,
		names, boolToInt(resolved), time.Now().Unix(), recordingID)
	if err != nil {
		return fmt.Errorf("%w: update speaker names: %v", domain.ErrPersistence, err)
	}
	return requireRow(res, "transcript for recording "+recordingID)
}

func (s *Store) DeleteTranscriptByRecording(ctx context.Context, recordingID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM transcripts WHERE recording_id = ?`, recordingID)
	if err != nil {
		return fmt.Errorf("%w: delete transcript: %v", domain.ErrPersistence, err)
	}
	return requireRow(res, "transcript for recording "+recordingID)
}

// UpsertInsight stores analysis content keyed by recording and insight type.
func (s *Store) UpsertInsight(ctx context.Context, insight domain.AiInsight) (domain.AiInsight, error) {
	if insight.ID == "" {
		insight.ID = uuid.NewString()
	}
	insight.CreatedAt = time.Now().Unix()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ai_insights (id, recording_id, insight_type, content, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(recording_id, insight_type) DO UPDATE SET content = excluded.content`,
		insight.ID, insight.RecordingID, insight.InsightType, insight.Content, insight.CreatedAt)
	if err != nil {
		return domain.AiInsight{}, wrapWriteError("upsert insight", err)
	}
	return insight, nil
}

func (s *Store) GetInsight(ctx context.Context, recordingID, insightType string) (domain.AiInsight, error) {
	var insight domain.AiInsight
	err := s.db.QueryRowContext(ctx, `
		SELECT id, recording_id, insight_type, content, created_at
		FROM ai_insights WHERE recording_id = ? AND insight_type = ?`,
		recordingID, insightType).
		Scan(&insight.ID, &insight.RecordingID, &insight.InsightType, &insight.Content, &insight.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.AiInsight{}, fmt.Errorf("%w: insight %s for recording %s", domain.ErrNotFound, insightType, recordingID)
	}
	if err != nil {
		return domain.AiInsight{}, fmt.Errorf("%w: get insight: %v", domain.ErrPersistence, err)
	}
	return insight, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecording(row scanner) (domain.Recording, error) {
	var (
		rec         domain.Recording
		userID      sql.NullString
		duration    sql.NullFloat64
		contentHash sql.NullString
	)
	err := row.Scan(&rec.ID, &userID, &rec.Filename, &rec.OriginalFilename, &rec.SizeBytes,
		&duration, &rec.StoragePath, &contentHash, &rec.Status, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return domain.Recording{}, err
	}

	rec.UserID = userID.String
	rec.ContentHash = contentHash.String
	if duration.Valid {
		rec.Duration = &duration.Float64
	}
	return rec, nil
}

func scanTranscript(row scanner) (domain.Transcript, error) {
	var (
		t            domain.Transcript
		confidence   sql.NullFloat64
		language     sql.NullString
		speakerNames sql.NullString
		resolved     int
	)
	err := row.Scan(&t.ID, &t.RecordingID, &t.Content, &t.RawText, &t.SpeakerCount,
		&confidence, &language, &speakerNames, &resolved, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return domain.Transcript{}, err
	}

	t.Language = language.String
	t.SpeakerNames = speakerNames.String
	t.SpeakersResolved = resolved == 1
	if confidence.Valid {
		t.Confidence = &confidence.Float64
	}
	return t, nil
}

func wrapWriteError(op string, err error) error {
	var serr *sqlite.Error
	if errors.As(err, &serr) {
		switch serr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%w: %s: %v", domain.ErrConflict, op, err)
		}
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrPersistence, op, err)
}

func requireRow(res sql.Result, what string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected: %v", domain.ErrPersistence, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, what)
	}
	return nil
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}

func nullFloat(value *float64) sql.NullFloat64 {
	if value == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *value, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
