package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// JobMetadata is the durable record of a finished job, kept so results can
// be listed after the in-memory job store has been recycled by a restart.
type JobMetadata struct {
	JobID          string    `json:"job_id"`
	Status         string    `json:"status"`
	URLCount       int       `json:"url_count"`
	ProcessedCount int       `json:"processed_count"`
	Files          []string  `json:"files"`
	Error          string    `json:"error,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// MetadataDB records terminal job outcomes in SQLite.
type MetadataDB struct {
	db *sql.DB
}

// NewMetadataDB opens (creating if needed) the metadata database.
func NewMetadataDB(dbPath string) (*MetadataDB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS jobs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		job_id TEXT NOT NULL UNIQUE,
		status TEXT NOT NULL,
		url_count INTEGER NOT NULL,
		processed_count INTEGER NOT NULL,
		files TEXT NOT NULL,
		error TEXT,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs(created_at);
	`

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %v", err)
	}

	return &MetadataDB{db: db}, nil
}

// SaveJob persists one terminal job record. Files are stored as a JSON
// array in a single column.
func (mdb *MetadataDB) SaveJob(meta JobMetadata) error {
	filesJSON, err := json.Marshal(meta.Files)
	if err != nil {
		return fmt.Errorf("failed to marshal file list: %v", err)
	}
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now()
	}

	query := `
	INSERT INTO jobs (job_id, status, url_count, processed_count, files, error, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err = mdb.db.Exec(query, meta.JobID, meta.Status, meta.URLCount,
		meta.ProcessedCount, string(filesJSON), meta.Error, meta.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save job metadata: %v", err)
	}
	return nil
}

// GetJob retrieves one record by job ID.
func (mdb *MetadataDB) GetJob(jobID string) (*JobMetadata, error) {
	query := `
	SELECT job_id, status, url_count, processed_count, files, error, created_at
	FROM jobs WHERE job_id = ?
	`
	return scanJob(mdb.db.QueryRow(query, jobID))
}

// ListJobs returns the most recent terminal job records.
func (mdb *MetadataDB) ListJobs(limit int) ([]JobMetadata, error) {
	query := `
	SELECT job_id, status, url_count, processed_count, files, error, created_at
	FROM jobs ORDER BY created_at DESC LIMIT ?
	`
	rows, err := mdb.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %v", err)
	}
	defer rows.Close()

	var out []JobMetadata
	for rows.Next() {
		meta, err := scanJob(rows)
		if err != nil {
			continue
		}
		out = append(out, *meta)
	}
	return out, rows.Err()
}

// Close closes the database connection.
func (mdb *MetadataDB) Close() error {
	return mdb.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*JobMetadata, error) {
	var (
		meta      JobMetadata
		filesJSON string
		errText   sql.NullString
	)
	err := row.Scan(&meta.JobID, &meta.Status, &meta.URLCount,
		&meta.ProcessedCount, &filesJSON, &errText, &meta.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to read job metadata: %v", err)
	}
	if err := json.Unmarshal([]byte(filesJSON), &meta.Files); err != nil {
		meta.Files = nil
	}
	meta.Error = errText.String
	return &meta, nil
}
