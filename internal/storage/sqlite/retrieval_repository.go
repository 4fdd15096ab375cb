package sqlite

import (
	"database/sql"
	"time"

	"github.com/darkobas2/util-beeget/internal/storage"
)

// RetrievalRepository is the SQLite-backed retrieval history.
type RetrievalRepository struct {
	db *sql.DB
}

func NewRetrievalRepository(db *sql.DB) *RetrievalRepository {
	return &RetrievalRepository{db: db}
}

// TrackRetrieval appends one record to the history.
func (r *RetrievalRepository) TrackRetrieval(record storage.RetrievalRecord) error {
	_, err := r.db.Exec(`
		INSERT INTO retrievals (run_id, swarm_hash, file_path, bytes, status, retrieved_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, record.RunID, record.SwarmHash, record.FilePath, record.Bytes, record.Status,
		record.RetrievedAt.UTC().Format(time.RFC3339))

	return err
}

// GetRetrievals returns all recorded retrievals, newest first.
func (r *RetrievalRepository) GetRetrievals() ([]storage.RetrievalRecord, error) {
	rows, err := r.db.Query(`
		SELECT run_id, swarm_hash, file_path, bytes, status, retrieved_at
		FROM retrievals ORDER BY retrieved_at DESC, id DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []storage.RetrievalRecord

	for rows.Next() {
		var record storage.RetrievalRecord

		var retrievedAt string

		if err := rows.Scan(&record.RunID, &record.SwarmHash, &record.FilePath,
			&record.Bytes, &record.Status, &retrievedAt); err != nil {
			return nil, err
		}

		if ts, err := time.Parse(time.RFC3339, retrievedAt); err == nil {
			record.RetrievedAt = ts
		}

		records = append(records, record)
	}

	return records, rows.Err()
}
