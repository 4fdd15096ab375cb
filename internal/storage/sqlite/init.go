package sqlite

import (
	"database/sql"

	// Import the SQLite driver.
	_ "github.com/mattn/go-sqlite3"
)

// InitDB opens the SQLite database at path and creates the retrievals table
// if it doesn't exist.
func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS retrievals (
		id INTEGER PRIMARY KEY,
		run_id TEXT,
		swarm_hash TEXT,
		file_path TEXT,
		bytes INTEGER DEFAULT 0,
		status TEXT DEFAULT 'failed',
		retrieved_at DATETIME
	)`)

	if err != nil {
		db.Close()

		return nil, err
	}

	return db, nil
}
