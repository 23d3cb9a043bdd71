// Package db persists evaluation records to SQLite as an optional second
// sink next to the text output.
package db

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"streamvb/stream"
)

// RecordStore appends evaluation records to a SQLite database. Rows are
// only ever inserted, mirroring the append-only text sink.
type RecordStore struct {
	db  *sql.DB
	run string
}

// OpenRecordStore opens (creating if needed) the database at path. The run
// label distinguishes multiple harness runs sharing one database.
func OpenRecordStore(path, run string) (*RecordStore, error) {
	database, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	query := `
    CREATE TABLE IF NOT EXISTS evaluation_records (
        id INTEGER PRIMARY KEY,
        run VARCHAR(64),
        epoch INTEGER,
        score REAL,
        test_instances INTEGER,
        source_file VARCHAR(255),
        created_at DATETIME
    );
    CREATE TABLE IF NOT EXISTS run_summaries (
        id INTEGER PRIMARY KEY,
        run VARCHAR(64),
        total_log REAL,
        created_at DATETIME
    );`
	if _, err := database.Exec(query); err != nil {
		database.Close()
		return nil, err
	}
	return &RecordStore{db: database, run: run}, nil
}

func (s *RecordStore) Append(rec stream.EvaluationRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO evaluation_records (run, epoch, score, test_instances, source_file, created_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		s.run, rec.Epoch, rec.Score, rec.TestInstances, rec.SourceFile, time.Now(),
	)
	return err
}

func (s *RecordStore) Summary(totalLog float64) error {
	_, err := s.db.Exec(
		`INSERT INTO run_summaries (run, total_log, created_at) VALUES (?, ?, ?)`,
		s.run, totalLog, time.Now(),
	)
	return err
}

// Records returns the stored records of this run in epoch order.
func (s *RecordStore) Records() ([]stream.EvaluationRecord, error) {
	rows, err := s.db.Query(
		`SELECT epoch, score, test_instances, source_file
         FROM evaluation_records WHERE run = ? ORDER BY epoch`, s.run)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []stream.EvaluationRecord
	for rows.Next() {
		var rec stream.EvaluationRecord
		if err := rows.Scan(&rec.Epoch, &rec.Score, &rec.TestInstances, &rec.SourceFile); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *RecordStore) Close() error {
	return s.db.Close()
}
