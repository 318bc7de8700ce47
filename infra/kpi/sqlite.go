package kpi

import (
	"database/sql"
	"time"

	core "github.com/openlot/parkd/core/metrics/usage"
	_ "modernc.org/sqlite"
)

// SQLiteStore persists KPI records in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	schema := `CREATE TABLE IF NOT EXISTS section_kpi (
        section TEXT,
        day INTEGER,
        allocations INTEGER,
        rejections INTEGER,
        score_sum REAL,
        PRIMARY KEY(section, day)
    );`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Add inserts or updates the KPI record.
func (s *SQLiteStore) Add(r core.Record) error {
	d := core.Day(r.Date)
	_, err := s.db.Exec(`INSERT INTO section_kpi (section, day, allocations, rejections, score_sum)
        VALUES (?, ?, ?, ?, ?)
        ON CONFLICT(section, day) DO UPDATE SET
            allocations = allocations + excluded.allocations,
            rejections = rejections + excluded.rejections,
            score_sum = score_sum + excluded.score_sum`,
		r.Section, d.Unix(), r.Allocations, r.Rejections, r.ScoreSum)
	return err
}

// Query returns records in the range [start,end].
func (s *SQLiteStore) Query(section string, start, end time.Time) ([]core.Record, error) {
	start = core.Day(start)
	end = core.Day(end)
	rows, err := s.db.Query(`SELECT section, day, allocations, rejections, score_sum
        FROM section_kpi WHERE section = ? AND day >= ? AND day <= ? ORDER BY day`,
		section, start.Unix(), end.Unix())
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []core.Record
	for rows.Next() {
		var sec string
		var ts int64
		var alloc, rej int
		var sum float64
		if err := rows.Scan(&sec, &ts, &alloc, &rej, &sum); err != nil {
			return nil, err
		}
		res = append(res, core.Record{
			Section:     sec,
			Date:        time.Unix(ts, 0).UTC(),
			Allocations: alloc,
			Rejections:  rej,
			ScoreSum:    sum,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
