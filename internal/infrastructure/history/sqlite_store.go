package history

import (
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kernhell/kernhell-go/internal/domain"
	"github.com/kernhell/kernhell-go/internal/ports"
)

// SQLiteStore persists the run log in a SQLite database.
type SQLiteStore struct {
	db       *sql.DB
	path     string
	fallback *FileStore
	mu       sync.Mutex
}

// NewSQLiteStore opens (or creates) dbPath. When the database cannot be opened the
// store degrades to a jsonl log at fallbackPath.
func NewSQLiteStore(dbPath, fallbackPath string, logger ports.Logger) *SQLiteStore {
	store := &SQLiteStore{path: dbPath, fallback: NewFileStore(fallbackPath)}
	_ = os.MkdirAll(filepath.Dir(dbPath), domain.DirectoryPermissions)
	db, err := sql.Open("sqlite", dbPath)
	if err == nil {
		store.db = db
		err = store.init()
	}
	if err != nil {
		if logger != nil {
			logger.Warn("run log database unavailable, using jsonl", map[string]interface{}{
				"path":  dbPath,
				"error": err.Error(),
			})
		}
		if store.db != nil {
			store.db.Close()
		}
		store.db = nil
	}
	return store
}

func (s *SQLiteStore) init() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TEXT NOT NULL,
		file TEXT NOT NULL,
		error TEXT,
		healed INTEGER NOT NULL,
		model TEXT
	);`)
	return err
}

// Record inserts one terminal outcome.
func (s *SQLiteStore) Record(run domain.HealingRun) error {
	if s.db == nil {
		return s.fallback.Record(run)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var errText sql.NullString
	if run.Error != nil {
		errText = sql.NullString{String: *run.Error, Valid: true}
	}
	_, err := s.db.Exec(`INSERT INTO runs (timestamp, file, error, healed, model) VALUES (?, ?, ?, ?, ?)`,
		run.Timestamp.UTC().Format(time.RFC3339Nano),
		run.File,
		errText,
		boolToInt(run.Healed),
		run.Model,
	)
	return err
}

// Recent returns up to limit runs, newest first. limit <= 0 returns everything.
func (s *SQLiteStore) Recent(limit int) ([]domain.HealingRun, error) {
	if s.db == nil {
		return s.fallback.Recent(limit)
	}
	query := "SELECT timestamp, file, error, healed, model FROM runs ORDER BY id DESC"
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var runs []domain.HealingRun
	for rows.Next() {
		var (
			run     domain.HealingRun
			ts      string
			errText sql.NullString
			healed  int
			model   sql.NullString
		)
		if err := rows.Scan(&ts, &run.File, &errText, &healed, &model); err != nil {
			return nil, err
		}
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			run.Timestamp = t
		}
		if errText.Valid {
			text := errText.String
			run.Error = &text
		}
		run.Healed = healed == 1
		run.Model = model.String
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Stats aggregates the whole log in one query.
func (s *SQLiteStore) Stats() (domain.RunStats, error) {
	if s.db == nil {
		return s.fallback.Stats()
	}
	var total int
	var healed sql.NullInt64
	if err := s.db.QueryRow("SELECT COUNT(*), SUM(healed) FROM runs").Scan(&total, &healed); err != nil {
		return domain.RunStats{}, err
	}
	return newStats(total, int(healed.Int64)), nil
}

// Clear deletes all runs.
func (s *SQLiteStore) Clear() error {
	if s.db == nil {
		return s.fallback.Clear()
	}
	_, err := s.db.Exec("DELETE FROM runs")
	return err
}

// ExportJSON writes the run table, oldest first, to a jsonl file.
func (s *SQLiteStore) ExportJSON(dest string) error {
	if s.db == nil {
		return s.fallback.ExportJSON(dest)
	}
	runs, err := s.Recent(0)
	if err != nil {
		return err
	}
	for i, j := 0, len(runs)-1; i < j; i, j = i+1, j-1 {
		runs[i], runs[j] = runs[j], runs[i]
	}
	return writeJSONL(dest, runs)
}

// Path returns the database path, or the jsonl path when degraded.
func (s *SQLiteStore) Path() string {
	if s.db == nil {
		return s.fallback.Path()
	}
	return s.path
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ ports.RunHistory = (*SQLiteStore)(nil)
