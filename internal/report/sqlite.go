package report

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/agentic-research/spotreach/internal/graph"
	"github.com/agentic-research/spotreach/internal/reach"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNoRuns is returned when a report database holds no runs.
var ErrNoRuns = errors.New("report database has no runs")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	game_type TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	explored INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS reach (
	run_id TEXT NOT NULL REFERENCES runs(id),
	actions TEXT NOT NULL,
	depth INTEGER NOT NULL,
	probability REAL NOT NULL,
	PRIMARY KEY (run_id, actions)
) WITHOUT ROWID;

CREATE TABLE IF NOT EXISTS distribution (
	run_id TEXT NOT NULL REFERENCES runs(id),
	frontier TEXT NOT NULL,
	actions TEXT NOT NULL,
	unconditional REAL NOT NULL,
	conditional REAL NOT NULL,
	PRIMARY KEY (run_id, frontier, actions)
) WITHOUT ROWID;
CREATE INDEX IF NOT EXISTS idx_reach_prob ON reach(run_id, probability DESC);
`

// SQLiteWriter appends runs to a report database. Each run gets a fresh
// uuid; earlier runs are kept.
type SQLiteWriter struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteWriter opens (creating if needed) the database at dbPath.
func NewSQLiteWriter(dbPath string) (*SQLiteWriter, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteWriter{db: db, now: time.Now}, nil
}

// StartRun registers a run and returns its id.
func (w *SQLiteWriter) StartRun(gameType string, explored int) (string, error) {
	id := uuid.NewString()
	_, err := w.db.Exec(
		`INSERT INTO runs (id, game_type, created_at, explored) VALUES (?, ?, ?, ?)`,
		id, gameType, w.now().UnixNano(), explored,
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// WriteReach stores every row of t under runID in one transaction.
func (w *SQLiteWriter) WriteReach(runID string, t *reach.Table) error {
	return w.inTx(`INSERT OR REPLACE INTO reach (run_id, actions, depth, probability) VALUES (?, ?, ?, ?)`,
		func(stmt *sql.Stmt) error {
			for _, r := range t.Rows() {
				if _, err := stmt.Exec(runID, graph.EncodeLine(r.History), r.History.Depth(), r.Probability); err != nil {
					return fmt.Errorf("insert reach %q: %w", graph.EncodeLine(r.History), err)
				}
			}
			return nil
		})
}

// WriteDistribution stores d under runID, labelled with the frontier name.
func (w *SQLiteWriter) WriteDistribution(runID, frontier string, d *reach.Distribution) error {
	return w.inTx(`INSERT OR REPLACE INTO distribution (run_id, frontier, actions, unconditional, conditional) VALUES (?, ?, ?, ?, ?)`,
		func(stmt *sql.Stmt) error {
			for _, e := range d.Rows {
				if _, err := stmt.Exec(runID, frontier, graph.EncodeLine(e.History), e.Unconditional, e.Conditional); err != nil {
					return fmt.Errorf("insert distribution %q: %w", graph.EncodeLine(e.History), err)
				}
			}
			return nil
		})
}

func (w *SQLiteWriter) inTx(query string, fn func(*sql.Stmt) error) error {
	tx, err := w.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(query)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := fn(stmt); err != nil {
		_ = stmt.Close()
		_ = tx.Rollback()
		return err
	}
	_ = stmt.Close()
	return tx.Commit()
}

func (w *SQLiteWriter) Close() error {
	return w.db.Close()
}
