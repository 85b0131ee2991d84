package report

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/agentic-research/spotreach/internal/graph"
	"github.com/agentic-research/spotreach/internal/reach"
	_ "modernc.org/sqlite"
)

// Run describes one stored run.
type Run struct {
	ID       string
	GameType string
	Created  time.Time
	Explored int
}

// Runs lists the runs in dbPath, newest first.
func Runs(dbPath string) ([]Run, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	defer func() { _ = db.Close() }()

	rows, err := db.Query(`SELECT id, game_type, created_at, explored FROM runs ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Run
	for rows.Next() {
		var r Run
		var created int64
		if err := rows.Scan(&r.ID, &r.GameType, &created, &r.Explored); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Created = time.Unix(0, created).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// LoadReach reads the reach rows of runID, most probable first. An empty
// runID selects the newest run. The resolved run id is returned.
func LoadReach(dbPath, runID string) (string, []reach.Row, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return "", nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	defer func() { _ = db.Close() }()

	if runID == "" {
		err := db.QueryRow(`SELECT id FROM runs ORDER BY created_at DESC, id LIMIT 1`).Scan(&runID)
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil, ErrNoRuns
		}
		if err != nil {
			return "", nil, fmt.Errorf("latest run: %w", err)
		}
	}

	rows, err := db.Query(
		`SELECT actions, probability FROM reach WHERE run_id = ? ORDER BY probability DESC, actions`,
		runID,
	)
	if err != nil {
		return "", nil, fmt.Errorf("query reach: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []reach.Row
	for rows.Next() {
		var line string
		var p float64
		if err := rows.Scan(&line, &p); err != nil {
			return "", nil, fmt.Errorf("scan reach row: %w", err)
		}
		h, _ := graph.DecodeLine(line)
		out = append(out, reach.Row{History: h, Probability: p})
	}
	return runID, out, rows.Err()
}
