package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates or opens a SQLite database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			grp TEXT NOT NULL,
			tag TEXT,
			language TEXT,
			git_commit TEXT,
			created_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS requirements (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			number INTEGER NOT NULL,
			section TEXT,
			text TEXT,
			original_text TEXT,
			file TEXT,
			line INTEGER,
			PRIMARY KEY (run_id, number)
		);`,
		`CREATE TABLE IF NOT EXISTS steps (
			run_id TEXT NOT NULL,
			number INTEGER NOT NULL,
			position INTEGER NOT NULL,
			text TEXT,
			PRIMARY KEY (run_id, number, position),
			FOREIGN KEY (run_id, number) REFERENCES requirements(run_id, number) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS verifications (
			run_id TEXT NOT NULL,
			number INTEGER NOT NULL,
			position INTEGER NOT NULL,
			text TEXT,
			PRIMARY KEY (run_id, number, position),
			FOREIGN KEY (run_id, number) REFERENCES requirements(run_id, number) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_group ON runs(grp, created_at);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run *Run) error {
	if run == nil || run.ID == "" {
		return errors.New("run id is required")
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs (id, grp, tag, language, git_commit, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, run.ID, run.Group, run.Tag, run.Language, run.Commit, run.CreatedAt.UnixNano()); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	reqStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO requirements (run_id, number, section, text, original_text, file, line)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer reqStmt.Close()

	stepStmt, err := tx.PrepareContext(ctx, `INSERT INTO steps (run_id, number, position, text) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stepStmt.Close()

	verStmt, err := tx.PrepareContext(ctx, `INSERT INTO verifications (run_id, number, position, text) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer verStmt.Close()

	for _, r := range run.Requirements {
		if _, err := reqStmt.ExecContext(ctx, run.ID, r.Number, r.Section, r.Text, r.OriginalText, r.File, r.Line); err != nil {
			return fmt.Errorf("insert requirement %d: %w", r.Number, err)
		}
		for i, step := range r.Steps {
			if _, err := stepStmt.ExecContext(ctx, run.ID, r.Number, i, step); err != nil {
				return err
			}
		}
		for i, v := range r.Verifications {
			if _, err := verStmt.ExecContext(ctx, run.ID, r.Number, i, v); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) LatestRun(ctx context.Context, group string) (*Run, error) {
	runs, err := s.Runs(ctx, group, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("run for group %q: %w", group, ErrNotFound)
	}
	run := runs[0]

	rows, err := s.db.QueryContext(ctx, `
		SELECT number, section, text, original_text, file, line
		FROM requirements WHERE run_id = ? ORDER BY number
	`, run.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	index := make(map[int]int)
	for rows.Next() {
		var r TracedRequirement
		if err := rows.Scan(&r.Number, &r.Section, &r.Text, &r.OriginalText, &r.File, &r.Line); err != nil {
			return nil, err
		}
		index[r.Number] = len(run.Requirements)
		run.Requirements = append(run.Requirements, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.loadAnnotations(ctx, "steps", run, index, func(r *TracedRequirement, text string) {
		r.Steps = append(r.Steps, text)
	}); err != nil {
		return nil, err
	}
	if err := s.loadAnnotations(ctx, "verifications", run, index, func(r *TracedRequirement, text string) {
		r.Verifications = append(r.Verifications, text)
	}); err != nil {
		return nil, err
	}
	return run, nil
}

func (s *SQLiteStore) loadAnnotations(ctx context.Context, table string, run *Run, index map[int]int, add func(*TracedRequirement, string)) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT number, text FROM `+table+` WHERE run_id = ? ORDER BY number, position`, run.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			number int
			text   string
		)
		if err := rows.Scan(&number, &text); err != nil {
			return err
		}
		if i, ok := index[number]; ok {
			add(&run.Requirements[i], text)
		}
	}
	return rows.Err()
}

func (s *SQLiteStore) Runs(ctx context.Context, group string, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, grp, tag, language, git_commit, created_at
		FROM runs WHERE grp = ? ORDER BY created_at DESC LIMIT ?
	`, group, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var (
			r       Run
			created int64
		)
		if err := rows.Scan(&r.ID, &r.Group, &r.Tag, &r.Language, &r.Commit, &created); err != nil {
			return nil, err
		}
		r.CreatedAt = time.Unix(0, created).UTC()
		runs = append(runs, &r)
	}
	return runs, rows.Err()
}
