//go:build sqlite
// +build sqlite

package state

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	logx "hookrelay/pkg/logx"

	_ "modernc.org/sqlite"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// sqliteStore keeps the document in a local SQLite database.
//
// Versioning is a revision counter in the meta table. Commit bumps it with
// a guarded UPDATE inside the write transaction, so a run that loaded a
// stale revision fails with ErrConflict instead of overwriting.
type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("state.path is required for sqlite driver")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) Load(ctx context.Context) (*State, Version, error) {
	var rev int64
	err := s.db.QueryRowContext(ctx, `SELECT rev FROM meta WHERE k = 'state'`).Scan(&rev)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	st := New()
	rows, err := s.db.QueryContext(ctx, `SELECT handle, user_id, last_post_id FROM accounts`)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			handle, userID, lastRaw string
		)
		if err := rows.Scan(&handle, &userID, &lastRaw); err != nil {
			return nil, "", err
		}
		if userID != "" {
			st.SetIdentity(handle, userID)
		}
		if lastRaw != "" && lastRaw != "0" {
			id, err := strconv.ParseUint(lastRaw, 10, 64)
			if err != nil {
				return nil, "", fmt.Errorf("state: malformed cursor %q for %s: %w", lastRaw, handle, err)
			}
			st.Advance(handle, id)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}
	st.MarkClean()

	if rev == 0 {
		// Fresh database: treat as absent so Commit semantics match the
		// other drivers.
		return st, "", nil
	}
	return st, Version(strconv.FormatInt(rev, 10)), nil
}

func (s *sqliteStore) Commit(ctx context.Context, st *State, v Version) (Version, error) {
	var expect int64
	if v != "" {
		n, err := strconv.ParseInt(string(v), 10, 64)
		if err != nil {
			return "", fmt.Errorf("state: bad version token %q: %w", v, err)
		}
		expect = n
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	// Guarded bump: zero rows affected means someone committed after our load.
	res, err := tx.ExecContext(ctx, `UPDATE meta SET rev = rev + 1 WHERE k = 'state' AND rev = ?`, expect)
	if err != nil {
		return "", err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", fmt.Errorf("%w: revision moved past %d", ErrConflict, expect)
	}

	for _, handle := range st.Handles() {
		a := st.users[handle]
		_, err := tx.ExecContext(ctx,
			`INSERT INTO accounts(handle, user_id, last_post_id) VALUES(?,?,?)
			 ON CONFLICT(handle) DO UPDATE SET user_id = excluded.user_id, last_post_id = excluded.last_post_id`,
			handle, a.ID, strconv.FormatUint(a.LastPostID, 10),
		)
		if err != nil {
			return "", err
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return Version(strconv.FormatInt(expect+1, 10)), nil
}
