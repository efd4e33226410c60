package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"roster-cli/internal/model"

	_ "modernc.org/sqlite"
)

const sqliteSchemaVersion = 1

// SQLite stores members in a single SQLite file.
//
// The full member is kept as JSON; rank and created_at are mirrored into columns so
// rank writes never have to rewrite the JSON blob. The rank column is authoritative.
type SQLite struct {
	db   *sql.DB
	path string
}

func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	// modernc.org/sqlite driver name is "sqlite".
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, persistErr("open", err)
	}
	// WAL enables one writer + many readers; busy_timeout helps avoid "database is locked" flakiness.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, persistErr("open", err)
		}
	}
	s := &SQLite{db: db, path: path}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, persistErr("migrate", err)
	}
	return s, nil
}

func (s *SQLite) Path() string { return s.path }

func (s *SQLite) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS schema_meta (
			k TEXT PRIMARY KEY,
			v TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS members (
			id TEXT PRIMARY KEY,
			collection TEXT NOT NULL,
			rank INTEGER NOT NULL DEFAULT 0,
			created_at_unixms INTEGER NOT NULL,
			json TEXT NOT NULL,
			updated_at_unixms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_members_collection_rank ON members(collection, rank);`,
		`CREATE INDEX IF NOT EXISTS idx_members_collection_created ON members(collection, created_at_unixms, id);`,
		`CREATE TABLE IF NOT EXISTS member_meta (
			member_id TEXT NOT NULL REFERENCES members(id) ON DELETE CASCADE,
			k TEXT NOT NULL,
			v TEXT NOT NULL,
			PRIMARY KEY(member_id, k)
		);`,
	}
	for _, st := range stmts {
		if _, err := s.db.ExecContext(ctx, st); err != nil {
			return err
		}
	}
	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO schema_meta(k, v) VALUES('version', ?)`, fmt.Sprintf("%d", sqliteSchemaVersion))
	return err
}

func (s *SQLite) ListMembers(ctx context.Context, collection string) ([]model.Member, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT json, rank FROM members WHERE collection = ? ORDER BY created_at_unixms, id`, collection)
	if err != nil {
		return nil, persistErr("list members", err)
	}
	defer rows.Close()

	out := []model.Member{}
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, persistErr("list members", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("list members", err)
	}
	// Millisecond columns can tie; finish with full precision.
	sortCreated(out)
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMember(r rowScanner) (model.Member, error) {
	var raw string
	var rank int
	if err := r.Scan(&raw, &rank); err != nil {
		return model.Member{}, err
	}
	var m model.Member
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return model.Member{}, err
	}
	m.Rank = rank
	return m, nil
}

func (s *SQLite) GetMember(ctx context.Context, collection, id string) (model.Member, error) {
	row := s.db.QueryRowContext(ctx, `SELECT json, rank FROM members WHERE collection = ? AND id = ?`, collection, id)
	m, err := scanMember(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Member{}, memberNotFound(id)
	}
	if err != nil {
		return model.Member{}, persistErr("get member", err)
	}
	return m, nil
}

func (s *SQLite) PutMember(ctx context.Context, m model.Member) error {
	return persistErr("put member", s.withTx(ctx, func(tx *sql.Tx) error {
		return insertMember(ctx, tx, m)
	}))
}

func insertMember(ctx context.Context, tx *sql.Tx, m model.Member) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO members(id, collection, rank, created_at_unixms, json, updated_at_unixms)
		VALUES(?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			collection = excluded.collection,
			rank = excluded.rank,
			created_at_unixms = excluded.created_at_unixms,
			json = excluded.json,
			updated_at_unixms = excluded.updated_at_unixms`,
		m.ID, m.Collection, m.Rank, m.CreatedAt.UTC().UnixMilli(), string(raw), time.Now().UTC().UnixMilli())
	return err
}

func (s *SQLite) DeleteMember(ctx context.Context, collection, id string) error {
	return persistErr("delete member", s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM member_meta WHERE member_id = ?`, id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM members WHERE collection = ? AND id = ?`, collection, id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return memberNotFound(id)
		}
		return nil
	}))
}

func (s *SQLite) SetRanks(ctx context.Context, collection string, ranks map[string]int) error {
	if len(ranks) == 0 {
		return nil
	}
	return persistErr("set ranks", s.withTx(ctx, func(tx *sql.Tx) error {
		return updateRanks(ctx, tx, collection, ranks)
	}))
}

func (s *SQLite) CommitRanks(ctx context.Context, collection string, ranks map[string]int, meta MetaChange) error {
	if len(ranks) == 0 && meta.empty() {
		return nil
	}
	return persistErr("commit ranks", s.withTx(ctx, func(tx *sql.Tx) error {
		if err := updateRanks(ctx, tx, collection, ranks); err != nil {
			return err
		}
		if meta.empty() {
			return nil
		}
		if meta.Clear {
			if err := clearMeta(ctx, tx, collection, meta.Key); err != nil {
				return err
			}
		}
		return setMeta(ctx, tx, collection, meta.Key, meta.Set)
	}))
}

func updateRanks(ctx context.Context, tx *sql.Tx, collection string, ranks map[string]int) error {
	nowMs := time.Now().UTC().UnixMilli()
	for id, r := range ranks {
		res, err := tx.ExecContext(ctx, `UPDATE members SET rank = ?, updated_at_unixms = ? WHERE collection = ? AND id = ?`, r, nowMs, collection, id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return memberNotFound(id)
		}
	}
	return nil
}

func (s *SQLite) ReplaceMembers(ctx context.Context, collection string, deleteExisting bool, members []model.Member) (int, error) {
	deleted := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if deleteExisting {
			if _, err := tx.ExecContext(ctx, `DELETE FROM member_meta WHERE member_id IN (SELECT id FROM members WHERE collection = ?)`, collection); err != nil {
				return err
			}
			res, err := tx.ExecContext(ctx, `DELETE FROM members WHERE collection = ?`, collection)
			if err != nil {
				return err
			}
			n, _ := res.RowsAffected()
			deleted = int(n)
		}
		for _, m := range members {
			m.Collection = collection
			if err := insertMember(ctx, tx, m); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, persistErr("replace members", err)
	}
	return deleted, nil
}

func (s *SQLite) GetMeta(ctx context.Context, collection, id, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT mm.v FROM member_meta mm
		JOIN members m ON m.id = mm.member_id
		WHERE m.collection = ? AND mm.member_id = ? AND mm.k = ?`, collection, id, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, persistErr("get meta", err)
	}
	return v, true, nil
}

func (s *SQLite) SetMeta(ctx context.Context, collection, key string, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	return persistErr("set meta", s.withTx(ctx, func(tx *sql.Tx) error {
		return setMeta(ctx, tx, collection, key, values)
	}))
}

func setMeta(ctx context.Context, tx *sql.Tx, collection, key string, values map[string]string) error {
	for id, v := range values {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM members WHERE collection = ? AND id = ?`, collection, id).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return memberNotFound(id)
		}
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO member_meta(member_id, k, v) VALUES(?, ?, ?)`, id, key, v); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLite) ListMeta(ctx context.Context, collection, key string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT mm.member_id, mm.v FROM member_meta mm
		JOIN members m ON m.id = mm.member_id
		WHERE m.collection = ? AND mm.k = ?`, collection, key)
	if err != nil {
		return nil, persistErr("list meta", err)
	}
	defer rows.Close()
	out := map[string]string{}
	for rows.Next() {
		var id, v string
		if err := rows.Scan(&id, &v); err != nil {
			return nil, persistErr("list meta", err)
		}
		out[id] = v
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("list meta", err)
	}
	return out, nil
}

func (s *SQLite) ClearMeta(ctx context.Context, collection, key string) error {
	return persistErr("clear meta", s.withTx(ctx, func(tx *sql.Tx) error {
		return clearMeta(ctx, tx, collection, key)
	}))
}

func clearMeta(ctx context.Context, tx *sql.Tx, collection, key string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM member_meta WHERE k = ? AND member_id IN (SELECT id FROM members WHERE collection = ?)`, key, collection)
	return err
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// String is used in log fields.
func (s *SQLite) String() string {
	return "sqlite:" + strings.TrimSpace(s.path)
}
