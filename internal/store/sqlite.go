// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // pure Go driver, no CGO

	"github.com/mibmo/freestuffapi-go/pkg/freestuff"
)

const schemaVersion = 1

// SQLite is the durable Store backend.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the database at path and runs migrations.
// The pragmas ride in the DSN so they apply to every pooled connection:
// WAL for concurrent readers, busy_timeout against transient lock errors.
func NewSQLite(path string) (*SQLite, error) {
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)",
		path,
	)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return s, nil
}

func (s *SQLite) migrate() error {
	var currentVersion int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&currentVersion); err != nil {
		return err
	}

	if currentVersion >= schemaVersion {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	schema := `
	CREATE TABLE IF NOT EXISTS announcements (
		id INTEGER PRIMARY KEY,
		title TEXT NOT NULL,
		title_norm TEXT NOT NULL,
		store TEXT NOT NULL,
		kind TEXT NOT NULL,
		type TEXT NOT NULL,
		category TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		first_seen_ms INTEGER NOT NULL,
		last_seen_ms INTEGER NOT NULL,
		ended_at_ms INTEGER,
		detail_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_announcements_active ON announcements(active);
	CREATE INDEX IF NOT EXISTS idx_announcements_store ON announcements(store);
	CREATE INDEX IF NOT EXISTS idx_announcements_category ON announcements(category);
	CREATE INDEX IF NOT EXISTS idx_announcements_title_norm ON announcements(title_norm);
	`
	if _, err := tx.Exec(schema); err != nil {
		return err
	}

	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return err
	}

	return tx.Commit()
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Upsert inserts or refreshes announcements in one transaction.
func (s *SQLite) Upsert(ctx context.Context, anns []Announcement) error {
	if len(anns) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	query := `
	INSERT INTO announcements (
		id, title, title_norm, store, kind, type, category,
		active, first_seen_ms, last_seen_ms, ended_at_ms, detail_json
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, ?)
	ON CONFLICT(id) DO UPDATE SET
		title = excluded.title,
		title_norm = excluded.title_norm,
		store = excluded.store,
		kind = excluded.kind,
		type = excluded.type,
		category = excluded.category,
		active = excluded.active,
		last_seen_ms = excluded.last_seen_ms,
		ended_at_ms = CASE WHEN excluded.active = 1 THEN NULL ELSE announcements.ended_at_ms END,
		detail_json = excluded.detail_json
	`

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	for _, a := range anns {
		detail, err := json.Marshal(a.Detail)
		if err != nil {
			return fmt.Errorf("marshal detail for game %d: %w", a.ID, err)
		}

		active := 0
		if a.Active {
			active = 1
		}

		if _, err := stmt.ExecContext(ctx,
			int64(a.ID), a.Title, normalizeTitle(a.Title),
			string(a.Store), string(a.Kind), string(a.Type), a.Category,
			active, a.FirstSeen.UnixMilli(), a.LastSeen.UnixMilli(), string(detail),
		); err != nil {
			return fmt.Errorf("upsert game %d: %w", a.ID, err)
		}
	}

	return tx.Commit()
}

const announcementColumns = `
	id, title, store, kind, type, category,
	active, first_seen_ms, last_seen_ms, ended_at_ms, detail_json
`

// Get returns one announcement or ErrNotFound.
func (s *SQLite) Get(ctx context.Context, id freestuff.GameID) (*Announcement, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+announcementColumns+` FROM announcements WHERE id = ?`, int64(id))

	a, err := scanAnnouncement(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// List returns announcements matching the filter, most recently seen first.
func (s *SQLite) List(ctx context.Context, f Filter) ([]Announcement, error) {
	var conds []string
	var args []any

	if f.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, f.Category)
	}
	if f.Store != "" {
		conds = append(conds, "store = ?")
		args = append(args, f.Store)
	}
	if f.Kind != "" {
		conds = append(conds, "kind = ?")
		args = append(args, f.Kind)
	}
	if f.ActiveOnly {
		conds = append(conds, "active = 1")
	}
	if f.Query != "" {
		conds = append(conds, `title_norm LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(normalizeTitle(f.Query))+"%")
	}

	query := `SELECT ` + announcementColumns + ` FROM announcements`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY last_seen_ms DESC, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Announcement
	for rows.Next() {
		a, err := scanAnnouncement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// MarkEnded deactivates the given games. Already-ended rows keep their
// original timestamp and do not count.
func (s *SQLite) MarkEnded(ctx context.Context, ids []freestuff.GameID, endedAt time.Time) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids)+1)
	args = append(args, endedAt.UnixMilli())
	for _, id := range ids {
		args = append(args, int64(id))
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE announcements SET active = 0, ended_at_ms = ?
		 WHERE id IN (`+placeholders+`) AND active = 1`, args...)
	if err != nil {
		return 0, err
	}

	n, err := res.RowsAffected()
	return int(n), err
}

// IDs returns the set of all known announcement IDs.
func (s *SQLite) IDs(ctx context.Context) (map[freestuff.GameID]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM announcements`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	ids := make(map[freestuff.GameID]struct{})
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[freestuff.GameID(id)] = struct{}{}
	}
	return ids, rows.Err()
}

// Prune deletes ended announcements whose end predates olderThan.
func (s *SQLite) Prune(ctx context.Context, olderThan time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM announcements
		 WHERE active = 0 AND ended_at_ms IS NOT NULL AND ended_at_ms < ?`,
		olderThan.UnixMilli())
	if err != nil {
		return 0, err
	}

	n, err := res.RowsAffected()
	return int(n), err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnnouncement(row rowScanner) (*Announcement, error) {
	var (
		a          Announcement
		id         int64
		storeName  string
		kind       string
		annType    string
		active     int
		firstSeen  int64
		lastSeen   int64
		endedAt    sql.NullInt64
		detailJSON []byte
	)

	if err := row.Scan(&id, &a.Title, &storeName, &kind, &annType, &a.Category,
		&active, &firstSeen, &lastSeen, &endedAt, &detailJSON); err != nil {
		return nil, err
	}

	a.ID = freestuff.GameID(id)
	a.Store = freestuff.Store(storeName)
	a.Kind = freestuff.ProductKind(kind)
	a.Type = freestuff.AnnouncementType(annType)
	a.Active = active == 1
	a.FirstSeen = time.UnixMilli(firstSeen).UTC()
	a.LastSeen = time.UnixMilli(lastSeen).UTC()
	if endedAt.Valid {
		t := time.UnixMilli(endedAt.Int64).UTC()
		a.EndedAt = &t
	}

	if err := json.Unmarshal(detailJSON, &a.Detail); err != nil {
		return nil, fmt.Errorf("unmarshal detail for game %d: %w", id, err)
	}

	return &a, nil
}

// escapeLike escapes LIKE wildcards in user-supplied search text.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
