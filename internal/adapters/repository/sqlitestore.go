package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // CGO-free SQLite

	"github.com/okian/inputreplay/internal/domain/model"
	"github.com/okian/inputreplay/pkg/logger"
	"github.com/okian/inputreplay/pkg/metrics"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sessions(
  name        TEXT    PRIMARY KEY,
  saved_at    INTEGER NOT NULL,
  event_count INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS events(
  session  TEXT    NOT NULL REFERENCES sessions(name) ON DELETE CASCADE,
  seq      INTEGER NOT NULL,
  offset_s REAL    NOT NULL,
  kind     TEXT    NOT NULL CHECK (kind IN ('pointer_move','pointer_button','key_down','key_up')),
  x        INTEGER,
  y        INTEGER,
  button   TEXT,
  pressed  INTEGER,
  key      TEXT,
  PRIMARY KEY(session, seq)
);
CREATE TABLE IF NOT EXISTS frames(
  session TEXT    NOT NULL,
  idx     INTEGER NOT NULL,
  ext     TEXT    NOT NULL DEFAULT '',
  data    BLOB    NOT NULL,
  PRIMARY KEY(session, idx)
);
`

// SQLiteStore keeps sessions, their events and frames in one SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
	opts options
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating if needed) the database at path.
func NewSQLiteStore(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	o := defaultOptions("sqlite_store")
	for _, opt := range opts {
		opt(&o)
	}
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite store: %w: empty path", ErrStorageIO)
	}

	// WAL + busy timeout to avoid "database is locked"
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: %w: %w", ErrStorageIO, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite store: create tables: %w: %w", ErrStorageIO, err)
	}
	return &SQLiteStore{db: db, path: path, opts: o}, nil
}

// Save replaces the session row and all its events inside one transaction.
func (s *SQLiteStore) Save(ctx context.Context, session model.Session) (err error) {
	start := time.Now()
	defer func() { metrics.RecordStorageOp(BackendSQLite, "save", time.Since(start), err != nil) }()

	if err := ValidateName(session.Name); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	if err := session.Validate(); err != nil {
		return fmt.Errorf("save %q: %w", session.Name, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save %q: begin: %w: %w", session.Name, ErrStorageIO, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM events WHERE session = ?`, session.Name); err != nil {
		return fmt.Errorf("save %q: %w: %w", session.Name, ErrStorageIO, err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions(name, saved_at, event_count) VALUES(?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET saved_at = excluded.saved_at, event_count = excluded.event_count`,
		session.Name, time.Now().UnixMilli(), session.Len())
	if err != nil {
		return fmt.Errorf("save %q: %w: %w", session.Name, ErrStorageIO, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO events(session, seq, offset_s, kind, x, y, button, pressed, key) VALUES(?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("save %q: prepare: %w: %w", session.Name, ErrStorageIO, err)
	}
	defer stmt.Close()

	for i, e := range session.Events {
		var x, y, pressed sql.NullInt64
		var button, key sql.NullString
		switch p := e.Payload.(type) {
		case model.PointerMove:
			x, y = validInt(p.X), validInt(p.Y)
		case model.PointerButton:
			x, y = validInt(p.X), validInt(p.Y)
			button = sql.NullString{String: p.Button.String(), Valid: true}
			pressed = sql.NullInt64{Int64: boolInt(p.Pressed), Valid: true}
		case model.Key:
			key = sql.NullString{String: p.Token, Valid: true}
		}
		if _, err = stmt.ExecContext(ctx, session.Name, i, e.Offset, e.Kind.String(), x, y, button, pressed, key); err != nil {
			return fmt.Errorf("save %q: event %d: %w: %w", session.Name, i, ErrStorageIO, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("save %q: commit: %w: %w", session.Name, ErrStorageIO, err)
	}
	s.opts.logger.Info(ctx, "session saved",
		logger.String("session", session.Name),
		logger.Int("events", session.Len()),
	)
	return nil
}

// Load reads the session's events ordered by insertion sequence.
func (s *SQLiteStore) Load(ctx context.Context, name string) (session model.Session, err error) {
	start := time.Now()
	defer func() { metrics.RecordStorageOp(BackendSQLite, "load", time.Since(start), err != nil) }()

	if err := ValidateName(name); err != nil {
		return model.Session{}, fmt.Errorf("load: %w", err)
	}

	var count int
	err = s.db.QueryRowContext(ctx, `SELECT event_count FROM sessions WHERE name = ?`, name).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Session{}, fmt.Errorf("load %q: %w", name, ErrSessionNotFound)
	}
	if err != nil {
		return model.Session{}, fmt.Errorf("load %q: %w: %w", name, ErrStorageIO, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT offset_s, kind, x, y, button, pressed, key FROM events WHERE session = ? ORDER BY seq`, name)
	if err != nil {
		return model.Session{}, fmt.Errorf("load %q: %w: %w", name, ErrStorageIO, err)
	}
	defer rows.Close()

	events := make([]model.InputEvent, 0, count)
	for rows.Next() {
		var (
			offset     float64
			kindName   string
			x, y, prsd sql.NullInt64
			button     sql.NullString
			key        sql.NullString
		)
		if err := rows.Scan(&offset, &kindName, &x, &y, &button, &prsd, &key); err != nil {
			return model.Session{}, fmt.Errorf("load %q: %w: %w", name, ErrStorageIO, err)
		}
		e, err := decodeSQLRow(offset, kindName, x, y, prsd, button, key)
		if err != nil {
			return model.Session{}, fmt.Errorf("load %q: event %d: %w: %w", name, len(events), ErrStorageIO, err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return model.Session{}, fmt.Errorf("load %q: %w: %w", name, ErrStorageIO, err)
	}
	return model.Session{Name: name, Events: events}, nil
}

// List returns every session name in the sessions table.
func (s *SQLiteStore) List(ctx context.Context) (names []string, err error) {
	start := time.Now()
	defer func() { metrics.RecordStorageOp(BackendSQLite, "list", time.Since(start), err != nil) }()

	rows, err := s.db.QueryContext(ctx, `SELECT name FROM sessions ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list: %w: %w", ErrStorageIO, err)
	}
	defer rows.Close()

	names = []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("list: %w: %w", ErrStorageIO, err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list: %w: %w", ErrStorageIO, err)
	}
	return names, nil
}

// Delete removes the session, its events and frames in one transaction.
func (s *SQLiteStore) Delete(ctx context.Context, name string) (removed bool, err error) {
	start := time.Now()
	defer func() { metrics.RecordStorageOp(BackendSQLite, "delete", time.Since(start), err != nil) }()

	if err := ValidateName(name); err != nil {
		return false, fmt.Errorf("delete: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("delete %q: begin: %w: %w", name, ErrStorageIO, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM events WHERE session = ?`, name); err != nil {
		return false, fmt.Errorf("delete %q: %w: %w", name, ErrStorageIO, err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM frames WHERE session = ?`, name)
	if err != nil {
		return false, fmt.Errorf("delete %q: %w: %w", name, ErrStorageIO, err)
	}
	frames, _ := res.RowsAffected()
	res, err = tx.ExecContext(ctx, `DELETE FROM sessions WHERE name = ?`, name)
	if err != nil {
		return false, fmt.Errorf("delete %q: %w: %w", name, ErrStorageIO, err)
	}
	sessions, _ := res.RowsAffected()

	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("delete %q: commit: %w: %w", name, ErrStorageIO, err)
	}

	removed = sessions > 0 || frames > 0
	if removed {
		s.opts.logger.Info(ctx, "session deleted", logger.String("session", name), logger.Int("frames", int(frames)))
	}
	return removed, nil
}

// SaveFrame upserts one frame row.
func (s *SQLiteStore) SaveFrame(ctx context.Context, name string, index int, frame model.Frame) (err error) {
	start := time.Now()
	defer func() { metrics.RecordStorageOp(BackendSQLite, "save_frame", time.Since(start), err != nil) }()

	if err := ValidateName(name); err != nil {
		return fmt.Errorf("save frame: %w", err)
	}
	if err := validateFrame(index, frame); err != nil {
		return fmt.Errorf("save frame %q/%d: %w", name, index, err)
	}
	data := frame.Data
	if data == nil {
		data = []byte{}
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO frames(session, idx, ext, data) VALUES(?, ?, ?, ?)
		 ON CONFLICT(session, idx) DO UPDATE SET ext = excluded.ext, data = excluded.data`,
		name, index, frame.Ext, data)
	if err != nil {
		return fmt.Errorf("save frame %q/%d: %w: %w", name, index, ErrStorageIO, err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func decodeSQLRow(offset float64, kindName string, x, y, pressed sql.NullInt64, button, key sql.NullString) (model.InputEvent, error) {
	kind, err := model.ParseKind(kindName)
	if err != nil {
		return model.InputEvent{}, err
	}
	switch kind {
	case model.KindPointerMove:
		if !x.Valid || !y.Valid {
			return model.InputEvent{}, fmt.Errorf("%w: pointer move without coordinates", model.ErrInvalidEvent)
		}
		return model.NewPointerMove(offset, int(x.Int64), int(y.Int64))
	case model.KindPointerButton:
		if !x.Valid || !y.Valid || !button.Valid || !pressed.Valid {
			return model.InputEvent{}, fmt.Errorf("%w: incomplete pointer button", model.ErrInvalidEvent)
		}
		b, err := model.ParseButton(button.String)
		if err != nil {
			return model.InputEvent{}, err
		}
		return model.NewPointerButton(offset, int(x.Int64), int(y.Int64), b, pressed.Int64 != 0)
	case model.KindKeyDown:
		return model.NewKeyDown(offset, key.String)
	default:
		return model.NewKeyUp(offset, key.String)
	}
}

func validInt(v int) sql.NullInt64 { return sql.NullInt64{Int64: int64(v), Valid: true} }

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
