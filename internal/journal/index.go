package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pixil98/go-colony/internal/registry"
	"github.com/pixil98/go-colony/internal/world"
	_ "modernc.org/sqlite"
)

// Index is a queryable sqlite copy of the journal. Writes come from the
// journal's writer goroutine; queries may come from anywhere.
type Index struct {
	db *sql.DB
}

// TickRow summarizes one tick.
type TickRow struct {
	Tick    int
	Skipped int
	Records int
	Ended   bool
}

func OpenIndex(path string) (*Index, error) {
	if path == "" {
		return nil, fmt.Errorf("empty index path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("configuring %s: %w", path, err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema in %s: %w", path, err)
	}
	return &Index{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ticks (
			tick INTEGER PRIMARY KEY,
			started_at TEXT NOT NULL,
			ended_at TEXT,
			skipped INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS records (
			seq INTEGER PRIMARY KEY,
			tick INTEGER NOT NULL,
			stream TEXT NOT NULL,
			kind TEXT NOT NULL,
			object_id TEXT,
			raw_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_records_tick ON records(tick, seq);`,
		`CREATE INDEX IF NOT EXISTS idx_records_object ON records(object_id, tick);`,
		`CREATE INDEX IF NOT EXISTS idx_records_kind ON records(kind, tick);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (x *Index) Close() error {
	return x.db.Close()
}

// LastSeq is the highest record sequence stored, so a restarted journal can
// continue numbering.
func (x *Index) LastSeq(ctx context.Context) (uint64, error) {
	var seq sql.NullInt64
	if err := x.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM records`).Scan(&seq); err != nil {
		return 0, err
	}
	return uint64(seq.Int64), nil
}

// add stores one flushed batch in a single transaction.
func (x *Index) add(ctx context.Context, entries []Entry) error {
	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, e := range entries {
		var objectID sql.NullString
		if e.ObjectID != nil {
			objectID = sql.NullString{String: e.ObjectID.String(), Valid: true}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO records(seq,tick,stream,kind,object_id,raw_json) VALUES(?,?,?,?,?,?)`,
			int64(e.Seq), e.Tick, e.Stream, e.Kind, objectID, string(e.Data),
		); err != nil {
			return fmt.Errorf("indexing record %d: %w", e.Seq, err)
		}

		switch e.Kind {
		case world.KindTickStart:
			if _, err := tx.ExecContext(ctx,
				`INSERT OR REPLACE INTO ticks(tick,started_at) VALUES(?,?)`,
				e.Tick, e.Time.UTC().Format(timeLayout),
			); err != nil {
				return fmt.Errorf("indexing tick %d: %w", e.Tick, err)
			}
		case world.KindTickEnd:
			var end world.TickEndEvent
			if err := json.Unmarshal(e.Data, &end); err != nil {
				return fmt.Errorf("decoding tick end: %w", err)
			}
			if _, err := tx.ExecContext(ctx,
				`UPDATE ticks SET ended_at = ?, skipped = ? WHERE tick = ?`,
				e.Time.UTC().Format(timeLayout), end.Skipped, end.Tick,
			); err != nil {
				return fmt.Errorf("indexing tick %d: %w", end.Tick, err)
			}
		}
	}
	return tx.Commit()
}

// Ticks lists recorded ticks in order.
func (x *Index) Ticks(ctx context.Context) ([]TickRow, error) {
	rows, err := x.db.QueryContext(ctx, `
		SELECT t.tick, t.skipped, t.ended_at IS NOT NULL,
			(SELECT COUNT(*) FROM records r WHERE r.tick = t.tick)
		FROM ticks t ORDER BY t.tick`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TickRow
	for rows.Next() {
		var r TickRow
		if err := rows.Scan(&r.Tick, &r.Skipped, &r.Ended, &r.Records); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ObjectHistory returns every record naming id, oldest first.
func (x *Index) ObjectHistory(ctx context.Context, id registry.ID) ([]Entry, error) {
	return x.query(ctx, `SELECT seq,tick,stream,kind,object_id,raw_json FROM records WHERE object_id = ? ORDER BY seq`, id.String())
}

// TickRecords returns every record stored for one tick, oldest first.
func (x *Index) TickRecords(ctx context.Context, tick int) ([]Entry, error) {
	return x.query(ctx, `SELECT seq,tick,stream,kind,object_id,raw_json FROM records WHERE tick = ? ORDER BY seq`, tick)
}

func (x *Index) query(ctx context.Context, q string, args ...any) ([]Entry, error) {
	rows, err := x.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e        Entry
			seq      int64
			objectID sql.NullString
			raw      string
		)
		if err := rows.Scan(&seq, &e.Tick, &e.Stream, &e.Kind, &objectID, &raw); err != nil {
			return nil, err
		}
		e.Seq = uint64(seq)
		e.Data = json.RawMessage(raw)
		if objectID.Valid {
			id, err := registry.ParseID(objectID.String)
			if err != nil {
				return nil, err
			}
			e.ObjectID = &id
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
