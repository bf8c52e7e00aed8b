// Package indexdb keeps a queryable sqlite read-model of the tick and
// audit streams. It never feeds back into the sim; losing it costs
// queryability, not correctness.
package indexdb

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	_ "modernc.org/sqlite"

	"tilecraft.dev/internal/sim/world"
)

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	auditSeq map[uint64]int
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqAudit
	reqSnapshot
)

type req struct {
	kind reqKind

	tick     world.TickLogEntry
	audit    world.AuditEntry
	snapshot SnapshotRow
}

type SnapshotRow struct {
	Tick      uint64
	Path      string
	Tiles     int
	Queued    int
	Unlocked  int
	CreatedAt string
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
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
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db:       db,
		ch:       make(chan req, 65536),
		auditSeq: map[uint64]int{},
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL suits the append-only write pattern; NORMAL is enough durability
	// for a secondary index.
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
			digest TEXT NOT NULL,
			actions INTEGER NOT NULL,
			delivered INTEGER NOT NULL,
			unroutable INTEGER NOT NULL,
			raw_json TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS audits (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			actor TEXT NOT NULL,
			action TEXT NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			reason TEXT,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_actor_tick ON audits(actor, tick);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_pos_tick ON audits(x, y, tick);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			tick INTEGER PRIMARY KEY,
			path TEXT NOT NULL,
			tiles INTEGER NOT NULL,
			queued INTEGER NOT NULL,
			unlocked INTEGER NOT NULL,
			created_at TEXT NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// InsertTick enqueues a tick row; drops when the index is saturated so the
// sim never blocks on the read model.
func (s *SQLiteIndex) InsertTick(e world.TickLogEntry) {
	s.send(req{kind: reqTick, tick: e})
}

func (s *SQLiteIndex) InsertAudit(e world.AuditEntry) {
	s.send(req{kind: reqAudit, audit: e})
}

func (s *SQLiteIndex) InsertSnapshot(row SnapshotRow) {
	s.send(req{kind: reqSnapshot, snapshot: row})
}

func (s *SQLiteIndex) send(r req) {
	if s.closed.Load() {
		return
	}
	select {
	case s.ch <- r:
	default:
	}
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) loop() {
	for r := range s.ch {
		switch r.kind {
		case reqTick:
			raw, _ := json.Marshal(r.tick)
			_, _ = s.db.Exec(
				`INSERT OR REPLACE INTO ticks (tick, digest, actions, delivered, unroutable, raw_json) VALUES (?,?,?,?,?,?)`,
				r.tick.Tick, r.tick.Digest, r.tick.Actions, r.tick.Delivered, r.tick.Unroutable, string(raw),
			)
		case reqAudit:
			seq := s.auditSeq[r.audit.Tick]
			s.auditSeq[r.audit.Tick] = seq + 1
			raw, _ := json.Marshal(r.audit)
			_, _ = s.db.Exec(
				`INSERT OR REPLACE INTO audits (tick, seq, actor, action, x, y, reason, raw_json) VALUES (?,?,?,?,?,?,?,?)`,
				r.audit.Tick, seq, r.audit.Actor, r.audit.Action, r.audit.Pos[0], r.audit.Pos[1], r.audit.Reason, string(raw),
			)
		case reqSnapshot:
			_, _ = s.db.Exec(
				`INSERT OR REPLACE INTO snapshots (tick, path, tiles, queued, unlocked, created_at) VALUES (?,?,?,?,?,?)`,
				r.snapshot.Tick, r.snapshot.Path, r.snapshot.Tiles, r.snapshot.Queued, r.snapshot.Unlocked, r.snapshot.CreatedAt,
			)
		}
	}
}

// LatestTick reads back the highest indexed tick. Used by tests and the
// admin surface, never by the sim.
func (s *SQLiteIndex) LatestTick() (uint64, string, error) {
	row := s.db.QueryRow(`SELECT tick, digest FROM ticks ORDER BY tick DESC LIMIT 1`)
	var tick uint64
	var digest string
	if err := row.Scan(&tick, &digest); err != nil {
		return 0, "", err
	}
	return tick, digest, nil
}

// AuditCount reports rows indexed for one actor.
func (s *SQLiteIndex) AuditCount(actor string) (int, error) {
	row := s.db.QueryRow(`SELECT COUNT(*) FROM audits WHERE actor = ?`, actor)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
