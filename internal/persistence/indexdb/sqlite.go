package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"monumentwars/internal/catalogs"
	"monumentwars/internal/match"
)

// SQLiteIndex is a queryable secondary index of match events. Writes are
// queued and applied in batches by one goroutine; the JSONL trail stays the
// source of truth, so a full queue drops rows instead of blocking the match.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan match.EventEntry
	wg   sync.WaitGroup
	once sync.Once

	closed  atomic.Bool
	dropped atomic.Uint64
	written atomic.Uint64
}

type Stats struct {
	QueueDepth    int    `json:"queue_depth"`
	QueueCapacity int    `json:"queue_capacity"`
	DropTotal     uint64 `json:"drop_total"`
	WrittenTotal  uint64 `json:"written_total"`
}

type MatchRow struct {
	MatchID   string `json:"match_id"`
	Map       string `json:"map"`
	StartedAt string `json:"started_at"`
	EndedAt   string `json:"ended_at,omitempty"`
	Winner    string `json:"winner,omitempty"`
	Events    int    `json:"events"`
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	return openSQLite(path, 65536)
}

func openSQLite(path string, queue int) (*SQLiteIndex, error) {
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
		db: db,
		ch: make(chan match.EventEntry, queue),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
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
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS matches (
			match_id TEXT PRIMARY KEY,
			map TEXT NOT NULL,
			started_at TEXT NOT NULL,
			ended_at TEXT,
			winner TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS monument_events (
			match_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			kind TEXT NOT NULL,
			monument TEXT NOT NULL,
			actor TEXT NOT NULL,
			actor_name TEXT NOT NULL,
			team TEXT NOT NULL,
			x REAL NOT NULL,
			y REAL NOT NULL,
			z REAL NOT NULL,
			health INTEGER NOT NULL,
			max_health INTEGER NOT NULL,
			at TEXT NOT NULL,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (match_id, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_monument_events_monument ON monument_events(match_id, monument, seq);`,
		`CREATE INDEX IF NOT EXISTS idx_monument_events_actor ON monument_events(actor, match_id);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	_, err := db.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`)
	return err
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

// RecordEvent queues e for indexing. It never blocks.
func (s *SQLiteIndex) RecordEvent(e match.EventEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- e:
	default:
		s.dropped.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:    len(s.ch),
		QueueCapacity: cap(s.ch),
		DropTotal:     s.dropped.Load(),
		WrittenTotal:  s.written.Load(),
	}
}

// UpsertCatalogs stores the material catalog the server validated maps with.
func (s *SQLiteIndex) UpsertCatalogs(cats *catalogs.Catalogs) error {
	if s == nil || cats == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	palette, err := json.Marshal(cats.Blocks.Palette)
	if err != nil {
		return err
	}
	defs, err := json.Marshal(cats.Blocks.Defs)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	if _, err := stmt.Exec("blocks_palette", cats.Blocks.PaletteDigest, string(palette), now); err != nil {
		return err
	}
	if _, err := stmt.Exec("blocks_defs", cats.Blocks.DefsDigest, string(defs), now); err != nil {
		return err
	}
	return tx.Commit()
}

// RecentMatches returns the latest matches, newest first, with their
// monument event counts.
func (s *SQLiteIndex) RecentMatches(ctx context.Context, limit int) ([]MatchRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.match_id, m.map, m.started_at, COALESCE(m.ended_at,''), COALESCE(m.winner,''),
			(SELECT COUNT(*) FROM monument_events e WHERE e.match_id = m.match_id)
		FROM matches m
		ORDER BY m.started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MatchRow
	for rows.Next() {
		var r MatchRow
		if err := rows.Scan(&r.MatchID, &r.Map, &r.StartedAt, &r.EndedAt, &r.Winner, &r.Events); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	startMatch, _ := s.db.Prepare(`INSERT OR IGNORE INTO matches(match_id,map,started_at) VALUES(?,?,?)`)
	endMatch, _ := s.db.Prepare(`INSERT INTO matches(match_id,map,started_at,ended_at,winner) VALUES(?,?,?,?,?)
		ON CONFLICT(match_id) DO UPDATE SET ended_at=excluded.ended_at, winner=excluded.winner`)
	insertEvent, _ := s.db.Prepare(`INSERT OR REPLACE INTO monument_events(match_id,seq,kind,monument,actor,actor_name,team,x,y,z,health,max_health,at,raw_json) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{startMatch, endMatch, insertEvent} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err == nil {
			s.written.Add(uint64(opCount))
		}
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	exec := func(st *sql.Stmt, args ...any) {
		if st == nil || tx == nil {
			return
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback()
			return
		}
		opCount++
	}

	tick := time.NewTicker(commitMaxWait)
	defer tick.Stop()

	for {
		var e match.EventEntry
		select {
		case ev, ok := <-s.ch:
			if !ok {
				commit()
				return
			}
			e = ev
		case <-tick.C:
			if time.Since(lastCommit) >= commitMaxWait {
				commit()
			}
			continue
		}

		begin()
		if tx == nil {
			continue
		}
		switch e.Kind {
		case match.KindMatchStart:
			exec(startMatch, e.MatchID, e.Map, e.Time)
			// Match boundaries commit right away so the admin view is current.
			commit()
			continue
		case match.KindMatchEnd:
			exec(endMatch, e.MatchID, e.Map, e.Time, e.Time, e.Winner)
			commit()
			continue
		case match.KindMonumentDamage, match.KindMonumentDestroy:
			raw, _ := json.Marshal(e)
			exec(insertEvent,
				e.MatchID, int64(e.Seq), e.Kind, e.Monument, e.Actor, e.ActorName, e.Team,
				e.Pos[0], e.Pos[1], e.Pos[2],
				e.Health, e.MaxHealth, e.Time, string(raw),
			)
		}
		if tx != nil && opCount >= commitEvery {
			commit()
		}
	}
}
