package indexdb

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"monumentwars/internal/catalogs"
	"monumentwars/internal/match"
)

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan match.EventEntry, 1)}
	s.ch <- match.EventEntry{Kind: match.KindMatchStart}

	_ = s.RecordEvent(match.EventEntry{Kind: match.KindMonumentDamage})
	_ = s.RecordEvent(match.EventEntry{Kind: match.KindMonumentDestroy})

	st := s.Stats()
	if st.DropTotal != 2 {
		t.Fatalf("DropTotal=%d want=2", st.DropTotal)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestSQLiteIndex_RecordsMatchAndMonumentEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index", "match_index.sqlite")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	events := []match.EventEntry{
		{MatchID: "m1", Map: "Twin Cores", Seq: 1, Time: "2026-03-01T10:00:00Z", Kind: match.KindMatchStart},
		{MatchID: "m1", Map: "Twin Cores", Seq: 2, Time: "2026-03-01T10:01:00Z", Kind: match.KindMonumentDamage,
			Monument: "Blue Core", Actor: "P1", ActorName: "alice", Team: "red", Pos: [3]float64{1, 2, 3}, Health: 19, MaxHealth: 20},
		{MatchID: "m1", Map: "Twin Cores", Seq: 3, Time: "2026-03-01T10:02:00Z", Kind: match.KindMonumentDestroy,
			Monument: "Blue Core", Actor: "P1", ActorName: "alice", Team: "red", MaxHealth: 20},
		{MatchID: "m1", Map: "Twin Cores", Seq: 4, Time: "2026-03-01T10:02:00Z", Kind: match.KindMatchEnd, Winner: "red"},
	}
	for _, e := range events {
		if err := idx.RecordEvent(e); err != nil {
			t.Fatalf("RecordEvent: %v", err)
		}
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()

	var winner, ended string
	if err := db.QueryRow(`SELECT winner, ended_at FROM matches WHERE match_id='m1'`).Scan(&winner, &ended); err != nil {
		t.Fatalf("Scan match: %v", err)
	}
	if winner != "red" || ended != "2026-03-01T10:02:00Z" {
		t.Fatalf("winner=%q ended=%q", winner, ended)
	}

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM monument_events WHERE match_id='m1' AND monument='Blue Core'`).Scan(&n); err != nil {
		t.Fatalf("Scan count: %v", err)
	}
	if n != 2 {
		t.Fatalf("monument events=%d want 2", n)
	}
	var (
		health int
		y      float64
		actor  string
	)
	if err := db.QueryRow(`SELECT health, y, actor_name FROM monument_events WHERE seq=2`).Scan(&health, &y, &actor); err != nil {
		t.Fatalf("Scan event: %v", err)
	}
	if health != 19 || y != 2 || actor != "alice" {
		t.Fatalf("health=%d y=%v actor=%q", health, y, actor)
	}
}

func TestSQLiteIndex_RecentMatches(t *testing.T) {
	idx, err := OpenSQLite(filepath.Join(t.TempDir(), "index.sqlite"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer idx.Close()

	_ = idx.RecordEvent(match.EventEntry{MatchID: "a", Map: "A", Seq: 1, Time: "2026-03-01T10:00:00Z", Kind: match.KindMatchStart})
	_ = idx.RecordEvent(match.EventEntry{MatchID: "b", Map: "B", Seq: 1, Time: "2026-03-01T11:00:00Z", Kind: match.KindMatchStart})
	_ = idx.RecordEvent(match.EventEntry{MatchID: "b", Map: "B", Seq: 2, Time: "2026-03-01T11:05:00Z", Kind: match.KindMatchEnd, Winner: "blue"})

	// Match boundaries commit immediately; wait for the writer to drain.
	var rows []MatchRow
	for i := 0; i < 200; i++ {
		rows, err = idx.RecentMatches(context.Background(), 10)
		if err != nil {
			t.Fatalf("RecentMatches: %v", err)
		}
		if len(rows) == 2 && rows[0].Winner != "" {
			break
		}
		sleepBriefly()
	}
	if len(rows) != 2 || rows[0].MatchID != "b" || rows[0].Winner != "blue" || rows[1].MatchID != "a" {
		t.Fatalf("rows=%+v", rows)
	}
}

func TestSQLiteIndex_UpsertCatalogs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.sqlite")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	cats := &catalogs.Catalogs{Blocks: catalogs.BlockCatalog{
		Palette:       []string{"AIR", "OBSIDIAN"},
		Defs:          map[string]catalogs.BlockDef{"AIR": {ID: "AIR"}, "OBSIDIAN": {ID: "OBSIDIAN", Solid: true, Breakable: true}},
		PaletteDigest: "p1",
		DefsDigest:    "d1",
	}}
	if err := idx.UpsertCatalogs(cats); err != nil {
		t.Fatalf("UpsertCatalogs: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, _ := sql.Open("sqlite", path)
	defer db.Close()
	var digest string
	if err := db.QueryRow(`SELECT digest FROM catalogs WHERE name='blocks_palette'`).Scan(&digest); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if digest != "p1" {
		t.Fatalf("digest=%q", digest)
	}
}

func sleepBriefly() { time.Sleep(10 * time.Millisecond) }
