package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

type eventRow struct {
	MatchID   string  `json:"match_id"`
	Seq       int64   `json:"seq"`
	Kind      string  `json:"kind"`
	Monument  string  `json:"monument"`
	Actor     string  `json:"actor"`
	ActorName string  `json:"actor_name"`
	Team      string  `json:"team"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Z         float64 `json:"z"`
	Health    int     `json:"health"`
	MaxHealth int     `json:"max_health"`
	At        string  `json:"at"`
}

type damagerRow struct {
	Actor      string `json:"actor"`
	ActorName  string `json:"actor_name"`
	Team       string `json:"team"`
	Damage     int    `json:"damage"`
	Destroyed  int    `json:"destroyed"`
	MatchCount int    `json:"matches"`
}

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (default: <data>/index/match_index.sqlite)")
	matchID := fs.String("match", "", "match_id filter (events)")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	q := "matches"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "index", "match_index.sqlite")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	var rows []any
	switch q {
	case "matches":
		rows, err = queryMatches(db, *limit)
	case "events":
		rows, err = queryEvents(db, *matchID, *limit)
	case "damagers":
		rows, err = queryDamagers(db, *limit)
	default:
		fmt.Fprintln(os.Stderr, "unknown query:", q)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
	for _, r := range rows {
		printJSON(r)
	}
}

func queryMatches(db *sql.DB, limit int) ([]any, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.Query(`SELECT match_id,map,started_at,COALESCE(ended_at,''),COALESCE(winner,'') FROM matches ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []any
	for rows.Next() {
		var r struct {
			MatchID   string `json:"match_id"`
			Map       string `json:"map"`
			StartedAt string `json:"started_at"`
			EndedAt   string `json:"ended_at,omitempty"`
			Winner    string `json:"winner,omitempty"`
		}
		if err := rows.Scan(&r.MatchID, &r.Map, &r.StartedAt, &r.EndedAt, &r.Winner); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func queryEvents(db *sql.DB, matchID string, limit int) ([]any, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT match_id,seq,kind,monument,actor,actor_name,team,x,y,z,health,max_health,at FROM monument_events`
	var args []any
	if matchID != "" {
		query += ` WHERE match_id=?`
		args = append(args, matchID)
	}
	query += ` ORDER BY at, seq LIMIT ?`
	args = append(args, limit)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []any
	for rows.Next() {
		var r eventRow
		if err := rows.Scan(&r.MatchID, &r.Seq, &r.Kind, &r.Monument, &r.Actor, &r.ActorName, &r.Team, &r.X, &r.Y, &r.Z, &r.Health, &r.MaxHealth, &r.At); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// queryDamagers ranks actors across all indexed matches by monument hits.
func queryDamagers(db *sql.DB, limit int) ([]any, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.Query(`
		SELECT actor, MAX(actor_name), MAX(team),
			SUM(CASE WHEN kind='MONUMENT_DAMAGE' THEN 1 ELSE 0 END),
			SUM(CASE WHEN kind='MONUMENT_DESTROY' THEN 1 ELSE 0 END),
			COUNT(DISTINCT match_id)
		FROM monument_events
		GROUP BY actor
		ORDER BY 4 DESC, 5 DESC, actor
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []any
	for rows.Next() {
		var r damagerRow
		if err := rows.Scan(&r.Actor, &r.ActorName, &r.Team, &r.Damage, &r.Destroyed, &r.MatchCount); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
