package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"monumentwars/internal/match"
	"monumentwars/internal/match/dtm"
	"monumentwars/internal/match/monument"
	"monumentwars/internal/persistence/indexdb"
	"monumentwars/internal/transport/ws"
)

type serverState struct {
	rt        *match.Runtime
	dtm       *dtm.Controller
	viewers   *ws.Server
	index     *indexdb.SQLiteIndex
	adminHTTP bool
}

type matchView struct {
	MatchID   string           `json:"match_id"`
	Map       string           `json:"map"`
	State     string           `json:"state"`
	Winner    string           `json:"winner,omitempty"`
	Players   int              `json:"players"`
	Viewers   []string         `json:"viewers"`
	Monuments []monument.State `json:"monuments"`
}

// view reads the match through the runtime loop. Once the runtime has
// stopped the match no longer changes, so it is read directly.
func (s serverState) view(ctx context.Context) matchView {
	var got matchView
	err := s.rt.Do(ctx, func(m *match.Match) { got = s.read(m) })

	var v matchView
	switch {
	case err == nil:
		v = got
	case errors.Is(err, match.ErrStopped):
		v = s.read(s.rt.Match())
	}
	v.Viewers = s.viewers.Viewers()
	return v
}

func (s serverState) read(m *match.Match) matchView {
	v := matchView{
		MatchID:   m.ID(),
		Map:       m.Map.Name,
		State:     m.State().String(),
		Players:   m.Roster.Len(),
		Monuments: s.dtm.States(),
	}
	if w, ok := m.Winner(); ok && w != nil {
		v.Winner = w.ID
	}
	return v
}

func newMux(s serverState) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(rw, s.view(ctx), s.viewers.Dropped(), s.index)
	})

	if s.adminHTTP {
		// Local-only admin endpoints.
		mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel()
			resp := struct {
				Match   matchView          `json:"match"`
				Index   *indexdb.Stats     `json:"index,omitempty"`
				Recent  []indexdb.MatchRow `json:"recent_matches,omitempty"`
				Errored string             `json:"error,omitempty"`
			}{Match: s.view(ctx)}
			if s.index != nil {
				st := s.index.Stats()
				resp.Index = &st
				recent, err := s.index.RecentMatches(ctx, 20)
				if err != nil {
					resp.Errored = err.Error()
				}
				resp.Recent = recent
			}
			rw.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(rw).Encode(resp)
		})
		mux.HandleFunc("/admin/v1/monuments/", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			name := strings.TrimPrefix(r.URL.Path, "/admin/v1/monuments/")
			ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel()
			for _, st := range s.view(ctx).Monuments {
				if st.Name != name {
					continue
				}
				rw.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(rw).Encode(st)
				return
			}
			http.Error(rw, "unknown monument", http.StatusNotFound)
		})
	}
	mux.HandleFunc("/v1/ws", s.viewers.Handler())
	return mux
}

func writeMetrics(rw http.ResponseWriter, v matchView, droppedFrames uint64, idx *indexdb.SQLiteIndex) {
	ended := 0
	if v.State == match.StateEnded.String() {
		ended = 1
	}
	fmt.Fprintf(rw, "# HELP monumentwars_match_ended Whether the match has ended.\n")
	fmt.Fprintf(rw, "# TYPE monumentwars_match_ended gauge\n")
	fmt.Fprintf(rw, "monumentwars_match_ended{match=%q,map=%q} %d\n", v.MatchID, v.Map, ended)

	fmt.Fprintf(rw, "# HELP monumentwars_players Players currently in the match.\n")
	fmt.Fprintf(rw, "# TYPE monumentwars_players gauge\n")
	fmt.Fprintf(rw, "monumentwars_players{match=%q} %d\n", v.MatchID, v.Players)

	fmt.Fprintf(rw, "# HELP monumentwars_viewers Connected viewer sockets.\n")
	fmt.Fprintf(rw, "# TYPE monumentwars_viewers gauge\n")
	fmt.Fprintf(rw, "monumentwars_viewers{match=%q} %d\n", v.MatchID, len(v.Viewers))

	fmt.Fprintf(rw, "# HELP monumentwars_ws_dropped_frames_total Frames dropped on full viewer queues.\n")
	fmt.Fprintf(rw, "# TYPE monumentwars_ws_dropped_frames_total counter\n")
	fmt.Fprintf(rw, "monumentwars_ws_dropped_frames_total %d\n", droppedFrames)

	fmt.Fprintf(rw, "# HELP monumentwars_monument_health Monument health points.\n")
	fmt.Fprintf(rw, "# TYPE monumentwars_monument_health gauge\n")
	for _, m := range v.Monuments {
		fmt.Fprintf(rw, "monumentwars_monument_health{match=%q,monument=%q} %d\n", v.MatchID, m.Name, m.Health)
	}
	fmt.Fprintf(rw, "# HELP monumentwars_monument_alive Whether the monument still stands.\n")
	fmt.Fprintf(rw, "# TYPE monumentwars_monument_alive gauge\n")
	for _, m := range v.Monuments {
		alive := 0
		if m.Alive {
			alive = 1
		}
		fmt.Fprintf(rw, "monumentwars_monument_alive{match=%q,monument=%q} %d\n", v.MatchID, m.Name, alive)
	}

	if idx == nil {
		return
	}
	s := idx.Stats()
	fmt.Fprintf(rw, "# HELP monumentwars_index_queue_depth Pending index writes.\n")
	fmt.Fprintf(rw, "# TYPE monumentwars_index_queue_depth gauge\n")
	fmt.Fprintf(rw, "monumentwars_index_queue_depth %d\n", s.QueueDepth)

	fmt.Fprintf(rw, "# HELP monumentwars_index_dropped_total Index writes dropped on a full queue.\n")
	fmt.Fprintf(rw, "# TYPE monumentwars_index_dropped_total counter\n")
	fmt.Fprintf(rw, "monumentwars_index_dropped_total %d\n", s.DropTotal)

	fmt.Fprintf(rw, "# HELP monumentwars_index_written_total Index writes committed.\n")
	fmt.Fprintf(rw, "# TYPE monumentwars_index_written_total counter\n")
	fmt.Fprintf(rw, "monumentwars_index_written_total %d\n", s.WrittenTotal)
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
