package ws

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"monumentwars/internal/match"
	"monumentwars/internal/match/bus"
	"monumentwars/internal/match/dtm"
	"monumentwars/internal/match/mapinfo"
	"monumentwars/internal/protocol"
)

const arena = `{
  "name": "Arena",
  "teams": [
    {"id": "red", "alias": "Red", "color": "red", "max": 1},
    {"id": "blue", "alias": "Blue", "color": "blue"}
  ],
  "dtm": {"monuments": [
    {"name": "Blue Core", "region": {"type": "cuboid", "min": [0, 0, 0], "max": [2, 2, 2]},
     "teams": "blue", "materials": "obsidian", "health": 4}
  ]}
}`

func startServer(t *testing.T) (*Server, string) {
	t.Helper()
	info, err := mapinfo.Parse([]byte(arena))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	quiet := log.New(io.Discard, "", 0)
	srv := NewServer(nil, quiet, 64)
	m, err := match.New(match.Options{Map: info, Logger: quiet, Effects: srv, Boards: srv})
	if err != nil {
		t.Fatalf("match.New: %v", err)
	}
	section, _ := info.Section(dtm.Section)
	m.AddModule(dtm.New(dtm.DepsFromMatch(m), section))
	m.Bus.Subscribe(match.TopicEnd, func(ev bus.Event) {
		if e, ok := ev.(match.EndEvent); ok {
			srv.MatchEnded(e)
		}
	})
	if err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	rt := match.NewRuntime(m)
	srv.SetRuntime(rt)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = rt.Run(ctx) }()

	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		hs.Close()
		cancel()
	})
	return srv, "ws" + strings.TrimPrefix(hs.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	if err := conn.WriteJSON(v); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func read(t *testing.T, conn *websocket.Conn) (string, []byte) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, b, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	base, err := protocol.DecodeBase(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return base.Type, b
}

// readUntil reads frames until one of type want arrives and returns the
// types seen on the way.
func readUntil(t *testing.T, conn *websocket.Conn, want string) ([]string, []byte) {
	t.Helper()
	var seen []string
	for i := 0; i < 32; i++ {
		typ, b := read(t, conn)
		if typ == want {
			return seen, b
		}
		seen = append(seen, typ)
	}
	t.Fatalf("no %s frame, saw %v", want, seen)
	return nil, nil
}

func hello(name, teamID string) protocol.HelloMsg {
	return protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, Name: name, Team: teamID}
}

func TestServer_HandshakeWelcomeAndScoreboard(t *testing.T) {
	srv, url := startServer(t)
	conn := dial(t, url)
	send(t, conn, hello("alice", "red"))

	typ, b := read(t, conn)
	if typ != protocol.TypeWelcome {
		t.Fatalf("first frame=%s", typ)
	}
	var w protocol.WelcomeMsg
	_ = json.Unmarshal(b, &w)
	if w.PlayerID != "P1" || w.Team.ID != "red" || w.Map != "Arena" || len(w.Teams) != 3 {
		t.Fatalf("welcome=%+v", w)
	}

	typ, b = read(t, conn)
	if typ != protocol.TypeScoreboard {
		t.Fatalf("second frame=%s", typ)
	}
	var sb protocol.ScoreboardMsg
	_ = json.Unmarshal(b, &sb)
	if len(sb.Lines) != 3 || sb.Lines[1].Text != "  §a100% §fBlue Core" {
		t.Fatalf("scoreboard=%+v", sb)
	}
	if got := srv.Viewers(); len(got) != 1 || got[0] != "P1" {
		t.Fatalf("viewers=%v", got)
	}
}

func TestServer_RejectsBadHello(t *testing.T) {
	_, url := startServer(t)

	conn := dial(t, url)
	send(t, conn, map[string]any{"type": "HELLO", "protocol_version": "0.1", "name": "x"})
	typ, b := read(t, conn)
	var e protocol.ErrorMsg
	_ = json.Unmarshal(b, &e)
	if typ != protocol.TypeError || e.Code != protocol.ErrProtoVersion {
		t.Fatalf("frame=%s %+v", typ, e)
	}

	conn2 := dial(t, url)
	send(t, conn2, hello("bob", "green"))
	typ, b = read(t, conn2)
	_ = json.Unmarshal(b, &e)
	if typ != protocol.TypeError || e.Code != protocol.ErrUnknownTeam {
		t.Fatalf("frame=%s %+v", typ, e)
	}
}

func TestServer_TeamFull(t *testing.T) {
	_, url := startServer(t)
	a := dial(t, url)
	send(t, a, hello("alice", "red"))
	readUntil(t, a, protocol.TypeScoreboard)

	b := dial(t, url)
	send(t, b, hello("bob", "red"))
	typ, raw := read(t, b)
	var e protocol.ErrorMsg
	_ = json.Unmarshal(raw, &e)
	if typ != protocol.TypeError || e.Code != protocol.ErrTeamFull {
		t.Fatalf("frame=%s %+v", typ, e)
	}
}

func TestServer_BreakDamagesMonument(t *testing.T) {
	_, url := startServer(t)
	red := dial(t, url)
	send(t, red, hello("alice", "red"))
	readUntil(t, red, protocol.TypeScoreboard)

	send(t, red, protocol.BreakMsg{Type: protocol.TypeBreak, Pos: [3]float64{1, 1, 1}, Material: "OBSIDIAN"})
	seen, raw := readUntil(t, red, protocol.TypeBreakAck)
	var ack protocol.BreakAckMsg
	_ = json.Unmarshal(raw, &ack)
	if !ack.Allowed {
		t.Fatalf("break rejected")
	}
	joined := strings.Join(seen, ",")
	for _, want := range []string{protocol.TypeScoreboard, protocol.TypeChat, protocol.TypeEffect} {
		if !strings.Contains(joined, want) {
			t.Fatalf("missing %s in %v", want, seen)
		}
	}
}

func TestServer_OwnerBreakGetsNotice(t *testing.T) {
	_, url := startServer(t)
	blue := dial(t, url)
	send(t, blue, hello("bea", "blue"))
	readUntil(t, blue, protocol.TypeScoreboard)

	send(t, blue, protocol.BreakMsg{Type: protocol.TypeBreak, Pos: [3]float64{1, 1, 1}, Material: "OBSIDIAN"})
	typ, raw := read(t, blue)
	var c protocol.ChatMsg
	_ = json.Unmarshal(raw, &c)
	if typ != protocol.TypeChat || !c.Private || c.Plain != "You cannot damage a monument you own." {
		t.Fatalf("frame=%s %+v", typ, c)
	}
	typ, raw = read(t, blue)
	var ack protocol.BreakAckMsg
	_ = json.Unmarshal(raw, &ack)
	if typ != protocol.TypeBreakAck || ack.Allowed {
		t.Fatalf("frame=%s %+v", typ, ack)
	}
}

func TestServer_DestroyAnnouncesMatchEnd(t *testing.T) {
	_, url := startServer(t)
	red := dial(t, url)
	send(t, red, hello("alice", "red"))
	readUntil(t, red, protocol.TypeScoreboard)

	for i := 0; i < 4; i++ {
		send(t, red, protocol.BreakMsg{Type: protocol.TypeBreak, Pos: [3]float64{1, 1, 1}, Material: "OBSIDIAN"})
	}
	_, raw := readUntil(t, red, protocol.TypeMatchEnd)
	var end protocol.MatchEndMsg
	_ = json.Unmarshal(raw, &end)
	if end.Winner != "red" {
		t.Fatalf("end=%+v", end)
	}
}

func TestServer_InvalidFrameGetsError(t *testing.T) {
	_, url := startServer(t)
	conn := dial(t, url)
	send(t, conn, hello("alice", ""))
	readUntil(t, conn, protocol.TypeScoreboard)

	send(t, conn, map[string]any{"type": "BREAK", "pos": []float64{1, 2}})
	typ, raw := read(t, conn)
	var e protocol.ErrorMsg
	_ = json.Unmarshal(raw, &e)
	if typ != protocol.TypeError || e.Code != protocol.ErrProtoBadRequest {
		t.Fatalf("frame=%s %+v", typ, e)
	}
}
