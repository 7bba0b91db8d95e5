package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"monumentwars/internal/match"
	"monumentwars/internal/match/chat"
	"monumentwars/internal/match/effects"
	"monumentwars/internal/match/region"
	"monumentwars/internal/match/scoreboard"
	"monumentwars/internal/match/team"
	"monumentwars/internal/protocol"
)

// Server connects viewers to one match runtime. It is also the effect and
// scoreboard sink of that match: every presentation side effect becomes a
// frame queued on the affected viewers' connections.
type Server struct {
	rt  *match.Runtime
	log *log.Logger

	queueSize int
	upgrader  websocket.Upgrader

	mu      sync.Mutex
	viewers map[string]chan []byte

	dropped atomic.Uint64
}

func NewServer(rt *match.Runtime, logger *log.Logger, queueSize int) *Server {
	if logger == nil {
		logger = log.New(log.Writer(), "[ws] ", log.LstdFlags)
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Server{
		rt:        rt,
		log:       logger,
		queueSize: queueSize,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		viewers: map[string]chan []byte{},
	}
}

// SetRuntime binds the server to rt. The server must exist before the match
// does, since the match pushes its effects through it.
func (s *Server) SetRuntime(rt *match.Runtime) { s.rt = rt }

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		playerID, out := s.handshake(conn)
		if playerID == "" {
			return
		}
		defer s.detach(playerID)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			s.handleFrame(playerID, msg)
		}

		select {
		case s.rt.Leave() <- playerID:
		case <-s.rt.Done():
		}
	}
}

func (s *Server) handleFrame(playerID string, msg []byte) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		s.sendError(playerID, protocol.ErrProtoBadRequest, "bad json")
		return
	}
	if base.Type != protocol.TypeMove && base.Type != protocol.TypeBreak {
		s.sendError(playerID, protocol.ErrProtoBadRequest, "unsupported type "+base.Type)
		return
	}
	if err := protocol.ValidateInbound(base.Type, msg); err != nil {
		s.sendError(playerID, protocol.ErrProtoBadRequest, err.Error())
		return
	}

	switch base.Type {
	case protocol.TypeMove:
		var mv protocol.MoveMsg
		if err := json.Unmarshal(msg, &mv); err != nil {
			return
		}
		select {
		case s.rt.Move() <- match.MoveRequest{PlayerID: playerID, Pos: region.FromArray(mv.Pos)}:
		case <-s.rt.Done():
		}

	case protocol.TypeBreak:
		var br protocol.BreakMsg
		if err := json.Unmarshal(msg, &br); err != nil {
			return
		}
		resp := make(chan match.BreakResponse, 1)
		select {
		case s.rt.Break() <- match.BreakRequest{PlayerID: playerID, Pos: region.FromArray(br.Pos), Material: br.Material, Resp: resp}:
		case <-s.rt.Done():
			s.sendError(playerID, protocol.ErrMatchEnded, "match is over")
			return
		}
		select {
		case r := <-resp:
			s.send(playerID, protocol.BreakAckMsg{Type: protocol.TypeBreakAck, Pos: br.Pos, Allowed: r.Allowed})
		case <-s.rt.Done():
		}
	}
}

func (s *Server) handshake(conn *websocket.Conn) (playerID string, out chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		closeWith(conn, "expected HELLO")
		return "", nil
	}
	if err := protocol.ValidateInbound(protocol.TypeHello, msg); err != nil {
		_ = writeJSON(conn, protocol.ErrorMsg{Type: protocol.TypeError, Code: protocol.ErrProtoBadRequest, Message: err.Error()})
		closeWith(conn, "bad HELLO")
		return "", nil
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return "", nil
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = writeJSON(conn, protocol.ErrorMsg{Type: protocol.TypeError, Code: protocol.ErrProtoVersion, Message: "want " + protocol.Version})
		closeWith(conn, "bad protocol_version")
		return "", nil
	}

	out = make(chan []byte, s.queueSize)
	respCh := make(chan match.JoinResponse, 1)
	req := match.JoinRequest{
		Name:   hello.Name,
		TeamID: hello.Team,
		Pos:    region.FromArray(hello.Pos),
		Attach: func(id string) { s.attach(id, out) },
		Resp:   respCh,
	}
	select {
	case s.rt.Join() <- req:
	case <-time.After(5 * time.Second):
		_ = writeJSON(conn, protocol.ErrorMsg{Type: protocol.TypeError, Code: protocol.ErrMatchBusy, Message: "join timed out"})
		return "", nil
	case <-s.rt.Done():
		_ = writeJSON(conn, protocol.ErrorMsg{Type: protocol.TypeError, Code: protocol.ErrMatchEnded, Message: "match is over"})
		return "", nil
	}
	var resp match.JoinResponse
	select {
	case resp = <-respCh:
	case <-s.rt.Done():
		return "", nil
	}
	if resp.Err != nil {
		_ = writeJSON(conn, protocol.ErrorMsg{Type: protocol.TypeError, Code: joinErrorCode(resp.Err), Message: resp.Err.Error()})
		closeWith(conn, "join rejected")
		return "", nil
	}

	m := s.rt.Match()
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		MatchID:         m.ID(),
		PlayerID:        resp.PlayerID,
		Team:            teamRef(resp.Team),
		Map:             m.Map.Name,
	}
	for _, t := range m.Teams.All() {
		welcome.Teams = append(welcome.Teams, teamRef(t))
	}
	if err := writeJSON(conn, welcome); err != nil {
		s.detach(resp.PlayerID)
		select {
		case s.rt.Leave() <- resp.PlayerID:
		case <-s.rt.Done():
		}
		return "", nil
	}
	s.log.Printf("viewer %s joined as %q team=%s", resp.PlayerID, hello.Name, resp.Team.ID)
	return resp.PlayerID, out
}

func joinErrorCode(err error) string {
	switch {
	case errors.Is(err, team.ErrTeamFull):
		return protocol.ErrTeamFull
	case errors.Is(err, team.ErrUnknownTeam):
		return protocol.ErrUnknownTeam
	case errors.Is(err, match.ErrMatchEnded):
		return protocol.ErrMatchEnded
	default:
		return protocol.ErrInternal
	}
}

func teamRef(t *team.Team) protocol.TeamRef {
	if t == nil {
		return protocol.TeamRef{}
	}
	return protocol.TeamRef{ID: t.ID, Alias: t.Alias, Color: string(t.Color)}
}

func (s *Server) attach(id string, out chan []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewers[id] = out
}

func (s *Server) detach(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.viewers, id)
}

// Viewers returns the connected player ids, sorted.
func (s *Server) Viewers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.viewers))
	for id := range s.viewers {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Dropped counts frames discarded because a viewer queue was full.
func (s *Server) Dropped() uint64 { return s.dropped.Load() }

func (s *Server) send(id string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	s.mu.Lock()
	out, ok := s.viewers[id]
	s.mu.Unlock()
	if ok {
		s.enqueue(out, b)
	}
}

func (s *Server) sendAll(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	s.mu.Lock()
	outs := make([]chan []byte, 0, len(s.viewers))
	for _, out := range s.viewers {
		outs = append(outs, out)
	}
	s.mu.Unlock()
	for _, out := range outs {
		s.enqueue(out, b)
	}
}

func (s *Server) enqueue(out chan []byte, b []byte) {
	select {
	case out <- b:
	default:
		s.dropped.Add(1)
	}
}

func (s *Server) sendError(id, code, message string) {
	s.send(id, protocol.ErrorMsg{Type: protocol.TypeError, Code: code, Message: message})
}

func (s *Server) Broadcast(text string) {
	s.sendAll(protocol.ChatMsg{Type: protocol.TypeChat, Text: text, Plain: chat.Strip(text)})
}

func (s *Server) Message(viewerID, text string) {
	s.send(viewerID, protocol.ChatMsg{Type: protocol.TypeChat, Text: text, Plain: chat.Strip(text), Private: true})
}

func (s *Server) PlayEffectAt(at region.Vec3, fw effects.Firework) {
	s.sendAll(protocol.EffectMsg{
		Type:     protocol.TypeEffect,
		Effect:   "FIREWORK_" + fw.Type,
		Pos:      at.ToArray(),
		Flicker:  fw.Flicker,
		ColorRGB: fw.Color,
	})
}

func (s *Server) PlaySoundAt(viewerID string, at region.Vec3, sound effects.Sound, volume, pitch float32) {
	s.send(viewerID, protocol.SoundMsg{
		Type:   protocol.TypeSound,
		Sound:  string(sound),
		Pos:    at.ToArray(),
		Volume: volume,
		Pitch:  pitch,
	})
}

func (s *Server) PushScoreboard(viewerID, title string, lines []scoreboard.Line) {
	msg := protocol.ScoreboardMsg{Type: protocol.TypeScoreboard, Title: title, Lines: make([]protocol.ScoreboardLine, 0, len(lines))}
	for _, l := range lines {
		msg.Lines = append(msg.Lines, protocol.ScoreboardLine{Index: l.Index, Text: l.Text})
	}
	s.send(viewerID, msg)
}

// MatchEnded tells every viewer the result.
func (s *Server) MatchEnded(ev match.EndEvent) {
	msg := protocol.MatchEndMsg{Type: protocol.TypeMatchEnd, MatchID: ev.MatchID}
	if ev.Winner != nil {
		msg.Winner = ev.Winner.ID
	}
	s.sendAll(msg)
}

func closeWith(conn *websocket.Conn, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason), time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
