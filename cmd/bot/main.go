package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"

	"monumentwars/internal/match/chat"
	"monumentwars/internal/protocol"
)

func main() {
	var (
		url      = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name     = flag.String("name", "bot", "player name")
		teamID   = flag.String("team", "", "team id (empty joins as spectator)")
		x        = flag.Float64("x", 62, "target block x")
		y        = flag.Float64("y", 10, "target block y")
		z        = flag.Float64("z", 2, "target block z")
		material = flag.String("material", "OBSIDIAN", "target block material")
		every    = flag.Duration("every", time.Second, "break interval")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	target := [3]float64{*x, *y, *z}
	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		Name:            *name,
		Team:            *teamID,
		Pos:             target,
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	frames := make(chan []byte, 64)
	go func() {
		defer close(frames)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			frames <- msg
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	tick := time.NewTicker(*every)
	defer tick.Stop()
	welcomed := false

	for {
		select {
		case <-stop:
			return
		case <-tick.C:
			if !welcomed {
				continue
			}
			brk := protocol.BreakMsg{Type: protocol.TypeBreak, Pos: target, Material: *material}
			if err := conn.WriteJSON(brk); err != nil {
				logger.Printf("send BREAK: %v", err)
				return
			}
		case msg, ok := <-frames:
			if !ok {
				return
			}
			if done := handleFrame(logger, msg, &welcomed); done {
				return
			}
		}
	}
}

// handleFrame logs one server frame and reports whether the bot should stop.
func handleFrame(logger *log.Logger, msg []byte, welcomed *bool) bool {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return false
	}
	switch base.Type {
	case protocol.TypeWelcome:
		var w protocol.WelcomeMsg
		if err := json.Unmarshal(msg, &w); err != nil {
			return false
		}
		*welcomed = true
		logger.Printf("WELCOME player_id=%s team=%s map=%q match=%s", w.PlayerID, w.Team.ID, w.Map, w.MatchID)
	case protocol.TypeScoreboard:
		var sb protocol.ScoreboardMsg
		if err := json.Unmarshal(msg, &sb); err != nil {
			return false
		}
		for _, l := range sb.Lines {
			logger.Printf("  [%d] %s", l.Index, chat.Strip(l.Text))
		}
	case protocol.TypeChat:
		var c protocol.ChatMsg
		if err := json.Unmarshal(msg, &c); err == nil {
			logger.Printf("CHAT %s", c.Plain)
		}
	case protocol.TypeBreakAck:
		var a protocol.BreakAckMsg
		if err := json.Unmarshal(msg, &a); err == nil && !a.Allowed {
			logger.Printf("break at %v refused", a.Pos)
		}
	case protocol.TypeError:
		var e protocol.ErrorMsg
		_ = json.Unmarshal(msg, &e)
		logger.Printf("ERROR %s: %s", e.Code, e.Message)
		return !*welcomed
	case protocol.TypeMatchEnd:
		var e protocol.MatchEndMsg
		_ = json.Unmarshal(msg, &e)
		logger.Printf("MATCH_END winner=%q", e.Winner)
		return true
	}
	return false
}
