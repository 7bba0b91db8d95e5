package main

import (
	"encoding/json"
	"io"
	"log"
	"testing"

	"monumentwars/internal/protocol"
)

func frame(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func TestHandleFrame(t *testing.T) {
	quiet := log.New(io.Discard, "", 0)
	welcomed := false

	errMsg := frame(t, protocol.ErrorMsg{Type: protocol.TypeError, Code: protocol.ErrTeamFull, Message: "red"})
	if !handleFrame(quiet, errMsg, &welcomed) {
		t.Fatalf("handshake error should stop the bot")
	}

	if handleFrame(quiet, frame(t, protocol.WelcomeMsg{Type: protocol.TypeWelcome, PlayerID: "P1"}), &welcomed) || !welcomed {
		t.Fatalf("welcome not handled")
	}
	if handleFrame(quiet, errMsg, &welcomed) {
		t.Fatalf("error after welcome should not stop the bot")
	}
	if handleFrame(quiet, frame(t, protocol.BreakAckMsg{Type: protocol.TypeBreakAck}), &welcomed) {
		t.Fatalf("break ack should not stop the bot")
	}
	if !handleFrame(quiet, frame(t, protocol.MatchEndMsg{Type: protocol.TypeMatchEnd, Winner: "red"}), &welcomed) {
		t.Fatalf("match end should stop the bot")
	}
	if handleFrame(quiet, []byte("not json"), &welcomed) {
		t.Fatalf("garbage should be ignored")
	}
}
