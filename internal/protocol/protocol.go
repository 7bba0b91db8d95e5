package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeHello      = "HELLO"
	TypeWelcome    = "WELCOME"
	TypeScoreboard = "SCOREBOARD"
	TypeChat       = "CHAT"
	TypeEffect     = "EFFECT"
	TypeSound      = "SOUND"
	TypeMove       = "MOVE"
	TypeBreak      = "BREAK"
	TypeBreakAck   = "BREAK_ACK"
	TypeMatchEnd   = "MATCH_END"
	TypeError      = "ERROR"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
