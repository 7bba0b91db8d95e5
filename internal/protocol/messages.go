package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	Name            string     `json:"name"`
	Team            string     `json:"team,omitempty"`
	Pos             [3]float64 `json:"pos"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string    `json:"type"`
	ProtocolVersion string    `json:"protocol_version"`
	MatchID         string    `json:"match_id"`
	PlayerID        string    `json:"player_id"`
	Team            TeamRef   `json:"team"`
	Map             string    `json:"map"`
	Teams           []TeamRef `json:"teams"`
}

type TeamRef struct {
	ID    string `json:"id"`
	Alias string `json:"alias"`
	Color string `json:"color"`
}

// SCOREBOARD (server -> client): the full committed sidebar of one viewer.
type ScoreboardMsg struct {
	Type  string           `json:"type"`
	Title string           `json:"title"`
	Lines []ScoreboardLine `json:"lines"`
}

type ScoreboardLine struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// CHAT (server -> client). Private is set for notices addressed to one player.
type ChatMsg struct {
	Type    string `json:"type"`
	Text    string `json:"text"`
	Plain   string `json:"plain"`
	Private bool   `json:"private,omitempty"`
}

type EffectMsg struct {
	Type     string     `json:"type"`
	Effect   string     `json:"effect"`
	Pos      [3]float64 `json:"pos"`
	Flicker  bool       `json:"flicker"`
	ColorRGB [3]uint8   `json:"color_rgb"`
}

type SoundMsg struct {
	Type   string     `json:"type"`
	Sound  string     `json:"sound"`
	Pos    [3]float64 `json:"pos"`
	Volume float32    `json:"volume"`
	Pitch  float32    `json:"pitch"`
}

// MOVE (client -> server)
type MoveMsg struct {
	Type string     `json:"type"`
	Pos  [3]float64 `json:"pos"`
}

// BREAK (client -> server)
type BreakMsg struct {
	Type     string     `json:"type"`
	Pos      [3]float64 `json:"pos"`
	Material string     `json:"material"`
}

type BreakAckMsg struct {
	Type    string     `json:"type"`
	Pos     [3]float64 `json:"pos"`
	Allowed bool       `json:"allowed"`
}

type MatchEndMsg struct {
	Type    string `json:"type"`
	MatchID string `json:"match_id"`
	Winner  string `json:"winner,omitempty"`
}

type ErrorMsg struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
