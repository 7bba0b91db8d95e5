package match

const (
	KindMatchStart      = "MATCH_START"
	KindMatchEnd        = "MATCH_END"
	KindMonumentDamage  = "MONUMENT_DAMAGE"
	KindMonumentDestroy = "MONUMENT_DESTROY"
)

// EventEntry is one line of the durable match trail.
type EventEntry struct {
	MatchID   string     `json:"match_id"`
	Map       string     `json:"map"`
	Seq       uint64     `json:"seq"`
	Time      string     `json:"time"`
	Kind      string     `json:"kind"`
	Monument  string     `json:"monument,omitempty"`
	Actor     string     `json:"actor,omitempty"`
	ActorName string     `json:"actor_name,omitempty"`
	Team      string     `json:"team,omitempty"`
	Pos       [3]float64 `json:"pos"`
	Health    int        `json:"health,omitempty"`
	MaxHealth int        `json:"max_health,omitempty"`
	Winner    string     `json:"winner,omitempty"`
}

// Recorder persists match events. Implemented in internal/persistence/*.
type Recorder interface {
	RecordEvent(e EventEntry) error
}
