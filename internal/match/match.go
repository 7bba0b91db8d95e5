// Package match owns the lifecycle of one match: its registries, the event
// bus, the loaded game-mode modules and the final result.
package match

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"monumentwars/internal/match/bus"
	"monumentwars/internal/match/effects"
	"monumentwars/internal/match/mapinfo"
	"monumentwars/internal/match/player"
	"monumentwars/internal/match/region"
	"monumentwars/internal/match/scoreboard"
	"monumentwars/internal/match/team"
)

const (
	TopicStart bus.Topic = "match.start"
	TopicEnd   bus.Topic = "match.end"
)

type StartEvent struct{ MatchID string }

func (StartEvent) Topic() bus.Topic { return TopicStart }

type EndEvent struct {
	MatchID string
	Winner  *team.Team
}

func (EndEvent) Topic() bus.Topic { return TopicEnd }

type State int

const (
	StatePending State = iota
	StateRunning
	StateEnded
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "PENDING"
	case StateRunning:
		return "RUNNING"
	case StateEnded:
		return "ENDED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Module is a game-mode component loaded for the lifetime of one match.
type Module interface {
	Name() string
	Load() error
	Unload()
}

type Options struct {
	Map             *mapinfo.MapInfo
	Logger          *log.Logger
	Effects         effects.Sink
	Boards          scoreboard.Sink
	ScoreboardTitle string
	Recorders       []Recorder
}

type Match struct {
	id  string
	log *log.Logger

	Map         *mapinfo.MapInfo
	Teams       *team.Registry
	Regions     *region.Registry
	Bus         *bus.Bus
	Roster      *player.Roster
	Scoreboards *scoreboard.Manager
	Effects     effects.Sink

	boards    scoreboard.Sink
	recorders []Recorder
	seq       atomic.Uint64

	mu        sync.Mutex
	state     State
	winner    *team.Team
	endedAt   time.Time
	modules   []Module
	loaded    []Module
	unloadOne sync.Once
}

func New(opts Options) (*Match, error) {
	if opts.Map == nil {
		return nil, fmt.Errorf("match: map must not be nil")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[match] ", log.LstdFlags)
	}
	teams, err := team.NewRegistry(opts.Map.Teams)
	if err != nil {
		return nil, fmt.Errorf("map %s: %w", opts.Map.Name, err)
	}
	regions, err := region.NewRegistry(opts.Map.Regions)
	if err != nil {
		return nil, fmt.Errorf("map %s: %w", opts.Map.Name, err)
	}
	fx := opts.Effects
	if fx == nil {
		fx = effects.Nop{}
	}
	title := opts.ScoreboardTitle
	if title == "" {
		title = opts.Map.Name
	}
	eb := bus.New(logger)
	return &Match{
		id:          uuid.NewString(),
		log:         logger,
		Map:         opts.Map,
		Teams:       teams,
		Regions:     regions,
		Bus:         eb,
		Roster:      player.NewRoster(),
		Scoreboards: scoreboard.NewManager(eb, title),
		Effects:     fx,
		boards:      opts.Boards,
		recorders:   opts.Recorders,
	}, nil
}

func (m *Match) ID() string                 { return m.id }
func (m *Match) Logger() *log.Logger        { return m.log }
func (m *Match) BoardSink() scoreboard.Sink { return m.boards }

func (m *Match) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Match) Ended() bool { return m.State() == StateEnded }

// Winner returns the winning team once the match has ended.
func (m *Match) Winner() (*team.Team, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.winner, m.state == StateEnded
}

// AddModule registers a module. Modules load in registration order and
// unload in reverse.
func (m *Match) AddModule(mod Module) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modules = append(m.modules, mod)
}

// Load loads every module and starts the match. If a module fails, the
// modules loaded before it are unloaded and the match stays pending.
func (m *Match) Load() error {
	m.mu.Lock()
	if m.state != StatePending {
		m.mu.Unlock()
		return fmt.Errorf("match %s: already %s", m.id, m.state)
	}
	mods := append([]Module(nil), m.modules...)
	m.mu.Unlock()

	var loaded []Module
	for _, mod := range mods {
		if err := mod.Load(); err != nil {
			for i := len(loaded) - 1; i >= 0; i-- {
				loaded[i].Unload()
			}
			return fmt.Errorf("load module %s: %w", mod.Name(), err)
		}
		loaded = append(loaded, mod)
	}

	m.mu.Lock()
	m.loaded = loaded
	m.state = StateRunning
	m.mu.Unlock()

	m.log.Printf("match %s started map=%q modules=%d", m.id, m.Map.Name, len(loaded))
	m.Record(EventEntry{Kind: KindMatchStart})
	m.Bus.Publish(StartEvent{MatchID: m.id})
	return nil
}

// EndMatch ends the match in favor of winner. Calls after the first one
// do nothing and report false.
func (m *Match) EndMatch(winner *team.Team) bool {
	m.mu.Lock()
	if m.state == StateEnded {
		m.mu.Unlock()
		return false
	}
	m.state = StateEnded
	m.winner = winner
	m.endedAt = time.Now().UTC()
	m.mu.Unlock()

	entry := EventEntry{Kind: KindMatchEnd}
	if winner != nil {
		entry.Winner = winner.ID
		m.Effects.Broadcast(winner.Label() + " wins!")
		m.log.Printf("match %s ended winner=%s", m.id, winner.ID)
	} else {
		m.log.Printf("match %s ended without a winner", m.id)
	}
	m.Record(entry)
	m.Bus.Publish(EndEvent{MatchID: m.id, Winner: winner})
	return true
}

// Unload releases every loaded module. Only the first call has an effect.
func (m *Match) Unload() {
	m.unloadOne.Do(func() {
		m.mu.Lock()
		loaded := m.loaded
		m.loaded = nil
		m.mu.Unlock()
		for i := len(loaded) - 1; i >= 0; i-- {
			loaded[i].Unload()
		}
		m.log.Printf("match %s unloaded", m.id)
	})
}

// Record stamps e with the match id, sequence and time and hands it to
// every recorder. Recorder failures are logged.
func (m *Match) Record(e EventEntry) {
	e.MatchID = m.id
	e.Map = m.Map.Name
	e.Seq = m.seq.Add(1)
	e.Time = time.Now().UTC().Format(time.RFC3339Nano)
	for _, r := range m.recorders {
		if err := r.RecordEvent(e); err != nil {
			m.log.Printf("record %s: %v", e.Kind, err)
		}
	}
}
