// Package dtm implements the Destroy the Monument game mode.
//
// The Controller owns the monuments of one match. It allocates their rows on
// every viewer scoreboard, rewrites those rows when a monument changes,
// announces damage and destruction, and ends the match when a monument falls.
package dtm

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	"monumentwars/internal/match"
	"monumentwars/internal/match/bus"
	"monumentwars/internal/match/chat"
	"monumentwars/internal/match/effects"
	"monumentwars/internal/match/mapinfo"
	"monumentwars/internal/match/monument"
	"monumentwars/internal/match/player"
	"monumentwars/internal/match/region"
	"monumentwars/internal/match/scoreboard"
	"monumentwars/internal/match/team"
)

const (
	Section = "dtm"

	// DefaultSoundRadius is the distance past which a viewer gets a sound cue
	// instead of seeing the firework.
	DefaultSoundRadius = 64.0
)

var ErrNoSection = errors.New("map has no dtm section")

type TeamRegistry interface {
	Resolve(refs []string) ([]*team.Team, error)
	TeamOf(playerID string) *team.Team
	All() []*team.Team
}

type RegionResolver interface {
	Resolve(ref region.Ref) (region.Region, error)
}

type Projections interface {
	Boards() []*scoreboard.Board
}

type MatchEnder interface {
	EndMatch(winner *team.Team) bool
}

type Players interface {
	Online() []player.Player
}

type MaterialCatalog interface {
	Known(id string) bool
}

type Recorder interface {
	Record(e match.EventEntry)
}

// Deps are the match collaborators the controller works with. Materials and
// Recorder are optional.
type Deps struct {
	Bus         *bus.Bus
	Teams       TeamRegistry
	Regions     RegionResolver
	Scoreboards Projections
	Matches     MatchEnder
	Effects     effects.Sink
	Players     Players
	Materials   MaterialCatalog
	Recorder    Recorder
	Logger      *log.Logger
	SoundRadius float64
}

// DepsFromMatch wires a controller to the registries of m.
func DepsFromMatch(m *match.Match) Deps {
	return Deps{
		Bus:         m.Bus,
		Teams:       m.Teams,
		Regions:     m.Regions,
		Scoreboards: m.Scoreboards,
		Matches:     m,
		Effects:     m.Effects,
		Players:     m.Roster,
		Recorder:    m,
		Logger:      m.Logger(),
	}
}

type Config struct {
	Monuments []MonumentSpec `json:"monuments"`
}

type MonumentSpec struct {
	Name      string             `json:"name"`
	Region    region.Ref         `json:"region"`
	Teams     mapinfo.StringList `json:"teams"`
	Materials mapinfo.StringList `json:"materials"`
	Health    int                `json:"health"`
}

type Controller struct {
	deps Deps
	log  *log.Logger
	raw  json.RawMessage

	mu        sync.Mutex
	monuments []*monument.Monument
	lines     map[string]map[*monument.Monument][]int
	group     *bus.Group
}

func New(deps Deps, section json.RawMessage) *Controller {
	if deps.Effects == nil {
		deps.Effects = effects.Nop{}
	}
	if deps.SoundRadius <= 0 {
		deps.SoundRadius = DefaultSoundRadius
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[dtm] ", log.LstdFlags)
	}
	return &Controller{
		deps:  deps,
		log:   logger,
		raw:   section,
		lines: map[string]map[*monument.Monument][]int{},
	}
}

func (c *Controller) Name() string { return Section }

// Load builds every monument from the dtm section and binds them to the
// world. Nothing is activated unless every definition is valid.
func (c *Controller) Load() error {
	c.mu.Lock()
	loaded := c.group != nil
	c.mu.Unlock()
	if loaded {
		return fmt.Errorf("dtm: already loaded")
	}
	if len(c.raw) == 0 {
		return ErrNoSection
	}
	var cfg Config
	if err := json.Unmarshal(c.raw, &cfg); err != nil {
		return fmt.Errorf("dtm: %w", err)
	}
	if len(cfg.Monuments) == 0 {
		return fmt.Errorf("dtm: monuments must not be empty")
	}

	mons := make([]*monument.Monument, 0, len(cfg.Monuments))
	names := map[string]bool{}
	for i, spec := range cfg.Monuments {
		m, err := c.build(spec)
		if err != nil {
			return fmt.Errorf("dtm.monuments[%d]: %w", i, err)
		}
		if names[m.Name()] {
			return fmt.Errorf("dtm.monuments[%d]: duplicate monument name %q", i, m.Name())
		}
		names[m.Name()] = true
		mons = append(mons, m)
	}

	for _, m := range mons {
		m.SetLogger(c.log)
		m.AddService(c.service(m))
	}
	for i, m := range mons {
		if err := m.Load(c.deps.Bus); err != nil {
			for _, prev := range mons[:i] {
				prev.Unload()
			}
			return fmt.Errorf("dtm: load %s: %w", m.Name(), err)
		}
	}

	g := c.deps.Bus.NewGroup()
	g.Subscribe(scoreboard.TopicInit, func(ev bus.Event) {
		if e, ok := ev.(scoreboard.InitEvent); ok {
			c.onScoreboardInit(e)
		}
	})
	g.Subscribe(player.TopicQuit, func(ev bus.Event) {
		if e, ok := ev.(player.QuitEvent); ok {
			c.forgetViewer(e.PlayerID)
		}
	})

	c.mu.Lock()
	c.monuments = mons
	c.group = g
	c.mu.Unlock()
	c.log.Printf("dtm: loaded %d monuments", len(mons))
	return nil
}

func (c *Controller) build(spec MonumentSpec) (*monument.Monument, error) {
	if spec.Health <= 0 {
		return nil, fmt.Errorf("health must be > 0")
	}
	if len(spec.Teams) == 0 {
		return nil, fmt.Errorf("teams must not be empty")
	}
	owners, err := c.deps.Teams.Resolve(spec.Teams)
	if err != nil {
		return nil, fmt.Errorf("teams: %w", err)
	}
	for _, o := range owners {
		if o.Spectator {
			return nil, fmt.Errorf("teams: spectator team %s cannot own a monument", o.ID)
		}
	}
	reg, err := c.deps.Regions.Resolve(spec.Region)
	if err != nil {
		return nil, fmt.Errorf("region: %w", err)
	}
	if len(spec.Materials) == 0 {
		return nil, fmt.Errorf("materials must not be empty")
	}
	if c.deps.Materials != nil {
		for _, mat := range spec.Materials {
			if !c.deps.Materials.Known(mat) {
				return nil, fmt.Errorf("materials: unknown material %q", mat)
			}
		}
	}
	return monument.New(spec.Name, owners, reg, spec.Materials, spec.Health, spec.Health)
}

// service is the reaction attached to one monument.
func (c *Controller) service(m *monument.Monument) monument.Service {
	return monument.ServiceFuncs{
		Damage: func(actor monument.Actor, at region.Vec3) error {
			c.refresh(m)
			t := c.actorTeam(actor)
			c.announce(actor, t, "damaged", m)
			c.playFirework(t, at)
			c.record(match.KindMonumentDamage, m, actor, t, at)
			return nil
		},
		Destroy: func(actor monument.Actor, at region.Vec3) error {
			c.refresh(m)
			t := c.actorTeam(actor)
			c.announce(actor, t, "destroyed", m)
			c.playFirework(t, at)
			c.record(match.KindMonumentDestroy, m, actor, t, at)
			if c.deps.Matches != nil {
				c.deps.Matches.EndMatch(t)
			}
			return nil
		},
	}
}

func (c *Controller) actorTeam(actor monument.Actor) *team.Team {
	if actor.Team != nil {
		return actor.Team
	}
	return c.deps.Teams.TeamOf(actor.ID)
}

func (c *Controller) announce(actor monument.Actor, t *team.Team, verb string, m *monument.Monument) {
	c.deps.Effects.Broadcast(BroadcastText(actor.Name, t, verb, m))
}

// BroadcastText is the chat line for a monument transition.
func BroadcastText(actorName string, actorTeam *team.Team, verb string, m *monument.Monument) string {
	actorColor := chat.White
	if actorTeam != nil {
		actorColor = actorTeam.Color
	}
	return string(actorColor) + actorName + string(chat.White) + " " + verb + " " +
		string(m.PrimaryOwner().Color) + string(chat.Bold) + m.Name()
}

func (c *Controller) playFirework(t *team.Team, at region.Vec3) {
	color := chat.White
	if t != nil {
		color = t.Color
	}
	c.deps.Effects.PlayEffectAt(at, effects.Burst(color))

	if c.deps.Players == nil {
		return
	}
	for _, p := range c.deps.Players.Online() {
		if p.Pos.Distance(at) <= c.deps.SoundRadius {
			continue
		}
		c.deps.Effects.PlaySoundAt(p.ID, p.Pos, effects.SoundFireworkBlast, 0.75, 1)
		c.deps.Effects.PlaySoundAt(p.ID, p.Pos, effects.SoundFireworkTwinkle, 0.75, 1)
	}
}

func (c *Controller) record(kind string, m *monument.Monument, actor monument.Actor, t *team.Team, at region.Vec3) {
	if c.deps.Recorder == nil {
		return
	}
	st := m.State()
	e := match.EventEntry{
		Kind:      kind,
		Monument:  st.Name,
		Actor:     actor.ID,
		ActorName: actor.Name,
		Pos:       at.ToArray(),
		Health:    st.Health,
		MaxHealth: st.MaxHealth,
	}
	if t != nil {
		e.Team = t.ID
	}
	c.deps.Recorder.Record(e)
}

// onScoreboardInit lists, for each participating team, its monuments and
// then its label, one row each. The viewer's line index is rebuilt.
func (c *Controller) onScoreboardInit(ev scoreboard.InitEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	index := map[*monument.Monument][]int{}
	row := 0
	for _, t := range c.deps.Teams.All() {
		if t.Spectator {
			continue
		}
		for _, m := range c.monuments {
			if !m.IsOwner(t) {
				continue
			}
			index[m] = append(index[m], row)
			ev.Board.Add(ScoreboardLine(m), row)
			row++
		}
		ev.Board.Add(t.Label(), row)
		row++
	}
	c.lines[ev.ViewerID] = index
}

func (c *Controller) forgetViewer(viewerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.lines, viewerID)
}

// refresh rewrites the rows of m on every active board. A board missing one
// of the rows skips it; other boards are unaffected.
func (c *Controller) refresh(m *monument.Monument) {
	c.mu.Lock()
	defer c.mu.Unlock()
	line := ScoreboardLine(m)
	for _, b := range c.deps.Scoreboards.Boards() {
		rows := c.lines[b.ViewerID()][m]
		changed := false
		for _, row := range rows {
			if !b.Remove(row) {
				continue
			}
			b.Add(line, row)
			changed = true
		}
		if changed {
			b.Commit()
		}
	}
}

// Unload releases every monument binding and bus subscription. Safe to call
// repeatedly or before Load.
func (c *Controller) Unload() {
	c.mu.Lock()
	g := c.group
	c.group = nil
	mons := append([]*monument.Monument(nil), c.monuments...)
	c.mu.Unlock()

	g.Close()
	for _, m := range mons {
		m.Unload()
	}
}

func (c *Controller) Monuments() []*monument.Monument {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*monument.Monument(nil), c.monuments...)
}

func (c *Controller) Monument(name string) (*monument.Monument, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range c.monuments {
		if m.Name() == name {
			return m, true
		}
	}
	return nil, false
}

// AliveMonuments returns the alive monuments owned by t, in load order.
func (c *Controller) AliveMonuments(t *team.Team) []*monument.Monument {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*monument.Monument
	for _, m := range c.monuments {
		if m.Alive() && m.IsOwner(t) {
			out = append(out, m)
		}
	}
	return out
}

// Rows returns the row indices recorded for each monument on a viewer's
// board, keyed by monument name.
func (c *Controller) Rows(viewerID string) map[string][]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := map[string][]int{}
	for m, rows := range c.lines[viewerID] {
		out[m.Name()] = append([]int(nil), rows...)
	}
	return out
}

// States returns the state of every monument in load order.
func (c *Controller) States() []monument.State {
	mons := c.Monuments()
	out := make([]monument.State, 0, len(mons))
	for _, m := range mons {
		out = append(out, m.State())
	}
	return out
}
