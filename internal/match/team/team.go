package team

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"monumentwars/internal/match/chat"
)

const SpectatorID = "spectators"

var (
	ErrUnknownTeam = errors.New("unknown team")
	ErrTeamFull    = errors.New("team is full")
)

type Team struct {
	ID        string
	Alias     string
	Color     chat.Color
	Spectator bool
	Max       int
}

// Label is the colored alias shown on scoreboards.
func (t *Team) Label() string {
	if t == nil {
		return ""
	}
	return string(t.Color) + t.Alias
}

type Spec struct {
	ID    string `json:"id"`
	Alias string `json:"alias"`
	Color string `json:"color"`
	Max   int    `json:"max,omitempty"`
}

// Registry holds the teams of one match and the player assignments.
// Team order is the configuration order; the spectator team is always last.
type Registry struct {
	teams []*Team
	byID  map[string]*Team

	mu       sync.RWMutex
	byPlayer map[string]*Team
}

func NewRegistry(specs []Spec) (*Registry, error) {
	r := &Registry{
		byID:     map[string]*Team{},
		byPlayer: map[string]*Team{},
	}
	for i, s := range specs {
		id := normalizeID(s.ID)
		if id == "" {
			return nil, fmt.Errorf("teams[%d]: id must not be empty", i)
		}
		if id == SpectatorID {
			return nil, fmt.Errorf("teams[%d]: id %q is reserved", i, id)
		}
		if r.byID[id] != nil {
			return nil, fmt.Errorf("teams[%d]: duplicate team id %q", i, id)
		}
		color, err := chat.ParseColor(s.Color)
		if err != nil {
			return nil, fmt.Errorf("teams[%d]: %w", i, err)
		}
		alias := strings.TrimSpace(s.Alias)
		if alias == "" {
			alias = s.ID
		}
		if s.Max < 0 {
			return nil, fmt.Errorf("teams[%d]: max must be >= 0", i)
		}
		t := &Team{ID: id, Alias: alias, Color: color, Max: s.Max}
		r.teams = append(r.teams, t)
		r.byID[id] = t
	}
	spec := &Team{ID: SpectatorID, Alias: "Spectators", Color: chat.Aqua, Spectator: true}
	r.teams = append(r.teams, spec)
	r.byID[SpectatorID] = spec
	return r, nil
}

// All returns the teams in a stable order, spectators included.
func (r *Registry) All() []*Team {
	return append([]*Team(nil), r.teams...)
}

// Participants returns the non-spectator teams.
func (r *Registry) Participants() []*Team {
	out := make([]*Team, 0, len(r.teams))
	for _, t := range r.teams {
		if !t.Spectator {
			out = append(out, t)
		}
	}
	return out
}

func (r *Registry) Get(id string) (*Team, bool) {
	t, ok := r.byID[normalizeID(id)]
	return t, ok
}

func (r *Registry) Spectators() *Team { return r.byID[SpectatorID] }

// Resolve maps team references to teams, keeping reference order and
// dropping duplicates.
func (r *Registry) Resolve(refs []string) ([]*Team, error) {
	out := make([]*Team, 0, len(refs))
	seen := map[string]bool{}
	for _, ref := range refs {
		t, ok := r.Get(ref)
		if !ok {
			return nil, fmt.Errorf("%w %q", ErrUnknownTeam, ref)
		}
		if seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		out = append(out, t)
	}
	return out, nil
}

func (r *Registry) Assign(playerID, teamID string) (*Team, error) {
	t, ok := r.Get(teamID)
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownTeam, teamID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.Max > 0 && !t.Spectator && r.countLocked(t) >= t.Max {
		return nil, fmt.Errorf("%w: %s", ErrTeamFull, t.ID)
	}
	r.byPlayer[playerID] = t
	return t, nil
}

func (r *Registry) Unassign(playerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byPlayer, playerID)
}

// TeamOf returns the team of a player. Unassigned players are spectators.
func (r *Registry) TeamOf(playerID string) *Team {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if t, ok := r.byPlayer[playerID]; ok {
		return t
	}
	return r.byID[SpectatorID]
}

func (r *Registry) Count(t *Team) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.countLocked(t)
}

func (r *Registry) countLocked(t *Team) int {
	n := 0
	for _, pt := range r.byPlayer {
		if pt == t {
			n++
		}
	}
	return n
}

func normalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
