package player

import (
	"sort"
	"sync"

	"monumentwars/internal/match/bus"
	"monumentwars/internal/match/region"
	"monumentwars/internal/match/team"
)

const (
	TopicJoin       bus.Topic = "player.join"
	TopicQuit       bus.Topic = "player.quit"
	TopicBlockBreak bus.Topic = "player.block_break"
)

type Player struct {
	ID   string
	Name string
	Pos  region.Vec3
}

type JoinEvent struct {
	Player Player
	Team   *team.Team
}

func (JoinEvent) Topic() bus.Topic { return TopicJoin }

type QuitEvent struct {
	PlayerID string
}

func (QuitEvent) Topic() bus.Topic { return TopicQuit }

// BlockBreakEvent is published by the host before a block change is applied.
// Handlers may cancel it; the host then keeps the block.
type BlockBreakEvent struct {
	Player   Player
	Team     *team.Team
	Pos      region.Vec3
	Material string

	cancelled bool
	notices   []string
}

func (*BlockBreakEvent) Topic() bus.Topic { return TopicBlockBreak }

// Cancel stops the break. notice, if set, is sent privately to the player.
func (e *BlockBreakEvent) Cancel(notice string) {
	e.cancelled = true
	if notice != "" {
		e.notices = append(e.notices, notice)
	}
}

func (e *BlockBreakEvent) Cancelled() bool   { return e.cancelled }
func (e *BlockBreakEvent) Notices() []string { return e.notices }

// Roster tracks online players and their positions.
type Roster struct {
	mu      sync.RWMutex
	players map[string]*Player
}

func NewRoster() *Roster {
	return &Roster{players: map[string]*Player{}}
}

func (r *Roster) Add(p Player) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := p
	r.players[p.ID] = &cp
}

func (r *Roster) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.players[id]; !ok {
		return false
	}
	delete(r.players, id)
	return true
}

func (r *Roster) Move(id string, pos region.Vec3) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[id]
	if !ok {
		return false
	}
	p.Pos = pos
	return true
}

func (r *Roster) Get(id string) (Player, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.players[id]
	if !ok {
		return Player{}, false
	}
	return *p, true
}

// Online returns a copy of every online player, sorted by id.
func (r *Roster) Online() []Player {
	r.mu.RLock()
	out := make([]Player, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, *p)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *Roster) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.players)
}
