package match

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"monumentwars/internal/match/player"
	"monumentwars/internal/match/region"
	"monumentwars/internal/match/team"
)

var (
	ErrStopped    = errors.New("match runtime stopped")
	ErrMatchEnded = errors.New("match has ended")
)

type JoinRequest struct {
	Name   string
	TeamID string
	Pos    region.Vec3
	// Attach, if set, runs with the new player id before the player's
	// scoreboard is built, so the transport can route its first frames.
	Attach func(playerID string)
	Resp   chan JoinResponse
}

type JoinResponse struct {
	PlayerID string
	Team     *team.Team
	Err      error
}

type MoveRequest struct {
	PlayerID string
	Pos      region.Vec3
}

type BreakRequest struct {
	PlayerID string
	Pos      region.Vec3
	Material string
	Resp     chan BreakResponse
}

type BreakResponse struct {
	Allowed bool
	Notices []string
}

type queryReq struct {
	fn   func(*Match)
	done chan struct{}
}

// Runtime serializes every event of one match on a single goroutine.
// All handlers, and therefore all module reactions, run on that goroutine in
// the order their requests were received.
type Runtime struct {
	m *Match

	join  chan JoinRequest
	leave chan string
	move  chan MoveRequest
	brk   chan BreakRequest
	query chan queryReq
	stop  chan struct{}
	done  chan struct{}

	nextPlayerNum atomic.Uint64
	stopOnce      sync.Once
	tornDown      bool
}

func NewRuntime(m *Match) *Runtime {
	return &Runtime{
		m:     m,
		join:  make(chan JoinRequest, 64),
		leave: make(chan string, 64),
		move:  make(chan MoveRequest, 1024),
		brk:   make(chan BreakRequest, 1024),
		query: make(chan queryReq, 16),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

func (r *Runtime) Match() *Match { return r.m }

func (r *Runtime) Join() chan<- JoinRequest   { return r.join }
func (r *Runtime) Leave() chan<- string       { return r.leave }
func (r *Runtime) Move() chan<- MoveRequest   { return r.move }
func (r *Runtime) Break() chan<- BreakRequest { return r.brk }

// Run processes events until ctx is cancelled or Stop is called. The match
// is unloaded on the way out, whatever ended it.
func (r *Runtime) Run(ctx context.Context) error {
	defer close(r.done)
	defer r.teardown()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.stop:
			return nil
		case req := <-r.join:
			r.handleJoin(req)
		case id := <-r.leave:
			r.handleLeave(id)
		case req := <-r.move:
			r.handleMove(req)
		case req := <-r.brk:
			r.handleBreak(req)
		case q := <-r.query:
			q.fn(r.m)
			close(q.done)
		}
		if r.m.Ended() {
			r.teardown()
		}
	}
}

// Done is closed once Run has returned.
func (r *Runtime) Done() <-chan struct{} { return r.done }

func (r *Runtime) Stop() { r.stopOnce.Do(func() { close(r.stop) }) }

// Do runs fn on the runtime goroutine and waits for it.
func (r *Runtime) Do(ctx context.Context, fn func(*Match)) error {
	select {
	case <-r.done:
		return ErrStopped
	default:
	}
	q := queryReq{fn: fn, done: make(chan struct{})}
	select {
	case r.query <- q:
	case <-r.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-q.done:
		return nil
	case <-r.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runtime) teardown() {
	if r.tornDown {
		return
	}
	r.tornDown = true
	r.m.Unload()
}

func (r *Runtime) handleJoin(req JoinRequest) {
	resp := r.joinPlayer(req)
	if req.Resp != nil {
		req.Resp <- resp
	}
}

func (r *Runtime) joinPlayer(req JoinRequest) JoinResponse {
	if r.m.Ended() {
		return JoinResponse{Err: ErrMatchEnded}
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = "player"
	}
	id := fmt.Sprintf("P%d", r.nextPlayerNum.Add(1))

	teamID := req.TeamID
	if teamID == "" {
		teamID = team.SpectatorID
	}
	t, err := r.m.Teams.Assign(id, teamID)
	if err != nil {
		return JoinResponse{Err: err}
	}

	if req.Attach != nil {
		req.Attach(id)
	}
	p := player.Player{ID: id, Name: name, Pos: req.Pos}
	r.m.Roster.Add(p)
	r.m.Bus.Publish(player.JoinEvent{Player: p, Team: t})
	r.m.Scoreboards.Create(id, r.m.BoardSink())
	r.m.log.Printf("join %s name=%q team=%s", id, name, t.ID)
	return JoinResponse{PlayerID: id, Team: t}
}

func (r *Runtime) handleLeave(id string) {
	if !r.m.Roster.Remove(id) {
		return
	}
	r.m.Scoreboards.Remove(id)
	r.m.Teams.Unassign(id)
	r.m.Bus.Publish(player.QuitEvent{PlayerID: id})
	r.m.log.Printf("leave %s", id)
}

func (r *Runtime) handleMove(req MoveRequest) {
	r.m.Roster.Move(req.PlayerID, req.Pos)
}

func (r *Runtime) handleBreak(req BreakRequest) {
	resp := r.breakBlock(req)
	if req.Resp != nil {
		req.Resp <- resp
	}
}

func (r *Runtime) breakBlock(req BreakRequest) BreakResponse {
	p, ok := r.m.Roster.Get(req.PlayerID)
	if !ok || r.m.State() != StateRunning {
		return BreakResponse{Allowed: false}
	}
	ev := &player.BlockBreakEvent{
		Player:   p,
		Team:     r.m.Teams.TeamOf(p.ID),
		Pos:      req.Pos,
		Material: req.Material,
	}
	r.m.Bus.Publish(ev)
	for _, n := range ev.Notices() {
		r.m.Effects.Message(p.ID, n)
	}
	return BreakResponse{Allowed: !ev.Cancelled(), Notices: ev.Notices()}
}
