// Package scoreboard keeps one sidebar projection per viewer.
//
// A Board stages Add/Remove calls and publishes them on Commit, so a viewer
// never sees a half-applied update. Boards are never shared between viewers.
package scoreboard

import (
	"sort"
	"sync"

	"monumentwars/internal/match/bus"
)

const TopicInit bus.Topic = "scoreboard.init"

type Line struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// Sink receives the full committed line set of one viewer.
type Sink interface {
	PushScoreboard(viewerID, title string, lines []Line)
}

// InitEvent fires once per created board, before its first commit.
type InitEvent struct {
	ViewerID string
	Board    *Board
}

func (InitEvent) Topic() bus.Topic { return TopicInit }

type Board struct {
	viewerID string
	title    string
	sink     Sink

	mu      sync.Mutex
	staged  map[int]string
	visible map[int]string
	dirty   bool
	commits uint64
}

func NewBoard(viewerID, title string, sink Sink) *Board {
	return &Board{
		viewerID: viewerID,
		title:    title,
		sink:     sink,
		staged:   map[int]string{},
		visible:  map[int]string{},
	}
}

func (b *Board) ViewerID() string { return b.viewerID }
func (b *Board) Title() string    { return b.title }

// Add stages text at index, replacing any staged text there.
func (b *Board) Add(text string, index int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.staged[index] = text
	b.dirty = true
}

// Remove stages removal of index. It reports false, and does nothing, when
// the row does not exist.
func (b *Board) Remove(index int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.staged[index]; !ok {
		return false
	}
	delete(b.staged, index)
	b.dirty = true
	return true
}

// Commit makes the staged rows visible and pushes them to the sink.
func (b *Board) Commit() {
	b.mu.Lock()
	if !b.dirty {
		b.mu.Unlock()
		return
	}
	b.visible = make(map[int]string, len(b.staged))
	for k, v := range b.staged {
		b.visible[k] = v
	}
	b.dirty = false
	b.commits++
	lines := linesOf(b.visible)
	b.mu.Unlock()

	if b.sink != nil {
		b.sink.PushScoreboard(b.viewerID, b.title, lines)
	}
}

// Lines returns the visible rows sorted by index.
func (b *Board) Lines() []Line {
	b.mu.Lock()
	defer b.mu.Unlock()
	return linesOf(b.visible)
}

// Text returns the visible text at index.
func (b *Board) Text(index int) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.visible[index]
	return s, ok
}

func (b *Board) Commits() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.commits
}

func linesOf(m map[int]string) []Line {
	out := make([]Line, 0, len(m))
	for k, v := range m {
		out = append(out, Line{Index: k, Text: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// Manager is the registry of active viewer boards for one match.
type Manager struct {
	bus   *bus.Bus
	title string

	mu     sync.Mutex
	boards map[string]*Board
}

func NewManager(b *bus.Bus, title string) *Manager {
	return &Manager{bus: b, title: title, boards: map[string]*Board{}}
}

// Create builds a fresh board for viewerID, replacing any previous one,
// lets InitEvent handlers fill it, and commits it.
func (m *Manager) Create(viewerID string, sink Sink) *Board {
	b := NewBoard(viewerID, m.title, sink)
	m.mu.Lock()
	m.boards[viewerID] = b
	m.mu.Unlock()

	if m.bus != nil {
		m.bus.Publish(InitEvent{ViewerID: viewerID, Board: b})
	}
	b.Commit()
	return b
}

func (m *Manager) Remove(viewerID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.boards[viewerID]; !ok {
		return false
	}
	delete(m.boards, viewerID)
	return true
}

func (m *Manager) Board(viewerID string) (*Board, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.boards[viewerID]
	return b, ok
}

// Boards returns every active board sorted by viewer id.
func (m *Manager) Boards() []*Board {
	m.mu.Lock()
	out := make([]*Board, 0, len(m.boards))
	for _, b := range m.boards {
		out = append(out, b)
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].viewerID < out[j].viewerID })
	return out
}
