package scoreboard

import (
	"testing"

	"monumentwars/internal/match/bus"
)

type memSink struct {
	pushes [][]Line
}

func (m *memSink) PushScoreboard(viewerID, title string, lines []Line) {
	m.pushes = append(m.pushes, lines)
}

func TestBoard_CommitIsAtomic(t *testing.T) {
	sink := &memSink{}
	b := NewBoard("v1", "DTM", sink)
	b.Add("a", 0)
	b.Add("b", 1)
	if len(b.Lines()) != 0 {
		t.Fatalf("staged rows must not be visible before commit")
	}
	b.Commit()
	if got := b.Lines(); len(got) != 2 || got[0].Text != "a" || got[1].Text != "b" {
		t.Fatalf("lines=%+v", got)
	}
	if len(sink.pushes) != 1 {
		t.Fatalf("pushes=%d want 1", len(sink.pushes))
	}

	// A clean commit pushes nothing.
	b.Commit()
	if len(sink.pushes) != 1 {
		t.Fatalf("clean commit pushed")
	}
}

func TestBoard_RemoveMissingRowIsNoop(t *testing.T) {
	b := NewBoard("v1", "DTM", nil)
	b.Add("a", 0)
	b.Commit()
	if b.Remove(5) {
		t.Fatalf("remove of missing row reported success")
	}
	if b.Commits() != 1 {
		t.Fatalf("commits=%d", b.Commits())
	}
	if !b.Remove(0) {
		t.Fatalf("remove of existing row failed")
	}
	if _, ok := b.Text(0); !ok {
		t.Fatalf("removal visible before commit")
	}
	b.Commit()
	if _, ok := b.Text(0); ok {
		t.Fatalf("row still visible after commit")
	}
}

func TestManager_CreatePublishesInitThenCommits(t *testing.T) {
	eb := bus.New(nil)
	m := NewManager(eb, "DTM")
	eb.Subscribe(TopicInit, func(ev bus.Event) {
		ie := ev.(InitEvent)
		ie.Board.Add("row for "+ie.ViewerID, 0)
	})

	sink := &memSink{}
	b := m.Create("v2", sink)
	m.Create("v1", sink)
	if txt, ok := b.Text(0); !ok || txt != "row for v2" {
		t.Fatalf("text=%q ok=%v", txt, ok)
	}
	boards := m.Boards()
	if len(boards) != 2 || boards[0].ViewerID() != "v1" {
		t.Fatalf("boards not sorted: %d", len(boards))
	}
	if !m.Remove("v1") || m.Remove("v1") {
		t.Fatalf("remove semantics broken")
	}
	if _, ok := m.Board("v1"); ok {
		t.Fatalf("removed board still present")
	}
}
