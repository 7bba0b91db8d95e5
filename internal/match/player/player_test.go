package player

import (
	"testing"

	"monumentwars/internal/match/region"
)

func TestRoster_OnlineSortedCopies(t *testing.T) {
	r := NewRoster()
	r.Add(Player{ID: "b", Name: "Bee"})
	r.Add(Player{ID: "a", Name: "Ay"})
	if !r.Move("a", region.Vec3{X: 7}) {
		t.Fatalf("move failed")
	}
	if r.Move("zz", region.Vec3{}) {
		t.Fatalf("move of unknown player should fail")
	}

	on := r.Online()
	if len(on) != 2 || on[0].ID != "a" || on[1].ID != "b" {
		t.Fatalf("online=%+v", on)
	}
	if on[0].Pos.X != 7 {
		t.Fatalf("position not updated")
	}
	on[0].Pos.X = 100
	if p, _ := r.Get("a"); p.Pos.X != 7 {
		t.Fatalf("Online must return copies")
	}
	if !r.Remove("a") || r.Remove("a") || r.Len() != 1 {
		t.Fatalf("remove semantics broken")
	}
}

func TestBlockBreakEvent_Cancel(t *testing.T) {
	ev := &BlockBreakEvent{Material: "OBSIDIAN"}
	if ev.Cancelled() {
		t.Fatalf("new event should not be cancelled")
	}
	ev.Cancel("nope")
	ev.Cancel("")
	if !ev.Cancelled() || len(ev.Notices()) != 1 {
		t.Fatalf("cancel state: %v %v", ev.Cancelled(), ev.Notices())
	}
}
