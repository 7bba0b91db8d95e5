package main

import (
	"bytes"
	"strings"
	"testing"

	"monumentwars/internal/match"
)

func sampleTrail() []match.EventEntry {
	return []match.EventEntry{
		{MatchID: "m1", Map: "Twin Cores", Seq: 1, Kind: match.KindMatchStart},
		{MatchID: "m2", Map: "Arena", Seq: 1, Kind: match.KindMatchStart},
		{MatchID: "m1", Seq: 3, Kind: match.KindMonumentDamage, Monument: "Blue Core", ActorName: "alice", Team: "red", Health: 0, MaxHealth: 2},
		{MatchID: "m1", Seq: 2, Kind: match.KindMonumentDamage, Monument: "Blue Core", ActorName: "alice", Team: "red", Health: 1, MaxHealth: 2},
		{MatchID: "m1", Seq: 4, Kind: match.KindMonumentDestroy, Monument: "Blue Core", ActorName: "alice", Team: "red", MaxHealth: 2},
		{MatchID: "m1", Seq: 5, Kind: match.KindMatchEnd, Winner: "red"},
	}
}

func TestTimelines_OrdersBySeq(t *testing.T) {
	tl := newTimelines()
	for _, e := range sampleTrail() {
		tl.add(e)
	}
	got := tl.ordered()
	if len(got) != 2 || got[0].ID != "m1" || got[1].ID != "m2" {
		t.Fatalf("matches=%v", tl.order)
	}
	for i, e := range got[0].Entries {
		if e.Seq != uint64(i+1) {
			t.Fatalf("entry %d seq=%d", i, e.Seq)
		}
	}
	if problems := got[0].verify(); len(problems) != 0 {
		t.Fatalf("problems=%v", problems)
	}

	var buf bytes.Buffer
	got[0].print(&buf)
	out := buf.String()
	for _, want := range []string{`alice (red) damaged "Blue Core" 1/2`, `destroyed "Blue Core"`, "end winner=red"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestVerify_FlagsBrokenTrail(t *testing.T) {
	m := &matchTimeline{ID: "m1", Entries: []match.EventEntry{
		{Seq: 1, Kind: match.KindMonumentDamage, Monument: "Core", Health: 3},
		{Seq: 2, Kind: match.KindMonumentDamage, Monument: "Core", Health: 4},
		{Seq: 3, Kind: match.KindMonumentDestroy, Monument: "Core"},
		{Seq: 4, Kind: match.KindMonumentDamage, Monument: "Core"},
		{Seq: 5, Kind: match.KindMatchEnd},
		{Seq: 5, Kind: match.KindMatchEnd},
	}}
	problems := m.verify()
	joined := strings.Join(problems, "\n")
	for _, want := range []string{"health rose 3 -> 4", "on destroyed monument", "seq 5 after 5", "after match end"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("missing %q in:\n%s", want, joined)
		}
	}
}
