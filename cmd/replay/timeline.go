package main

import (
	"fmt"
	"io"
	"sort"

	"monumentwars/internal/match"
)

type matchTimeline struct {
	ID      string
	Map     string
	Entries []match.EventEntry
}

type timelines struct {
	byID  map[string]*matchTimeline
	order []string
}

func newTimelines() *timelines {
	return &timelines{byID: map[string]*matchTimeline{}}
}

func (t *timelines) add(e match.EventEntry) {
	m := t.byID[e.MatchID]
	if m == nil {
		m = &matchTimeline{ID: e.MatchID, Map: e.Map}
		t.byID[e.MatchID] = m
		t.order = append(t.order, e.MatchID)
	}
	m.Entries = append(m.Entries, e)
}

// ordered returns the matches in first-seen order with entries sorted by
// sequence number.
func (t *timelines) ordered() []*matchTimeline {
	out := make([]*matchTimeline, 0, len(t.order))
	for _, id := range t.order {
		m := t.byID[id]
		sort.SliceStable(m.Entries, func(i, j int) bool { return m.Entries[i].Seq < m.Entries[j].Seq })
		out = append(out, m)
	}
	return out
}

func (m *matchTimeline) print(w io.Writer) {
	fmt.Fprintf(w, "match %s map=%q events=%d\n", m.ID, m.Map, len(m.Entries))
	for _, e := range m.Entries {
		switch e.Kind {
		case match.KindMatchStart:
			fmt.Fprintf(w, "  %4d %s start\n", e.Seq, e.Time)
		case match.KindMatchEnd:
			winner := e.Winner
			if winner == "" {
				winner = "-"
			}
			fmt.Fprintf(w, "  %4d %s end winner=%s\n", e.Seq, e.Time, winner)
		case match.KindMonumentDamage:
			fmt.Fprintf(w, "  %4d %s %s (%s) damaged %q %d/%d\n", e.Seq, e.Time, e.ActorName, e.Team, e.Monument, e.Health, e.MaxHealth)
		case match.KindMonumentDestroy:
			fmt.Fprintf(w, "  %4d %s %s (%s) destroyed %q\n", e.Seq, e.Time, e.ActorName, e.Team, e.Monument)
		default:
			fmt.Fprintf(w, "  %4d %s %s\n", e.Seq, e.Time, e.Kind)
		}
	}
}

// verify checks the trail of one match: sequence numbers strictly increase,
// monument health never rises, a destroyed monument takes no further events,
// and the match ends at most once with nothing recorded after it.
func (m *matchTimeline) verify() []string {
	var problems []string
	health := map[string]int{}
	destroyed := map[string]bool{}
	var lastSeq uint64
	ended := false

	for _, e := range m.Entries {
		if e.Seq <= lastSeq {
			problems = append(problems, fmt.Sprintf("seq %d after %d", e.Seq, lastSeq))
		}
		lastSeq = e.Seq
		if ended {
			problems = append(problems, fmt.Sprintf("seq %d: %s after match end", e.Seq, e.Kind))
		}

		switch e.Kind {
		case match.KindMatchEnd:
			ended = true
		case match.KindMonumentDamage, match.KindMonumentDestroy:
			if destroyed[e.Monument] {
				problems = append(problems, fmt.Sprintf("seq %d: %s on destroyed monument %q", e.Seq, e.Kind, e.Monument))
			}
			if prev, ok := health[e.Monument]; ok && e.Health > prev {
				problems = append(problems, fmt.Sprintf("seq %d: %q health rose %d -> %d", e.Seq, e.Monument, prev, e.Health))
			}
			health[e.Monument] = e.Health
			if e.Kind == match.KindMonumentDestroy {
				destroyed[e.Monument] = true
			}
		}
	}
	return problems
}
