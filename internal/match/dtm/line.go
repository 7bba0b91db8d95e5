package dtm

import (
	"strconv"

	"monumentwars/internal/match/chat"
	"monumentwars/internal/match/monument"
)

const linePad = "  "

// ScoreboardLine renders the sidebar row of a monument: colored health
// percentage while alive, struck-through name once destroyed.
func ScoreboardLine(m *monument.Monument) string {
	st := m.State()
	if !st.Alive {
		return linePad + string(chat.Strikethrough) + st.Name
	}
	return linePad + string(urgency(st.Percentage)) + strconv.Itoa(st.Percentage) + "% " + string(chat.White) + st.Name
}

func urgency(pct int) chat.Color {
	switch {
	case pct > 70:
		return chat.Green
	case pct > 40:
		return chat.Yellow
	default:
		return chat.Red
	}
}
