package chat

import "testing"

func TestParseColor(t *testing.T) {
	c, err := ParseColor(" dark_red ")
	if err != nil {
		t.Fatalf("ParseColor: %v", err)
	}
	if c != DarkRed {
		t.Fatalf("got %q want %q", c, DarkRed)
	}
	if _, err := ParseColor("mauve"); err == nil {
		t.Fatalf("expected error for unknown color")
	}
}

func TestStrip(t *testing.T) {
	in := "  " + string(Yellow) + "65% " + string(White) + "Blue Core"
	if got := Strip(in); got != "  65% Blue Core" {
		t.Fatalf("Strip=%q", got)
	}
	if got := Strip("plain"); got != "plain" {
		t.Fatalf("Strip(plain)=%q", got)
	}
}
