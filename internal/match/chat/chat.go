// Package chat holds the legacy section-sign formatting codes used by
// scoreboard rows, broadcasts and team labels.
package chat

import (
	"fmt"
	"strings"
)

// Color is a formatting code such as "§a". Style codes (bold, strikethrough)
// share the type since they are written the same way.
type Color string

const (
	Black       Color = "§0"
	DarkBlue    Color = "§1"
	DarkGreen   Color = "§2"
	DarkAqua    Color = "§3"
	DarkRed     Color = "§4"
	DarkPurple  Color = "§5"
	Gold        Color = "§6"
	Gray        Color = "§7"
	DarkGray    Color = "§8"
	Blue        Color = "§9"
	Green       Color = "§a"
	Aqua        Color = "§b"
	Red         Color = "§c"
	LightPurple Color = "§d"
	Yellow      Color = "§e"
	White       Color = "§f"

	Bold          Color = "§l"
	Strikethrough Color = "§m"
	Reset         Color = "§r"
)

const codePrefix = '§'

var byName = map[string]Color{
	"BLACK":        Black,
	"DARK_BLUE":    DarkBlue,
	"DARK_GREEN":   DarkGreen,
	"DARK_AQUA":    DarkAqua,
	"DARK_RED":     DarkRed,
	"DARK_PURPLE":  DarkPurple,
	"GOLD":         Gold,
	"GRAY":         Gray,
	"DARK_GRAY":    DarkGray,
	"BLUE":         Blue,
	"GREEN":        Green,
	"AQUA":         Aqua,
	"RED":          Red,
	"LIGHT_PURPLE": LightPurple,
	"YELLOW":       Yellow,
	"WHITE":        White,
}

// rgb is used for firework colors.
var rgb = map[Color][3]uint8{
	Black:       {0, 0, 0},
	DarkBlue:    {0, 0, 170},
	DarkGreen:   {0, 170, 0},
	DarkAqua:    {0, 170, 170},
	DarkRed:     {170, 0, 0},
	DarkPurple:  {170, 0, 170},
	Gold:        {255, 170, 0},
	Gray:        {170, 170, 170},
	DarkGray:    {85, 85, 85},
	Blue:        {85, 85, 255},
	Green:       {85, 255, 85},
	Aqua:        {85, 255, 255},
	Red:         {255, 85, 85},
	LightPurple: {255, 85, 255},
	Yellow:      {255, 255, 85},
	White:       {255, 255, 255},
}

func ParseColor(name string) (Color, error) {
	c, ok := byName[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return "", fmt.Errorf("unknown color %q", name)
	}
	return c, nil
}

func (c Color) String() string { return string(c) }

// RGB returns the display color of c. Style codes map to white.
func (c Color) RGB() [3]uint8 {
	if v, ok := rgb[c]; ok {
		return v
	}
	return rgb[White]
}

// Strip removes every formatting code from s.
func Strip(s string) string {
	if !strings.ContainsRune(s, codePrefix) {
		return s
	}
	var b strings.Builder
	skip := false
	for _, r := range s {
		if skip {
			skip = false
			continue
		}
		if r == codePrefix {
			skip = true
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
