// Package effects describes the presentation side effects a match can
// trigger: chat, private notices, fireworks and sounds.
package effects

import (
	"monumentwars/internal/match/chat"
	"monumentwars/internal/match/region"
)

type Sound string

const (
	SoundFireworkBlast   Sound = "ENTITY_FIREWORK_BLAST"
	SoundFireworkTwinkle Sound = "ENTITY_FIREWORK_TWINKLE"
)

type Firework struct {
	Type    string   `json:"type"`
	Flicker bool     `json:"flicker"`
	Color   [3]uint8 `json:"color"`
}

// Burst is the flickering burst firework used for monument events.
func Burst(c chat.Color) Firework {
	return Firework{Type: "BURST", Flicker: true, Color: c.RGB()}
}

type Sink interface {
	Broadcast(text string)
	Message(viewerID, text string)
	PlayEffectAt(at region.Vec3, fw Firework)
	PlaySoundAt(viewerID string, at region.Vec3, sound Sound, volume, pitch float32)
}

// Multi fans every call out to each sink in order.
type Multi []Sink

func (m Multi) Broadcast(text string) {
	for _, s := range m {
		s.Broadcast(text)
	}
}

func (m Multi) Message(viewerID, text string) {
	for _, s := range m {
		s.Message(viewerID, text)
	}
}

func (m Multi) PlayEffectAt(at region.Vec3, fw Firework) {
	for _, s := range m {
		s.PlayEffectAt(at, fw)
	}
}

func (m Multi) PlaySoundAt(viewerID string, at region.Vec3, sound Sound, volume, pitch float32) {
	for _, s := range m {
		s.PlaySoundAt(viewerID, at, sound, volume, pitch)
	}
}

type Nop struct{}

func (Nop) Broadcast(string)                                         {}
func (Nop) Message(string, string)                                   {}
func (Nop) PlayEffectAt(region.Vec3, Firework)                       {}
func (Nop) PlaySoundAt(string, region.Vec3, Sound, float32, float32) {}
