package region

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

var ErrNotFound = errors.New("region not found")

type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (v Vec3) Distance(o Vec3) float64 {
	dx, dy, dz := v.X-o.X, v.Y-o.Y, v.Z-o.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

func (v Vec3) ToArray() [3]float64 { return [3]float64{v.X, v.Y, v.Z} }

func FromArray(a [3]float64) Vec3 { return Vec3{X: a[0], Y: a[1], Z: a[2]} }

// Region is a spatial boundary. Points use block coordinates: a block at
// (x,y,z) occupies [x,x+1) on each axis.
type Region interface {
	Contains(p Vec3) bool
	Center() Vec3
}

type Cuboid struct {
	Min Vec3
	Max Vec3
}

func NewCuboid(a, b Vec3) Cuboid {
	return Cuboid{
		Min: Vec3{X: math.Min(a.X, b.X), Y: math.Min(a.Y, b.Y), Z: math.Min(a.Z, b.Z)},
		Max: Vec3{X: math.Max(a.X, b.X), Y: math.Max(a.Y, b.Y), Z: math.Max(a.Z, b.Z)},
	}
}

func (c Cuboid) Contains(p Vec3) bool {
	return p.X >= c.Min.X && p.X <= c.Max.X &&
		p.Y >= c.Min.Y && p.Y <= c.Max.Y &&
		p.Z >= c.Min.Z && p.Z <= c.Max.Z
}

func (c Cuboid) Center() Vec3 {
	return Vec3{X: (c.Min.X + c.Max.X) / 2, Y: (c.Min.Y + c.Max.Y) / 2, Z: (c.Min.Z + c.Max.Z) / 2}
}

type Cylinder struct {
	Base   Vec3
	Radius float64
	Height float64
}

func (c Cylinder) Contains(p Vec3) bool {
	if p.Y < c.Base.Y || p.Y > c.Base.Y+c.Height {
		return false
	}
	dx, dz := p.X-c.Base.X, p.Z-c.Base.Z
	return dx*dx+dz*dz <= c.Radius*c.Radius
}

func (c Cylinder) Center() Vec3 {
	return Vec3{X: c.Base.X, Y: c.Base.Y + c.Height/2, Z: c.Base.Z}
}

// Spec is the configuration form of a region.
type Spec struct {
	Type   string     `json:"type"`
	Min    [3]float64 `json:"min,omitempty"`
	Max    [3]float64 `json:"max,omitempty"`
	Base   [3]float64 `json:"base,omitempty"`
	Radius float64    `json:"radius,omitempty"`
	Height float64    `json:"height,omitempty"`
}

func (s Spec) Build() (Region, error) {
	switch strings.ToLower(strings.TrimSpace(s.Type)) {
	case "", "cuboid":
		return NewCuboid(FromArray(s.Min), FromArray(s.Max)), nil
	case "cylinder":
		if s.Radius <= 0 {
			return nil, fmt.Errorf("cylinder radius must be > 0")
		}
		if s.Height < 0 {
			return nil, fmt.Errorf("cylinder height must be >= 0")
		}
		return Cylinder{Base: FromArray(s.Base), Radius: s.Radius, Height: s.Height}, nil
	default:
		return nil, fmt.Errorf("unknown region type %q", s.Type)
	}
}

// Ref points at a region: either the id of a named region or an inline spec.
type Ref struct {
	ID     string
	Inline *Spec
}

func (r *Ref) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		return json.Unmarshal(b, &r.ID)
	}
	var s Spec
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	r.Inline = &s
	return nil
}

func (r Ref) MarshalJSON() ([]byte, error) {
	if r.Inline != nil {
		return json.Marshal(r.Inline)
	}
	return json.Marshal(r.ID)
}

func (r Ref) String() string {
	if r.Inline != nil {
		return "inline " + r.Inline.Type
	}
	return r.ID
}

// Registry holds the named regions of one map.
type Registry struct {
	byID map[string]Region
}

func NewRegistry(specs map[string]Spec) (*Registry, error) {
	r := &Registry{byID: map[string]Region{}}
	ids := make([]string, 0, len(specs))
	for id := range specs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		reg, err := specs[id].Build()
		if err != nil {
			return nil, fmt.Errorf("regions.%s: %w", id, err)
		}
		r.byID[id] = reg
	}
	return r, nil
}

func (r *Registry) Resolve(ref Ref) (Region, error) {
	if ref.Inline != nil {
		return ref.Inline.Build()
	}
	if reg, ok := r.byID[ref.ID]; ok {
		return reg, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrNotFound, ref.ID)
}
