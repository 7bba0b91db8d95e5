package region

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestCuboid_ContainsNormalizesCorners(t *testing.T) {
	c := NewCuboid(Vec3{X: 10, Y: 5, Z: 10}, Vec3{X: 0, Y: 0, Z: 0})
	if !c.Contains(Vec3{X: 3, Y: 2, Z: 9}) {
		t.Fatalf("point should be inside")
	}
	if c.Contains(Vec3{X: 11, Y: 2, Z: 9}) {
		t.Fatalf("point should be outside")
	}
	if got := c.Center(); got != (Vec3{X: 5, Y: 2.5, Z: 5}) {
		t.Fatalf("center=%+v", got)
	}
}

func TestCylinder_Contains(t *testing.T) {
	c := Cylinder{Base: Vec3{}, Radius: 3, Height: 4}
	if !c.Contains(Vec3{X: 2, Y: 1, Z: 2}) {
		t.Fatalf("point should be inside")
	}
	if c.Contains(Vec3{X: 3, Y: 1, Z: 3}) {
		t.Fatalf("point outside radius")
	}
	if c.Contains(Vec3{X: 0, Y: 5, Z: 0}) {
		t.Fatalf("point above cylinder")
	}
}

func TestRef_UnmarshalBothForms(t *testing.T) {
	var refs []Ref
	raw := `["blue-core", {"type":"cuboid","min":[0,0,0],"max":[1,1,1]}]`
	if err := json.Unmarshal([]byte(raw), &refs); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if refs[0].ID != "blue-core" || refs[0].Inline != nil {
		t.Fatalf("named ref mismatch: %+v", refs[0])
	}
	if refs[1].Inline == nil || refs[1].Inline.Max != [3]float64{1, 1, 1} {
		t.Fatalf("inline ref mismatch: %+v", refs[1])
	}
}

func TestRegistry_Resolve(t *testing.T) {
	r, err := NewRegistry(map[string]Spec{
		"core": {Type: "cuboid", Min: [3]float64{0, 0, 0}, Max: [3]float64{2, 2, 2}},
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if _, err := r.Resolve(Ref{ID: "core"}); err != nil {
		t.Fatalf("resolve core: %v", err)
	}
	if _, err := r.Resolve(Ref{ID: "nope"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := NewRegistry(map[string]Spec{"bad": {Type: "sphere"}}); err == nil {
		t.Fatalf("expected unknown type error")
	}
}

func TestVec3_Distance(t *testing.T) {
	if d := (Vec3{}).Distance(Vec3{X: 3, Y: 4}); d != 5 {
		t.Fatalf("distance=%v", d)
	}
}
