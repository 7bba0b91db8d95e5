package mapinfo

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleMap = `{
  "name": "Twin Cores",
  "version": "1.0",
  "teams": [
    {"id": "red", "alias": "Red", "color": "red"},
    {"id": "blue", "alias": "Blue", "color": "blue"}
  ],
  "regions": {
    "blue-core": {"type": "cuboid", "min": [0, 0, 0], "max": [4, 4, 4]}
  },
  "dtm": {
    "monuments": [
      {"name": "Blue Core", "region": "blue-core", "teams": "blue", "materials": ["OBSIDIAN"], "health": 100},
      {"name": "Red Core", "region": {"type": "cylinder", "base": [50, 0, 50], "radius": 2, "height": 3}, "teams": ["red"], "materials": "OBSIDIAN", "health": 20}
    ]
  }
}`

func TestParse_Sample(t *testing.T) {
	m, err := Parse([]byte(sampleMap))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if m.Name != "Twin Cores" || len(m.Teams) != 2 || len(m.Regions) != 1 {
		t.Fatalf("unexpected map: %+v", m)
	}
	raw, ok := m.Section("dtm")
	if !ok {
		t.Fatalf("missing dtm section")
	}
	var dtm struct {
		Monuments []struct {
			Teams     StringList `json:"teams"`
			Materials StringList `json:"materials"`
		} `json:"monuments"`
	}
	if err := json.Unmarshal(raw, &dtm); err != nil {
		t.Fatalf("unmarshal dtm: %v", err)
	}
	if len(dtm.Monuments) != 2 || dtm.Monuments[0].Teams[0] != "blue" || dtm.Monuments[1].Materials[0] != "OBSIDIAN" {
		t.Fatalf("string lists: %+v", dtm.Monuments)
	}
	if _, ok := m.Section("ctf"); ok {
		t.Fatalf("unexpected ctf section")
	}
}

func TestParse_SchemaRejectsBadMonuments(t *testing.T) {
	cases := map[string]string{
		"zero health":   `"health": 100`,
		"missing teams": `"teams": "blue", `,
		"bad region":    `"region": "blue-core"`,
	}
	replacements := map[string]string{
		"zero health":   `"health": 0`,
		"missing teams": ``,
		"bad region":    `"region": {"type": "sphere"}`,
	}
	for name, find := range cases {
		doc := strings.Replace(sampleMap, find, replacements[name], 1)
		if doc == sampleMap {
			t.Fatalf("%s: replacement did not apply", name)
		}
		if _, err := Parse([]byte(doc)); err == nil {
			t.Fatalf("%s: expected schema error", name)
		}
	}
}

func TestParse_SchemaRejectsUnknownTeamKeys(t *testing.T) {
	doc := strings.Replace(sampleMap, `{"id": "red", "alias": "Red", "color": "red"}`, `{"id": "red", "alias": "Red", "color": "red", "min": 2}`, 1)
	if doc == sampleMap {
		t.Fatalf("replacement did not apply")
	}
	if _, err := Parse([]byte(doc)); err == nil {
		t.Fatalf("expected schema error for team min")
	}
	doc = strings.Replace(sampleMap, `{"id": "red", "alias": "Red", "color": "red"}`, `{"id": "red", "alias": "Red", "color": "red", "max": 2}`, 1)
	m, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse with max: %v", err)
	}
	if m.Teams[0].Max != 2 {
		t.Fatalf("max=%d", m.Teams[0].Max)
	}
}

func TestLoadFile_WrapsFileName(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "map.json")
	if err := os.WriteFile(path, []byte(`{"name": ""}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := LoadFile(path)
	if err == nil || !strings.HasPrefix(err.Error(), "map.json: ") {
		t.Fatalf("err=%v", err)
	}
}
