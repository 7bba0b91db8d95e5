// Package mapinfo loads map.json files: team and region definitions plus one
// raw section per game mode.
package mapinfo

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"monumentwars/internal/match/region"
	"monumentwars/internal/match/team"
)

//go:embed map.schema.json
var schemaJSON string

var schema = jsonschema.MustCompileString("map.schema.json", schemaJSON)

type MapInfo struct {
	Name    string                 `json:"name"`
	Version string                 `json:"version,omitempty"`
	Authors []string               `json:"authors,omitempty"`
	Teams   []team.Spec            `json:"teams"`
	Regions map[string]region.Spec `json:"regions,omitempty"`

	sections map[string]json.RawMessage
}

// Section returns the raw JSON of a top-level key, e.g. "dtm".
func (m *MapInfo) Section(name string) (json.RawMessage, bool) {
	raw, ok := m.sections[name]
	return raw, ok
}

func LoadFile(path string) (*MapInfo, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return m, nil
}

func Parse(b []byte) (*MapInfo, error) {
	var doc any
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if err := schema.Validate(doc); err != nil {
		return nil, err
	}

	var m MapInfo
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(b, &m.sections); err != nil {
		return nil, err
	}
	return &m, nil
}

// StringList accepts either a single string or an array of strings.
type StringList []string

func (l *StringList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*l = StringList{s}
		return nil
	}
	var out []string
	if err := json.Unmarshal(b, &out); err != nil {
		return err
	}
	*l = out
	return nil
}
