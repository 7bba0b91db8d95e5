package protocol

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

var inbound = map[string]*jsonschema.Schema{
	TypeHello: mustCompile("hello.schema.json"),
	TypeMove:  mustCompile("move.schema.json"),
	TypeBreak: mustCompile("break.schema.json"),
}

func mustCompile(name string) *jsonschema.Schema {
	b, err := schemaFS.ReadFile("schemas/" + name)
	if err != nil {
		panic(err)
	}
	return jsonschema.MustCompileString(name, string(b))
}

// ValidateInbound checks a client frame against the schema of its type.
func ValidateInbound(msgType string, raw []byte) error {
	s, ok := inbound[msgType]
	if !ok {
		return fmt.Errorf("unsupported message type %q", msgType)
	}
	var doc any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return err
	}
	return s.Validate(doc)
}
