package protocol

import "testing"

func TestValidateInbound(t *testing.T) {
	ok := map[string]string{
		TypeHello: `{"type":"HELLO","protocol_version":"1.0","name":"alice","team":"red","pos":[1,2,3]}`,
		TypeMove:  `{"type":"MOVE","pos":[0.5,64,-3]}`,
		TypeBreak: `{"type":"BREAK","pos":[1,2,3],"material":"OBSIDIAN"}`,
	}
	for typ, raw := range ok {
		if err := ValidateInbound(typ, []byte(raw)); err != nil {
			t.Fatalf("%s: %v", typ, err)
		}
	}

	bad := []struct{ typ, raw string }{
		{TypeHello, `{"type":"HELLO","protocol_version":"1.0"}`},
		{TypeHello, `{"type":"HELLO","protocol_version":"1.0","name":""}`},
		{TypeMove, `{"type":"MOVE","pos":[1,2]}`},
		{TypeBreak, `{"type":"BREAK","pos":[1,2,3]}`},
		{TypeBreak, `{"type":"MOVE","pos":[1,2,3],"material":"STONE"}`},
		{TypeChat, `{"type":"CHAT"}`},
		{TypeMove, `{`},
	}
	for _, c := range bad {
		if err := ValidateInbound(c.typ, []byte(c.raw)); err == nil {
			t.Fatalf("%s %s: expected error", c.typ, c.raw)
		}
	}
}

func TestDecodeBase(t *testing.T) {
	m, err := DecodeBase([]byte(`{"type":"BREAK","protocol_version":"1.0","pos":[0,0,0]}`))
	if err != nil || m.Type != TypeBreak || m.ProtocolVersion != Version {
		t.Fatalf("m=%+v err=%v", m, err)
	}
}
