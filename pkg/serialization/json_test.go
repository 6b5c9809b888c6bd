package serialization

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestJSONDecoderKeepsNumbers(t *testing.T) {
	var payload map[string]any
	if err := JSONDecoder(strings.NewReader(`{"yds": 351.25, "games": [1, 2]}`)).Decode(&payload); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	n, ok := payload["yds"].(json.Number)
	if !ok {
		t.Fatalf("yds decoded as %T, want json.Number", payload["yds"])
	}
	if n.String() != "351.25" {
		t.Errorf("yds = %s, want 351.25", n)
	}
}

func TestJSONEncoderWritesLine(t *testing.T) {
	var buf bytes.Buffer
	if err := JSONEncoder(&buf).Encode(map[string]any{"b": 1, "a": true}); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if got := strings.TrimSpace(buf.String()); got != `{"a":true,"b":1}` {
		t.Errorf("Encode wrote %s", got)
	}
}

func TestMarshalUnmarshal(t *testing.T) {
	data, err := Marshal(struct {
		Home string `json:"home"`
	}{Home: "KC"})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var back struct {
		Home string `json:"home"`
	}
	if err := Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if back.Home != "KC" {
		t.Errorf("Home = %q", back.Home)
	}
}
