package pow

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/yuanshang000/ds2api/internal/upstream"
)

func TestEncodeAnswer(t *testing.T) {
	ch := &upstream.PowChallenge{
		Algorithm:  "DeepSeekHashV1",
		Challenge:  "abc123",
		Salt:       "s4lt",
		Difficulty: 144000,
		ExpireAt:   1680000000,
		Signature:  "sig",
		TargetPath: "/api/v0/chat/completion",
	}

	encoded, err := EncodeAnswer(ch, 42)
	if err != nil {
		t.Fatalf("EncodeAnswer: %v", err)
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		t.Fatalf("decode base64: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	want := map[string]any{
		"algorithm":   "DeepSeekHashV1",
		"challenge":   "abc123",
		"salt":        "s4lt",
		"answer":      float64(42),
		"signature":   "sig",
		"target_path": "/api/v0/chat/completion",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("field %s = %v, want %v", k, got[k], v)
		}
	}
	if _, ok := got["difficulty"]; ok {
		t.Error("difficulty should not appear in the answer payload")
	}
}
