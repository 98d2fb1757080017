package store

import (
	"encoding/json"
	"testing"
)

func TestValueJSON(t *testing.T) {
	raw := `{"source":"chat","score":0.5,"pinned":true,"refs":[1,"two"],"nested":{"a":null}}`
	var m Metadata
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if v := m["source"]; v.Kind() != KindString || v.String() != "chat" {
		t.Errorf("source = %v (%s), want string chat", v, v.Kind())
	}
	if v := m["score"]; v.Kind() != KindNumber || v.String() != "0.5" {
		t.Errorf("score = %s (%s), want number 0.5", v, v.Kind())
	}
	if v := m["pinned"]; v.Kind() != KindBool || v.String() != "true" {
		t.Errorf("pinned = %s, want true", v)
	}
	if v := m["refs"]; v.Kind() != KindArray {
		t.Errorf("refs kind = %s, want array", v.Kind())
	}
	if v := m["nested"]; v.Kind() != KindObject {
		t.Errorf("nested kind = %s, want object", v.Kind())
	}

	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Metadata
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal back: %v", err)
	}
	for k, v := range m {
		if !v.Equal(back[k]) {
			t.Errorf("key %q changed: %s != %s", k, v, back[k])
		}
	}
}

func TestValueOf_Unsupported(t *testing.T) {
	if _, err := ValueOf(struct{}{}); err == nil {
		t.Error("expected error for struct value")
	}
}

func TestValue_IsScalar(t *testing.T) {
	tests := []struct {
		v    Value
		want bool
	}{
		{StringValue("a"), true},
		{NumberValue(1), true},
		{BoolValue(false), true},
		{Value{}, false},
		{ArrayValue(), false},
		{ObjectValue(nil), false},
	}
	for _, tt := range tests {
		if got := tt.v.IsScalar(); got != tt.want {
			t.Errorf("%s.IsScalar() = %v, want %v", tt.v.Kind(), got, tt.want)
		}
	}
}
