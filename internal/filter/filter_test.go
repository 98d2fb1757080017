package filter

import (
	"errors"
	"testing"
	"time"

	"github.com/nextlevelbuilder/gomemory/internal/store"
)

func TestFilter_Match(t *testing.T) {
	r := &store.Record{
		ID:        "1",
		Content:   "Deploy the billing service on Friday",
		Type:      store.TypeGlobal,
		Tags:      []string{"work", "deploy"},
		Metadata:  store.Metadata{"priority": store.NumberValue(3), "owner": store.StringValue("ops")},
		CreatedAt: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
	}

	tests := []struct {
		expr string
		want bool
	}{
		{`"work" in tags`, true},
		{`"home" in tags`, false},
		{`type == "GLOBAL" && metadata.priority >= 2.0`, true},
		{`metadata.owner == "dev"`, false},
		{`content.contains("billing")`, true},
		{`createdAt > timestamp("2026-01-01T00:00:00Z")`, true},
		{`metadata.missing == 1.0`, false},
		{`!hasEmbedding`, true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			f, err := Compile(tt.expr)
			if err != nil {
				t.Fatalf("Compile: %v", err)
			}
			if got := f.Match(r); got != tt.want {
				t.Errorf("Match = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCompile_Errors(t *testing.T) {
	for _, expr := range []string{"", "tags +", `content`, `unknownVar == 1`} {
		if _, err := Compile(expr); !errors.Is(err, store.ErrValidation) {
			t.Errorf("Compile(%q) err = %v, want ErrValidation", expr, err)
		}
	}
}
