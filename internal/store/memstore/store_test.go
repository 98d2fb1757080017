package memstore

import (
	"context"
	"testing"

	"github.com/nextlevelbuilder/gomemory/internal/store"
)

func TestRecordStore_WriteReadRemove(t *testing.T) {
	ctx := context.Background()
	s := New()

	recs := []store.Record{{ID: "1", Content: "a", Type: store.TypeGlobal, Tags: []string{"x"}}}
	if err := s.WriteAll(ctx, store.GlobalFile, recs); err != nil {
		t.Fatal(err)
	}
	recs[0].Tags[0] = "mutated"

	got, _ := s.ReadAll(ctx, store.GlobalFile)
	if len(got) != 1 || got[0].Tags[0] != "x" {
		t.Fatalf("stored records alias caller slice: %+v", got)
	}

	if err := s.WriteAll(ctx, store.GlobalFile, nil); err != nil {
		t.Fatal(err)
	}
	files, _ := s.ListFiles(ctx)
	if len(files) != 0 {
		t.Errorf("files = %v, want none after empty write", files)
	}
}
