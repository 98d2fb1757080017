package file

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nextlevelbuilder/gomemory/internal/store"
)

func TestRecordStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewRecordStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewRecordStore: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	recs := []store.Record{
		{ID: "a", Content: "first", Type: store.TypeGlobal, CreatedAt: now, UpdatedAt: now, Tags: []string{"x"},
			Metadata: store.Metadata{"source": store.StringValue("chat")}},
		{ID: "b", Content: "second", Type: store.TypeTemporary, CreatedAt: now, UpdatedAt: now},
	}
	if err := s.WriteAll(ctx, store.GlobalFile, recs); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}

	files, err := s.ListFiles(ctx)
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	if len(files) != 1 || files[0] != store.GlobalFile {
		t.Errorf("ListFiles = %v, want [global]", files)
	}

	got, err := s.ReadAll(ctx, store.GlobalFile)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ReadAll returned %d records, want 2", len(got))
	}
	if got[0].ID != "a" || got[0].Content != "first" {
		t.Errorf("record 0 = %+v", got[0])
	}
	if v, _ := got[0].Metadata["source"].Str(); v != "chat" {
		t.Errorf("metadata source = %q, want chat", v)
	}
	if !got[0].CreatedAt.Equal(now) {
		t.Errorf("CreatedAt = %v, want %v", got[0].CreatedAt, now)
	}
}

func TestRecordStore_MissingFile(t *testing.T) {
	s, _ := NewRecordStore(t.TempDir())
	got, err := s.ReadAll(context.Background(), "conversation-none")
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no records, got %d", len(got))
	}
}

func TestRecordStore_EmptyWriteRemovesFile(t *testing.T) {
	ctx := context.Background()
	s, _ := NewRecordStore(t.TempDir())
	s.WriteAll(ctx, "conversation-c1", []store.Record{{ID: "x", Content: "c", Type: store.TypeConversation, ConversationID: "c1"}})
	if err := s.WriteAll(ctx, "conversation-c1", nil); err != nil {
		t.Fatalf("WriteAll(nil): %v", err)
	}
	files, _ := s.ListFiles(ctx)
	if len(files) != 0 {
		t.Errorf("ListFiles = %v, want none", files)
	}
}

func TestRecordStore_RejectsTraversal(t *testing.T) {
	s, _ := NewRecordStore(t.TempDir())
	_, err := s.ReadAll(context.Background(), "../secret")
	if !errors.Is(err, store.ErrValidation) {
		t.Errorf("ReadAll(../secret) error = %v, want ErrValidation", err)
	}
}
