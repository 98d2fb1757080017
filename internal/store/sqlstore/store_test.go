package sqlstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/nextlevelbuilder/gomemory/internal/store"
)

func openTestStore(t *testing.T) *RecordStore {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "records.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteRecordStore_CRUD(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	now := time.Now().UTC().Truncate(time.Millisecond)
	recs := []store.Record{
		{ID: "2", Content: "second", Type: store.TypeGlobal, CreatedAt: now, UpdatedAt: now},
		{ID: "1", Content: "first", Type: store.TypeGlobal, CreatedAt: now, UpdatedAt: now, Tags: []string{"t"}},
	}
	if err := s.WriteAll(ctx, store.GlobalFile, recs); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}
	if err := s.WriteAll(ctx, "conversation-c1", []store.Record{
		{ID: "3", Content: "third", Type: store.TypeConversation, ConversationID: "c1", CreatedAt: now, UpdatedAt: now},
	}); err != nil {
		t.Fatalf("WriteAll conversation: %v", err)
	}

	files, err := s.ListFiles(ctx)
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	if len(files) != 2 || files[0] != "conversation-c1" || files[1] != "global" {
		t.Errorf("ListFiles = %v", files)
	}

	got, err := s.ReadAll(ctx, store.GlobalFile)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(got) != 2 || got[0].ID != "2" || got[1].ID != "1" {
		t.Fatalf("ReadAll order = %+v, want [2 1]", got)
	}
	if len(got[1].Tags) != 1 || got[1].Tags[0] != "t" {
		t.Errorf("tags = %v, want [t]", got[1].Tags)
	}

	// Replace the global file with a single record.
	if err := s.WriteAll(ctx, store.GlobalFile, got[:1]); err != nil {
		t.Fatalf("WriteAll replace: %v", err)
	}
	got, _ = s.ReadAll(ctx, store.GlobalFile)
	if len(got) != 1 {
		t.Errorf("after replace got %d records, want 1", len(got))
	}

	// Empty write removes the file from the listing.
	s.WriteAll(ctx, "conversation-c1", nil)
	files, _ = s.ListFiles(ctx)
	if len(files) != 1 {
		t.Errorf("ListFiles after clear = %v, want [global]", files)
	}
}
