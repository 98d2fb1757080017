package store

import (
	"time"

	"github.com/google/uuid"
)

// RecordType classifies a memory record.
type RecordType string

const (
	TypeGlobal       RecordType = "GLOBAL"
	TypeConversation RecordType = "CONVERSATION"
	TypeTemporary    RecordType = "TEMPORARY"
)

// Valid reports whether t is one of the known record types.
func (t RecordType) Valid() bool {
	switch t {
	case TypeGlobal, TypeConversation, TypeTemporary:
		return true
	}
	return false
}

// ParseRecordType accepts the canonical upper-case names and their lower-case forms.
func ParseRecordType(s string) (RecordType, bool) {
	switch s {
	case "GLOBAL", "global":
		return TypeGlobal, true
	case "CONVERSATION", "conversation":
		return TypeConversation, true
	case "TEMPORARY", "temporary":
		return TypeTemporary, true
	}
	return "", false
}

// Record is a single memory held on behalf of the assistant.
type Record struct {
	ID             string     `json:"id"`
	Content        string     `json:"content"`
	Type           RecordType `json:"type"`
	ConversationID string     `json:"conversationId,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	Tags           []string   `json:"tags"`
	Metadata       Metadata   `json:"metadata,omitempty"`
	Embedding      []float32  `json:"embedding,omitempty"`
	ExpiresAt      *time.Time `json:"expiresAt,omitempty"`
}

// Clone returns a deep copy of r.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	if r.Tags != nil {
		c.Tags = append([]string(nil), r.Tags...)
	}
	c.Metadata = r.Metadata.Clone()
	if r.Embedding != nil {
		c.Embedding = append([]float32(nil), r.Embedding...)
	}
	if r.ExpiresAt != nil {
		t := *r.ExpiresAt
		c.ExpiresAt = &t
	}
	return &c
}

// Expired reports whether the record carries an expiry that is not after now.
func (r *Record) Expired(now time.Time) bool {
	return r.ExpiresAt != nil && !r.ExpiresAt.After(now)
}

// GlobalFile is the storage file holding records without a conversation id.
const GlobalFile = "global"

const conversationFilePrefix = "conversation-"

// FileFor returns the logical storage file that owns r.
func FileFor(r *Record) string {
	if r.ConversationID == "" {
		return GlobalFile
	}
	return conversationFilePrefix + r.ConversationID
}

// GenNewID generates a new UUID v7 (time-ordered).
func GenNewID() string {
	return uuid.Must(uuid.NewV7()).String()
}
