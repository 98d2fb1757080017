package store

import (
	"fmt"
	"strings"
)

// MaxContentLength bounds a record's content in bytes.
const MaxContentLength = 100_000

// MaxTags bounds the number of tags per record.
const MaxTags = 64

// ValidateRecord checks the shape of a record before it is persisted.
func ValidateRecord(r *Record) error {
	if r == nil {
		return fmt.Errorf("%w: record is nil", ErrValidation)
	}
	if strings.TrimSpace(r.Content) == "" {
		return fmt.Errorf("%w: content must not be empty", ErrValidation)
	}
	if len(r.Content) > MaxContentLength {
		return fmt.Errorf("%w: content too long: %d bytes (max %d)", ErrValidation, len(r.Content), MaxContentLength)
	}
	if !r.Type.Valid() {
		return fmt.Errorf("%w: unknown record type %q", ErrValidation, r.Type)
	}
	if r.Type == TypeConversation && r.ConversationID == "" {
		return fmt.Errorf("%w: conversation records require a conversationId", ErrValidation)
	}
	if len(r.Tags) > MaxTags {
		return fmt.Errorf("%w: too many tags: %d (max %d)", ErrValidation, len(r.Tags), MaxTags)
	}
	for _, tag := range r.Tags {
		if strings.TrimSpace(tag) == "" {
			return fmt.Errorf("%w: tags must not be blank", ErrValidation)
		}
	}
	if strings.ContainsAny(r.ConversationID, `/\`) {
		return fmt.Errorf("%w: conversationId must not contain path separators", ErrValidation)
	}
	return nil
}
