package memory

import (
	"strings"
	"sync"
	"time"

	"github.com/nextlevelbuilder/gomemory/internal/store"
)

// dateLayout is the key format of the creation-date dimension.
const dateLayout = "2006-01-02"

// IDSet is a set of record ids.
type IDSet map[string]struct{}

func (s IDSet) add(id string) { s[id] = struct{}{} }

// Has reports membership.
func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

func intersect(a, b IDSet) IDSet {
	if len(a) > len(b) {
		a, b = b, a
	}
	out := make(IDSet, len(a))
	for id := range a {
		if b.Has(id) {
			out.add(id)
		}
	}
	return out
}

// Criteria selects records through the index. Zero fields are ignored.
type Criteria struct {
	Text           string
	Tags           []string
	Type           store.RecordType
	ConversationID string
	Metadata       store.Metadata
	DateFrom       time.Time
	DateTo         time.Time
}

// IsEmpty reports whether no field is set.
func (c Criteria) IsEmpty() bool {
	return strings.TrimSpace(c.Text) == "" && len(c.Tags) == 0 && c.Type == "" &&
		c.ConversationID == "" && len(c.Metadata) == 0 && c.DateFrom.IsZero() && c.DateTo.IsZero()
}

// IndexStats counts distinct keys per dimension.
type IndexStats struct {
	Tokens        int `json:"tokens"`
	Tags          int `json:"tags"`
	Types         int `json:"types"`
	Conversations int `json:"conversations"`
	Metadata      int `json:"metadata"`
	Dates         int `json:"dates"`
}

// RecordIndex is an inverted index over six record dimensions: content
// tokens, tags, type, conversation id, "key:value" metadata pairs and the
// UTC creation date.
type RecordIndex struct {
	mu            sync.RWMutex
	tokens        map[string]IDSet
	tags          map[string]IDSet
	types         map[string]IDSet
	conversations map[string]IDSet
	metadata      map[string]IDSet
	dates         map[string]IDSet
}

func NewRecordIndex() *RecordIndex {
	idx := &RecordIndex{}
	idx.reset()
	return idx
}

func (idx *RecordIndex) reset() {
	idx.tokens = make(map[string]IDSet)
	idx.tags = make(map[string]IDSet)
	idx.types = make(map[string]IDSet)
	idx.conversations = make(map[string]IDSet)
	idx.metadata = make(map[string]IDSet)
	idx.dates = make(map[string]IDSet)
}

// recordKeys lists, per dimension, the keys r contributes.
type recordKeys struct {
	tokens, tags, types, conversations, metadata, dates []string
}

func keysFor(r *store.Record) recordKeys {
	k := recordKeys{
		tokens: uniqueTokens(r.Content),
		types:  []string{typeKey(r.Type)},
		dates:  []string{r.CreatedAt.UTC().Format(dateLayout)},
	}
	for _, tag := range r.Tags {
		if t := tagKey(tag); t != "" {
			k.tags = append(k.tags, t)
		}
	}
	if r.ConversationID != "" {
		k.conversations = []string{r.ConversationID}
	}
	for _, key := range r.Metadata.Keys() {
		if v := r.Metadata[key]; v.IsScalar() {
			k.metadata = append(k.metadata, metadataKey(key, v))
		}
	}
	return k
}

func typeKey(t store.RecordType) string { return strings.ToLower(string(t)) }

func tagKey(tag string) string { return strings.ToLower(strings.TrimSpace(tag)) }

func metadataKey(key string, v store.Value) string { return key + ":" + v.String() }

func addKeys(m map[string]IDSet, keys []string, id string) {
	for _, k := range keys {
		set, ok := m[k]
		if !ok {
			set = make(IDSet)
			m[k] = set
		}
		set.add(id)
	}
}

func removeKeys(m map[string]IDSet, keys []string, id string) {
	for _, k := range keys {
		set, ok := m[k]
		if !ok {
			continue
		}
		delete(set, id)
		if len(set) == 0 {
			delete(m, k)
		}
	}
}

// Add indexes r under all six dimensions.
func (idx *RecordIndex) Add(r *store.Record) {
	k := keysFor(r)
	idx.mu.Lock()
	defer idx.mu.Unlock()
	addKeys(idx.tokens, k.tokens, r.ID)
	addKeys(idx.tags, k.tags, r.ID)
	addKeys(idx.types, k.types, r.ID)
	addKeys(idx.conversations, k.conversations, r.ID)
	addKeys(idx.metadata, k.metadata, r.ID)
	addKeys(idx.dates, k.dates, r.ID)
}

// Remove drops r from every dimension. Keys left with no ids are deleted.
func (idx *RecordIndex) Remove(r *store.Record) {
	k := keysFor(r)
	idx.mu.Lock()
	defer idx.mu.Unlock()
	removeKeys(idx.tokens, k.tokens, r.ID)
	removeKeys(idx.tags, k.tags, r.ID)
	removeKeys(idx.types, k.types, r.ID)
	removeKeys(idx.conversations, k.conversations, r.ID)
	removeKeys(idx.metadata, k.metadata, r.ID)
	removeKeys(idx.dates, k.dates, r.ID)
}

// Update replaces the entries of old with those of updated.
func (idx *RecordIndex) Update(old, updated *store.Record) {
	idx.Remove(old)
	idx.Add(updated)
}

// Clear empties the index.
func (idx *RecordIndex) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.reset()
}

// Search returns the ids matching every supplied field of c. Text tokens are
// AND-ed, tags are OR-ed, and the remaining fields narrow the running result.
// Empty criteria return an empty set; callers treat that case as "no index
// filtering".
func (idx *RecordIndex) Search(c Criteria) IDSet {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var result IDSet
	narrow := func(candidates IDSet) {
		if result == nil {
			result = candidates
			return
		}
		result = intersect(result, candidates)
	}

	if strings.TrimSpace(c.Text) != "" {
		narrow(idx.searchText(c.Text))
	}
	if len(c.Tags) > 0 {
		narrow(idx.searchTags(c.Tags))
	}
	if c.Type != "" {
		narrow(copySet(idx.types[typeKey(c.Type)]))
	}
	if c.ConversationID != "" {
		narrow(copySet(idx.conversations[c.ConversationID]))
	}
	for _, key := range c.Metadata.Keys() {
		narrow(copySet(idx.metadata[metadataKey(key, c.Metadata[key])]))
	}
	if !c.DateFrom.IsZero() || !c.DateTo.IsZero() {
		narrow(idx.searchDates(c.DateFrom, c.DateTo))
	}

	if result == nil {
		return IDSet{}
	}
	return result
}

func (idx *RecordIndex) searchText(text string) IDSet {
	tokens := uniqueTokens(text)
	if len(tokens) == 0 {
		return IDSet{}
	}
	var result IDSet
	for _, tok := range tokens {
		set, ok := idx.tokens[tok]
		if !ok {
			return IDSet{}
		}
		if result == nil {
			result = copySet(set)
			continue
		}
		result = intersect(result, set)
	}
	return result
}

func (idx *RecordIndex) searchTags(tags []string) IDSet {
	result := make(IDSet)
	for _, tag := range tags {
		for id := range idx.tags[tagKey(tag)] {
			result.add(id)
		}
	}
	return result
}

func (idx *RecordIndex) searchDates(from, to time.Time) IDSet {
	lo, hi := "", ""
	if !from.IsZero() {
		lo = from.UTC().Format(dateLayout)
	}
	if !to.IsZero() {
		hi = to.UTC().Format(dateLayout)
	}
	result := make(IDSet)
	for day, set := range idx.dates {
		if lo != "" && day < lo {
			continue
		}
		if hi != "" && day > hi {
			continue
		}
		for id := range set {
			result.add(id)
		}
	}
	return result
}

func copySet(s IDSet) IDSet {
	out := make(IDSet, len(s))
	for id := range s {
		out.add(id)
	}
	return out
}

func (idx *RecordIndex) Stats() IndexStats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return IndexStats{
		Tokens:        len(idx.tokens),
		Tags:          len(idx.tags),
		Types:         len(idx.types),
		Conversations: len(idx.conversations),
		Metadata:      len(idx.metadata),
		Dates:         len(idx.dates),
	}
}
