// Package redisstore keeps memory records in Redis, one msgpack blob per
// logical file plus a set naming the files.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/nextlevelbuilder/gomemory/internal/store"
)

const defaultPrefix = "gomemory"

// RecordStore implements store.RecordStore on a Redis client.
type RecordStore struct {
	client *redis.Client
	prefix string
}

var _ store.RecordStore = (*RecordStore)(nil)

// Open parses a redis:// URL and pings the server.
func Open(ctx context.Context, url, prefix string) (*RecordStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis record store connected", "addr", opts.Addr)
	return New(client, prefix), nil
}

// New wraps an existing client.
func New(client *redis.Client, prefix string) *RecordStore {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &RecordStore{client: client, prefix: prefix}
}

func (s *RecordStore) filesKey() string { return s.prefix + ":files" }

func (s *RecordStore) recordsKey(file string) string { return s.prefix + ":records:" + file }

func (s *RecordStore) ListFiles(ctx context.Context) ([]string, error) {
	files, err := s.client.SMembers(ctx, s.filesKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: list files: %v", store.ErrStorage, err)
	}
	sort.Strings(files)
	return files, nil
}

func (s *RecordStore) ReadAll(ctx context.Context, file string) ([]store.Record, error) {
	data, err := s.client.Get(ctx, s.recordsKey(file)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", store.ErrStorage, file, err)
	}
	records, err := decodeRecords(data)
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", store.ErrStorage, file, err)
	}
	return records, nil
}

func (s *RecordStore) WriteAll(ctx context.Context, file string, records []store.Record) error {
	if len(records) == 0 {
		_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, s.recordsKey(file))
			pipe.SRem(ctx, s.filesKey(), file)
			return nil
		})
		if err != nil {
			return fmt.Errorf("%w: clear %s: %v", store.ErrStorage, file, err)
		}
		return nil
	}

	data, err := encodeRecords(records)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", store.ErrStorage, file, err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.recordsKey(file), data, 0)
		pipe.SAdd(ctx, s.filesKey(), file)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: write %s: %v", store.ErrStorage, file, err)
	}
	return nil
}

func (s *RecordStore) Close() error { return s.client.Close() }

// wireRecord is the msgpack shape of a record. Metadata travels as plain
// values because store.Value has no exported fields.
type wireRecord struct {
	ID             string         `msgpack:"id"`
	Content        string         `msgpack:"content"`
	Type           string         `msgpack:"type"`
	ConversationID string         `msgpack:"conversationId,omitempty"`
	CreatedAt      time.Time      `msgpack:"createdAt"`
	UpdatedAt      time.Time      `msgpack:"updatedAt"`
	Tags           []string       `msgpack:"tags"`
	Metadata       map[string]any `msgpack:"metadata,omitempty"`
	Embedding      []float32      `msgpack:"embedding,omitempty"`
	ExpiresAt      *time.Time     `msgpack:"expiresAt,omitempty"`
}

func encodeRecords(records []store.Record) ([]byte, error) {
	wire := make([]wireRecord, len(records))
	for i, r := range records {
		w := wireRecord{
			ID:             r.ID,
			Content:        r.Content,
			Type:           string(r.Type),
			ConversationID: r.ConversationID,
			CreatedAt:      r.CreatedAt,
			UpdatedAt:      r.UpdatedAt,
			Tags:           r.Tags,
			Embedding:      r.Embedding,
			ExpiresAt:      r.ExpiresAt,
		}
		if len(r.Metadata) > 0 {
			w.Metadata = r.Metadata.Any()
		}
		wire[i] = w
	}
	return msgpack.Marshal(wire)
}

func decodeRecords(data []byte) ([]store.Record, error) {
	var wire []wireRecord
	if err := msgpack.Unmarshal(data, &wire); err != nil {
		return nil, err
	}
	records := make([]store.Record, len(wire))
	for i, w := range wire {
		meta, err := store.MetadataOf(normalizeMsgpack(w.Metadata))
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", w.ID, err)
		}
		records[i] = store.Record{
			ID:             w.ID,
			Content:        w.Content,
			Type:           store.RecordType(w.Type),
			ConversationID: w.ConversationID,
			CreatedAt:      w.CreatedAt,
			UpdatedAt:      w.UpdatedAt,
			Tags:           w.Tags,
			Metadata:       meta,
			Embedding:      w.Embedding,
			ExpiresAt:      w.ExpiresAt,
		}
	}
	return records, nil
}

// normalizeMsgpack widens the integer and float32 types msgpack may decode
// into float64 so they map onto number values.
func normalizeMsgpack(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	for k, v := range m {
		m[k] = widen(v)
	}
	return m
}

func widen(v any) any {
	switch t := v.(type) {
	case int8:
		return float64(t)
	case int16:
		return float64(t)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case uint8:
		return float64(t)
	case uint16:
		return float64(t)
	case uint32:
		return float64(t)
	case uint64:
		return float64(t)
	case float32:
		return float64(t)
	case []any:
		for i := range t {
			t[i] = widen(t[i])
		}
		return t
	case map[string]any:
		return normalizeMsgpack(t)
	}
	return v
}
