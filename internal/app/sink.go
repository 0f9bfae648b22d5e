package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/linzo/meet/internal/domain"
)

// TranscriptSink is the persistence collaborator: a side observer of
// the transcript fan-out, typically feeding later summarization. It has
// no write access back into session state.
type TranscriptSink interface {
	Record(ctx context.Context, room domain.RoomID, from domain.PeerID, speaker, text string) error
	Close() error
}

// NopSink is used when no persistence backend is configured.
type NopSink struct{}

func (NopSink) Record(context.Context, domain.RoomID, domain.PeerID, string, string) error {
	return nil
}
func (NopSink) Close() error { return nil }

type transcriptRecord struct {
	From    domain.PeerID `json:"from"`
	Speaker string        `json:"speaker"`
	Text    string        `json:"text"`
	At      int64         `json:"at"`
}

// RedisSink appends transcript records to a per-room Redis list.
type RedisSink struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisSink builds a sink under the given key prefix (e.g. "meet").
// Lists expire after ttl so abandoned rooms do not pile up.
func NewRedisSink(rdb *redis.Client, prefix string, ttl time.Duration) *RedisSink {
	p := strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if p == "" {
		p = "meet"
	}
	return &RedisSink{rdb: rdb, prefix: p, ttl: ttl}
}

func (s *RedisSink) key(room domain.RoomID) string {
	return fmt.Sprintf("%s:transcript:%s", s.prefix, room)
}

func (s *RedisSink) Record(ctx context.Context, room domain.RoomID, from domain.PeerID, speaker, text string) error {
	b, err := json.Marshal(transcriptRecord{
		From:    from,
		Speaker: speaker,
		Text:    text,
		At:      time.Now().Unix(),
	})
	if err != nil {
		return err
	}
	key := s.key(room)
	if err := s.rdb.RPush(ctx, key, b).Err(); err != nil {
		return err
	}
	if s.ttl > 0 {
		return s.rdb.Expire(ctx, key, s.ttl).Err()
	}
	return nil
}

func (s *RedisSink) Close() error { return s.rdb.Close() }
