// internal/archive/redis.go
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jqwei/undercover/internal/models"
)

// Rdb is the global Redis client. Connect it once at application startup;
// when it stays nil the match archive is simply disabled.
var Rdb *redis.Client

// DefaultQueueName is the Redis list (queue) name for finished-match records.
var DefaultQueueName = "undercover_matches"

// MatchPlayer is one roster entry as it stood when the game ended.
type MatchPlayer struct {
	ID     string        `json:"id"`
	Name   string        `json:"name"`
	Role   models.Role   `json:"role,omitempty"`
	Status models.Status `json:"status"`
}

// MatchRecord holds the final outcome of one game, queued for the archivist.
// Room ids recycle, so every record carries its own match id.
type MatchRecord struct {
	MatchID   uuid.UUID     `json:"match_id"`
	RoomID    string        `json:"room_id"`
	Winner    models.Role   `json:"winner"`
	GoodWord  string        `json:"good_word"`
	EvilWord  string        `json:"evil_word"`
	Players   []MatchPlayer `json:"players"`
	CreatedAt int64         `json:"created_at"`
	EndedAt   int64         `json:"ended_at"`
}

// ConnectRedis initializes the global Redis client with environment variables:
//   - REDIS_ADDR (default "localhost:6379")
//   - REDIS_DB (optional, default 0)
func ConnectRedis() error {
	addr := getEnv("REDIS_ADDR", "localhost:6379")
	dbIdx := getEnvInt("REDIS_DB", 0)

	Rdb = redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   dbIdx,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := Rdb.Ping(ctx).Err(); err != nil {
		Rdb = nil
		return fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return nil
}

// Enabled reports whether a match archive queue is configured.
func Enabled() bool {
	return Rdb != nil
}

// PublishMatchResult serializes the given record to JSON, then pushes it to
// the archive queue. This does not block the calling logic (other than a
// quick network send).
func PublishMatchResult(ctx context.Context, record MatchRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal MatchRecord: %w", err)
	}

	queueName := getEnv("ARCHIVE_QUEUE_NAME", DefaultQueueName)
	if err := Rdb.RPush(ctx, queueName, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", queueName, err)
	}
	return nil
}

// getEnv is a helper to read an environment variable or return a default value.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getEnvInt is a helper to parse an environment variable as integer, else a default value.
func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
