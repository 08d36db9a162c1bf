// cmd/archivist/main.go is an asynchronous worker that pops finished-match
// records from the Redis queue and persists them to a PostgreSQL database.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"

	"github.com/jqwei/undercover/internal/archive"
	"github.com/jqwei/undercover/internal/database"
)

// ArchivistService encapsulates the Redis + DB logic for draining the match
// queue in batches.
type ArchivistService struct {
	redisClient *redis.Client
	batchSize   int
	flushDelay  time.Duration

	batchMu sync.Mutex
	batch   []archive.MatchRecord

	ctx      context.Context
	cancelFn context.CancelFunc
}

// NewArchivistService constructs an ArchivistService from environment
// variables or defaults.
func NewArchivistService() *ArchivistService {
	batchSize := getEnvInt("ARCHIVIST_BATCH_SIZE", 20)
	flushMs := getEnvInt("ARCHIVIST_FLUSH_MS", 500)

	redisAddr := getEnv("REDIS_ADDR", "localhost:6379")
	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	ctx, cancel := context.WithCancel(context.Background())
	return &ArchivistService{
		redisClient: rdb,
		batchSize:   batchSize,
		flushDelay:  time.Duration(flushMs) * time.Millisecond,
		batch:       make([]archive.MatchRecord, 0, batchSize),
		ctx:         ctx,
		cancelFn:    cancel,
	}
}

// Run connects the database and starts the queue-draining loop.
func (as *ArchivistService) Run() {
	database.ConnectDB()

	go as.readRedisLoop()
	go as.flushLoop()

	log.Println("undercover-archivist service started.")
	<-as.ctx.Done()
	as.flushBatchToDB()
	log.Println("undercover-archivist shutting down.")
}

// readRedisLoop continuously uses BLPop to retrieve match records from the
// Redis queue.
func (as *ArchivistService) readRedisLoop() {
	queueName := getEnv("ARCHIVE_QUEUE_NAME", archive.DefaultQueueName)

	for {
		select {
		case <-as.ctx.Done():
			return
		default:
			// Use BLPop with a 3-second timeout so that context cancellation is handled.
			res, err := as.redisClient.BLPop(as.ctx, 3*time.Second, queueName).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				log.Printf("[ERROR] BLPop: %v\n", err)
				continue
			}
			if len(res) < 2 {
				// No message popped.
				continue
			}

			// res[0] is the queue name and res[1] the payload.
			var record archive.MatchRecord
			if err := json.Unmarshal([]byte(res[1]), &record); err != nil {
				log.Printf("invalid match record: %v\n", err)
				continue
			}
			as.appendToBatch(record)
		}
	}
}

// appendToBatch adds a record to the in-memory batch and flushes if the
// threshold is reached.
func (as *ArchivistService) appendToBatch(record archive.MatchRecord) {
	as.batchMu.Lock()
	full := false
	as.batch = append(as.batch, record)
	if len(as.batch) >= as.batchSize {
		full = true
	}
	as.batchMu.Unlock()
	if full {
		as.flushBatchToDB()
	}
}

// flushLoop periodically flushes whatever has accumulated.
func (as *ArchivistService) flushLoop() {
	ticker := time.NewTicker(as.flushDelay)
	defer ticker.Stop()
	for {
		select {
		case <-as.ctx.Done():
			return
		case <-ticker.C:
			as.flushBatchToDB()
		}
	}
}

// flushBatchToDB persists the current batch, one transaction per match so a
// single malformed record cannot wedge the whole queue.
func (as *ArchivistService) flushBatchToDB() {
	as.batchMu.Lock()
	if len(as.batch) == 0 {
		as.batchMu.Unlock()
		return
	}
	batchCopy := make([]archive.MatchRecord, len(as.batch))
	copy(batchCopy, as.batch)
	as.batch = as.batch[:0]
	as.batchMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	flushed := 0
	for _, rec := range batchCopy {
		if err := database.RecordMatch(ctx, rec); err != nil {
			log.Printf("[ERROR] RecordMatch %s: %v\n", rec.MatchID, err)
			continue
		}
		flushed++
	}
	log.Printf("Flushed %d of %d matches to DB.\n", flushed, len(batchCopy))
}

// Stop gracefully stops the archivist service.
func (as *ArchivistService) Stop() {
	as.cancelFn()
}

func main() {
	as := NewArchivistService()
	go as.Run()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	as.Stop()
	log.Println("Archivist shutdown complete.")
}

// getEnv retrieves an environment variable's value or returns a default.
func getEnv(key, defVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defVal
}

// getEnvInt retrieves an integer value from an environment variable or returns a default value.
func getEnvInt(key string, defVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defVal
	}
	return i
}
