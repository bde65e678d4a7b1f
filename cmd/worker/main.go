package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	"classtrack/internal/attendance"
	"classtrack/internal/config"
	"classtrack/internal/queue"
	"classtrack/internal/store"
)

// Worker consumes mark events and appends them to the audit trail.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	pg, err := store.NewPostgres(db.Client)
	if err != nil {
		log.Fatalf("store init failed: %v", err)
	}

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "classtrack:marks")
	}

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("audit worker started, waiting for mark events...")
	for msg := range messages {
		if msg.Type != attendance.MarkEventType {
			continue
		}

		var evt attendance.MarkEvent
		if err := json.Unmarshal(msg.Body, &evt); err != nil {
			log.Printf("bad mark event payload: %v", err)
			continue
		}

		audit := store.AuditEvent{
			SessionID:      evt.SessionID,
			StudentID:      evt.StudentID,
			MarkedBy:       evt.MarkedBy,
			DistanceMeters: evt.DistanceMeters,
			OccurredAt:     evt.MarkedAt,
		}
		if err := pg.AppendAudit(ctx, audit); err != nil {
			log.Printf("audit append failed for %s/%s: %v", evt.SessionID, evt.StudentID, err)
			continue
		}
		log.Printf("audited mark session=%s student=%s by=%s", evt.SessionID, evt.StudentID, evt.MarkedBy)
	}

	log.Println("audit worker stopped")
}
