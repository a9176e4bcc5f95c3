package redisstore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/jayascript1/ai-editorial-team/config"
	"github.com/jayascript1/ai-editorial-team/internal/session/redisstore"
	"github.com/jayascript1/ai-editorial-team/internal/session/session_models"
)

func startRedis(t *testing.T) config.RedisConfig {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	redisC, err := tcRedis.RunContainer(ctx, testcontainers.WithWaitStrategy(wait.ForListeningPort("6379/tcp")))
	if err != nil {
		t.Fatalf("redis container: %v", err)
	}
	t.Cleanup(func() { _ = redisC.Terminate(ctx) })

	host, err := redisC.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := redisC.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	return config.RedisConfig{Host: host, Port: port.Port()}
}

func TestRedisStoreRunLifecycle(t *testing.T) {
	store, err := redisstore.NewSessionStore(startRedis(t), time.Hour)
	if err != nil {
		t.Fatalf("store init: %v", err)
	}

	rec, err := store.EnsureSession("")
	if err != nil {
		t.Fatalf("EnsureSession: %v", err)
	}

	if _, err := store.BeginRun(rec.UserID, "space elevators"); err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	if _, err := store.BeginRun(rec.UserID, "space elevators"); !errors.Is(err, session_models.ErrAlreadyProcessing) {
		t.Fatalf("expected ErrAlreadyProcessing, got %v", err)
	}

	if _, err := store.RecordStageOutput(rec.UserID, 0, "research", "findings", "done"); err != nil {
		t.Fatalf("RecordStageOutput: %v", err)
	}
	got, err := store.FinishRun(rec.UserID, 4, "tweet text", "all done")
	if err != nil {
		t.Fatalf("FinishRun: %v", err)
	}
	if got.IsProcessing || got.CurrentStep != 4 || got.FinalResult != "tweet text" {
		t.Fatalf("unexpected terminal record: %+v", got)
	}
	if got.AgentOutputs["research"] != "findings" {
		t.Fatalf("stage output lost: %+v", got.AgentOutputs)
	}

	// Finishing releases the run lock.
	if _, err := store.BeginRun(rec.UserID, "again"); err != nil {
		t.Fatalf("BeginRun after finish: %v", err)
	}
}

func TestRedisStoreReapAndNotFound(t *testing.T) {
	store, err := redisstore.NewSessionStore(startRedis(t), time.Hour)
	if err != nil {
		t.Fatalf("store init: %v", err)
	}

	rec, err := store.EnsureSession("")
	if err != nil {
		t.Fatalf("EnsureSession: %v", err)
	}

	ids, err := store.ListIdle(0)
	if err != nil {
		t.Fatalf("ListIdle: %v", err)
	}
	found := false
	for _, id := range ids {
		if id == rec.UserID {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected %s in idle listing, got %v", rec.UserID, ids)
	}

	if err := store.Delete(rec.UserID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.GetSession(rec.UserID); !errors.Is(err, session_models.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}
