package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jayascript1/ai-editorial-team/config"
	"github.com/jayascript1/ai-editorial-team/internal/session/session_models"
)

// Store keeps session records in redis so several instances can share them.
// Records expire via redis TTLs; ListIdle only exists to satisfy the reaper,
// which still clears the in-process stream registry.
type Store struct {
	client    *redis.Client
	retention time.Duration
}

func NewSessionStore(cfg config.RedisConfig, retention time.Duration) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Store{client: rdb, retention: retention}, nil
}

func stateKey(id string) string { return fmt.Sprintf("session:%s:state", id) }
func lockKey(id string) string  { return fmt.Sprintf("session:%s:running", id) }

func (store *Store) EnsureSession(id string) (session_models.Record, error) {
	ctx := context.Background()
	if id != "" {
		rec, err := store.load(ctx, id)
		if err == nil {
			return store.save(ctx, rec)
		}
		if !errors.Is(err, session_models.ErrSessionNotFound) {
			return session_models.Record{}, err
		}
	}
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now()
	rec := session_models.Record{
		UserID:       id,
		AgentOutputs: map[string]string{},
		CreatedAt:    now,
		LastActivity: now,
	}
	return store.save(ctx, rec)
}

func (store *Store) GetSession(id string) (session_models.Record, error) {
	ctx := context.Background()
	rec, err := store.load(ctx, id)
	if err != nil {
		return session_models.Record{}, err
	}
	return store.save(ctx, rec)
}

// BeginRun takes a SETNX run lock before touching the record, so two
// instances racing on the same user admit exactly one pipeline.
func (store *Store) BeginRun(id, topic string) (session_models.Record, error) {
	ctx := context.Background()
	rec, err := store.load(ctx, id)
	if err != nil {
		return session_models.Record{}, err
	}

	ok, err := store.client.SetNX(ctx, lockKey(id), "1", store.retention).Result()
	if err != nil {
		return session_models.Record{}, fmt.Errorf("redis setnx: %w", err)
	}
	if !ok {
		return rec, session_models.ErrAlreadyProcessing
	}

	rec.IsProcessing = true
	rec.CurrentStep = 0
	rec.Topic = topic
	rec.AgentOutputs = map[string]string{}
	rec.CurrentStage = ""
	rec.Note = ""
	rec.Error = ""
	rec.FinalResult = ""
	return store.save(ctx, rec)
}

func (store *Store) RecordStageStart(id string, step int, stage, note string) (session_models.Record, error) {
	return store.update(id, func(rec *session_models.Record) {
		rec.CurrentStage = stage
		rec.Note = note
	})
}

func (store *Store) RecordStageOutput(id string, step int, stage, output, note string) (session_models.Record, error) {
	return store.update(id, func(rec *session_models.Record) {
		rec.AgentOutputs[stage] = output
		if step+1 > rec.CurrentStep {
			rec.CurrentStep = step + 1
		}
		rec.Note = note
	})
}

func (store *Store) FinishRun(id string, finalStep int, finalResult, note string) (session_models.Record, error) {
	defer store.unlock(id)
	return store.update(id, func(rec *session_models.Record) {
		rec.IsProcessing = false
		if finalStep > rec.CurrentStep {
			rec.CurrentStep = finalStep
		}
		rec.CurrentStage = ""
		rec.FinalResult = finalResult
		rec.Note = note
	})
}

func (store *Store) FailRun(id string, finalStep int, errMsg string, unfinished []string, note string) (session_models.Record, error) {
	defer store.unlock(id)
	return store.update(id, func(rec *session_models.Record) {
		rec.IsProcessing = false
		if finalStep > rec.CurrentStep {
			rec.CurrentStep = finalStep
		}
		rec.CurrentStage = ""
		rec.Error = errMsg
		rec.Note = note
		for _, stage := range unfinished {
			if _, done := rec.AgentOutputs[stage]; !done {
				rec.AgentOutputs[stage] = session_models.FailedStageOutput
			}
		}
	})
}

func (store *Store) ListIdle(olderThan time.Duration) ([]string, error) {
	ctx := context.Background()
	cutoff := time.Now().Add(-olderThan)

	var ids []string
	iter := store.client.Scan(ctx, 0, "session:*:state", 100).Iterator()
	for iter.Next(ctx) {
		val, err := store.client.Get(ctx, iter.Val()).Result()
		if err != nil {
			continue
		}
		var rec session_models.Record
		if err := json.Unmarshal([]byte(val), &rec); err != nil {
			continue
		}
		if rec.IsProcessing {
			continue
		}
		if rec.LastActivity.Before(cutoff) {
			ids = append(ids, rec.UserID)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan: %w", err)
	}
	return ids, nil
}

func (store *Store) Delete(id string) error {
	ctx := context.Background()
	return store.client.Del(ctx, stateKey(id), lockKey(id)).Err()
}

func (store *Store) Active() ([]session_models.Record, error) {
	ctx := context.Background()

	var out []session_models.Record
	iter := store.client.Scan(ctx, 0, "session:*:state", 100).Iterator()
	for iter.Next(ctx) {
		val, err := store.client.Get(ctx, iter.Val()).Result()
		if err != nil {
			continue
		}
		var rec session_models.Record
		if err := json.Unmarshal([]byte(val), &rec); err != nil {
			continue
		}
		out = append(out, rec)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan: %w", err)
	}
	return out, nil
}

func (store *Store) load(ctx context.Context, id string) (session_models.Record, error) {
	val, err := store.client.Get(ctx, stateKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return session_models.Record{}, session_models.ErrSessionNotFound
	}
	if err != nil {
		return session_models.Record{}, fmt.Errorf("redis get: %w", err)
	}
	var rec session_models.Record
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return session_models.Record{}, fmt.Errorf("decode session %s: %w", id, err)
	}
	if rec.AgentOutputs == nil {
		rec.AgentOutputs = map[string]string{}
	}
	return rec, nil
}

func (store *Store) save(ctx context.Context, rec session_models.Record) (session_models.Record, error) {
	rec.LastActivity = time.Now()
	data, err := json.Marshal(rec)
	if err != nil {
		return session_models.Record{}, err
	}
	if err := store.client.Set(ctx, stateKey(rec.UserID), data, store.retention).Err(); err != nil {
		return session_models.Record{}, fmt.Errorf("redis set: %w", err)
	}
	return rec, nil
}

func (store *Store) update(id string, apply func(*session_models.Record)) (session_models.Record, error) {
	ctx := context.Background()
	rec, err := store.load(ctx, id)
	if err != nil {
		return session_models.Record{}, err
	}
	apply(&rec)
	return store.save(ctx, rec)
}

func (store *Store) unlock(id string) {
	_ = store.client.Del(context.Background(), lockKey(id)).Err()
}
