package inmemory

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jayascript1/ai-editorial-team/internal/session/session_models"
)

// Store keeps session records in process memory. Suitable for a single
// instance; a redis store covers multi-instance deployments.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*session_models.Record
}

func NewSessionStore() *Store {
	return &Store{sessions: make(map[string]*session_models.Record)}
}

func (store *Store) EnsureSession(id string) (session_models.Record, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	if id != "" {
		if rec, ok := store.sessions[id]; ok {
			rec.LastActivity = time.Now()
			return rec.Clone(), nil
		}
	}
	if id == "" {
		id = uuid.NewString()
	}

	now := time.Now()
	rec := &session_models.Record{
		UserID:       id,
		AgentOutputs: map[string]string{},
		CreatedAt:    now,
		LastActivity: now,
	}
	store.sessions[id] = rec
	return rec.Clone(), nil
}

func (store *Store) GetSession(id string) (session_models.Record, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	rec, ok := store.sessions[id]
	if !ok {
		return session_models.Record{}, session_models.ErrSessionNotFound
	}
	rec.LastActivity = time.Now()
	return rec.Clone(), nil
}

// BeginRun performs the admission check and seeds the run state under a
// single lock, so two concurrent generate requests for one user cannot both
// win.
func (store *Store) BeginRun(id, topic string) (session_models.Record, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	rec, ok := store.sessions[id]
	if !ok {
		return session_models.Record{}, session_models.ErrSessionNotFound
	}
	if rec.IsProcessing {
		return rec.Clone(), session_models.ErrAlreadyProcessing
	}

	rec.IsProcessing = true
	rec.CurrentStep = 0
	rec.Topic = topic
	rec.AgentOutputs = map[string]string{}
	rec.CurrentStage = ""
	rec.Note = ""
	rec.Error = ""
	rec.FinalResult = ""
	rec.LastActivity = time.Now()
	return rec.Clone(), nil
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
	store.mu.RLock()
	defer store.mu.RUnlock()

	cutoff := time.Now().Add(-olderThan)
	var ids []string
	for id, rec := range store.sessions {
		if rec.IsProcessing {
			continue
		}
		if rec.LastActivity.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (store *Store) Delete(id string) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	delete(store.sessions, id)
	return nil
}

func (store *Store) Active() ([]session_models.Record, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	out := make([]session_models.Record, 0, len(store.sessions))
	for _, rec := range store.sessions {
		out = append(out, rec.Clone())
	}
	return out, nil
}

func (store *Store) update(id string, apply func(*session_models.Record)) (session_models.Record, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	rec, ok := store.sessions[id]
	if !ok {
		return session_models.Record{}, session_models.ErrSessionNotFound
	}
	apply(rec)
	rec.LastActivity = time.Now()
	return rec.Clone(), nil
}
