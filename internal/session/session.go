package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/jayascript1/ai-editorial-team/config"
	"github.com/jayascript1/ai-editorial-team/internal/session/inmemory"
	"github.com/jayascript1/ai-editorial-team/internal/session/redisstore"
	"github.com/jayascript1/ai-editorial-team/internal/session/session_models"
)

// Store is the per-user session state contract shared by the HTTP handlers,
// the pipeline runner and the reaper. All methods return snapshot copies;
// callers never hold references into store internals.
type Store interface {
	// EnsureSession returns the record for id, creating one when absent.
	// An empty id creates a fresh session with a generated identifier.
	// Refreshes last_activity_at.
	EnsureSession(id string) (session_models.Record, error)

	// GetSession returns the record for id, refreshing last_activity_at.
	// Returns ErrSessionNotFound for unknown or reaped ids.
	GetSession(id string) (session_models.Record, error)

	// BeginRun atomically checks the admission flag and seeds a new run:
	// is_processing=true, current_step=0, topic set, outputs/error/result
	// cleared. Returns ErrAlreadyProcessing when a run is in flight.
	BeginRun(id, topic string) (session_models.Record, error)

	// RecordStageStart updates the transient stage/note display fields.
	RecordStageStart(id string, step int, stage, note string) (session_models.Record, error)

	// RecordStageOutput stores a completed stage's output and advances
	// current_step to step+1. current_step never decreases.
	RecordStageOutput(id string, step int, stage, output, note string) (session_models.Record, error)

	// FinishRun marks the run successful: is_processing=false,
	// current_step=finalStep, final_result set.
	FinishRun(id string, finalStep int, finalResult, note string) (session_models.Record, error)

	// FailRun marks the run failed: is_processing=false,
	// current_step=finalStep, error set, and the given unfinished stages
	// recorded with the error placeholder so no stage disappears from the
	// outputs. Outputs recorded before the failure are left untouched.
	FailRun(id string, finalStep int, errMsg string, unfinished []string, note string) (session_models.Record, error)

	// ListIdle returns ids with no run in flight whose last activity is
	// older than the window.
	ListIdle(olderThan time.Duration) ([]string, error)

	// Delete removes the record. Unknown ids are not an error.
	Delete(id string) error

	// Active returns snapshots of all live records, for debug listings.
	Active() ([]session_models.Record, error)
}

var (
	ErrSessionNotFound   = session_models.ErrSessionNotFound
	ErrAlreadyProcessing = session_models.ErrAlreadyProcessing
)

type StoreType string

const (
	InMemoryStore StoreType = "inmemory"
	RedisStore    StoreType = "redis"
)

// NewStore builds a session store from configuration.
func NewStore(cfg config.SessionConfig) (Store, error) {
	switch StoreType(cfg.StoreType) {
	case InMemoryStore, "":
		return inmemory.NewSessionStore(), nil
	case RedisStore:
		return redisstore.NewSessionStore(cfg.Redis, cfg.Retention)
	default:
		return nil, fmt.Errorf("unsupported session store type: %s", cfg.StoreType)
	}
}

// IsNotFound reports whether err means the session does not exist.
func IsNotFound(err error) bool { return errors.Is(err, ErrSessionNotFound) }
