package server

import (
	"log"
	"time"

	"github.com/jayascript1/ai-editorial-team/internal/agent/telemetry"
	"github.com/jayascript1/ai-editorial-team/internal/session"
	"github.com/jayascript1/ai-editorial-team/internal/stream"
)

// Reaper periodically evicts idle sessions and their event queues. Sessions
// with a run in flight are never reaped.
type Reaper struct {
	Store     session.Store
	Registry  *stream.Registry
	Telemetry *telemetry.Telemetry
	Retention time.Duration
	Interval  time.Duration
	Logger    *log.Logger
	Stop      chan struct{}
}

func (r *Reaper) Start() {
	interval := r.Interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-r.Stop:
				ticker.Stop()
				return
			case <-ticker.C:
				r.tick()
			}
		}
	}()
}

func (r *Reaper) tick() {
	ids, err := r.Store.ListIdle(r.Retention)
	if err != nil {
		r.Logger.Printf("listing idle sessions: %v", err)
		return
	}
	for _, id := range ids {
		if err := r.Store.Delete(id); err != nil {
			r.Logger.Printf("evicting session %s: %v", id, err)
			continue
		}
		r.Registry.Remove(id)
		if r.Telemetry != nil {
			r.Telemetry.SessionsReaped.Inc()
		}
		r.Logger.Printf("reaped idle session %s", id)
	}
}
