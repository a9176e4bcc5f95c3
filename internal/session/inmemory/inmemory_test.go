package inmemory

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jayascript1/ai-editorial-team/internal/session/session_models"
)

func TestEnsureSessionGeneratesAndReuses(t *testing.T) {
	store := NewSessionStore()

	first, err := store.EnsureSession("")
	if err != nil {
		t.Fatalf("EnsureSession: %v", err)
	}
	if first.UserID == "" {
		t.Fatal("expected a generated user id")
	}

	again, err := store.EnsureSession(first.UserID)
	if err != nil {
		t.Fatalf("EnsureSession existing: %v", err)
	}
	if again.UserID != first.UserID {
		t.Fatalf("expected same session, got %s and %s", first.UserID, again.UserID)
	}
}

func TestBeginRunAdmitsExactlyOne(t *testing.T) {
	store := NewSessionStore()
	rec, _ := store.EnsureSession("")

	const attempts = 32
	var wg sync.WaitGroup
	admitted := make(chan struct{}, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.BeginRun(rec.UserID, "quantum computing"); err == nil {
				admitted <- struct{}{}
			} else if !errors.Is(err, session_models.ErrAlreadyProcessing) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	close(admitted)

	var wins int
	for range admitted {
		wins++
	}
	if wins != 1 {
		t.Fatalf("expected exactly one admission, got %d", wins)
	}
}

func TestBeginRunResetsPreviousRunState(t *testing.T) {
	store := NewSessionStore()
	rec, _ := store.EnsureSession("")

	if _, err := store.BeginRun(rec.UserID, "first topic"); err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	store.RecordStageOutput(rec.UserID, 0, "research", "findings", "done")
	store.FinishRun(rec.UserID, 4, "tweet text", "all done")

	got, err := store.BeginRun(rec.UserID, "second topic")
	if err != nil {
		t.Fatalf("BeginRun after finish: %v", err)
	}
	if got.CurrentStep != 0 || got.FinalResult != "" || len(got.AgentOutputs) != 0 {
		t.Fatalf("expected cleared run state, got %+v", got)
	}
	if got.Topic != "second topic" {
		t.Fatalf("expected new topic, got %q", got.Topic)
	}
}

func TestCurrentStepNeverDecreases(t *testing.T) {
	store := NewSessionStore()
	rec, _ := store.EnsureSession("")
	store.BeginRun(rec.UserID, "topic")

	store.RecordStageOutput(rec.UserID, 2, "edit", "polished", "")
	got, err := store.RecordStageOutput(rec.UserID, 0, "research", "late", "")
	if err != nil {
		t.Fatalf("RecordStageOutput: %v", err)
	}
	if got.CurrentStep != 3 {
		t.Fatalf("expected current_step to stay at 3, got %d", got.CurrentStep)
	}
}

func TestFailRunFillsUnfinishedStages(t *testing.T) {
	store := NewSessionStore()
	rec, _ := store.EnsureSession("")
	store.BeginRun(rec.UserID, "topic")
	store.RecordStageOutput(rec.UserID, 0, "research", "findings", "")

	got, err := store.FailRun(rec.UserID, 4, "provider exploded", []string{"research", "write", "edit", "tweet"}, "failed")
	if err != nil {
		t.Fatalf("FailRun: %v", err)
	}
	if got.IsProcessing {
		t.Fatal("expected is_processing=false after failure")
	}
	if got.CurrentStep != 4 {
		t.Fatalf("expected terminal step 4, got %d", got.CurrentStep)
	}
	if got.AgentOutputs["research"] != "findings" {
		t.Fatalf("completed output overwritten: %q", got.AgentOutputs["research"])
	}
	for _, stage := range []string{"write", "edit", "tweet"} {
		if got.AgentOutputs[stage] != session_models.FailedStageOutput {
			t.Fatalf("stage %s missing failure placeholder: %q", stage, got.AgentOutputs[stage])
		}
	}
	if got.FinalResult != "" {
		t.Fatal("failed run must not carry a final result")
	}
}

func TestListIdleAndDelete(t *testing.T) {
	store := NewSessionStore()
	stale, _ := store.EnsureSession("")
	fresh, _ := store.EnsureSession("")

	store.mu.Lock()
	store.sessions[stale.UserID].LastActivity = time.Now().Add(-2 * time.Hour)
	store.mu.Unlock()

	ids, err := store.ListIdle(time.Hour)
	if err != nil {
		t.Fatalf("ListIdle: %v", err)
	}
	if len(ids) != 1 || ids[0] != stale.UserID {
		t.Fatalf("expected only the stale session, got %v", ids)
	}

	if err := store.Delete(stale.UserID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.GetSession(stale.UserID); !errors.Is(err, session_models.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if _, err := store.GetSession(fresh.UserID); err != nil {
		t.Fatalf("fresh session should survive: %v", err)
	}
}

func TestSnapshotsAreCopies(t *testing.T) {
	store := NewSessionStore()
	rec, _ := store.EnsureSession("")
	store.BeginRun(rec.UserID, "topic")
	store.RecordStageOutput(rec.UserID, 0, "research", "findings", "")

	snap, _ := store.GetSession(rec.UserID)
	snap.AgentOutputs["research"] = "tampered"

	fresh, _ := store.GetSession(rec.UserID)
	if fresh.AgentOutputs["research"] != "findings" {
		t.Fatal("snapshot mutation leaked into the store")
	}
}
