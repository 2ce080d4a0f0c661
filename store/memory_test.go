package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Tom-dlhy/local-llm-consensus-engine/domain"
)

func newSession(id string, createdAt time.Time) *domain.Session {
	return &domain.Session{
		SessionID: id,
		Query:     "q",
		Stage:     domain.StagePending,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
		Agents:    []domain.Agent{{ID: "agent_1", DisplayName: "Agent_1", Model: "m"}},
		Opinions:  []domain.Opinion{},
		Reviews:   []domain.Review{},
	}
}

func TestMemoryStoreCreateAndGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	session := newSession("cs_1", time.Now())
	if err := s.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	got, err := s.GetSession(ctx, "cs_1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got.SessionID != "cs_1" || got.Stage != domain.StagePending {
		t.Fatalf("unexpected session %+v", got)
	}
}

func TestMemoryStoreCreateDuplicate(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	session := newSession("cs_1", time.Now())
	if err := s.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if err := s.CreateSession(ctx, session); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestMemoryStoreGetMissing(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.GetSession(context.Background(), "cs_missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreSnapshotsAreIsolated(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	session := newSession("cs_1", time.Now())
	if err := s.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	// Mutating the caller's copy must not leak into the store.
	session.Stage = domain.StageError
	session.Agents[0].Model = "mutated"

	got, err := s.GetSession(ctx, "cs_1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got.Stage != domain.StagePending {
		t.Fatalf("stored stage mutated: %s", got.Stage)
	}
	if got.Agents[0].Model != "m" {
		t.Fatalf("stored agent mutated: %s", got.Agents[0].Model)
	}

	// Mutating a returned snapshot must not leak either.
	got.Opinions = append(got.Opinions, domain.Opinion{AgentID: "agent_1"})
	again, _ := s.GetSession(ctx, "cs_1")
	if len(again.Opinions) != 0 {
		t.Fatalf("snapshot mutation leaked: %d opinions", len(again.Opinions))
	}
}

func TestMemoryStoreCommit(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	session := newSession("cs_1", time.Now())
	if err := s.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	session.Stage = domain.StageOpinions
	session.Opinions = append(session.Opinions, domain.Opinion{AgentID: "agent_1", Content: "hello"})
	if err := s.CommitSession(ctx, session); err != nil {
		t.Fatalf("CommitSession failed: %v", err)
	}

	got, _ := s.GetSession(ctx, "cs_1")
	if got.Stage != domain.StageOpinions || len(got.Opinions) != 1 {
		t.Fatalf("commit not applied: %+v", got)
	}
}

func TestMemoryStoreCommitMissing(t *testing.T) {
	s := NewMemoryStore()
	session := newSession("cs_ghost", time.Now())
	if err := s.CommitSession(context.Background(), session); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreListNewestFirst(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	base := time.Now()
	for i, id := range []string{"cs_old", "cs_mid", "cs_new"} {
		if err := s.CreateSession(ctx, newSession(id, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("CreateSession failed: %v", err)
		}
	}

	summaries, err := s.ListSessions(ctx)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(summaries) != 3 {
		t.Fatalf("expected 3 summaries, got %d", len(summaries))
	}
	if summaries[0].SessionID != "cs_new" || summaries[2].SessionID != "cs_old" {
		t.Fatalf("unexpected order: %s, %s, %s", summaries[0].SessionID, summaries[1].SessionID, summaries[2].SessionID)
	}
}
