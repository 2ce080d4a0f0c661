package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Tom-dlhy/local-llm-consensus-engine/domain"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	session := newSession("cs_1", time.Now().UTC())
	session.Opinions = []domain.Opinion{{AgentID: "agent_1", Content: "hello", TokensUsed: 30}}
	session.Usage.Opinions = &domain.StageUsage{
		Stage:       domain.StageOpinions,
		TotalTokens: 30,
		ByModel:     map[string]domain.TokenUsage{"m": {TotalTokens: 30}},
	}

	if err := s.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	got, err := s.GetSession(ctx, "cs_1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got.Opinions[0].Content != "hello" {
		t.Fatalf("unexpected opinion %+v", got.Opinions[0])
	}
	if got.Usage.Opinions == nil || got.Usage.Opinions.ByModel["m"].TotalTokens != 30 {
		t.Fatalf("usage not preserved: %+v", got.Usage.Opinions)
	}
}

func TestSQLiteStoreDuplicate(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	session := newSession("cs_1", time.Now().UTC())
	if err := s.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if err := s.CreateSession(ctx, session); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestSQLiteStoreGetMissing(t *testing.T) {
	s := newTestSQLite(t)
	if _, err := s.GetSession(context.Background(), "cs_missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteStoreCommit(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	session := newSession("cs_1", time.Now().UTC())
	if err := s.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	session.Stage = domain.StageComplete
	session.FinalAnswer = &domain.FinalAnswer{Content: "done", SynthesizerModel: "phi3.5:latest"}
	session.UpdatedAt = time.Now().UTC()
	if err := s.CommitSession(ctx, session); err != nil {
		t.Fatalf("CommitSession failed: %v", err)
	}

	got, _ := s.GetSession(ctx, "cs_1")
	if got.Stage != domain.StageComplete {
		t.Fatalf("expected complete, got %s", got.Stage)
	}
	if got.FinalAnswer == nil || got.FinalAnswer.Content != "done" {
		t.Fatalf("final answer not preserved: %+v", got.FinalAnswer)
	}
}

func TestSQLiteStoreCommitMissing(t *testing.T) {
	s := newTestSQLite(t)
	session := newSession("cs_ghost", time.Now().UTC())
	if err := s.CommitSession(context.Background(), session); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteStoreListNewestFirst(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	base := time.Now().UTC()
	for i, id := range []string{"cs_old", "cs_new"} {
		if err := s.CreateSession(ctx, newSession(id, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("CreateSession failed: %v", err)
		}
	}

	summaries, err := s.ListSessions(ctx)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(summaries) != 2 || summaries[0].SessionID != "cs_new" {
		t.Fatalf("unexpected summaries: %+v", summaries)
	}
}
