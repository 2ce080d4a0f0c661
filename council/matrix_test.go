package council

import (
	"testing"

	"github.com/Tom-dlhy/local-llm-consensus-engine/domain"
)

func agents(ids ...string) []domain.Agent {
	out := make([]domain.Agent, len(ids))
	for i, id := range ids {
		out[i] = domain.Agent{ID: id, DisplayName: id, Model: "m"}
	}
	return out
}

func TestBuildMatrixFullSchedule(t *testing.T) {
	pairs := BuildMatrix(agents("agent_1", "agent_2", "agent_3"))

	if len(pairs) != 6 {
		t.Fatalf("expected 6 pairs for 3 agents, got %d", len(pairs))
	}

	expected := []Pair{
		{"agent_1", "agent_2"},
		{"agent_1", "agent_3"},
		{"agent_2", "agent_1"},
		{"agent_2", "agent_3"},
		{"agent_3", "agent_1"},
		{"agent_3", "agent_2"},
	}
	for i, want := range expected {
		if pairs[i] != want {
			t.Fatalf("pair %d: expected %+v, got %+v", i, want, pairs[i])
		}
	}
}

func TestBuildMatrixExcludesSelf(t *testing.T) {
	pairs := BuildMatrix(agents("agent_1", "agent_2", "agent_3", "agent_4"))

	if len(pairs) != 12 {
		t.Fatalf("expected 12 pairs for 4 agents, got %d", len(pairs))
	}
	for _, pair := range pairs {
		if pair.ReviewerID == pair.SubjectID {
			t.Fatalf("self review pair: %+v", pair)
		}
	}
}

func TestBuildMatrixTooFewAgents(t *testing.T) {
	if pairs := BuildMatrix(nil); len(pairs) != 0 {
		t.Fatalf("expected no pairs for empty roster, got %d", len(pairs))
	}
	if pairs := BuildMatrix(agents("agent_1")); len(pairs) != 0 {
		t.Fatalf("expected no pairs for single agent, got %d", len(pairs))
	}
}
