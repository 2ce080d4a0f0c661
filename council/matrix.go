package council

import "github.com/Tom-dlhy/local-llm-consensus-engine/domain"

// Pair is one pairwise review assignment: the reviewer scores the subject's
// opinion.
type Pair struct {
	ReviewerID string
	SubjectID  string
}

// BuildMatrix produces the full pairwise review schedule for the given
// agents: every agent reviews every other agent, never itself. For N agents
// that is exactly N*(N-1) ordered pairs in reviewer-major order; fewer than
// two agents yield an empty schedule, which skips the review stage.
func BuildMatrix(agents []domain.Agent) []Pair {
	if len(agents) < 2 {
		return nil
	}

	pairs := make([]Pair, 0, len(agents)*(len(agents)-1))
	for _, reviewer := range agents {
		for _, subject := range agents {
			if subject.ID == reviewer.ID {
				continue
			}
			pairs = append(pairs, Pair{ReviewerID: reviewer.ID, SubjectID: subject.ID})
		}
	}
	return pairs
}
