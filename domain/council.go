// Package domain defines the core domain models for the council engine.
package domain

import "time"

// Stage represents the current stage of a council session.
type Stage string

const (
	StagePending   Stage = "pending"
	StageOpinions  Stage = "opinions"
	StageReview    Stage = "review"
	StageSynthesis Stage = "synthesis"
	StageComplete  Stage = "complete"
	StageError     Stage = "error"
)

// Terminal reports whether the stage is a terminal state.
func (s Stage) Terminal() bool {
	return s == StageComplete || s == StageError
}

// Agent is one participating model instance. IDs are assigned in roster
// order at session creation (agent_1, agent_2, ...) and are the only stable
// key for cross-referencing opinions and reviews; two agents may share the
// same model.
type Agent struct {
	ID          string `json:"agent_id"`
	DisplayName string `json:"display_name"`
	Model       string `json:"model"`
}

// Opinion is one agent's answer collected during the opinions stage.
type Opinion struct {
	AgentID          string `json:"agent_id"`
	AgentName        string `json:"agent_name"`
	Model            string `json:"model"`
	Content          string `json:"content"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	TokensUsed       int    `json:"tokens_used"`
	DurationMs       int64  `json:"duration_ms"`
}

// AgentError records an agent whose opinion call failed. The failure is kept
// alongside the successful opinions instead of blocking them.
type AgentError struct {
	AgentID string `json:"agent_id"`
	Model   string `json:"model"`
	Message string `json:"message"`
}

// ReviewRanking is one reviewer's score for one other agent's opinion.
type ReviewRanking struct {
	AgentID   string `json:"agent_id"`
	Score     int    `json:"score"` // 1..10
	Reasoning string `json:"reasoning"`
}

// Review groups all rankings produced by a single reviewer, with the token
// cost of the pairwise calls summed. Rankings never contain the reviewer
// itself.
type Review struct {
	ReviewerID       string          `json:"reviewer_id"`
	ReviewerName     string          `json:"reviewer_name"`
	Model            string          `json:"model"`
	Rankings         []ReviewRanking `json:"rankings"`
	PromptTokens     int             `json:"prompt_tokens"`
	CompletionTokens int             `json:"completion_tokens"`
	DurationMs       int64           `json:"duration_ms"`
}

// PairError records a single failed pairwise review attempt.
type PairError struct {
	ReviewerID string `json:"reviewer_id"`
	SubjectID  string `json:"subject_id"`
	Message    string `json:"message"`
}

// TokenUsage is the token count of one or more generations.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// StageUsage is the per-stage token rollup. ByModel sums counts across all
// agents sharing the same model identifier.
type StageUsage struct {
	Stage                 Stage                 `json:"stage"`
	TotalPromptTokens     int                   `json:"total_prompt_tokens"`
	TotalCompletionTokens int                   `json:"total_completion_tokens"`
	TotalTokens           int                   `json:"total_tokens"`
	ByModel               map[string]TokenUsage `json:"by_model"`
}

// SessionUsage rolls up the three stage usages plus grand totals.
type SessionUsage struct {
	Opinions  *StageUsage `json:"stage1_opinions,omitempty"`
	Review    *StageUsage `json:"stage2_review,omitempty"`
	Synthesis *StageUsage `json:"stage3_synthesis,omitempty"`

	TotalPromptTokens     int `json:"total_prompt_tokens"`
	TotalCompletionTokens int `json:"total_completion_tokens"`
	TotalTokens           int `json:"total_tokens"`
}

// StageLatency is the per-stage wall-clock rollup. ByModel sums the duration
// of every call issued to that model during the stage.
type StageLatency struct {
	Stage           Stage            `json:"stage"`
	TotalDurationMs int64            `json:"total_duration_ms"`
	ByModel         map[string]int64 `json:"by_model"`
}

// SessionLatency rolls up the three stage latencies. TotalDurationMs is the
// end-to-end time since session creation.
type SessionLatency struct {
	Opinions  *StageLatency `json:"stage1_opinions,omitempty"`
	Review    *StageLatency `json:"stage2_review,omitempty"`
	Synthesis *StageLatency `json:"stage3_synthesis,omitempty"`

	TotalDurationMs int64 `json:"total_duration_ms"`
}

// FinalAnswer is the synthesizer's terminal output.
type FinalAnswer struct {
	Content          string   `json:"content"`
	SynthesizerModel string   `json:"synthesizer_model"`
	TokensUsed       int      `json:"tokens_used"`
	DurationMs       int64    `json:"duration_ms"`
	CitedAgentIDs    []string `json:"cited_agent_ids"`
}

// Session is the aggregate root for one deliberation. The store owns the
// canonical copy; only the orchestrator mutates it, and only through
// stage-boundary commits. Once the stage is terminal the snapshot never
// changes again.
type Session struct {
	SessionID        string    `json:"session_id"`
	Query            string    `json:"query"`
	Stage            Stage     `json:"stage"`
	SynthesizerModel string    `json:"synthesizer_model"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`

	Agents        []Agent      `json:"agents"`
	Opinions      []Opinion    `json:"opinions"`
	OpinionErrors []AgentError `json:"opinion_errors,omitempty"`

	Reviews      []Review    `json:"reviews"`
	ReviewErrors []PairError `json:"review_errors,omitempty"`

	Usage   SessionUsage   `json:"token_usage"`
	Latency SessionLatency `json:"latency_stats"`

	FinalAnswer *FinalAnswer `json:"final_answer,omitempty"`
	Error       string       `json:"error,omitempty"`
}

// Clone returns a deep copy of the session so readers can never observe or
// cause mutation of the stored copy.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s

	out.Agents = append([]Agent(nil), s.Agents...)
	out.Opinions = append([]Opinion(nil), s.Opinions...)
	out.OpinionErrors = append([]AgentError(nil), s.OpinionErrors...)
	out.ReviewErrors = append([]PairError(nil), s.ReviewErrors...)

	out.Reviews = make([]Review, len(s.Reviews))
	for i, r := range s.Reviews {
		out.Reviews[i] = r
		out.Reviews[i].Rankings = append([]ReviewRanking(nil), r.Rankings...)
	}

	out.Usage.Opinions = cloneStageUsage(s.Usage.Opinions)
	out.Usage.Review = cloneStageUsage(s.Usage.Review)
	out.Usage.Synthesis = cloneStageUsage(s.Usage.Synthesis)
	out.Latency.Opinions = cloneStageLatency(s.Latency.Opinions)
	out.Latency.Review = cloneStageLatency(s.Latency.Review)
	out.Latency.Synthesis = cloneStageLatency(s.Latency.Synthesis)

	if s.FinalAnswer != nil {
		fa := *s.FinalAnswer
		fa.CitedAgentIDs = append([]string(nil), s.FinalAnswer.CitedAgentIDs...)
		out.FinalAnswer = &fa
	}
	return &out
}

func cloneStageUsage(u *StageUsage) *StageUsage {
	if u == nil {
		return nil
	}
	out := *u
	out.ByModel = make(map[string]TokenUsage, len(u.ByModel))
	for k, v := range u.ByModel {
		out.ByModel[k] = v
	}
	return &out
}

func cloneStageLatency(l *StageLatency) *StageLatency {
	if l == nil {
		return nil
	}
	out := *l
	out.ByModel = make(map[string]int64, len(l.ByModel))
	for k, v := range l.ByModel {
		out.ByModel[k] = v
	}
	return &out
}

// AgentSpec is the caller-facing agent selection inside a CouncilRequest.
// IDs are assigned by the orchestrator, not the caller.
type AgentSpec struct {
	Name  string `json:"name,omitempty"`
	Model string `json:"model"`
}

// CouncilRequest starts a new deliberation.
type CouncilRequest struct {
	Query            string      `json:"query"`
	Agents           []AgentSpec `json:"selected_agents"`
	SynthesizerModel string      `json:"synthesizer_model,omitempty"`
}

// SessionSummary is the listing view of a session.
type SessionSummary struct {
	SessionID string    `json:"session_id"`
	Query     string    `json:"query"`
	Stage     Stage     `json:"stage"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
