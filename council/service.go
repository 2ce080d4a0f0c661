// Package council orchestrates the three-stage deliberation workflow:
// opinions, pairwise peer review, and synthesis.
package council

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Tom-dlhy/local-llm-consensus-engine/broadcast"
	"github.com/Tom-dlhy/local-llm-consensus-engine/config"
	"github.com/Tom-dlhy/local-llm-consensus-engine/dispatch"
	"github.com/Tom-dlhy/local-llm-consensus-engine/domain"
	"github.com/Tom-dlhy/local-llm-consensus-engine/ollama"
	"github.com/Tom-dlhy/local-llm-consensus-engine/policy"
	"github.com/Tom-dlhy/local-llm-consensus-engine/store"
)

// ErrEmptyRoster is returned when a stage cannot proceed because no agent
// produced an opinion.
var ErrEmptyRoster = errors.New("no agent produced an opinion")

// ErrSynthesisFailed marks a failed synthesizer call. There is no retry.
var ErrSynthesisFailed = errors.New("synthesis failed")

// BlockedError is returned when the admission policy rejects a request.
type BlockedError struct {
	Reason string
}

func (e *BlockedError) Error() string {
	return "council request blocked: " + e.Reason
}

// Generator issues one generation request against the inference endpoint.
type Generator interface {
	Generate(ctx context.Context, req ollama.GenerateRequest) (*ollama.GenerateResult, error)
}

// Service drives deliberation sessions. It is the only writer of session
// state; every stage transition is one atomic commit to the store followed by
// a progress notification.
type Service struct {
	store  store.Store
	gen    Generator
	broker *broadcast.Broker
	policy *policy.Engine
	cfg    *config.Config
}

// New creates the council service.
func New(st store.Store, gen Generator, broker *broadcast.Broker, policyEngine *policy.Engine, cfg *config.Config) *Service {
	return &Service{
		store:  st,
		gen:    gen,
		broker: broker,
		policy: policyEngine,
		cfg:    cfg,
	}
}

// CreateSession validates the request against the admission policy and stores
// a new pending session. Agent ids are assigned here, densely and in roster
// order, and stay fixed for the session's lifetime: they are what opinions,
// review pairs and metrics buckets key on, even when two agents share a
// model.
func (s *Service) CreateSession(ctx context.Context, req domain.CouncilRequest) (*domain.Session, error) {
	synthesizer := req.SynthesizerModel
	if synthesizer == "" {
		synthesizer = s.cfg.SynthesizerModel
	}

	models := make([]string, 0, len(req.Agents))
	for _, spec := range req.Agents {
		models = append(models, spec.Model)
	}

	decision, reason, err := s.policy.Evaluate(ctx, policy.AdmissionInput{
		QueryLength:      len(strings.TrimSpace(req.Query)),
		AgentCount:       len(req.Agents),
		Models:           models,
		SynthesizerModel: synthesizer,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate admission policy: %w", err)
	}
	if decision != "allow" {
		return nil, &BlockedError{Reason: reason}
	}

	agents := make([]domain.Agent, len(req.Agents))
	for i, spec := range req.Agents {
		name := spec.Name
		if name == "" {
			name = fmt.Sprintf("Agent_%d", i+1)
		}
		agents[i] = domain.Agent{
			ID:          fmt.Sprintf("agent_%d", i+1),
			DisplayName: name,
			Model:       spec.Model,
		}
	}

	now := time.Now()
	session := &domain.Session{
		SessionID:        "cs_" + uuid.New().String()[:8],
		Query:            req.Query,
		Stage:            domain.StagePending,
		SynthesizerModel: synthesizer,
		CreatedAt:        now,
		UpdatedAt:        now,
		Agents:           agents,
		Opinions:         []domain.Opinion{},
		Reviews:          []domain.Review{},
	}

	if err := s.store.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

// GetSession returns a snapshot of the session.
func (s *Service) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	return s.store.GetSession(ctx, sessionID)
}

// ListSessions returns summaries of all sessions.
func (s *Service) ListSessions(ctx context.Context) ([]domain.SessionSummary, error) {
	return s.store.ListSessions(ctx)
}

// Subscribe attaches a progress listener for the session.
func (s *Service) Subscribe(sessionID string) (<-chan domain.ProgressEvent, func()) {
	return s.broker.Subscribe(sessionID)
}

// Run drives a pending session through the full workflow and returns its
// terminal snapshot. Partial failures inside a stage are recorded and the
// stage proceeds with whatever succeeded; the session only ends in the error
// stage when forward progress is impossible.
func (s *Service) Run(ctx context.Context, sessionID string) (*domain.Session, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Stage != domain.StagePending {
		return nil, fmt.Errorf("session %s already started (stage %s)", sessionID, session.Stage)
	}

	if err := s.runOpinions(ctx, session); err != nil {
		s.failSession(ctx, session, err.Error())
		return session, nil
	}

	if err := s.runReview(ctx, session); err != nil {
		s.failSession(ctx, session, err.Error())
		return session, nil
	}

	if err := s.runSynthesis(ctx, session); err != nil {
		s.failSession(ctx, session, err.Error())
		return session, nil
	}

	return session, nil
}

// runOpinions collects one opinion per roster agent, all in parallel.
func (s *Service) runOpinions(ctx context.Context, session *domain.Session) error {
	s.transition(ctx, session, domain.StageOpinions)
	log.Printf("INFO: [%s] stage 1: collecting opinions from %d agents", session.SessionID, len(session.Agents))

	tasks := make([]dispatch.Task[*ollama.GenerateResult], len(session.Agents))
	for i, agent := range session.Agents {
		system := fmt.Sprintf(opinionSystemPrompt, agent.DisplayName)
		model := agent.Model
		tasks[i] = func(ctx context.Context) (*ollama.GenerateResult, error) {
			return s.gen.Generate(ctx, ollama.GenerateRequest{
				Model:  model,
				Prompt: session.Query,
				System: system,
			})
		}
	}

	stageCtx, cancel := context.WithTimeout(ctx, s.cfg.StageTimeout)
	defer cancel()
	results := dispatch.Run(stageCtx, tasks)

	var records []UsageRecord
	for i, res := range results {
		agent := session.Agents[i]
		if res.Err != nil {
			log.Printf("WARN: [%s] agent %s (%s) failed: %v", session.SessionID, agent.ID, agent.Model, res.Err)
			session.OpinionErrors = append(session.OpinionErrors, domain.AgentError{
				AgentID: agent.ID,
				Model:   agent.Model,
				Message: res.Err.Error(),
			})
			continue
		}

		session.Opinions = append(session.Opinions, domain.Opinion{
			AgentID:          agent.ID,
			AgentName:        agent.DisplayName,
			Model:            agent.Model,
			Content:          res.Value.Content,
			PromptTokens:     res.Value.PromptTokens,
			CompletionTokens: res.Value.CompletionTokens,
			TokensUsed:       res.Value.PromptTokens + res.Value.CompletionTokens,
			DurationMs:       res.Value.Duration.Milliseconds(),
		})
		records = append(records, UsageRecord{
			Model:            agent.Model,
			PromptTokens:     res.Value.PromptTokens,
			CompletionTokens: res.Value.CompletionTokens,
			DurationMs:       res.Value.Duration.Milliseconds(),
		})
	}

	session.Usage.Opinions = SummarizeStage(domain.StageOpinions, records)
	session.Latency.Opinions = SummarizeLatency(domain.StageOpinions, records)
	s.rollupAndCommit(ctx, session)

	if len(session.Opinions) == 0 {
		return ErrEmptyRoster
	}
	return nil
}

// runReview runs the full pairwise review schedule over the agents that
// produced an opinion. With fewer than two of them the stage is skipped
// entirely and the workflow proceeds straight to synthesis.
func (s *Service) runReview(ctx context.Context, session *domain.Session) error {
	survivors := make([]domain.Agent, 0, len(session.Agents))
	opinionByID := make(map[string]domain.Opinion, len(session.Opinions))
	for _, op := range session.Opinions {
		opinionByID[op.AgentID] = op
	}
	for _, agent := range session.Agents {
		if _, ok := opinionByID[agent.ID]; ok {
			survivors = append(survivors, agent)
		}
	}

	pairs := BuildMatrix(survivors)
	if len(pairs) == 0 {
		log.Printf("INFO: [%s] stage 2 skipped: %d reviewable agent(s)", session.SessionID, len(survivors))
		return nil
	}

	s.transition(ctx, session, domain.StageReview)
	log.Printf("INFO: [%s] stage 2: pairwise review, %d evaluations for %d agents", session.SessionID, len(pairs), len(survivors))

	agentByID := make(map[string]domain.Agent, len(survivors))
	for _, agent := range survivors {
		agentByID[agent.ID] = agent
	}

	tasks := make([]dispatch.Task[*ollama.GenerateResult], len(pairs))
	for i, pair := range pairs {
		reviewer := agentByID[pair.ReviewerID]
		// The subject's opinion is passed by content only; withholding the
		// subject's name and model keeps the review blind.
		prompt := fmt.Sprintf(reviewUserPrompt, session.Query, opinionByID[pair.SubjectID].Content)
		system := fmt.Sprintf(reviewSystemPrompt, reviewer.DisplayName)
		model := reviewer.Model
		tasks[i] = func(ctx context.Context) (*ollama.GenerateResult, error) {
			return s.gen.Generate(ctx, ollama.GenerateRequest{
				Model:  model,
				Prompt: prompt,
				System: system,
				Format: "json",
			})
		}
	}

	stageCtx, cancel := context.WithTimeout(ctx, s.cfg.StageTimeout)
	defer cancel()
	results := dispatch.Run(stageCtx, tasks)

	grouped := make(map[string]*domain.Review, len(survivors))
	var records []UsageRecord
	for i, res := range results {
		pair := pairs[i]
		if res.Err != nil {
			log.Printf("WARN: [%s] review %s -> %s failed: %v", session.SessionID, pair.ReviewerID, pair.SubjectID, res.Err)
			session.ReviewErrors = append(session.ReviewErrors, domain.PairError{
				ReviewerID: pair.ReviewerID,
				SubjectID:  pair.SubjectID,
				Message:    res.Err.Error(),
			})
			continue
		}

		parsed, err := ParseRanking(res.Value.Content)
		if err != nil {
			log.Printf("WARN: [%s] review %s -> %s: %v", session.SessionID, pair.ReviewerID, pair.SubjectID, err)
			session.ReviewErrors = append(session.ReviewErrors, domain.PairError{
				ReviewerID: pair.ReviewerID,
				SubjectID:  pair.SubjectID,
				Message:    err.Error(),
			})
			continue
		}

		reviewer := agentByID[pair.ReviewerID]
		review := grouped[pair.ReviewerID]
		if review == nil {
			review = &domain.Review{
				ReviewerID:   reviewer.ID,
				ReviewerName: reviewer.DisplayName,
				Model:        reviewer.Model,
			}
			grouped[pair.ReviewerID] = review
		}
		review.Rankings = append(review.Rankings, domain.ReviewRanking{
			AgentID:   pair.SubjectID,
			Score:     parsed.Score,
			Reasoning: parsed.Reasoning,
		})
		review.PromptTokens += res.Value.PromptTokens
		review.CompletionTokens += res.Value.CompletionTokens
		review.DurationMs += res.Value.Duration.Milliseconds()

		records = append(records, UsageRecord{
			Model:            reviewer.Model,
			PromptTokens:     res.Value.PromptTokens,
			CompletionTokens: res.Value.CompletionTokens,
			DurationMs:       res.Value.Duration.Milliseconds(),
		})
	}

	// One Review record per reviewer, in roster order.
	for _, agent := range survivors {
		if review := grouped[agent.ID]; review != nil {
			session.Reviews = append(session.Reviews, *review)
		}
	}

	session.Usage.Review = SummarizeStage(domain.StageReview, records)
	session.Latency.Review = SummarizeLatency(domain.StageReview, records)
	s.rollupAndCommit(ctx, session)
	return nil
}

// runSynthesis issues the single synthesizer call and commits the terminal
// snapshot. A failure here is terminal: there is no retry.
func (s *Service) runSynthesis(ctx context.Context, session *domain.Session) error {
	s.transition(ctx, session, domain.StageSynthesis)
	log.Printf("INFO: [%s] stage 3: synthesis with %s", session.SessionID, session.SynthesizerModel)

	prompt := fmt.Sprintf(synthesisUserPrompt,
		session.Query,
		formatOpinions(session.Opinions),
		formatRankings(session.Reviews),
	)

	stageCtx, cancel := context.WithTimeout(ctx, s.cfg.StageTimeout)
	defer cancel()

	result, err := s.gen.Generate(stageCtx, ollama.GenerateRequest{
		Model:  session.SynthesizerModel,
		Prompt: prompt,
		System: synthesisSystemPrompt,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSynthesisFailed, err)
	}

	session.FinalAnswer = &domain.FinalAnswer{
		Content:          result.Content,
		SynthesizerModel: session.SynthesizerModel,
		TokensUsed:       result.PromptTokens + result.CompletionTokens,
		DurationMs:       result.Duration.Milliseconds(),
		CitedAgentIDs:    s.citedAgents(session),
	}

	record := UsageRecord{
		Model:            session.SynthesizerModel,
		PromptTokens:     result.PromptTokens,
		CompletionTokens: result.CompletionTokens,
		DurationMs:       result.Duration.Milliseconds(),
	}
	session.Usage.Synthesis = SummarizeStage(domain.StageSynthesis, []UsageRecord{record})
	session.Latency.Synthesis = SummarizeLatency(domain.StageSynthesis, []UsageRecord{record})

	session.Stage = domain.StageComplete
	s.rollupAndCommit(ctx, session)

	s.broker.Publish(session.SessionID, domain.ProgressEvent{
		Type:           domain.EventTypeCompleted,
		SessionID:      session.SessionID,
		Ts:             time.Now().UnixMilli(),
		Stage:          session.Stage,
		OpinionsCount:  len(session.Opinions),
		ReviewsCount:   len(session.Reviews),
		HasFinalAnswer: true,
		Session:        session.Clone(),
	})
	return nil
}

// citedAgents selects the top-ranked agents by mean review score, ties broken
// by roster order, capped at three.
func (s *Service) citedAgents(session *domain.Session) []string {
	averages := averageScores(session.Reviews)
	if len(averages) == 0 {
		return nil
	}

	rosterIndex := make(map[string]int, len(session.Agents))
	for i, agent := range session.Agents {
		rosterIndex[agent.ID] = i
	}

	ids := make([]string, 0, len(averages))
	for id := range averages {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if averages[ids[i]] != averages[ids[j]] {
			return averages[ids[i]] > averages[ids[j]]
		}
		return rosterIndex[ids[i]] < rosterIndex[ids[j]]
	})

	if len(ids) > 3 {
		ids = ids[:3]
	}
	return ids
}

// transition commits the stage change atomically and notifies subscribers.
func (s *Service) transition(ctx context.Context, session *domain.Session, stage domain.Stage) {
	session.Stage = stage
	session.UpdatedAt = time.Now()
	if err := s.store.CommitSession(ctx, session); err != nil {
		log.Printf("ERROR: [%s] failed to commit stage %s: %v", session.SessionID, stage, err)
	}

	s.broker.Publish(session.SessionID, domain.ProgressEvent{
		Type:           domain.EventTypeStageChanged,
		SessionID:      session.SessionID,
		Ts:             time.Now().UnixMilli(),
		Stage:          stage,
		OpinionsCount:  len(session.Opinions),
		ReviewsCount:   len(session.Reviews),
		HasFinalAnswer: session.FinalAnswer != nil,
	})
}

// rollupAndCommit refreshes the session-level rollups and commits the
// accumulated stage data in one update.
func (s *Service) rollupAndCommit(ctx context.Context, session *domain.Session) {
	SummarizeSession(&session.Usage)
	session.Latency.TotalDurationMs = time.Since(session.CreatedAt).Milliseconds()
	session.UpdatedAt = time.Now()
	if err := s.store.CommitSession(ctx, session); err != nil {
		log.Printf("ERROR: [%s] failed to commit stage data: %v", session.SessionID, err)
	}
}

// failSession moves the session to the terminal error stage, keeping the
// partial opinions and reviews that already succeeded.
func (s *Service) failSession(ctx context.Context, session *domain.Session, reason string) {
	log.Printf("ERROR: [%s] workflow failed: %s", session.SessionID, reason)
	session.Stage = domain.StageError
	session.Error = reason
	session.UpdatedAt = time.Now()
	if err := s.store.CommitSession(ctx, session); err != nil {
		log.Printf("ERROR: [%s] failed to commit error state: %v", session.SessionID, err)
	}

	s.broker.Publish(session.SessionID, domain.ProgressEvent{
		Type:          domain.EventTypeFailed,
		SessionID:     session.SessionID,
		Ts:            time.Now().UnixMilli(),
		Stage:         domain.StageError,
		OpinionsCount: len(session.Opinions),
		ReviewsCount:  len(session.Reviews),
		Reason:        reason,
	})
}
