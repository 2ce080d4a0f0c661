package council

import "github.com/Tom-dlhy/local-llm-consensus-engine/domain"

// UsageRecord is the per-call input to the stage rollups: which model was
// asked and what it cost.
type UsageRecord struct {
	Model            string
	PromptTokens     int
	CompletionTokens int
	DurationMs       int64
}

// SummarizeStage folds a stage's records into its token rollup. Records from
// duplicate-model agents land in the same by_model bucket. Zero records give
// all-zero totals and an empty (never nil) map, so consumers need no nil
// checks.
func SummarizeStage(stage domain.Stage, records []UsageRecord) *domain.StageUsage {
	usage := &domain.StageUsage{
		Stage:   stage,
		ByModel: make(map[string]domain.TokenUsage),
	}

	for _, rec := range records {
		usage.TotalPromptTokens += rec.PromptTokens
		usage.TotalCompletionTokens += rec.CompletionTokens

		bucket := usage.ByModel[rec.Model]
		bucket.PromptTokens += rec.PromptTokens
		bucket.CompletionTokens += rec.CompletionTokens
		bucket.TotalTokens += rec.PromptTokens + rec.CompletionTokens
		usage.ByModel[rec.Model] = bucket
	}

	usage.TotalTokens = usage.TotalPromptTokens + usage.TotalCompletionTokens
	return usage
}

// SummarizeLatency folds a stage's records into its duration rollup. Calls
// within a stage run concurrently, so this is aggregate compute time per
// model, not wall-clock stage time.
func SummarizeLatency(stage domain.Stage, records []UsageRecord) *domain.StageLatency {
	latency := &domain.StageLatency{
		Stage:   stage,
		ByModel: make(map[string]int64),
	}

	for _, rec := range records {
		latency.TotalDurationMs += rec.DurationMs
		latency.ByModel[rec.Model] += rec.DurationMs
	}
	return latency
}

// SummarizeSession recomputes the grand totals from the stage rollups.
func SummarizeSession(usage *domain.SessionUsage) {
	usage.TotalPromptTokens = 0
	usage.TotalCompletionTokens = 0

	for _, stage := range []*domain.StageUsage{usage.Opinions, usage.Review, usage.Synthesis} {
		if stage == nil {
			continue
		}
		usage.TotalPromptTokens += stage.TotalPromptTokens
		usage.TotalCompletionTokens += stage.TotalCompletionTokens
	}
	usage.TotalTokens = usage.TotalPromptTokens + usage.TotalCompletionTokens
}
