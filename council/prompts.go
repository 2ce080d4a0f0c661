package council

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Tom-dlhy/local-llm-consensus-engine/domain"
)

const opinionSystemPrompt = `You are %s, an expert AI assistant.
1. RESPOND IN THE SAME LANGUAGE AS THE USER'S QUESTION.
2. Be extremely concise and direct. Avoid filler words, introductions, or excessive verbosity.
3. Provide the answer immediately without fluff.`

const reviewSystemPrompt = `You are %s, evaluating a single AI response.
1. RESPOND IN THE SAME LANGUAGE AS THE QUESTION.
2. Rate the response from 1 (poor) to 10 (excellent) based on accuracy, clarity, and relevance.
3. Respond ONLY with JSON: {"score": <1-10>, "reasoning": "<brief explanation>"}`

const reviewUserPrompt = `Question: %s

Response to evaluate:
%s

Provide your JSON score only.`

const synthesisSystemPrompt = `You are the Chairman.
1. RESPOND IN THE SAME LANGUAGE AS THE USER'S QUESTION.
2. Synthesize the provided opinions into one single, clear, and direct final answer.
3. Do NOT explain the process or list what each agent said individually.
4. Go straight to the point and give the best possible response.`

const synthesisUserPrompt = `Original Question: %s

Agent Opinions:
%s

Peer Review Rankings:
%s

Based on all the above, provide the final synthesized answer.`

func formatOpinions(opinions []domain.Opinion) string {
	parts := make([]string, 0, len(opinions))
	for _, op := range opinions {
		parts = append(parts, fmt.Sprintf("[%s (%s)]:\n%s", op.AgentName, op.AgentID, op.Content))
	}
	return strings.Join(parts, "\n\n---\n\n")
}

func formatRankings(reviews []domain.Review) string {
	averages := averageScores(reviews)

	ids := make([]string, 0, len(averages))
	for id := range averages {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf("%s: Average score %.1f/10", id, averages[id]))
	}
	return strings.Join(parts, "\n")
}

// averageScores aggregates every ranking by subject into a mean score.
func averageScores(reviews []domain.Review) map[string]float64 {
	sums := make(map[string]int)
	counts := make(map[string]int)
	for _, review := range reviews {
		for _, ranking := range review.Rankings {
			sums[ranking.AgentID] += ranking.Score
			counts[ranking.AgentID]++
		}
	}

	averages := make(map[string]float64, len(sums))
	for id, sum := range sums {
		averages[id] = float64(sum) / float64(counts[id])
	}
	return averages
}
