package council

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParsedRanking is the validated score/reasoning pair extracted from one
// reviewer response.
type ParsedRanking struct {
	Score     int
	Reasoning string
}

type rawRanking struct {
	Score     *json.Number `json:"score"`
	Reasoning string       `json:"reasoning"`
}

// ParseRanking validates a reviewer's structured output. Model output is
// never trusted implicitly: anything that is not a JSON object with a numeric
// score is rejected, and the pair records a malformed-output error instead of
// a ranking. A parsable score outside [1,10] is clamped.
func ParseRanking(content string) (ParsedRanking, error) {
	dec := json.NewDecoder(strings.NewReader(content))
	dec.UseNumber()

	var raw rawRanking
	if err := dec.Decode(&raw); err != nil {
		return ParsedRanking{}, fmt.Errorf("malformed ranking output: %w", err)
	}
	if raw.Score == nil {
		return ParsedRanking{}, fmt.Errorf("malformed ranking output: missing score")
	}

	score, err := raw.Score.Int64()
	if err != nil {
		// Models occasionally emit "7.0"; accept a whole-valued float.
		f, ferr := raw.Score.Float64()
		if ferr != nil || f != float64(int64(f)) {
			return ParsedRanking{}, fmt.Errorf("malformed ranking output: non-integer score %q", raw.Score.String())
		}
		score = int64(f)
	}

	if score < 1 {
		score = 1
	}
	if score > 10 {
		score = 10
	}

	reasoning := raw.Reasoning
	if reasoning == "" {
		reasoning = "No reasoning provided"
	}

	return ParsedRanking{Score: int(score), Reasoning: reasoning}, nil
}
