package council

import "testing"

func TestParseRankingValid(t *testing.T) {
	parsed, err := ParseRanking(`{"score": 8, "reasoning": "clear and accurate"}`)
	if err != nil {
		t.Fatalf("ParseRanking failed: %v", err)
	}
	if parsed.Score != 8 {
		t.Fatalf("expected score 8, got %d", parsed.Score)
	}
	if parsed.Reasoning != "clear and accurate" {
		t.Fatalf("unexpected reasoning: %q", parsed.Reasoning)
	}
}

func TestParseRankingWholeFloatScore(t *testing.T) {
	parsed, err := ParseRanking(`{"score": 7.0, "reasoning": "fine"}`)
	if err != nil {
		t.Fatalf("ParseRanking failed: %v", err)
	}
	if parsed.Score != 7 {
		t.Fatalf("expected score 7, got %d", parsed.Score)
	}
}

func TestParseRankingClampsOutOfRange(t *testing.T) {
	parsed, err := ParseRanking(`{"score": 15, "reasoning": "enthusiastic"}`)
	if err != nil {
		t.Fatalf("ParseRanking failed: %v", err)
	}
	if parsed.Score != 10 {
		t.Fatalf("expected score clamped to 10, got %d", parsed.Score)
	}

	parsed, err = ParseRanking(`{"score": 0, "reasoning": "harsh"}`)
	if err != nil {
		t.Fatalf("ParseRanking failed: %v", err)
	}
	if parsed.Score != 1 {
		t.Fatalf("expected score clamped to 1, got %d", parsed.Score)
	}
}

func TestParseRankingDefaultsEmptyReasoning(t *testing.T) {
	parsed, err := ParseRanking(`{"score": 5}`)
	if err != nil {
		t.Fatalf("ParseRanking failed: %v", err)
	}
	if parsed.Reasoning != "No reasoning provided" {
		t.Fatalf("unexpected reasoning: %q", parsed.Reasoning)
	}
}

func TestParseRankingMalformed(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"not json", "I would rate this an 8 out of 10."},
		{"missing score", `{"reasoning": "good"}`},
		{"string score", `{"score": "eight", "reasoning": "good"}`},
		{"fractional score", `{"score": 7.5, "reasoning": "good"}`},
		{"empty", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseRanking(tc.content); err == nil {
				t.Fatalf("expected error for %q", tc.content)
			}
		})
	}
}
