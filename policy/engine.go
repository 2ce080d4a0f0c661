// Package policy gates council requests with an OPA rego policy.
package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/rego"
)

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a new policy engine with the given policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.council_policy.decision"),
		rego.Module("council_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// AdmissionInput is the policy input for one council request.
type AdmissionInput struct {
	QueryLength      int      `json:"query_length"`
	AgentCount       int      `json:"agent_count"`
	Models           []string `json:"models"`
	SynthesizerModel string   `json:"synthesizer_model"`
}

// Evaluate checks the admission policy for a council request.
// Returns the decision ("allow" or "block") and an optional reason.
func (e *Engine) Evaluate(ctx context.Context, input AdmissionInput) (string, string, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", "", fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		// The policy defines a default, so an empty result means the
		// module is broken rather than the request allowed.
		return "", "", fmt.Errorf("policy returned no decision")
	}

	val := results[0].Expressions[0].Value
	switch v := val.(type) {
	case string:
		return v, "", nil
	case map[string]interface{}:
		decision, _ := v["decision"].(string)
		reason, _ := v["reason"].(string)
		return decision, reason, nil
	}
	return "", "", fmt.Errorf("policy returned unexpected type %T", val)
}

// DefaultPolicy is the default admission policy: a council needs a non-empty
// query and between 1 and 5 agents.
const DefaultPolicy = `
package council_policy

import rego.v1

default decision := {"decision": "allow", "reason": ""}

decision := {"decision": "block", "reason": "query must not be empty"} if {
	input.query_length == 0
}

decision := {"decision": "block", "reason": "at least one agent is required"} if {
	input.query_length > 0
	input.agent_count == 0
}

decision := {"decision": "block", "reason": "at most 5 agents are allowed"} if {
	input.query_length > 0
	input.agent_count > 5
}

decision := {"decision": "block", "reason": "synthesizer model must not be empty"} if {
	input.query_length > 0
	input.agent_count >= 1
	input.agent_count <= 5
	input.synthesizer_model == ""
}
`
