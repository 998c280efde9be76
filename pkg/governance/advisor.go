package governance

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/xtoazt/gummybear-sub000/pkg/ledger"
)

// Risk levels attached to queued changes for the review UI. Advisory only:
// the advisor never changes what is gated or who may approve.
const (
	RiskNormal = "normal"
	RiskHigh   = "high"
)

// DefaultAdvisorExpression flags code and deploy changes, and any user
// mutation that touches a role, as high risk.
const DefaultAdvisorExpression = `action in ['modify_code', 'deploy'] || (action == 'modify_user' && 'role' in params.changes)`

// Advisor evaluates a CEL expression over a queued change to annotate it
// with a risk level. Expressions come from the policy profile; evaluation
// errors degrade to normal risk.
type Advisor struct {
	program cel.Program
}

// NewAdvisor compiles the expression. Pass DefaultAdvisorExpression when the
// profile does not override it.
func NewAdvisor(expression string) (*Advisor, error) {
	env, err := cel.NewEnv(
		cel.Variable("action", cel.StringType),
		cel.Variable("requested_by", cel.StringType),
		cel.Variable("params", cel.DynType),
	)
	if err != nil {
		return nil, fmt.Errorf("create CEL environment: %w", err)
	}

	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile advisor expression: %w", issues.Err())
	}
	program, err := env.Program(ast,
		cel.InterruptCheckFrequency(100),
		cel.CostLimit(10000),
	)
	if err != nil {
		return nil, fmt.Errorf("build advisor program: %w", err)
	}
	return &Advisor{program: program}, nil
}

// Assess returns the risk level for a queued change.
func (a *Advisor) Assess(change *ledger.PendingChange) string {
	params := change.Action.Params
	if params == nil {
		params = map[string]any{}
	}
	out, _, err := a.program.Eval(map[string]any{
		"action":       change.Action.Action,
		"requested_by": change.RequestedBy,
		"params":       params,
	})
	if err != nil {
		// Missing fields in params make field selection fail; that is not
		// a high-risk signal.
		return RiskNormal
	}
	if high, ok := out.Value().(bool); ok && high {
		return RiskHigh
	}
	return RiskNormal
}
