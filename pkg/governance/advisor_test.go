package governance_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xtoazt/gummybear-sub000/pkg/governance"
	"github.com/xtoazt/gummybear-sub000/pkg/ledger"
)

func TestAdvisor_DefaultExpression(t *testing.T) {
	advisor, err := governance.NewAdvisor(governance.DefaultAdvisorExpression)
	require.NoError(t, err)

	tests := []struct {
		name   string
		action string
		params map[string]any
		want   string
	}{
		{"modify code is high", "modify_code", map[string]any{"filePath": "main.go"}, governance.RiskHigh},
		{"deploy is high", "deploy", nil, governance.RiskHigh},
		{"role change is high", "modify_user", map[string]any{
			"userId":  "u-1",
			"changes": map[string]any{"role": "admin"},
		}, governance.RiskHigh},
		{"status-only change is normal", "modify_user", map[string]any{
			"userId":  "u-1",
			"changes": map[string]any{"status": "banned"},
		}, governance.RiskNormal},
		{"component is normal", "create_component", map[string]any{"name": "poll"}, governance.RiskNormal},
		{"unknown action is normal", "summon_dragon", nil, governance.RiskNormal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			change := &ledger.PendingChange{
				RequestedBy: "user-1",
				Action:      ledger.ActionData{Action: tt.action, Params: tt.params},
			}
			assert.Equal(t, tt.want, advisor.Assess(change))
		})
	}
}

func TestAdvisor_InvalidExpression(t *testing.T) {
	_, err := governance.NewAdvisor("action ==")
	require.Error(t, err)
}

func TestAdvisor_NonBooleanExpressionIsNormal(t *testing.T) {
	advisor, err := governance.NewAdvisor(`action`)
	require.NoError(t, err)

	change := &ledger.PendingChange{Action: ledger.ActionData{Action: "deploy"}}
	assert.Equal(t, governance.RiskNormal, advisor.Assess(change))
}

func TestAdvisor_EvalErrorDegradesToNormal(t *testing.T) {
	// Selecting a field that the params of this change do not carry makes
	// evaluation fail; the advisor treats that as normal risk.
	advisor, err := governance.NewAdvisor(`params.changes.role == 'admin'`)
	require.NoError(t, err)

	change := &ledger.PendingChange{
		Action: ledger.ActionData{Action: "modify_user", Params: map[string]any{"userId": "u-1"}},
	}
	assert.Equal(t, governance.RiskNormal, advisor.Assess(change))
}

func TestAdvisor_RequestedByAvailable(t *testing.T) {
	advisor, err := governance.NewAdvisor(`requested_by == 'intern'`)
	require.NoError(t, err)

	flagged := &ledger.PendingChange{RequestedBy: "intern", Action: ledger.ActionData{Action: "deploy"}}
	trusted := &ledger.PendingChange{RequestedBy: "admin-1", Action: ledger.ActionData{Action: "deploy"}}
	assert.Equal(t, governance.RiskHigh, advisor.Assess(flagged))
	assert.Equal(t, governance.RiskNormal, advisor.Assess(trusted))
}
