package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stepsWith(statuses ...StepStatus) []ClearanceStep {
	steps := make([]ClearanceStep, len(statuses))
	for i, status := range statuses {
		steps[i] = ClearanceStep{ID: string(rune('a' + i)), Status: status}
	}
	return steps
}

func TestDeriveOverallStatus(t *testing.T) {
	cases := []struct {
		name  string
		steps []ClearanceStep
		want  ClearanceStatus
	}{
		{"no action yet", stepsWith(StepStatusPending, StepStatusPending, StepStatusPending), ClearanceStatusPending},
		{"partial progress", stepsWith(StepStatusApproved, StepStatusPending, StepStatusPending), ClearanceStatusInProgress},
		{"all approved", stepsWith(StepStatusApproved, StepStatusApproved, StepStatusApproved), ClearanceStatusApproved},
		{"rejection with approvals", stepsWith(StepStatusApproved, StepStatusApproved, StepStatusRejected), ClearanceStatusRejected},
		{"rejection first", stepsWith(StepStatusRejected, StepStatusPending, StepStatusApproved), ClearanceStatusRejected},
		{"empty", nil, ClearanceStatusPending},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DeriveOverallStatus(tc.steps))
		})
	}
}

func TestDeriveOverallStatusIsPure(t *testing.T) {
	all := []StepStatus{StepStatusPending, StepStatusApproved, StepStatusRejected}
	for _, a := range all {
		for _, b := range all {
			for _, c := range all {
				steps := stepsWith(a, b, c)
				first := DeriveOverallStatus(steps)
				require.Equal(t, first, DeriveOverallStatus(steps))
				if a == StepStatusRejected || b == StepStatusRejected || c == StepStatusRejected {
					require.Equal(t, ClearanceStatusRejected, first)
				}
			}
		}
	}
}

func TestCalculateProgress(t *testing.T) {
	assert.Equal(t, 67, CalculateProgress(stepsWith(StepStatusApproved, StepStatusApproved, StepStatusPending)))
	assert.Equal(t, 33, CalculateProgress(stepsWith(StepStatusApproved, StepStatusRejected, StepStatusPending)))
	assert.Equal(t, 100, CalculateProgress(stepsWith(StepStatusApproved, StepStatusApproved)))
	assert.Equal(t, 0, CalculateProgress(nil))
	assert.Equal(t, 0, CalculateProgress([]ClearanceStep{}))
}

func TestClearanceRequestRefreshAndStep(t *testing.T) {
	req := &ClearanceRequest{Steps: stepsWith(StepStatusApproved, StepStatusPending)}
	req.OverallStatus = ClearanceStatusApproved
	req.Refresh()
	assert.Equal(t, ClearanceStatusInProgress, req.OverallStatus)
	assert.Equal(t, 50, req.Progress)

	step, ok := req.Step("b")
	require.True(t, ok)
	assert.Equal(t, StepStatusPending, step.Status)
	_, ok = req.Step("missing")
	assert.False(t, ok)
}

func TestStepActionStatus(t *testing.T) {
	status, ok := StepActionApprove.Status()
	require.True(t, ok)
	assert.Equal(t, StepStatusApproved, status)
	status, ok = StepActionReject.Status()
	require.True(t, ok)
	assert.Equal(t, StepStatusRejected, status)
	_, ok = StepAction("ESCALATE").Status()
	assert.False(t, ok)
}

func TestClearanceSummaryAdd(t *testing.T) {
	var summary ClearanceSummary
	summary.Add(ClearanceStatusPending)
	summary.Add(ClearanceStatusApproved)
	summary.Add(ClearanceStatusRejected)
	summary.Add(ClearanceStatusInProgress)
	summary.Add(ClearanceStatusInProgress)
	assert.Equal(t, ClearanceSummary{Total: 5, Pending: 1, InProgress: 2, Approved: 1, Rejected: 1}, summary)
}
