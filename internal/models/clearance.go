package models

import (
	"math"
	"time"
)

// StepStatus captures the decision state of a single clearance step.
type StepStatus string

const (
	StepStatusPending  StepStatus = "PENDING"
	StepStatusApproved StepStatus = "APPROVED"
	StepStatusRejected StepStatus = "REJECTED"
)

// Decided reports whether the step has left PENDING. Decided steps are terminal.
func (s StepStatus) Decided() bool {
	return s == StepStatusApproved || s == StepStatusRejected
}

// ClearanceStatus is the aggregate state of a clearance request.
type ClearanceStatus string

const (
	ClearanceStatusPending    ClearanceStatus = "PENDING"
	ClearanceStatusInProgress ClearanceStatus = "IN_PROGRESS"
	ClearanceStatusApproved   ClearanceStatus = "APPROVED"
	ClearanceStatusRejected   ClearanceStatus = "REJECTED"
)

// Valid reports whether the status is one of the known aggregate states.
func (s ClearanceStatus) Valid() bool {
	switch s {
	case ClearanceStatusPending, ClearanceStatusInProgress, ClearanceStatusApproved, ClearanceStatusRejected:
		return true
	}
	return false
}

// StepAction is the decision an approver applies to a pending step.
type StepAction string

const (
	StepActionApprove StepAction = "APPROVE"
	StepActionReject  StepAction = "REJECT"
)

// Status maps the action onto the step status it produces.
func (a StepAction) Status() (StepStatus, bool) {
	switch a {
	case StepActionApprove:
		return StepStatusApproved, true
	case StepActionReject:
		return StepStatusRejected, true
	}
	return "", false
}

// ClearanceStep is one department's approval decision within a request.
type ClearanceStep struct {
	ID           string     `db:"id" json:"stepId"`
	RequestID    string     `db:"request_id" json:"-"`
	Position     int        `db:"position" json:"position"`
	Department   string     `db:"department" json:"department"`
	ApproverRole UserRole   `db:"approver_role" json:"approverRole"`
	Status       StepStatus `db:"status" json:"status"`
	ApproverID   *string    `db:"approver_id" json:"approverId,omitempty"`
	ApproverName *string    `db:"approver_name" json:"approverName,omitempty"`
	ApprovalDate *time.Time `db:"approval_date" json:"approvalDate,omitempty"`
	Comments     *string    `db:"comments" json:"comments,omitempty"`
}

// ClearanceRequest is a student's application to be cleared by every department in its steps.
// OverallStatus and Progress are derived from Steps and are never persisted.
type ClearanceRequest struct {
	ID                string          `db:"id" json:"requestId"`
	StudentID         string          `db:"student_id" json:"studentId"`
	StudentName       string          `db:"student_name" json:"studentName"`
	StudentDepartment string          `db:"student_department" json:"studentDepartment"`
	StudentRollNo     string          `db:"student_roll_no" json:"studentRollNo"`
	SubmissionDate    time.Time       `db:"submitted_at" json:"submissionDate"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updatedAt"`
	Version           int             `db:"version" json:"version"`
	Steps             []ClearanceStep `db:"-" json:"steps"`
	OverallStatus     ClearanceStatus `db:"-" json:"overallStatus"`
	Progress          int             `db:"-" json:"progress"`
}

// Refresh recomputes the derived fields from the current steps.
func (r *ClearanceRequest) Refresh() {
	if r == nil {
		return
	}
	r.OverallStatus = DeriveOverallStatus(r.Steps)
	r.Progress = CalculateProgress(r.Steps)
}

// Step returns the step with the given identifier.
func (r *ClearanceRequest) Step(stepID string) (*ClearanceStep, bool) {
	if r == nil {
		return nil, false
	}
	for i := range r.Steps {
		if r.Steps[i].ID == stepID {
			return &r.Steps[i], true
		}
	}
	return nil, false
}

// DeriveOverallStatus folds step states into the aggregate status.
// A single rejection blocks the whole clearance regardless of approvals.
func DeriveOverallStatus(steps []ClearanceStep) ClearanceStatus {
	approved := 0
	for _, step := range steps {
		switch step.Status {
		case StepStatusRejected:
			return ClearanceStatusRejected
		case StepStatusApproved:
			approved++
		}
	}
	switch {
	case len(steps) > 0 && approved == len(steps):
		return ClearanceStatusApproved
	case approved > 0:
		return ClearanceStatusInProgress
	default:
		return ClearanceStatusPending
	}
}

// CalculateProgress returns the rounded percentage of approved steps. Rejected steps do not count.
func CalculateProgress(steps []ClearanceStep) int {
	if len(steps) == 0 {
		return 0
	}
	approved := 0
	for _, step := range steps {
		if step.Status == StepStatusApproved {
			approved++
		}
	}
	return int(math.Round(100 * float64(approved) / float64(len(steps))))
}

// ClearanceFilter constrains admin listing queries. Status is matched against the derived status.
type ClearanceFilter struct {
	Status     ClearanceStatus
	Department string
	Search     string
	Limit      int
	Offset     int
}

// PendingActionFilter scopes the pending-work query to an approver's capability.
type PendingActionFilter struct {
	ApproverRole      UserRole
	Department        string
	GlobalDepartments []string
}

// StepTemplate describes one step created at submission time.
type StepTemplate struct {
	Department   string   `json:"department"`
	ApproverRole UserRole `json:"approverRole"`
}

// ClearanceSummary aggregates derived statuses for the admin overview.
type ClearanceSummary struct {
	Total      int       `json:"total"`
	Pending    int       `json:"pending"`
	InProgress int       `json:"inProgress"`
	Approved   int       `json:"approved"`
	Rejected   int       `json:"rejected"`
	ComputedAt time.Time `json:"computedAt"`
}

// Add counts one request under its derived status.
func (s *ClearanceSummary) Add(status ClearanceStatus) {
	s.Total++
	switch status {
	case ClearanceStatusPending:
		s.Pending++
	case ClearanceStatusInProgress:
		s.InProgress++
	case ClearanceStatusApproved:
		s.Approved++
	case ClearanceStatusRejected:
		s.Rejected++
	}
}
