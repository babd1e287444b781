package dto

import "github.com/noah-isme/campusconnect-api/internal/models"

// SubmitClearanceRequest carries the student identity snapshot taken at submission.
type SubmitClearanceRequest struct {
	StudentID         string `json:"studentId" validate:"required,max=64"`
	StudentName       string `json:"studentName" validate:"required,max=200"`
	StudentDepartment string `json:"studentDepartment" validate:"required,max=120"`
	StudentRollNo     string `json:"studentRollNo" validate:"required,max=64"`
}

// ClearanceStepActionRequest is an approver's decision on a single step.
type ClearanceStepActionRequest struct {
	Action   models.StepAction `json:"action" validate:"required,oneof=APPROVE REJECT"`
	Comments string            `json:"comments" validate:"max=1000"`
}

// ClearanceQuery mirrors the admin listing filters.
type ClearanceQuery struct {
	Status     models.ClearanceStatus
	Department string
	Search     string
	Page       int
	PageSize   int
}

// StepActor identifies the principal deciding a step.
type StepActor struct {
	UserID     string
	Name       string
	Role       models.UserRole
	Department string
}

// ActorFromClaims builds a StepActor from verified token claims.
func ActorFromClaims(claims *models.JWTClaims) StepActor {
	if claims == nil {
		return StepActor{}
	}
	name := claims.FullName
	if name == "" {
		name = claims.Email
	}
	return StepActor{
		UserID:     claims.UserID,
		Name:       name,
		Role:       claims.Role,
		Department: claims.Department,
	}
}

// ClearanceTemplateItem describes the approval chain applied to a department's students.
type ClearanceTemplateItem struct {
	Department string                `json:"department"`
	Steps      []models.StepTemplate `json:"steps"`
	Source     string                `json:"source"`
}

// UpdateClearanceTemplateRequest replaces a department's approval chain.
type UpdateClearanceTemplateRequest struct {
	Steps []ClearanceTemplateStep `json:"steps" validate:"required,min=1,max=12,dive"`
}

// ClearanceTemplateStep is a single entry of an approval chain payload.
type ClearanceTemplateStep struct {
	Department   string          `json:"department" validate:"required,max=120"`
	ApproverRole models.UserRole `json:"approverRole" validate:"required,oneof=faculty admin"`
}
