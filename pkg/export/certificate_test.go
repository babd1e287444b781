package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campusconnect-api/internal/models"
)

func TestCertificateRendererRender(t *testing.T) {
	decided := time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)
	name := "Dr. Rao"
	request := &models.ClearanceRequest{
		ID:                "req-1",
		StudentID:         "S42",
		StudentName:       "Ada Lovelace",
		StudentDepartment: "Mathematics",
		StudentRollNo:     "R-042",
		SubmissionDate:    decided.Add(-48 * time.Hour),
		Steps: []models.ClearanceStep{
			{ID: "s1", Department: "Library", Status: models.StepStatusApproved, ApproverName: &name, ApprovalDate: &decided},
			{ID: "s2", Department: "Finance", Status: models.StepStatusApproved, ApproverName: &name, ApprovalDate: &decided},
		},
	}

	doc, err := NewCertificateRenderer("").Render(request, decided)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(doc, []byte("%PDF")))
}

func TestCertificateRendererRejectsEmptyRequest(t *testing.T) {
	renderer := NewCertificateRenderer("Test University")

	_, err := renderer.Render(nil, time.Now())
	require.Error(t, err)

	_, err = renderer.Render(&models.ClearanceRequest{ID: "req-1"}, time.Now())
	require.Error(t, err)
}
