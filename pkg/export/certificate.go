package export

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/noah-isme/campusconnect-api/internal/models"
)

const certificateDateLayout = "02 Jan 2006"

// CertificateRenderer renders clearance completion certificates as PDF.
type CertificateRenderer struct {
	institution string
}

// NewCertificateRenderer constructs a renderer printing the institution name in the header.
func NewCertificateRenderer(institution string) *CertificateRenderer {
	if strings.TrimSpace(institution) == "" {
		institution = "CampusConnect"
	}
	return &CertificateRenderer{institution: institution}
}

// Render lays out the student snapshot and a table of every approval step.
func (r *CertificateRenderer) Render(request *models.ClearanceRequest, issuedAt time.Time) ([]byte, error) {
	if request == nil {
		return nil, fmt.Errorf("certificate requires a clearance request")
	}
	if len(request.Steps) == 0 {
		return nil, fmt.Errorf("certificate requires at least one approval step")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 20, 15)
	pdf.SetTitle("Clearance Certificate", false)
	pdf.SetAuthor(r.institution, false)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, strings.ToUpper(r.institution), "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "B", 13)
	pdf.CellFormat(0, 9, "Certificate of Clearance", "", 1, "C", false, 0, "")
	pdf.Ln(6)

	pdf.SetFont("Arial", "", 11)
	details := [][2]string{
		{"Student", request.StudentName},
		{"Student ID", request.StudentID},
		{"Roll No.", request.StudentRollNo},
		{"Department", request.StudentDepartment},
		{"Submitted", request.SubmissionDate.Format(certificateDateLayout)},
		{"Issued", issuedAt.Format(certificateDateLayout)},
	}
	for _, row := range details {
		pdf.SetFont("Arial", "B", 11)
		pdf.CellFormat(40, 7, row[0], "", 0, "", false, 0, "")
		pdf.SetFont("Arial", "", 11)
		pdf.CellFormat(0, 7, row[1], "", 1, "", false, 0, "")
	}
	pdf.Ln(6)

	headers := []string{"Department", "Approved By", "Date", "Comments"}
	widths := []float64{40, 50, 30, 60}
	pdf.SetFont("Arial", "B", 10)
	for i, header := range headers {
		pdf.CellFormat(widths[i], 8, header, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, step := range request.Steps {
		cells := []string{step.Department, deref(step.ApproverName), "", deref(step.Comments)}
		if step.ApprovalDate != nil {
			cells[2] = step.ApprovalDate.Format(certificateDateLayout)
		}
		for i, value := range cells {
			pdf.CellFormat(widths[i], 7, value, "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	pdf.Ln(10)
	pdf.SetFont("Arial", "I", 9)
	pdf.MultiCell(0, 5, fmt.Sprintf("Clearance reference %s. All %d departments have approved this request.", request.ID, len(request.Steps)), "", "", false)

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render certificate pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
