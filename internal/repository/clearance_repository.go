package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/campusconnect-api/internal/models"
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique index conflicts.
const uniqueViolation = "23505"

// ErrDuplicateStudent is returned when a student already owns a clearance request.
var ErrDuplicateStudent = errors.New("clearance request already exists for student")

// StepDecidedError reports a step that left PENDING before the current decision could be applied.
type StepDecidedError struct {
	Current models.StepStatus
}

func (e *StepDecidedError) Error() string {
	return fmt.Sprintf("clearance step already %s", strings.ToLower(string(e.Current)))
}

const clearanceRequestColumns = `id, student_id, student_name, student_department, student_roll_no, submitted_at, updated_at, version`

const clearanceStepColumns = `id, request_id, position, department, approver_role, status, approver_id, approver_name, approval_date, comments`

// ClearanceRepository persists clearance requests and their approval steps.
type ClearanceRepository struct {
	db *sqlx.DB
}

// NewClearanceRepository constructs the repository.
func NewClearanceRepository(db *sqlx.DB) *ClearanceRepository {
	return &ClearanceRepository{db: db}
}

// Create inserts the request and all of its steps in a single transaction.
func (r *ClearanceRepository) Create(ctx context.Context, request *models.ClearanceRequest) error {
	now := time.Now().UTC()
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	if request.SubmissionDate.IsZero() {
		request.SubmissionDate = now
	}
	request.UpdatedAt = request.SubmissionDate
	if request.Version == 0 {
		request.Version = 1
	}
	for i := range request.Steps {
		step := &request.Steps[i]
		if step.ID == "" {
			step.ID = uuid.NewString()
		}
		step.RequestID = request.ID
		step.Position = i + 1
		if step.Status == "" {
			step.Status = models.StepStatusPending
		}
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin clearance tx: %w", err)
	}
	const insertRequest = `INSERT INTO clearance_requests
	(id, student_id, student_name, student_department, student_roll_no, submitted_at, updated_at, version)
	VALUES (:id, :student_id, :student_name, :student_department, :student_roll_no, :submitted_at, :updated_at, :version)`
	if _, err := tx.NamedExecContext(ctx, insertRequest, request); err != nil {
		_ = tx.Rollback()
		if isUniqueViolation(err) {
			return ErrDuplicateStudent
		}
		return fmt.Errorf("create clearance request: %w", err)
	}
	const insertStep = `INSERT INTO clearance_steps
	(id, request_id, position, department, approver_role, status, approver_id, approver_name, approval_date, comments)
	VALUES (:id, :request_id, :position, :department, :approver_role, :status, :approver_id, :approver_name, :approval_date, :comments)`
	for i := range request.Steps {
		if _, err := tx.NamedExecContext(ctx, insertStep, request.Steps[i]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("create clearance step: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit clearance tx: %w", err)
	}
	return nil
}

// GetByID loads a request and its ordered steps. Returns sql.ErrNoRows when missing.
func (r *ClearanceRepository) GetByID(ctx context.Context, id string) (*models.ClearanceRequest, error) {
	return getRequest(ctx, r.db, `SELECT `+clearanceRequestColumns+` FROM clearance_requests WHERE id = $1`, id)
}

// GetByStudentID loads the request owned by a student. Returns sql.ErrNoRows when missing.
func (r *ClearanceRepository) GetByStudentID(ctx context.Context, studentID string) (*models.ClearanceRequest, error) {
	return getRequest(ctx, r.db, `SELECT `+clearanceRequestColumns+` FROM clearance_requests WHERE student_id = $1`, studentID)
}

// List returns requests matching the filter, newest first, with their steps attached.
// Status is matched against the status derived from the steps. A zero Limit returns every match.
func (r *ClearanceRepository) List(ctx context.Context, filter models.ClearanceFilter) ([]models.ClearanceRequest, error) {
	where, args := clearanceFilterClause(filter)
	builder := strings.Builder{}
	builder.WriteString(`SELECT ` + clearanceRequestColumns + ` FROM clearance_requests`)
	builder.WriteString(where)
	builder.WriteString(" ORDER BY submitted_at DESC, id ASC")
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		builder.WriteString(fmt.Sprintf(" LIMIT $%d", len(args)))
		if filter.Offset > 0 {
			args = append(args, filter.Offset)
			builder.WriteString(fmt.Sprintf(" OFFSET $%d", len(args)))
		}
	}

	var requests []models.ClearanceRequest
	if err := r.db.SelectContext(ctx, &requests, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list clearance requests: %w", err)
	}
	if err := attachSteps(ctx, r.db, requests); err != nil {
		return nil, err
	}
	return requests, nil
}

// Count returns how many requests match the filter, ignoring Limit and Offset.
func (r *ClearanceRepository) Count(ctx context.Context, filter models.ClearanceFilter) (int, error) {
	where, args := clearanceFilterClause(filter)
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM clearance_requests`+where, args...); err != nil {
		return 0, fmt.Errorf("count clearance requests: %w", err)
	}
	return total, nil
}

// clearanceFilterClause builds the WHERE clause shared by List and Count.
// The status predicates follow models.DeriveOverallStatus.
func clearanceFilterClause(filter models.ClearanceFilter) (string, []interface{}) {
	args := make([]interface{}, 0, 4)
	conditions := make([]string, 0, 3)
	if dept := strings.TrimSpace(filter.Department); dept != "" {
		args = append(args, dept)
		conditions = append(conditions, fmt.Sprintf("student_department = $%d", len(args)))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+escapeLike(search)+"%")
		idx := len(args)
		conditions = append(conditions, fmt.Sprintf("(student_id ILIKE $%d OR student_name ILIKE $%d OR student_roll_no ILIKE $%d)", idx, idx, idx))
	}

	stepWith := func(op string, status models.StepStatus) string {
		args = append(args, status)
		return fmt.Sprintf("EXISTS (SELECT 1 FROM clearance_steps s WHERE s.request_id = clearance_requests.id AND s.status %s $%d)", op, len(args))
	}
	switch filter.Status {
	case models.ClearanceStatusRejected:
		conditions = append(conditions, stepWith("=", models.StepStatusRejected))
	case models.ClearanceStatusApproved:
		conditions = append(conditions,
			"EXISTS (SELECT 1 FROM clearance_steps s WHERE s.request_id = clearance_requests.id)",
			"NOT "+stepWith("<>", models.StepStatusApproved))
	case models.ClearanceStatusInProgress:
		conditions = append(conditions,
			stepWith("=", models.StepStatusApproved),
			"NOT "+stepWith("=", models.StepStatusRejected),
			stepWith("=", models.StepStatusPending))
	case models.ClearanceStatusPending:
		conditions = append(conditions,
			"NOT "+stepWith("=", models.StepStatusApproved),
			"NOT "+stepWith("=", models.StepStatusRejected))
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// ListPendingForApprover returns requests holding at least one pending step the approver may act on.
func (r *ClearanceRepository) ListPendingForApprover(ctx context.Context, filter models.PendingActionFilter) ([]models.ClearanceRequest, error) {
	global := filter.GlobalDepartments
	if filter.ApproverRole != models.RoleAdmin || global == nil {
		global = []string{}
	}
	const query = `SELECT ` + clearanceRequestColumns + ` FROM clearance_requests
	WHERE id IN (
		SELECT request_id FROM clearance_steps
		WHERE status = $1 AND approver_role = $2 AND (department = $3 OR department = ANY($4))
	)
	ORDER BY submitted_at ASC, id ASC`
	var requests []models.ClearanceRequest
	if err := r.db.SelectContext(ctx, &requests, query,
		models.StepStatusPending,
		filter.ApproverRole,
		filter.Department,
		pq.Array(global),
	); err != nil {
		return nil, fmt.Errorf("list pending clearance actions: %w", err)
	}
	if err := attachSteps(ctx, r.db, requests); err != nil {
		return nil, err
	}
	return requests, nil
}

// DecideStepParams groups the columns written when a step is decided.
type DecideStepParams struct {
	RequestID    string
	StepID       string
	Status       models.StepStatus
	ApproverID   string
	ApproverName string
	DecidedAt    time.Time
	Comments     *string
}

// DecideStep atomically moves a PENDING step to its decided status and returns the refreshed request.
// The step row is locked for the duration of the transaction so concurrent decisions serialise;
// a step that is no longer PENDING yields *StepDecidedError, a missing step sql.ErrNoRows.
func (r *ClearanceRepository) DecideStep(ctx context.Context, params DecideStepParams) (*models.ClearanceRequest, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin decide step tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var current models.StepStatus
	const lockQuery = `SELECT status FROM clearance_steps WHERE id = $1 AND request_id = $2 FOR UPDATE`
	if err := tx.GetContext(ctx, &current, lockQuery, params.StepID, params.RequestID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("lock clearance step: %w", err)
	}
	if current != models.StepStatusPending {
		return nil, &StepDecidedError{Current: current}
	}

	const updateStep = `UPDATE clearance_steps
	SET status = :status, approver_id = :approver_id, approver_name = :approver_name, approval_date = :approval_date, comments = :comments
	WHERE id = :id AND request_id = :request_id AND status = :pending`
	result, err := tx.NamedExecContext(ctx, updateStep, map[string]interface{}{
		"id":            params.StepID,
		"request_id":    params.RequestID,
		"status":        params.Status,
		"approver_id":   params.ApproverID,
		"approver_name": params.ApproverName,
		"approval_date": params.DecidedAt,
		"comments":      params.Comments,
		"pending":       models.StepStatusPending,
	})
	if err != nil {
		return nil, fmt.Errorf("update clearance step: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("check clearance step rows: %w", err)
	}
	if rows == 0 {
		return nil, &StepDecidedError{Current: current}
	}

	const touchRequest = `UPDATE clearance_requests SET updated_at = $1, version = version + 1 WHERE id = $2`
	if _, err := tx.ExecContext(ctx, touchRequest, params.DecidedAt, params.RequestID); err != nil {
		return nil, fmt.Errorf("touch clearance request: %w", err)
	}

	request, err := getRequest(ctx, tx, `SELECT `+clearanceRequestColumns+` FROM clearance_requests WHERE id = $1`, params.RequestID)
	if err != nil {
		return nil, fmt.Errorf("reload clearance request: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit decide step tx: %w", err)
	}
	return request, nil
}

func getRequest(ctx context.Context, q sqlx.QueryerContext, query string, arg interface{}) (*models.ClearanceRequest, error) {
	var request models.ClearanceRequest
	if err := sqlx.GetContext(ctx, q, &request, query, arg); err != nil {
		return nil, err
	}
	requests := []models.ClearanceRequest{request}
	if err := attachSteps(ctx, q, requests); err != nil {
		return nil, err
	}
	return &requests[0], nil
}

func attachSteps(ctx context.Context, q sqlx.QueryerContext, requests []models.ClearanceRequest) error {
	if len(requests) == 0 {
		return nil
	}
	ids := make([]string, len(requests))
	index := make(map[string]int, len(requests))
	for i := range requests {
		ids[i] = requests[i].ID
		index[requests[i].ID] = i
		requests[i].Steps = []models.ClearanceStep{}
	}
	const query = `SELECT ` + clearanceStepColumns + ` FROM clearance_steps WHERE request_id = ANY($1) ORDER BY request_id, position ASC`
	var steps []models.ClearanceStep
	if err := sqlx.SelectContext(ctx, q, &steps, query, pq.Array(ids)); err != nil {
		return fmt.Errorf("load clearance steps: %w", err)
	}
	for _, step := range steps {
		if i, ok := index[step.RequestID]; ok {
			requests[i].Steps = append(requests[i].Steps, step)
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}
