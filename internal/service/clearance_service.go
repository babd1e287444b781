package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/campusconnect-api/internal/dto"
	"github.com/noah-isme/campusconnect-api/internal/models"
	"github.com/noah-isme/campusconnect-api/internal/repository"
	appErrors "github.com/noah-isme/campusconnect-api/pkg/errors"
)

const (
	clearanceSummaryCacheKey  = "clearance:summary"
	clearanceCachePattern     = "clearance:*"
	clearanceResourceName     = "clearance_request"
	clearanceNotificationLink = "/clearances/me"
	defaultGlobalDepartment   = "Finance"
	defaultClearancePageSize  = 20
	maxClearancePageSize      = 100
)

// Outcome labels for clearance metrics.
const (
	clearanceOutcomeSuccess   = "success"
	clearanceOutcomeDuplicate = "duplicate"
	clearanceOutcomeConflict  = "already_actioned"
	clearanceOutcomeForbidden = "forbidden"
	clearanceOutcomeError     = "error"
)

type clearanceStore interface {
	Create(ctx context.Context, request *models.ClearanceRequest) error
	GetByID(ctx context.Context, id string) (*models.ClearanceRequest, error)
	GetByStudentID(ctx context.Context, studentID string) (*models.ClearanceRequest, error)
	List(ctx context.Context, filter models.ClearanceFilter) ([]models.ClearanceRequest, error)
	Count(ctx context.Context, filter models.ClearanceFilter) (int, error)
	ListPendingForApprover(ctx context.Context, filter models.PendingActionFilter) ([]models.ClearanceRequest, error)
	DecideStep(ctx context.Context, params repository.DecideStepParams) (*models.ClearanceRequest, error)
}

type stepTemplateResolver interface {
	Resolve(ctx context.Context, department string) ([]models.StepTemplate, error)
}

type summaryCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, pattern string) error
}

type auditHistoryReader interface {
	ListByResource(ctx context.Context, resource, resourceID string, limit int) ([]models.AuditLog, error)
}

// CertificateRenderer produces a printable document for a completed clearance.
type CertificateRenderer interface {
	Render(request *models.ClearanceRequest, issuedAt time.Time) ([]byte, error)
}

// ClearanceService runs the clearance workflow: submission, approvals and derived reads.
type ClearanceService struct {
	repo        clearanceStore
	templates   stepTemplateResolver
	audit       auditLogger
	validator   *validator.Validate
	logger      *zap.Logger
	notifier    Notifier
	cache       summaryCache
	cacheTTL    time.Duration
	metrics     *MetricsService
	certificate CertificateRenderer
	history     auditHistoryReader
	global      []string
	now         func() time.Time
}

// ClearanceServiceOption configures the service.
type ClearanceServiceOption func(*ClearanceService)

// WithClearanceNotifier sets the student notification sink.
func WithClearanceNotifier(notifier Notifier) ClearanceServiceOption {
	return func(s *ClearanceService) {
		s.notifier = notifier
	}
}

// WithClearanceCache enables summary caching.
func WithClearanceCache(cache summaryCache, ttl time.Duration) ClearanceServiceOption {
	return func(s *ClearanceService) {
		s.cache = cache
		s.cacheTTL = ttl
	}
}

// WithClearanceMetrics records workflow counters.
func WithClearanceMetrics(metrics *MetricsService) ClearanceServiceOption {
	return func(s *ClearanceService) {
		s.metrics = metrics
	}
}

// WithGlobalDepartments overrides the departments any admin may approve.
func WithGlobalDepartments(departments []string) ClearanceServiceOption {
	return func(s *ClearanceService) {
		if departments != nil {
			s.global = append([]string(nil), departments...)
		}
	}
}

// WithCertificateRenderer enables certificate rendering for approved requests.
func WithCertificateRenderer(renderer CertificateRenderer) ClearanceServiceOption {
	return func(s *ClearanceService) {
		s.certificate = renderer
	}
}

// WithClearanceHistory exposes the audit trail of each request to admins.
func WithClearanceHistory(history auditHistoryReader) ClearanceServiceOption {
	return func(s *ClearanceService) {
		s.history = history
	}
}

// WithClearanceClock overrides the time source.
func WithClearanceClock(now func() time.Time) ClearanceServiceOption {
	return func(s *ClearanceService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewClearanceService constructs the service with defaults.
func NewClearanceService(repo clearanceStore, templates stepTemplateResolver, audit auditLogger, validate *validator.Validate, logger *zap.Logger, opts ...ClearanceServiceOption) *ClearanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	svc := &ClearanceService{
		repo:      repo,
		templates: templates,
		audit:     audit,
		validator: validate,
		logger:    logger,
		global:    []string{defaultGlobalDepartment},
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// CanAct reports whether actor may decide step. The role must match the step's approver role and
// the department must match exactly, except that admins may act on any global department.
func CanAct(actor dto.StepActor, step models.ClearanceStep, globalDepartments []string) bool {
	if actor.Role == "" || actor.Role != step.ApproverRole {
		return false
	}
	if step.Department == actor.Department {
		return true
	}
	if actor.Role != models.RoleAdmin {
		return false
	}
	for _, dept := range globalDepartments {
		if dept == step.Department {
			return true
		}
	}
	return false
}

// Submit creates the clearance request for a student with one PENDING step per template entry.
func (s *ClearanceService) Submit(ctx context.Context, req dto.SubmitClearanceRequest, actor *models.JWTClaims) (*models.ClearanceRequest, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	switch actor.Role {
	case models.RoleStudent:
		if strings.TrimSpace(req.StudentID) == "" {
			req.StudentID = actor.UserID
		}
		if req.StudentID != actor.UserID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "students may only submit their own clearance")
		}
		if strings.TrimSpace(req.StudentName) == "" {
			req.StudentName = actor.FullName
		}
		if strings.TrimSpace(req.StudentDepartment) == "" {
			req.StudentDepartment = actor.Department
		}
	case models.RoleAdmin:
	default:
		return nil, appErrors.ErrForbidden
	}
	req.StudentID = strings.TrimSpace(req.StudentID)
	req.StudentName = strings.TrimSpace(req.StudentName)
	req.StudentDepartment = strings.TrimSpace(req.StudentDepartment)
	req.StudentRollNo = strings.TrimSpace(req.StudentRollNo)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid clearance submission")
	}

	if _, err := s.repo.GetByStudentID(ctx, req.StudentID); err == nil {
		s.metrics.RecordSubmission(clearanceOutcomeDuplicate)
		return nil, s.alreadyExists(req.StudentID)
	} else if !errors.Is(err, sql.ErrNoRows) {
		s.metrics.RecordSubmission(clearanceOutcomeError)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing clearance")
	}

	templates, err := s.templates.Resolve(ctx, req.StudentDepartment)
	if err != nil {
		s.metrics.RecordSubmission(clearanceOutcomeError)
		return nil, appErrors.FromError(err)
	}
	steps := make([]models.ClearanceStep, len(templates))
	for i, tpl := range templates {
		steps[i] = models.ClearanceStep{
			Department:   tpl.Department,
			ApproverRole: tpl.ApproverRole,
			Status:       models.StepStatusPending,
		}
	}
	request := &models.ClearanceRequest{
		StudentID:         req.StudentID,
		StudentName:       req.StudentName,
		StudentDepartment: req.StudentDepartment,
		StudentRollNo:     req.StudentRollNo,
		SubmissionDate:    s.now(),
		Steps:             steps,
	}
	if err := s.repo.Create(ctx, request); err != nil {
		if errors.Is(err, repository.ErrDuplicateStudent) {
			s.metrics.RecordSubmission(clearanceOutcomeDuplicate)
			return nil, s.alreadyExists(req.StudentID)
		}
		s.metrics.RecordSubmission(clearanceOutcomeError)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create clearance request")
	}
	request.Refresh()
	s.metrics.RecordSubmission(clearanceOutcomeSuccess)

	userID := actor.UserID
	emitAudit(ctx, s.audit, s.logger, &models.AuditLog{
		UserID:     &userID,
		Action:     models.AuditActionClearanceSubmit,
		Resource:   clearanceResourceName,
		ResourceID: &request.ID,
		NewValues:  marshalAuditValues(s.logger, request),
	})
	s.invalidate(ctx)
	s.logger.Info("clearance submitted",
		zap.String("request_id", request.ID),
		zap.String("student_id", request.StudentID),
		zap.Int("steps", len(request.Steps)),
	)
	return request, nil
}

// GetStudentStatus returns the student's request with derived values, or nil when none exists.
func (s *ClearanceService) GetStudentStatus(ctx context.Context, studentID string, actor *models.JWTClaims) (*models.ClearanceRequest, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	studentID = strings.TrimSpace(studentID)
	if studentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "studentId is required")
	}
	if actor.Role == models.RoleStudent && actor.UserID != studentID {
		return nil, appErrors.ErrForbidden
	}
	request, err := s.repo.GetByStudentID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load clearance status")
	}
	request.Refresh()
	return request, nil
}

// Get returns a single request by id; students may only read their own.
func (s *ClearanceService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.ClearanceRequest, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	request, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role == models.RoleStudent && request.StudentID != actor.UserID {
		return nil, appErrors.ErrForbidden
	}
	return request, nil
}

// PendingActions lists requests holding a PENDING step the actor is entitled to decide.
func (s *ClearanceService) PendingActions(ctx context.Context, actor *models.JWTClaims) ([]models.ClearanceRequest, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleFaculty && actor.Role != models.RoleAdmin {
		return nil, appErrors.ErrForbidden
	}
	filter := models.PendingActionFilter{
		ApproverRole: actor.Role,
		Department:   actor.Department,
	}
	if actor.Role == models.RoleAdmin {
		filter.GlobalDepartments = s.global
	}
	requests, err := s.repo.ListPendingForApprover(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending clearance actions")
	}
	for i := range requests {
		requests[i].Refresh()
	}
	return requests, nil
}

// List returns all requests for admins, filtered by derived status, department and search.
func (s *ClearanceService) List(ctx context.Context, query dto.ClearanceQuery, actor *models.JWTClaims) ([]models.ClearanceRequest, *models.Pagination, error) {
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleAdmin {
		return nil, nil, appErrors.ErrForbidden
	}
	status := models.ClearanceStatus(strings.ToUpper(strings.TrimSpace(string(query.Status))))
	if status != "" && !status.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "status must be one of PENDING, IN_PROGRESS, APPROVED, REJECTED")
	}
	page := query.Page
	if page <= 0 {
		page = 1
	}
	size := query.PageSize
	if size <= 0 {
		size = defaultClearancePageSize
	}
	if size > maxClearancePageSize {
		size = maxClearancePageSize
	}

	filter := models.ClearanceFilter{
		Status:     status,
		Department: strings.TrimSpace(query.Department),
		Search:     strings.TrimSpace(query.Search),
	}
	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count clearance requests")
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	offset := (page - 1) * size
	if offset >= total {
		return []models.ClearanceRequest{}, pagination, nil
	}

	filter.Limit = size
	filter.Offset = offset
	requests, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list clearance requests")
	}
	if requests == nil {
		requests = []models.ClearanceRequest{}
	}
	for i := range requests {
		requests[i].Refresh()
	}
	return requests, pagination, nil
}

// Summary counts requests per derived status, served from cache when available.
func (s *ClearanceService) Summary(ctx context.Context, actor *models.JWTClaims) (*models.ClearanceSummary, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleAdmin {
		return nil, appErrors.ErrForbidden
	}
	if s.cache != nil {
		var cached models.ClearanceSummary
		if hit, err := s.cache.Get(ctx, clearanceSummaryCacheKey, &cached); err == nil && hit {
			return &cached, nil
		}
	}
	requests, err := s.repo.List(ctx, models.ClearanceFilter{})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to summarise clearance requests")
	}
	summary := &models.ClearanceSummary{ComputedAt: s.now()}
	for _, request := range requests {
		summary.Add(models.DeriveOverallStatus(request.Steps))
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, clearanceSummaryCacheKey, summary, s.cacheTTL)
	}
	return summary, nil
}

// Action applies an approver's decision to a single PENDING step.
func (s *ClearanceService) Action(ctx context.Context, requestID, stepID string, req dto.ClearanceStepActionRequest, actor dto.StepActor) (*models.ClearanceRequest, error) {
	if actor.UserID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	req.Action = models.StepAction(strings.ToUpper(strings.TrimSpace(string(req.Action))))
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "action must be APPROVE or REJECT")
	}
	status, _ := req.Action.Status()

	request, err := s.load(ctx, requestID)
	if err != nil {
		return nil, err
	}
	step, ok := request.Step(stepID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "clearance step not found")
	}
	if !CanAct(actor, *step, s.global) {
		s.metrics.RecordStepAction(string(req.Action), clearanceOutcomeForbidden)
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not authorised to action this clearance step")
	}
	if step.Status.Decided() {
		s.metrics.RecordStepAction(string(req.Action), clearanceOutcomeConflict)
		return nil, alreadyActioned(step.Status)
	}

	decidedAt := s.now()
	updated, err := s.repo.DecideStep(ctx, repository.DecideStepParams{
		RequestID:    request.ID,
		StepID:       step.ID,
		Status:       status,
		ApproverID:   actor.UserID,
		ApproverName: actor.Name,
		DecidedAt:    decidedAt,
		Comments:     trimmedOrNil(req.Comments),
	})
	if err != nil {
		var decided *repository.StepDecidedError
		switch {
		case errors.As(err, &decided):
			s.metrics.RecordStepAction(string(req.Action), clearanceOutcomeConflict)
			return nil, alreadyActioned(decided.Current)
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "clearance step not found")
		}
		s.metrics.RecordStepAction(string(req.Action), clearanceOutcomeError)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to action clearance step")
	}
	updated.Refresh()
	s.metrics.RecordStepAction(string(req.Action), clearanceOutcomeSuccess)

	userID := actor.UserID
	emitAudit(ctx, s.audit, s.logger, &models.AuditLog{
		UserID:     &userID,
		Action:     models.AuditActionClearanceStep,
		Resource:   clearanceResourceName,
		ResourceID: &updated.ID,
		OldValues:  marshalAuditValues(s.logger, map[string]interface{}{"stepId": step.ID, "status": step.Status}),
		NewValues: marshalAuditValues(s.logger, map[string]interface{}{
			"stepId":        step.ID,
			"status":        status,
			"overallStatus": updated.OverallStatus,
			"comments":      req.Comments,
		}),
	})
	s.invalidate(ctx)
	s.notify(ctx, updated, step.Department, status)
	s.logger.Info("clearance step actioned",
		zap.String("request_id", updated.ID),
		zap.String("step_id", step.ID),
		zap.String("department", step.Department),
		zap.String("status", string(status)),
		zap.String("overall_status", string(updated.OverallStatus)),
	)
	return updated, nil
}

// Certificate renders the completion certificate for an APPROVED clearance.
func (s *ClearanceService) Certificate(ctx context.Context, studentID string, actor *models.JWTClaims) (*models.ClearanceRequest, []byte, error) {
	if s.certificate == nil {
		return nil, nil, appErrors.Clone(appErrors.ErrServiceDisabled, "clearance certificates are disabled")
	}
	if actor != nil && actor.Role == models.RoleFaculty {
		return nil, nil, appErrors.ErrForbidden
	}
	request, err := s.GetStudentStatus(ctx, studentID, actor)
	if err != nil {
		return nil, nil, err
	}
	if request == nil {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "clearance request not found")
	}
	if request.OverallStatus != models.ClearanceStatusApproved {
		return nil, nil, appErrors.WithDetails(
			appErrors.Clone(appErrors.ErrPreconditionFailed, "clearance is not fully approved"),
			map[string]interface{}{"overallStatus": request.OverallStatus, "progress": request.Progress},
		)
	}
	doc, err := s.certificate.Render(request, s.now())
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render clearance certificate")
	}
	return request, doc, nil
}

// History returns the audit trail of a request, newest first.
func (s *ClearanceService) History(ctx context.Context, id string, limit int, actor *models.JWTClaims) ([]models.AuditLog, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleAdmin {
		return nil, appErrors.ErrForbidden
	}
	if s.history == nil {
		return nil, appErrors.Clone(appErrors.ErrServiceDisabled, "clearance history is unavailable")
	}
	request, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	logs, err := s.history.ListByResource(ctx, clearanceResourceName, request.ID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load clearance history")
	}
	return logs, nil
}

func (s *ClearanceService) load(ctx context.Context, id string) (*models.ClearanceRequest, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "clearance request not found")
	}
	request, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "clearance request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load clearance request")
	}
	request.Refresh()
	return request, nil
}

func (s *ClearanceService) alreadyExists(studentID string) error {
	return appErrors.WithDetails(
		appErrors.Clone(appErrors.ErrAlreadyExists, "clearance request already submitted"),
		map[string]interface{}{"studentId": studentID},
	)
}

func (s *ClearanceService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Invalidate(ctx, clearanceCachePattern)
}

func (s *ClearanceService) notify(ctx context.Context, request *models.ClearanceRequest, department string, status models.StepStatus) {
	if s.notifier == nil {
		return
	}
	notification := models.Notification{
		UserID:    request.StudentID,
		Link:      clearanceNotificationLink,
		CreatedAt: s.now(),
	}
	switch {
	case status == models.StepStatusRejected:
		notification.Type = models.NotificationTypeWarning
		notification.Title = "Clearance step rejected"
		notification.Message = fmt.Sprintf("%s rejected your clearance request.", department)
	case request.OverallStatus == models.ClearanceStatusApproved:
		notification.Type = models.NotificationTypeSuccess
		notification.Title = "Clearance completed"
		notification.Message = "All departments have approved your clearance request."
	default:
		notification.Type = models.NotificationTypeInfo
		notification.Title = "Clearance step approved"
		notification.Message = fmt.Sprintf("%s approved your clearance request (%d%% complete).", department, request.Progress)
	}
	s.notifier.Notify(ctx, notification)
}

func alreadyActioned(current models.StepStatus) error {
	return appErrors.WithDetails(
		appErrors.Clone(appErrors.ErrAlreadyActioned, fmt.Sprintf("clearance step already %s", strings.ToLower(string(current)))),
		map[string]interface{}{"currentStatus": current},
	)
}

func marshalAuditValues(logger *zap.Logger, value interface{}) []byte {
	payload, err := json.Marshal(value)
	if err != nil {
		logger.Warn("failed to encode audit values", zap.Error(err))
		return nil
	}
	return payload
}

func trimmedOrNil(value string) *string {
	v := strings.TrimSpace(value)
	if v == "" {
		return nil
	}
	return &v
}
