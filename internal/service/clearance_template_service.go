package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/campusconnect-api/internal/dto"
	"github.com/noah-isme/campusconnect-api/internal/models"
	appErrors "github.com/noah-isme/campusconnect-api/pkg/errors"
)

// HomeDepartmentToken stands for the student's own department in a step template.
const HomeDepartmentToken = "HOD"

const (
	templateSourceDefault  = "default"
	templateSourceOverride = "override"
)

type templateConfigurationRepository interface {
	Get(ctx context.Context, key string) (*models.Configuration, error)
	ListByPrefix(ctx context.Context, prefix string) ([]models.Configuration, error)
	Upsert(ctx context.Context, cfg *models.Configuration) error
}

// ParseStepTemplate decodes "Department:role,..." into template entries.
func ParseStepTemplate(raw string) ([]models.StepTemplate, error) {
	parts := strings.Split(raw, ",")
	steps := make([]models.StepTemplate, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		dept, role, ok := strings.Cut(part, ":")
		dept = strings.TrimSpace(dept)
		role = strings.ToLower(strings.TrimSpace(role))
		if !ok || dept == "" {
			return nil, fmt.Errorf("invalid step template entry %q", part)
		}
		approverRole := models.UserRole(role)
		if approverRole != models.RoleFaculty && approverRole != models.RoleAdmin {
			return nil, fmt.Errorf("invalid approver role %q for %s", role, dept)
		}
		key := strings.ToLower(dept)
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("duplicate department %q in step template", dept)
		}
		seen[key] = struct{}{}
		steps = append(steps, models.StepTemplate{Department: dept, ApproverRole: approverRole})
	}
	if len(steps) == 0 {
		return nil, errors.New("step template is empty")
	}
	return steps, nil
}

// FormatStepTemplate is the inverse of ParseStepTemplate.
func FormatStepTemplate(steps []models.StepTemplate) string {
	parts := make([]string, len(steps))
	for i, step := range steps {
		parts[i] = step.Department + ":" + string(step.ApproverRole)
	}
	return strings.Join(parts, ",")
}

// ExpandStepTemplate resolves the home-department token for a concrete student department.
// When the student's department already owns a step in the chain, the home-department step
// is dropped so each department signs off once.
func ExpandStepTemplate(steps []models.StepTemplate, studentDepartment string) []models.StepTemplate {
	named := make(map[string]struct{}, len(steps))
	for _, step := range steps {
		if !strings.EqualFold(step.Department, HomeDepartmentToken) {
			named[strings.ToLower(step.Department)] = struct{}{}
		}
	}
	expanded := make([]models.StepTemplate, 0, len(steps))
	for _, step := range steps {
		if strings.EqualFold(step.Department, HomeDepartmentToken) {
			if _, taken := named[strings.ToLower(studentDepartment)]; taken {
				continue
			}
			step.Department = studentDepartment
		}
		expanded = append(expanded, step)
	}
	return expanded
}

// ClearanceTemplateService resolves approval chains per student department, honouring
// overrides stored in the configurations table over the configured default chain.
type ClearanceTemplateService struct {
	repo      templateConfigurationRepository
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
	fallback  []models.StepTemplate
}

// NewClearanceTemplateService constructs the service. defaultTemplate uses the ParseStepTemplate format.
func NewClearanceTemplateService(repo templateConfigurationRepository, audit auditLogger, validate *validator.Validate, logger *zap.Logger, defaultTemplate string) (*ClearanceTemplateService, error) {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	fallback, err := ParseStepTemplate(defaultTemplate)
	if err != nil {
		return nil, fmt.Errorf("default clearance template: %w", err)
	}
	return &ClearanceTemplateService{
		repo:      repo,
		audit:     audit,
		validator: validate,
		logger:    logger,
		fallback:  fallback,
	}, nil
}

// Resolve returns the concrete steps a student of department must pass.
func (s *ClearanceTemplateService) Resolve(ctx context.Context, department string) ([]models.StepTemplate, error) {
	steps, _, err := s.lookup(ctx, department)
	if err != nil {
		return nil, err
	}
	return ExpandStepTemplate(steps, department), nil
}

// Get returns the unexpanded chain configured for a department.
func (s *ClearanceTemplateService) Get(ctx context.Context, department string) (*dto.ClearanceTemplateItem, error) {
	department = strings.TrimSpace(department)
	if department == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "department is required")
	}
	steps, source, err := s.lookup(ctx, department)
	if err != nil {
		return nil, err
	}
	return &dto.ClearanceTemplateItem{Department: department, Steps: steps, Source: source}, nil
}

// List returns the default chain followed by every department override.
func (s *ClearanceTemplateService) List(ctx context.Context) ([]dto.ClearanceTemplateItem, error) {
	items := []dto.ClearanceTemplateItem{{Department: "*", Steps: s.fallback, Source: templateSourceDefault}}
	if s.repo == nil {
		return items, nil
	}
	rows, err := s.repo.ListByPrefix(ctx, models.ClearanceTemplateKeyPrefix)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list clearance templates")
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Key < rows[j].Key })
	for _, row := range rows {
		steps, err := ParseStepTemplate(row.Value)
		if err != nil {
			s.logger.Warn("skipping malformed clearance template", zap.String("key", row.Key), zap.Error(err))
			continue
		}
		department := strings.TrimPrefix(row.Key, models.ClearanceTemplateKeyPrefix)
		if row.Description != nil && *row.Description != "" {
			department = *row.Description
		}
		items = append(items, dto.ClearanceTemplateItem{Department: department, Steps: steps, Source: templateSourceOverride})
	}
	return items, nil
}

// Update stores a department override. Requests already submitted keep their steps.
func (s *ClearanceTemplateService) Update(ctx context.Context, department string, req dto.UpdateClearanceTemplateRequest, actor *models.JWTClaims) (*dto.ClearanceTemplateItem, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleAdmin {
		return nil, appErrors.ErrForbidden
	}
	department = strings.TrimSpace(department)
	if department == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "department is required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid clearance template payload")
	}
	raw := make([]models.StepTemplate, len(req.Steps))
	for i, step := range req.Steps {
		raw[i] = models.StepTemplate{Department: strings.TrimSpace(step.Department), ApproverRole: step.ApproverRole}
	}
	steps, err := ParseStepTemplate(FormatStepTemplate(raw))
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if s.repo == nil {
		return nil, appErrors.Clone(appErrors.ErrServiceDisabled, "clearance template storage not configured")
	}

	key := models.ClearanceTemplateKey(department)
	value := FormatStepTemplate(steps)
	userID := actor.UserID
	cfg := &models.Configuration{
		Key:         key,
		Value:       value,
		Type:        models.ConfigurationTypeStepTemplate,
		Description: &department,
		UpdatedBy:   &userID,
	}
	if err := s.repo.Upsert(ctx, cfg); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update clearance template")
	}
	emitAudit(ctx, s.audit, s.logger, &models.AuditLog{
		UserID:     &userID,
		Action:     models.AuditActionTemplateUpdate,
		Resource:   "clearance_template",
		ResourceID: &key,
		NewValues:  []byte(fmt.Sprintf(`{"value":%q}`, value)),
	})
	return &dto.ClearanceTemplateItem{Department: department, Steps: steps, Source: templateSourceOverride}, nil
}

func (s *ClearanceTemplateService) lookup(ctx context.Context, department string) ([]models.StepTemplate, string, error) {
	if s.repo == nil || strings.TrimSpace(department) == "" {
		return s.fallback, templateSourceDefault, nil
	}
	cfg, err := s.repo.Get(ctx, models.ClearanceTemplateKey(department))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return s.fallback, templateSourceDefault, nil
		}
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load clearance template")
	}
	steps, err := ParseStepTemplate(cfg.Value)
	if err != nil {
		s.logger.Warn("malformed clearance template, using default", zap.String("key", cfg.Key), zap.Error(err))
		return s.fallback, templateSourceDefault, nil
	}
	return steps, templateSourceOverride, nil
}
