package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/campusconnect-api/internal/dto"
	"github.com/noah-isme/campusconnect-api/internal/handler"
	"github.com/noah-isme/campusconnect-api/internal/models"
	"github.com/noah-isme/campusconnect-api/internal/service"
	"github.com/noah-isme/campusconnect-api/pkg/config"
)

type clearanceStub struct{}

func (clearanceStub) Submit(ctx context.Context, req dto.SubmitClearanceRequest, actor *models.JWTClaims) (*models.ClearanceRequest, error) {
	return &models.ClearanceRequest{ID: "req-1", StudentID: actor.UserID}, nil
}

func (clearanceStub) GetStudentStatus(ctx context.Context, studentID string, actor *models.JWTClaims) (*models.ClearanceRequest, error) {
	return &models.ClearanceRequest{ID: "req-1", StudentID: studentID}, nil
}

func (clearanceStub) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.ClearanceRequest, error) {
	return &models.ClearanceRequest{ID: id}, nil
}

func (clearanceStub) PendingActions(ctx context.Context, actor *models.JWTClaims) ([]models.ClearanceRequest, error) {
	return nil, nil
}

func (clearanceStub) List(ctx context.Context, query dto.ClearanceQuery, actor *models.JWTClaims) ([]models.ClearanceRequest, *models.Pagination, error) {
	return nil, &models.Pagination{Page: 1, PageSize: 20}, nil
}

func (clearanceStub) Summary(ctx context.Context, actor *models.JWTClaims) (*models.ClearanceSummary, error) {
	return &models.ClearanceSummary{}, nil
}

func (clearanceStub) Action(ctx context.Context, requestID, stepID string, req dto.ClearanceStepActionRequest, actor dto.StepActor) (*models.ClearanceRequest, error) {
	return &models.ClearanceRequest{ID: requestID}, nil
}

func (clearanceStub) Certificate(ctx context.Context, studentID string, actor *models.JWTClaims) (*models.ClearanceRequest, []byte, error) {
	return &models.ClearanceRequest{StudentID: studentID}, []byte("%PDF"), nil
}

func (clearanceStub) History(ctx context.Context, id string, limit int, actor *models.JWTClaims) ([]models.AuditLog, error) {
	return []models.AuditLog{}, nil
}

type templateStub struct{}

func (templateStub) List(ctx context.Context) ([]dto.ClearanceTemplateItem, error) {
	return []dto.ClearanceTemplateItem{}, nil
}

func (templateStub) Get(ctx context.Context, department string) (*dto.ClearanceTemplateItem, error) {
	return &dto.ClearanceTemplateItem{Department: department}, nil
}

func (templateStub) Update(ctx context.Context, department string, req dto.UpdateClearanceTemplateRequest, actor *models.JWTClaims) (*dto.ClearanceTemplateItem, error) {
	return &dto.ClearanceTemplateItem{Department: department}, nil
}

func newTestServer(t *testing.T) (http.Handler, *service.TokenService) {
	t.Helper()
	cfg := &config.Config{Env: config.EnvDevelopment, APIPrefix: "/api/v1"}
	tokens := service.NewTokenService(service.TokenConfig{Secret: "secret", Expiry: time.Hour})
	metrics := service.NewMetricsService()
	engine := New(cfg, zap.NewNop(), Dependencies{
		Tokens:    tokens,
		Metrics:   metrics,
		Clearance: handler.NewClearanceHandler(clearanceStub{}),
		Templates: handler.NewClearanceTemplateHandler(templateStub{}),
	})
	return engine, tokens
}

func bearer(t *testing.T, tokens *service.TokenService, userID string, role models.UserRole, department string) string {
	t.Helper()
	token, _, err := tokens.Issue(userID, role, department, "", "")
	require.NoError(t, err)
	return "Bearer " + token
}

func TestRouterGuards(t *testing.T) {
	engine, tokens := newTestServer(t)
	student := bearer(t, tokens, "S42", models.RoleStudent, "Computer Science")
	faculty := bearer(t, tokens, "F1", models.RoleFaculty, "Library")
	admin := bearer(t, tokens, "A1", models.RoleAdmin, "Finance")

	cases := []struct {
		method string
		path   string
		auth   string
		body   string
		status int
	}{
		{http.MethodGet, "/api/v1/clearances/me", "", "", http.StatusUnauthorized},
		{http.MethodGet, "/api/v1/clearances/me", student, "", http.StatusOK},
		{http.MethodGet, "/api/v1/clearances/me", faculty, "", http.StatusForbidden},
		{http.MethodPost, "/api/v1/clearances", student, "", http.StatusCreated},
		{http.MethodPost, "/api/v1/clearances", faculty, "", http.StatusForbidden},
		{http.MethodGet, "/api/v1/clearances", admin, "", http.StatusOK},
		{http.MethodGet, "/api/v1/clearances", student, "", http.StatusForbidden},
		{http.MethodGet, "/api/v1/clearances/pending", faculty, "", http.StatusOK},
		{http.MethodGet, "/api/v1/clearances/pending", student, "", http.StatusForbidden},
		{http.MethodGet, "/api/v1/clearances/summary", admin, "", http.StatusOK},
		{http.MethodGet, "/api/v1/clearances/students/S42", student, "", http.StatusOK},
		{http.MethodGet, "/api/v1/clearances/students/S43", student, "", http.StatusForbidden},
		{http.MethodGet, "/api/v1/clearances/students/S43", faculty, "", http.StatusOK},
		{http.MethodGet, "/api/v1/clearances/students/S42/certificate", student, "", http.StatusOK},
		{http.MethodGet, "/api/v1/clearances/students/S42/certificate", faculty, "", http.StatusForbidden},
		{http.MethodGet, "/api/v1/clearances/req-1", student, "", http.StatusOK},
		{http.MethodGet, "/api/v1/clearances/req-1/history", admin, "", http.StatusOK},
		{http.MethodGet, "/api/v1/clearances/req-1/history", faculty, "", http.StatusForbidden},
		{http.MethodPost, "/api/v1/clearances/req-1/steps/step-1/action", faculty, `{"action":"APPROVE"}`, http.StatusOK},
		{http.MethodPost, "/api/v1/clearances/req-1/steps/step-1/action", student, `{"action":"APPROVE"}`, http.StatusForbidden},
		{http.MethodGet, "/api/v1/clearances/templates", admin, "", http.StatusOK},
		{http.MethodGet, "/api/v1/clearances/templates/Law", faculty, "", http.StatusForbidden},
		{http.MethodPut, "/api/v1/clearances/templates/Law", admin, `{"steps":[{"department":"Library","approverRole":"faculty"}]}`, http.StatusOK},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body))
		req.Header.Set("Content-Type", "application/json")
		if tc.auth != "" {
			req.Header.Set("Authorization", tc.auth)
		}
		engine.ServeHTTP(w, req)
		assert.Equal(t, tc.status, w.Code, "%s %s", tc.method, tc.path)
	}
}

func TestRouterOperationalEndpoints(t *testing.T) {
	engine, _ := newTestServer(t)

	for _, path := range []string{"/health", "/ready", "/metrics"} {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"), path)
	}
}
