package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campusconnect-api/internal/dto"
	"github.com/noah-isme/campusconnect-api/internal/middleware"
	"github.com/noah-isme/campusconnect-api/internal/models"
	appErrors "github.com/noah-isme/campusconnect-api/pkg/errors"
)

type clearanceServiceMock struct {
	request     *models.ClearanceRequest
	list        []models.ClearanceRequest
	pagination  *models.Pagination
	summary     *models.ClearanceSummary
	certificate []byte
	history     []models.AuditLog
	err         error

	lastQuery   dto.ClearanceQuery
	lastAction  dto.ClearanceStepActionRequest
	lastActor   dto.StepActor
	lastStudent string
	lastIDs     [2]string
}

func (m *clearanceServiceMock) Submit(ctx context.Context, req dto.SubmitClearanceRequest, actor *models.JWTClaims) (*models.ClearanceRequest, error) {
	m.lastStudent = req.StudentID
	return m.request, m.err
}

func (m *clearanceServiceMock) GetStudentStatus(ctx context.Context, studentID string, actor *models.JWTClaims) (*models.ClearanceRequest, error) {
	m.lastStudent = studentID
	return m.request, m.err
}

func (m *clearanceServiceMock) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.ClearanceRequest, error) {
	m.lastIDs[0] = id
	return m.request, m.err
}

func (m *clearanceServiceMock) PendingActions(ctx context.Context, actor *models.JWTClaims) ([]models.ClearanceRequest, error) {
	return m.list, m.err
}

func (m *clearanceServiceMock) List(ctx context.Context, query dto.ClearanceQuery, actor *models.JWTClaims) ([]models.ClearanceRequest, *models.Pagination, error) {
	m.lastQuery = query
	return m.list, m.pagination, m.err
}

func (m *clearanceServiceMock) Summary(ctx context.Context, actor *models.JWTClaims) (*models.ClearanceSummary, error) {
	return m.summary, m.err
}

func (m *clearanceServiceMock) Action(ctx context.Context, requestID, stepID string, req dto.ClearanceStepActionRequest, actor dto.StepActor) (*models.ClearanceRequest, error) {
	m.lastIDs = [2]string{requestID, stepID}
	m.lastAction = req
	m.lastActor = actor
	return m.request, m.err
}

func (m *clearanceServiceMock) Certificate(ctx context.Context, studentID string, actor *models.JWTClaims) (*models.ClearanceRequest, []byte, error) {
	m.lastStudent = studentID
	return m.request, m.certificate, m.err
}

func (m *clearanceServiceMock) History(ctx context.Context, id string, limit int, actor *models.JWTClaims) ([]models.AuditLog, error) {
	m.lastIDs[0] = id
	return m.history, m.err
}

func newClearanceContext(method, target string, body []byte, claims *models.JWTClaims) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]json.RawMessage {
	t.Helper()
	var envelope map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope
}

var facultyClaims = &models.JWTClaims{UserID: "F1", Role: models.RoleFaculty, Department: "Library", FullName: "Dr. Rao"}

func TestClearanceHandlerSubmitCreated(t *testing.T) {
	mock := &clearanceServiceMock{request: &models.ClearanceRequest{ID: "req-1", StudentID: "S42", OverallStatus: models.ClearanceStatusPending}}
	body, _ := json.Marshal(dto.SubmitClearanceRequest{StudentID: "S42", StudentName: "Ada", StudentDepartment: "Computer Science", StudentRollNo: "CS-042"})
	c, w := newClearanceContext(http.MethodPost, "/clearances", body, &models.JWTClaims{UserID: "S42", Role: models.RoleStudent})

	NewClearanceHandler(mock).Submit(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "S42", mock.lastStudent)
	assert.Contains(t, w.Body.String(), `"requestId":"req-1"`)
}

func TestClearanceHandlerSubmitConflict(t *testing.T) {
	mock := &clearanceServiceMock{err: appErrors.Clone(appErrors.ErrAlreadyExists, "clearance request already submitted")}
	c, w := newClearanceContext(http.MethodPost, "/clearances", []byte(`{"studentId":"S42"}`), &models.JWTClaims{UserID: "S42", Role: models.RoleStudent})

	NewClearanceHandler(mock).Submit(c)

	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "ALREADY_EXISTS")
}

func TestClearanceHandlerSubmitRejectsMalformedBody(t *testing.T) {
	c, w := newClearanceContext(http.MethodPost, "/clearances", []byte(`{"studentId":`), &models.JWTClaims{UserID: "S42", Role: models.RoleStudent})

	NewClearanceHandler(&clearanceServiceMock{}).Submit(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestClearanceHandlerMeReturnsNullWithoutRequest(t *testing.T) {
	mock := &clearanceServiceMock{}
	c, w := newClearanceContext(http.MethodGet, "/clearances/me", nil, &models.JWTClaims{UserID: "S42", Role: models.RoleStudent})

	NewClearanceHandler(mock).Me(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "S42", mock.lastStudent)
	assert.Equal(t, "null", string(decodeEnvelope(t, w)["data"]))
}

func TestClearanceHandlerStudentStatusUsesPathParam(t *testing.T) {
	mock := &clearanceServiceMock{request: &models.ClearanceRequest{ID: "req-1", StudentID: "S42", Progress: 33, OverallStatus: models.ClearanceStatusInProgress}}
	c, w := newClearanceContext(http.MethodGet, "/clearances/students/S42", nil, facultyClaims)
	c.Params = gin.Params{{Key: "studentId", Value: "S42"}}

	NewClearanceHandler(mock).StudentStatus(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "S42", mock.lastStudent)
	assert.Contains(t, w.Body.String(), `"overallStatus":"IN_PROGRESS"`)
	assert.Contains(t, w.Body.String(), `"progress":33`)
}

func TestClearanceHandlerListParsesQuery(t *testing.T) {
	mock := &clearanceServiceMock{list: []models.ClearanceRequest{}, pagination: &models.Pagination{Page: 2, PageSize: 10, TotalCount: 12}}
	c, w := newClearanceContext(http.MethodGet, "/clearances?status=rejected&department=Physics&search=ada&page=2&page_size=10", nil,
		&models.JWTClaims{UserID: "A1", Role: models.RoleAdmin})

	NewClearanceHandler(mock).List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.ClearanceStatusRejected, mock.lastQuery.Status)
	assert.Equal(t, "Physics", mock.lastQuery.Department)
	assert.Equal(t, "ada", mock.lastQuery.Search)
	assert.Equal(t, 2, mock.lastQuery.Page)
	assert.Equal(t, 10, mock.lastQuery.PageSize)
	assert.Contains(t, w.Body.String(), `"total_count":12`)
}

func TestClearanceHandlerActionPassesActor(t *testing.T) {
	mock := &clearanceServiceMock{request: &models.ClearanceRequest{ID: "req-1"}}
	c, w := newClearanceContext(http.MethodPost, "/clearances/req-1/steps/step-1/action", []byte(`{"action":"APPROVE","comments":"ok"}`), facultyClaims)
	c.Params = gin.Params{{Key: "id", Value: "req-1"}, {Key: "stepId", Value: "step-1"}}

	NewClearanceHandler(mock).Action(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, [2]string{"req-1", "step-1"}, mock.lastIDs)
	assert.Equal(t, models.StepActionApprove, mock.lastAction.Action)
	assert.Equal(t, dto.StepActor{UserID: "F1", Name: "Dr. Rao", Role: models.RoleFaculty, Department: "Library"}, mock.lastActor)
}

func TestClearanceHandlerActionErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"already actioned", appErrors.WithDetails(appErrors.ErrAlreadyActioned, map[string]interface{}{"currentStatus": "APPROVED"}), http.StatusConflict, "ALREADY_ACTIONED"},
		{"forbidden", appErrors.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
		{"not found", appErrors.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, w := newClearanceContext(http.MethodPost, "/clearances/req-1/steps/step-1/action", []byte(`{"action":"REJECT"}`), facultyClaims)
			NewClearanceHandler(&clearanceServiceMock{err: tc.err}).Action(c)
			require.Equal(t, tc.status, w.Code)
			assert.Contains(t, w.Body.String(), tc.code)
		})
	}

	c, w := newClearanceContext(http.MethodPost, "/clearances/req-1/steps/step-1/action", []byte(`{"action":"APPROVE"}`), facultyClaims)
	NewClearanceHandler(&clearanceServiceMock{err: appErrors.WithDetails(appErrors.ErrAlreadyActioned, map[string]interface{}{"currentStatus": "APPROVED"})}).Action(c)
	assert.Contains(t, w.Body.String(), `"currentStatus":"APPROVED"`)
}

func TestClearanceHandlerRequiresClaims(t *testing.T) {
	h := NewClearanceHandler(&clearanceServiceMock{})
	for name, fn := range map[string]gin.HandlerFunc{
		"submit":  h.Submit,
		"me":      h.Me,
		"pending": h.Pending,
		"list":    h.List,
		"summary": h.Summary,
		"get":     h.Get,
		"action":  h.Action,
		"cert":    h.Certificate,
		"history": h.History,
	} {
		c, w := newClearanceContext(http.MethodGet, "/clearances", nil, nil)
		fn(c)
		assert.Equal(t, http.StatusUnauthorized, w.Code, name)
	}
}

func TestClearanceHandlerCertificate(t *testing.T) {
	mock := &clearanceServiceMock{request: &models.ClearanceRequest{ID: "req-1", StudentID: "S42"}, certificate: []byte("%PDF-1.3")}
	c, w := newClearanceContext(http.MethodGet, "/clearances/students/S42/certificate", nil, &models.JWTClaims{UserID: "S42", Role: models.RoleStudent})
	c.Params = gin.Params{{Key: "studentId", Value: "S42"}}

	NewClearanceHandler(mock).Certificate(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="clearance-S42.pdf"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "%PDF-1.3", w.Body.String())

	c, w = newClearanceContext(http.MethodGet, "/clearances/students/S42/certificate", nil, &models.JWTClaims{UserID: "S42", Role: models.RoleStudent})
	NewClearanceHandler(&clearanceServiceMock{err: appErrors.ErrPreconditionFailed}).Certificate(c)
	assert.Equal(t, http.StatusPreconditionFailed, w.Code)
}

func TestClearanceHandlerSummaryAndPending(t *testing.T) {
	mock := &clearanceServiceMock{
		summary: &models.ClearanceSummary{Total: 3, Pending: 1, InProgress: 1, Rejected: 1},
		list:    []models.ClearanceRequest{{ID: "req-1"}, {ID: "req-2"}},
	}
	h := NewClearanceHandler(mock)

	c, w := newClearanceContext(http.MethodGet, "/clearances/summary", nil, &models.JWTClaims{UserID: "A1", Role: models.RoleAdmin})
	h.Summary(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"inProgress":1`)

	c, w = newClearanceContext(http.MethodGet, "/clearances/pending", nil, facultyClaims)
	h.Pending(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":2`)
}

func TestClearanceHandlerHistory(t *testing.T) {
	mock := &clearanceServiceMock{history: []models.AuditLog{{ID: "log-1", Action: models.AuditActionClearanceStep}}}
	c, w := newClearanceContext(http.MethodGet, "/clearances/req-1/history?limit=5", nil, &models.JWTClaims{UserID: "A1", Role: models.RoleAdmin})
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}

	NewClearanceHandler(mock).History(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "req-1", mock.lastIDs[0])
	assert.Contains(t, w.Body.String(), "CLEARANCE_STEP_ACTION")
}
