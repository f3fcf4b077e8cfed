package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/uni-enrollment-api/internal/handler"
	"github.com/noah-isme/uni-enrollment-api/internal/models"
	"github.com/noah-isme/uni-enrollment-api/internal/repository/memory"
	"github.com/noah-isme/uni-enrollment-api/internal/service"
	"github.com/noah-isme/uni-enrollment-api/pkg/config"
)

type harness struct {
	engine *gin.Engine
	auth   *service.AuthService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.NewStore()
	store.AddStudent(models.Student{ID: "s1", NIM: "2024001", FullName: "Ana Torres", Active: true})
	store.AddStudent(models.Student{ID: "s2", NIM: "2024002", FullName: "Luis Vega", Active: true})
	store.AddTeacher(models.Teacher{ID: "t1", FullName: "Prof. Ruiz", Active: true})

	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	require.NoError(t, err)
	users := memory.NewUserRepository()
	users.Add(models.User{ID: "u-admin", Email: "admin@campus.edu", PasswordHash: string(hash), FullName: "Admin", Role: models.RoleAdmin, Active: true})

	cfg := &config.Config{Env: config.EnvDevelopment, APIPrefix: "/api/v1"}
	metrics := service.NewMetricsService()
	auth := service.NewAuthService(users, nil, nil, service.AuthConfig{AccessTokenSecret: "router-secret", AccessTokenExpiry: time.Hour})
	catalog := service.NewCatalogService(store, nil, metrics, nil, nil, time.Minute)
	enrollments := service.NewEnrollmentService(store, nil, metrics, nil, nil, service.EnrollmentConfig{})

	engine := New(cfg, zap.NewNop(), auth, metrics, Handlers{
		Auth:        handler.NewAuthHandler(auth),
		Courses:     handler.NewCourseHandler(catalog, service.NewExportService(store, nil, nil, nil)),
		Enrollments: handler.NewEnrollmentHandler(enrollments),
		Metrics:     handler.NewMetricsHandler(metrics, nil),
	})
	return &harness{engine: engine, auth: auth}
}

func (h *harness) token(t *testing.T, role models.UserRole, subject string) string {
	t.Helper()
	user := &models.User{ID: "u-" + string(role), Role: role}
	if subject != "" {
		user.SubjectID = &subject
	}
	token, err := h.auth.IssueToken(user, time.Now())
	require.NoError(t, err)
	return token
}

func (h *harness) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, map[string]json.RawMessage) {
	t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(t, err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.engine.ServeHTTP(w, req)

	var envelope map[string]json.RawMessage
	_ = json.Unmarshal(w.Body.Bytes(), &envelope)
	return w, envelope
}

func idOf(t *testing.T, envelope map[string]json.RawMessage) string {
	t.Helper()
	var data struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(envelope["data"], &data))
	return data.ID
}

func TestLoginAndMe(t *testing.T) {
	h := newHarness(t)

	w, env := h.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "admin@campus.edu", "password": "secret123"})
	require.Equal(t, http.StatusOK, w.Code)
	var login models.LoginResponse
	require.NoError(t, json.Unmarshal(env["data"], &login))

	w, _ = h.do(t, http.MethodGet, "/api/v1/auth/me", login.AccessToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = h.do(t, http.MethodGet, "/api/v1/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdmissionFlowThroughRouter(t *testing.T) {
	h := newHarness(t)
	admin := h.token(t, models.RoleAdmin, "")
	teacher := h.token(t, models.RoleTeacher, "t1")
	ana := h.token(t, models.RoleStudent, "s1")

	w, _ := h.do(t, http.MethodPost, "/api/v1/courses", ana, map[string]interface{}{"code": "MAT101", "name": "Calculus I", "credits": 4})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, env := h.do(t, http.MethodPost, "/api/v1/courses", admin, map[string]interface{}{"code": "MAT101", "name": "Calculus I", "credits": 4})
	require.Equal(t, http.StatusCreated, w.Code)
	mat101 := idOf(t, env)
	w, env = h.do(t, http.MethodPost, "/api/v1/courses", admin, map[string]interface{}{"code": "MAT201", "name": "Calculus II", "credits": 4})
	require.Equal(t, http.StatusCreated, w.Code)
	mat201 := idOf(t, env)

	w, _ = h.do(t, http.MethodPost, "/api/v1/courses/"+mat201+"/prerequisites/"+mat101, admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = h.do(t, http.MethodPost, "/api/v1/courses/"+mat101+"/prerequisites/"+mat201, admin, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = h.do(t, http.MethodGet, "/api/v1/courses/code/MAT101", ana, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = h.do(t, http.MethodPost, "/api/v1/enrollments", ana, map[string]string{"course_id": mat201, "period": "2024-1"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w, env = h.do(t, http.MethodPost, "/api/v1/enrollments", ana, map[string]string{"course_id": mat101, "period": "2024-1"})
	require.Equal(t, http.StatusCreated, w.Code)
	enrollment := idOf(t, env)

	w, _ = h.do(t, http.MethodPut, "/api/v1/enrollments/"+enrollment+"/status", ana, map[string]string{"status": "APPROVED"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, _ = h.do(t, http.MethodPut, "/api/v1/enrollments/"+enrollment+"/status", teacher, map[string]string{"status": "APPROVED"})
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = h.do(t, http.MethodPost, "/api/v1/enrollments", ana, map[string]string{"course_id": mat201, "period": "2024-2"})
	assert.Equal(t, http.StatusCreated, w.Code)

	w, _ = h.do(t, http.MethodGet, "/api/v1/students/s1/enrollments", ana, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = h.do(t, http.MethodGet, "/api/v1/students/s2/enrollments", ana, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, _ = h.do(t, http.MethodGet, "/api/v1/enrollments", ana, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = h.do(t, http.MethodGet, "/api/v1/courses/"+mat101+"/roster?format=pdf", teacher, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
}

func TestOperationalEndpoints(t *testing.T) {
	h := newHarness(t)

	w, _ := h.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = h.do(t, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	_, _ = h.do(t, http.MethodGet, "/api/v1/courses", h.token(t, models.RoleAdmin, ""), nil)
	w, _ = h.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `http_requests_total{method="GET",path="/api/v1/courses",status="200"} 1`)

	w, _ = h.do(t, http.MethodGet, "/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
