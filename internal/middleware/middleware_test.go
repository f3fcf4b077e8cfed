package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/uni-enrollment-api/pkg/errors"
)

type stubValidator map[string]*models.JWTClaims

func (s stubValidator) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := s[token]; ok {
		return claims, nil
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
}

func newRouter(validator TokenValidator, guard gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/students/:id/enrollments", JWT(validator), guard, func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func call(r *gin.Engine, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAndRBAC(t *testing.T) {
	validator := stubValidator{
		"admin":   {UserID: "u1", Role: models.RoleAdmin},
		"student": {UserID: "u2", Role: models.RoleStudent, SubjectID: "s1"},
		"teacher": {UserID: "u3", Role: models.RoleTeacher, SubjectID: "t1"},
	}
	r := newRouter(validator, RBAC(string(models.RoleAdmin), Self))

	tests := []struct {
		name   string
		path   string
		token  string
		status int
	}{
		{name: "no token", path: "/students/s1/enrollments", status: http.StatusUnauthorized},
		{name: "bad token", path: "/students/s1/enrollments", token: "forged", status: http.StatusUnauthorized},
		{name: "admin", path: "/students/s9/enrollments", token: "admin", status: http.StatusOK},
		{name: "student self", path: "/students/s1/enrollments", token: "student", status: http.StatusOK},
		{name: "student other", path: "/students/s2/enrollments", token: "student", status: http.StatusForbidden},
		{name: "teacher", path: "/students/s1/enrollments", token: "teacher", status: http.StatusForbidden},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := call(r, tc.path, tc.token)
			assert.Equal(t, tc.status, w.Code)
		})
	}
}

func TestJWTRejectsMalformedHeader(t *testing.T) {
	r := newRouter(stubValidator{}, RequireRoles(models.RoleAdmin))
	req := httptest.NewRequest(http.MethodGet, "/students/s1/enrollments", nil)
	req.Header.Set("Authorization", "Token abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
	var body map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "UNAUTHORIZED", body["error"]["code"])
}

type recordingObserver struct {
	mu    sync.Mutex
	paths []string
}

func (o *recordingObserver) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.paths = append(o.paths, method+" "+path)
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	observer := &recordingObserver{}
	r := gin.New()
	r.Use(Metrics(observer))
	r.GET("/courses/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/courses/abc", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, []string{"GET /courses/:id", "GET unmatched"}, observer.paths)
}
