package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-enrollment-api/internal/middleware"
	"github.com/noah-isme/uni-enrollment-api/internal/models"
	"github.com/noah-isme/uni-enrollment-api/internal/repository/memory"
	"github.com/noah-isme/uni-enrollment-api/internal/service"
)

type env struct {
	store       *memory.Store
	catalog     *service.CatalogService
	enrollments *service.EnrollmentService
	courses     *CourseHandler
	enroll      *EnrollmentHandler
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := memory.NewStore()
	store.AddStudent(models.Student{ID: "s1", NIM: "2024001", FullName: "Ana Torres", Active: true})
	store.AddStudent(models.Student{ID: "s2", NIM: "2024002", FullName: "Luis Vega", Active: true})
	store.AddTeacher(models.Teacher{ID: "t1", FullName: "Prof. Ruiz", Active: true})

	catalog := service.NewCatalogService(store, nil, nil, nil, nil, time.Minute)
	enrollments := service.NewEnrollmentService(store, nil, nil, nil, nil, service.EnrollmentConfig{})
	return &env{
		store:       store,
		catalog:     catalog,
		enrollments: enrollments,
		courses:     NewCourseHandler(catalog, service.NewExportService(store, nil, nil, nil)),
		enroll:      NewEnrollmentHandler(enrollments),
	}
}

type request struct {
	method string
	body   interface{}
	params gin.Params
	query  string
	claims *models.JWTClaims
}

func serve(t *testing.T, h gin.HandlerFunc, req request) *httptest.ResponseRecorder {
	t.Helper()
	var payload []byte
	if req.body != nil {
		var err error
		payload, err = json.Marshal(req.body)
		require.NoError(t, err)
	}
	method := req.method
	if method == "" {
		method = http.MethodGet
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, "/?"+req.query, bytes.NewReader(payload))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = req.params
	if req.claims != nil {
		c.Set(middleware.ContextUserKey, req.claims)
	}
	h(c)
	c.Writer.WriteHeaderNow()
	return w
}

type envelope struct {
	Data       json.RawMessage    `json:"data"`
	Pagination *models.Pagination `json:"pagination"`
	Error      *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder, data interface{}) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	if data != nil && env.Data != nil {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

func param(pairs ...string) gin.Params {
	params := make(gin.Params, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		params = append(params, gin.Param{Key: pairs[i], Value: pairs[i+1]})
	}
	return params
}

var (
	adminClaims   = &models.JWTClaims{UserID: "u-admin", Role: models.RoleAdmin}
	studentClaims = &models.JWTClaims{UserID: "u-ana", Role: models.RoleStudent, SubjectID: "s1"}
)
