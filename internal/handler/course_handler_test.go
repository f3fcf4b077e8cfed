package handler

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-enrollment-api/internal/models"
)

func createCourse(t *testing.T, e *env, code string, prereqs ...string) models.Course {
	t.Helper()
	w := serve(t, e.courses.Create, request{
		method: http.MethodPost,
		body:   models.CreateCourseRequest{Code: code, Name: "Course " + code, Credits: 4, PrerequisiteIDs: prereqs},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var course models.Course
	decode(t, w, &course)
	return course
}

func TestCourseHandlerCreateAndGet(t *testing.T) {
	e := newEnv(t)
	mat101 := createCourse(t, e, "MAT101")
	mat201 := createCourse(t, e, "MAT201", mat101.ID)
	assert.Equal(t, []string{mat101.ID}, mat201.PrerequisiteIDs)

	w := serve(t, e.courses.Get, request{params: param("id", mat101.ID)})
	require.Equal(t, http.StatusOK, w.Code)
	var got models.Course
	decode(t, w, &got)
	assert.Equal(t, []string{mat201.ID}, got.DependentIDs)

	w = serve(t, e.courses.GetByCode, request{params: param("code", "mat201")})
	require.Equal(t, http.StatusOK, w.Code)

	w = serve(t, e.courses.List, request{query: "search=MAT&limit=1"})
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.Course
	env := decode(t, w, &list)
	assert.Len(t, list, 1)
	assert.Equal(t, 2, env.Pagination.TotalCount)
}

func TestCourseHandlerErrors(t *testing.T) {
	e := newEnv(t)
	mat101 := createCourse(t, e, "MAT101")
	mat201 := createCourse(t, e, "MAT201", mat101.ID)

	tests := []struct {
		name   string
		w      func() int
		status int
	}{
		{"bad code", func() int {
			return serve(t, e.courses.Create, request{method: http.MethodPost, body: map[string]interface{}{"code": "MA101", "name": "Algebra", "credits": 3}}).Code
		}, http.StatusBadRequest},
		{"malformed json", func() int {
			return serve(t, e.courses.Create, request{method: http.MethodPost, body: "not an object"}).Code
		}, http.StatusBadRequest},
		{"cycle", func() int {
			return serve(t, e.courses.AddPrerequisite, request{method: http.MethodPost, params: param("id", mat101.ID, "prerequisiteId", mat201.ID)}).Code
		}, http.StatusConflict},
		{"self edge", func() int {
			return serve(t, e.courses.AddPrerequisite, request{method: http.MethodPost, params: param("id", mat101.ID, "prerequisiteId", mat101.ID)}).Code
		}, http.StatusBadRequest},
		{"missing course", func() int {
			return serve(t, e.courses.Get, request{params: param("id", "ghost")}).Code
		}, http.StatusNotFound},
		{"delete with dependents", func() int {
			return serve(t, e.courses.Delete, request{method: http.MethodDelete, params: param("id", mat101.ID)}).Code
		}, http.StatusConflict},
		{"absent edge", func() int {
			return serve(t, e.courses.RemovePrerequisite, request{method: http.MethodDelete, params: param("id", mat101.ID, "prerequisiteId", mat201.ID)}).Code
		}, http.StatusNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.status, tc.w())
		})
	}
}

func TestCourseHandlerCycleCheck(t *testing.T) {
	e := newEnv(t)
	mat101 := createCourse(t, e, "MAT101")
	mat201 := createCourse(t, e, "MAT201", mat101.ID)

	w := serve(t, e.courses.CheckCycle, request{params: param("id", mat101.ID, "prerequisiteId", mat201.ID)})
	require.Equal(t, http.StatusOK, w.Code)
	var result models.CycleCheckResult
	decode(t, w, &result)
	assert.True(t, result.WouldCycle)
}

func TestCourseHandlerTeacherLoad(t *testing.T) {
	e := newEnv(t)
	var last models.Course
	for _, code := range []string{"INF101", "INF102", "INF103", "INF104", "INF105"} {
		last = createCourse(t, e, code)
		w := serve(t, e.courses.AssignTeacher, request{method: http.MethodPut, params: param("id", last.ID, "teacherId", "t1")})
		if code == "INF105" {
			assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
			env := decode(t, w, nil)
			assert.Equal(t, "TEACHER_AT_CAPACITY", env.Error.Code)
			continue
		}
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := serve(t, e.courses.ListByTeacher, request{params: param("id", "t1")})
	require.Equal(t, http.StatusOK, w.Code)
	var courses []models.Course
	decode(t, w, &courses)
	assert.Len(t, courses, 4)
}

func TestCourseHandlerRoster(t *testing.T) {
	e := newEnv(t)
	mat101 := createCourse(t, e, "MAT101")
	w := serve(t, e.enroll.Create, request{method: http.MethodPost, claims: studentClaims, body: models.AdmitRequest{CourseID: mat101.ID, Period: "2024-1"}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = serve(t, e.courses.Roster, request{params: param("id", mat101.ID), query: "format=csv"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "roster_mat101.csv")
	assert.True(t, strings.HasPrefix(w.Body.String(), "NIM,Student"))
}
