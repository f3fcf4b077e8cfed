package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-enrollment-api/internal/models"
)

func TestEnrollmentHandlerAdmission(t *testing.T) {
	e := newEnv(t)
	mat101 := createCourse(t, e, "MAT101")
	mat201 := createCourse(t, e, "MAT201", mat101.ID)

	w := serve(t, e.enroll.Create, request{method: http.MethodPost, claims: studentClaims, body: models.AdmitRequest{CourseID: mat201.ID, Period: "2024-1"}})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "PREREQUISITES_NOT_MET", decode(t, w, nil).Error.Code)

	w = serve(t, e.enroll.Create, request{method: http.MethodPost, claims: studentClaims, body: models.AdmitRequest{CourseID: mat101.ID, Period: "2024-1"}})
	require.Equal(t, http.StatusCreated, w.Code)
	var enrollment models.Enrollment
	decode(t, w, &enrollment)
	assert.Equal(t, "s1", enrollment.StudentID)
	assert.Equal(t, models.EnrollmentStatusPending, enrollment.Status)

	w = serve(t, e.enroll.Create, request{method: http.MethodPost, claims: studentClaims, body: models.AdmitRequest{CourseID: mat101.ID, Period: "2024-1"}})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = serve(t, e.enroll.UpdateStatus, request{method: http.MethodPut, params: param("id", enrollment.ID), body: map[string]string{"status": "approved"}})
	require.Equal(t, http.StatusOK, w.Code)

	w = serve(t, e.enroll.CheckPrerequisites, request{params: param("id", "s1", "courseId", mat201.ID)})
	require.Equal(t, http.StatusOK, w.Code)
	var report models.PrerequisiteReport
	decode(t, w, &report)
	assert.True(t, report.Satisfied)

	w = serve(t, e.enroll.Create, request{method: http.MethodPost, claims: studentClaims, body: models.AdmitRequest{CourseID: mat201.ID, Period: "2024-2"}})
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestEnrollmentHandlerOwnership(t *testing.T) {
	e := newEnv(t)
	mat101 := createCourse(t, e, "MAT101")

	w := serve(t, e.enroll.Create, request{method: http.MethodPost, claims: studentClaims, body: models.AdmitRequest{StudentID: "s2", CourseID: mat101.ID, Period: "2024-1"}})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = serve(t, e.enroll.Create, request{method: http.MethodPost, claims: adminClaims, body: models.AdmitRequest{StudentID: "s2", CourseID: mat101.ID, Period: "2024-1"}})
	require.Equal(t, http.StatusCreated, w.Code)
	var other models.Enrollment
	decode(t, w, &other)

	w = serve(t, e.enroll.Get, request{params: param("id", other.ID), claims: studentClaims})
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = serve(t, e.enroll.Delete, request{method: http.MethodDelete, params: param("id", other.ID), claims: studentClaims})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = serve(t, e.enroll.Get, request{params: param("id", other.ID), claims: adminClaims})
	require.Equal(t, http.StatusOK, w.Code)
	var detail models.EnrollmentDetail
	decode(t, w, &detail)
	assert.Equal(t, "Luis Vega", detail.StudentName)

	w = serve(t, e.enroll.Delete, request{method: http.MethodDelete, params: param("id", other.ID), claims: adminClaims})
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestEnrollmentHandlerListings(t *testing.T) {
	e := newEnv(t)
	mat101 := createCourse(t, e, "MAT101")
	fis101 := createCourse(t, e, "FIS101")
	for _, req := range []models.AdmitRequest{
		{StudentID: "s1", CourseID: mat101.ID, Period: "2024-1"},
		{StudentID: "s1", CourseID: fis101.ID, Period: "2024-2"},
		{StudentID: "s2", CourseID: mat101.ID, Period: "2024-1"},
	} {
		w := serve(t, e.enroll.Create, request{method: http.MethodPost, claims: adminClaims, body: req})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := serve(t, e.enroll.ListByStudent, request{params: param("id", "s1"), query: "period=2024-2"})
	require.Equal(t, http.StatusOK, w.Code)
	var items []models.Enrollment
	decode(t, w, &items)
	require.Len(t, items, 1)
	assert.Equal(t, fis101.ID, items[0].CourseID)

	w = serve(t, e.enroll.ListByCourse, request{params: param("id", mat101.ID)})
	require.Equal(t, http.StatusOK, w.Code)
	var roster []models.EnrollmentDetail
	decode(t, w, &roster)
	assert.Len(t, roster, 2)

	w = serve(t, e.enroll.List, request{query: "status=pending&period=2024-1"})
	require.Equal(t, http.StatusOK, w.Code)
	var all []models.EnrollmentDetail
	env := decode(t, w, &all)
	assert.Len(t, all, 2)
	assert.Equal(t, 2, env.Pagination.TotalCount)

	w = serve(t, e.enroll.List, request{query: "status=graduated"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
