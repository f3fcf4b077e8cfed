package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-enrollment-api/internal/models"
)

func TestEnrollmentRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "student_id", "course_id", "period", "enrolled_at", "status", "updated_at", "student_name", "student_nim", "course_code", "course_name"}).
		AddRow("e1", "s1", "mat101", "2024-1", now, "PENDING", now, "Ana", "2024001", "MAT101", "Calculus I")
	mock.ExpectQuery(regexp.QuoteMeta("WHERE e.student_id = $1 AND e.period = $2 ORDER BY e.enrolled_at DESC LIMIT 20 OFFSET 0")).
		WithArgs("s1", "2024-1").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM enrollments e")).
		WithArgs("s1", "2024-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	list, total, err := repo.List(context.Background(), models.EnrollmentFilter{StudentID: "s1", Period: "2024-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, list, 1)
	assert.Equal(t, "MAT101", list[0].CourseCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryExistsActive(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM enrollments WHERE student_id = $1 AND course_id = $2 AND period = $3 AND status <> $4 AND id <> $5 LIMIT 1")).
		WithArgs("s1", "mat101", "2024-1", models.EnrollmentStatusCancelled, "e9").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM enrollments WHERE student_id = $1 AND course_id = $2 AND period = $3 AND status <> $4 LIMIT 1")).
		WithArgs("s1", "mat201", "2024-1", models.EnrollmentStatusCancelled).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}))

	ctx := context.Background()
	exists, err := repo.ExistsActive(ctx, "s1", "mat101", "2024-1", "e9")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.ExistsActive(ctx, "s1", "mat201", "2024-1", "")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCountExcludesCancelled(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM enrollments WHERE student_id = $1 AND period = $2 AND status <> $3")).
		WithArgs("s1", "2024-1", models.EnrollmentStatusCancelled).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(6))

	count, err := repo.CountActiveByStudentAndPeriod(context.Background(), "s1", "2024-1")
	require.NoError(t, err)
	assert.Equal(t, 6, count)
}

func TestEnrollmentRepositoryApprovedCourseIDs(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT course_id FROM enrollments WHERE student_id = $1 AND status = $2")).
		WithArgs("s1", models.EnrollmentStatusApproved).
		WillReturnRows(sqlmock.NewRows([]string{"course_id"}).AddRow("mat101"))

	ids, err := repo.ApprovedCourseIDs(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"mat101"}, ids)
}

func TestEnrollmentRepositoryCreateDefaults(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec("INSERT INTO enrollments").
		WithArgs(sqlmock.AnyArg(), "s1", "mat101", "2024-1", sqlmock.AnyArg(), models.EnrollmentStatusPending, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	enrollment := &models.Enrollment{StudentID: "s1", CourseID: "mat101", Period: "2024-1"}
	require.NoError(t, repo.Create(context.Background(), enrollment))
	assert.NotEmpty(t, enrollment.ID)
	assert.False(t, enrollment.EnrolledAt.IsZero())
	assert.Equal(t, models.EnrollmentStatusPending, enrollment.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreateUniqueViolation(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec("INSERT INTO enrollments").WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), &models.Enrollment{StudentID: "s1", CourseID: "mat101", Period: "2024-1"})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestEnrollmentRepositoryUpdateStatusMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET status = $2, updated_at = $3 WHERE id = $1")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "ghost", models.EnrollmentStatusApproved, time.Now())
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
