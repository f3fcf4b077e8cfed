package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const advisoryLock = "SELECT pg_advisory_xact_lock(hashtext($1))"

func TestSQLStoreUpdateLocksInOrderAndCommits(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	store := NewSQLStore(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(advisoryLock)).WithArgs(LockCatalog).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(advisoryLock)).WithArgs("teacher:t1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO course_prerequisites")).
		WithArgs("mat201", "mat101").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.Update(context.Background(), []string{TeacherLock("t1"), LockCatalog, LockCatalog}, func(s Session) error {
		return s.Courses().AddPrerequisite(context.Background(), "mat201", "mat101")
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreUpdateRollsBackOnError(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	store := NewSQLStore(db)

	boom := errors.New("boom")
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(advisoryLock)).WithArgs(EnrollmentLock("s1", "2024-1")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := store.Update(context.Background(), []string{EnrollmentLock("s1", "2024-1")}, func(Session) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNormalizeLocks(t *testing.T) {
	got := NormalizeLocks([]string{"teacher:b", "", "catalog:graph", "teacher:b", "teacher:a"})
	assert.Equal(t, []string{"catalog:graph", "teacher:a", "teacher:b"}, got)
	assert.Equal(t, "enrollment:s1:2024-1", EnrollmentLock("s1", "2024-1"))
}
