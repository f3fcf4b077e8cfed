package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-enrollment-api/internal/models"
	"github.com/noah-isme/uni-enrollment-api/internal/repository"
	"github.com/noah-isme/uni-enrollment-api/internal/repository/memory"
	appErrors "github.com/noah-isme/uni-enrollment-api/pkg/errors"
)

type lockRecorder struct {
	repository.Store

	mu    sync.Mutex
	locks [][]string
}

func (r *lockRecorder) Update(ctx context.Context, locks []string, fn func(repository.Session) error) error {
	r.mu.Lock()
	r.locks = append(r.locks, append([]string(nil), locks...))
	r.mu.Unlock()
	return r.Store.Update(ctx, locks, fn)
}

func (r *lockRecorder) last() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.locks) == 0 {
		return nil
	}
	return r.locks[len(r.locks)-1]
}

func TestCourseDeleteSharesLockWithEnrollmentWrites(t *testing.T) {
	ctx := context.Background()
	mem := memory.NewStore()
	mem.AddStudent(models.Student{ID: "s1", NIM: "2024001", FullName: "Ana Torres", Active: true})
	rec := &lockRecorder{Store: mem}
	catalogSvc := NewCatalogService(rec, nil, nil, nil, nil, time.Minute)
	enrollmentSvc := NewEnrollmentService(rec, nil, nil, nil, nil, EnrollmentConfig{})

	course, err := catalogSvc.Create(ctx, models.CreateCourseRequest{Code: "MAT101", Name: "Calculus I", Credits: 4})
	require.NoError(t, err)
	courseLock := repository.CourseLock(course.ID)

	enrollment, err := enrollmentSvc.Admit(ctx, models.AdmitRequest{StudentID: "s1", CourseID: course.ID, Period: "2024-1"})
	require.NoError(t, err)
	assert.Contains(t, rec.last(), courseLock)

	_, err = enrollmentSvc.SetStatus(ctx, enrollment.ID, models.UpdateEnrollmentStatusRequest{Status: models.EnrollmentStatusCancelled})
	require.NoError(t, err)
	assert.Contains(t, rec.last(), courseLock)

	require.NoError(t, catalogSvc.Delete(ctx, course.ID))
	assert.Contains(t, rec.last(), courseLock)
	assert.Contains(t, rec.last(), repository.LockCatalog)

	_, err = enrollmentSvc.Get(ctx, enrollment.ID)
	requireCode(t, err, appErrors.ErrEnrollmentNotFound)
}
