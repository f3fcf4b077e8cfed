package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-enrollment-api/internal/models"
	"github.com/noah-isme/uni-enrollment-api/internal/repository/memory"
	appErrors "github.com/noah-isme/uni-enrollment-api/pkg/errors"
)

type fixture struct {
	store       *memory.Store
	catalog     *CatalogService
	enrollments *EnrollmentService
	metrics     *MetricsService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	store.AddStudent(models.Student{ID: "s1", NIM: "2024001", FullName: "Ana Torres", Active: true})
	store.AddStudent(models.Student{ID: "s2", NIM: "2024002", FullName: "Luis Vega", Active: true})
	store.AddTeacher(models.Teacher{ID: "t1", FullName: "Prof. Ruiz", Active: true})
	store.AddTeacher(models.Teacher{ID: "t2", FullName: "Prof. Mora", Active: true})

	metrics := NewMetricsService()
	f := &fixture{
		store:       store,
		catalog:     NewCatalogService(store, nil, metrics, nil, nil, time.Minute),
		enrollments: NewEnrollmentService(store, nil, metrics, nil, nil, EnrollmentConfig{}),
		metrics:     metrics,
	}
	return f
}

func (f *fixture) course(t *testing.T, code string, prereqs ...string) *models.Course {
	t.Helper()
	ids := make([]string, 0, len(prereqs))
	for _, p := range prereqs {
		c, err := f.catalog.GetByCode(context.Background(), p)
		require.NoError(t, err)
		ids = append(ids, c.ID)
	}
	course, err := f.catalog.Create(context.Background(), models.CreateCourseRequest{
		Code:            code,
		Name:            "Course " + code,
		Credits:         4,
		PrerequisiteIDs: ids,
	})
	require.NoError(t, err)
	return course
}

func (f *fixture) courses(t *testing.T, prefix string, n int) []*models.Course {
	t.Helper()
	out := make([]*models.Course, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, f.course(t, fmt.Sprintf("%s%03d", prefix, i+1)))
	}
	return out
}

func requireCode(t *testing.T, err error, want *appErrors.Error) {
	t.Helper()
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	require.Equal(t, want.Code, appErr.Code, appErr.Message)
	require.Equal(t, want.Kind, appErr.Kind)
}
