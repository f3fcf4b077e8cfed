package memory

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-enrollment-api/internal/models"
	"github.com/noah-isme/uni-enrollment-api/internal/repository"
)

func seedCourses(t *testing.T, store *Store, codes ...string) {
	t.Helper()
	err := store.Update(context.Background(), []string{repository.LockCatalog}, func(s repository.Session) error {
		for _, code := range codes {
			if err := s.Courses().Create(context.Background(), &models.Course{ID: code, Code: code, Name: "Course " + code, Credits: 4}); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestUpdateCommitsOnSuccess(t *testing.T) {
	store := NewStore()
	seedCourses(t, store, "MAT101", "MAT201")

	ctx := context.Background()
	require.NoError(t, store.Update(ctx, []string{repository.LockCatalog}, func(s repository.Session) error {
		return s.Courses().AddPrerequisite(ctx, "MAT201", "MAT101")
	}))

	require.NoError(t, store.View(ctx, func(s repository.Session) error {
		course, err := s.Courses().FindByID(ctx, "MAT101")
		require.NoError(t, err)
		assert.Equal(t, []string{"MAT201"}, course.DependentIDs)
		return nil
	}))
}

func TestUpdateDiscardsEveryWriteOnError(t *testing.T) {
	store := NewStore()
	seedCourses(t, store, "MAT101")

	ctx := context.Background()
	boom := errors.New("boom")
	err := store.Update(ctx, []string{repository.LockCatalog}, func(s repository.Session) error {
		if err := s.Courses().Create(ctx, &models.Course{ID: "MAT201", Code: "MAT201", Name: "Calculus II", Credits: 4}); err != nil {
			return err
		}
		if err := s.Courses().AddPrerequisite(ctx, "MAT201", "MAT101"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	require.NoError(t, store.View(ctx, func(s repository.Session) error {
		_, err := s.Courses().FindByID(ctx, "MAT201")
		assert.Equal(t, sql.ErrNoRows, err)
		course, err := s.Courses().FindByID(ctx, "MAT101")
		require.NoError(t, err)
		assert.Empty(t, course.DependentIDs)
		return nil
	}))
}

func TestViewIsReadOnly(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	err := store.View(ctx, func(s repository.Session) error {
		return s.Courses().Create(ctx, &models.Course{Code: "MAT101", Name: "Calculus", Credits: 4})
	})
	assert.ErrorIs(t, err, ErrReadOnly)
}

func TestCourseDeleteKeepsDependents(t *testing.T) {
	store := NewStore()
	seedCourses(t, store, "MAT101", "MAT201")
	ctx := context.Background()
	require.NoError(t, store.Update(ctx, nil, func(s repository.Session) error {
		return s.Courses().AddPrerequisite(ctx, "MAT201", "MAT101")
	}))

	err := store.Update(ctx, nil, func(s repository.Session) error {
		return s.Courses().Delete(ctx, "MAT101")
	})
	assert.ErrorIs(t, err, ErrHasDependents)

	require.NoError(t, store.Update(ctx, nil, func(s repository.Session) error {
		return s.Courses().Delete(ctx, "MAT201")
	}))
	require.NoError(t, store.View(ctx, func(s repository.Session) error {
		course, err := s.Courses().FindByID(ctx, "MAT101")
		require.NoError(t, err)
		assert.Empty(t, course.DependentIDs)
		return nil
	}))
}

func TestEnrollmentUniquenessIgnoresCancelled(t *testing.T) {
	store := NewStore()
	seedCourses(t, store, "MAT101")
	store.AddStudent(models.Student{ID: "s1", FullName: "Ana", NIM: "2024001"})
	ctx := context.Background()

	var first models.Enrollment
	require.NoError(t, store.Update(ctx, nil, func(s repository.Session) error {
		first = models.Enrollment{StudentID: "s1", CourseID: "MAT101", Period: "2024-1"}
		return s.Enrollments().Create(ctx, &first)
	}))

	err := store.Update(ctx, nil, func(s repository.Session) error {
		return s.Enrollments().Create(ctx, &models.Enrollment{StudentID: "s1", CourseID: "MAT101", Period: "2024-1"})
	})
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	require.NoError(t, store.Update(ctx, nil, func(s repository.Session) error {
		if err := s.Enrollments().UpdateStatus(ctx, first.ID, models.EnrollmentStatusCancelled, first.EnrolledAt); err != nil {
			return err
		}
		return s.Enrollments().Create(ctx, &models.Enrollment{StudentID: "s1", CourseID: "MAT101", Period: "2024-1"})
	}))

	require.NoError(t, store.View(ctx, func(s repository.Session) error {
		count, err := s.Enrollments().CountActiveByStudentAndPeriod(ctx, "s1", "2024-1")
		require.NoError(t, err)
		assert.Equal(t, 1, count)
		roster, err := s.Enrollments().ListByCourse(ctx, "MAT101")
		require.NoError(t, err)
		assert.Len(t, roster, 2)
		assert.Equal(t, "Ana", roster[0].StudentName)
		return nil
	}))
}

func TestUserRepository(t *testing.T) {
	repo := NewUserRepository()
	repo.Add(models.User{ID: "u1", Email: "admin@uni.edu", Role: models.RoleAdmin, Active: true})

	user, err := repo.FindByEmail(context.Background(), "admin@uni.edu")
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)

	_, err = repo.FindByEmail(context.Background(), "ghost@uni.edu")
	assert.Equal(t, sql.ErrNoRows, err)
}

func TestCourseDeleteCascadesEnrollments(t *testing.T) {
	store := NewStore()
	seedCourses(t, store, "MAT101", "FIS101")
	store.AddStudent(models.Student{ID: "s1", FullName: "Ana", NIM: "2024001"})
	ctx := context.Background()

	require.NoError(t, store.Update(ctx, nil, func(s repository.Session) error {
		cancelled := models.Enrollment{StudentID: "s1", CourseID: "MAT101", Period: "2024-1"}
		if err := s.Enrollments().Create(ctx, &cancelled); err != nil {
			return err
		}
		if err := s.Enrollments().UpdateStatus(ctx, cancelled.ID, models.EnrollmentStatusCancelled, cancelled.EnrolledAt); err != nil {
			return err
		}
		return s.Enrollments().Create(ctx, &models.Enrollment{StudentID: "s1", CourseID: "FIS101", Period: "2024-1"})
	}))

	require.NoError(t, store.Update(ctx, nil, func(s repository.Session) error {
		return s.Courses().Delete(ctx, "MAT101")
	}))

	require.NoError(t, store.View(ctx, func(s repository.Session) error {
		left, err := s.Enrollments().ListByStudent(ctx, "s1")
		require.NoError(t, err)
		require.Len(t, left, 1)
		assert.Equal(t, "FIS101", left[0].CourseID)
		roster, err := s.Enrollments().ListByCourse(ctx, "MAT101")
		require.NoError(t, err)
		assert.Empty(t, roster)
		return nil
	}))
}
