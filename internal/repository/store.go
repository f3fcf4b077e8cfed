package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/noah-isme/uni-enrollment-api/internal/catalog"
	"github.com/noah-isme/uni-enrollment-api/internal/models"
)

// ErrDuplicate is returned when an insert or update violates a uniqueness constraint.
var ErrDuplicate = errors.New("duplicate record")

// Lock keys serialising the writes that share an invariant.
const LockCatalog = "catalog:graph"

// TeacherLock scopes a teacher's course assignments.
func TeacherLock(teacherID string) string {
	return "teacher:" + teacherID
}

// CourseLock scopes writes that must not interleave with deleting the course.
func CourseLock(courseID string) string {
	return "course:" + courseID
}

// EnrollmentLock scopes the enrollments of one student within one period.
func EnrollmentLock(studentID, period string) string {
	return fmt.Sprintf("enrollment:%s:%s", studentID, period)
}

// Store runs units of work against the persistence backend.
type Store interface {
	// View runs fn with a read-only session.
	View(ctx context.Context, fn func(Session) error) error
	// Update acquires every lock key, runs fn and commits when fn returns nil.
	// Any error discards every write made through the session.
	Update(ctx context.Context, locks []string, fn func(Session) error) error
}

// Session exposes the repositories bound to one unit of work.
type Session interface {
	Courses() CourseStore
	Teachers() TeacherLookup
	Students() StudentLookup
	Enrollments() EnrollmentStore
}

// CourseStore persists courses and the prerequisite relation.
// Lookups return sql.ErrNoRows when the course does not exist.
type CourseStore interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	FindByCode(ctx context.Context, code string) (*models.Course, error)
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	ListByTeacher(ctx context.Context, teacherID string) ([]models.Course, error)
	ExistsByCode(ctx context.Context, code, excludeID string) (bool, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	Delete(ctx context.Context, id string) error
	SetTeacher(ctx context.Context, courseID string, teacherID *string) error
	CountByTeacher(ctx context.Context, teacherID string) (int, error)
	AddPrerequisite(ctx context.Context, courseID, prerequisiteID string) error
	RemovePrerequisite(ctx context.Context, courseID, prerequisiteID string) error
	Graph(ctx context.Context) (catalog.Graph, error)
}

// EnrollmentStore persists enrollments. Lookups return sql.ErrNoRows when absent.
type EnrollmentStore interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.Enrollment, error)
	ListByCourse(ctx context.Context, courseID string) ([]models.EnrollmentDetail, error)
	ListByStudentAndPeriod(ctx context.Context, studentID, period string) ([]models.Enrollment, error)
	CountActiveByStudentAndPeriod(ctx context.Context, studentID, period string) (int, error)
	CountActiveByCourse(ctx context.Context, courseID string) (int, error)
	ExistsActive(ctx context.Context, studentID, courseID, period, excludeID string) (bool, error)
	ApprovedCourseIDs(ctx context.Context, studentID string) ([]string, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus, updatedAt time.Time) error
	Delete(ctx context.Context, id string) error
}

// StudentLookup resolves students.
type StudentLookup interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

// TeacherLookup resolves teachers.
type TeacherLookup interface {
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
}

// NormalizeLocks returns the keys sorted and deduplicated so every writer acquires them in the same order.
func NormalizeLocks(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}
