package memory

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/uni-enrollment-api/internal/models"
	"github.com/noah-isme/uni-enrollment-api/internal/repository"
)

type enrollmentStore struct {
	*session
}

func (e *enrollmentStore) detail(enrollment models.Enrollment) models.EnrollmentDetail {
	detail := models.EnrollmentDetail{Enrollment: enrollment}
	if student, ok := e.st.students[enrollment.StudentID]; ok {
		detail.StudentName = student.FullName
		detail.StudentNIM = student.NIM
	}
	if course, ok := e.st.courses[enrollment.CourseID]; ok {
		detail.CourseCode = course.Code
		detail.CourseName = course.Name
	}
	return detail
}

func (e *enrollmentStore) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	enrollment, ok := e.st.enrollments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &enrollment, nil
}

func (e *enrollmentStore) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	enrollment, ok := e.st.enrollments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	detail := e.detail(enrollment)
	return &detail, nil
}

func (e *enrollmentStore) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	matched := make([]models.EnrollmentDetail, 0)
	for _, enrollment := range e.st.enrollments {
		if filter.StudentID != "" && enrollment.StudentID != filter.StudentID {
			continue
		}
		if filter.CourseID != "" && enrollment.CourseID != filter.CourseID {
			continue
		}
		if filter.Period != "" && enrollment.Period != filter.Period {
			continue
		}
		if filter.Status != "" && enrollment.Status != filter.Status {
			continue
		}
		matched = append(matched, e.detail(enrollment))
	}

	asc := strings.EqualFold(filter.SortOrder, "ASC")
	sort.Slice(matched, func(i, j int) bool {
		var less bool
		switch filter.SortBy {
		case "student_name":
			less = matched[i].StudentName < matched[j].StudentName
		case "course_code":
			less = matched[i].CourseCode < matched[j].CourseCode
		case "period":
			less = matched[i].Period < matched[j].Period
		default:
			less = matched[i].EnrolledAt.Before(matched[j].EnrolledAt)
		}
		if asc {
			return less
		}
		return !less
	})

	start, end := pageBounds(filter.Page, filter.PageSize, len(matched))
	return matched[start:end], len(matched), nil
}

func (e *enrollmentStore) collect(match func(models.Enrollment) bool) []models.Enrollment {
	var out []models.Enrollment
	for _, enrollment := range e.st.enrollments {
		if match(enrollment) {
			out = append(out, enrollment)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EnrolledAt.Before(out[j].EnrolledAt) })
	return out
}

func (e *enrollmentStore) ListByStudent(ctx context.Context, studentID string) ([]models.Enrollment, error) {
	out := e.collect(func(en models.Enrollment) bool { return en.StudentID == studentID })
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (e *enrollmentStore) ListByCourse(ctx context.Context, courseID string) ([]models.EnrollmentDetail, error) {
	rows := e.collect(func(en models.Enrollment) bool { return en.CourseID == courseID })
	out := make([]models.EnrollmentDetail, 0, len(rows))
	for _, row := range rows {
		out = append(out, e.detail(row))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Period != out[j].Period {
			return out[i].Period > out[j].Period
		}
		return out[i].StudentName < out[j].StudentName
	})
	return out, nil
}

func (e *enrollmentStore) ListByStudentAndPeriod(ctx context.Context, studentID, period string) ([]models.Enrollment, error) {
	return e.collect(func(en models.Enrollment) bool {
		return en.StudentID == studentID && en.Period == period
	}), nil
}

func (e *enrollmentStore) CountActiveByStudentAndPeriod(ctx context.Context, studentID, period string) (int, error) {
	return len(e.collect(func(en models.Enrollment) bool {
		return en.StudentID == studentID && en.Period == period && en.Status.Active()
	})), nil
}

func (e *enrollmentStore) CountActiveByCourse(ctx context.Context, courseID string) (int, error) {
	return len(e.collect(func(en models.Enrollment) bool {
		return en.CourseID == courseID && en.Status.Active()
	})), nil
}

func (e *enrollmentStore) ExistsActive(ctx context.Context, studentID, courseID, period, excludeID string) (bool, error) {
	for id, en := range e.st.enrollments {
		if id == excludeID {
			continue
		}
		if en.StudentID == studentID && en.CourseID == courseID && en.Period == period && en.Status.Active() {
			return true, nil
		}
	}
	return false, nil
}

func (e *enrollmentStore) ApprovedCourseIDs(ctx context.Context, studentID string) ([]string, error) {
	seen := make(map[string]struct{})
	var ids []string
	for _, en := range e.st.enrollments {
		if en.StudentID != studentID || en.Status != models.EnrollmentStatusApproved {
			continue
		}
		if _, ok := seen[en.CourseID]; ok {
			continue
		}
		seen[en.CourseID] = struct{}{}
		ids = append(ids, en.CourseID)
	}
	sort.Strings(ids)
	return ids, nil
}

func (e *enrollmentStore) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if err := e.writable(); err != nil {
		return err
	}
	if exists, _ := e.ExistsActive(ctx, enrollment.StudentID, enrollment.CourseID, enrollment.Period, ""); exists {
		return repository.ErrDuplicate
	}
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = time.Now().UTC()
	}
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusPending
	}
	enrollment.UpdatedAt = enrollment.EnrolledAt
	e.st.enrollments[enrollment.ID] = *enrollment
	return nil
}

func (e *enrollmentStore) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus, updatedAt time.Time) error {
	if err := e.writable(); err != nil {
		return err
	}
	enrollment, ok := e.st.enrollments[id]
	if !ok {
		return sql.ErrNoRows
	}
	if status.Active() && !enrollment.Status.Active() {
		if exists, _ := e.ExistsActive(ctx, enrollment.StudentID, enrollment.CourseID, enrollment.Period, id); exists {
			return repository.ErrDuplicate
		}
	}
	enrollment.Status = status
	enrollment.UpdatedAt = updatedAt
	e.st.enrollments[id] = enrollment
	return nil
}

func (e *enrollmentStore) Delete(ctx context.Context, id string) error {
	if err := e.writable(); err != nil {
		return err
	}
	if _, ok := e.st.enrollments[id]; !ok {
		return sql.ErrNoRows
	}
	delete(e.st.enrollments, id)
	return nil
}
