package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-enrollment-api/internal/models"
	"github.com/noah-isme/uni-enrollment-api/internal/repository"
	"github.com/noah-isme/uni-enrollment-api/internal/validation"
	appErrors "github.com/noah-isme/uni-enrollment-api/pkg/errors"
)

// DefaultPeriodLimit is the number of enrollments a student may hold in one period.
const DefaultPeriodLimit = 7

// EnrollmentConfig tunes admission rules.
type EnrollmentConfig struct {
	PeriodLimit int
}

// EnrollmentService admits students into courses and manages enrollment records.
type EnrollmentService struct {
	store     repository.Store
	capacity  CapacityOracle
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       EnrollmentConfig
	now       func() time.Time
}

// NewEnrollmentService constructs the service. A nil capacity oracle admits every request.
func NewEnrollmentService(store repository.Store, capacity CapacityOracle, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg EnrollmentConfig) *EnrollmentService {
	if capacity == nil {
		capacity = UnlimitedCapacity{}
	}
	if validate == nil {
		validate = validation.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PeriodLimit <= 0 {
		cfg.PeriodLimit = DefaultPeriodLimit
	}
	return &EnrollmentService{
		store:     store,
		capacity:  capacity,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Admit runs the admission checks in order and records a PENDING enrollment.
func (s *EnrollmentService) Admit(ctx context.Context, req models.AdmitRequest) (*models.Enrollment, error) {
	req.Period = strings.TrimSpace(req.Period)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation, validation.Message(err))
	}

	var enrollment *models.Enrollment
	locks := []string{repository.EnrollmentLock(req.StudentID, req.Period), repository.CourseLock(req.CourseID)}
	err := s.store.Update(ctx, locks, func(sess repository.Session) error {
		if _, err := sess.Students().FindByID(ctx, req.StudentID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrStudentNotFound, "student not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal, "failed to load student")
		}
		course, err := sess.Courses().FindByID(ctx, req.CourseID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrCourseNotFound, "course not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal, "failed to load course")
		}

		exists, err := sess.Enrollments().ExistsActive(ctx, req.StudentID, req.CourseID, req.Period, "")
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal, "failed to check existing enrollment")
		}
		if exists {
			return appErrors.Clone(appErrors.ErrDuplicateEnrollment,
				fmt.Sprintf("student already enrolled in %s for period %s", course.Code, req.Period))
		}

		report, err := s.prerequisiteReport(ctx, sess, req.StudentID, course)
		if err != nil {
			return err
		}
		if !report.Satisfied {
			return appErrors.Clone(appErrors.ErrPrerequisitesNotMet,
				fmt.Sprintf("missing approved prerequisites: %s", strings.Join(report.Missing, ", ")))
		}

		ok, err := s.capacity.HasCapacity(ctx, sess, course)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal, "failed to check course capacity")
		}
		if !ok {
			return appErrors.Clone(appErrors.ErrNoCapacity, fmt.Sprintf("course %s has no remaining capacity", course.Code))
		}

		count, err := sess.Enrollments().CountActiveByStudentAndPeriod(ctx, req.StudentID, req.Period)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal, "failed to count period enrollments")
		}
		if count >= s.cfg.PeriodLimit {
			return appErrors.Clone(appErrors.ErrLimitExceeded,
				fmt.Sprintf("student already holds %d enrollments in period %s (limit %d)", count, req.Period, s.cfg.PeriodLimit))
		}

		record := &models.Enrollment{
			StudentID:  req.StudentID,
			CourseID:   req.CourseID,
			Period:     req.Period,
			EnrolledAt: s.now(),
			Status:     models.EnrollmentStatusPending,
		}
		if err := sess.Enrollments().Create(ctx, record); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return appErrors.Clone(appErrors.ErrDuplicateEnrollment,
					fmt.Sprintf("student already enrolled in %s for period %s", course.Code, req.Period))
			}
			return appErrors.Wrap(err, appErrors.ErrInternal, "failed to create enrollment")
		}
		enrollment = record
		return nil
	})
	if err != nil {
		s.metrics.RecordAdmission(reasonOf(err))
		s.logger.Info("admission rejected",
			zap.String("student_id", req.StudentID),
			zap.String("course_id", req.CourseID),
			zap.String("period", req.Period),
			zap.String("reason", reasonOf(err)))
		return nil, err
	}

	s.metrics.RecordAdmission("admitted")
	s.logger.Info("admission accepted",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("student_id", req.StudentID),
		zap.String("course_id", req.CourseID),
		zap.String("period", req.Period))
	return enrollment, nil
}

// Get returns an enrollment with student and course details.
func (s *EnrollmentService) Get(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	var detail *models.EnrollmentDetail
	err := s.store.View(ctx, func(sess repository.Session) error {
		var err error
		detail, err = sess.Enrollments().FindDetailByID(ctx, id)
		return err
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrEnrollmentNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal, "failed to load enrollment")
	}
	return detail, nil
}

// List returns paginated enrollments.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrInvalidStatus, fmt.Sprintf("unknown enrollment status %q", filter.Status))
	}
	var (
		items []models.EnrollmentDetail
		total int
	)
	err := s.store.View(ctx, func(sess repository.Session) error {
		var err error
		items, total, err = sess.Enrollments().List(ctx, filter)
		return err
	})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal, "failed to list enrollments")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return items, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// ListByStudent returns every enrollment of a student.
func (s *EnrollmentService) ListByStudent(ctx context.Context, studentID string) ([]models.Enrollment, error) {
	var items []models.Enrollment
	err := s.store.View(ctx, func(sess repository.Session) error {
		if err := s.ensureStudent(ctx, sess, studentID); err != nil {
			return err
		}
		var err error
		items, err = sess.Enrollments().ListByStudent(ctx, studentID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal, "failed to list student enrollments")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return nonNil(items), nil
}

// ListByStudentAndPeriod returns a student's enrollments within one period.
func (s *EnrollmentService) ListByStudentAndPeriod(ctx context.Context, studentID, period string) ([]models.Enrollment, error) {
	var items []models.Enrollment
	err := s.store.View(ctx, func(sess repository.Session) error {
		if err := s.ensureStudent(ctx, sess, studentID); err != nil {
			return err
		}
		var err error
		items, err = sess.Enrollments().ListByStudentAndPeriod(ctx, studentID, period)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal, "failed to list student enrollments")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return nonNil(items), nil
}

// ListByCourse returns the roster of a course.
func (s *EnrollmentService) ListByCourse(ctx context.Context, courseID string) ([]models.EnrollmentDetail, error) {
	var items []models.EnrollmentDetail
	err := s.store.View(ctx, func(sess repository.Session) error {
		if _, err := sess.Courses().FindByID(ctx, courseID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrCourseNotFound, "course not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal, "failed to load course")
		}
		var err error
		items, err = sess.Enrollments().ListByCourse(ctx, courseID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal, "failed to list course enrollments")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.EnrollmentDetail{}
	}
	return items, nil
}

// CheckPrerequisites reports which prerequisites of a course the student has approved.
func (s *EnrollmentService) CheckPrerequisites(ctx context.Context, studentID, courseID string) (*models.PrerequisiteReport, error) {
	var report *models.PrerequisiteReport
	err := s.store.View(ctx, func(sess repository.Session) error {
		if err := s.ensureStudent(ctx, sess, studentID); err != nil {
			return err
		}
		course, err := sess.Courses().FindByID(ctx, courseID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrCourseNotFound, "course not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal, "failed to load course")
		}
		report, err = s.prerequisiteReport(ctx, sess, studentID, course)
		return err
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// SetStatus moves an enrollment to a new status. Reviving a cancelled
// enrollment is rejected when another active one exists for the same course and period.
func (s *EnrollmentService) SetStatus(ctx context.Context, id string, req models.UpdateEnrollmentStatusRequest) (*models.Enrollment, error) {
	if !req.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrInvalidStatus, fmt.Sprintf("unknown enrollment status %q", req.Status))
	}
	current, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	var updated *models.Enrollment
	locks := []string{repository.EnrollmentLock(current.StudentID, current.Period), repository.CourseLock(current.CourseID)}
	err = s.store.Update(ctx, locks, func(sess repository.Session) error {
		enrollment, err := sess.Enrollments().FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrEnrollmentNotFound, "enrollment not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal, "failed to load enrollment")
		}
		if req.Status.Active() && !enrollment.Status.Active() {
			exists, err := sess.Enrollments().ExistsActive(ctx, enrollment.StudentID, enrollment.CourseID, enrollment.Period, enrollment.ID)
			if err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal, "failed to check existing enrollment")
			}
			if exists {
				return appErrors.Clone(appErrors.ErrDuplicateEnrollment, "another active enrollment exists for this course and period")
			}
		}

		now := s.now()
		if err := sess.Enrollments().UpdateStatus(ctx, id, req.Status, now); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return appErrors.Clone(appErrors.ErrDuplicateEnrollment, "another active enrollment exists for this course and period")
			}
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrEnrollmentNotFound, "enrollment not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal, "failed to update enrollment status")
		}
		enrollment.Status = req.Status
		enrollment.UpdatedAt = now
		updated = enrollment
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("enrollment status changed",
		zap.String("enrollment_id", id),
		zap.String("from", string(current.Status)),
		zap.String("to", string(req.Status)))
	return updated, nil
}

// Remove deletes an enrollment.
func (s *EnrollmentService) Remove(ctx context.Context, id string) error {
	current, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	lock := repository.EnrollmentLock(current.StudentID, current.Period)
	err = s.store.Update(ctx, []string{lock}, func(sess repository.Session) error {
		if err := sess.Enrollments().Delete(ctx, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrEnrollmentNotFound, "enrollment not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal, "failed to delete enrollment")
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("enrollment removed", zap.String("enrollment_id", id))
	return nil
}

func (s *EnrollmentService) find(ctx context.Context, id string) (*models.Enrollment, error) {
	var enrollment *models.Enrollment
	err := s.store.View(ctx, func(sess repository.Session) error {
		var err error
		enrollment, err = sess.Enrollments().FindByID(ctx, id)
		return err
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrEnrollmentNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal, "failed to load enrollment")
	}
	return enrollment, nil
}

func (s *EnrollmentService) ensureStudent(ctx context.Context, sess repository.Session, studentID string) error {
	if _, err := sess.Students().FindByID(ctx, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrStudentNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal, "failed to load student")
	}
	return nil
}

func (s *EnrollmentService) prerequisiteReport(ctx context.Context, sess repository.Session, studentID string, course *models.Course) (*models.PrerequisiteReport, error) {
	approvedIDs, err := sess.Enrollments().ApprovedCourseIDs(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal, "failed to load approved courses")
	}
	approved := make(map[string]struct{}, len(approvedIDs))
	for _, id := range approvedIDs {
		approved[id] = struct{}{}
	}

	report := &models.PrerequisiteReport{
		StudentID: studentID,
		CourseID:  course.ID,
		Approved:  []string{},
		Missing:   []string{},
	}
	for _, prereqID := range course.PrerequisiteIDs {
		if _, ok := approved[prereqID]; ok {
			report.Approved = append(report.Approved, prereqID)
		} else {
			report.Missing = append(report.Missing, prereqID)
		}
	}
	report.Satisfied = len(report.Missing) == 0
	return report, nil
}

func nonNil(items []models.Enrollment) []models.Enrollment {
	if items == nil {
		return []models.Enrollment{}
	}
	return items
}
