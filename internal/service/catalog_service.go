package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-enrollment-api/internal/catalog"
	"github.com/noah-isme/uni-enrollment-api/internal/models"
	"github.com/noah-isme/uni-enrollment-api/internal/repository"
	"github.com/noah-isme/uni-enrollment-api/internal/validation"
	appErrors "github.com/noah-isme/uni-enrollment-api/pkg/errors"
)

const catalogCachePattern = "catalog:*"

// CatalogService manages courses, their prerequisite graph and teacher assignments.
type CatalogService struct {
	store     repository.Store
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cacheTTL  time.Duration

	// generation advances on every committed mutation.
	generation atomic.Uint64
}

// NewCatalogService creates a catalog service. cache and metrics may be nil.
func NewCatalogService(store repository.Store, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cacheTTL time.Duration) *CatalogService {
	if validate == nil {
		validate = validation.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{store: store, cache: cache, metrics: metrics, validator: validate, logger: logger, cacheTTL: cacheTTL}
}

type courseListPage struct {
	Courses []models.Course `json:"courses"`
	Total   int             `json:"total"`
}

// List returns paginated courses.
func (s *CatalogService) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, *models.Pagination, error) {
	key := fmt.Sprintf("catalog:list:%s:%s:%d:%d:%s:%s", filter.Search, filter.TeacherID, filter.Page, filter.PageSize, filter.SortBy, filter.SortOrder)

	var cached courseListPage
	hit, _ := s.cache.Get(ctx, key, &cached)
	if !hit {
		gen := s.generation.Load()
		err := s.store.View(ctx, func(sess repository.Session) error {
			courses, total, err := sess.Courses().List(ctx, filter)
			if err != nil {
				return err
			}
			cached = courseListPage{Courses: courses, Total: total}
			return nil
		})
		if err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal, "failed to list courses")
		}
		s.fill(ctx, key, cached, gen)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return cached.Courses, &models.Pagination{Page: page, PageSize: size, TotalCount: cached.Total}, nil
}

// Get returns a course by identifier.
func (s *CatalogService) Get(ctx context.Context, id string) (*models.Course, error) {
	return s.cachedCourse(ctx, "catalog:course:"+id, func(sess repository.Session) (*models.Course, error) {
		return sess.Courses().FindByID(ctx, id)
	})
}

// GetByCode returns a course by its code.
func (s *CatalogService) GetByCode(ctx context.Context, code string) (*models.Course, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	return s.cachedCourse(ctx, "catalog:code:"+code, func(sess repository.Session) (*models.Course, error) {
		return sess.Courses().FindByCode(ctx, code)
	})
}

func (s *CatalogService) cachedCourse(ctx context.Context, key string, load func(repository.Session) (*models.Course, error)) (*models.Course, error) {
	var cached models.Course
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}

	gen := s.generation.Load()
	var course *models.Course
	err := s.store.View(ctx, func(sess repository.Session) error {
		var err error
		course, err = load(sess)
		return err
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrCourseNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal, "failed to load course")
	}
	s.fill(ctx, key, course, gen)
	return course, nil
}

// Create registers a course with its optional teacher and prerequisites.
func (s *CatalogService) Create(ctx context.Context, req models.CreateCourseRequest) (*models.Course, error) {
	req.Code = strings.ToUpper(strings.TrimSpace(req.Code))
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validateCourse(req.Code, req.Credits); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation, validation.Message(err))
	}

	locks := []string{repository.LockCatalog}
	if req.TeacherID != nil {
		locks = append(locks, repository.TeacherLock(*req.TeacherID))
	}

	var created *models.Course
	err := s.store.Update(ctx, locks, func(sess repository.Session) error {
		exists, err := sess.Courses().ExistsByCode(ctx, req.Code, "")
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal, "failed to check course code")
		}
		if exists {
			return appErrors.Clone(appErrors.ErrDuplicateCourseCode, fmt.Sprintf("course code %s already exists", req.Code))
		}
		if req.TeacherID != nil {
			if err := s.ensureTeacherAssignable(ctx, sess, *req.TeacherID); err != nil {
				return err
			}
		}

		course := &models.Course{Code: req.Code, Name: req.Name, Credits: req.Credits, TeacherID: req.TeacherID}
		if err := sess.Courses().Create(ctx, course); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return appErrors.Clone(appErrors.ErrDuplicateCourseCode, fmt.Sprintf("course code %s already exists", req.Code))
			}
			return appErrors.Wrap(err, appErrors.ErrInternal, "failed to create course")
		}
		for _, prereqID := range dedupe(req.PrerequisiteIDs) {
			if err := s.linkPrerequisite(ctx, sess, course.ID, prereqID); err != nil {
				return err
			}
		}
		created, err = s.reload(ctx, sess, course.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.afterMutation(ctx, "create_course", zap.String("course_id", created.ID), zap.String("code", created.Code))
	return created, nil
}

// Update replaces the attributes, teacher and prerequisite set of a course.
func (s *CatalogService) Update(ctx context.Context, id string, req models.UpdateCourseRequest) (*models.Course, error) {
	req.Code = strings.ToUpper(strings.TrimSpace(req.Code))
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validateCourse(req.Code, req.Credits); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation, validation.Message(err))
	}

	locks := []string{repository.LockCatalog}
	if req.TeacherID != nil {
		locks = append(locks, repository.TeacherLock(*req.TeacherID))
	}

	var updated *models.Course
	err := s.store.Update(ctx, locks, func(sess repository.Session) error {
		current, err := s.findCourse(ctx, sess, id)
		if err != nil {
			return err
		}
		exists, err := sess.Courses().ExistsByCode(ctx, req.Code, id)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal, "failed to check course code")
		}
		if exists {
			return appErrors.Clone(appErrors.ErrDuplicateCourseCode, fmt.Sprintf("course code %s already exists", req.Code))
		}
		if req.TeacherID != nil && !sameTeacher(current.TeacherID, *req.TeacherID) {
			if err := s.ensureTeacherAssignable(ctx, sess, *req.TeacherID); err != nil {
				return err
			}
		}

		current.Code = req.Code
		current.Name = req.Name
		current.Credits = req.Credits
		current.TeacherID = req.TeacherID
		if err := sess.Courses().Update(ctx, current); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return appErrors.Clone(appErrors.ErrDuplicateCourseCode, fmt.Sprintf("course code %s already exists", req.Code))
			}
			return appErrors.Wrap(err, appErrors.ErrInternal, "failed to update course")
		}

		wanted := dedupe(req.PrerequisiteIDs)
		keep := make(map[string]struct{}, len(wanted))
		for _, prereqID := range wanted {
			keep[prereqID] = struct{}{}
		}
		existing := make(map[string]struct{}, len(current.PrerequisiteIDs))
		for _, prereqID := range current.PrerequisiteIDs {
			existing[prereqID] = struct{}{}
			if _, ok := keep[prereqID]; ok {
				continue
			}
			if err := sess.Courses().RemovePrerequisite(ctx, id, prereqID); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal, "failed to remove prerequisite")
			}
		}
		for _, prereqID := range wanted {
			if _, ok := existing[prereqID]; ok {
				continue
			}
			if err := s.linkPrerequisite(ctx, sess, id, prereqID); err != nil {
				return err
			}
		}

		updated, err = s.reload(ctx, sess, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.afterMutation(ctx, "update_course", zap.String("course_id", id))
	return updated, nil
}

// Delete removes a course that no other course requires and nobody is enrolled in.
func (s *CatalogService) Delete(ctx context.Context, id string) error {
	err := s.store.Update(ctx, []string{repository.LockCatalog, repository.CourseLock(id)}, func(sess repository.Session) error {
		course, err := s.findCourse(ctx, sess, id)
		if err != nil {
			return err
		}
		if len(course.DependentIDs) > 0 {
			return appErrors.Clone(appErrors.ErrCourseHasDependents,
				fmt.Sprintf("course %s is a prerequisite of %d course(s)", course.Code, len(course.DependentIDs)))
		}
		active, err := sess.Enrollments().CountActiveByCourse(ctx, id)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal, "failed to count course enrollments")
		}
		if active > 0 {
			return appErrors.Clone(appErrors.ErrCourseHasEnrollments,
				fmt.Sprintf("course %s has %d active enrollment(s)", course.Code, active))
		}
		if err := sess.Courses().Delete(ctx, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrCourseNotFound, "course not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal, "failed to delete course")
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.afterMutation(ctx, "delete_course", zap.String("course_id", id))
	return nil
}

// AddPrerequisite records that courseID requires prerequisiteID.
func (s *CatalogService) AddPrerequisite(ctx context.Context, courseID, prerequisiteID string) (*models.Course, error) {
	var course *models.Course
	err := s.store.Update(ctx, []string{repository.LockCatalog}, func(sess repository.Session) error {
		if err := s.linkPrerequisite(ctx, sess, courseID, prerequisiteID); err != nil {
			return err
		}
		var err error
		course, err = s.reload(ctx, sess, courseID)
		return err
	})
	if err != nil {
		s.metrics.RecordGraphMutation("add_prerequisite", reasonOf(err))
		return nil, err
	}
	s.metrics.RecordGraphMutation("add_prerequisite", "ok")
	s.afterMutation(ctx, "add_prerequisite", zap.String("course_id", courseID), zap.String("prerequisite_id", prerequisiteID))
	return course, nil
}

// RemovePrerequisite drops an existing prerequisite edge.
func (s *CatalogService) RemovePrerequisite(ctx context.Context, courseID, prerequisiteID string) (*models.Course, error) {
	var course *models.Course
	err := s.store.Update(ctx, []string{repository.LockCatalog}, func(sess repository.Session) error {
		if _, err := s.findCourse(ctx, sess, courseID); err != nil {
			return err
		}
		if err := sess.Courses().RemovePrerequisite(ctx, courseID, prerequisiteID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrPrerequisiteNotFound, "course does not require this prerequisite")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal, "failed to remove prerequisite")
		}
		var err error
		course, err = s.reload(ctx, sess, courseID)
		return err
	})
	if err != nil {
		s.metrics.RecordGraphMutation("remove_prerequisite", reasonOf(err))
		return nil, err
	}
	s.metrics.RecordGraphMutation("remove_prerequisite", "ok")
	s.afterMutation(ctx, "remove_prerequisite", zap.String("course_id", courseID), zap.String("prerequisite_id", prerequisiteID))
	return course, nil
}

// CheckCycle reports whether adding prerequisiteID to courseID would close a cycle.
func (s *CatalogService) CheckCycle(ctx context.Context, courseID, prerequisiteID string) (*models.CycleCheckResult, error) {
	result := &models.CycleCheckResult{CourseID: courseID, PrerequisiteID: prerequisiteID}
	err := s.store.View(ctx, func(sess repository.Session) error {
		graph, err := sess.Courses().Graph(ctx)
		if err != nil {
			return err
		}
		result.WouldCycle = catalog.WouldCreateCycle(graph, courseID, prerequisiteID)
		return nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal, "failed to load prerequisite graph")
	}
	return result, nil
}

// AssignTeacher makes teacherID responsible for courseID.
func (s *CatalogService) AssignTeacher(ctx context.Context, courseID, teacherID string) (*models.Course, error) {
	var course *models.Course
	err := s.store.Update(ctx, []string{repository.TeacherLock(teacherID)}, func(sess repository.Session) error {
		current, err := s.findCourse(ctx, sess, courseID)
		if err != nil {
			return err
		}
		if sameTeacher(current.TeacherID, teacherID) {
			course = current
			return nil
		}
		if err := s.ensureTeacherAssignable(ctx, sess, teacherID); err != nil {
			return err
		}
		if err := sess.Courses().SetTeacher(ctx, courseID, &teacherID); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal, "failed to assign teacher")
		}
		course, err = s.reload(ctx, sess, courseID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.afterMutation(ctx, "assign_teacher", zap.String("course_id", courseID), zap.String("teacher_id", teacherID))
	return course, nil
}

// UnassignTeacher clears the teacher of a course.
func (s *CatalogService) UnassignTeacher(ctx context.Context, courseID string) (*models.Course, error) {
	var course *models.Course
	err := s.store.Update(ctx, []string{repository.LockCatalog}, func(sess repository.Session) error {
		if _, err := s.findCourse(ctx, sess, courseID); err != nil {
			return err
		}
		if err := sess.Courses().SetTeacher(ctx, courseID, nil); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal, "failed to unassign teacher")
		}
		var err error
		course, err = s.reload(ctx, sess, courseID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.afterMutation(ctx, "unassign_teacher", zap.String("course_id", courseID))
	return course, nil
}

// ListByTeacher returns the courses a teacher is responsible for.
func (s *CatalogService) ListByTeacher(ctx context.Context, teacherID string) ([]models.Course, error) {
	var courses []models.Course
	err := s.store.View(ctx, func(sess repository.Session) error {
		if _, err := sess.Teachers().FindByID(ctx, teacherID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrTeacherNotFound, "teacher not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal, "failed to load teacher")
		}
		var err error
		courses, err = sess.Courses().ListByTeacher(ctx, teacherID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal, "failed to list teacher courses")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if courses == nil {
		courses = []models.Course{}
	}
	return courses, nil
}

func (s *CatalogService) linkPrerequisite(ctx context.Context, sess repository.Session, courseID, prerequisiteID string) error {
	course, err := s.findCourse(ctx, sess, courseID)
	if err != nil {
		return err
	}
	if _, err := sess.Courses().FindByID(ctx, prerequisiteID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrCourseNotFound, "prerequisite course not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal, "failed to load prerequisite course")
	}
	if courseID == prerequisiteID {
		return appErrors.Clone(appErrors.ErrSelfPrerequisite, "")
	}
	for _, existing := range course.PrerequisiteIDs {
		if existing == prerequisiteID {
			return appErrors.Clone(appErrors.ErrDuplicatePrerequisite, "")
		}
	}

	graph, err := sess.Courses().Graph(ctx)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal, "failed to load prerequisite graph")
	}
	if catalog.WouldCreateCycle(graph, courseID, prerequisiteID) {
		s.logger.Info("prerequisite rejected", zap.String("course_id", courseID), zap.String("prerequisite_id", prerequisiteID), zap.String("reason", appErrors.ErrPrerequisiteCycle.Code))
		return appErrors.Clone(appErrors.ErrPrerequisiteCycle, "")
	}

	if err := sess.Courses().AddPrerequisite(ctx, courseID, prerequisiteID); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return appErrors.Clone(appErrors.ErrDuplicatePrerequisite, "")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal, "failed to add prerequisite")
	}
	return nil
}

func (s *CatalogService) ensureTeacherAssignable(ctx context.Context, sess repository.Session, teacherID string) error {
	teacher, err := sess.Teachers().FindByID(ctx, teacherID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrTeacherNotFound, "teacher not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal, "failed to load teacher")
	}
	if !teacher.Active {
		return appErrors.Clone(appErrors.ErrTeacherInactive, fmt.Sprintf("teacher %s is inactive", teacher.FullName))
	}
	count, err := sess.Courses().CountByTeacher(ctx, teacherID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal, "failed to count teacher courses")
	}
	if !catalog.CanAssignTeacher(count) {
		return appErrors.Clone(appErrors.ErrTeacherAtCapacity,
			fmt.Sprintf("teacher already holds %d courses (maximum %d)", count, catalog.MaxCoursesPerTeacher))
	}
	return nil
}

func (s *CatalogService) findCourse(ctx context.Context, sess repository.Session, id string) (*models.Course, error) {
	course, err := sess.Courses().FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrCourseNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal, "failed to load course")
	}
	return course, nil
}

func (s *CatalogService) reload(ctx context.Context, sess repository.Session, id string) (*models.Course, error) {
	return s.findCourse(ctx, sess, id)
}

func (s *CatalogService) validateCourse(code string, credits int) error {
	if !catalog.ValidCode(code) {
		return appErrors.Clone(appErrors.ErrInvalidCourseCode, "")
	}
	if !catalog.ValidCredits(credits) {
		return appErrors.Clone(appErrors.ErrInvalidCredits, "")
	}
	return nil
}

// fill caches a value read at generation gen. It skips the write when a
// mutation committed after the read, and drops the entry again when one
// committed while the write was in flight.
func (s *CatalogService) fill(ctx context.Context, key string, value interface{}, gen uint64) {
	if s.generation.Load() != gen {
		return
	}
	_ = s.cache.Set(ctx, key, value, s.cacheTTL)
	if s.generation.Load() != gen {
		_ = s.cache.Invalidate(ctx, key)
	}
}

func (s *CatalogService) afterMutation(ctx context.Context, op string, fields ...zap.Field) {
	s.generation.Add(1)
	_ = s.cache.Invalidate(ctx, catalogCachePattern)
	s.logger.Info("catalog updated", append([]zap.Field{zap.String("operation", op)}, fields...)...)
}

func sameTeacher(current *string, teacherID string) bool {
	return current != nil && *current == teacherID
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func reasonOf(err error) string {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return strings.ToLower(appErr.Code)
	}
	return "error"
}
