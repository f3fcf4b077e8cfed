package memory

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/uni-enrollment-api/internal/catalog"
	"github.com/noah-isme/uni-enrollment-api/internal/models"
	"github.com/noah-isme/uni-enrollment-api/internal/repository"
)

type courseStore struct {
	*session
}

func (c *courseStore) hydrate(course models.Course) models.Course {
	course.PrerequisiteIDs = c.st.graph.Prerequisites(course.ID)
	course.DependentIDs = c.st.graph.Dependents(course.ID)
	if course.TeacherID != nil {
		if teacher, ok := c.st.teachers[*course.TeacherID]; ok {
			name := teacher.FullName
			course.TeacherName = &name
		}
	}
	return course
}

func (c *courseStore) FindByID(ctx context.Context, id string) (*models.Course, error) {
	course, ok := c.st.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	out := c.hydrate(course)
	return &out, nil
}

func (c *courseStore) FindByCode(ctx context.Context, code string) (*models.Course, error) {
	for _, course := range c.st.courses {
		if course.Code == code {
			out := c.hydrate(course)
			return &out, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (c *courseStore) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	search := strings.ToLower(filter.Search)
	matched := make([]models.Course, 0, len(c.st.courses))
	for _, course := range c.st.courses {
		if search != "" && !strings.Contains(strings.ToLower(course.Code), search) && !strings.Contains(strings.ToLower(course.Name), search) {
			continue
		}
		if filter.TeacherID != "" && (course.TeacherID == nil || *course.TeacherID != filter.TeacherID) {
			continue
		}
		matched = append(matched, course)
	}

	desc := strings.EqualFold(filter.SortOrder, "DESC")
	sort.Slice(matched, func(i, j int) bool {
		var less bool
		switch filter.SortBy {
		case "name":
			less = matched[i].Name < matched[j].Name
		case "credits":
			less = matched[i].Credits < matched[j].Credits
		case "created_at":
			less = matched[i].CreatedAt.Before(matched[j].CreatedAt)
		default:
			less = matched[i].Code < matched[j].Code
		}
		if desc {
			return !less
		}
		return less
	})

	start, end := pageBounds(filter.Page, filter.PageSize, len(matched))
	page := make([]models.Course, 0, end-start)
	for _, course := range matched[start:end] {
		page = append(page, c.hydrate(course))
	}
	return page, len(matched), nil
}

func (c *courseStore) ListByTeacher(ctx context.Context, teacherID string) ([]models.Course, error) {
	var out []models.Course
	for _, course := range c.st.courses {
		if course.TeacherID != nil && *course.TeacherID == teacherID {
			out = append(out, c.hydrate(course))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (c *courseStore) ExistsByCode(ctx context.Context, code, excludeID string) (bool, error) {
	for id, course := range c.st.courses {
		if course.Code == code && id != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (c *courseStore) Create(ctx context.Context, course *models.Course) error {
	if err := c.writable(); err != nil {
		return err
	}
	if exists, _ := c.ExistsByCode(ctx, course.Code, ""); exists {
		return repository.ErrDuplicate
	}
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if course.CreatedAt.IsZero() {
		course.CreatedAt = now
	}
	course.UpdatedAt = now
	stored := *course
	stored.PrerequisiteIDs = nil
	stored.DependentIDs = nil
	stored.TeacherName = nil
	c.st.courses[course.ID] = stored
	c.st.graph.AddCourse(course.ID)
	return nil
}

func (c *courseStore) Update(ctx context.Context, course *models.Course) error {
	if err := c.writable(); err != nil {
		return err
	}
	current, ok := c.st.courses[course.ID]
	if !ok {
		return sql.ErrNoRows
	}
	if exists, _ := c.ExistsByCode(ctx, course.Code, course.ID); exists {
		return repository.ErrDuplicate
	}
	current.Code = course.Code
	current.Name = course.Name
	current.Credits = course.Credits
	current.TeacherID = course.TeacherID
	current.UpdatedAt = time.Now().UTC()
	course.UpdatedAt = current.UpdatedAt
	c.st.courses[course.ID] = current
	return nil
}

func (c *courseStore) Delete(ctx context.Context, id string) error {
	if err := c.writable(); err != nil {
		return err
	}
	if _, ok := c.st.courses[id]; !ok {
		return sql.ErrNoRows
	}
	if !c.st.graph.RemoveCourse(id) {
		return ErrHasDependents
	}
	delete(c.st.courses, id)
	// Mirrors ON DELETE CASCADE on enrollments.course_id.
	for eid, e := range c.st.enrollments {
		if e.CourseID == id {
			delete(c.st.enrollments, eid)
		}
	}
	return nil
}

func (c *courseStore) SetTeacher(ctx context.Context, courseID string, teacherID *string) error {
	if err := c.writable(); err != nil {
		return err
	}
	course, ok := c.st.courses[courseID]
	if !ok {
		return sql.ErrNoRows
	}
	course.TeacherID = teacherID
	course.UpdatedAt = time.Now().UTC()
	c.st.courses[courseID] = course
	return nil
}

func (c *courseStore) CountByTeacher(ctx context.Context, teacherID string) (int, error) {
	count := 0
	for _, course := range c.st.courses {
		if course.TeacherID != nil && *course.TeacherID == teacherID {
			count++
		}
	}
	return count, nil
}

func (c *courseStore) AddPrerequisite(ctx context.Context, courseID, prerequisiteID string) error {
	if err := c.writable(); err != nil {
		return err
	}
	if c.st.graph.HasEdge(courseID, prerequisiteID) {
		return repository.ErrDuplicate
	}
	if !c.st.graph.AddEdge(courseID, prerequisiteID) {
		return sql.ErrNoRows
	}
	return nil
}

func (c *courseStore) RemovePrerequisite(ctx context.Context, courseID, prerequisiteID string) error {
	if err := c.writable(); err != nil {
		return err
	}
	if !c.st.graph.RemoveEdge(courseID, prerequisiteID) {
		return sql.ErrNoRows
	}
	return nil
}

func (c *courseStore) Graph(ctx context.Context) (catalog.Graph, error) {
	return c.st.graph, nil
}
