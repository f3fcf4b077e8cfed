package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/uni-enrollment-api/internal/catalog"
	"github.com/noah-isme/uni-enrollment-api/internal/models"
)

const courseColumns = `c.id, c.code, c.name, c.credits, c.teacher_id, t.full_name AS teacher_name, c.created_at, c.updated_at`

const courseFrom = `FROM courses c LEFT JOIN teachers t ON t.id = c.teacher_id`

// CourseRepository persists courses and their prerequisite edges.
type CourseRepository struct {
	db sqlx.ExtContext
}

// NewCourseRepository constructs the repository over a pool or a transaction.
func NewCourseRepository(db sqlx.ExtContext) *CourseRepository {
	return &CourseRepository{db: db}
}

// FindByID returns a course with its prerequisite and dependent ids.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	query := fmt.Sprintf("SELECT %s %s WHERE c.id = $1", courseColumns, courseFrom)
	var course models.Course
	if err := sqlx.GetContext(ctx, r.db, &course, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find course by id: %w", err)
	}
	if err := r.attachEdges(ctx, []*models.Course{&course}); err != nil {
		return nil, err
	}
	return &course, nil
}

// FindByCode returns a course by its unique code.
func (r *CourseRepository) FindByCode(ctx context.Context, code string) (*models.Course, error) {
	query := fmt.Sprintf("SELECT %s %s WHERE c.code = $1", courseColumns, courseFrom)
	var course models.Course
	if err := sqlx.GetContext(ctx, r.db, &course, query, code); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find course by code: %w", err)
	}
	if err := r.attachEdges(ctx, []*models.Course{&course}); err != nil {
		return nil, err
	}
	return &course, nil
}

// List returns paginated courses with their edges.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	var conditions []string
	var args []interface{}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(c.code ILIKE $%d OR c.name ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}
	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("c.teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"code":       "c.code",
		"name":       "c.name",
		"credits":    "c.credits",
		"created_at": "c.created_at",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "c.code"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s%s ORDER BY %s %s LIMIT %d OFFSET %d", courseColumns, courseFrom, clause, orderBy, order, size, offset)
	var courses []models.Course
	if err := sqlx.SelectContext(ctx, r.db, &courses, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM courses c%s", clause)
	if err := sqlx.GetContext(ctx, r.db, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}

	ptrs := make([]*models.Course, len(courses))
	for i := range courses {
		ptrs[i] = &courses[i]
	}
	if err := r.attachEdges(ctx, ptrs); err != nil {
		return nil, 0, err
	}
	return courses, total, nil
}

// ListByTeacher returns every course assigned to a teacher.
func (r *CourseRepository) ListByTeacher(ctx context.Context, teacherID string) ([]models.Course, error) {
	query := fmt.Sprintf("SELECT %s %s WHERE c.teacher_id = $1 ORDER BY c.code ASC", courseColumns, courseFrom)
	var courses []models.Course
	if err := sqlx.SelectContext(ctx, r.db, &courses, query, teacherID); err != nil {
		return nil, fmt.Errorf("list teacher courses: %w", err)
	}
	ptrs := make([]*models.Course, len(courses))
	for i := range courses {
		ptrs[i] = &courses[i]
	}
	if err := r.attachEdges(ctx, ptrs); err != nil {
		return nil, err
	}
	return courses, nil
}

// ExistsByCode reports whether another course already uses code.
func (r *CourseRepository) ExistsByCode(ctx context.Context, code, excludeID string) (bool, error) {
	query := "SELECT 1 FROM courses WHERE code = $1"
	args := []interface{}{code}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	query += " LIMIT 1"
	var exists int
	if err := sqlx.GetContext(ctx, r.db, &exists, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check course code: %w", err)
	}
	return true, nil
}

// Create inserts a course row. Prerequisite edges are added separately.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if course.CreatedAt.IsZero() {
		course.CreatedAt = now
	}
	course.UpdatedAt = now
	const query = `INSERT INTO courses (id, code, name, credits, teacher_id, created_at, updated_at)
        VALUES (:id, :code, :name, :credits, :teacher_id, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.db, query, course); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// Update writes the scalar attributes of a course.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()
	const query = `UPDATE courses SET code = :code, name = :name, credits = :credits, teacher_id = :teacher_id, updated_at = :updated_at WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, r.db, query, course)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("update course: %w", err)
	}
	return requireAffected(res)
}

// Delete removes a course and its own prerequisite edges.
func (r *CourseRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM course_prerequisites WHERE course_id = $1`, id); err != nil {
		return fmt.Errorf("delete course prerequisites: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM courses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	return requireAffected(res)
}

// SetTeacher assigns or clears the teacher of a course.
func (r *CourseRepository) SetTeacher(ctx context.Context, courseID string, teacherID *string) error {
	const query = `UPDATE courses SET teacher_id = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, courseID, teacherID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set course teacher: %w", err)
	}
	return requireAffected(res)
}

// CountByTeacher returns how many courses a teacher holds.
func (r *CourseRepository) CountByTeacher(ctx context.Context, teacherID string) (int, error) {
	var count int
	if err := sqlx.GetContext(ctx, r.db, &count, `SELECT COUNT(*) FROM courses WHERE teacher_id = $1`, teacherID); err != nil {
		return 0, fmt.Errorf("count teacher courses: %w", err)
	}
	return count, nil
}

// AddPrerequisite stores the edge courseID -> prerequisiteID.
func (r *CourseRepository) AddPrerequisite(ctx context.Context, courseID, prerequisiteID string) error {
	const query = `INSERT INTO course_prerequisites (course_id, prerequisite_id) VALUES ($1, $2)`
	if _, err := r.db.ExecContext(ctx, query, courseID, prerequisiteID); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("add prerequisite: %w", err)
	}
	return nil
}

// RemovePrerequisite deletes an edge, returning sql.ErrNoRows when it did not exist.
func (r *CourseRepository) RemovePrerequisite(ctx context.Context, courseID, prerequisiteID string) error {
	const query = `DELETE FROM course_prerequisites WHERE course_id = $1 AND prerequisite_id = $2`
	res, err := r.db.ExecContext(ctx, query, courseID, prerequisiteID)
	if err != nil {
		return fmt.Errorf("remove prerequisite: %w", err)
	}
	return requireAffected(res)
}

// Graph loads the full prerequisite relation.
func (r *CourseRepository) Graph(ctx context.Context) (catalog.Graph, error) {
	var ids []string
	if err := sqlx.SelectContext(ctx, r.db, &ids, `SELECT id FROM courses`); err != nil {
		return nil, fmt.Errorf("load course ids: %w", err)
	}
	var rows []models.PrerequisiteEdge
	if err := sqlx.SelectContext(ctx, r.db, &rows, `SELECT course_id, prerequisite_id FROM course_prerequisites`); err != nil {
		return nil, fmt.Errorf("load prerequisite edges: %w", err)
	}
	edges := make([][2]string, len(rows))
	for i, row := range rows {
		edges[i] = [2]string{row.CourseID, row.PrerequisiteID}
	}
	return catalog.NewEdgeSet(ids, edges), nil
}

func (r *CourseRepository) attachEdges(ctx context.Context, courses []*models.Course) error {
	if len(courses) == 0 {
		return nil
	}
	ids := make([]string, len(courses))
	index := make(map[string]*models.Course, len(courses))
	for i, c := range courses {
		ids[i] = c.ID
		index[c.ID] = c
		c.PrerequisiteIDs = []string{}
		c.DependentIDs = []string{}
	}

	const query = `SELECT course_id, prerequisite_id FROM course_prerequisites
        WHERE course_id = ANY($1) OR prerequisite_id = ANY($1) ORDER BY course_id, prerequisite_id`
	var edges []models.PrerequisiteEdge
	if err := sqlx.SelectContext(ctx, r.db, &edges, query, pq.Array(ids)); err != nil {
		return fmt.Errorf("load course edges: %w", err)
	}
	for _, e := range edges {
		if c, ok := index[e.CourseID]; ok {
			c.PrerequisiteIDs = append(c.PrerequisiteIDs, e.PrerequisiteID)
		}
		if c, ok := index[e.PrerequisiteID]; ok {
			c.DependentIDs = append(c.DependentIDs, e.CourseID)
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
