package models

import "time"

// Course represents a catalog course ("materia") with its prerequisite relation.
type Course struct {
	ID          string    `db:"id" json:"id"`
	Code        string    `db:"code" json:"code"`
	Name        string    `db:"name" json:"name"`
	Credits     int       `db:"credits" json:"credits"`
	TeacherID   *string   `db:"teacher_id" json:"teacher_id,omitempty"`
	TeacherName *string   `db:"teacher_name" json:"teacher_name,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`

	// PrerequisiteIDs lists the courses that must be approved before enrolling.
	PrerequisiteIDs []string `db:"-" json:"prerequisite_ids"`
	// DependentIDs lists the courses that require this one. Derived from PrerequisiteIDs.
	DependentIDs []string `db:"-" json:"dependent_ids"`
}

// CourseFilter captures supported filters for listing courses.
type CourseFilter struct {
	Search    string
	TeacherID string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// PrerequisiteEdge is a single row of the prerequisite relation: CourseID requires PrerequisiteID.
type PrerequisiteEdge struct {
	CourseID       string `db:"course_id" json:"course_id"`
	PrerequisiteID string `db:"prerequisite_id" json:"prerequisite_id"`
}

// CreateCourseRequest is the payload for registering a course.
type CreateCourseRequest struct {
	Code            string   `json:"code" validate:"required,course_code"`
	Name            string   `json:"name" validate:"required,min=3,max=100"`
	Credits         int      `json:"credits" validate:"required,min=1,max=10"`
	TeacherID       *string  `json:"teacher_id" validate:"omitempty"`
	PrerequisiteIDs []string `json:"prerequisite_ids" validate:"omitempty,dive,required"`
}

// UpdateCourseRequest replaces the mutable attributes of a course, including its prerequisite set.
type UpdateCourseRequest struct {
	Code            string   `json:"code" validate:"required,course_code"`
	Name            string   `json:"name" validate:"required,min=3,max=100"`
	Credits         int      `json:"credits" validate:"required,min=1,max=10"`
	TeacherID       *string  `json:"teacher_id" validate:"omitempty"`
	PrerequisiteIDs []string `json:"prerequisite_ids" validate:"omitempty,dive,required"`
}

// CycleCheckResult reports whether adding an edge would close a cycle.
type CycleCheckResult struct {
	CourseID       string `json:"course_id"`
	PrerequisiteID string `json:"prerequisite_id"`
	WouldCycle     bool   `json:"would_cycle"`
}
