package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusPending   EnrollmentStatus = "PENDING"
	EnrollmentStatusApproved  EnrollmentStatus = "APPROVED"
	EnrollmentStatusRejected  EnrollmentStatus = "REJECTED"
	EnrollmentStatusCancelled EnrollmentStatus = "CANCELLED"
)

// Valid reports whether the status is one of the known values.
func (s EnrollmentStatus) Valid() bool {
	switch s {
	case EnrollmentStatusPending, EnrollmentStatusApproved, EnrollmentStatusRejected, EnrollmentStatusCancelled:
		return true
	}
	return false
}

// Active reports whether the enrollment counts towards uniqueness and the per-period limit.
func (s EnrollmentStatus) Active() bool {
	return s != EnrollmentStatusCancelled
}

// Enrollment captures a student's registration to a course within an academic period.
type Enrollment struct {
	ID         string           `db:"id" json:"id"`
	StudentID  string           `db:"student_id" json:"student_id"`
	CourseID   string           `db:"course_id" json:"course_id"`
	Period     string           `db:"period" json:"period"`
	EnrolledAt time.Time        `db:"enrolled_at" json:"enrolled_at"`
	Status     EnrollmentStatus `db:"status" json:"status"`
	UpdatedAt  time.Time        `db:"updated_at" json:"updated_at"`
}

// EnrollmentDetail enriches Enrollment with student and course info.
type EnrollmentDetail struct {
	Enrollment
	StudentName string `db:"student_name" json:"student_name"`
	StudentNIM  string `db:"student_nim" json:"student_nim"`
	CourseCode  string `db:"course_code" json:"course_code"`
	CourseName  string `db:"course_name" json:"course_name"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID string
	CourseID  string
	Period    string
	Status    EnrollmentStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// AdmitRequest is the payload for requesting admission into a course.
type AdmitRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	CourseID  string `json:"course_id" validate:"required"`
	Period    string `json:"period" validate:"required,max=20"`
}

// UpdateEnrollmentStatusRequest moves an enrollment to a new status.
type UpdateEnrollmentStatusRequest struct {
	Status EnrollmentStatus `json:"status" validate:"required,oneof=PENDING APPROVED REJECTED CANCELLED"`
}

// PrerequisiteReport lists which prerequisites of a course a student has and has not approved.
type PrerequisiteReport struct {
	StudentID string   `json:"student_id"`
	CourseID  string   `json:"course_id"`
	Satisfied bool     `json:"satisfied"`
	Approved  []string `json:"approved"`
	Missing   []string `json:"missing"`
}
