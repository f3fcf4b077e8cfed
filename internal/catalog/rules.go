package catalog

import "regexp"

// MaxCoursesPerTeacher bounds how many courses a single teacher may hold.
const MaxCoursesPerTeacher = 4

// Credit bounds for a course.
const (
	MinCredits = 1
	MaxCredits = 10
)

// Name length bounds for a course.
const (
	MinNameLength = 3
	MaxNameLength = 100
)

var codePattern = regexp.MustCompile(`^[A-Z]{3}[0-9]{3}$`)

// CanAssignTeacher reports whether a teacher currently holding current courses may take one more.
func CanAssignTeacher(current int) bool {
	return current < MaxCoursesPerTeacher
}

// ValidCode reports whether code is three uppercase letters followed by three digits.
func ValidCode(code string) bool {
	return codePattern.MatchString(code)
}

// ValidCredits reports whether credits is within the allowed range.
func ValidCredits(credits int) bool {
	return credits >= MinCredits && credits <= MaxCredits
}

// ValidName reports whether the display name length is within bounds.
func ValidName(name string) bool {
	n := len([]rune(name))
	return n >= MinNameLength && n <= MaxNameLength
}
