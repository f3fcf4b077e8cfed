// Package memory implements repository.Store in process memory. Writers are
// serialised by a single mutex and work on a copy of the state that replaces
// the live state only when the unit of work succeeds.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/noah-isme/uni-enrollment-api/internal/catalog"
	"github.com/noah-isme/uni-enrollment-api/internal/models"
	"github.com/noah-isme/uni-enrollment-api/internal/repository"
)

var (
	// ErrReadOnly is returned when a write is attempted through a View session.
	ErrReadOnly = errors.New("memory: write attempted in read-only session")
	// ErrHasDependents is returned when deleting a course other courses still require.
	ErrHasDependents = errors.New("memory: course has dependents")
)

type state struct {
	courses     map[string]models.Course
	graph       *catalog.Adjacency
	teachers    map[string]models.Teacher
	students    map[string]models.Student
	enrollments map[string]models.Enrollment
}

func newState() *state {
	return &state{
		courses:     make(map[string]models.Course),
		graph:       catalog.NewAdjacency(),
		teachers:    make(map[string]models.Teacher),
		students:    make(map[string]models.Student),
		enrollments: make(map[string]models.Enrollment),
	}
}

func (s *state) clone() *state {
	out := &state{
		courses:     make(map[string]models.Course, len(s.courses)),
		graph:       s.graph.Clone(),
		teachers:    make(map[string]models.Teacher, len(s.teachers)),
		students:    make(map[string]models.Student, len(s.students)),
		enrollments: make(map[string]models.Enrollment, len(s.enrollments)),
	}
	for k, v := range s.courses {
		out.courses[k] = v
	}
	for k, v := range s.teachers {
		out.teachers[k] = v
	}
	for k, v := range s.students {
		out.students[k] = v
	}
	for k, v := range s.enrollments {
		out.enrollments[k] = v
	}
	return out
}

// Store is an in-memory repository.Store.
type Store struct {
	mu    sync.RWMutex
	state *state
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{state: newState()}
}

type session struct {
	st       *state
	readOnly bool
}

func (s *session) Courses() repository.CourseStore         { return &courseStore{session: s} }
func (s *session) Teachers() repository.TeacherLookup      { return &teacherLookup{session: s} }
func (s *session) Students() repository.StudentLookup      { return &studentLookup{session: s} }
func (s *session) Enrollments() repository.EnrollmentStore { return &enrollmentStore{session: s} }

func (s *session) writable() error {
	if s.readOnly {
		return ErrReadOnly
	}
	return nil
}

// View runs fn against the live state under the read lock.
func (s *Store) View(ctx context.Context, fn func(repository.Session) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&session{st: s.state, readOnly: true})
}

// Update runs fn on a copy of the state and publishes it when fn succeeds.
// Every writer holds the same mutex, which covers any lock key requested.
func (s *Store) Update(ctx context.Context, locks []string, fn func(repository.Session) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	working := s.state.clone()
	if err := fn(&session{st: working}); err != nil {
		return err
	}
	s.state = working
	return nil
}

// AddStudent seeds a student record.
func (s *Store) AddStudent(student models.Student) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.students[student.ID] = student
}

// AddTeacher seeds a teacher record.
func (s *Store) AddTeacher(teacher models.Teacher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.teachers[teacher.ID] = teacher
}
