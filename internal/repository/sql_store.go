package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// SQLStore implements Store on PostgreSQL. Update runs inside one transaction
// and takes a transaction-scoped advisory lock per key before calling fn.
type SQLStore struct {
	db *sqlx.DB
}

// NewSQLStore constructs the store.
func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

type sqlSession struct {
	courses     *CourseRepository
	teachers    *TeacherRepository
	students    *StudentRepository
	enrollments *EnrollmentRepository
}

func newSQLSession(ext sqlx.ExtContext) *sqlSession {
	return &sqlSession{
		courses:     NewCourseRepository(ext),
		teachers:    NewTeacherRepository(ext),
		students:    NewStudentRepository(ext),
		enrollments: NewEnrollmentRepository(ext),
	}
}

func (s *sqlSession) Courses() CourseStore         { return s.courses }
func (s *sqlSession) Teachers() TeacherLookup      { return s.teachers }
func (s *sqlSession) Students() StudentLookup      { return s.students }
func (s *sqlSession) Enrollments() EnrollmentStore { return s.enrollments }

// View runs fn against the pool without a transaction.
func (s *SQLStore) View(ctx context.Context, fn func(Session) error) error {
	return fn(newSQLSession(s.db))
}

// Update runs fn in a transaction holding the requested advisory locks.
func (s *SQLStore) Update(ctx context.Context, locks []string, fn func(Session) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin unit of work: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, key := range NormalizeLocks(locks) {
		if _, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
			return fmt.Errorf("acquire lock %s: %w", key, err)
		}
	}

	if err = fn(newSQLSession(tx)); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit unit of work: %w", err)
	}
	return nil
}
