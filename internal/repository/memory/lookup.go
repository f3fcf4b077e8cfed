package memory

import (
	"context"
	"database/sql"

	"github.com/noah-isme/uni-enrollment-api/internal/models"
)

type studentLookup struct {
	*session
}

func (l *studentLookup) FindByID(ctx context.Context, id string) (*models.Student, error) {
	student, ok := l.st.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &student, nil
}

type teacherLookup struct {
	*session
}

func (l *teacherLookup) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	teacher, ok := l.st.teachers[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &teacher, nil
}
