package notes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Repository persists lesson_notes in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// FindNoteByLesson returns the note linked to a lesson, or nil when none
// exists yet.
func (r *Repository) FindNoteByLesson(ctx context.Context, lessonID string) (*Note, error) {
	var n Note
	err := r.db.QueryRowContext(ctx, `
		SELECT id, lesson_id, teacher_id, student_id, lesson_datetime, title
		FROM lesson_notes WHERE lesson_id = $1
	`, lessonID).Scan(&n.ID, &n.LessonID, &n.TeacherID, &n.StudentID, &n.LessonDatetime, &n.Title)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// CreateNote inserts a note with an empty document body.
func (r *Repository) CreateNote(ctx context.Context, n Note) (*Note, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO lesson_notes (id, lesson_id, teacher_id, student_id, lesson_datetime, title, content)
		VALUES ($1,$2,$3,$4,$5,$6,'{"type":"doc","content":[]}')
	`, n.ID, n.LessonID, n.TeacherID, n.StudentID, n.LessonDatetime, n.Title)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// GetLessonRef loads the lesson fields needed to title a new note,
// re-asserting teacher ownership.
func (r *Repository) GetLessonRef(ctx context.Context, teacherID, lessonID string) (*LessonRef, error) {
	var ref LessonRef
	err := r.db.QueryRowContext(ctx, `
		SELECT l.id, l.teacher_id, l.student_id, COALESCE(s.name, ''), l.scheduled_time
		FROM lessons l
		LEFT JOIN students s ON s.id = l.student_id
		WHERE l.teacher_id = $1 AND l.id = $2
	`, teacherID, lessonID).Scan(&ref.ID, &ref.TeacherID, &ref.StudentID, &ref.StudentName, &ref.ScheduledTime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("lesson %s not found for teacher", lessonID)
	}
	if err != nil {
		return nil, err
	}
	return &ref, nil
}
