package timetable

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"musicstudio/internal/scheduling"
)

// Repository persists timetable edits in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const studentColumns = `
	id, name, COALESCE(instrument, ''), status, teacher_id, school_id,
	lesson_day, lesson_time, lesson_time_end, lesson_duration, lesson_type_id`

// ListStudents returns the teacher's current students with their slot fields.
func (r *Repository) ListStudents(ctx context.Context, teacherID string) ([]scheduling.Student, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+studentColumns+`
		FROM students
		WHERE teacher_id = $1 AND status = 'Current'
		ORDER BY name
	`, teacherID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []scheduling.Student
	for rows.Next() {
		s, err := scanStudent(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetStudent returns one student row, re-asserting teacher ownership.
func (r *Repository) GetStudent(ctx context.Context, teacherID, studentID string) (scheduling.Student, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+studentColumns+`
		FROM students
		WHERE teacher_id = $1 AND id = $2
	`, teacherID, studentID)
	s, err := scanStudent(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return s, fmt.Errorf("student %s not found for teacher", studentID)
	}
	return s, err
}

// UpdateStudentSlot writes the non-nil patch fields in one UPDATE.
func (r *Repository) UpdateStudentSlot(ctx context.Context, teacherID, studentID string, patch SlotPatch) error {
	var sets []string
	args := []any{teacherID, studentID}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.Day != nil {
		add("lesson_day", *patch.Day)
	}
	if patch.Time != nil {
		add("lesson_time", *patch.Time)
	}
	if patch.TimeEnd != nil {
		add("lesson_time_end", *patch.TimeEnd)
	}
	if patch.Duration != nil {
		add("lesson_duration", *patch.Duration)
	}
	if patch.LessonTypeID != nil {
		add("lesson_type_id", *patch.LessonTypeID)
	}
	if len(sets) == 0 {
		return errors.New("empty slot patch")
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE students SET `+strings.Join(sets, ", ")+`
		WHERE teacher_id = $1 AND id = $2
	`, args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("student %s not found for teacher", studentID)
	}
	return nil
}

// ClearStudentSlot nulls every recurring-slot column in one statement.
func (r *Repository) ClearStudentSlot(ctx context.Context, teacherID, studentID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE students
		SET lesson_day = NULL, lesson_time = NULL, lesson_time_end = NULL,
		    lesson_duration = NULL, lesson_type_id = NULL
		WHERE teacher_id = $1 AND id = $2
	`, teacherID, studentID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("student %s not found for teacher", studentID)
	}
	return nil
}

// LessonTypeDuration looks up a lesson type's duration, scoped to the school.
func (r *Repository) LessonTypeDuration(ctx context.Context, schoolID, typeID string) (int, error) {
	var mins int
	err := r.db.QueryRowContext(ctx, `
		SELECT duration_min FROM lesson_types WHERE school_id = $1 AND id = $2
	`, schoolID, typeID).Scan(&mins)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("lesson type %s not found", typeID)
	}
	return mins, err
}

func scanStudent(scan func(...any) error) (scheduling.Student, error) {
	var s scheduling.Student
	err := scan(&s.ID, &s.Name, &s.Instrument, &s.Status, &s.TeacherID, &s.SchoolID,
		&s.LessonDay, &s.LessonTime, &s.LessonTimeEnd, &s.LessonDuration, &s.LessonTypeID)
	return s, err
}
