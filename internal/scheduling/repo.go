package scheduling

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Repository persists scheduling data in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const lessonColumns = `
	l.id, l.student_id, COALESCE(s.name, ''), l.teacher_id, l.school_id,
	l.scheduled_time, l.duration_min, l.status, l.reminder_sent_at, l.created_at`

// ListSchedulableStudents returns the teacher's current students including
// their recurring-slot fields. Unscheduled students come back too; the
// engine filters on Schedulable.
func (r *Repository) ListSchedulableStudents(ctx context.Context, teacherID string) ([]Student, error) {
	if teacherID == "" {
		return nil, errors.New("teacher id required")
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, COALESCE(instrument, ''), status, teacher_id, school_id,
		       lesson_day, lesson_time, lesson_time_end, lesson_duration, lesson_type_id
		FROM students
		WHERE teacher_id = $1 AND status = 'Current'
		ORDER BY name
	`, teacherID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Student
	for rows.Next() {
		var s Student
		if err := rows.Scan(&s.ID, &s.Name, &s.Instrument, &s.Status, &s.TeacherID, &s.SchoolID,
			&s.LessonDay, &s.LessonTime, &s.LessonTimeEnd, &s.LessonDuration, &s.LessonTypeID); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListLessonsInRange returns the teacher's lessons with scheduled_time inside
// [from, to], optionally narrowed to a set of students.
func (r *Repository) ListLessonsInRange(ctx context.Context, teacherID string, studentIDs []string, from, to time.Time) ([]Lesson, error) {
	query := `SELECT ` + lessonColumns + `
		FROM lessons l
		LEFT JOIN students s ON s.id = l.student_id
		WHERE l.teacher_id = $1 AND l.scheduled_time >= $2 AND l.scheduled_time <= $3`
	args := []any{teacherID, from, to}
	if len(studentIDs) > 0 {
		query += " AND l.student_id IN (" + placeholders(len(studentIDs), len(args)+1) + ")"
		for _, id := range studentIDs {
			args = append(args, id)
		}
	}
	query += " ORDER BY l.scheduled_time"
	return r.queryLessons(ctx, query, args...)
}

// ListLessonsByIDs returns lessons by id, re-asserting teacher ownership.
func (r *Repository) ListLessonsByIDs(ctx context.Context, teacherID string, ids []string) ([]Lesson, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + lessonColumns + `
		FROM lessons l
		LEFT JOIN students s ON s.id = l.student_id
		WHERE l.teacher_id = $1 AND l.id IN (` + placeholders(len(ids), 2) + `)
		ORDER BY l.scheduled_time`
	args := make([]any, 0, len(ids)+1)
	args = append(args, teacherID)
	for _, id := range ids {
		args = append(args, id)
	}
	return r.queryLessons(ctx, query, args...)
}

// InsertLessons writes one batch of lessons inside a transaction, so a batch
// either lands whole or not at all.
func (r *Repository) InsertLessons(ctx context.Context, lessons []Lesson) ([]Lesson, error) {
	if len(lessons) == 0 {
		return nil, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	out := make([]Lesson, 0, len(lessons))
	for _, l := range lessons {
		if l.ID == "" {
			l.ID = uuid.NewString()
		}
		if l.Status == "" {
			l.Status = StatusScheduled
		}
		row := tx.QueryRowContext(ctx, `
			INSERT INTO lessons (id, student_id, teacher_id, school_id, scheduled_time, duration_min, status)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
			RETURNING created_at
		`, l.ID, l.StudentID, l.TeacherID, l.SchoolID, l.ScheduledTime, l.DurationMin, l.Status)
		if err := row.Scan(&l.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateLessonTime moves one lesson to a new absolute time.
func (r *Repository) UpdateLessonTime(ctx context.Context, teacherID, lessonID string, scheduled time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE lessons SET scheduled_time = $3 WHERE teacher_id = $1 AND id = $2
	`, teacherID, lessonID, scheduled)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("lesson %s not found for teacher", lessonID)
	}
	return nil
}

// DeleteLessons removes lessons by id, scoped to the owning teacher.
func (r *Repository) DeleteLessons(ctx context.Context, teacherID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	query := `DELETE FROM lessons WHERE teacher_id = $1 AND id IN (` + placeholders(len(ids), 2) + `)`
	args := make([]any, 0, len(ids)+1)
	args = append(args, teacherID)
	for _, id := range ids {
		args = append(args, id)
	}
	_, err := r.db.ExecContext(ctx, query, args...)
	return err
}

// DeleteCalendarEvents removes the calendar mirror rows linked to the given
// lessons.
func (r *Repository) DeleteCalendarEvents(ctx context.Context, lessonIDs []string) error {
	if len(lessonIDs) == 0 {
		return nil
	}
	query := `DELETE FROM calendar_events WHERE linked_table = $1 AND linked_id IN (` + placeholders(len(lessonIDs), 2) + `)`
	args := make([]any, 0, len(lessonIDs)+1)
	args = append(args, LinkedTableLessons)
	for _, id := range lessonIDs {
		args = append(args, id)
	}
	_, err := r.db.ExecContext(ctx, query, args...)
	return err
}

// InsertCalendarEvents writes calendar mirror rows in one transaction.
func (r *Repository) InsertCalendarEvents(ctx context.Context, events []CalendarEvent) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range events {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO calendar_events (id, title, event_type, start_time, end_time, teacher_id, school_id, linked_id, linked_table, location, notes)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		`, e.ID, e.Title, e.EventType, e.StartTime, e.EndTime, e.TeacherID, e.SchoolID, e.LinkedID, e.LinkedTable, e.Location, e.Notes); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListLessonsByIDsAnyTeacher returns lessons by id without a teacher filter.
// Only the reminder worker uses this; API paths always scope by teacher.
func (r *Repository) ListLessonsByIDsAnyTeacher(ctx context.Context, ids []string) ([]Lesson, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + lessonColumns + `
		FROM lessons l
		LEFT JOIN students s ON s.id = l.student_id
		WHERE l.id IN (` + placeholders(len(ids), 1) + `)
		ORDER BY l.scheduled_time`
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}
	return r.queryLessons(ctx, query, args...)
}

// ListUnremindedLessonsOn returns every teacher's still-scheduled lessons on
// the given calendar day that have not had a reminder sent. Used by the
// reminder worker.
func (r *Repository) ListUnremindedLessonsOn(ctx context.Context, day time.Time) ([]Lesson, error) {
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	to := from.Add(24 * time.Hour)
	return r.queryLessons(ctx, `SELECT `+lessonColumns+`
		FROM lessons l
		LEFT JOIN students s ON s.id = l.student_id
		WHERE l.status = 'scheduled' AND l.reminder_sent_at IS NULL
		  AND l.scheduled_time >= $1 AND l.scheduled_time < $2
		ORDER BY l.scheduled_time`, from, to)
}

// MarkLessonReminded stamps a lesson once its reminder message was handled.
func (r *Repository) MarkLessonReminded(ctx context.Context, lessonID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE lessons SET reminder_sent_at = NOW() WHERE id = $1 AND reminder_sent_at IS NULL
	`, lessonID)
	return err
}

func (r *Repository) queryLessons(ctx context.Context, query string, args ...any) ([]Lesson, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Lesson
	for rows.Next() {
		var l Lesson
		if err := rows.Scan(&l.ID, &l.StudentID, &l.StudentName, &l.TeacherID, &l.SchoolID,
			&l.ScheduledTime, &l.DurationMin, &l.Status, &l.ReminderSentAt, &l.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// placeholders renders "$n,$n+1,..." for IN clauses.
func placeholders(count, firstIndex int) string {
	parts := make([]string, count)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", firstIndex+i)
	}
	return strings.Join(parts, ",")
}
