package calendar

import (
	"context"
	"database/sql"
	"time"

	"musicstudio/internal/scheduling"
)

// Repository reads calendar_events from Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// ListEvents returns the teacher's events with start_time inside [from, to].
func (r *Repository) ListEvents(ctx context.Context, teacherID string, from, to time.Time) ([]scheduling.CalendarEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, title, event_type, start_time, end_time, teacher_id, school_id,
		       COALESCE(linked_id, ''), COALESCE(linked_table, ''), COALESCE(location, ''), COALESCE(notes, '')
		FROM calendar_events
		WHERE teacher_id = $1 AND start_time >= $2 AND start_time <= $3
		ORDER BY start_time
	`, teacherID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []scheduling.CalendarEvent
	for rows.Next() {
		var e scheduling.CalendarEvent
		if err := rows.Scan(&e.ID, &e.Title, &e.EventType, &e.StartTime, &e.EndTime, &e.TeacherID, &e.SchoolID,
			&e.LinkedID, &e.LinkedTable, &e.Location, &e.Notes); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
