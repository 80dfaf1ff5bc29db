package scheduling

import (
	"time"

	"musicstudio/internal/timeutil"
)

// Weekday labels as stored on the students table.
var DaysOfWeek = []string{
	"Monday",
	"Tuesday",
	"Wednesday",
	"Thursday",
	"Friday",
	"Saturday",
	"Sunday",
}

// Student carries the recurring-slot fields of a student row. The slot
// fields are pointers because a student starts with no schedule at all.
type Student struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Instrument     string  `json:"instrument,omitempty"`
	Status         string  `json:"status"`
	TeacherID      string  `json:"teacher_id"`
	SchoolID       string  `json:"school_id"`
	LessonDay      *string `json:"lesson_day,omitempty"`
	LessonTime     *string `json:"lesson_time,omitempty"`
	LessonTimeEnd  *string `json:"lesson_time_end,omitempty"`
	LessonDuration *int    `json:"lesson_duration,omitempty"`
	LessonTypeID   *string `json:"lesson_type_id,omitempty"`
}

// Schedulable reports whether the student has a complete weekly slot:
// day, start time and duration all present. Unscheduled students are
// silently excluded from expansion.
func (s Student) Schedulable() bool {
	return s.LessonDay != nil && *s.LessonDay != "" &&
		s.LessonTime != nil && *s.LessonTime != "" &&
		s.LessonDuration != nil && *s.LessonDuration > 0
}

// Lesson is one persisted occurrence: a concrete meeting at an absolute time.
type Lesson struct {
	ID             string     `json:"id"`
	StudentID      string     `json:"student_id"`
	StudentName    string     `json:"student_name,omitempty"`
	TeacherID      string     `json:"teacher_id"`
	SchoolID       string     `json:"school_id"`
	ScheduledTime  time.Time  `json:"scheduled_time"`
	DurationMin    int        `json:"duration_min"`
	Status         string     `json:"status"`
	ReminderSentAt *time.Time `json:"reminder_sent_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at,omitempty"`
}

// Lesson statuses.
const (
	StatusScheduled = "scheduled"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusMissed    = "missed"
)

// CalendarEvent is the denormalized display projection of a lesson. At most
// one live event shares a (linked_table, linked_id) key; the engine deletes
// and recreates it around every lesson mutation.
type CalendarEvent struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	EventType   string    `json:"event_type"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	TeacherID   string    `json:"teacher_id"`
	SchoolID    string    `json:"school_id"`
	LinkedID    string    `json:"linked_id"`
	LinkedTable string    `json:"linked_table"`
	Location    string    `json:"location"`
	Notes       string    `json:"notes"`
}

// LinkedTableLessons is the linkage key value for lesson-backed events.
const LinkedTableLessons = "lessons"

// PlannedOccurrence is one computed (date, time) instance of a weekly slot.
// It lives only for the duration of one expand/classify/commit run.
type PlannedOccurrence struct {
	StudentID     string    `json:"student_id"`
	StudentName   string    `json:"student_name"`
	TeacherID     string    `json:"teacher_id"`
	SchoolID      string    `json:"school_id"`
	ScheduledTime time.Time `json:"scheduled_time"`
	EndTime       time.Time `json:"end_time"`
	DurationMin   int       `json:"duration_min"`
	LessonDate    string    `json:"lesson_date"`
	DayOfWeek     string    `json:"day_of_week"`
	TimeDisplay   string    `json:"time_display"`
}

// LessonSummary is the per-lesson detail returned for display in the
// results panel.
type LessonSummary struct {
	LessonID      string    `json:"lesson_id,omitempty"`
	StudentID     string    `json:"student_id"`
	StudentName   string    `json:"student_name"`
	ScheduledTime time.Time `json:"scheduled_time"`
	LessonDate    string    `json:"lesson_date"`
	DayOfWeek     string    `json:"day_of_week"`
	TimeDisplay   string    `json:"time_display"`
}

func summaryOfLesson(l Lesson) LessonSummary {
	return LessonSummary{
		LessonID:      l.ID,
		StudentID:     l.StudentID,
		StudentName:   l.StudentName,
		ScheduledTime: l.ScheduledTime,
		LessonDate:    timeutil.DateOf(l.ScheduledTime),
		DayOfWeek:     l.ScheduledTime.Weekday().String(),
		TimeDisplay:   timeutil.FormatForDisplay(timeutil.ClockOf(l.ScheduledTime)),
	}
}

func summaryOfOccurrence(o PlannedOccurrence) LessonSummary {
	return LessonSummary{
		StudentID:     o.StudentID,
		StudentName:   o.StudentName,
		ScheduledTime: o.ScheduledTime,
		LessonDate:    o.LessonDate,
		DayOfWeek:     o.DayOfWeek,
		TimeDisplay:   o.TimeDisplay,
	}
}

// ConflictGroup collects a student's conflicting persisted lessons for the
// keep-or-replace prompt.
type ConflictGroup struct {
	StudentID   string          `json:"student_id"`
	StudentName string          `json:"student_name"`
	Lessons     []LessonSummary `json:"lessons"`
}

// Decision is the user's answer to the conflict prompt.
type Decision string

const (
	// DecisionNone means the caller has not resolved pending conflicts.
	DecisionNone Decision = ""
	// DecisionKeep leaves conflicting lessons untouched and still inserts
	// the clean occurrences.
	DecisionKeep Decision = "keep"
	// DecisionReplace deletes the conflicting lessons before inserting.
	DecisionReplace Decision = "replace"
)

// Result summarises one commit run. Warnings carry the non-fatal
// calendar-mirror failures; they never abort the run.
type Result struct {
	Created  int             `json:"created"`
	Skipped  int             `json:"skipped"`
	Replaced int             `json:"replaced"`
	Added    []LessonSummary `json:"added_lessons"`
	Deleted  []LessonSummary `json:"deleted_lessons"`
	SkippedL []LessonSummary `json:"skipped_lessons"`
	Warnings []string        `json:"warnings,omitempty"`
}
