package scheduling

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"musicstudio/internal/timeutil"
)

// Store is the tabular access the engine needs. Every read and write is
// scoped by the owning teacher; ownership re-assertion on deletes and
// updates is the only concurrency-safety mechanism in play.
type Store interface {
	ListSchedulableStudents(ctx context.Context, teacherID string) ([]Student, error)
	ListLessonsInRange(ctx context.Context, teacherID string, studentIDs []string, from, to time.Time) ([]Lesson, error)
	ListLessonsByIDs(ctx context.Context, teacherID string, ids []string) ([]Lesson, error)
	InsertLessons(ctx context.Context, lessons []Lesson) ([]Lesson, error)
	UpdateLessonTime(ctx context.Context, teacherID, lessonID string, scheduled time.Time) error
	DeleteLessons(ctx context.Context, teacherID string, ids []string) error
	DeleteCalendarEvents(ctx context.Context, lessonIDs []string) error
	InsertCalendarEvents(ctx context.Context, events []CalendarEvent) error
}

// ErrConflictsPending is returned by Generate when same-day/different-time
// conflicts exist and the caller has not yet chosen keep or replace.
var ErrConflictsPending = errors.New("conflicting lessons require a keep or replace decision")

// ErrNoSchedulableStudents is returned when no student has a complete slot.
var ErrNoSchedulableStudents = errors.New("no students have complete schedule information")

// Engine runs the expand, classify, resolve and commit pipeline. All backend
// calls within one invocation are sequential: conflicting deletes always
// complete before the first insert is attempted.
type Engine struct {
	store     Store
	batchSize int
}

// NewEngine creates an engine. Batch size is capped at 50 rows per insert
// round-trip.
func NewEngine(store Store, batchSize int) *Engine {
	if batchSize <= 0 || batchSize > 50 {
		batchSize = 50
	}
	return &Engine{store: store, batchSize: batchSize}
}

// Request identifies one generate/preview invocation. Teacher and school are
// explicit parameters; the engine never reads identity from ambient state.
type Request struct {
	TeacherID string
	SchoolID  string
	Start     time.Time
	End       time.Time
}

func (r Request) validate() error {
	if r.TeacherID == "" || r.SchoolID == "" {
		return errors.New("missing teacher or school context")
	}
	if r.Start.IsZero() || r.End.IsZero() {
		return errors.New("start and end dates are required")
	}
	if r.End.Before(r.Start) {
		return errors.New("end date is before start date")
	}
	return nil
}

func (r Request) rangeEnd() time.Time {
	return startOfDay(r.End).Add(24*time.Hour - time.Second)
}

// Plan is the classifier output surfaced to the preview endpoint and reused
// by Generate.
type Plan struct {
	Occurrences []PlannedOccurrence
	Classification
}

// Preview expands the teacher's current slots over the range and classifies
// the result against persisted lessons. It never writes.
func (e *Engine) Preview(ctx context.Context, req Request) (*Plan, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	students, err := e.store.ListSchedulableStudents(ctx, req.TeacherID)
	if err != nil {
		return nil, fmt.Errorf("fetch students: %w", err)
	}
	schedulable := students[:0]
	for _, s := range students {
		if s.Schedulable() {
			schedulable = append(schedulable, s)
		}
	}
	if len(schedulable) == 0 {
		return nil, ErrNoSchedulableStudents
	}

	occurrences, err := ExpandWeekly(schedulable, req.Start, req.End)
	if err != nil {
		return nil, err
	}
	if len(occurrences) == 0 {
		return nil, errors.New("no lessons to schedule in the selected range")
	}

	existing, err := e.store.ListLessonsInRange(ctx, req.TeacherID, studentIDs(schedulable), startOfDay(req.Start), req.rangeEnd())
	if err != nil {
		return nil, fmt.Errorf("fetch existing lessons: %w", err)
	}
	return &Plan{
		Occurrences:    occurrences,
		Classification: Classify(occurrences, existing),
	}, nil
}

// Generate runs the full pipeline. When conflicts exist and decision is
// DecisionNone it stops before any write and returns the grouped conflicts
// alongside ErrConflictsPending. Fatal write failures return the partial
// Result accumulated so far together with the error; calendar-mirror
// failures only append to Result.Warnings.
func (e *Engine) Generate(ctx context.Context, req Request, decision Decision) (*Result, []ConflictGroup, error) {
	plan, err := e.Preview(ctx, req)
	if err != nil {
		generateRuns.WithLabelValues("rejected").Inc()
		return nil, nil, err
	}
	if plan.HasConflicts() && decision == DecisionNone {
		generateRuns.WithLabelValues("conflicts_pending").Inc()
		return nil, plan.ConflictGroups(), ErrConflictsPending
	}

	res := &Result{}

	if decision == DecisionReplace && plan.HasConflicts() {
		ids := lessonIDs(plan.Conflicts)
		e.dropCalendarEvents(ctx, ids, res)
		if err := e.store.DeleteLessons(ctx, req.TeacherID, ids); err != nil {
			generateRuns.WithLabelValues("failed").Inc()
			return res, nil, fmt.Errorf("delete conflicting lessons: %w", err)
		}
		for _, l := range plan.Conflicts {
			res.Deleted = append(res.Deleted, summaryOfLesson(l))
		}
		res.Replaced = len(plan.Conflicts)
		lessonsReplaced.Add(float64(res.Replaced))
	}

	// Under keep, conflicted-day occurrences are not inserted: the existing
	// lesson stands in for that week. Under replace they go in alongside
	// the clean ones. Classified duplicates stay in the candidate set so
	// the fresh post-delete read makes the final skip call.
	candidates := append(append([]PlannedOccurrence{}, plan.NewLessons...), plan.Duplicates...)
	if decision == DecisionReplace {
		candidates = append(candidates, plan.ConflictedOccurrences...)
	}

	// Re-read the authoritative lesson set before the final duplicate
	// filter; the first read may be stale by now.
	existing, err := e.store.ListLessonsInRange(ctx, req.TeacherID, occurrenceStudentIDs(plan.Occurrences), startOfDay(req.Start), req.rangeEnd())
	if err != nil {
		generateRuns.WithLabelValues("failed").Inc()
		return res, nil, fmt.Errorf("re-check existing lessons: %w", err)
	}
	inserts, skipped := FilterDuplicates(candidates, existing)
	res.SkippedL = skipped
	res.Skipped = len(skipped)
	lessonsSkipped.Add(float64(res.Skipped))

	for start := 0; start < len(inserts); start += e.batchSize {
		stop := start + e.batchSize
		if stop > len(inserts) {
			stop = len(inserts)
		}
		batch := inserts[start:stop]

		rows := make([]Lesson, len(batch))
		for i, occ := range batch {
			rows[i] = Lesson{
				StudentID:     occ.StudentID,
				TeacherID:     occ.TeacherID,
				SchoolID:      occ.SchoolID,
				ScheduledTime: occ.ScheduledTime,
				DurationMin:   occ.DurationMin,
				Status:        StatusScheduled,
			}
		}
		created, err := e.store.InsertLessons(ctx, rows)
		if err != nil {
			generateRuns.WithLabelValues("failed").Inc()
			return res, nil, fmt.Errorf("insert lesson batch after %d created: %w", res.Created, err)
		}

		events := make([]CalendarEvent, len(created))
		for i, l := range created {
			occ := batch[i]
			s := summaryOfOccurrence(occ)
			s.LessonID = l.ID
			res.Added = append(res.Added, s)
			events[i] = eventForLesson(l.ID, occ.StudentName, occ.TeacherID, occ.SchoolID, occ.ScheduledTime, occ.EndTime)
		}
		res.Created += len(created)

		// Mirror maintenance is best-effort: a lesson without its calendar
		// event is recoverable, a lost lesson is not.
		e.dropCalendarEvents(ctx, lessonIDs(created), res)
		if err := e.store.InsertCalendarEvents(ctx, events); err != nil {
			e.warn(res, "create calendar events: %v", err)
		}
	}

	lessonsCreated.Add(float64(res.Created))
	generateRuns.WithLabelValues("ok").Inc()
	return res, nil, nil
}

// Reschedule moves the given lessons to a new calendar date, preserving each
// lesson's time-of-day, and recreates their calendar events.
func (e *Engine) Reschedule(ctx context.Context, teacherID string, ids []string, newDate time.Time) (*Result, error) {
	if len(ids) == 0 {
		return nil, errors.New("no lessons selected")
	}
	if newDate.IsZero() {
		return nil, errors.New("new date is required")
	}
	lessons, err := e.store.ListLessonsByIDs(ctx, teacherID, ids)
	if err != nil {
		return nil, fmt.Errorf("fetch lessons: %w", err)
	}
	if len(lessons) == 0 {
		return nil, errors.New("no matching lessons for this teacher")
	}

	res := &Result{}
	e.dropCalendarEvents(ctx, lessonIDs(lessons), res)

	for _, l := range lessons {
		moved, err := timeutil.CombineDateClock(newDate, timeutil.ClockOf(l.ScheduledTime))
		if err != nil {
			return res, err
		}
		if err := e.store.UpdateLessonTime(ctx, teacherID, l.ID, moved); err != nil {
			return res, fmt.Errorf("reschedule lesson %s: %w", l.ID, err)
		}
	}

	updated, err := e.store.ListLessonsByIDs(ctx, teacherID, ids)
	if err != nil {
		e.warn(res, "re-read rescheduled lessons: %v", err)
		return res, nil
	}
	events := make([]CalendarEvent, len(updated))
	for i, l := range updated {
		end := l.ScheduledTime.Add(time.Duration(l.DurationMin) * time.Minute)
		events[i] = eventForLesson(l.ID, l.StudentName, l.TeacherID, l.SchoolID, l.ScheduledTime, end)
		res.Added = append(res.Added, summaryOfLesson(l))
	}
	if err := e.store.InsertCalendarEvents(ctx, events); err != nil {
		e.warn(res, "recreate calendar events: %v", err)
	}
	return res, nil
}

// Delete removes the given lessons and their calendar events. The event
// deletes are best-effort; the lesson deletes are fatal on failure.
func (e *Engine) Delete(ctx context.Context, teacherID string, ids []string) (*Result, error) {
	if len(ids) == 0 {
		return nil, errors.New("no lessons selected")
	}
	lessons, err := e.store.ListLessonsByIDs(ctx, teacherID, ids)
	if err != nil {
		return nil, fmt.Errorf("fetch lessons: %w", err)
	}
	if len(lessons) == 0 {
		return nil, errors.New("no matching lessons for this teacher")
	}

	res := &Result{}
	e.dropCalendarEvents(ctx, lessonIDs(lessons), res)
	if err := e.store.DeleteLessons(ctx, teacherID, lessonIDs(lessons)); err != nil {
		return res, fmt.Errorf("delete lessons: %w", err)
	}
	for _, l := range lessons {
		res.Deleted = append(res.Deleted, summaryOfLesson(l))
	}
	return res, nil
}

func (e *Engine) dropCalendarEvents(ctx context.Context, lessonIDs []string, res *Result) {
	if len(lessonIDs) == 0 {
		return
	}
	if err := e.store.DeleteCalendarEvents(ctx, lessonIDs); err != nil {
		e.warn(res, "delete calendar events: %v", err)
	}
}

func (e *Engine) warn(res *Result, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log.Printf("calendar mirror: %s", msg)
	calendarSyncFailures.Inc()
	res.Warnings = append(res.Warnings, msg)
}

func eventForLesson(lessonID, studentName, teacherID, schoolID string, start, end time.Time) CalendarEvent {
	return CalendarEvent{
		Title:       fmt.Sprintf("Lesson with %s", studentName),
		EventType:   "lesson",
		StartTime:   start,
		EndTime:     end,
		TeacherID:   teacherID,
		SchoolID:    schoolID,
		LinkedID:    lessonID,
		LinkedTable: LinkedTableLessons,
		Location:    "Online",
	}
}

func studentIDs(students []Student) []string {
	ids := make([]string, len(students))
	for i, s := range students {
		ids[i] = s.ID
	}
	return ids
}

func occurrenceStudentIDs(occs []PlannedOccurrence) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, o := range occs {
		if !seen[o.StudentID] {
			seen[o.StudentID] = true
			ids = append(ids, o.StudentID)
		}
	}
	return ids
}

func lessonIDs(lessons []Lesson) []string {
	ids := make([]string, len(lessons))
	for i, l := range lessons {
		ids[i] = l.ID
	}
	return ids
}
