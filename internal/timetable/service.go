// Package timetable backs the weekly-slot editing grid: single-field slot
// updates, atomic clears, and live clash detection over the currently
// configured slots (as opposed to the date-expanded, persisted-lesson
// classification done by the scheduling package).
package timetable

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"musicstudio/internal/scheduling"
	"musicstudio/internal/timeutil"
)

// Editable slot fields accepted by UpdateSlot.
const (
	FieldDay        = "day"
	FieldTime       = "time"
	FieldDuration   = "duration"
	FieldLessonType = "lesson_type_id"
)

// SlotPatch carries the columns one update writes. Nil fields are left
// untouched; End is recomputed here, never by the caller.
type SlotPatch struct {
	Day          *string
	Time         *string
	TimeEnd      *string
	Duration     *int
	LessonTypeID *string
}

// Store is the student/lesson-type access the service needs.
type Store interface {
	ListStudents(ctx context.Context, teacherID string) ([]scheduling.Student, error)
	GetStudent(ctx context.Context, teacherID, studentID string) (scheduling.Student, error)
	UpdateStudentSlot(ctx context.Context, teacherID, studentID string, patch SlotPatch) error
	ClearStudentSlot(ctx context.Context, teacherID, studentID string) error
	LessonTypeDuration(ctx context.Context, schoolID, typeID string) (int, error)
}

// Service implements the timetable editing operations.
type Service struct {
	store Store
}

// NewService creates the service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// SlotRef identifies one student's configured slot inside a clash pair.
type SlotRef struct {
	StudentID   string `json:"student_id"`
	StudentName string `json:"student_name"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
}

// ClashPair is two students whose configured weekly slots overlap on the same
// day. Purely advisory for the grid; editing is never blocked, only lesson
// generation is.
type ClashPair struct {
	Day string  `json:"day"`
	A   SlotRef `json:"a"`
	B   SlotRef `json:"b"`
}

// DayColumn is one weekday's students, ordered by start time.
type DayColumn struct {
	Day      string               `json:"day"`
	Students []scheduling.Student `json:"students"`
}

// View is the full timetable payload: seven day columns, the unscheduled
// pool, and the current clash pairs.
type View struct {
	Days        []DayColumn          `json:"days"`
	Unscheduled []scheduling.Student `json:"unscheduled"`
	Clashes     []ClashPair          `json:"clashes"`
}

// View assembles the timetable for one teacher.
func (s *Service) View(ctx context.Context, teacherID string) (*View, error) {
	students, err := s.store.ListStudents(ctx, teacherID)
	if err != nil {
		return nil, fmt.Errorf("fetch students: %w", err)
	}

	byDay := make(map[string][]scheduling.Student)
	v := &View{}
	for _, st := range students {
		if !st.Schedulable() {
			v.Unscheduled = append(v.Unscheduled, st)
			continue
		}
		byDay[*st.LessonDay] = append(byDay[*st.LessonDay], st)
	}
	for _, day := range scheduling.DaysOfWeek {
		col := DayColumn{Day: day, Students: byDay[day]}
		sort.SliceStable(col.Students, func(i, j int) bool {
			a, _ := timeutil.ToMinutes(*col.Students[i].LessonTime)
			b, _ := timeutil.ToMinutes(*col.Students[j].LessonTime)
			return a < b
		})
		v.Days = append(v.Days, col)
	}
	v.Clashes = DetectClashes(students)
	return v, nil
}

// Clashes returns the current clash pairs for one teacher. The generate
// pipeline refuses to run while any exist.
func (s *Service) Clashes(ctx context.Context, teacherID string) ([]ClashPair, error) {
	students, err := s.store.ListStudents(ctx, teacherID)
	if err != nil {
		return nil, fmt.Errorf("fetch students: %w", err)
	}
	return DetectClashes(students), nil
}

// DetectClashes groups schedulable students by weekday and reports every pair
// whose [start, start+duration) windows overlap. Touching slots do not clash.
func DetectClashes(students []scheduling.Student) []ClashPair {
	type slot struct {
		student    scheduling.Student
		start, end int
	}
	byDay := make(map[string][]slot)
	for _, st := range students {
		if !st.Schedulable() {
			continue
		}
		start, err := timeutil.ToMinutes(*st.LessonTime)
		if err != nil {
			continue
		}
		byDay[*st.LessonDay] = append(byDay[*st.LessonDay], slot{st, start, start + *st.LessonDuration})
	}

	var pairs []ClashPair
	for _, day := range scheduling.DaysOfWeek {
		slots := byDay[day]
		for i := 0; i < len(slots); i++ {
			for j := i + 1; j < len(slots); j++ {
				if !timeutil.Overlaps(slots[i].start, slots[i].end, slots[j].start, slots[j].end) {
					continue
				}
				pairs = append(pairs, ClashPair{
					Day: day,
					A:   refOf(slots[i].student),
					B:   refOf(slots[j].student),
				})
			}
		}
	}
	return pairs
}

func refOf(st scheduling.Student) SlotRef {
	r := SlotRef{StudentID: st.ID, StudentName: st.Name}
	if st.LessonTime != nil {
		r.StartTime = *st.LessonTime
	}
	if st.LessonTimeEnd != nil {
		r.EndTime = *st.LessonTimeEnd
	}
	return r
}

// UpdateSlot writes one slot field for one student and returns the re-read
// row, so derived columns (lesson_time_end) always reflect what the database
// holds rather than a stale local copy.
func (s *Service) UpdateSlot(ctx context.Context, teacherID, studentID, field, value string) (*scheduling.Student, error) {
	if studentID == "" {
		return nil, errors.New("student id required")
	}
	current, err := s.store.GetStudent(ctx, teacherID, studentID)
	if err != nil {
		return nil, fmt.Errorf("fetch student: %w", err)
	}

	patch, err := s.buildPatch(ctx, current, field, value)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateStudentSlot(ctx, teacherID, studentID, patch); err != nil {
		return nil, fmt.Errorf("update slot: %w", err)
	}

	updated, err := s.store.GetStudent(ctx, teacherID, studentID)
	if err != nil {
		return nil, fmt.Errorf("re-read student: %w", err)
	}
	return &updated, nil
}

func (s *Service) buildPatch(ctx context.Context, current scheduling.Student, field, value string) (SlotPatch, error) {
	switch field {
	case FieldDay:
		if !validDay(value) {
			return SlotPatch{}, fmt.Errorf("unknown weekday %q", value)
		}
		return SlotPatch{Day: &value}, nil

	case FieldTime:
		if _, err := timeutil.ToMinutes(value); err != nil {
			return SlotPatch{}, err
		}
		patch := SlotPatch{Time: &value}
		if current.LessonDuration != nil {
			end, err := endOfSlot(value, *current.LessonDuration)
			if err != nil {
				return SlotPatch{}, err
			}
			patch.TimeEnd = &end
		}
		return patch, nil

	case FieldDuration:
		mins, err := strconv.Atoi(value)
		if err != nil || mins <= 0 {
			return SlotPatch{}, fmt.Errorf("invalid duration %q", value)
		}
		patch := SlotPatch{Duration: &mins}
		if current.LessonTime != nil {
			end, err := endOfSlot(*current.LessonTime, mins)
			if err != nil {
				return SlotPatch{}, err
			}
			patch.TimeEnd = &end
		}
		return patch, nil

	case FieldLessonType:
		mins, err := s.store.LessonTypeDuration(ctx, current.SchoolID, value)
		if err != nil {
			return SlotPatch{}, fmt.Errorf("lesson type lookup: %w", err)
		}
		patch := SlotPatch{LessonTypeID: &value, Duration: &mins}
		if current.LessonTime != nil {
			end, err := endOfSlot(*current.LessonTime, mins)
			if err != nil {
				return SlotPatch{}, err
			}
			patch.TimeEnd = &end
		}
		return patch, nil
	}
	return SlotPatch{}, fmt.Errorf("unknown slot field %q", field)
}

// ClearSlot nulls all recurring-slot fields in one write and returns the
// re-read row.
func (s *Service) ClearSlot(ctx context.Context, teacherID, studentID string) (*scheduling.Student, error) {
	if studentID == "" {
		return nil, errors.New("student id required")
	}
	if err := s.store.ClearStudentSlot(ctx, teacherID, studentID); err != nil {
		return nil, fmt.Errorf("clear slot: %w", err)
	}
	updated, err := s.store.GetStudent(ctx, teacherID, studentID)
	if err != nil {
		return nil, fmt.Errorf("re-read student: %w", err)
	}
	return &updated, nil
}

// endOfSlot computes the derived end clock, rejecting slots that would run
// past midnight.
func endOfSlot(start string, durationMin int) (string, error) {
	if timeutil.CrossesMidnight(start, durationMin) {
		return "", fmt.Errorf("slot %s +%dmin crosses midnight", start, durationMin)
	}
	return timeutil.AddDuration(start, durationMin)
}

func validDay(day string) bool {
	for _, d := range scheduling.DaysOfWeek {
		if d == day {
			return true
		}
	}
	return false
}
