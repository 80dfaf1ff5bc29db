package timetable

import (
	"context"
	"fmt"
	"testing"

	"musicstudio/internal/scheduling"
	"musicstudio/internal/timeutil"
)

type fakeStore struct {
	students map[string]scheduling.Student
	types    map[string]int
}

func newFakeStore(students ...scheduling.Student) *fakeStore {
	f := &fakeStore{students: map[string]scheduling.Student{}, types: map[string]int{}}
	for _, s := range students {
		f.students[s.ID] = s
	}
	return f
}

func (f *fakeStore) ListStudents(_ context.Context, teacherID string) ([]scheduling.Student, error) {
	var out []scheduling.Student
	for _, s := range f.students {
		if s.TeacherID == teacherID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) GetStudent(_ context.Context, teacherID, studentID string) (scheduling.Student, error) {
	s, ok := f.students[studentID]
	if !ok || s.TeacherID != teacherID {
		return scheduling.Student{}, fmt.Errorf("student %s not found", studentID)
	}
	return s, nil
}

func (f *fakeStore) UpdateStudentSlot(_ context.Context, teacherID, studentID string, patch SlotPatch) error {
	s, ok := f.students[studentID]
	if !ok || s.TeacherID != teacherID {
		return fmt.Errorf("student %s not found", studentID)
	}
	if patch.Day != nil {
		s.LessonDay = patch.Day
	}
	if patch.Time != nil {
		s.LessonTime = patch.Time
	}
	if patch.TimeEnd != nil {
		s.LessonTimeEnd = patch.TimeEnd
	}
	if patch.Duration != nil {
		s.LessonDuration = patch.Duration
	}
	if patch.LessonTypeID != nil {
		s.LessonTypeID = patch.LessonTypeID
	}
	f.students[studentID] = s
	return nil
}

func (f *fakeStore) ClearStudentSlot(_ context.Context, teacherID, studentID string) error {
	s, ok := f.students[studentID]
	if !ok || s.TeacherID != teacherID {
		return fmt.Errorf("student %s not found", studentID)
	}
	s.LessonDay, s.LessonTime, s.LessonTimeEnd = nil, nil, nil
	s.LessonDuration, s.LessonTypeID = nil, nil
	f.students[studentID] = s
	return nil
}

func (f *fakeStore) LessonTypeDuration(_ context.Context, _, typeID string) (int, error) {
	mins, ok := f.types[typeID]
	if !ok {
		return 0, fmt.Errorf("lesson type %s not found", typeID)
	}
	return mins, nil
}

func strp(s string) *string { return &s }
func intp(i int) *int       { return &i }

func student(id, name, day, clock string, duration int) scheduling.Student {
	end, _ := timeutil.AddDuration(clock, duration)
	return scheduling.Student{
		ID:             id,
		Name:           name,
		Status:         "Current",
		TeacherID:      "t1",
		SchoolID:       "sch1",
		LessonDay:      strp(day),
		LessonTime:     strp(clock),
		LessonTimeEnd:  strp(end),
		LessonDuration: intp(duration),
	}
}

func TestUpdateSlotTimeRecomputesEnd(t *testing.T) {
	store := newFakeStore(student("s1", "Ava", "Tuesday", "15:00", 30))
	svc := NewService(store)

	updated, err := svc.UpdateSlot(context.Background(), "t1", "s1", FieldTime, "16:15")
	if err != nil {
		t.Fatalf("UpdateSlot: %v", err)
	}
	if *updated.LessonTime != "16:15" || *updated.LessonTimeEnd != "16:45" {
		t.Fatalf("time=%s end=%s", *updated.LessonTime, *updated.LessonTimeEnd)
	}
}

func TestUpdateSlotDurationRecomputesEnd(t *testing.T) {
	store := newFakeStore(student("s1", "Ava", "Tuesday", "15:00", 30))
	svc := NewService(store)

	updated, err := svc.UpdateSlot(context.Background(), "t1", "s1", FieldDuration, "45")
	if err != nil {
		t.Fatalf("UpdateSlot: %v", err)
	}
	if *updated.LessonDuration != 45 || *updated.LessonTimeEnd != "15:45" {
		t.Fatalf("duration=%d end=%s", *updated.LessonDuration, *updated.LessonTimeEnd)
	}
}

func TestUpdateSlotLessonTypeSetsDuration(t *testing.T) {
	store := newFakeStore(student("s1", "Ava", "Tuesday", "15:00", 30))
	store.types["lt-60"] = 60
	svc := NewService(store)

	updated, err := svc.UpdateSlot(context.Background(), "t1", "s1", FieldLessonType, "lt-60")
	if err != nil {
		t.Fatalf("UpdateSlot: %v", err)
	}
	if *updated.LessonTypeID != "lt-60" || *updated.LessonDuration != 60 || *updated.LessonTimeEnd != "16:00" {
		t.Fatalf("type=%s duration=%d end=%s", *updated.LessonTypeID, *updated.LessonDuration, *updated.LessonTimeEnd)
	}
}

func TestUpdateSlotRejections(t *testing.T) {
	store := newFakeStore(student("s1", "Ava", "Tuesday", "23:45", 30))
	svc := NewService(store)
	ctx := context.Background()

	cases := []struct {
		name  string
		field string
		value string
	}{
		{"bad weekday", FieldDay, "Someday"},
		{"malformed time", FieldTime, "quarter past"},
		{"negative duration", FieldDuration, "-10"},
		{"unknown lesson type", FieldLessonType, "ghost"},
		{"duration past midnight", FieldDuration, "30"},
		{"unknown field", "color", "blue"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.UpdateSlot(ctx, "t1", "s1", tc.field, tc.value); err == nil {
				t.Fatalf("expected rejection for %s=%q", tc.field, tc.value)
			}
		})
	}
}

func TestClearSlotNullsEverything(t *testing.T) {
	store := newFakeStore(student("s1", "Ava", "Tuesday", "15:00", 30))
	svc := NewService(store)

	updated, err := svc.ClearSlot(context.Background(), "t1", "s1")
	if err != nil {
		t.Fatalf("ClearSlot: %v", err)
	}
	if updated.LessonDay != nil || updated.LessonTime != nil || updated.LessonTimeEnd != nil ||
		updated.LessonDuration != nil || updated.LessonTypeID != nil {
		t.Fatalf("slot not fully cleared: %+v", updated)
	}
	if updated.Schedulable() {
		t.Fatal("cleared student must be unschedulable")
	}
}

func TestDetectClashes(t *testing.T) {
	students := []scheduling.Student{
		student("s1", "Ava", "Tuesday", "15:00", 30),
		student("s2", "Ben", "Tuesday", "15:15", 30), // overlaps Ava
		student("s3", "Cal", "Tuesday", "15:30", 30), // touches Ben, no clash
		student("s4", "Dee", "Friday", "15:00", 30),  // other day
	}

	pairs := DetectClashes(students)
	if len(pairs) != 1 {
		t.Fatalf("expected one clash pair, got %d: %+v", len(pairs), pairs)
	}
	p := pairs[0]
	if p.Day != "Tuesday" {
		t.Fatalf("clash day %q", p.Day)
	}
	got := map[string]bool{p.A.StudentID: true, p.B.StudentID: true}
	if !got["s1"] || !got["s2"] {
		t.Fatalf("clash pair: %+v", p)
	}
}

func TestDetectClashesIgnoresUnscheduled(t *testing.T) {
	bare := scheduling.Student{ID: "s9", Name: "Zoe", Status: "Current", TeacherID: "t1", SchoolID: "sch1"}
	if pairs := DetectClashes([]scheduling.Student{bare, student("s1", "Ava", "Tuesday", "15:00", 30)}); len(pairs) != 0 {
		t.Fatalf("unexpected clashes: %+v", pairs)
	}
}

func TestViewSplitsAndOrders(t *testing.T) {
	store := newFakeStore(
		student("s1", "Ava", "Tuesday", "16:00", 30),
		student("s2", "Ben", "Tuesday", "09:00", 30),
		scheduling.Student{ID: "s3", Name: "Cal", Status: "Current", TeacherID: "t1", SchoolID: "sch1"},
	)
	svc := NewService(store)

	view, err := svc.View(context.Background(), "t1")
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if len(view.Days) != 7 {
		t.Fatalf("expected 7 day columns, got %d", len(view.Days))
	}
	if len(view.Unscheduled) != 1 || view.Unscheduled[0].ID != "s3" {
		t.Fatalf("unscheduled: %+v", view.Unscheduled)
	}
	var tuesday DayColumn
	for _, col := range view.Days {
		if col.Day == "Tuesday" {
			tuesday = col
		}
	}
	if len(tuesday.Students) != 2 || tuesday.Students[0].ID != "s2" || tuesday.Students[1].ID != "s1" {
		t.Fatalf("tuesday column not time-ordered: %+v", tuesday.Students)
	}
	if len(view.Clashes) != 0 {
		t.Fatalf("unexpected clashes: %+v", view.Clashes)
	}
}
