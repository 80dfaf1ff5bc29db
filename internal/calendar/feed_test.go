package calendar

import (
	"context"
	"strings"
	"testing"
	"time"

	"musicstudio/internal/scheduling"
)

type fakeStore struct {
	events []scheduling.CalendarEvent
}

func (f *fakeStore) ListEvents(_ context.Context, teacherID string, _, _ time.Time) ([]scheduling.CalendarEvent, error) {
	var out []scheduling.CalendarEvent
	for _, e := range f.events {
		if e.TeacherID == teacherID {
			out = append(out, e)
		}
	}
	return out, nil
}

func TestFeedSerializesEvents(t *testing.T) {
	start := time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)
	store := &fakeStore{events: []scheduling.CalendarEvent{
		{
			ID:        "ev1",
			Title:     "Lesson with Ava",
			EventType: "lesson",
			StartTime: start,
			EndTime:   start.Add(30 * time.Minute),
			TeacherID: "t1",
			SchoolID:  "sch1",
			Location:  "Online",
		},
		{
			ID:        "ev2",
			Title:     "Lesson with Ben",
			EventType: "lesson",
			StartTime: start.Add(time.Hour),
			EndTime:   start.Add(90 * time.Minute),
			TeacherID: "t1",
			SchoolID:  "sch1",
		},
	}}
	svc := NewService(store)

	feed, err := svc.Feed(context.Background(), "t1", start.AddDate(0, 0, -1), start.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if !strings.Contains(feed, "BEGIN:VCALENDAR") || !strings.Contains(feed, "END:VCALENDAR") {
		t.Fatalf("not a calendar:\n%s", feed)
	}
	if n := strings.Count(feed, "BEGIN:VEVENT"); n != 2 {
		t.Fatalf("expected 2 events, got %d:\n%s", n, feed)
	}
	if !strings.Contains(feed, "Lesson with Ava") || !strings.Contains(feed, "Lesson with Ben") {
		t.Fatalf("missing summaries:\n%s", feed)
	}
	if !strings.Contains(feed, "UID:ev1@musicstudio") {
		t.Fatalf("missing uid:\n%s", feed)
	}
	if !strings.Contains(feed, "LOCATION:Online") {
		t.Fatalf("missing location:\n%s", feed)
	}
}

func TestFeedEmptyRange(t *testing.T) {
	svc := NewService(&fakeStore{})
	feed, err := svc.Feed(context.Background(), "t1", time.Now(), time.Now().AddDate(0, 1, 0))
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if strings.Contains(feed, "BEGIN:VEVENT") {
		t.Fatalf("expected no events:\n%s", feed)
	}
}
