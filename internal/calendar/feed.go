// Package calendar renders a teacher's calendar-event mirror as an ICS feed
// for subscription from external calendar apps.
package calendar

import (
	"context"
	"fmt"
	"time"

	ical "github.com/arran4/golang-ical"

	"musicstudio/internal/scheduling"
)

// Store is the event access the feed needs.
type Store interface {
	ListEvents(ctx context.Context, teacherID string, from, to time.Time) ([]scheduling.CalendarEvent, error)
}

// Service builds ICS feeds.
type Service struct {
	store Store
}

// NewService creates the service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Feed serializes the teacher's events in [from, to] as an ICS calendar.
func (s *Service) Feed(ctx context.Context, teacherID string, from, to time.Time) (string, error) {
	events, err := s.store.ListEvents(ctx, teacherID, from, to)
	if err != nil {
		return "", fmt.Errorf("fetch calendar events: %w", err)
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//musicstudio//scheduling//EN")
	cal.SetXWRCalName("Lesson Schedule")

	now := time.Now().UTC()
	for _, e := range events {
		ve := cal.AddEvent(fmt.Sprintf("%s@musicstudio", e.ID))
		ve.SetDtStampTime(now)
		ve.SetStartAt(e.StartTime)
		ve.SetEndAt(e.EndTime)
		ve.SetSummary(e.Title)
		if e.Location != "" {
			ve.SetLocation(e.Location)
		}
		if e.Notes != "" {
			ve.SetDescription(e.Notes)
		}
	}
	return cal.Serialize(), nil
}
