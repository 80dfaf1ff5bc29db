package scheduling

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"musicstudio/internal/timeutil"
)

var rruleWeekdays = map[string]rrule.Weekday{
	"Monday":    rrule.MO,
	"Tuesday":   rrule.TU,
	"Wednesday": rrule.WE,
	"Thursday":  rrule.TH,
	"Friday":    rrule.FR,
	"Saturday":  rrule.SA,
	"Sunday":    rrule.SU,
}

// ExpandWeekly turns every schedulable student's weekly slot into concrete
// dated occurrences across the inclusive [start, end] date range. Students
// without a complete slot are skipped, not an error. Each student yields one
// occurrence per calendar-week instance of their weekday inside the range.
func ExpandWeekly(students []Student, start, end time.Time) ([]PlannedOccurrence, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("invalid date range: end %s before start %s",
			timeutil.DateOf(end), timeutil.DateOf(start))
	}

	rangeStart := startOfDay(start)
	rangeEnd := startOfDay(end).Add(24*time.Hour - time.Second)

	var out []PlannedOccurrence
	for _, s := range students {
		if !s.Schedulable() {
			continue
		}
		wd, ok := rruleWeekdays[*s.LessonDay]
		if !ok {
			// Unknown weekday label on the row; treat like unscheduled.
			continue
		}

		dtstart, err := timeutil.CombineDateClock(rangeStart, *s.LessonTime)
		if err != nil {
			return nil, fmt.Errorf("student %s: %w", s.ID, err)
		}
		r, err := rrule.NewRRule(rrule.ROption{
			Freq:      rrule.WEEKLY,
			Byweekday: []rrule.Weekday{wd},
			Dtstart:   dtstart,
			Until:     rangeEnd,
		})
		if err != nil {
			return nil, fmt.Errorf("student %s: build recurrence: %w", s.ID, err)
		}

		for _, scheduled := range r.Between(rangeStart, rangeEnd, true) {
			duration := time.Duration(*s.LessonDuration) * time.Minute
			out = append(out, PlannedOccurrence{
				StudentID:     s.ID,
				StudentName:   s.Name,
				TeacherID:     s.TeacherID,
				SchoolID:      s.SchoolID,
				ScheduledTime: scheduled,
				EndTime:       scheduled.Add(duration),
				DurationMin:   *s.LessonDuration,
				LessonDate:    timeutil.DateOf(scheduled),
				DayOfWeek:     *s.LessonDay,
				TimeDisplay:   timeutil.FormatForDisplay(*s.LessonTime),
			})
		}
	}
	return out, nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
