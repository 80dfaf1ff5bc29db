package scheduling

import (
	"sort"

	"musicstudio/internal/timeutil"
)

// Classification is the outcome of diffing planned occurrences against the
// teacher's already-persisted lessons in the same range.
type Classification struct {
	// NewLessons are clean inserts: no persisted lesson shares their
	// student and calendar date at the same time-of-day.
	NewLessons []PlannedOccurrence
	// Duplicates are planned occurrences exactly matching a persisted
	// lesson (student, date and time-of-day); they are skipped at commit,
	// never double-booked and never deleted.
	Duplicates []PlannedOccurrence
	// ConflictedOccurrences are planned occurrences whose day already
	// holds lessons at other times. They are inserted only under the
	// replace decision; under keep the existing lessons stand in for them.
	ConflictedOccurrences []PlannedOccurrence
	// Conflicts are the persisted lessons (not the planned occurrences)
	// sharing student and date with some occurrence at a different
	// time-of-day, deduplicated by lesson id.
	Conflicts []Lesson
}

// HasConflicts reports whether the pipeline must stop for a keep/replace
// decision before committing.
func (c Classification) HasConflicts() bool {
	return len(c.Conflicts) > 0
}

// ConflictGroups shapes the conflict set for the resolution prompt, grouped
// by student and ordered by scheduled time within each group.
func (c Classification) ConflictGroups() []ConflictGroup {
	byStudent := make(map[string]*ConflictGroup)
	var order []string
	for _, l := range c.Conflicts {
		g, ok := byStudent[l.StudentID]
		if !ok {
			g = &ConflictGroup{StudentID: l.StudentID, StudentName: l.StudentName}
			byStudent[l.StudentID] = g
			order = append(order, l.StudentID)
		}
		g.Lessons = append(g.Lessons, summaryOfLesson(l))
	}
	groups := make([]ConflictGroup, 0, len(order))
	for _, id := range order {
		g := byStudent[id]
		sort.Slice(g.Lessons, func(i, j int) bool {
			return g.Lessons[i].ScheduledTime.Before(g.Lessons[j].ScheduledTime)
		})
		groups = append(groups, *g)
	}
	return groups
}

type dayKey struct {
	studentID string
	date      string
}

// Classify diffs planned occurrences against existing lessons. Exact
// duplicates take precedence per occurrence: an occurrence matching one
// existing lesson's time-of-day is never itself treated as conflicting, but
// other same-day lessons at different times are still flagged.
func Classify(planned []PlannedOccurrence, existing []Lesson) Classification {
	byDay := make(map[dayKey][]Lesson)
	for _, l := range existing {
		k := dayKey{l.StudentID, timeutil.DateOf(l.ScheduledTime)}
		byDay[k] = append(byDay[k], l)
	}

	var out Classification
	seenConflict := make(map[string]bool)

	for _, occ := range planned {
		sameDay := byDay[dayKey{occ.StudentID, occ.LessonDate}]
		if len(sameDay) == 0 {
			out.NewLessons = append(out.NewLessons, occ)
			continue
		}

		plannedClock := timeutil.ClockOf(occ.ScheduledTime)
		duplicate := false
		for _, l := range sameDay {
			if timeutil.ClockOf(l.ScheduledTime) == plannedClock {
				duplicate = true
				continue
			}
			if !seenConflict[l.ID] {
				seenConflict[l.ID] = true
				out.Conflicts = append(out.Conflicts, l)
			}
		}
		if duplicate {
			out.Duplicates = append(out.Duplicates, occ)
		} else {
			out.ConflictedOccurrences = append(out.ConflictedOccurrences, occ)
		}
	}
	return out
}

// FilterDuplicates drops planned occurrences that exactly match an existing
// lesson, returning the remaining inserts and the skipped set. The commit
// engine runs this against a fresh read of the lessons table so the final
// filter never trusts a stale snapshot.
func FilterDuplicates(planned []PlannedOccurrence, existing []Lesson) (inserts []PlannedOccurrence, skipped []LessonSummary) {
	type slotKey struct {
		studentID string
		date      string
		clock     string
	}
	taken := make(map[slotKey]bool, len(existing))
	for _, l := range existing {
		taken[slotKey{l.StudentID, timeutil.DateOf(l.ScheduledTime), timeutil.ClockOf(l.ScheduledTime)}] = true
	}
	for _, occ := range planned {
		k := slotKey{occ.StudentID, occ.LessonDate, timeutil.ClockOf(occ.ScheduledTime)}
		if taken[k] {
			skipped = append(skipped, summaryOfOccurrence(occ))
			continue
		}
		inserts = append(inserts, occ)
	}
	return inserts, skipped
}
