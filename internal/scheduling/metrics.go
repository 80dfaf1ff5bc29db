package scheduling

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	lessonsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "musicstudio_lessons_created_total",
		Help: "Lessons inserted by the scheduling engine.",
	})
	lessonsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "musicstudio_lessons_skipped_total",
		Help: "Planned occurrences skipped as exact duplicates.",
	})
	lessonsReplaced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "musicstudio_lessons_replaced_total",
		Help: "Conflicting lessons deleted under the replace decision.",
	})
	calendarSyncFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "musicstudio_calendar_sync_failures_total",
		Help: "Best-effort calendar mirror writes that failed and were logged.",
	})
	generateRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "musicstudio_generate_runs_total",
		Help: "Generate-lessons pipeline runs by outcome.",
	}, []string{"outcome"})
)
