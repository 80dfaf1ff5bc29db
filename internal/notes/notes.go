// Package notes resolves deep links into the external lesson-notes app.
// Opening notes for a lesson ensures exactly one lesson_notes row exists for
// it, then hands the caller a tokenized URL into the notes frontend.
package notes

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Note is one lesson_notes row.
type Note struct {
	ID             string    `json:"id"`
	LessonID       string    `json:"lesson_id"`
	TeacherID      string    `json:"teacher_id"`
	StudentID      string    `json:"student_id"`
	LessonDatetime time.Time `json:"lesson_datetime"`
	Title          string    `json:"title"`
}

// LessonRef is the slice of a lesson the link builder needs.
type LessonRef struct {
	ID            string
	TeacherID     string
	StudentID     string
	StudentName   string
	ScheduledTime time.Time
}

// Store is the lesson_notes access the service needs.
type Store interface {
	FindNoteByLesson(ctx context.Context, lessonID string) (*Note, error)
	CreateNote(ctx context.Context, n Note) (*Note, error)
	GetLessonRef(ctx context.Context, teacherID, lessonID string) (*LessonRef, error)
}

// Service builds notes deep links.
type Service struct {
	store   Store
	baseURL string
}

// NewService creates the service. baseURL is the external notes app origin.
func NewService(store Store, baseURL string) *Service {
	return &Service{store: store, baseURL: baseURL}
}

// Link ensures a note exists for the lesson and returns the deep link. The
// bearer token is forwarded in the URL so the notes frontend can adopt the
// caller's session.
func (s *Service) Link(ctx context.Context, teacherID, lessonID, bearerToken string) (string, *Note, error) {
	if lessonID == "" {
		return "", nil, errors.New("lesson id required")
	}

	// The lesson lookup is teacher-scoped; it gates every note read and
	// write so one teacher can never resolve another teacher's notes by
	// guessing lesson ids.
	lesson, err := s.store.GetLessonRef(ctx, teacherID, lessonID)
	if err != nil {
		return "", nil, fmt.Errorf("fetch lesson: %w", err)
	}

	note, err := s.store.FindNoteByLesson(ctx, lessonID)
	if err != nil {
		return "", nil, fmt.Errorf("check existing notes: %w", err)
	}
	if note == nil {
		name := lesson.StudentName
		if name == "" {
			name = "Student"
		}
		note, err = s.store.CreateNote(ctx, Note{
			LessonID:       lessonID,
			TeacherID:      lesson.TeacherID,
			StudentID:      lesson.StudentID,
			LessonDatetime: lesson.ScheduledTime,
			Title:          fmt.Sprintf("%s - Lesson on %s", name, lesson.ScheduledTime.Format("January 2, 2006")),
		})
		if err != nil {
			return "", nil, fmt.Errorf("create lesson notes: %w", err)
		}
	}

	link := fmt.Sprintf("%s/view?note_id=%s", s.baseURL, url.QueryEscape(note.ID))
	if bearerToken != "" {
		link += "&token=" + url.QueryEscape(bearerToken)
	}
	return link, note, nil
}
