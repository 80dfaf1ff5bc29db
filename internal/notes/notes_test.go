package notes

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"
)

type fakeStore struct {
	notes   map[string]Note // keyed by lesson id
	lessons map[string]LessonRef
	seq     int
}

func newFakeStore() *fakeStore {
	return &fakeStore{notes: map[string]Note{}, lessons: map[string]LessonRef{}}
}

func (f *fakeStore) FindNoteByLesson(_ context.Context, lessonID string) (*Note, error) {
	if n, ok := f.notes[lessonID]; ok {
		return &n, nil
	}
	return nil, nil
}

func (f *fakeStore) CreateNote(_ context.Context, n Note) (*Note, error) {
	f.seq++
	n.ID = fmt.Sprintf("n%d", f.seq)
	f.notes[n.LessonID] = n
	return &n, nil
}

func (f *fakeStore) GetLessonRef(_ context.Context, teacherID, lessonID string) (*LessonRef, error) {
	ref, ok := f.lessons[lessonID]
	if !ok || ref.TeacherID != teacherID {
		return nil, fmt.Errorf("lesson %s not found", lessonID)
	}
	return &ref, nil
}

func TestLinkCreatesNoteOnFirstOpen(t *testing.T) {
	store := newFakeStore()
	store.lessons["l1"] = LessonRef{
		ID: "l1", TeacherID: "t1", StudentID: "s1", StudentName: "Ava",
		ScheduledTime: time.Date(2024, 1, 9, 15, 0, 0, 0, time.UTC),
	}
	svc := NewService(store, "https://lessons.example.com")

	link, note, err := svc.Link(context.Background(), "t1", "l1", "tok-123")
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	if note.Title != "Ava - Lesson on January 9, 2024" {
		t.Fatalf("title: %q", note.Title)
	}
	if link != "https://lessons.example.com/view?note_id=n1&token=tok-123" {
		t.Fatalf("link: %q", link)
	}
}

func TestLinkReusesExistingNote(t *testing.T) {
	store := newFakeStore()
	store.lessons["l1"] = LessonRef{ID: "l1", TeacherID: "t1", StudentID: "s1", StudentName: "Ava"}
	store.notes["l1"] = Note{ID: "n-existing", LessonID: "l1", TeacherID: "t1"}
	svc := NewService(store, "https://lessons.example.com")

	link, note, err := svc.Link(context.Background(), "t1", "l1", "")
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	if note.ID != "n-existing" {
		t.Fatalf("note: %+v", note)
	}
	if strings.Contains(link, "token=") {
		t.Fatalf("no token expected in %q", link)
	}
	if len(store.notes) != 1 {
		t.Fatal("must not create a second note")
	}
}

func TestLinkRejectsForeignLesson(t *testing.T) {
	store := newFakeStore()
	store.lessons["l1"] = LessonRef{ID: "l1", TeacherID: "t2"}
	svc := NewService(store, "https://lessons.example.com")

	if _, _, err := svc.Link(context.Background(), "t1", "l1", ""); err == nil {
		t.Fatal("expected ownership error")
	}
}

func TestLinkNeverLeaksForeignNote(t *testing.T) {
	// A note already exists for another teacher's lesson. Resolving it with a
	// different identity must fail without returning the note id or a link.
	store := newFakeStore()
	store.lessons["l1"] = LessonRef{ID: "l1", TeacherID: "t1", StudentID: "s1", StudentName: "Ava"}
	store.notes["l1"] = Note{ID: "n-priv", LessonID: "l1", TeacherID: "t1", StudentID: "s1"}
	svc := NewService(store, "https://lessons.example.com")

	link, note, err := svc.Link(context.Background(), "t2", "l1", "t2-token")
	if err == nil {
		t.Fatal("expected ownership error")
	}
	if link != "" || note != nil {
		t.Fatalf("leaked note data: link=%q note=%+v", link, note)
	}
}
