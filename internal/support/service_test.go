package support

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"

	"orderbot_backend/internal/events"
	"orderbot_backend/platform/apperr"
	"orderbot_backend/platform/logger"
)

type fakeRepo struct {
	threads  map[uuid.UUID]*Thread
	messages map[uuid.UUID][]Message
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		threads:  make(map[uuid.UUID]*Thread),
		messages: make(map[uuid.UUID][]Message),
	}
}

func (f *fakeRepo) CreateThread(_ context.Context, userID *uuid.UUID, title string) (Thread, error) {
	thread := Thread{ID: uuid.New(), UserID: userID, Title: title, Status: StatusOpen}
	f.threads[thread.ID] = &thread
	return thread, nil
}

func (f *fakeRepo) GetThread(_ context.Context, id uuid.UUID) (Thread, error) {
	thread, ok := f.threads[id]
	if !ok {
		return Thread{}, apperr.NotFound("thread not found")
	}
	out := *thread
	out.Messages = f.messages[id]
	return out, nil
}

func (f *fakeRepo) ListThreads(_ context.Context, status string, _, _ int) ([]Thread, int, error) {
	var out []Thread
	for _, thread := range f.threads {
		if status == "" || thread.Status == status {
			out = append(out, *thread)
		}
	}
	return out, len(out), nil
}

func (f *fakeRepo) AddMessage(_ context.Context, threadID uuid.UUID, authorID *uuid.UUID, authorName, body string) (Message, error) {
	if _, ok := f.threads[threadID]; !ok {
		return Message{}, apperr.NotFound("thread not found")
	}
	msg := Message{ID: uuid.New(), ThreadID: threadID, AuthorID: authorID, AuthorName: authorName, Body: body}
	f.messages[threadID] = append(f.messages[threadID], msg)
	return msg, nil
}

func (f *fakeRepo) CloseThread(_ context.Context, id uuid.UUID) error {
	thread, ok := f.threads[id]
	if !ok || thread.Status != StatusOpen {
		return apperr.NotFound("open thread not found")
	}
	thread.Status = StatusClosed
	return nil
}

func (f *fakeRepo) LatestOpenThreadForUser(_ context.Context, userID uuid.UUID) (Thread, error) {
	for _, thread := range f.threads {
		if thread.Status == StatusOpen && thread.UserID != nil && *thread.UserID == userID {
			return *thread, nil
		}
	}
	return Thread{}, apperr.NotFound("no open thread")
}

func newTestService(repo Repository) *Service {
	log := logger.New("development")
	return NewService(repo, events.NewInMemoryBus(log), log)
}

func TestOpenQuestionDerivesTitleAndStoresFirstMessage(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	userID := uuid.New()

	body := "Когда приедет доставка по моему заказу?"
	thread, err := svc.OpenQuestion(context.Background(), userID, 10, "Иван", "", body)
	if err != nil {
		t.Fatalf("OpenQuestion: %v", err)
	}

	if thread.Title != body {
		t.Errorf("short body should become the title verbatim, got %q", thread.Title)
	}
	if len(thread.Messages) != 1 || thread.Messages[0].Body != body {
		t.Fatalf("expected one message with the question, got %+v", thread.Messages)
	}

	long := strings.Repeat("д", 200)
	thread, err = svc.OpenQuestion(context.Background(), userID, 10, "Иван", "", long)
	if err != nil {
		t.Fatalf("OpenQuestion: %v", err)
	}
	if got := []rune(thread.Title); len(got) != 80 || got[79] != '…' {
		t.Errorf("long body should truncate to 80 runes ending with ellipsis, got %d runes", len(got))
	}
}

func TestReplyRejectsClosedThread(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	thread, err := svc.OpenQuestion(context.Background(), uuid.New(), 0, "Иван", "Вопрос", "текст")
	if err != nil {
		t.Fatalf("OpenQuestion: %v", err)
	}
	if err := svc.CloseThread(context.Background(), thread.ID); err != nil {
		t.Fatalf("CloseThread: %v", err)
	}

	_, err = svc.Reply(context.Background(), thread.ID, uuid.New(), "Поддержка", "ответ")
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error on closed thread, got %v", err)
	}
}

func TestAppendFromChatUsesLatestOpenThread(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	userID := uuid.New()

	opened, err := svc.OpenQuestion(context.Background(), userID, 10, "Иван", "Вопрос", "первый")
	if err != nil {
		t.Fatalf("OpenQuestion: %v", err)
	}

	thread, err := svc.AppendFromChat(context.Background(), userID, "Иван", "ещё вопрос")
	if err != nil {
		t.Fatalf("AppendFromChat: %v", err)
	}
	if thread.ID != opened.ID {
		t.Error("follow-up should land in the existing open thread")
	}
	if got := len(repo.messages[opened.ID]); got != 2 {
		t.Fatalf("expected 2 messages, got %d", got)
	}

	_, err = svc.AppendFromChat(context.Background(), uuid.New(), "Пётр", "чужой вопрос")
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found for user without open thread, got %v", err)
	}
}
