package support

import (
	"context"

	"github.com/google/uuid"

	"orderbot_backend/internal/events"
	"orderbot_backend/platform/apperr"
	"orderbot_backend/platform/logger"
)

// Service provides thread operations.
type Service struct {
	repo Repository
	bus  events.Bus
	log  *logger.Logger
}

// NewService creates the support service.
func NewService(repo Repository, bus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, bus: bus, log: log}
}

// OpenQuestion creates a thread with its first message and announces it so
// staff get notified. chatID is 0 for questions opened via the web UI.
func (s *Service) OpenQuestion(ctx context.Context, userID uuid.UUID, chatID int64, authorName, title, body string) (Thread, error) {
	if title == "" {
		title = truncate(body, 80)
	}

	var owner *uuid.UUID
	if userID != uuid.Nil {
		owner = &userID
	}

	thread, err := s.repo.CreateThread(ctx, owner, title)
	if err != nil {
		return Thread{}, err
	}
	if _, err := s.repo.AddMessage(ctx, thread.ID, owner, authorName, body); err != nil {
		return Thread{}, err
	}

	s.bus.Publish(ctx, events.QuestionAsked{
		BaseEvent: events.NewBaseEvent(),
		ThreadID:  thread.ID,
		UserID:    userID,
		ChatID:    chatID,
		Title:     title,
	})
	return s.repo.GetThread(ctx, thread.ID)
}

// Reply appends a message to an open thread.
func (s *Service) Reply(ctx context.Context, threadID uuid.UUID, authorID uuid.UUID, authorName, body string) (Message, error) {
	thread, err := s.repo.GetThread(ctx, threadID)
	if err != nil {
		return Message{}, err
	}
	if thread.Status != StatusOpen {
		return Message{}, apperr.Validation("thread is closed")
	}

	var author *uuid.UUID
	if authorID != uuid.Nil {
		author = &authorID
	}
	return s.repo.AddMessage(ctx, threadID, author, authorName, body)
}

// AppendFromChat adds a customer's follow-up message to their open thread.
func (s *Service) AppendFromChat(ctx context.Context, userID uuid.UUID, authorName, body string) (Thread, error) {
	thread, err := s.repo.LatestOpenThreadForUser(ctx, userID)
	if err != nil {
		return Thread{}, err
	}
	if _, err := s.repo.AddMessage(ctx, thread.ID, &userID, authorName, body); err != nil {
		return Thread{}, err
	}
	return thread, nil
}

func (s *Service) GetThread(ctx context.Context, id uuid.UUID) (Thread, error) {
	return s.repo.GetThread(ctx, id)
}

func (s *Service) ListThreads(ctx context.Context, status string, limit, offset int) ([]Thread, int, error) {
	return s.repo.ListThreads(ctx, status, limit, offset)
}

func (s *Service) CloseThread(ctx context.Context, id uuid.UUID) error {
	return s.repo.CloseThread(ctx, id)
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
