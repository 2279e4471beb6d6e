// Package service contains order business logic.
package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"orderbot_backend/internal/events"
	"orderbot_backend/internal/orders/repository"
	"orderbot_backend/internal/resolver"
	"orderbot_backend/platform/apperr"
	"orderbot_backend/platform/logger"
)

// validTransitions is the order status workflow. Cancellation is allowed
// from every non-terminal state before shipping.
var validTransitions = map[string][]string{
	repository.StatusPending:    {repository.StatusConfirmed, repository.StatusCancelled},
	repository.StatusConfirmed:  {repository.StatusAssembling, repository.StatusCancelled},
	repository.StatusAssembling: {repository.StatusShipped, repository.StatusCancelled},
	repository.StatusShipped:    {repository.StatusCompleted},
}

// Service provides order operations.
type Service struct {
	repo repository.Repository
	bus  events.Bus
	log  *logger.Logger
}

// New creates the orders service.
func New(repo repository.Repository, bus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, bus: bus, log: log}
}

// CreateFromResolution persists a resolution as an order. Resolved lines
// become items with their price at order time; unresolved lines are kept
// both as rows and summarized in the order note for quick triage.
// chatID is the bot chat the order came from, 0 for the admin UI.
func (s *Service) CreateFromResolution(ctx context.Context, userID uuid.UUID, chatID int64, res resolver.Resolution) (repository.Order, error) {
	if len(res.Resolved) == 0 && len(res.Unresolved) == 0 {
		return repository.Order{}, apperr.BadRequest("order is empty")
	}

	params := repository.CreateOrderParams{Note: unresolvedNote(res.Unresolved)}
	if userID != uuid.Nil {
		params.UserID = &userID
	}

	for _, line := range res.Resolved {
		params.Items = append(params.Items, repository.CreateItemParams{
			ProductID:  line.ProductID,
			Qty:        line.Qty,
			PriceCents: line.PriceCents,
			Source:     line.Source,
			Confidence: line.Confidence,
		})
	}
	for _, line := range res.Unresolved {
		params.Unresolved = append(params.Unresolved, repository.CreateUnresolvedParams{
			Line: line.Text,
			Qty:  line.Qty,
		})
	}

	order, err := s.repo.Create(ctx, params)
	if err != nil {
		return repository.Order{}, err
	}

	s.bus.Publish(ctx, events.OrderCreated{
		BaseEvent:       events.NewBaseEvent(),
		OrderID:         order.ID,
		UserID:          userID,
		ChatID:          chatID,
		ItemCount:       len(order.Items),
		UnresolvedCount: len(order.Unresolved),
		TotalCents:      order.TotalCents,
	})
	return order, nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (repository.Order, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, params repository.ListOrdersParams) ([]repository.Order, int, error) {
	return s.repo.List(ctx, params)
}

// ListForUser returns the user's recent orders (bot "my orders" command).
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]repository.Order, error) {
	orders, _, err := s.repo.List(ctx, repository.ListOrdersParams{UserID: &userID, Limit: limit})
	return orders, err
}

// ChangeStatus moves an order through the workflow, rejecting transitions
// the workflow does not allow. The customer's bot chat comes from the
// order's user, so the notification fires for bot orders regardless of
// who changed the status.
func (s *Service) ChangeStatus(ctx context.Context, id uuid.UUID, to string) (repository.Order, error) {
	change, err := s.repo.UpdateStatus(ctx, id, to, transitionSources(to))
	if err != nil {
		return repository.Order{}, err
	}

	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return repository.Order{}, err
	}

	s.bus.Publish(ctx, events.OrderStatusChanged{
		BaseEvent: events.NewBaseEvent(),
		OrderID:   id,
		ChatID:    change.ChatID,
		From:      change.Previous,
		To:        to,
	})
	return order, nil
}

// transitionSources lists the statuses the workflow allows to move to the
// given target.
func transitionSources(to string) []string {
	sources := []string{}
	for from, targets := range validTransitions {
		for _, target := range targets {
			if target == to {
				sources = append(sources, from)
			}
		}
	}
	return sources
}

// unresolvedNote renders unmatched lines into the order note so staff see
// them without opening the line detail.
func unresolvedNote(lines []resolver.UnresolvedLine) string {
	if len(lines) == 0 {
		return ""
	}

	parts := make([]string, 0, len(lines))
	for _, line := range lines {
		if line.Qty > 1 {
			parts = append(parts, fmt.Sprintf("%s x%d", line.Text, line.Qty))
		} else {
			parts = append(parts, line.Text)
		}
	}
	return "Не распознано: " + strings.Join(parts, "; ")
}
