package bot

import (
	"context"
	"fmt"

	"orderbot_backend/internal/events"
	"orderbot_backend/platform/logger"
)

// Notifier pushes chat notifications for domain events: new orders and
// questions go to the manager chat, status changes go back to the
// customer who ordered from the bot.
type Notifier struct {
	sender        MessageSender
	managerChatID int64
	log           *logger.Logger
}

// NewNotifier creates a notifier. managerChatID may be 0, which disables
// staff notifications but keeps customer ones.
func NewNotifier(sender MessageSender, managerChatID int64, log *logger.Logger) *Notifier {
	return &Notifier{sender: sender, managerChatID: managerChatID, log: log}
}

// Subscribe registers the notifier on the event bus.
func (n *Notifier) Subscribe(bus events.Bus) {
	bus.Subscribe(events.OrderCreated{}.EventName(), events.HandlerFunc(n.onOrderCreated))
	bus.Subscribe(events.OrderStatusChanged{}.EventName(), events.HandlerFunc(n.onOrderStatusChanged))
	bus.Subscribe(events.QuestionAsked{}.EventName(), events.HandlerFunc(n.onQuestionAsked))
}

func (n *Notifier) onOrderCreated(ctx context.Context, event events.Event) error {
	e, ok := event.(events.OrderCreated)
	if !ok {
		return fmt.Errorf("unexpected event type %T", event)
	}

	text := fmt.Sprintf("Новый заказ №%s: позиций %d, на сумму %s.",
		orderRef(e.OrderID), e.ItemCount, formatPrice(e.TotalCents))
	if e.UnresolvedCount > 0 {
		text += fmt.Sprintf(" Не распознано строк: %d, нужна обработка.", e.UnresolvedCount)
	}
	return n.sender.SendMessage(ctx, n.managerChatID, text)
}

func (n *Notifier) onOrderStatusChanged(ctx context.Context, event events.Event) error {
	e, ok := event.(events.OrderStatusChanged)
	if !ok {
		return fmt.Errorf("unexpected event type %T", event)
	}
	if e.ChatID == 0 {
		return nil
	}

	text := fmt.Sprintf("Ваш заказ №%s теперь «%s».", orderRef(e.OrderID), statusTitle(e.To))
	return n.sender.SendMessage(ctx, e.ChatID, text)
}

func (n *Notifier) onQuestionAsked(ctx context.Context, event events.Event) error {
	e, ok := event.(events.QuestionAsked)
	if !ok {
		return fmt.Errorf("unexpected event type %T", event)
	}

	text := fmt.Sprintf("Новый вопрос от клиента: «%s».", e.Title)
	return n.sender.SendMessage(ctx, n.managerChatID, text)
}
