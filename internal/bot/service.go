// Package bot implements the chat transport: a webhook receiving updates
// from the bot platform, a sender client, and the conversation logic that
// turns free-text messages into orders.
package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	authrepo "orderbot_backend/internal/auth/repository"
	catalogrepo "orderbot_backend/internal/catalog/repository"
	ordersrepo "orderbot_backend/internal/orders/repository"
	"orderbot_backend/internal/resolver"
	"orderbot_backend/internal/support"
	"orderbot_backend/platform/apperr"
	"orderbot_backend/platform/logger"
)

// Update is one webhook payload from the bot platform.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message"`
}

// Message is an incoming chat message.
type Message struct {
	MessageID int64    `json:"message_id"`
	Chat      Chat     `json:"chat"`
	From      *Sender  `json:"from"`
	Text      string   `json:"text"`
	Contact   *Contact `json:"contact"`
}

// Chat identifies the conversation.
type Chat struct {
	ID int64 `json:"id"`
}

// Sender identifies the message author.
type Sender struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
}

// Contact is a shared phone number used for registration.
type Contact struct {
	PhoneNumber string `json:"phone_number"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
}

// Resolver turns order text into a structured resolution.
type Resolver interface {
	Resolve(ctx context.Context, userID uuid.UUID, orderText string) resolver.Resolution
}

// OrderPlacer persists orders built from resolutions.
type OrderPlacer interface {
	CreateFromResolution(ctx context.Context, userID uuid.UUID, chatID int64, res resolver.Resolution) (ordersrepo.Order, error)
	ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]ordersrepo.Order, error)
}

// Accounts manages chat-bound user accounts.
type Accounts interface {
	EnsureBotUser(ctx context.Context, chatID int64, fio, rawPhone string) (authrepo.User, error)
	UserByChatID(ctx context.Context, chatID int64) (authrepo.User, error)
}

// Questions opens and extends support threads.
type Questions interface {
	OpenQuestion(ctx context.Context, userID uuid.UUID, chatID int64, authorName, title, body string) (support.Thread, error)
	AppendFromChat(ctx context.Context, userID uuid.UUID, authorName, body string) (support.Thread, error)
}

// CategoryLister exposes catalog browsing.
type CategoryLister interface {
	ListCategories(ctx context.Context, parentID *uuid.UUID) ([]catalogrepo.Category, error)
}

// MessageSender delivers outgoing messages. *Client satisfies it.
type MessageSender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// Canned replies. The bot speaks Russian, matching its customers.
const (
	msgWelcome = "Добро пожаловать! Здесь вы можете оформить заказ.\n" +
		"Отправьте свой контакт (кнопка «Поделиться контактом»), чтобы зарегистрироваться.\n" +
		"После этого просто напишите заказ текстом, например: «2 трубы ПВХ 20мм, кран шаровой»."
	msgMenu = "Напишите заказ текстом, и я подберу товары из каталога.\n" +
		"Команды: «каталог», «мои заказы», «вопрос: <текст>»."
	msgNeedContact = "Сначала отправьте свой контакт (кнопка «Поделиться контактом»), чтобы я вас узнал."
	msgRegistered  = "Готово, вы зарегистрированы. " + msgMenu
	msgOrderFailed = "Не удалось распознать заказ. Напишите его списком, например: «2 трубы ПВХ 20мм, кран шаровой»."
	msgEmptyOrders = "Заказов пока нет."
	msgEmptyCat    = "Каталог пуст. Обратитесь к менеджеру."
	msgAskEmpty    = "Напишите вопрос после двоеточия, например: «вопрос: когда доставка?»"
	msgAskOpened   = "Вопрос передан менеджеру. Ответ придёт сюда же."
	msgInternal    = "Что-то пошло не так. Попробуйте ещё раз чуть позже."
)

var statusTitles = map[string]string{
	ordersrepo.StatusPending:    "в обработке",
	ordersrepo.StatusConfirmed:  "подтверждён",
	ordersrepo.StatusAssembling: "собирается",
	ordersrepo.StatusShipped:    "отгружен",
	ordersrepo.StatusCompleted:  "выполнен",
	ordersrepo.StatusCancelled:  "отменён",
}

// Service is the conversation logic behind the webhook.
type Service struct {
	resolver Resolver
	orders   OrderPlacer
	accounts Accounts
	support  Questions
	catalog  CategoryLister
	sender   MessageSender
	log      *logger.Logger
}

// NewService wires the conversation logic to its collaborators.
func NewService(res Resolver, orders OrderPlacer, accounts Accounts, questions Questions, catalog CategoryLister, sender MessageSender, log *logger.Logger) *Service {
	return &Service{
		resolver: res,
		orders:   orders,
		accounts: accounts,
		support:  questions,
		catalog:  catalog,
		sender:   sender,
		log:      log,
	}
}

// HandleUpdate processes one webhook update. Processing failures are
// reported to the customer in-chat and logged; the returned error covers
// only delivery problems so the webhook can always acknowledge.
func (s *Service) HandleUpdate(ctx context.Context, upd Update) error {
	msg := upd.Message
	if msg == nil || msg.Chat.ID == 0 {
		return nil
	}
	chatID := msg.Chat.ID

	if msg.Contact != nil {
		return s.handleContact(ctx, chatID, msg)
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return nil
	}

	switch normalized := strings.ToLower(text); {
	case normalized == "/start":
		return s.handleStart(ctx, chatID)
	case normalized == "/orders" || normalized == "мои заказы" || normalized == "заказы":
		return s.handleMyOrders(ctx, chatID)
	case normalized == "/catalog" || normalized == "каталог":
		return s.handleCatalog(ctx, chatID)
	case strings.HasPrefix(normalized, "вопрос:") || strings.HasPrefix(normalized, "/ask"):
		return s.handleQuestion(ctx, chatID, msg, text)
	default:
		return s.handleOrderText(ctx, chatID, text)
	}
}

func (s *Service) handleStart(ctx context.Context, chatID int64) error {
	if _, err := s.accounts.UserByChatID(ctx, chatID); err == nil {
		return s.sender.SendMessage(ctx, chatID, msgMenu)
	}
	return s.sender.SendMessage(ctx, chatID, msgWelcome)
}

func (s *Service) handleContact(ctx context.Context, chatID int64, msg *Message) error {
	fio := strings.TrimSpace(msg.Contact.FirstName + " " + msg.Contact.LastName)
	if fio == "" && msg.From != nil {
		fio = strings.TrimSpace(msg.From.FirstName + " " + msg.From.LastName)
	}

	_, err := s.accounts.EnsureBotUser(ctx, chatID, fio, msg.Contact.PhoneNumber)
	if err != nil {
		if apperr.Is(err, apperr.KindValidation) {
			return s.sender.SendMessage(ctx, chatID, "Не удалось разобрать номер телефона. Отправьте контакт ещё раз.")
		}
		s.log.Error("bot registration failed", "chat_id", chatID, "error", err.Error())
		return s.sender.SendMessage(ctx, chatID, msgInternal)
	}

	return s.sender.SendMessage(ctx, chatID, msgRegistered)
}

func (s *Service) handleOrderText(ctx context.Context, chatID int64, text string) error {
	user, err := s.accounts.UserByChatID(ctx, chatID)
	if err != nil {
		return s.sender.SendMessage(ctx, chatID, msgNeedContact)
	}

	res := s.resolver.Resolve(ctx, user.ID, text)

	order, err := s.orders.CreateFromResolution(ctx, user.ID, chatID, res)
	if err != nil {
		if apperr.Is(err, apperr.KindBadRequest) {
			return s.sender.SendMessage(ctx, chatID, msgOrderFailed)
		}
		s.log.Error("bot order creation failed", "chat_id", chatID, "error", err.Error())
		return s.sender.SendMessage(ctx, chatID, msgInternal)
	}

	return s.sender.SendMessage(ctx, chatID, formatOrderSummary(order))
}

func (s *Service) handleMyOrders(ctx context.Context, chatID int64) error {
	user, err := s.accounts.UserByChatID(ctx, chatID)
	if err != nil {
		return s.sender.SendMessage(ctx, chatID, msgNeedContact)
	}

	orders, err := s.orders.ListForUser(ctx, user.ID, 10)
	if err != nil {
		s.log.Error("bot order listing failed", "chat_id", chatID, "error", err.Error())
		return s.sender.SendMessage(ctx, chatID, msgInternal)
	}
	if len(orders) == 0 {
		return s.sender.SendMessage(ctx, chatID, msgEmptyOrders)
	}

	var b strings.Builder
	b.WriteString("Ваши заказы:\n")
	for _, order := range orders {
		fmt.Fprintf(&b, "№%s — %s, %s", orderRef(order.ID), statusTitle(order.Status), formatPrice(order.TotalCents))
		if day := formatDay(order.CreatedAt); day != "" {
			b.WriteString(" от " + day)
		}
		b.WriteString("\n")
	}
	return s.sender.SendMessage(ctx, chatID, strings.TrimRight(b.String(), "\n"))
}

func (s *Service) handleCatalog(ctx context.Context, chatID int64) error {
	categories, err := s.catalog.ListCategories(ctx, nil)
	if err != nil {
		s.log.Error("bot catalog listing failed", "chat_id", chatID, "error", err.Error())
		return s.sender.SendMessage(ctx, chatID, msgInternal)
	}
	if len(categories) == 0 {
		return s.sender.SendMessage(ctx, chatID, msgEmptyCat)
	}

	var b strings.Builder
	b.WriteString("Разделы каталога:\n")
	for _, cat := range categories {
		b.WriteString("• " + cat.Title + "\n")
	}
	b.WriteString("Чтобы заказать, напишите название товара и количество.")
	return s.sender.SendMessage(ctx, chatID, b.String())
}

func (s *Service) handleQuestion(ctx context.Context, chatID int64, msg *Message, text string) error {
	user, err := s.accounts.UserByChatID(ctx, chatID)
	if err != nil {
		return s.sender.SendMessage(ctx, chatID, msgNeedContact)
	}

	body := questionBody(text)
	if body == "" {
		return s.sender.SendMessage(ctx, chatID, msgAskEmpty)
	}

	authorName := user.FIO
	if authorName == "" && msg.From != nil {
		authorName = strings.TrimSpace(msg.From.FirstName + " " + msg.From.LastName)
	}

	if _, err := s.support.AppendFromChat(ctx, user.ID, authorName, body); err != nil {
		if !apperr.Is(err, apperr.KindNotFound) {
			s.log.Error("bot question append failed", "chat_id", chatID, "error", err.Error())
			return s.sender.SendMessage(ctx, chatID, msgInternal)
		}
		if _, err := s.support.OpenQuestion(ctx, user.ID, chatID, authorName, "", body); err != nil {
			s.log.Error("bot question open failed", "chat_id", chatID, "error", err.Error())
			return s.sender.SendMessage(ctx, chatID, msgInternal)
		}
	}

	return s.sender.SendMessage(ctx, chatID, msgAskOpened)
}

// questionBody strips the question trigger ("вопрос: ..." or "/ask ...").
func questionBody(text string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.HasPrefix(lower, "вопрос:"):
		return strings.TrimSpace(text[len("вопрос:"):])
	case strings.HasPrefix(lower, "/ask"):
		return strings.TrimSpace(text[len("/ask"):])
	default:
		return strings.TrimSpace(text)
	}
}

func formatOrderSummary(order ordersrepo.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Заказ №%s оформлен.\n", orderRef(order.ID))
	for _, item := range order.Items {
		fmt.Fprintf(&b, "• %s x%d — %s\n", item.Title, item.Qty, formatPrice(item.PriceCents*int64(item.Qty)))
	}
	if len(order.Items) > 0 {
		fmt.Fprintf(&b, "Итого: %s\n", formatPrice(order.TotalCents))
	}
	if len(order.Unresolved) > 0 {
		b.WriteString("Не удалось подобрать, менеджер уточнит:\n")
		for _, line := range order.Unresolved {
			fmt.Fprintf(&b, "• %s x%d\n", line.Line, line.Qty)
		}
	}
	b.WriteString("Менеджер свяжется с вами.")
	return b.String()
}

// orderRef is the short human-facing order reference.
func orderRef(id uuid.UUID) string {
	return strings.ToUpper(id.String()[:8])
}

func formatPrice(cents int64) string {
	return fmt.Sprintf("%d.%02d ₽", cents/100, cents%100)
}

func statusTitle(status string) string {
	if title, ok := statusTitles[status]; ok {
		return title
	}
	return status
}

func formatDay(createdAt string) string {
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return ""
	}
	return t.Format("02.01")
}
