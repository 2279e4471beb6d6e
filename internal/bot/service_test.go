package bot

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"

	authrepo "orderbot_backend/internal/auth/repository"
	catalogrepo "orderbot_backend/internal/catalog/repository"
	"orderbot_backend/internal/events"
	ordersrepo "orderbot_backend/internal/orders/repository"
	"orderbot_backend/internal/resolver"
	"orderbot_backend/internal/support"
	"orderbot_backend/platform/apperr"
	"orderbot_backend/platform/logger"
)

type sentMessage struct {
	chatID int64
	text   string
}

type fakeSender struct {
	sent []sentMessage
}

func (f *fakeSender) SendMessage(_ context.Context, chatID int64, text string) error {
	f.sent = append(f.sent, sentMessage{chatID: chatID, text: text})
	return nil
}

func (f *fakeSender) last(t *testing.T) sentMessage {
	t.Helper()
	if len(f.sent) == 0 {
		t.Fatal("no messages sent")
	}
	return f.sent[len(f.sent)-1]
}

type fakeAccounts struct {
	byChat     map[int64]authrepo.User
	registered []string
}

func (f *fakeAccounts) EnsureBotUser(_ context.Context, chatID int64, fio, rawPhone string) (authrepo.User, error) {
	f.registered = append(f.registered, rawPhone)
	user := authrepo.User{ID: uuid.New(), ChatID: chatID, FIO: fio, Phone: rawPhone, Role: authrepo.RoleClient}
	if f.byChat == nil {
		f.byChat = make(map[int64]authrepo.User)
	}
	f.byChat[chatID] = user
	return user, nil
}

func (f *fakeAccounts) UserByChatID(_ context.Context, chatID int64) (authrepo.User, error) {
	user, ok := f.byChat[chatID]
	if !ok {
		return authrepo.User{}, apperr.NotFound("user not found")
	}
	return user, nil
}

type fakeResolver struct {
	res   resolver.Resolution
	texts []string
}

func (f *fakeResolver) Resolve(_ context.Context, _ uuid.UUID, orderText string) resolver.Resolution {
	f.texts = append(f.texts, orderText)
	return f.res
}

type fakeOrders struct {
	created []resolver.Resolution
	orders  []ordersrepo.Order
}

func (f *fakeOrders) CreateFromResolution(_ context.Context, userID uuid.UUID, _ int64, res resolver.Resolution) (ordersrepo.Order, error) {
	if len(res.Resolved) == 0 && len(res.Unresolved) == 0 {
		return ordersrepo.Order{}, apperr.BadRequest("empty order")
	}
	f.created = append(f.created, res)

	order := ordersrepo.Order{ID: uuid.New(), UserID: &userID, Status: ordersrepo.StatusPending}
	for _, line := range res.Resolved {
		order.Items = append(order.Items, ordersrepo.OrderItem{
			Title:      line.Title,
			Qty:        line.Qty,
			PriceCents: line.PriceCents,
		})
		order.TotalCents += line.PriceCents * int64(line.Qty)
	}
	for _, line := range res.Unresolved {
		order.Unresolved = append(order.Unresolved, ordersrepo.UnresolvedLine{Line: line.Text, Qty: line.Qty})
	}
	return order, nil
}

func (f *fakeOrders) ListForUser(_ context.Context, _ uuid.UUID, _ int) ([]ordersrepo.Order, error) {
	return f.orders, nil
}

type fakeQuestions struct {
	appended []string
	opened   []string
	noOpen   bool
}

func (f *fakeQuestions) AppendFromChat(_ context.Context, _ uuid.UUID, _, body string) (support.Thread, error) {
	if f.noOpen {
		return support.Thread{}, apperr.NotFound("no open thread")
	}
	f.appended = append(f.appended, body)
	return support.Thread{}, nil
}

func (f *fakeQuestions) OpenQuestion(_ context.Context, _ uuid.UUID, _ int64, _, _, body string) (support.Thread, error) {
	f.opened = append(f.opened, body)
	return support.Thread{}, nil
}

type fakeCategories struct {
	categories []catalogrepo.Category
}

func (f *fakeCategories) ListCategories(_ context.Context, _ *uuid.UUID) ([]catalogrepo.Category, error) {
	return f.categories, nil
}

type botFixture struct {
	svc       *Service
	sender    *fakeSender
	accounts  *fakeAccounts
	resolver  *fakeResolver
	orders    *fakeOrders
	questions *fakeQuestions
}

func newFixture(res resolver.Resolution) *botFixture {
	f := &botFixture{
		sender:    &fakeSender{},
		accounts:  &fakeAccounts{},
		resolver:  &fakeResolver{res: res},
		orders:    &fakeOrders{},
		questions: &fakeQuestions{},
	}
	f.svc = NewService(f.resolver, f.orders, f.accounts, f.questions, &fakeCategories{}, f.sender, logger.New("development"))
	return f
}

func textUpdate(chatID int64, text string) Update {
	return Update{Message: &Message{Chat: Chat{ID: chatID}, Text: text}}
}

func TestStartAsksUnregisteredForContact(t *testing.T) {
	f := newFixture(resolver.Resolution{})

	if err := f.svc.HandleUpdate(context.Background(), textUpdate(10, "/start")); err != nil {
		t.Fatalf("HandleUpdate: %v", err)
	}
	if !strings.Contains(f.sender.last(t).text, "контакт") {
		t.Errorf("expected contact prompt, got %q", f.sender.last(t).text)
	}
}

func TestContactRegistersUser(t *testing.T) {
	f := newFixture(resolver.Resolution{})

	upd := Update{Message: &Message{
		Chat:    Chat{ID: 10},
		Contact: &Contact{PhoneNumber: "+79123456789", FirstName: "Иван", LastName: "Петров"},
	}}
	if err := f.svc.HandleUpdate(context.Background(), upd); err != nil {
		t.Fatalf("HandleUpdate: %v", err)
	}

	if len(f.accounts.registered) != 1 || f.accounts.registered[0] != "+79123456789" {
		t.Fatalf("registration calls: %v", f.accounts.registered)
	}
	if !strings.Contains(f.sender.last(t).text, "зарегистрированы") {
		t.Errorf("unexpected reply %q", f.sender.last(t).text)
	}
}

func TestOrderTextCreatesOrderAndSummarizes(t *testing.T) {
	res := resolver.Resolution{
		Source: "provider:primary",
		Resolved: []resolver.ResolvedLine{
			{Title: "Труба ПВХ 20мм", Qty: 2, PriceCents: 12500},
		},
		Unresolved: []resolver.UnresolvedLine{{Text: "кран", Qty: 3}},
	}
	f := newFixture(res)
	_, _ = f.accounts.EnsureBotUser(context.Background(), 10, "Иван", "+79123456789")
	f.sender.sent = nil

	if err := f.svc.HandleUpdate(context.Background(), textUpdate(10, "2 трубы пвх 20мм, 3 крана")); err != nil {
		t.Fatalf("HandleUpdate: %v", err)
	}
	if len(f.orders.created) != 1 {
		t.Fatalf("orders created: %d", len(f.orders.created))
	}

	reply := f.sender.last(t).text
	for _, want := range []string{"Труба ПВХ 20мм x2", "250.00 ₽", "Итого", "кран x3"} {
		if !strings.Contains(reply, want) {
			t.Errorf("reply missing %q:\n%s", want, reply)
		}
	}
}

func TestOrderTextRequiresRegistration(t *testing.T) {
	f := newFixture(resolver.Resolution{})

	if err := f.svc.HandleUpdate(context.Background(), textUpdate(10, "2 трубы")); err != nil {
		t.Fatalf("HandleUpdate: %v", err)
	}
	if f.sender.last(t).text != msgNeedContact {
		t.Errorf("expected contact prompt, got %q", f.sender.last(t).text)
	}
	if len(f.orders.created) != 0 {
		t.Error("order must not be created for unknown chat")
	}
}

func TestUnparsableOrderGetsHelpText(t *testing.T) {
	f := newFixture(resolver.Resolution{Source: "local"})
	_, _ = f.accounts.EnsureBotUser(context.Background(), 10, "Иван", "+79123456789")

	if err := f.svc.HandleUpdate(context.Background(), textUpdate(10, "???")); err != nil {
		t.Fatalf("HandleUpdate: %v", err)
	}
	if f.sender.last(t).text != msgOrderFailed {
		t.Errorf("expected help text, got %q", f.sender.last(t).text)
	}
}

func TestMyOrdersListsRecent(t *testing.T) {
	f := newFixture(resolver.Resolution{})
	user, _ := f.accounts.EnsureBotUser(context.Background(), 10, "Иван", "+79123456789")
	f.orders.orders = []ordersrepo.Order{
		{ID: uuid.New(), UserID: &user.ID, Status: ordersrepo.StatusShipped, TotalCents: 9900, CreatedAt: "2026-08-29T10:00:00Z"},
	}

	if err := f.svc.HandleUpdate(context.Background(), textUpdate(10, "мои заказы")); err != nil {
		t.Fatalf("HandleUpdate: %v", err)
	}

	reply := f.sender.last(t).text
	for _, want := range []string{"отгружен", "99.00 ₽", "29.08"} {
		if !strings.Contains(reply, want) {
			t.Errorf("reply missing %q:\n%s", want, reply)
		}
	}
}

func TestQuestionFallsBackToNewThread(t *testing.T) {
	f := newFixture(resolver.Resolution{})
	f.questions.noOpen = true
	_, _ = f.accounts.EnsureBotUser(context.Background(), 10, "Иван", "+79123456789")

	if err := f.svc.HandleUpdate(context.Background(), textUpdate(10, "Вопрос: когда доставка?")); err != nil {
		t.Fatalf("HandleUpdate: %v", err)
	}

	if len(f.questions.opened) != 1 || f.questions.opened[0] != "когда доставка?" {
		t.Fatalf("opened threads: %v", f.questions.opened)
	}
	if f.sender.last(t).text != msgAskOpened {
		t.Errorf("unexpected reply %q", f.sender.last(t).text)
	}
}

func TestEmptyUpdatesAreIgnored(t *testing.T) {
	f := newFixture(resolver.Resolution{})

	if err := f.svc.HandleUpdate(context.Background(), Update{}); err != nil {
		t.Fatalf("HandleUpdate: %v", err)
	}
	if err := f.svc.HandleUpdate(context.Background(), textUpdate(10, "   ")); err != nil {
		t.Fatalf("HandleUpdate: %v", err)
	}
	if len(f.sender.sent) != 0 {
		t.Fatalf("expected no replies, got %v", f.sender.sent)
	}
}

func TestNotifierRoutesEvents(t *testing.T) {
	sender := &fakeSender{}
	notifier := NewNotifier(sender, 777, logger.New("development"))

	orderID := uuid.New()
	err := notifier.onOrderCreated(context.Background(), events.OrderCreated{
		BaseEvent: events.NewBaseEvent(), OrderID: orderID, ItemCount: 2, UnresolvedCount: 1, TotalCents: 50000,
	})
	if err != nil {
		t.Fatalf("onOrderCreated: %v", err)
	}
	if msg := sender.last(t); msg.chatID != 777 || !strings.Contains(msg.text, "500.00 ₽") {
		t.Errorf("manager notification wrong: %+v", msg)
	}

	err = notifier.onOrderStatusChanged(context.Background(), events.OrderStatusChanged{
		BaseEvent: events.NewBaseEvent(), OrderID: orderID, ChatID: 10, From: ordersrepo.StatusPending, To: ordersrepo.StatusShipped,
	})
	if err != nil {
		t.Fatalf("onOrderStatusChanged: %v", err)
	}
	if msg := sender.last(t); msg.chatID != 10 || !strings.Contains(msg.text, "отгружен") {
		t.Errorf("customer notification wrong: %+v", msg)
	}

	before := len(sender.sent)
	err = notifier.onOrderStatusChanged(context.Background(), events.OrderStatusChanged{
		BaseEvent: events.NewBaseEvent(), OrderID: orderID, ChatID: 0, To: ordersrepo.StatusShipped,
	})
	if err != nil || len(sender.sent) != before {
		t.Error("web orders must not trigger chat notifications")
	}
}
