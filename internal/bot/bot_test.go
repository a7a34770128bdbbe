package bot

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"autokool/internal/checkout"
	"autokool/internal/config"
	"autokool/internal/notify"
	"autokool/internal/storage"
	redisstore "autokool/internal/storage/redis"
	rediscli "autokool/pkg/redis"
)

type apiCall struct {
	method string
	form   map[string]string
}

// fakeTelegram answers the Bot API methods the bot uses and records them.
type fakeTelegram struct {
	*httptest.Server

	mu     sync.Mutex
	calls  []apiCall
	nextID int
}

func newFakeTelegram(t *testing.T) *fakeTelegram {
	t.Helper()
	f := &fakeTelegram{nextID: 7}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
			assert.NoError(t, r.ParseMultipartForm(1<<20))
		} else {
			assert.NoError(t, r.ParseForm())
		}
		w.Header().Set("Content-Type", "application/json")

		method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		switch method {
		case "getMe":
			_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"Autokool","username":"autokool_bot"}}`))
			return
		case "getUpdates":
			_, _ = w.Write([]byte(`{"ok":true,"result":[]}`))
			return
		}

		form := map[string]string{}
		for k := range r.Form {
			form[k] = r.Form.Get(k)
		}

		f.mu.Lock()
		f.calls = append(f.calls, apiCall{method: method, form: form})
		id := f.nextID
		f.nextID++
		f.mu.Unlock()

		switch method {
		case "answerCallbackQuery":
			_, _ = w.Write([]byte(`{"ok":true,"result":true}`))
		default:
			fmt.Fprintf(w, `{"ok":true,"result":{"message_id":%d,"date":0,"chat":{"id":%s,"type":"private"}}}`,
				id, form["chat_id"])
		}
	}))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeTelegram) sent(method string) []apiCall {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []apiCall
	for _, c := range f.calls {
		if c.method == method {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeTelegram) last(t *testing.T, method string) apiCall {
	t.Helper()
	calls := f.sent(method)
	require.NotEmpty(t, calls, "no %s call", method)
	return calls[len(calls)-1]
}

type memKV struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, rediscli.ErrNil
	}
	return v, nil
}

func (m *memKV) Set(_ context.Context, key string, data []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = data
	return nil
}

func (m *memKV) Del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

type fakeOrders struct {
	stats      *storage.OrderStatistics
	order      *storage.Order
	exportPath string
}

func (f *fakeOrders) GetOrderByID(_ context.Context, id int64) (*storage.Order, error) {
	if f.order == nil || f.order.ID != id {
		return nil, storage.ErrOrderNotFound
	}
	return f.order, nil
}

func (f *fakeOrders) GetOrderStatistics(context.Context) (*storage.OrderStatistics, error) {
	return f.stats, nil
}

func (f *fakeOrders) ExportOrdersToExcel(context.Context, string) (string, error) {
	return f.exportPath, nil
}

type recordingDeliverer struct {
	notes []notify.Notification
}

func (d *recordingDeliverer) Deliver(_ context.Context, _ string, n notify.Notification) error {
	d.notes = append(d.notes, n)
	return nil
}

func testOrder() checkout.Order {
	return checkout.Order{
		SessionID:    "sess-1",
		Category:     checkout.CategoryB,
		Transmission: checkout.TransmissionAutomatic,
		Price:        840,
		Address:      checkout.Address{FirstName: "Mari", LastName: "Tamm", Phone: "+3725550000"},
		PaymentID:    "pi_123",
		Amount:       10000,
		Currency:     "eur",
	}
}

type testBot struct {
	*Bot
	tg     *fakeTelegram
	states *redisstore.Storage
	admin  *recordingDeliverer
}

const adminID = int64(99)

func newTestBot(t *testing.T, orders OrderStore) *testBot {
	t.Helper()
	tg := newFakeTelegram(t)
	api, err := tgbotapi.NewBotAPIWithClient("123:abc", tg.URL+"/bot%s/%s", tg.Client())
	require.NoError(t, err)

	cfg := &config.Config{
		HTTP: config.HTTPConfig{PublicURL: "https://autokool.test/"},
		Admin: config.AdminConfig{
			IDs:       []int64{adminID},
			ChannelID: -100,
			ReportDir: t.TempDir(),
		},
	}
	states := redisstore.New(&memKV{data: map[string][]byte{}}, time.Hour)
	admin := &recordingDeliverer{}
	notifier := notify.New("777", zap.NewNop(), notify.WithDirect(admin))

	return &testBot{
		Bot:    New(api, states, orders, notifier, zap.NewNop(), cfg),
		tg:     tg,
		states: states,
		admin:  admin,
	}
}

func (b *testBot) state(t *testing.T, chatID int64) *redisstore.DialogState {
	t.Helper()
	s, err := b.states.GetUserDialogState(context.Background(), chatID)
	require.NoError(t, err)
	return s
}

func command(chatID int64, text string) tgbotapi.Update {
	cmd, _, _ := strings.Cut(text, " ")
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:     &tgbotapi.Chat{ID: chatID},
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}},
	}}
}

func callback(chatID int64, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		Data:    data,
		Message: &tgbotapi.Message{MessageID: 1, Chat: &tgbotapi.Chat{ID: chatID}},
	}}
}

func text(chatID int64, s string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Chat: &tgbotapi.Chat{ID: chatID},
		From: &tgbotapi.User{ID: chatID, FirstName: "Mari", LastName: "Tamm"},
		Text: s,
	}}
}

func TestStartShowsCourses(t *testing.T) {
	b := newTestBot(t, nil)
	ctx := context.Background()

	b.handleUpdate(ctx, command(5, "/start"))

	msg := b.tg.last(t, "sendMessage")
	assert.Equal(t, "5", msg.form["chat_id"])
	assert.Contains(t, msg.form["reply_markup"], "category:category-a")
	assert.Contains(t, msg.form["reply_markup"], "category:category-c")
	assert.Equal(t, StepCategory, b.state(t, 5).Step)
}

func TestCategoryBQuote(t *testing.T) {
	b := newTestBot(t, nil)
	ctx := context.Background()

	b.handleUpdate(ctx, callback(5, "category:category-b"))
	assert.Len(t, b.tg.sent("answerCallbackQuery"), 1)
	assert.Contains(t, b.tg.last(t, "sendMessage").form["reply_markup"], "transmission:automatic")
	assert.Equal(t, StepTransmission, b.state(t, 5).Step)

	b.handleUpdate(ctx, callback(5, "transmission:automatic"))
	quote := b.tg.last(t, "sendMessage")
	assert.Contains(t, quote.form["text"], "840€")
	assert.Equal(t, "HTML", quote.form["parse_mode"])
	assert.Contains(t, quote.form["reply_markup"], "https://autokool.test/pay/category-b?")
	assert.Contains(t, quote.form["reply_markup"], "location=telegram_bot")
	assert.Contains(t, quote.form["reply_markup"], "https://autokool.test/checkout?category=category-b")

	state := b.state(t, 5)
	assert.Equal(t, StepQuote, state.Step)
	assert.Equal(t, "automatic", state.Transmission)
	require.NotZero(t, state.QuoteMessageID)

	// switching the gearbox edits the quote already on screen
	b.handleUpdate(ctx, callback(5, "transmission:manual"))
	edit := b.tg.last(t, "editMessageText")
	assert.Equal(t, fmt.Sprint(state.QuoteMessageID), edit.form["message_id"])
	assert.Contains(t, edit.form["text"], "700€")
	assert.Equal(t, state.QuoteMessageID, b.state(t, 5).QuoteMessageID)
}

func TestCategoryAQuoteSkipsTransmission(t *testing.T) {
	b := newTestBot(t, nil)

	b.handleUpdate(context.Background(), callback(5, "category:category-a"))

	assert.Contains(t, b.tg.last(t, "sendMessage").form["text"], "570€")
	state := b.state(t, 5)
	assert.Equal(t, StepQuote, state.Step)
	assert.Equal(t, "manual", state.Transmission)
}

func TestTransmissionNeedsCategoryB(t *testing.T) {
	b := newTestBot(t, nil)

	b.handleUpdate(context.Background(), callback(5, "transmission:manual"))

	assert.Contains(t, b.tg.last(t, "sendMessage").form["text"], "choose a course first")
	assert.Empty(t, b.state(t, 5).Step)
}

func TestCallMeBack(t *testing.T) {
	b := newTestBot(t, nil)
	ctx := context.Background()

	b.handleUpdate(ctx, callback(5, "category:category-c"))
	b.handleUpdate(ctx, callback(5, "callme"))
	assert.Contains(t, b.tg.last(t, "sendMessage").form["reply_markup"], `"request_contact":true`)
	assert.Equal(t, StepContact, b.state(t, 5).Step)

	b.handleUpdate(ctx, text(5, "12345"))
	assert.Contains(t, b.tg.last(t, "sendMessage").form["text"], "real phone number")
	assert.Empty(t, b.admin.notes)

	b.handleUpdate(ctx, tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:    &tgbotapi.Chat{ID: 5},
		Contact: &tgbotapi.Contact{PhoneNumber: "5123 4567", FirstName: "Jaan"},
	}})
	require.Len(t, b.admin.notes, 1)
	assert.Equal(t, notify.NewUser{Name: "Jaan", Phone: "+37251234567"}, b.admin.notes[0])
	assert.Contains(t, b.tg.last(t, "sendMessage").form["text"], "We will call you")
	assert.Empty(t, b.state(t, 5).Step)
}

func TestCallMeBack_Cancel(t *testing.T) {
	b := newTestBot(t, nil)
	ctx := context.Background()

	b.handleUpdate(ctx, callback(5, "category:category-a"))
	b.handleUpdate(ctx, callback(5, "callme"))
	b.handleUpdate(ctx, text(5, cancelText))

	assert.Empty(t, b.admin.notes)
	assert.Equal(t, StepQuote, b.state(t, 5).Step)
}

func TestFreeTextOutsideContactStep(t *testing.T) {
	b := newTestBot(t, nil)

	b.handleUpdate(context.Background(), text(5, "hello"))
	assert.Contains(t, b.tg.last(t, "sendMessage").form["text"], "I don't understand")
}

func TestAdminStats(t *testing.T) {
	orders := &fakeOrders{stats: &storage.OrderStatistics{
		TotalOrders:    3,
		TotalRevenue:   1710,
		CategoryCounts: map[string]int{"category-b": 2, "category-a": 1},
	}}
	b := newTestBot(t, orders)
	ctx := context.Background()

	b.handleUpdate(ctx, command(5, "/stats"))
	assert.Contains(t, b.tg.last(t, "sendMessage").form["text"], "Unknown command")

	b.handleUpdate(ctx, command(adminID, "/stats"))
	msg := b.tg.last(t, "sendMessage")
	assert.Contains(t, msg.form["text"], "Total orders: 3")
	assert.Contains(t, msg.form["text"], "1710€")
	assert.Contains(t, msg.form["text"], "category-a: 1\ncategory-b: 2")
}

func TestAdminExport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("xlsx"), 0o600))

	order := storage.OrderFromCheckout(testOrder())
	order.ID = 4
	b := newTestBot(t, &fakeOrders{exportPath: path, order: &order})
	ctx := context.Background()

	b.handleUpdate(ctx, command(adminID, "/export"))
	require.Len(t, b.tg.sent("sendDocument"), 1)
	assert.Equal(t, "📊 All orders export", b.tg.last(t, "sendDocument").form["caption"])

	b.handleUpdate(ctx, command(adminID, "/export 4"))
	require.Len(t, b.tg.sent("sendDocument"), 2)
	assert.Equal(t, "📊 Order #4 export", b.tg.last(t, "sendDocument").form["caption"])

	b.handleUpdate(ctx, command(adminID, "/export 5"))
	assert.Contains(t, b.tg.last(t, "sendMessage").form["text"], "Order not found")

	b.handleUpdate(ctx, command(adminID, "/export abc"))
	assert.Contains(t, b.tg.last(t, "sendMessage").form["text"], "Invalid order ID")
}

func TestAnnounceOrder(t *testing.T) {
	b := newTestBot(t, nil)

	order := storage.OrderFromCheckout(testOrder())
	order.ID = 9
	require.NoError(t, b.AnnounceOrder(context.Background(), order))

	msg := b.tg.last(t, "sendMessage")
	assert.Equal(t, "-100", msg.form["chat_id"])
	assert.Contains(t, msg.form["text"], "New order #9")
	assert.Contains(t, msg.form["text"], "Transmission: automatic")
	assert.Contains(t, msg.form["text"], "Paid: 100.00 EUR")

	doc := b.tg.last(t, "sendDocument")
	assert.Equal(t, "-100", doc.form["chat_id"])
	assert.Equal(t, "📊 Order #9", doc.form["caption"])
}

func TestAnnounceOrder_NoChannel(t *testing.T) {
	b := newTestBot(t, nil)
	b.cfg.Admin.ChannelID = 0

	require.NoError(t, b.AnnounceOrder(context.Background(), storage.Order{ID: 1}))
	assert.Empty(t, b.tg.sent("sendMessage"))
}

func TestStartStopsOnCancel(t *testing.T) {
	b := newTestBot(t, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- b.Start(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("bot did not stop")
	}
}
