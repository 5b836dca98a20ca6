package webhook

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type apiCall struct {
	method string
	params map[string]string
}

type fakeAPI struct {
	mu      sync.Mutex
	calls   []apiCall
	served  bool
	updates string
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]

	params := map[string]string{}
	for k := range r.Form {
		params[k] = r.Form.Get(k)
	}

	f.mu.Lock()
	f.calls = append(f.calls, apiCall{method: method, params: params})
	first := !f.served && method == "getUpdates"
	if first {
		f.served = true
	}
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch method {
	case "getMe":
		fmt.Fprint(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"bot","username":"queue_bot"}}`)
	case "sendMessage":
		fmt.Fprintf(w, `{"ok":true,"result":{"message_id":42,"date":0,"chat":{"id":%s,"type":"private"}}}`, params["chat_id"])
	case "getUpdates":
		if first {
			fmt.Fprint(w, f.updates)
			return
		}
		time.Sleep(20 * time.Millisecond)
		fmt.Fprint(w, `{"ok":true,"result":[]}`)
	default:
		fmt.Fprint(w, `{"ok":true,"result":true}`)
	}
}

func (f *fakeAPI) find(method string) (apiCall, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c.method == method {
			return c, true
		}
	}
	return apiCall{}, false
}

func newTestBot(t *testing.T, api *fakeAPI) *Bot {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	client, err := tgbotapi.NewBotAPIWithAPIEndpoint("TOKEN", srv.URL+"/bot%s/%s")
	require.NoError(t, err)
	return &Bot{api: client, log: zaptest.NewLogger(t)}
}

func TestBotMessaging(t *testing.T) {
	api := &fakeAPI{}
	b := newTestBot(t, api)

	kb := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("Ввел", "code_entered"),
	))
	id, err := b.Send(100, "hello", &kb)
	require.NoError(t, err)
	assert.Equal(t, 42, id)

	call, ok := api.find("sendMessage")
	require.True(t, ok)
	assert.Equal(t, "100", call.params["chat_id"])
	assert.Equal(t, "hello", call.params["text"])
	assert.Contains(t, call.params["reply_markup"], "code_entered")

	require.NoError(t, b.Edit(100, 42, "edited", nil))
	call, ok = api.find("editMessageText")
	require.True(t, ok)
	assert.Equal(t, "42", call.params["message_id"])
	assert.Equal(t, "edited", call.params["text"])

	require.NoError(t, b.Delete(100, 42))
	_, ok = api.find("deleteMessage")
	assert.True(t, ok)

	require.NoError(t, b.AnswerCallback("cb-1", ""))
	call, ok = api.find("answerCallbackQuery")
	require.True(t, ok)
	assert.Equal(t, "cb-1", call.params["callback_query_id"])
}

type recordingHandler struct {
	mu      sync.Mutex
	updates []tgbotapi.Update
}

func (r *recordingHandler) HandleUpdate(_ context.Context, u tgbotapi.Update) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, u)
	return nil
}

func (r *recordingHandler) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.updates)
}

func TestPollingDeliversUpdates(t *testing.T) {
	api := &fakeAPI{updates: `{"ok":true,"result":[{"update_id":7,"message":{"message_id":1,"date":0,` +
		`"from":{"id":100,"is_bot":false,"first_name":"A"},"chat":{"id":100,"type":"private"},"text":"hi"}}]}`}
	b := newTestBot(t, api)
	h := &recordingHandler{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx, WebhookConfig{}, h) }()

	assert.Eventually(t, func() bool { return h.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	_, ok := api.find("deleteWebhook")
	assert.True(t, ok)
	h.mu.Lock()
	defer h.mu.Unlock()
	assert.Equal(t, "hi", h.updates[0].Message.Text)
}

const testSecret = "s3cr3t-Token_0123456789"

const forgedUpdate = `{"update_id":9,"callback_query":{"id":"cb","from":{"id":1,"is_bot":false,"first_name":"op"},` +
	`"data":"admin_take_numbers"}}`

func postUpdate(t *testing.T, h http.Handler, path string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(forgedUpdate))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestWebhookRejectsWrongSecret(t *testing.T) {
	b := newTestBot(t, &fakeAPI{})
	updates := &recordingHandler{}
	h := b.webhookHandler(context.Background(), testSecret, updates)

	for _, path := range []string{"/webhook/", "/webhook/guess", "/webhook/" + testSecret + "x", "/webhook/" + testSecret[:8]} {
		assert.Equal(t, http.StatusForbidden, postUpdate(t, h, path), path)
	}
	assert.Zero(t, updates.count())

	assert.Equal(t, http.StatusOK, postUpdate(t, h, "/webhook/"+testSecret))
	require.Equal(t, 1, updates.count())
	assert.Equal(t, "admin_take_numbers", updates.updates[0].CallbackQuery.Data)
}

func TestWebhookWithoutSecretRefusesEverything(t *testing.T) {
	b := newTestBot(t, &fakeAPI{})
	updates := &recordingHandler{}
	h := b.webhookHandler(context.Background(), "", updates)

	assert.Equal(t, http.StatusForbidden, postUpdate(t, h, "/webhook/"))
	assert.Zero(t, updates.count())
}

func TestServeRegistersSecretPath(t *testing.T) {
	api := &fakeAPI{}
	b := newTestBot(t, api)

	err := b.Run(context.Background(), WebhookConfig{URL: "https://bot.example", ListenAddr: "127.0.0.1:0"}, &recordingHandler{})
	assert.ErrorIs(t, err, ErrNoSecret)
	_, ok := api.find("setWebhook")
	assert.False(t, ok)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- b.Run(ctx, WebhookConfig{
			URL:         "https://bot.example",
			ListenAddr:  "127.0.0.1:0",
			SecretToken: testSecret,
		}, &recordingHandler{})
	}()

	assert.Eventually(t, func() bool {
		_, ok := api.find("setWebhook")
		return ok
	}, 2*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	call, _ := api.find("setWebhook")
	assert.Equal(t, "https://bot.example/webhook/"+testSecret, call.params["url"])
}
