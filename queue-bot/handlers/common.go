package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"fullwork/queue-bot/models"
	"fullwork/queue-bot/repositories"
	"fullwork/queue-bot/sessions"
)

// Callback tokens carried by inline buttons.
const (
	ActionAddNumber    = "add_number"
	ActionMyNumbers    = "my_numbers"
	ActionNumbers      = "numbers"
	ActionQueue        = "queue"
	ActionRefresh      = "refresh"
	ActionBackToMain   = "back_to_main"
	ActionStatistics   = "statistics"
	ActionAdminPanel   = "admin_panel"
	ActionTakeNumber   = "admin_take_numbers"
	ActionReportFlight = "admin_report_flight"
	ActionFlight       = "flight"
	ActionCodeSkip     = "code_skip"
	ActionCodeEntered  = "code_entered"
)

const maxCallbackDataSize = 64

// Messenger is the slice of the chat transport the bot needs.
type Messenger interface {
	Send(chatID int64, text string, markup *tgbotapi.InlineKeyboardMarkup) (int, error)
	Edit(chatID int64, messageID int, text string, markup *tgbotapi.InlineKeyboardMarkup) error
	Delete(chatID int64, messageID int) error
	AnswerCallback(callbackID, text string) error
}

// StateStore holds in-progress dialogs keyed by actor id. Get returns nil
// when the actor has no dialog.
type StateStore interface {
	Get(ctx context.Context, actorID int64) (*models.ConversationState, error)
	Set(ctx context.Context, state *models.ConversationState) error
	Clear(ctx context.Context, actorID int64) error
}

type Limiter interface {
	Allow(ctx context.Context, userID int64) (bool, error)
}

type HandlerConfig struct {
	Messenger Messenger
	Users     *repositories.UserRepository
	Numbers   *repositories.NumberRepository
	Sessions  *sessions.Manager
	States    StateStore
	Limiter   Limiter
	Operators []int64
	Logger    *zap.Logger

	// FlightChoices caps the records offered in the flight report picker.
	FlightChoices int
}

// Handler routes updates to the menu, the dialogs and the operator actions.
// Updates and expiry notices are handled one at a time.
type Handler struct {
	mu sync.Mutex

	msg       Messenger
	users     *repositories.UserRepository
	numbers   *repositories.NumberRepository
	sessions  *sessions.Manager
	states    StateStore
	limiter   Limiter
	operators map[int64]struct{}
	choices   int
	log       *zap.Logger
}

func NewHandler(cfg HandlerConfig) *Handler {
	ops := make(map[int64]struct{}, len(cfg.Operators))
	for _, id := range cfg.Operators {
		ops[id] = struct{}{}
	}
	choices := cfg.FlightChoices
	if choices <= 0 {
		choices = 10
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	h := &Handler{
		msg:       cfg.Messenger,
		users:     cfg.Users,
		numbers:   cfg.Numbers,
		sessions:  cfg.Sessions,
		states:    cfg.States,
		limiter:   cfg.Limiter,
		operators: ops,
		choices:   choices,
		log:       log.Named("handlers"),
	}
	cfg.Sessions.SetNotifier(h)
	return h
}

// HandleUpdate processes one inbound update. The returned error is for
// logging only; the user has already been told what went wrong.
func (h *Handler) HandleUpdate(ctx context.Context, update tgbotapi.Update) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch {
	case update.Message != nil && update.Message.From != nil:
		if !h.allow(ctx, update.Message.From.ID) {
			return nil
		}
		return h.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil && update.CallbackQuery.From != nil:
		if err := h.msg.AnswerCallback(update.CallbackQuery.ID, ""); err != nil {
			h.log.Debug("answer callback", zap.Error(err))
		}
		if !h.allow(ctx, update.CallbackQuery.From.ID) {
			return nil
		}
		return h.handleCallback(ctx, update.CallbackQuery)
	}
	return nil
}

func (h *Handler) allow(ctx context.Context, userID int64) bool {
	if h.limiter == nil {
		return true
	}
	ok, err := h.limiter.Allow(ctx, userID)
	if err != nil {
		h.log.Warn("rate limit check failed", zap.Int64("user_id", userID), zap.Error(err))
		return true
	}
	if !ok {
		h.log.Info("update dropped by rate limit", zap.Int64("user_id", userID))
	}
	return ok
}

func (h *Handler) handleMessage(ctx context.Context, message *tgbotapi.Message) error {
	from := message.From
	user, err := h.users.GetOrCreate(ctx, from.ID, from.UserName)
	if err != nil {
		h.log.Error("load user", zap.Int64("user_id", from.ID), zap.Error(err))
		h.reply(message.Chat.ID, textInternalError, nil)
		return err
	}

	if message.IsCommand() {
		switch message.Command() {
		case "start":
			if err := h.states.Clear(ctx, from.ID); err != nil {
				h.log.Warn("clear dialog", zap.Int64("user_id", from.ID), zap.Error(err))
			}
			kb := h.mainKeyboard(from.ID)
			h.reply(message.Chat.ID, h.mainMenuText(user), &kb)
			return nil
		case "admin":
			if !h.isOperator(from.ID) {
				h.reply(message.Chat.ID, textAdminDenied, nil)
				return ErrAccessDenied
			}
			kb := adminKeyboard()
			h.reply(message.Chat.ID, textAdminPanel, &kb)
			return nil
		default:
			h.reply(message.Chat.ID, textUnknownCommand, nil)
			return nil
		}
	}

	state, err := h.states.Get(ctx, from.ID)
	if err != nil {
		h.log.Error("load dialog", zap.Int64("user_id", from.ID), zap.Error(err))
		h.reply(message.Chat.ID, textInternalError, nil)
		return err
	}
	if state != nil {
		switch state.Step {
		case models.StepAwaitingNumber:
			return h.handleNumberInput(ctx, message)
		case models.StepAwaitingFlightTime, models.StepConfirmFlight:
			return h.handleFlightTimeInput(ctx, message, state)
		}
	}

	h.reply(message.Chat.ID, textUseMenu, nil)
	return nil
}

func (h *Handler) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) error {
	if _, err := h.users.GetOrCreate(ctx, q.From.ID, q.From.UserName); err != nil {
		h.log.Error("load user", zap.Int64("user_id", q.From.ID), zap.Error(err))
		h.respond(q, textInternalError, nil)
		return err
	}

	parts := strings.Split(q.Data, ":")
	action := parts[0]

	switch action {
	case ActionAddNumber:
		return h.handleAddNumber(ctx, q)
	case ActionMyNumbers:
		kb := myNumbersKeyboard()
		h.respond(q, textMyNumbers, &kb)
	case ActionNumbers:
		return h.handleNumbersSection(q, parts)
	case ActionQueue:
		kb := backKeyboard()
		h.respond(q, fmt.Sprintf("📊 Общая очередь: %d", h.numbers.QueueLen()), &kb)
	case ActionRefresh:
		return h.showMainMenu(ctx, q, false)
	case ActionBackToMain:
		return h.showMainMenu(ctx, q, true)
	case ActionStatistics:
		return h.handleStatistics(q)
	case ActionAdminPanel:
		return h.handleAdminPanel(q)
	case ActionTakeNumber:
		return h.handleTakeNumber(q)
	case ActionReportFlight:
		return h.handleReportFlight(q)
	case ActionFlight:
		return h.handleFlightAction(ctx, q, parts)
	case ActionCodeSkip:
		return h.handleCodeAction(ctx, q, false)
	case ActionCodeEntered:
		return h.handleCodeAction(ctx, q, true)
	default:
		h.log.Debug("unknown callback", zap.String("data", q.Data), zap.Int64("user_id", q.From.ID))
	}
	return nil
}

// respond edits the message the button belongs to, or sends a new one when
// the callback carries no message.
func (h *Handler) respond(q *tgbotapi.CallbackQuery, text string, markup *tgbotapi.InlineKeyboardMarkup) {
	if q.Message == nil || q.Message.Chat == nil {
		h.reply(q.From.ID, text, markup)
		return
	}
	if err := h.msg.Edit(q.Message.Chat.ID, q.Message.MessageID, text, markup); err != nil {
		h.log.Warn("edit message", zap.Int64("chat_id", q.Message.Chat.ID), zap.Error(err))
	}
}

func (h *Handler) reply(chatID int64, text string, markup *tgbotapi.InlineKeyboardMarkup) {
	if _, err := h.msg.Send(chatID, text, markup); err != nil {
		h.log.Warn("send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

// notifyOperators tells every operator about an event. Failures are logged.
func (h *Handler) notifyOperators(text string) {
	for id := range h.operators {
		h.reply(id, text, nil)
	}
}

func (h *Handler) clearDialog(ctx context.Context, actorID int64) {
	if err := h.states.Clear(ctx, actorID); err != nil {
		h.log.Warn("clear dialog", zap.Int64("user_id", actorID), zap.Error(err))
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, repositories.ErrNumberNotFound)
}
