package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"fullwork/queue-bot/models"
	"fullwork/queue-bot/repositories"
	"fullwork/shared/phone"
)

func (h *Handler) handleAddNumber(ctx context.Context, q *tgbotapi.CallbackQuery) error {
	state := &models.ConversationState{
		ActorID:   q.From.ID,
		Step:      models.StepAwaitingNumber,
		UpdatedAt: time.Now(),
	}
	if err := h.states.Set(ctx, state); err != nil {
		h.log.Error("start add-number dialog", zap.Int64("user_id", q.From.ID), zap.Error(err))
		h.respond(q, textInternalError, nil)
		return err
	}
	kb := backKeyboard()
	h.respond(q, textEnterNumber, &kb)
	return nil
}

// handleNumberInput validates the typed number and queues it. Invalid input
// keeps the dialog open for another try.
func (h *Handler) handleNumberInput(ctx context.Context, message *tgbotapi.Message) error {
	userID := message.From.ID
	kb := backKeyboard()

	number, err := phone.Parse(message.Text)
	if err != nil {
		h.reply(message.Chat.ID, textInvalidNumber, &kb)
		return nil
	}

	_, err = h.numbers.Enqueue(ctx, userID, number)
	switch {
	case errors.Is(err, repositories.ErrAlreadyQueued):
		h.clearDialog(ctx, userID)
		h.reply(message.Chat.ID, textAlreadyQueued, &kb)
		return nil
	case err != nil:
		h.log.Error("enqueue number", zap.Int64("user_id", userID), zap.Error(err))
		h.reply(message.Chat.ID, textInternalError, &kb)
		return err
	}

	h.clearDialog(ctx, userID)
	h.log.Info("number queued", zap.Int64("user_id", userID), zap.String("number", number))
	h.reply(message.Chat.ID, fmt.Sprintf("✅ Номер %s добавлен в очередь!", number), &kb)
	return nil
}
