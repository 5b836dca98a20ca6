package handlers

import (
	"errors"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

var ErrAccessDenied = errors.New("доступ запрещен")

func (h *Handler) isOperator(userID int64) bool {
	_, ok := h.operators[userID]
	return ok
}

// requireOperator shows the access notice to anyone who is not an operator.
func (h *Handler) requireOperator(q *tgbotapi.CallbackQuery) error {
	if h.isOperator(q.From.ID) {
		return nil
	}
	h.log.Warn("operator action refused",
		zap.Int64("user_id", q.From.ID),
		zap.String("data", q.Data),
	)
	h.respond(q, textAccessDenied, nil)
	return ErrAccessDenied
}
