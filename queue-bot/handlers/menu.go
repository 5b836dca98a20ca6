package handlers

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"fullwork/queue-bot/models"
)

func (h *Handler) mainMenuText(user *models.User) string {
	return mainMenuText(user, h.numbers.QueueLen(), len(h.numbers.Queued(user.ID)))
}

func (h *Handler) showMainMenu(ctx context.Context, q *tgbotapi.CallbackQuery, clearDialog bool) error {
	if clearDialog {
		h.clearDialog(ctx, q.From.ID)
	}
	user, err := h.users.Get(q.From.ID)
	if err != nil {
		h.log.Error("load user", zap.Int64("user_id", q.From.ID), zap.Error(err))
		h.respond(q, textInternalError, nil)
		return err
	}
	kb := h.mainKeyboard(q.From.ID)
	h.respond(q, h.mainMenuText(user), &kb)
	return nil
}

func (h *Handler) handleNumbersSection(q *tgbotapi.CallbackQuery, parts []string) error {
	if len(parts) != 2 {
		return fmt.Errorf("malformed callback %q", q.Data)
	}
	title, ok := sectionTitles[parts[1]]
	if !ok {
		return fmt.Errorf("unknown section %q", parts[1])
	}

	var records []*models.NumberRecord
	switch parts[1] {
	case "in_work":
		records = h.numbers.List(models.PartitionInWork, q.From.ID)
	case "waiting":
		records = h.numbers.Queued(q.From.ID)
	case "successful":
		records = h.numbers.List(models.PartitionSuccessful, q.From.ID)
	case "blocked":
		records = h.numbers.List(models.PartitionBlocked, q.From.ID)
	}

	kb := myNumbersKeyboard()
	h.respond(q, numbersListText(title, records), &kb)
	return nil
}

func (h *Handler) handleStatistics(q *tgbotapi.CallbackQuery) error {
	if err := h.requireOperator(q); err != nil {
		return err
	}
	kb := backKeyboard()
	h.respond(q, statisticsText(h.numbers.Stats(h.users.All())), &kb)
	return nil
}

func (h *Handler) handleAdminPanel(q *tgbotapi.CallbackQuery) error {
	if err := h.requireOperator(q); err != nil {
		return err
	}
	kb := adminKeyboard()
	h.respond(q, textAdminPanel, &kb)
	return nil
}
