package handlers

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"fullwork/queue-bot/models"
	"fullwork/queue-bot/sessions"
	"fullwork/shared/phone"
)

// handleTakeNumber hands the highest-reputation number to its owner as a
// one-time code.
func (h *Handler) handleTakeNumber(q *tgbotapi.CallbackQuery) error {
	if err := h.requireOperator(q); err != nil {
		return err
	}
	kb := adminBackKeyboard()

	rec, ok := h.numbers.PeekHighest()
	if !ok {
		h.respond(q, textQueueEmpty, &kb)
		return nil
	}

	s, err := h.sessions.Open(rec.UserID, rec)
	if errors.Is(err, sessions.ErrSessionAlreadyOpen) {
		h.respond(q, fmt.Sprintf("У пользователя уже есть активный код для номера %s", rec.Number), &kb)
		return err
	}
	if err != nil {
		h.log.Error("open code session", zap.Int64("user_id", rec.UserID), zap.Error(err))
		h.respond(q, textInternalError, &kb)
		return err
	}

	codeKb := codeKeyboard()
	msgID, err := h.msg.Send(rec.UserID, codeText(rec.Number, s.Code, h.sessions.TTL()), &codeKb)
	if err != nil {
		h.sessions.Cancel(rec.UserID, s.ID)
		h.log.Warn("deliver code", zap.Int64("user_id", rec.UserID), zap.Error(err))
		h.respond(q, fmt.Sprintf("Ошибка отправки кода: %v", err), &kb)
		return fmt.Errorf("deliver code to %d: %w", rec.UserID, err)
	}
	h.sessions.AttachMessage(rec.UserID, s.ID, msgID)

	h.respond(q, fmt.Sprintf("Код %s отправлен пользователю для номера %s", s.Code, rec.Number), &kb)
	return nil
}

// handleCodeAction resolves the caller's own session as entered or skipped.
func (h *Handler) handleCodeAction(ctx context.Context, q *tgbotapi.CallbackQuery, entered bool) error {
	var (
		s    *models.CodeSession
		err  error
		done string
	)
	if entered {
		s, err = h.sessions.Accept(ctx, q.From.ID)
		done = textCodeAccepted
	} else {
		s, err = h.sessions.Skip(ctx, q.From.ID)
		done = textCodeSkipped
	}

	switch {
	case errors.Is(err, sessions.ErrNoActiveSession):
		h.respond(q, textCodeNotFound, nil)
		return err
	case isNotFound(err):
		h.respond(q, textNumberNotFound, nil)
		return err
	case err != nil:
		h.log.Error("resolve code session",
			zap.Int64("user_id", q.From.ID),
			zap.Bool("entered", entered),
			zap.Error(err),
		)
		h.respond(q, textInternalError, nil)
		return err
	}

	h.respond(q, done, nil)

	user, _ := h.users.Get(q.From.ID)
	name := "Unknown"
	if user != nil {
		name = user.DisplayName()
	}
	if entered {
		h.notifyOperators(fmt.Sprintf("✅ Пользователь %s ввел код для номера %s", name, phone.Format(s.Number)))
	} else {
		h.notifyOperators(fmt.Sprintf("⏭ Пользователь %s пропустил номер %s", name, phone.Format(s.Number)))
	}
	return nil
}

// CodeExpired retracts the code message and tells the owner the number left
// the queue. It runs on the expiry timer's goroutine.
func (h *Handler) CodeExpired(_ context.Context, s *models.CodeSession) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if s.MessageID != 0 {
		if err := h.msg.Delete(s.UserID, s.MessageID); err != nil {
			h.log.Warn("delete code message",
				zap.Int64("user_id", s.UserID),
				zap.Int("message_id", s.MessageID),
				zap.Error(err),
			)
		}
	}
	h.reply(s.UserID, expiredText(s.Number), nil)
	h.notifyOperators(fmt.Sprintf("⌛ Код для номера %s истек", phone.Format(s.Number)))
}
