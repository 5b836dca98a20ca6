package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"fullwork/queue-bot/models"
)

func (h *Handler) handleReportFlight(q *tgbotapi.CallbackQuery) error {
	if err := h.requireOperator(q); err != nil {
		return err
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, rec := range h.numbers.Active(h.choices) {
		if len(flightData("success", rec)) > maxCallbackDataSize {
			h.log.Warn("number too long for a button", zap.String("number", rec.Number))
			continue
		}
		label := fmt.Sprintf("%s (репутация: %s)", rec.Number, formatReputation(rec.Reputation))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, flightData("select", rec)),
		))
	}
	if len(rows) == 0 {
		kb := adminBackKeyboard()
		h.respond(q, textNothingToReport, &kb)
		return nil
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(backButton, ActionAdminPanel),
	))

	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	h.respond(q, textPickFlight, &kb)
	return nil
}

// handleFlightAction serves flight:select, flight:success and flight:block.
func (h *Handler) handleFlightAction(ctx context.Context, q *tgbotapi.CallbackQuery, parts []string) error {
	if err := h.requireOperator(q); err != nil {
		return err
	}
	if len(parts) != 4 {
		return fmt.Errorf("malformed callback %q", q.Data)
	}
	verb, number := parts[1], parts[2]
	ownerID, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil {
		return fmt.Errorf("malformed owner in %q: %w", q.Data, err)
	}

	kb := adminBackKeyboard()
	rec, _, err := h.numbers.FindActive(number, ownerID)
	if err != nil {
		h.respond(q, textNumberNotFound, &kb)
		return err
	}

	switch verb {
	case "select":
		state := &models.ConversationState{
			ActorID:   q.From.ID,
			Step:      models.StepAwaitingFlightTime,
			Record:    rec,
			UpdatedAt: time.Now(),
		}
		if err := h.states.Set(ctx, state); err != nil {
			h.log.Error("start flight dialog", zap.Int64("user_id", q.From.ID), zap.Error(err))
			h.respond(q, textInternalError, &kb)
			return err
		}
		h.respond(q, fmt.Sprintf("Введите время слёта для номера %s:", rec.Number), &kb)
		return nil
	case "success", "block":
		return h.finishFlight(ctx, q, rec, verb == "success")
	}
	return fmt.Errorf("unknown flight action %q", verb)
}

// handleFlightTimeInput stores the typed flight time and shows the report
// with the final choice.
func (h *Handler) handleFlightTimeInput(ctx context.Context, message *tgbotapi.Message, state *models.ConversationState) error {
	if !h.isOperator(message.From.ID) {
		h.clearDialog(ctx, message.From.ID)
		h.reply(message.Chat.ID, textAccessDenied, nil)
		return ErrAccessDenied
	}
	if state.Record == nil {
		h.clearDialog(ctx, message.From.ID)
		h.reply(message.Chat.ID, textFlightNoData, nil)
		return nil
	}

	flightTime := strings.TrimSpace(message.Text)
	if flightTime == "" {
		kb := adminBackKeyboard()
		h.reply(message.Chat.ID, textFlightEmpty, &kb)
		return nil
	}

	state.Step = models.StepConfirmFlight
	state.FlightTime = flightTime
	state.UpdatedAt = time.Now()
	if err := h.states.Set(ctx, state); err != nil {
		h.log.Error("save flight time", zap.Int64("user_id", message.From.ID), zap.Error(err))
		h.reply(message.Chat.ID, textInternalError, nil)
		return err
	}

	kb := flightActionsKeyboard(state.Record)
	h.reply(message.Chat.ID, flightReportText(state.Record, flightTime), &kb)
	return nil
}

func (h *Handler) finishFlight(ctx context.Context, q *tgbotapi.CallbackQuery, rec *models.NumberRecord, success bool) error {
	flightTime := textNoFlightTime
	state, err := h.states.Get(ctx, q.From.ID)
	if err != nil {
		h.log.Warn("load flight dialog", zap.Int64("user_id", q.From.ID), zap.Error(err))
	}
	if state != nil && state.Record != nil && state.Record.Same(rec.Number, rec.UserID) && state.FlightTime != "" {
		flightTime = state.FlightTime
	}

	var (
		ownerText    string
		operatorText string
	)
	if success {
		_, err = h.numbers.MoveToSuccessful(ctx, rec, flightTime)
		ownerText = fmt.Sprintf("✅ Номер %s успешно обработан!", rec.Number)
		operatorText = fmt.Sprintf("Номер %s перемещен в успешные.", rec.Number)
	} else {
		_, err = h.numbers.MoveToBlocked(ctx, rec, flightTime)
		ownerText = fmt.Sprintf("🚫 Номер %s заблокирован.", rec.Number)
		operatorText = fmt.Sprintf("Номер %s заблокирован.", rec.Number)
	}

	kb := adminBackKeyboard()
	if isNotFound(err) {
		h.respond(q, textNumberNotFound, &kb)
		return err
	}
	if err != nil {
		h.log.Error("finish flight report",
			zap.String("number", rec.Number),
			zap.Int64("owner_id", rec.UserID),
			zap.Error(err),
		)
		h.respond(q, textInternalError, &kb)
		return err
	}

	h.clearDialog(ctx, q.From.ID)
	h.log.Info("flight reported",
		zap.String("number", rec.Number),
		zap.Int64("owner_id", rec.UserID),
		zap.Bool("success", success),
		zap.String("flight_time", flightTime),
	)

	h.reply(rec.UserID, ownerText, nil)
	h.respond(q, operatorText, &kb)
	return nil
}
