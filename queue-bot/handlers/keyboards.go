package handlers

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"fullwork/queue-bot/models"
)

const backButton = "◀ Назад"

func (h *Handler) mainKeyboard(userID int64) tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Добавить номер", ActionAddNumber),
			tgbotapi.NewInlineKeyboardButtonData("Мои номера", ActionMyNumbers),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Очередь", ActionQueue),
			tgbotapi.NewInlineKeyboardButtonData("Обновить", ActionRefresh),
		),
	}
	if h.isOperator(userID) {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Статистика", ActionStatistics),
			tgbotapi.NewInlineKeyboardButtonData("Админ-панель", ActionAdminPanel),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func myNumbersKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("В работе", ActionNumbers+":in_work"),
			tgbotapi.NewInlineKeyboardButtonData("Ожидает", ActionNumbers+":waiting"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Успешные", ActionNumbers+":successful"),
			tgbotapi.NewInlineKeyboardButtonData("Блок", ActionNumbers+":blocked"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(backButton, ActionBackToMain),
		),
	)
}

func adminKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Брать номера из очереди", ActionTakeNumber),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Сообщить о слёте", ActionReportFlight),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(backButton, ActionBackToMain),
		),
	)
}

func adminBackKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(backButton, ActionAdminPanel),
		),
	)
}

func backKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(backButton, ActionBackToMain),
		),
	)
}

func codeKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Скип", ActionCodeSkip),
			tgbotapi.NewInlineKeyboardButtonData("Ввел", ActionCodeEntered),
		),
	)
}

func flightActionsKeyboard(rec *models.NumberRecord) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Слёт", flightData("success", rec)),
			tgbotapi.NewInlineKeyboardButtonData("Блок", flightData("block", rec)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(backButton, ActionAdminPanel),
		),
	)
}

// flightData builds "flight:<verb>:<number>:<owner>". Telegram rejects
// callback data over 64 bytes, so callers check the length.
func flightData(verb string, rec *models.NumberRecord) string {
	return fmt.Sprintf("%s:%s:%s:%d", ActionFlight, verb, rec.Number, rec.UserID)
}
