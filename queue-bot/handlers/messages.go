package handlers

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"fullwork/queue-bot/models"
	"fullwork/shared/phone"
)

const (
	textAccessDenied    = "У вас нет доступа к этой функции."
	textAdminDenied     = "У вас нет доступа к админ-панели."
	textAdminPanel      = "🔧 Админ-панель"
	textMyNumbers       = "📱 Мои номера"
	textEnterNumber     = "Введите номер телефона:"
	textInvalidNumber   = "❌ Неверный формат номера. Попробуйте еще раз:"
	textAlreadyQueued   = "Этот номер уже стоит в очереди."
	textQueueEmpty      = "Очередь пуста."
	textNothingToReport = "Нет номеров для отчета."
	textPickFlight      = "Выберите номер для отчета о слёте:"
	textNumberNotFound  = "Номер не найден в очереди."
	textCodeNotFound    = "Код не найден или истек."
	textCodeSkipped     = "Номер пропущен. Репутация уменьшена."
	textCodeAccepted    = "Номер добавлен в работу. Репутация увеличена."
	textFlightEmpty     = "Время слёта не может быть пустым. Попробуйте еще раз:"
	textFlightNoData    = "Ошибка: данные номера не найдены."
	textUseMenu         = "Используйте кнопки меню."
	textUnknownCommand  = "Неизвестная команда. Используйте /start."
	textInternalError   = "Не удалось выполнить действие. Попробуйте позже."
	textNoFlightTime    = "не указано"
)

var sectionTitles = map[string]string{
	"in_work":    "🔄 Номера в работе",
	"waiting":    "⏳ Номера в ожидании",
	"successful": "✅ Успешные номера",
	"blocked":    "🚫 Заблокированные номера",
}

// formatReputation prints whole values without a fractional part.
func formatReputation(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func mainMenuText(user *models.User, queueCount, ownCount int) string {
	return fmt.Sprintf("Full Work | %s\n➣Репутация: %s\n➢Статус ворка: %s\n╓Общая очередь: %d\n║\n╚Твои номера в очереди: %d",
		user.DisplayName(), formatReputation(user.Reputation), user.Status, queueCount, ownCount)
}

func numbersListText(title string, records []*models.NumberRecord) string {
	if len(records) == 0 {
		return title + "\n\nНет номеров"
	}
	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n\n")
	for i, rec := range records {
		fmt.Fprintf(&b, "%d. %s (добавлен: %s)\n", i+1, rec.Number, rec.AddedAt.Format(time.TimeOnly))
	}
	return b.String()
}

func statisticsText(stats []models.UserStats) string {
	if len(stats) == 0 {
		return "Статистика\n\nНет пользователей"
	}
	var b strings.Builder
	b.WriteString("📊 Статистика пользователей\n\n")
	for _, s := range stats {
		name := s.Username
		if name == "" {
			name = "Unknown"
		}
		fmt.Fprintf(&b, "👤 %s\n", name)
		fmt.Fprintf(&b, "   Репутация: %s\n", formatReputation(s.Reputation))
		fmt.Fprintf(&b, "   В очереди: %d\n", s.Queued)
		fmt.Fprintf(&b, "   В работе: %d\n", s.InWork)
		fmt.Fprintf(&b, "   Успешные: %d\n", s.Successful)
		fmt.Fprintf(&b, "   Заблокированные: %d\n\n", s.Blocked)
	}
	return b.String()
}

func codeText(number, code string, ttl time.Duration) string {
	return fmt.Sprintf("✆ %s ЗАПРОС АКТИВАЦИИ\n ⌨  Ожидай код для входа\n ✎ Ограничение времени активации: %s\n✔ТВОЙ КОД: %s",
		phone.Format(number), humanDuration(ttl), code)
}

func expiredText(number string) string {
	return fmt.Sprintf("✎ %s Время для подтверждения активации истекло. Номер удален из очереди", phone.Format(number))
}

func flightReportText(rec *models.NumberRecord, flightTime string) string {
	return fmt.Sprintf("📊 Отчет о слёте\n\nНомер: %s\nВремя принятия: %s\nВремя слёта: %s\n\nВыберите действие:",
		phone.Format(rec.Number), rec.AddedAt.Format(time.TimeOnly), flightTime)
}

func humanDuration(d time.Duration) string {
	if d >= time.Minute && d%time.Minute == 0 {
		m := int(d / time.Minute)
		return fmt.Sprintf("%d %s", m, plural(m, "минута", "минуты", "минут"))
	}
	s := int(d.Round(time.Second) / time.Second)
	return fmt.Sprintf("%d %s", s, plural(s, "секунда", "секунды", "секунд"))
}

func plural(n int, one, few, many string) string {
	n %= 100
	if n >= 11 && n <= 14 {
		return many
	}
	switch n % 10 {
	case 1:
		return one
	case 2, 3, 4:
		return few
	}
	return many
}
