package webhook

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"fullwork/shared/logging"
)

// Bot sends and edits chat messages through the Bot API.
type Bot struct {
	api *tgbotapi.BotAPI
	log *zap.Logger
}

func NewBot(token string, debug bool, log *zap.Logger) (*Bot, error) {
	if err := tgbotapi.SetLogger(logging.NewBotLogger(log)); err != nil {
		return nil, fmt.Errorf("set bot logger: %w", err)
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	api.Debug = debug
	log.Info("authorized", zap.String("account", api.Self.UserName))
	return &Bot{api: api, log: log.Named("bot")}, nil
}

func (b *Bot) Send(chatID int64, text string, markup *tgbotapi.InlineKeyboardMarkup) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	if markup != nil {
		msg.ReplyMarkup = *markup
	}
	sent, err := b.api.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("send to %d: %w", chatID, err)
	}
	return sent.MessageID, nil
}

func (b *Bot) Edit(chatID int64, messageID int, text string, markup *tgbotapi.InlineKeyboardMarkup) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	if markup != nil {
		edit.ReplyMarkup = markup
	}
	if _, err := b.api.Request(edit); err != nil {
		return fmt.Errorf("edit %d/%d: %w", chatID, messageID, err)
	}
	return nil
}

func (b *Bot) Delete(chatID int64, messageID int) error {
	if _, err := b.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		return fmt.Errorf("delete %d/%d: %w", chatID, messageID, err)
	}
	return nil
}

func (b *Bot) AnswerCallback(callbackID, text string) error {
	if _, err := b.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		return fmt.Errorf("answer callback: %w", err)
	}
	return nil
}
