package webhook

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const webhookPath = "/webhook/"

var ErrNoSecret = errors.New("webhook secret is required")

// WebhookConfig describes webhook mode. SecretToken becomes the last path
// segment of the registered URL; requests carrying any other segment are refused.
type WebhookConfig struct {
	URL         string
	ListenAddr  string
	SecretToken string
}

type UpdateHandler interface {
	HandleUpdate(ctx context.Context, update tgbotapi.Update) error
}

// Run feeds updates to h until ctx is done. Long polling is used unless a
// webhook URL is configured.
func (b *Bot) Run(ctx context.Context, cfg WebhookConfig, h UpdateHandler) error {
	if cfg.URL == "" {
		return b.poll(ctx, h)
	}
	return b.serve(ctx, cfg, h)
}

func (b *Bot) poll(ctx context.Context, h UpdateHandler) error {
	if _, err := b.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	u.AllowedUpdates = []string{tgbotapi.UpdateTypeMessage, tgbotapi.UpdateTypeCallbackQuery}

	updates := b.api.GetUpdatesChan(u)
	b.log.Info("polling for updates")
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.dispatch(ctx, h, update)
		}
	}
}

func (b *Bot) serve(ctx context.Context, cfg WebhookConfig, h UpdateHandler) error {
	if cfg.SecretToken == "" {
		return ErrNoSecret
	}
	wh, err := tgbotapi.NewWebhook(cfg.URL + webhookPath + cfg.SecretToken)
	if err != nil {
		return fmt.Errorf("create webhook: %w", err)
	}
	wh.AllowedUpdates = []string{tgbotapi.UpdateTypeMessage, tgbotapi.UpdateTypeCallbackQuery}
	if _, err := b.api.Request(wh); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle(webhookPath, b.webhookHandler(ctx, cfg.SecretToken, h))

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		b.log.Info("starting webhook server", zap.String("addr", cfg.ListenAddr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("webhook server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// webhookHandler accepts updates only on the secret path.
func (b *Bot) webhookHandler(ctx context.Context, secret string, h UpdateHandler) http.Handler {
	want := []byte(secret)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := []byte(strings.TrimPrefix(r.URL.Path, webhookPath))
		if len(want) == 0 || subtle.ConstantTimeCompare(got, want) != 1 {
			b.log.Warn("webhook request with wrong secret", zap.String("remote", r.RemoteAddr))
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		update, err := b.api.HandleUpdate(r)
		if err != nil {
			b.log.Warn("decode update", zap.Error(err))
			http.Error(w, "bad update", http.StatusBadRequest)
			return
		}
		b.dispatch(ctx, h, *update)
	})
}

func (b *Bot) dispatch(ctx context.Context, h UpdateHandler, update tgbotapi.Update) {
	if err := h.HandleUpdate(ctx, update); err != nil {
		b.log.Info("update finished with error",
			zap.Int("update_id", update.UpdateID),
			zap.Error(err),
		)
	}
}
