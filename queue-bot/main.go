package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"fullwork/queue-bot/config"
	"fullwork/queue-bot/handlers"
	"fullwork/queue-bot/sessions"
	"fullwork/queue-bot/webhook"
	"fullwork/shared/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "fullwork",
		Short:        "Phone number queue bot",
		SilenceUsage: true,
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the bot",
			Args:  cobra.NoArgs,
			RunE:  runServe,
		},
		&cobra.Command{
			Use:   "stats",
			Short: "Print per-user statistics from the configured store",
			Args:  cobra.NoArgs,
			RunE:  runStats,
		},
	)
	return root
}

func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	log, err := logging.New(cfg.Log.Level, cfg.Bot.Debug)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if err := cfg.RequireBot(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := openDeps(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer deps.Close()

	bot, err := webhook.NewBot(cfg.Bot.Token, cfg.Bot.Debug, log)
	if err != nil {
		return err
	}

	mgr := sessions.NewManager(sessions.Config{
		TTL:      cfg.CodeTTL(),
		Increase: cfg.Reputation.Increase,
		Decrease: cfg.Reputation.Decrease,
	}, deps.users, deps.numbers, log)
	defer mgr.Close()

	h := handlers.NewHandler(handlers.HandlerConfig{
		Messenger: bot,
		Users:     deps.users,
		Numbers:   deps.numbers,
		Sessions:  mgr,
		States:    deps.states,
		Limiter:   deps.limiter,
		Operators: cfg.Bot.Operators,
		Logger:    log,
	})

	log.Info("starting bot",
		zap.String("storage", cfg.Storage.Backend),
		zap.String("state", cfg.State.Backend),
		zap.Int("operators", len(cfg.Bot.Operators)),
		zap.Bool("webhook", cfg.Webhook.URL != ""),
	)
	return bot.Run(ctx, webhook.WebhookConfig{
		URL:         cfg.Webhook.URL,
		ListenAddr:  cfg.Webhook.ListenAddr,
		SecretToken: cfg.Webhook.SecretToken,
	}, h)
}

func runStats(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	deps, err := openRepositories(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer deps.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "queue: %d\n", deps.numbers.QueueLen())
	for _, s := range deps.numbers.Stats(deps.users.All()) {
		fmt.Fprintf(out, "%d\t%s\treputation=%g\tqueued=%d\tin_work=%d\tsuccessful=%d\tblocked=%d\n",
			s.UserID, s.Username, s.Reputation, s.Queued, s.InWork, s.Successful, s.Blocked)
	}
	return nil
}
