package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func New(level string, development bool) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(level)))); err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

// BotLogger adapts zap to the Println/Printf logger tgbotapi expects.
type BotLogger struct {
	s *zap.SugaredLogger
}

func NewBotLogger(l *zap.Logger) *BotLogger {
	return &BotLogger{s: l.Named("tgbotapi").Sugar()}
}

func (b *BotLogger) Println(v ...interface{}) {
	b.s.Debug(strings.TrimSuffix(fmt.Sprintln(v...), "\n"))
}

func (b *BotLogger) Printf(format string, v ...interface{}) {
	b.s.Debugf(format, v...)
}
