package notifications

import (
	"context"
	"fmt"

	"github.com/bazario/backend/pkg/logger"
)

// Email is a templated message handed to the delivery provider.
type Email struct {
	To       string
	Template string
	Data     map[string]any
}

// EmailSender delivers templated emails. Rendering and delivery live in an
// external service behind this interface.
type EmailSender interface {
	Send(ctx context.Context, email Email) error
}

// LogSender writes emails to the log instead of delivering them. Used in
// development and test environments without a mail provider.
type LogSender struct {
	logg *logger.Logger
}

// NewLogSender builds a log-only email sender.
func NewLogSender(logg *logger.Logger) (*LogSender, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &LogSender{logg: logg}, nil
}

func (s *LogSender) Send(ctx context.Context, email Email) error {
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"to":       email.To,
		"template": email.Template,
	})
	s.logg.Info(logCtx, "email delivery skipped (log sender)")
	return nil
}
