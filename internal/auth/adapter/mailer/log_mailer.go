package mailer

import (
	"context"

	"social-connect/internal/shared/logger"
)

// LogMailer writes reset tokens to the log instead of sending mail.
// It stands in for a mail gateway in development deployments.
type LogMailer struct {
	log logger.Logger
}

// NewLogMailer creates a LogMailer
func NewLogMailer(log logger.Logger) *LogMailer {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &LogMailer{log: log.WithComponent("reset-mailer")}
}

// SendPasswordReset logs the reset token for email
func (m *LogMailer) SendPasswordReset(ctx context.Context, email, token string) error {
	m.log.WithContext(ctx).WithFields(map[string]interface{}{"email": email}).
		Infof("password reset requested, token: %s", token)
	return nil
}
