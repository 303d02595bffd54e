// Package mail holds code delivery implementations. Real delivery is an
// external collaborator; this package ships a log-only sender for local runs
// and tests.
package mail

import (
	"context"

	"go.uber.org/zap"

	"github.com/avmikhailov/accountd/internal/model"
)

// LogSender writes challenge codes to the log instead of sending mail.
// Never use it outside development.
type LogSender struct {
	log *zap.Logger
}

// NewLogSender constructs a log-only code sender.
func NewLogSender(log *zap.Logger) *LogSender { return &LogSender{log: log} }

// SendCode logs the code that would have been mailed.
func (s *LogSender) SendCode(_ context.Context, email string, action model.AuthAction, code int) error {
	s.log.Info("validation code",
		zap.String("email", email),
		zap.String("action", string(action)),
		zap.Int("code", code),
	)
	return nil
}
