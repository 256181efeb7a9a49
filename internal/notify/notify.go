package notify

import (
	"context"
	"log/slog"
	"time"
)

// Notifier delivers a login passcode to its owner out of band.
type Notifier interface {
	Deliver(ctx context.Context, email, code string) error
}

// LogNotifier stands in for a mail transport and writes the message to the log.
type LogNotifier struct {
	log       *slog.Logger
	expiresIn time.Duration
}

func NewLogNotifier(lgr *slog.Logger, expiresIn time.Duration) *LogNotifier {
	return &LogNotifier{
		log:       lgr.With(slog.String("component", "mock_email")),
		expiresIn: expiresIn,
	}
}

func (n *LogNotifier) Deliver(ctx context.Context, email, code string) error {
	n.log.InfoContext(ctx, "mock email sent",
		slog.String("to", email),
		slog.String("subject", "Your Login Code"),
		slog.String("code", code),
		slog.Duration("expires_in", n.expiresIn),
	)

	return nil
}
