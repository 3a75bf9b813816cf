// Package notify delivers one-time confirmation codes out-of-band. Delivery
// is fire-and-forget relative to the authentication decision: by the time a
// code is handed to the dispatcher the state transition that produced it is
// already durable, so a failed send is logged and never rolled back.
package notify

import (
	"context"
	"log/slog"
)

// Notifier sends a one-time code to a destination address.
type Notifier interface {
	Send(ctx context.Context, email, code string) error
}

// Func adapts a function to the Notifier interface.
type Func func(ctx context.Context, email, code string) error

func (f Func) Send(ctx context.Context, email, code string) error {
	return f(ctx, email, code)
}

// LogNotifier writes codes to the log instead of mailing them. Used when no
// mail relay is configured, which only makes sense in development.
func LogNotifier(logger *slog.Logger) Notifier {
	return Func(func(_ context.Context, email, code string) error {
		logger.Info("confirmation code issued", "email", email, "code", code)
		return nil
	})
}
