package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const sendTimeout = 30 * time.Second

// Dispatcher wraps a Notifier with asynchronous, fire-and-forget delivery.
// Dispatch returns as soon as the send is queued; failures are logged with
// the destination and never reach the caller.
type Dispatcher struct {
	notifier Notifier
	logger   *slog.Logger
	wg       sync.WaitGroup
}

func NewDispatcher(notifier Notifier, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{notifier: notifier, logger: logger}
}

// Dispatch queues a code for delivery and returns immediately.
func (d *Dispatcher) Dispatch(email, code string) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()

		if err := d.notifier.Send(ctx, email, code); err != nil {
			d.logger.Error("failed to send confirmation code", "email", email, "error", err)
			return
		}
		d.logger.Info("confirmation code sent", "email", email)
	}()
}

// Wait blocks until all queued sends have finished. Used on shutdown and in
// tests; requests never wait on delivery.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
