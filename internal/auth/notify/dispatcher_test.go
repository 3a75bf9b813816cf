package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDispatcherDeliversAsync(t *testing.T) {
	var mu sync.Mutex
	var got []string

	d := NewDispatcher(Func(func(_ context.Context, email, code string) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, email+":"+code)
		return nil
	}), slog.New(slog.NewTextHandler(io.Discard, nil)))

	d.Dispatch("a@example.com", "code-1")
	d.Dispatch("b@example.com", "code-2")
	d.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.ElementsMatch(t, []string{"a@example.com:code-1", "b@example.com:code-2"}, got)
}

func TestDispatcherSwallowsSendErrors(t *testing.T) {
	d := NewDispatcher(Func(func(context.Context, string, string) error {
		return errors.New("smtp down")
	}), slog.New(slog.NewTextHandler(io.Discard, nil)))

	// Must not panic or propagate.
	d.Dispatch("a@example.com", "code-1")
	d.Wait()
}
