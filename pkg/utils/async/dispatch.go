package async

import (
	"context"

	"github.com/m-mizutani/goerr/v2"

	"github.com/everstory-ai/everstory/pkg/utils/logging"
)

// Dispatch runs a handler in a new goroutine detached from the request
// context. The request may already be answered when the handler runs, so the
// handler gets a fresh background context carrying only the logger.
func Dispatch(ctx context.Context, handler func(ctx context.Context) error) {
	bgCtx := logging.With(context.Background(), logging.From(ctx))

	go func() {
		defer func() {
			if r := recover(); r != nil {
				logging.From(bgCtx).Error("panic in async handler", "panic", r)
			}
		}()

		if err := handler(bgCtx); err != nil {
			logging.From(bgCtx).Error("async handler failed", "error", goerr.Unwrap(err))
		}
	}()
}
