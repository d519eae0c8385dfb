package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/Gopher0727/TeamMatch/internal/lock"
	logger "github.com/Gopher0727/TeamMatch/middleware/log"
	"github.com/Gopher0727/TeamMatch/pkg/errcode"
)

// withLocks runs fn while holding every key, obtained in the given order and
// released in reverse.
func withLocks(ctx context.Context, locker lock.Locker, log *logger.Logger, fn func() error, keys ...string) error {
	held := make([]lock.Lock, 0, len(keys))
	defer func() {
		// release must not be skipped because the request context was cancelled
		releaseCtx := context.WithoutCancel(ctx)
		for i := len(held) - 1; i >= 0; i-- {
			if err := held[i].Release(releaseCtx); err != nil {
				log.WarnContext(ctx, "failed to release lock", zap.Error(err))
			}
		}
	}()

	for _, key := range keys {
		l, err := locker.Obtain(ctx, key)
		if err != nil {
			if errors.Is(err, lock.ErrNotObtained) {
				return errcode.ErrTooManyRequests.WithMessage("resource is busy, please retry")
			}
			return errcode.ErrSystem.Wrap(err)
		}
		held = append(held, l)
	}
	return fn()
}
