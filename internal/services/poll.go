package services

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrPollTimeout is returned when the predicate never reported done within MaxWait.
var ErrPollTimeout = errors.New("poll: maximum wait elapsed")

var errNotReady = errors.New("not ready")

type PollConfig struct {
	Interval time.Duration
	MaxWait  time.Duration
	// Timer drives the waits between checks. Nil uses wall-clock time.
	Timer backoff.Timer
}

// Poll calls check immediately and then every Interval until it reports done,
// returns an error, the context ends, or MaxWait elapses.
func Poll(ctx context.Context, cfg PollConfig, check func(ctx context.Context) (bool, error)) error {
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Second
	}
	retries := uint64(cfg.MaxWait / interval)

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(interval), retries),
		ctx,
	)

	err := backoff.RetryNotifyWithTimer(func() error {
		done, err := check(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}
		if !done {
			return errNotReady
		}
		return nil
	}, b, nil, cfg.Timer)

	if errors.Is(err, errNotReady) {
		return ErrPollTimeout
	}
	return err
}
