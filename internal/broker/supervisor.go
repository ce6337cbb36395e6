package broker

import (
	"context"
	"time"

	"textanalysis/internal/config"
	"textanalysis/internal/logger"
	"textanalysis/pkg/errors"
	"textanalysis/pkg/metrics"
	"textanalysis/pkg/retry"
)

// Supervisor establishes connections with a bounded number of attempts and a
// fixed delay between them.
type Supervisor struct {
	policy retry.Policy
	logger logger.Logger
}

func NewSupervisor(cfg config.ConnectConfig, log logger.Logger) *Supervisor {
	return &Supervisor{
		policy: retry.FixedPolicy(cfg.MaxAttempts, cfg.Delay),
		logger: log,
	}
}

// Run calls attempt until it succeeds. After the final failed attempt it
// returns ErrConnectionExhausted wrapping the last error. If ctx ends first
// the context error is returned instead.
func (s *Supervisor) Run(ctx context.Context, target string, attempt func(ctx context.Context) error) error {
	attempts := 0
	var lastErr error

	err := retry.RetryWithCallback(ctx, s.policy, func() error {
		attempts++
		lastErr = attempt(ctx)
		if lastErr != nil {
			metrics.IncConnectAttempt(target, "failure")
			return lastErr
		}
		metrics.IncConnectAttempt(target, "success")
		return nil
	}, func(n int, err error, next time.Duration) {
		s.logger.Warnw("Connection attempt failed, retrying",
			"target", target,
			"attempt", n,
			"max_attempts", s.policy.MaxAttempts,
			"retry_in", next,
			"error", err,
		)
	})
	if err == nil {
		if attempts > 1 {
			s.logger.Infow("Connected after retries", "target", target, "attempts", attempts)
		}
		return nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	s.logger.Errorw("Connection attempts exhausted",
		"target", target,
		"attempts", attempts,
		"error", lastErr,
	)

	return errors.ErrConnectionExhausted.
		WithCause(lastErr).
		WithDetail("target", target).
		WithDetail("attempts", attempts)
}
