package retry

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

func ExponentialBackoff(initialInterval, maxInterval, maxElapsed time.Duration, multiplier float64) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = initialInterval
	exp.MaxInterval = maxInterval
	exp.Multiplier = multiplier
	exp.MaxElapsedTime = maxElapsed
	return exp
}

// ConstantBackoff waits the same interval between every attempt.
func ConstantBackoff(interval time.Duration) backoff.BackOff {
	return backoff.NewConstantBackOff(interval)
}

func (p Policy) newBackOff() backoff.BackOff {
	if p.Multiplier <= 1 {
		return ConstantBackoff(p.InitialInterval)
	}
	return ExponentialBackoff(p.InitialInterval, p.MaxInterval, p.MaxElapsedTime, p.Multiplier)
}
