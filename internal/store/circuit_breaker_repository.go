package store

import (
	"context"
	"fmt"

	"textanalysis/internal/config"
	"textanalysis/pkg/circuitbreaker"
	apperrors "textanalysis/pkg/errors"
)

// CircuitBreakerRepository fails fast while MongoDB is unhealthy. A nil
// breaker (disabled in config) passes straight through.
type CircuitBreakerRepository struct {
	repo Repository
	cb   *circuitbreaker.Wrapper
}

func NewCircuitBreakerRepository(repo Repository, cfg config.CircuitBreakerConfig) *CircuitBreakerRepository {
	if !cfg.Enabled {
		return &CircuitBreakerRepository{repo: repo}
	}

	return &CircuitBreakerRepository{
		repo: repo,
		cb:   circuitbreaker.NewWrapper(circuitbreaker.FromSettings("mongodb-store", cfg)),
	}
}

func (r *CircuitBreakerRepository) run(ctx context.Context, fn func(ctx context.Context) error) error {
	if r.cb == nil {
		return fn(ctx)
	}

	err := r.cb.Run(ctx, fn)
	if err != nil && r.cb.IsOpen() {
		return fmt.Errorf("circuit breaker is open for %s: %w", r.cb.Name(), err)
	}
	return err
}

func (r *CircuitBreakerRepository) Upsert(ctx context.Context, doc Document) error {
	return r.run(ctx, func(ctx context.Context) error {
		return r.repo.Upsert(ctx, doc)
	})
}

func (r *CircuitBreakerRepository) Delete(ctx context.Context, id string) error {
	return r.run(ctx, func(ctx context.Context) error {
		return r.repo.Delete(ctx, id)
	})
}

func (r *CircuitBreakerRepository) Get(ctx context.Context, id string) (Document, error) {
	var (
		doc      Document
		notFound error
	)
	err := r.run(ctx, func(ctx context.Context) error {
		var err error
		doc, err = r.repo.Get(ctx, id)
		if apperrors.IsNotFound(err) {
			notFound = err
			return nil
		}
		return err
	})
	if err != nil {
		return Document{}, err
	}
	return doc, notFound
}

func (r *CircuitBreakerRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.run(ctx, func(ctx context.Context) error {
		var err error
		n, err = r.repo.Count(ctx)
		return err
	})
	return n, err
}

func (r *CircuitBreakerRepository) DeleteAll(ctx context.Context) (int64, error) {
	var n int64
	err := r.run(ctx, func(ctx context.Context) error {
		var err error
		n, err = r.repo.DeleteAll(ctx)
		return err
	})
	return n, err
}

func (r *CircuitBreakerRepository) State() string {
	if r.cb == nil {
		return "disabled"
	}
	return r.cb.State().String()
}

func (r *CircuitBreakerRepository) IsOpen() bool {
	if r.cb == nil {
		return false
	}
	return r.cb.IsOpen()
}
