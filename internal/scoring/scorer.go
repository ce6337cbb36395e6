package scoring

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

const (
	MinScore = 0
	MaxScore = 100
)

// Result is the outcome of scoring one text. Duration is the time spent
// analysing it and Score lies in [MinScore, MaxScore].
type Result struct {
	Duration time.Duration
	Score    int
}

type Scorer interface {
	Score(ctx context.Context, text string) (Result, error)
}

// SimulatedScorer stands in for a real toxicity model: it waits a random
// time in [min, max] and returns a uniformly random score.
type SimulatedScorer struct {
	min, max time.Duration

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewSimulatedScorer(min, max time.Duration) *SimulatedScorer {
	return NewSimulatedScorerWithSeed(min, max, time.Now().UnixNano())
}

func NewSimulatedScorerWithSeed(min, max time.Duration, seed int64) *SimulatedScorer {
	if max < min {
		max = min
	}
	return &SimulatedScorer{
		min: min,
		max: max,
		rnd: rand.New(rand.NewSource(seed)),
	}
}

func (s *SimulatedScorer) Score(ctx context.Context, text string) (Result, error) {
	s.mu.Lock()
	delay := s.min
	if span := s.max - s.min; span > 0 {
		delay += time.Duration(s.rnd.Int63n(int64(span) + 1))
	}
	score := s.rnd.Intn(MaxScore-MinScore+1) + MinScore
	s.mu.Unlock()

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-timer.C:
	}

	return Result{Duration: delay, Score: score}, nil
}

// Clamp forces a score into [MinScore, MaxScore].
func Clamp(score int) int {
	if score < MinScore {
		return MinScore
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}
