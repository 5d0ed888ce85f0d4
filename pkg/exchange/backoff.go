package exchange

import (
	"math"
	"math/rand"
	"time"
)

// RandomSource supplies the jitter input for BackoffCalculator. Tests
// inject a deterministic source instead of math/rand.
type RandomSource interface {
	// Float64 returns a value in [0.0, 1.0).
	Float64() float64
}

// DefaultRandomSource draws jitter from math/rand.
var DefaultRandomSource RandomSource = mathRandSource{}

type mathRandSource struct{}

func (mathRandSource) Float64() float64 { return rand.Float64() }

// BackoffCalculator computes MRP retransmission backoff durations per Spec
// Section 4.12.2.1:
//
//	mrpBackoffTime = i * MRP_BACKOFF_BASE^(max(0, n-MRP_BACKOFF_THRESHOLD)) * (1 + random(0,1)*MRP_BACKOFF_JITTER)
//	i = MRP_BACKOFF_MARGIN * baseInterval
//
// n is the number of attempts already made (0 for the first transmission).
// Up to the threshold every attempt gets the same backoff i, for fast
// recovery from transient drops; past it, the backoff grows by a factor of
// MRP_BACKOFF_BASE per attempt, for convergence under sustained congestion.
type BackoffCalculator struct {
	random RandomSource
}

// NewBackoffCalculator returns a calculator drawing jitter from random, or
// from DefaultRandomSource if random is nil.
func NewBackoffCalculator(random RandomSource) *BackoffCalculator {
	if random == nil {
		random = DefaultRandomSource
	}
	return &BackoffCalculator{random: random}
}

// unjittered returns i * base^exponent with no jitter applied — the
// portion of the formula shared by Calculate, CalculateMin and
// CalculateMax.
func unjittered(baseInterval time.Duration, attemptNumber int) float64 {
	exponent := attemptNumber - MRPBackoffThreshold
	if exponent < 0 {
		exponent = 0
	}
	margin := float64(baseInterval) * MRPBackoffMargin
	return margin * math.Pow(MRPBackoffBase, float64(exponent))
}

// Calculate returns the jittered backoff duration for the given attempt
// number against baseInterval (the session's idle or active interval).
func (b *BackoffCalculator) Calculate(baseInterval time.Duration, attemptNumber int) time.Duration {
	jitter := 1.0 + b.random.Float64()*MRPBackoffJitter
	return time.Duration(unjittered(baseInterval, attemptNumber) * jitter)
}

// CalculateMin returns the backoff with zero jitter (random=0); useful in
// tests and for documenting the achievable range.
func (b *BackoffCalculator) CalculateMin(baseInterval time.Duration, attemptNumber int) time.Duration {
	return time.Duration(unjittered(baseInterval, attemptNumber))
}

// CalculateMax returns the backoff with full jitter (random=1).
func (b *BackoffCalculator) CalculateMax(baseInterval time.Duration, attemptNumber int) time.Duration {
	return time.Duration(unjittered(baseInterval, attemptNumber) * (1.0 + MRPBackoffJitter))
}
