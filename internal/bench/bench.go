package bench

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/fxnlabs/gpumem/internal/allocator"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"
)

// Options configures one stress run.
type Options struct {
	// Sizes is the cycle of request sizes, mimicking the repeated tensor
	// shapes of an inference loop.
	Sizes []uint64
	// Iterations is the number of alloc/free pairs to issue.
	Iterations int
	// ReserveEvery issues a Reserve instead of an Alloc every n iterations
	// when the allocator supports reservations. Zero disables it.
	ReserveEvery int
}

// Report summarizes a stress run.
type Report struct {
	Iterations   int                  `json:"iterations"`
	ElapsedMs    float64              `json:"elapsedMs"`
	MeanMicros   float64              `json:"meanMicros"`
	P50Micros    float64              `json:"p50Micros"`
	P99Micros    float64              `json:"p99Micros"`
	Reservations int                  `json:"reservations"`
	Pool         *allocator.PoolStats `json:"pool,omitempty"`
}

// Run drives alloc/free cycles through the given allocator and reports
// latency statistics for the allocation path.
func Run(ctx context.Context, a allocator.Allocator, opts Options, log *zap.Logger) (*Report, error) {
	if len(opts.Sizes) == 0 {
		return nil, fmt.Errorf("no request sizes given")
	}
	if opts.Iterations <= 0 {
		return nil, fmt.Errorf("iterations must be positive")
	}

	reserver, canReserve := a.(allocator.Reserver)
	latencies := make([]float64, 0, opts.Iterations)
	reservations := 0

	start := time.Now()
	for i := 0; i < opts.Iterations; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		size := opts.Sizes[i%len(opts.Sizes)]

		var err error
		begin := time.Now()
		if canReserve && opts.ReserveEvery > 0 && i%opts.ReserveEvery == opts.ReserveEvery-1 {
			hnd, rerr := reserver.Reserve(size)
			latencies = append(latencies, float64(time.Since(begin).Nanoseconds())/1e3)
			if rerr != nil {
				return nil, fmt.Errorf("reserve %d bytes: %w", size, rerr)
			}
			reservations++
			err = a.Free(hnd)
		} else {
			hnd, aerr := a.Alloc(size)
			latencies = append(latencies, float64(time.Since(begin).Nanoseconds())/1e3)
			if aerr != nil {
				return nil, fmt.Errorf("alloc %d bytes: %w", size, aerr)
			}
			err = a.Free(hnd)
		}
		if err != nil {
			return nil, fmt.Errorf("free: %w", err)
		}
	}
	elapsed := time.Since(start)

	sort.Float64s(latencies)
	report := &Report{
		Iterations:   opts.Iterations,
		ElapsedMs:    float64(elapsed.Milliseconds()),
		MeanMicros:   stat.Mean(latencies, nil),
		P50Micros:    stat.Quantile(0.5, stat.Empirical, latencies, nil),
		P99Micros:    stat.Quantile(0.99, stat.Empirical, latencies, nil),
		Reservations: reservations,
	}
	if pool, ok := a.(*allocator.PooledAllocator); ok {
		stats := pool.Stats()
		report.Pool = &stats
	}

	log.Info("stress run complete",
		zap.Int("iterations", opts.Iterations),
		zap.Duration("elapsed", elapsed),
		zap.Float64("meanMicros", report.MeanMicros))
	return report, nil
}
