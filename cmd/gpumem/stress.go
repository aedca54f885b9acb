package main

import (
	"fmt"
	"net/http"

	"github.com/fxnlabs/gpumem/internal/bench"
	"github.com/fxnlabs/gpumem/internal/config"
	"github.com/fxnlabs/gpumem/internal/platform"
	"github.com/fxnlabs/gpumem/internal/provider"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func stressCommand(deps func() (*config.Config, *zap.Logger)) *cli.Command {
	return &cli.Command{
		Name:  "stress",
		Usage: "Drive alloc/free cycles through the configured allocator and report latencies",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "iterations",
				Value: 100000,
				Usage: "Number of alloc/free pairs to issue",
			},
			&cli.Uint64SliceFlag{
				Name:  "sizes",
				Value: cli.NewUint64Slice(1024, 4096, 1<<20),
				Usage: "Cycle of request sizes in bytes",
			},
			&cli.IntFlag{
				Name:  "reserve-every",
				Usage: "Issue a reserved allocation every n iterations (0 disables)",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the report as JSON",
			},
			&cli.BoolFlag{
				Name:  "serve-metrics",
				Usage: "Serve prometheus metrics on the configured listen address during the run",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, log := deps()

			if c.Bool("serve-metrics") {
				go func() {
					mux := http.NewServeMux()
					mux.Handle("/metrics", promhttp.Handler())
					log.Info("Serving metrics", zap.String("address", cfg.Metrics.ListenAddress))
					if err := http.ListenAndServe(cfg.Metrics.ListenAddress, mux); err != nil {
						log.Warn("metrics server stopped", zap.Error(err))
					}
				}()
			}

			plat := platform.NewPlatform(log)
			prov, err := provider.New(cfg, plat, log)
			if err != nil {
				return err
			}
			defer prov.Close()

			alloc, err := prov.Allocator(cfg.Provider.Devices[0])
			if err != nil {
				return err
			}

			report, err := bench.Run(c.Context, alloc, bench.Options{
				Sizes:        c.Uint64Slice("sizes"),
				Iterations:   c.Int("iterations"),
				ReserveEvery: c.Int("reserve-every"),
			}, log)
			if err != nil {
				return err
			}

			if c.Bool("json") {
				out, err := json.MarshalIndent(report, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(out))
				return nil
			}

			fmt.Printf("iterations:   %d\n", report.Iterations)
			fmt.Printf("elapsed:      %.0f ms\n", report.ElapsedMs)
			fmt.Printf("alloc mean:   %.2f us\n", report.MeanMicros)
			fmt.Printf("alloc p50:    %.2f us\n", report.P50Micros)
			fmt.Printf("alloc p99:    %.2f us\n", report.P99Micros)
			if report.Pool != nil {
				total := report.Pool.Hits + report.Pool.Misses
				fmt.Printf("pool hits:    %d/%d (%.1f%%)\n",
					report.Pool.Hits, total,
					100*float64(report.Pool.Hits)/float64(total))
			}
			return nil
		},
	}
}
