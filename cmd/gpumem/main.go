package main

import (
	"fmt"
	"os"

	"github.com/fxnlabs/gpumem/internal/config"
	"github.com/fxnlabs/gpumem/internal/logger"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func main() {
	var cfg *config.Config
	var zapLogger *zap.Logger
	var rootLogger *zap.Logger

	app := &cli.App{
		Name:  "gpumem",
		Usage: "A CLI for inspecting and stressing the GPU memory allocation layer",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "Path to the gpumem config file",
				EnvVars: []string{"GPUMEM_CONFIG"},
			},
		},
		Before: func(c *cli.Context) error {
			var err error
			if path := c.String("config"); path != "" {
				cfg, err = config.LoadConfig(path)
				if err != nil {
					return err
				}
			} else {
				cfg = config.Default()
			}
			zapLogger, err = logger.New(cfg.Logger.Verbosity)
			if err != nil {
				return err
			}
			rootLogger = zapLogger.Named("cli")
			return nil
		},
		Commands: []*cli.Command{
			infoCommand(func() *zap.Logger { return rootLogger }),
			stressCommand(func() (*config.Config, *zap.Logger) { return cfg, rootLogger }),
		},
	}

	if err := app.Run(os.Args); err != nil {
		if rootLogger != nil {
			rootLogger.Fatal("failed to run app", zap.Error(err))
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
}
