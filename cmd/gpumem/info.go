package main

import (
	"fmt"

	"github.com/common-nighthawk/go-figure"
	"github.com/fxnlabs/gpumem/internal/platform"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func infoCommand(log func() *zap.Logger) *cli.Command {
	return &cli.Command{
		Name:  "info",
		Usage: "Show the devices visible to the memory platform",
		Action: func(c *cli.Context) error {
			banner := figure.NewFigure("gpumem", "", true)
			banner.Print()
			fmt.Println("")

			plat := platform.NewPlatform(log())
			count, err := plat.DeviceCount()
			if err != nil {
				return fmt.Errorf("device count: %w", err)
			}

			fmt.Printf("Devices: %d\n", count)
			for i := 0; i < count; i++ {
				info, err := plat.DeviceInfo(i)
				if err != nil {
					return fmt.Errorf("device %d info: %w", i, err)
				}
				fmt.Printf("  [%d] %s  memory=%.1f GiB  compute=%s\n",
					info.Ordinal, info.Name,
					float64(info.TotalMemory)/(1<<30),
					info.ComputeCapability)
			}
			return nil
		},
	}
}
