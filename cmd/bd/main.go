package main

import (
	"context"
	"fmt"
	"os"
	"time"

	bd "github.com/pnvasko/bulk-duplicator"
	"github.com/pnvasko/bulk-duplicator/common"
	"github.com/urfave/cli/v2"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var version = "dev"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "bd",
		Usage:   "Bulk Data Duplicator: write one input to many files or devices at once",
		Version: version,
		Description: "Reads the input once, in blocks, and writes every block to each output.\n" +
			"Can also be used to back up to multiple locations.\n" +
			"Memory usage is about block-buffer * outputs * block-size.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "input",
				Aliases: []string{"i"},
				Usage:   "input file to read from; stdin when empty",
			},
			&cli.StringSliceFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "output file(s) to write to; stdout when empty",
			},
			&cli.IntFlag{
				Name:    "block-size",
				Aliases: []string{"b"},
				Value:   bd.DefaultBlockSize,
				Usage:   "bytes per block",
			},
			&cli.IntFlag{
				Name:    "block-buffer",
				Aliases: []string{"f"},
				Value:   bd.DefaultBlockBuffer,
				Usage:   "blocks each output may hold in memory",
			},
			&cli.IntFlag{
				Name:    "count",
				Aliases: []string{"c"},
				Usage:   "number of blocks to read, e.g. from /dev/urandom or /dev/zero",
			},
			&cli.BoolFlag{
				Name:    "debug",
				EnvVars: []string{"DEBUG"},
				Usage:   "verbose console logging on stderr",
			},
		},
		Action: duplicate,
	}
}

func paramsFromFlags(c *cli.Context) (bd.Params, error) {
	opts := []bd.ParamsOption{
		bd.WithBlockSize(c.Int("block-size")),
		bd.WithBlockBuffer(c.Int("block-buffer")),
	}
	if c.IsSet("count") {
		opts = append(opts, bd.WithBlockCount(c.Int("count")))
	}
	return bd.NewParams(opts...)
}

func duplicate(c *cli.Context) error {
	params, err := paramsFromFlags(c)
	if err != nil {
		return err
	}

	cfg := common.NewEnvConfig(common.WithDebug(c.Bool("debug")), common.WithVersion(version))
	shutdownTracing, err := common.InitOpentelemetry(cfg)
	if err != nil {
		return err
	}
	logger, err := common.NewLogger(cfg)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Ctx(shutdownCtx).Warn("failed to shutdown tracing", zap.Error(err))
		}
		_ = logger.ZapLogger().Sync()
	}()

	tracer := otel.Tracer("bd")
	opts := bd.Options{
		Input:   c.String("input"),
		Outputs: c.StringSlice("output"),
		Params:  params,
	}

	runGroup, err := common.NewRunGroup(common.WithStopTimeout(30 * time.Second))
	if err != nil {
		return err
	}

	var outcome bd.Outcome
	err = runGroup.Add("duplicate", func(ctx context.Context) error {
		var runErr error
		outcome, runErr = bd.Run(ctx, opts, tracer, logger)
		return runErr
	}, func(err error) {
		logger.Ctx(c.Context).Debug("duplicate stopped", zap.Error(err))
	})
	if err != nil {
		return err
	}

	err = runGroup.Run(c.Context)
	if outcome.RunID != "" {
		_, _ = fmt.Fprintln(c.App.ErrWriter, outcome.String())
	}
	if len(outcome.Failures) > 1 {
		_, _ = fmt.Fprintf(c.App.ErrWriter, "%d of %d outputs failed:\n%s\n",
			len(outcome.Failures), outcome.Sinks, common.MultiError(outcome.FailureErrors()))
	}
	return err
}
