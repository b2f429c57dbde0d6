// Package main drives a scanning rover from a command console.
package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"
	"golang.org/x/term"

	"github.com/roverworks/navcore/config"
	"github.com/roverworks/navcore/events"
	"github.com/roverworks/navcore/logging"
	"github.com/roverworks/navcore/report"
	"github.com/roverworks/navcore/robot"
)

const (
	flagConfig = "config"
	flagDebug  = "debug"
	flagSim    = "sim"
	flagPlot   = "plot"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	var logger logging.Logger

	return &cli.App{
		Name:  "rover",
		Usage: "scan for objects and drive between them, one command character at a time",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE`",
			},
			&cli.BoolFlag{
				Name:  flagSim,
				Usage: "run on simulated hardware",
			},
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool(flagDebug) {
				logger = logging.NewDebugLogger("rover")
			} else {
				logger = logging.NewLogger("rover")
			}
			logging.ReplaceGlobal(logger)
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "read commands from the console and dispatch them until X",
				Action: func(c *cli.Context) error {
					return runAction(c, logger)
				},
			},
			{
				Name:  "scan",
				Usage: "sweep once and print the objects, gaps and clear path",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  flagPlot,
						Usage: "also plot the scan into `DIR`",
					},
				},
				Action: func(c *cli.Context) error {
					return scanAction(c, logger)
				},
			},
			{
				Name:  "calibrate-wheels",
				Usage: "settle the wheel powers, e.g. on a treadmill",
				Action: func(c *cli.Context) error {
					return calibrateAction(c, logger)
				},
			},
		},
	}
}

func loadConfig(c *cli.Context, logger logging.Logger) (*config.Config, error) {
	var conf *config.Config
	switch path := c.String(flagConfig); {
	case path != "":
		var err error
		conf, err = config.Read(c.Context, path, logger)
		if err != nil {
			return nil, err
		}
	case c.Bool(flagSim):
		conf = config.Simulated()
		conf.Drivetrain.RealtimeTick = true
	default:
		return nil, errors.Errorf("one of --%s or --%s is required", flagConfig, flagSim)
	}
	if conf.Debug {
		logger.SetLevel(logging.DEBUG)
	}
	return conf, nil
}

func newReporter(conf *config.Config, w io.Writer, plotDir string, logger logging.Logger) (report.Multi, error) {
	reporters := report.Multi{report.NewTableReporter(w)}
	if plotDir == "" {
		plotDir = conf.Telemetry.PlotDir
	}
	if plotDir != "" {
		if err := os.MkdirAll(plotDir, 0o750); err != nil {
			return nil, errors.Wrapf(err, "cannot create plot directory %s", plotDir)
		}
		reporters = append(reporters, report.NewPlotReporter(plotDir, logger.Sublogger("plot")))
	}
	if conf.Telemetry.MQTT != nil {
		mr, err := report.NewMQTTReporter(*conf.Telemetry.MQTT, logger.Sublogger("mqtt"))
		if err != nil {
			return nil, err
		}
		reporters = append(reporters, mr)
	}
	return reporters, nil
}

func signalContext(c *cli.Context) (context.Context, func()) {
	return signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
}

func runAction(c *cli.Context, logger logging.Logger) (err error) {
	ctx, stop := signalContext(c)
	defer stop()

	conf, err := loadConfig(c, logger)
	if err != nil {
		return err
	}

	var in io.Reader = os.Stdin
	var out io.Writer = c.App.Writer
	if conf.Console.Path != "" {
		port, err := robot.OpenSerialConsole(conf.Console)
		if err != nil {
			return err
		}
		defer goutils.UncheckedErrorFunc(port.Close)
		in, out = port, port
	} else if fd := int(os.Stdin.Fd()); term.IsTerminal(fd) {
		// one keystroke per command, no enter
		state, err := term.MakeRaw(fd)
		if err != nil {
			return errors.Wrap(err, "cannot put the terminal in raw mode")
		}
		defer goutils.UncheckedErrorFunc(func() error { return term.Restore(fd, state) })
	}

	reporter, err := newReporter(conf, out, "", logger)
	if err != nil {
		return err
	}
	commands := events.NewSignal()
	r, err := robot.New(ctx, conf, commands, reporter, nil, logger)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, errors.Wrap(r.Close(context.WithoutCancel(ctx)), "closing rover"))
	}()

	console := robot.NewConsole(in, commands, logger.Sublogger("console"))
	goutils.PanicCapturingGo(func() {
		if err := console.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Warnw("console stopped", "error", err)
		}
	})
	logger.Infow("ready", "commands", "e w W a A d D s p c X, space stops")
	if err := r.Run(ctx, commands); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func scanAction(c *cli.Context, logger logging.Logger) (err error) {
	ctx, stop := signalContext(c)
	defer stop()

	conf, err := loadConfig(c, logger)
	if err != nil {
		return err
	}
	reporter, err := newReporter(conf, c.App.Writer, c.String(flagPlot), logger)
	if err != nil {
		return err
	}
	r, err := robot.New(ctx, conf, nil, reporter, nil, logger)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, r.Close(context.WithoutCancel(ctx)))
	}()
	return r.Scan(ctx)
}

func calibrateAction(c *cli.Context, logger logging.Logger) (err error) {
	ctx, stop := signalContext(c)
	defer stop()

	conf, err := loadConfig(c, logger)
	if err != nil {
		return err
	}
	commands := events.NewSignal()
	r, err := robot.New(ctx, conf, commands, report.Multi{report.NewTableReporter(c.App.Writer)}, nil, logger)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, r.Close(context.WithoutCancel(ctx)))
	}()
	return r.Dispatch(ctx, robot.KeyCalibrateWheels)
}
