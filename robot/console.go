package robot

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"
	"go.bug.st/serial"
	"go.uber.org/multierr"

	"github.com/roverworks/navcore/config"
	"github.com/roverworks/navcore/events"
	"github.com/roverworks/navcore/logging"
)

const consoleReadTimeout = 100 * time.Millisecond

// OpenSerialConsole opens the command UART. Reads return empty after a short timeout so a
// Console reading it notices cancellation.
func OpenSerialConsole(conf config.ConsoleConfig) (serial.Port, error) {
	baud := conf.BaudRate
	if baud == 0 {
		baud = config.DefaultConsoleBaudRate
	}
	port, err := serial.Open(conf.Path, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open console %s", conf.Path)
	}
	if err := port.SetReadTimeout(consoleReadTimeout); err != nil {
		return nil, multierr.Combine(err, port.Close())
	}
	return port, nil
}

// A Console posts every command character read from r to a signal. Line endings are dropped.
type Console struct {
	r        io.Reader
	commands *events.Signal
	logger   logging.Logger
}

// NewConsole returns a console reading r.
func NewConsole(r io.Reader, commands *events.Signal, logger logging.Logger) *Console {
	return &Console{r: r, commands: commands, logger: logger}
}

// Run reads until EOF, a read error, or ctx ends. EOF is not an error.
func (c *Console) Run(ctx context.Context) error {
	buf := make([]byte, 64)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := c.r.Read(buf)
		for _, b := range buf[:n] {
			if b == '\r' || b == '\n' {
				continue
			}
			c.logger.CDebugf(ctx, "console command %q", b)
			c.commands.Post(b)
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "console read failed")
		}
	}
}
