// Package reset requests a device reset once a new boot application is selected.
package reset

import (
	"context"
	"log/slog"
	"strings"

	"github.com/lxc/incus/v6/shared/subprocess"
)

// Resetter reboots the device.
type Resetter interface {
	Reset(ctx context.Context) error
}

// Command resets the device by running a command.
type Command struct {
	Name string
	Args []string
}

// NewCommand parses a command line into a Command. An empty line returns a Noop resetter.
func NewCommand(line string) Resetter {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Noop{}
	}

	return &Command{
		Name: fields[0],
		Args: fields[1:],
	}
}

// Reset runs the command.
func (c *Command) Reset(ctx context.Context) error {
	slog.InfoContext(ctx, "Requesting device reset", "command", c.Name)

	_, err := subprocess.RunCommandContext(ctx, c.Name, c.Args...)

	return err
}

// Noop only logs the reset request.
type Noop struct{}

// Reset logs the request.
func (Noop) Reset(ctx context.Context) error {
	slog.InfoContext(ctx, "Device reset requested, no reset command configured")

	return nil
}
