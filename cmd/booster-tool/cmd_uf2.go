package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	cli "github.com/lxc/incus/v6/shared/cmd"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sidecartridge/booster/boosterd/internal/flash"
	"github.com/sidecartridge/booster/boosterd/internal/uf2"
)

type cmdUF2 struct {
	global *cmdGlobal

	flagBase    string
	flagFamily  string
	flagAddress string
	flagSize    string
}

func (c *cmdUF2) command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = cli.Usage("uf2")
	cmd.Short = "Work with UF2 images"
	cmd.Long = cli.FormatSection("Description", "Work with UF2 images")

	// Info.
	infoCmd := &cobra.Command{}
	infoCmd.Use = cli.Usage("info", "<file>")
	infoCmd.Short = "Show a summary of a UF2 image"
	infoCmd.Long = cli.FormatSection("Description", "Show a summary of a UF2 image")
	infoCmd.RunE = c.runInfo
	cmd.AddCommand(infoCmd)

	// Build.
	buildCmd := &cobra.Command{}
	buildCmd.Use = cli.Usage("build", "<input> <output>")
	buildCmd.Short = "Wrap a raw binary into a UF2 image"
	buildCmd.Long = cli.FormatSection("Description", "Wrap a raw binary into a UF2 image")
	buildCmd.Flags().StringVar(&c.flagBase, "base", "0x10000000", "Target address of the first block")
	buildCmd.Flags().StringVar(&c.flagFamily, "family", "0", "Family ID, zero for none")
	buildCmd.RunE = c.runBuild
	cmd.AddCommand(buildCmd)

	// Write.
	writeCmd := &cobra.Command{}
	writeCmd.Use = cli.Usage("write", "<file>")
	writeCmd.Short = "Write a UF2 image into the flash image"
	writeCmd.Long = cli.FormatSection("Description",
		"Write a UF2 image into the flash image\n\nThe region is erased then filled linearly with the block payloads, by default the application storage region.")
	writeCmd.Flags().StringVar(&c.flagAddress, "address", "", "Region start, defaults to the storage region")
	writeCmd.Flags().StringVar(&c.flagSize, "size", "", "Region size, defaults to the storage region")
	writeCmd.RunE = c.runWrite
	cmd.AddCommand(writeCmd)

	// Workaround for subcommand usage errors. See: https://github.com/spf13/cobra/issues/706.
	cmd.Args = cobra.NoArgs
	cmd.Run = func(cmd *cobra.Command, _ []string) { _ = cmd.Usage() }

	return cmd
}

func (c *cmdUF2) runInfo(cmd *cobra.Command, args []string) error {
	exit, err := cli.CheckArgs(cmd, args, 1, 1)
	if exit {
		return err
	}

	// #nosec G304
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}

	defer func() { _ = f.Close() }()

	summary, err := uf2.Inspect(f)
	if err != nil {
		return err
	}

	out, err := yaml.Marshal(summary)
	if err != nil {
		return err
	}

	_, _ = fmt.Print(string(out)) //nolint:forbidigo

	return nil
}

func (c *cmdUF2) runBuild(cmd *cobra.Command, args []string) error {
	exit, err := cli.CheckArgs(cmd, args, 2, 2)
	if exit {
		return err
	}

	base, err := parseUint32(c.flagBase)
	if err != nil {
		return err
	}

	family, err := parseUint32(c.flagFamily)
	if err != nil {
		return err
	}

	// #nosec G304
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	return os.WriteFile(args[1], uf2.Encode(data, base, family), 0o644) //nolint:gosec
}

func (c *cmdUF2) runWrite(cmd *cobra.Command, args []string) error {
	exit, err := cli.CheckArgs(cmd, args, 1, 1)
	if exit {
		return err
	}

	dev, layout, err := c.global.openDevice()
	if err != nil {
		return err
	}

	defer func() { _ = dev.Close() }()

	address := layout.StorageStart
	size := layout.StorageSize

	if c.flagAddress != "" {
		address, err = parseUint32(c.flagAddress)
		if err != nil {
			return err
		}
	}

	if c.flagSize != "" {
		size, err = parseUint32(c.flagSize)
		if err != nil {
			return err
		}
	}

	// #nosec G304
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}

	defer func() { _ = f.Close() }()

	w := uf2.NewWriter(dev, uf2.WithProgressCallback(func(p uf2.Progress) {
		_, _ = fmt.Fprintf(os.Stderr, "\r%5.1f%% written", p.Percentage)
	}))

	res, err := w.Write(f, address, size, flash.DefaultBlockSize)

	_, _ = fmt.Fprintln(os.Stderr)

	if err != nil {
		return err
	}

	slog.Info("Image written", "bytes", res.BytesWritten, "blocks", res.Blocks, "skipped", res.BlocksSkipped, "truncated", res.Truncated)

	return nil
}

func parseUint32(value string) (uint32, error) {
	v, err := strconv.ParseUint(value, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid value %q: %w", value, err)
	}

	return uint32(v), nil
}
