// Package main is used for the booster tool.
package main

import (
	"fmt"
	"os"

	cli "github.com/lxc/incus/v6/shared/cmd"
	"github.com/spf13/cobra"

	"github.com/sidecartridge/booster/boosterd/internal/config"
	"github.com/sidecartridge/booster/boosterd/internal/flash"
)

var version = "dev"

type cmdGlobal struct {
	flagHelp    bool
	flagVersion bool
	flagImage   string
	flagConfig  string
}

func main() {
	// Global flags.
	globalCmd := cmdGlobal{}

	app := &cobra.Command{
		Use:   "booster-tool",
		Short: "Booster flash image tool",
		Long: cli.FormatSection("Description",
			"Booster flash image tool\n\nThis tool inspects and modifies a booster flash image offline: the application lookup table, UF2 images and application identifiers."),
		SilenceUsage:      true,
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
		RunE:              globalCmd.run,
	}

	app.PersistentFlags().BoolVarP(&globalCmd.flagHelp, "help", "h", false, "Print help command")
	app.PersistentFlags().BoolVarP(&globalCmd.flagVersion, "version", "v", false, "Print binary version")
	app.PersistentFlags().StringVarP(&globalCmd.flagImage, "image", "i", "", "Flash image to operate on (defaults to the configured one)")
	app.PersistentFlags().StringVarP(&globalCmd.flagConfig, "config", "c", "", "boosterd configuration file")

	// Sub-commands.
	lookupCmd := cmdLookup{global: &globalCmd}
	app.AddCommand(lookupCmd.command())

	uf2Cmd := cmdUF2{global: &globalCmd}
	app.AddCommand(uf2Cmd.command())

	uuidCmd := cmdUUID{}
	app.AddCommand(uuidCmd.command())

	// Help handling.
	app.SetHelpCommand(&cobra.Command{
		Use:    "no-help",
		Hidden: true,
	})

	// Run the main command and handle errors.
	err := app.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func (c *cmdGlobal) run(cmd *cobra.Command, _ []string) error {
	if c.flagVersion {
		_, _ = fmt.Println("booster-tool version " + version) //nolint:forbidigo

		return nil
	}

	return cmd.Usage()
}

// loadConfig returns the configuration, applying the image flag.
func (c *cmdGlobal) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(c.flagConfig)
	if err != nil {
		return nil, err
	}

	if c.flagImage != "" {
		cfg.FlashImage = c.flagImage
	}

	return cfg, nil
}

// openDevice opens the flash image described by the configuration.
func (c *cmdGlobal) openDevice() (*flash.File, flash.Layout, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, flash.Layout{}, err
	}

	layout := cfg.Layout()

	dev, err := flash.OpenFile(cfg.FlashImage, layout.Size(), layout.Geometry)
	if err != nil {
		return nil, flash.Layout{}, fmt.Errorf("failed to open flash image %q: %w", cfg.FlashImage, err)
	}

	return dev, layout, nil
}
