package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/lxc/incus/v6/shared/ask"
	cli "github.com/lxc/incus/v6/shared/cmd"
	"github.com/spf13/cobra"

	"github.com/sidecartridge/booster/boosterd/api"
	"github.com/sidecartridge/booster/boosterd/internal/lookup"
	"github.com/sidecartridge/booster/boosterd/internal/util"
)

type cmdLookup struct {
	global *cmdGlobal

	flagFormat string
	flagForce  bool
}

func (c *cmdLookup) command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = cli.Usage("lookup")
	cmd.Short = "Manage the application lookup table"
	cmd.Long = cli.FormatSection("Description", "Manage the application lookup table\n\nThe lookup table maps application identifiers to configuration slots.")

	// Show.
	showCmd := &cobra.Command{}
	showCmd.Use = cli.Usage("show")
	showCmd.Aliases = []string{"list", "ls"}
	showCmd.Short = "Show the lookup table"
	showCmd.Long = cli.FormatSection("Description", "Show the lookup table")
	showCmd.Flags().StringVarP(&c.flagFormat, "format", "f", "table", "Format (csv|json|table|yaml|compact|markdown)``")
	showCmd.PreRunE = func(cmd *cobra.Command, _ []string) error {
		return cli.ValidateFlagFormatForListOutput(cmd.Flag("format").Value.String())
	}

	showCmd.RunE = c.runShow
	cmd.AddCommand(showCmd)

	// Set.
	setCmd := &cobra.Command{}
	setCmd.Use = cli.Usage("set", "<uuid> <slot>")
	setCmd.Short = "Assign a configuration slot to an application"
	setCmd.Long = cli.FormatSection("Description", "Assign a configuration slot to an application")
	setCmd.RunE = c.runSet
	cmd.AddCommand(setCmd)

	// Delete.
	deleteCmd := &cobra.Command{}
	deleteCmd.Use = cli.Usage("delete", "<uuid>")
	deleteCmd.Aliases = []string{"rm"}
	deleteCmd.Short = "Remove an application from the lookup table"
	deleteCmd.Long = cli.FormatSection("Description", "Remove an application from the lookup table")
	deleteCmd.RunE = c.runDelete
	cmd.AddCommand(deleteCmd)

	// Erase.
	eraseCmd := &cobra.Command{}
	eraseCmd.Use = cli.Usage("erase")
	eraseCmd.Short = "Erase the lookup table"
	eraseCmd.Long = cli.FormatSection("Description", "Erase the lookup table, forgetting every slot assignment")
	eraseCmd.Flags().BoolVar(&c.flagForce, "force", false, "Don't ask for confirmation")
	eraseCmd.RunE = c.runErase
	cmd.AddCommand(eraseCmd)

	// Workaround for subcommand usage errors. See: https://github.com/spf13/cobra/issues/706.
	cmd.Args = cobra.NoArgs
	cmd.Run = func(cmd *cobra.Command, _ []string) { _ = cmd.Usage() }

	return cmd
}

func (c *cmdLookup) runShow(cmd *cobra.Command, args []string) error {
	exit, err := cli.CheckArgs(cmd, args, 0, 0)
	if exit {
		return err
	}

	dev, layout, err := c.global.openDevice()
	if err != nil {
		return err
	}

	defer func() { _ = dev.Close() }()

	table, err := lookup.NewStore(dev, layout).Load()
	if err != nil {
		return err
	}

	data := [][]string{}
	entries := []api.LookupEntry{}

	for _, e := range table.Entries() {
		addr, err := layout.ConfigSectorOffset(e.Slot)
		if err != nil {
			return err
		}

		entries = append(entries, api.LookupEntry{UUID: e.ID, Slot: e.Slot, ConfigAddress: addr})
		data = append(data, []string{e.ID, strconv.Itoa(int(e.Slot)), fmt.Sprintf("0x%08X", addr)})
	}

	sort.Sort(cli.SortColumnsNaturally(data))

	header := []string{
		"UUID",
		"SLOT",
		"CONFIG ADDRESS",
	}

	return cli.RenderTable(os.Stdout, c.flagFormat, header, data, entries)
}

func (c *cmdLookup) runSet(cmd *cobra.Command, args []string) error {
	exit, err := cli.CheckArgs(cmd, args, 2, 2)
	if exit {
		return err
	}

	slot, err := strconv.ParseUint(args[1], 10, 16)
	if err != nil {
		return fmt.Errorf("invalid slot %q: %w", args[1], err)
	}

	dev, layout, err := c.global.openDevice()
	if err != nil {
		return err
	}

	defer func() { _ = dev.Close() }()

	if uint32(slot) >= layout.ConfigSlots() {
		return fmt.Errorf("slot %d is out of range, the layout has %d slots", slot, layout.ConfigSlots())
	}

	store := lookup.NewStore(dev, layout)

	table, err := store.Load()
	if err != nil {
		return err
	}

	owner, ok := table.SlotOwner(uint16(slot))
	if ok && owner != args[0] {
		return fmt.Errorf("%w: slot %d belongs to %s", lookup.ErrSlotInUse, slot, owner)
	}

	err = table.Upsert(args[0], uint16(slot))
	if err != nil {
		return err
	}

	return store.Persist(table)
}

func (c *cmdLookup) runDelete(cmd *cobra.Command, args []string) error {
	exit, err := cli.CheckArgs(cmd, args, 1, 1)
	if exit {
		return err
	}

	if !util.IsValidUUID4(args[0]) {
		return fmt.Errorf("%q isn't a valid UUID4", args[0])
	}

	dev, layout, err := c.global.openDevice()
	if err != nil {
		return err
	}

	defer func() { _ = dev.Close() }()

	store := lookup.NewStore(dev, layout)

	table, err := store.Load()
	if err != nil {
		return err
	}

	err = table.Delete(args[0])
	if err != nil {
		return err
	}

	return store.Persist(table)
}

func (c *cmdLookup) runErase(cmd *cobra.Command, args []string) error {
	exit, err := cli.CheckArgs(cmd, args, 0, 0)
	if exit {
		return err
	}

	if !c.flagForce {
		asker := ask.NewAsker(bufio.NewReader(os.Stdin))

		confirm, err := asker.AskBool("Erase the lookup table? Every application will lose its configuration slot. [y/N] ", "n")
		if err != nil {
			return err
		}

		if !confirm {
			return errors.New("erase aborted")
		}
	}

	dev, layout, err := c.global.openDevice()
	if err != nil {
		return err
	}

	defer func() { _ = dev.Close() }()

	return lookup.NewStore(dev, layout).Erase()
}
