package main

import (
	"fmt"

	cli "github.com/lxc/incus/v6/shared/cmd"
	"github.com/spf13/cobra"

	"github.com/sidecartridge/booster/boosterd/internal/util"
)

type cmdUUID struct{}

func (c *cmdUUID) command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = cli.Usage("uuid")
	cmd.Short = "Check application identifiers"
	cmd.Long = cli.FormatSection("Description", "Check application identifiers")

	checkCmd := &cobra.Command{}
	checkCmd.Use = cli.Usage("check", "<uuid>...")
	checkCmd.Short = "Check that identifiers are valid UUID4s"
	checkCmd.Long = cli.FormatSection("Description", "Check that identifiers are valid UUID4s")
	checkCmd.RunE = c.runCheck
	cmd.AddCommand(checkCmd)

	// Workaround for subcommand usage errors. See: https://github.com/spf13/cobra/issues/706.
	cmd.Args = cobra.NoArgs
	cmd.Run = func(cmd *cobra.Command, _ []string) { _ = cmd.Usage() }

	return cmd
}

func (c *cmdUUID) runCheck(cmd *cobra.Command, args []string) error {
	exit, err := cli.CheckArgs(cmd, args, 1, -1)
	if exit {
		return err
	}

	invalid := 0

	for _, id := range args {
		if util.IsValidUUID4(id) {
			_, _ = fmt.Println(id + ": valid") //nolint:forbidigo

			continue
		}

		invalid++

		_, _ = fmt.Println(id + ": invalid") //nolint:forbidigo
	}

	if invalid > 0 {
		return fmt.Errorf("%d invalid identifiers", invalid)
	}

	return nil
}
