package main

import (
	"fmt"
	"io"
	"os"

	"github.com/entrhq/autofill/pkg/notify"
	"github.com/spf13/cobra"
)

func newExportCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "export FILE",
		Short: "Export every profile as JSON (- for stdout)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.unlocked(cmd); err != nil {
				return err
			}
			data, err := c.service.Export(cmd.Context())
			if err != nil {
				return err
			}
			if args[0] == "-" {
				_, err := fmt.Fprintln(c.out, string(data))
				return err
			}
			if err := writeOutput(args[0], data); err != nil {
				return err
			}
			c.print(notify.Success("Profiles exported to %s", args[0]))
			return nil
		},
	}
}

func newImportCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Replace every profile with an exported JSON document (- for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.unlocked(cmd); err != nil {
				return err
			}
			var (
				data []byte
				err  error
			)
			if args[0] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}
			profiles, err := c.service.Import(cmd.Context(), data)
			if err != nil {
				return err
			}
			c.print(notify.Success("Imported %d profiles", len(profiles)))
			return nil
		},
	}
}

func newCopyCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "copy PROFILE",
		Short: "Copy a profile's data to the clipboard",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.unlocked(cmd); err != nil {
				return err
			}
			if _, err := c.service.CopyProfile(cmd.Context(), args[0]); err != nil {
				return err
			}
			c.print(notify.Success("Data copied to clipboard"))
			return nil
		},
	}
}
