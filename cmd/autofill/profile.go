package main

import (
	"github.com/entrhq/autofill/pkg/notify"
	"github.com/entrhq/autofill/pkg/types"
	"github.com/spf13/cobra"
)

func newProfileCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage profiles",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List profiles",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if err := c.unlocked(cmd); err != nil {
					return err
				}
				dir := c.service.Profiles()
				names, err := dir.List(cmd.Context())
				if err != nil {
					return err
				}
				for _, name := range names {
					p, err := dir.Get(cmd.Context(), name)
					if err != nil {
						return err
					}
					c.printf("%-20s %d fields, %d files\n", name, len(p.Fields), len(p.Files))
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "create NAME",
			Short: "Create an empty profile",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := c.unlocked(cmd); err != nil {
					return err
				}
				p, err := c.service.Profiles().Create(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				c.print(notify.Success("Profile %q created", p.Name))
				return nil
			},
		},
		&cobra.Command{
			Use:   "delete NAME",
			Short: "Delete a profile and its files",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := c.unlocked(cmd); err != nil {
					return err
				}
				if err := c.service.DeleteProfile(cmd.Context(), args[0]); err != nil {
					return err
				}
				c.print(notify.Success("Profile %q deleted", args[0]))
				return nil
			},
		},
		&cobra.Command{
			Use:   "show NAME",
			Short: "Show the fields and files of a profile",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := c.unlocked(cmd); err != nil {
					return err
				}
				p, err := c.service.Profiles().Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				records, err := c.service.Files().ListFiles(cmd.Context(), p.Name)
				if err != nil {
					return err
				}

				c.printf("Fields:\n")
				if len(p.Fields) == 0 {
					c.printf("  (none)\n")
				}
				for _, f := range p.Fields {
					c.printf("  %s: %s\n", f.Label, f.Value)
				}
				c.printf("Files:\n")
				if len(records) == 0 {
					c.printf("  (none)\n")
				}
				for _, r := range records {
					printRecord(c, r)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "set-field NAME LABEL VALUE",
			Short: "Set a field, replacing one with the same label",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := c.unlocked(cmd); err != nil {
					return err
				}
				field := types.Field{Label: args[1], Value: args[2]}
				if _, err := c.service.Profiles().SetField(cmd.Context(), args[0], field); err != nil {
					return err
				}
				c.print(notify.Success("Profile saved successfully"))
				return nil
			},
		},
		&cobra.Command{
			Use:   "remove-field NAME LABEL",
			Short: "Remove a field",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := c.unlocked(cmd); err != nil {
					return err
				}
				if _, err := c.service.Profiles().RemoveField(cmd.Context(), args[0], args[1]); err != nil {
					return err
				}
				c.print(notify.Success("Profile saved successfully"))
				return nil
			},
		},
		&cobra.Command{
			Use:   "clear-fields NAME",
			Short: "Remove every field of a profile",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := c.unlocked(cmd); err != nil {
					return err
				}
				if _, err := c.service.Profiles().SetFields(cmd.Context(), args[0], nil); err != nil {
					return err
				}
				c.print(notify.Success("Profile saved successfully"))
				return nil
			},
		},
	)
	return cmd
}

func printRecord(c *cli, r types.FileRecord) {
	c.printf("  %s %-30s %10s  %s\n", notify.Icon(r.MIMEType), notify.TruncateName(r.Name, 30), notify.FormatSize(r.SizeBytes), r.ID)
}
