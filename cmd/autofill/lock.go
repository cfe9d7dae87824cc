package main

import (
	"github.com/entrhq/autofill/pkg/notify"
	"github.com/spf13/cobra"
)

func newLockCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "lock [PASSWORD]",
		Short: "Set a password and lock the profiles, or lock again with the stored one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gate := c.service.Gate()
			if len(args) == 0 {
				if err := gate.Lock(cmd.Context()); err != nil {
					return err
				}
				c.print(notify.Success("Profiles locked"))
				return nil
			}
			if err := c.unlocked(cmd); err != nil {
				return err
			}
			if err := gate.SetPassword(cmd.Context(), args[0]); err != nil {
				return err
			}
			c.print(notify.Success("Password set, profiles locked"))
			return nil
		},
	}
}

func newUnlockCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "unlock PASSWORD",
		Short: "Unlock the profiles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.service.Gate().Unlock(cmd.Context(), args[0]); err != nil {
				return err
			}
			c.print(notify.Success("Profiles unlocked"))
			return nil
		},
	}
}

func newUnlockRemoveCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "unlock-remove",
		Short: "Remove the password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.unlocked(cmd); err != nil {
				return err
			}
			if err := c.service.Gate().RemovePassword(cmd.Context()); err != nil {
				return err
			}
			c.print(notify.Success("Password removed"))
			return nil
		},
	}
}
