package main

import (
	"fmt"
	"io"

	"github.com/entrhq/autofill/pkg/autofill"
	"github.com/entrhq/autofill/pkg/config"
	"github.com/entrhq/autofill/pkg/logging"
	"github.com/entrhq/autofill/pkg/notify"
	"github.com/entrhq/autofill/pkg/storage"
	"github.com/spf13/cobra"
)

// cli holds what every subcommand shares. Fields set before Execute are
// kept; the rest is filled in by setup.
type cli struct {
	out       io.Writer
	log       *logging.Logger
	clipboard autofill.Clipboard

	configFile string
	dataDir    string
	verbosity  string
	backend    string

	cfg     *config.Config
	tiers   *storage.Tiers
	service *autofill.Service
	ownsLog bool
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:   "autofill",
		Short: "Fill web forms from saved profiles",
		Long: `autofill keeps named profiles of form fields and attached files, and
fills the inputs of a page whose name, id, placeholder or aria-label
contains a field's label.`,
		PersistentPreRunE: c.setup,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.configFile, "config", "", "path to autofill.yaml")
	flags.StringVar(&c.dataDir, "data-dir", "", "directory holding the storage tiers")
	flags.StringVar(&c.verbosity, "verbosity", "", "log verbosity: quiet, normal, verbose, debug")
	flags.StringVar(&c.backend, "backend", "", "local tier backend: file or sqlite")

	root.AddCommand(
		newProfileCmd(c),
		newFileCmd(c),
		newFillCmd(c),
		newExportCmd(c),
		newImportCmd(c),
		newCopyCmd(c),
		newLockCmd(c),
		newUnlockCmd(c),
		newUnlockRemoveCmd(c),
	)
	return root
}

func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(c.configFile)
	if err != nil {
		return err
	}
	if c.dataDir != "" {
		cfg.Tiers.DataDir = c.dataDir
	}
	if c.verbosity != "" {
		cfg.Logging.Verbosity = c.verbosity
	}
	if c.backend != "" {
		cfg.Tiers.LocalBackend = config.LocalBackend(c.backend)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	c.cfg = cfg

	if c.log == nil {
		level, err := logging.ParseLevel(cfg.Logging.Verbosity)
		if err != nil {
			return err
		}
		logging.SetDefaultLevel(level)
		c.log = logging.MustLogger("autofill")
		c.ownsLog = true
	}

	tiers, err := storage.Open(cfg)
	if err != nil {
		return err
	}
	c.tiers = tiers

	opts := []autofill.Option{autofill.WithLogger(c.log)}
	if c.clipboard != nil {
		opts = append(opts, autofill.WithClipboard(c.clipboard))
	}
	svc, err := autofill.New(cmd.Context(), tiers, cfg, opts...)
	if err != nil {
		return err
	}
	c.service = svc
	return nil
}

// close releases what setup opened. It runs after Execute whether or not
// the command failed.
func (c *cli) close() error {
	var err error
	if c.tiers != nil {
		err = c.tiers.Close()
		c.tiers = nil
	}
	if c.ownsLog {
		_ = c.log.Close()
		c.ownsLog = false
	}
	return err
}

// unlocked fails while the profiles are locked.
func (c *cli) unlocked(cmd *cobra.Command) error {
	return c.service.Gate().Check(cmd.Context())
}

func (c *cli) print(n notify.Notification) {
	fmt.Fprintln(c.out, n.Render())
}

func (c *cli) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}
