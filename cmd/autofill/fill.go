package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/entrhq/autofill/pkg/browser"
	"github.com/entrhq/autofill/pkg/matcher"
	"github.com/entrhq/autofill/pkg/matcher/htmldoc"
	"github.com/entrhq/autofill/pkg/messaging"
	"github.com/entrhq/autofill/pkg/notify"
	"github.com/entrhq/autofill/pkg/types"
	"github.com/spf13/cobra"
)

func newFillCmd(c *cli) *cobra.Command {
	var profileName, htmlPath, url, out string
	cmd := &cobra.Command{
		Use:   "fill",
		Short: "Fill the forms of a page with a profile's fields",
		Long: `Fill the forms of a saved HTML page (--html) or of a live page opened in
a browser (--url). With --out the filled page is written back as HTML.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.unlocked(cmd); err != nil {
				return err
			}
			switch {
			case htmlPath != "" && url != "":
				return types.Validation("fill", "--html and --url are mutually exclusive")
			case htmlPath != "":
				return c.fillHTML(cmd, profileName, htmlPath, out)
			case url != "":
				return c.fillURL(cmd, profileName, url, out)
			}
			return types.Validation("fill", "one of --html or --url is required")
		},
	}
	cmd.Flags().StringVarP(&profileName, "profile", "p", "", "profile to fill with (defaults to the selected one)")
	cmd.Flags().StringVar(&htmlPath, "html", "", "saved HTML page to fill")
	cmd.Flags().StringVar(&url, "url", "", "live page to open and fill")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the filled page to this file")
	return cmd
}

func (c *cli) newFiller() *matcher.Filler {
	return matcher.NewFiller(c.cfg.Fill, c.log.With("matcher"))
}

func (c *cli) fillHTML(cmd *cobra.Command, profileName, path, out string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	doc, err := htmldoc.Parse(bytes.NewReader(data))
	if err != nil {
		return err
	}

	transport := messaging.NewChannelTransport(messaging.NewEndpoint(doc, c.newFiller(), c.log.With("page")))
	defer transport.Close()

	report, err := c.service.Fill(cmd.Context(), transport, profileName)
	if err != nil {
		return err
	}
	c.print(notify.FromReport(report))

	if out == "" {
		return nil
	}
	var buf bytes.Buffer
	if err := doc.Render(&buf); err != nil {
		return err
	}
	return writeOutput(out, buf.Bytes())
}

func (c *cli) fillURL(cmd *cobra.Command, profileName, url, out string) error {
	manager := browser.NewSessionManager(c.cfg.Browser, c.log.With("browser"))
	if err := manager.Start(); err != nil {
		return err
	}
	defer manager.Shutdown()

	session, err := manager.Open(cmd.Context(), "fill", url)
	if err != nil {
		return err
	}

	endpoint := messaging.NewEndpoint(session.Document(), c.newFiller(), c.log.With("page"))
	report, err := c.service.Fill(cmd.Context(), messaging.Direct(endpoint), profileName)
	if err != nil {
		return err
	}
	c.print(notify.FromReport(report))

	if out == "" {
		return nil
	}
	content, err := session.Content()
	if err != nil {
		return types.DeliveryFailed("fill", err, "failed to read the filled page")
	}
	return writeOutput(out, []byte(content))
}

func writeOutput(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
