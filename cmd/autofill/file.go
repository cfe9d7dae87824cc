package main

import (
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/entrhq/autofill/pkg/notify"
	"github.com/entrhq/autofill/pkg/types"
	"github.com/spf13/cobra"
)

func newFileCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "file",
		Short: "Manage files attached to profiles",
	}
	cmd.AddCommand(newFileAddCmd(c), newFileListCmd(c), newFileGetCmd(c), newFileRmCmd(c))
	return cmd
}

func newFileAddCmd(c *cli) *cobra.Command {
	var profileName, mimeType string
	cmd := &cobra.Command{
		Use:   "add PATH...",
		Short: "Store files and attach them to a profile",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.unlocked(cmd); err != nil {
				return err
			}

			// Unreadable paths fail on their own, like rejected uploads.
			outcomes := make([]notify.Outcome, len(args))
			uploads := make([]types.Upload, 0, len(args))
			slots := make([]int, 0, len(args))
			for i, path := range args {
				u, err := readUpload(path, mimeType)
				if err != nil {
					outcomes[i] = notify.Outcome{Name: filepath.Base(path), Err: err}
					continue
				}
				uploads = append(uploads, u)
				slots = append(slots, i)
			}

			var stored []types.FileRecord
			if len(uploads) > 0 {
				result, err := c.service.UploadFiles(cmd.Context(), profileName, uploads)
				if err != nil {
					return err
				}
				for j, o := range result.Outcomes {
					outcomes[slots[j]] = notify.Outcome{Name: o.Name, Err: o.Err}
				}
				stored = result.Stored()
			}

			c.print(notify.FromBatch("file", outcomes))
			for _, r := range stored {
				printRecord(c, r)
			}
			if len(stored) == 0 {
				return fmt.Errorf("no files were stored")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&profileName, "profile", "p", types.DefaultProfile, "profile to attach the files to")
	cmd.Flags().StringVar(&mimeType, "type", "", "MIME type to use instead of detecting it")
	return cmd
}

func newFileListCmd(c *cli) *cobra.Command {
	var profileName string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the files of a profile and the local storage usage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.unlocked(cmd); err != nil {
				return err
			}
			records, err := c.service.Files().ListFiles(cmd.Context(), profileName)
			if err != nil {
				return err
			}
			for _, r := range records {
				printRecord(c, r)
			}
			used, limit, err := c.service.Files().Usage(cmd.Context())
			if err != nil {
				return err
			}
			c.printf("Storage: %s of %s used\n", notify.FormatSize(used), notify.FormatSize(limit))
			return nil
		},
	}
	cmd.Flags().StringVarP(&profileName, "profile", "p", types.DefaultProfile, "profile whose files are listed")
	return cmd
}

func newFileGetCmd(c *cli) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "get ID",
		Short: "Write a stored file to disk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.unlocked(cmd); err != nil {
				return err
			}
			rec, content, err := c.service.Files().Content(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if out == "" {
				out = rec.Name
			}
			if err := os.WriteFile(out, content, 0o600); err != nil {
				return fmt.Errorf("failed to write %s: %w", out, err)
			}
			c.print(notify.Success("Saved %s (%s) to %s", rec.Name, notify.FormatSize(rec.SizeBytes), out))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output path (defaults to the stored file name)")
	return cmd
}

func newFileRmCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "rm ID",
		Short: "Delete a file and detach it from its profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.unlocked(cmd); err != nil {
				return err
			}
			f, err := c.service.Files().GetFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := c.service.RemoveFile(cmd.Context(), f.Profile, f.ID); err != nil {
				return err
			}
			c.print(notify.Success("File deleted successfully"))
			return nil
		},
	}
}

// readUpload loads path and determines its MIME type from the extension,
// falling back to content sniffing.
func readUpload(path, mimeType string) (types.Upload, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return types.Upload{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if mimeType == "" {
		mimeType = mime.TypeByExtension(filepath.Ext(path))
	}
	if mimeType == "" {
		mimeType = http.DetectContentType(content)
	}
	return types.Upload{Name: filepath.Base(path), MIMEType: mimeType, Content: content}, nil
}
