// Package autofill ties the profile directory, the file manager and the
// messaging client together into the operations a user interface calls.
package autofill

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/atotto/clipboard"
	"github.com/entrhq/autofill/pkg/config"
	"github.com/entrhq/autofill/pkg/files"
	"github.com/entrhq/autofill/pkg/logging"
	"github.com/entrhq/autofill/pkg/matcher"
	"github.com/entrhq/autofill/pkg/messaging"
	"github.com/entrhq/autofill/pkg/profile"
	"github.com/entrhq/autofill/pkg/storage"
	"github.com/entrhq/autofill/pkg/types"
)

// Clipboard receives copied profile data.
type Clipboard interface {
	WriteAll(text string) error
}

// SystemClipboard writes to the desktop clipboard.
type SystemClipboard struct{}

func (SystemClipboard) WriteAll(text string) error {
	return clipboard.WriteAll(text)
}

// Service is the facade over profiles, files and form filling.
type Service struct {
	dir       *profile.Directory
	files     *files.Manager
	gate      *profile.Gate
	session   *profile.Session
	client    *messaging.Client
	clipboard Clipboard
	log       *logging.Logger

	fileOpts []files.Option
}

// Option configures a Service.
type Option func(*Service)

// WithClipboard replaces the system clipboard.
func WithClipboard(c Clipboard) Option {
	return func(s *Service) { s.clipboard = c }
}

// WithFileOptions passes options through to the file manager.
func WithFileOptions(opts ...files.Option) Option {
	return func(s *Service) { s.fileOpts = append(s.fileOpts, opts...) }
}

// WithLogger sets the logger shared by every component.
func WithLogger(l *logging.Logger) Option {
	return func(s *Service) { s.log = l }
}

// New builds a Service over opened tiers and initializes both stores.
func New(ctx context.Context, tiers *storage.Tiers, cfg *config.Config, opts ...Option) (*Service, error) {
	s := &Service{clipboard: SystemClipboard{}}
	for _, opt := range opts {
		opt(s)
	}

	fileOpts := append([]files.Option{
		files.WithLogger(s.log.With("files")),
		files.WithPruneHandler(s.detachPruned),
	}, s.fileOpts...)
	fm, err := files.NewManager(tiers.Local, cfg.Storage, fileOpts...)
	if err != nil {
		return nil, err
	}

	s.files = fm
	s.dir = profile.NewDirectory(tiers.Sync, cfg.Storage.SyncMaxItemSize, s.log.With("profile"))
	s.gate = profile.NewGate(tiers.Sync)
	s.session = profile.NewSession(s.dir)
	s.client = messaging.NewClient(s.log.With("messaging"))

	if err := s.dir.Initialize(ctx); err != nil {
		return nil, err
	}
	if err := s.files.Initialize(ctx); err != nil {
		return nil, err
	}
	s.sweepOwnerless(ctx)
	return s, nil
}

// detachPruned removes the references to files whose payload went missing.
func (s *Service) detachPruned(ctx context.Context, pruned []types.FileRecord) {
	for _, rec := range pruned {
		if rec.Profile == "" {
			continue
		}
		err := s.dir.DetachFile(ctx, rec.Profile, rec.ID)
		if err != nil && !errors.Is(err, types.ErrNotFound) {
			s.log.Warnf("failed to detach pruned file %s from %q: %v", rec.ID, rec.Profile, err)
		}
	}
}

// sweepOwnerless deletes files left behind by a profile deletion that did not
// finish.
func (s *Service) sweepOwnerless(ctx context.Context) {
	owners, err := s.files.Owners(ctx)
	if err != nil {
		s.log.Warnf("failed to list file owners: %v", err)
		return
	}
	for _, name := range owners {
		ok, err := s.dir.Exists(ctx, name)
		if err != nil || ok {
			continue
		}
		n, err := s.files.DeleteProfileFiles(ctx, name)
		if err != nil {
			s.log.Warnf("failed to remove files of deleted profile %q: %v", name, err)
			continue
		}
		s.log.Infof("removed %d files of deleted profile %q", n, name)
	}
}

// Profiles returns the profile directory.
func (s *Service) Profiles() *profile.Directory { return s.dir }

// Files returns the file manager.
func (s *Service) Files() *files.Manager { return s.files }

// Gate returns the lock gate.
func (s *Service) Gate() *profile.Gate { return s.gate }

// Session returns the profile selection used by Fill.
func (s *Service) Session() *profile.Session { return s.session }

// RemoveFile detaches a file from a profile and deletes it.
func (s *Service) RemoveFile(ctx context.Context, profileName, id string) error {
	if err := s.dir.DetachFile(ctx, profileName, id); err != nil {
		return err
	}
	if _, err := s.files.DeleteFile(ctx, id); err != nil {
		return err
	}
	s.log.Infof("removed %s from %q", id, profileName)
	return nil
}

// DeleteProfile deletes a profile and then its files. Files left behind by a
// failed second step are removed the next time a Service starts.
func (s *Service) DeleteProfile(ctx context.Context, name string) error {
	const op = "autofill.delete_profile"
	if name == types.DefaultProfile {
		return types.Protected(op, "the %q profile cannot be deleted", name)
	}
	ok, err := s.dir.Exists(ctx, name)
	if err != nil {
		return err
	}
	if !ok {
		return types.NotFound(op, "profile %q not found", name)
	}

	if err := s.dir.Delete(ctx, name); err != nil {
		return err
	}
	n, err := s.files.DeleteProfileFiles(ctx, name)
	if err != nil {
		return err
	}
	s.log.Infof("deleted profile %q and %d files", name, n)
	return nil
}

// Fill sends the fields of a profile to the page behind t. A non-empty
// profileName is selected first; an empty one fills with the current
// selection.
func (s *Service) Fill(ctx context.Context, t messaging.Transport, profileName string) (matcher.Report, error) {
	if profileName != "" {
		if err := s.session.Select(ctx, profileName); err != nil {
			return matcher.Report{}, err
		}
	}
	p, err := s.session.Profile(ctx)
	if err != nil {
		return matcher.Report{}, err
	}
	return s.client.Fill(ctx, t, p.Name, p.Fields)
}

// Export returns every profile as a JSON document.
func (s *Service) Export(ctx context.Context) ([]byte, error) {
	return s.dir.Export(ctx)
}

// Import replaces every profile with the contents of data.
func (s *Service) Import(ctx context.Context, data []byte) (types.Profiles, error) {
	return s.dir.Import(ctx, data)
}

// CopyProfile puts the JSON of one profile on the clipboard and returns it.
func (s *Service) CopyProfile(ctx context.Context, name string) (string, error) {
	const op = "autofill.copy_profile"
	p, err := s.dir.Get(ctx, name)
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return "", types.Validation(op, "failed to encode profile: %v", err)
	}
	if err := s.clipboard.WriteAll(string(data)); err != nil {
		return "", types.DeliveryFailed(op, err, "failed to copy to clipboard")
	}
	return string(data), nil
}
