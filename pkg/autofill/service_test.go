package autofill

import (
	"context"
	"errors"
	"testing"

	"github.com/entrhq/autofill/pkg/config"
	"github.com/entrhq/autofill/pkg/logging"
	"github.com/entrhq/autofill/pkg/matcher"
	"github.com/entrhq/autofill/pkg/matcher/htmldoc"
	"github.com/entrhq/autofill/pkg/messaging"
	"github.com/entrhq/autofill/pkg/storage"
	"github.com/entrhq/autofill/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClipboard struct {
	text string
	err  error
}

func (c *fakeClipboard) WriteAll(text string) error {
	if c.err != nil {
		return c.err
	}
	c.text = text
	return nil
}

func newTestService(t *testing.T, mutate func(*config.Config), opts ...Option) (*Service, *storage.Tiers) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Storage.InspectPDF = false
	if mutate != nil {
		mutate(cfg)
	}
	tiers := &storage.Tiers{
		Sync:  storage.NewMemoryTier(storage.SyncTierName, storage.SyncQuota(cfg.Storage)),
		Local: storage.NewMemoryTier(storage.LocalTierName, storage.LocalQuota(cfg.Storage)),
	}
	return newServiceOver(t, tiers, cfg, opts...), tiers
}

func newServiceOver(t *testing.T, tiers *storage.Tiers, cfg *config.Config, opts ...Option) *Service {
	t.Helper()
	opts = append([]Option{WithLogger(logging.Discard())}, opts...)
	s, err := New(context.Background(), tiers, cfg, opts...)
	require.NoError(t, err)
	return s
}

// switchableTier fails every write while failing is set.
type switchableTier struct {
	storage.Tier
	failing bool
}

func (f *switchableTier) Set(ctx context.Context, items map[string]any) error {
	if f.failing {
		return errors.New("sync unavailable")
	}
	return f.Tier.Set(ctx, items)
}

func png(name string) types.Upload {
	return types.Upload{Name: name, MIMEType: "image/png", Content: []byte("\x89PNG fake image")}
}

func TestNewInitializesStores(t *testing.T) {
	s, tiers := newTestService(t, nil)
	ctx := context.Background()

	names, err := s.Profiles().List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{types.DefaultProfile}, names)

	keys, err := tiers.Local.Keys(ctx)
	require.NoError(t, err)
	assert.Contains(t, keys, "fileRegistry")
}

func TestUploadFiles(t *testing.T) {
	s, _ := newTestService(t, nil)
	ctx := context.Background()

	uploads := []types.Upload{
		png("a.png"),
		{Name: "notes.txt", MIMEType: "text/plain", Content: []byte("hi")},
		png("b.png"),
	}
	result, err := s.UploadFiles(ctx, types.DefaultProfile, uploads)
	require.NoError(t, err)

	require.Len(t, result.Outcomes, 3)
	assert.Equal(t, "a.png", result.Outcomes[0].Name)
	assert.Equal(t, "notes.txt", result.Outcomes[1].Name)
	assert.Equal(t, "b.png", result.Outcomes[2].Name)
	assert.NoError(t, result.Outcomes[0].Err)
	assert.ErrorIs(t, result.Outcomes[1].Err, types.ErrValidation)
	assert.NoError(t, result.Outcomes[2].Err)
	assert.Equal(t, 1, result.Failed())
	assert.Len(t, result.Stored(), 2)

	p, err := s.Profiles().Get(ctx, types.DefaultProfile)
	require.NoError(t, err)
	assert.ElementsMatch(t, []types.FileRef{result.Outcomes[0].Record.Ref(), result.Outcomes[2].Record.Ref()}, p.Files)

	listed, err := s.Files().ListFiles(ctx, types.DefaultProfile)
	require.NoError(t, err)
	assert.Len(t, listed, 2)
}

func TestUploadFilesUnknownProfile(t *testing.T) {
	s, _ := newTestService(t, nil)
	_, err := s.UploadFiles(context.Background(), "ghost", []types.Upload{png("a.png")})
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestUploadFilesRemovesFileWhenAttachFails(t *testing.T) {
	// Room for the profile map plus exactly one file reference.
	s, _ := newTestService(t, func(c *config.Config) { c.Storage.SyncMaxItemSize = 160 })
	ctx := context.Background()
	_, err := s.Profiles().Create(ctx, "work")
	require.NoError(t, err)

	result, err := s.UploadFiles(ctx, "work", []types.Upload{png("a.png"), png("b.png")})
	require.NoError(t, err)
	require.Equal(t, 1, result.Failed())

	for _, o := range result.Outcomes {
		if o.Err != nil {
			assert.ErrorIs(t, o.Err, types.ErrStorageUnavailable)
			assert.True(t, storage.IsQuotaExceeded(o.Err))
		}
	}

	listed, err := s.Files().ListFiles(ctx, "work")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, result.Stored()[0].ID, listed[0].ID)

	p, err := s.Profiles().Get(ctx, "work")
	require.NoError(t, err)
	assert.Equal(t, []types.FileRef{listed[0].Ref()}, p.Files)
}

func TestRemoveFile(t *testing.T) {
	s, _ := newTestService(t, nil)
	ctx := context.Background()

	result, err := s.UploadFiles(ctx, types.DefaultProfile, []types.Upload{png("a.png")})
	require.NoError(t, err)
	id := result.Outcomes[0].Record.ID

	require.NoError(t, s.RemoveFile(ctx, types.DefaultProfile, id))

	p, err := s.Profiles().Get(ctx, types.DefaultProfile)
	require.NoError(t, err)
	assert.Empty(t, p.Files)
	_, err = s.Files().GetFile(ctx, id)
	assert.ErrorIs(t, err, types.ErrNotFound)

	// Removing again is harmless.
	assert.NoError(t, s.RemoveFile(ctx, types.DefaultProfile, id))
}

func TestDeleteProfileCascades(t *testing.T) {
	s, _ := newTestService(t, nil)
	ctx := context.Background()
	_, err := s.Profiles().Create(ctx, "work")
	require.NoError(t, err)

	_, err = s.UploadFiles(ctx, "work", []types.Upload{png("a.png"), png("b.png")})
	require.NoError(t, err)
	kept, err := s.UploadFiles(ctx, types.DefaultProfile, []types.Upload{png("c.png")})
	require.NoError(t, err)

	require.NoError(t, s.DeleteProfile(ctx, "work"))

	ok, err := s.Profiles().Exists(ctx, "work")
	require.NoError(t, err)
	assert.False(t, ok)

	gone, err := s.Files().ListFiles(ctx, "work")
	require.NoError(t, err)
	assert.Empty(t, gone)

	left, err := s.Files().ListFiles(ctx, types.DefaultProfile)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, kept.Outcomes[0].Record.ID, left[0].ID)
}

func TestPrunedFileIsDetachedFromProfile(t *testing.T) {
	s, tiers := newTestService(t, nil)
	ctx := context.Background()

	result, err := s.UploadFiles(ctx, types.DefaultProfile, []types.Upload{png("a.png"), png("b.png")})
	require.NoError(t, err)
	require.Zero(t, result.Failed())
	listedID := result.Outcomes[0].Record.ID
	fetchedID := result.Outcomes[1].Record.ID

	require.NoError(t, tiers.Local.Remove(ctx, fetchedID))
	_, err = s.Files().GetFile(ctx, fetchedID)
	assert.ErrorIs(t, err, types.ErrNotFound)

	p, err := s.Profiles().Get(ctx, types.DefaultProfile)
	require.NoError(t, err)
	assert.Equal(t, []types.FileRef{result.Outcomes[0].Record.Ref()}, p.Files)

	require.NoError(t, tiers.Local.Remove(ctx, listedID))
	listed, err := s.Files().ListFiles(ctx, types.DefaultProfile)
	require.NoError(t, err)
	assert.Empty(t, listed)

	p, err = s.Profiles().Get(ctx, types.DefaultProfile)
	require.NoError(t, err)
	assert.Empty(t, p.Files)
}

func TestDeleteProfileKeepsFilesWhenProfileDeleteFails(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Storage.InspectPDF = false
	sync := &switchableTier{Tier: storage.NewMemoryTier(storage.SyncTierName, storage.SyncQuota(cfg.Storage))}
	tiers := &storage.Tiers{
		Sync:  sync,
		Local: storage.NewMemoryTier(storage.LocalTierName, storage.LocalQuota(cfg.Storage)),
	}
	s := newServiceOver(t, tiers, cfg)
	ctx := context.Background()

	_, err := s.Profiles().Create(ctx, "work")
	require.NoError(t, err)
	result, err := s.UploadFiles(ctx, "work", []types.Upload{png("a.png")})
	require.NoError(t, err)
	rec := result.Outcomes[0].Record

	sync.failing = true
	assert.ErrorIs(t, s.DeleteProfile(ctx, "work"), types.ErrStorageUnavailable)
	sync.failing = false

	p, err := s.Profiles().Get(ctx, "work")
	require.NoError(t, err)
	assert.Equal(t, []types.FileRef{rec.Ref()}, p.Files)

	stored, err := s.Files().GetFile(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec, stored.FileRecord)
}

func TestNewRemovesFilesOfDeletedProfiles(t *testing.T) {
	s, tiers := newTestService(t, nil)
	ctx := context.Background()

	kept, err := s.Files().StoreFile(ctx, png("kept.png"), types.DefaultProfile)
	require.NoError(t, err)
	_, err = s.Files().StoreFile(ctx, png("left.png"), "gone")
	require.NoError(t, err)

	restarted := newServiceOver(t, tiers, config.DefaultConfig())

	owners, err := restarted.Files().Owners(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{types.DefaultProfile}, owners)

	left, err := restarted.Files().ListFiles(ctx, types.DefaultProfile)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, kept.ID, left[0].ID)
}

func TestDeleteProfileErrors(t *testing.T) {
	s, _ := newTestService(t, nil)
	ctx := context.Background()

	assert.ErrorIs(t, s.DeleteProfile(ctx, types.DefaultProfile), types.ErrProtected)
	assert.ErrorIs(t, s.DeleteProfile(ctx, "ghost"), types.ErrNotFound)
}

func TestFill(t *testing.T) {
	s, _ := newTestService(t, nil)
	ctx := context.Background()
	_, err := s.Profiles().SetFields(ctx, types.DefaultProfile, []types.Field{
		{Label: "email", Value: "jane@example.com"},
		{Label: "zip", Value: "90210"},
	})
	require.NoError(t, err)

	doc, err := htmldoc.ParseString(`<form><input name="user_email"><input id="city"></form>`)
	require.NoError(t, err)
	ep := messaging.NewEndpoint(doc, matcher.NewFiller(config.FillConfig{}, nil), nil)
	transport := messaging.NewChannelTransport(ep)
	defer transport.Close()

	report, err := s.Fill(ctx, transport, "")
	require.NoError(t, err)
	assert.True(t, report.Success)
	assert.True(t, report.PartiallyFilled)
	assert.Equal(t, []string{"zip"}, report.UnfilledFields)
	assert.Equal(t, "jane@example.com", doc.Find("user_email").Value())
}

func TestFillUsesSelection(t *testing.T) {
	s, _ := newTestService(t, nil)
	ctx := context.Background()
	_, err := s.Profiles().Create(ctx, "work")
	require.NoError(t, err)
	_, err = s.Profiles().SetField(ctx, "work", types.Field{Label: "company", Value: "Acme"})
	require.NoError(t, err)

	doc, err := htmldoc.ParseString(`<input name="company"><input name="email">`)
	require.NoError(t, err)
	ep := messaging.NewEndpoint(doc, matcher.NewFiller(config.FillConfig{}, nil), nil)

	_, err = s.Fill(ctx, messaging.Direct(ep), "work")
	require.NoError(t, err)
	assert.Equal(t, "work", s.Session().Current())

	// Later fills keep using the selection.
	doc.Find("company").SetValue("")
	_, err = s.Fill(ctx, messaging.Direct(ep), "")
	require.NoError(t, err)
	assert.Equal(t, "Acme", doc.Find("company").Value())

	// A deleted selection falls back to the default profile.
	require.NoError(t, s.DeleteProfile(ctx, "work"))
	_, err = s.Fill(ctx, messaging.Direct(ep), "")
	require.NoError(t, err)
	assert.Equal(t, types.DefaultProfile, s.Session().Current())
}

func TestFillErrors(t *testing.T) {
	s, _ := newTestService(t, nil)
	ctx := context.Background()

	doc, err := htmldoc.ParseString(`<p>nothing here</p>`)
	require.NoError(t, err)
	ep := messaging.NewEndpoint(doc, matcher.NewFiller(config.FillConfig{}, nil), nil)

	_, err = s.Fill(ctx, messaging.Direct(ep), "ghost")
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, err = s.Fill(ctx, messaging.Direct(ep), types.DefaultProfile)
	assert.ErrorIs(t, err, types.ErrNoFormsOnPage)

	transport := messaging.NewChannelTransport(ep)
	transport.Close()
	_, err = s.Fill(ctx, transport, types.DefaultProfile)
	assert.ErrorIs(t, err, types.ErrDeliveryFailed)
}

func TestCopyProfile(t *testing.T) {
	cb := &fakeClipboard{}
	s, _ := newTestService(t, nil, WithClipboard(cb))
	ctx := context.Background()
	_, err := s.Profiles().SetField(ctx, types.DefaultProfile, types.Field{Label: "name", Value: "Jane"})
	require.NoError(t, err)

	text, err := s.CopyProfile(ctx, types.DefaultProfile)
	require.NoError(t, err)
	assert.Equal(t, text, cb.text)
	assert.JSONEq(t, `{"fields":[{"label":"name","value":"Jane"}],"files":[]}`, text)

	_, err = s.CopyProfile(ctx, "ghost")
	assert.ErrorIs(t, err, types.ErrNotFound)

	cb.err = errors.New("no display")
	_, err = s.CopyProfile(ctx, types.DefaultProfile)
	assert.ErrorIs(t, err, types.ErrDeliveryFailed)
}

func TestExportImport(t *testing.T) {
	s, _ := newTestService(t, nil)
	ctx := context.Background()
	_, err := s.Profiles().Create(ctx, "work")
	require.NoError(t, err)

	data, err := s.Export(ctx)
	require.NoError(t, err)

	other, _ := newTestService(t, nil)
	profiles, err := other.Import(ctx, data)
	require.NoError(t, err)
	assert.Len(t, profiles, 2)

	names, err := other.Profiles().List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{types.DefaultProfile, "work"}, names)
}
